package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockReplacer_Should_Find_No_Victim_When_Nothing_Is_Evictable(t *testing.T) {
	poolSize := 32
	r := NewClockReplacer(poolSize)
	for i := 0; i < poolSize; i++ {
		r.RecordAccess(i)
	}

	_, ok := r.Evict()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())
}

func TestClockReplacer_Should_Not_Choose_Pinned_Frames(t *testing.T) {
	poolSize := 32
	r := NewClockReplacer(poolSize)
	for i := 0; i < poolSize; i++ {
		r.RecordAccess(i)
	}
	r.SetEvictable(poolSize-1, true)

	v, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, poolSize-1, v)
}

func TestClockReplacer_Should_Give_Second_Chance_To_Accessed_Frames(t *testing.T) {
	r := NewClockReplacer(2)
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	// frame 1 is touched again right before the sweep, frame 0 goes first
	// once its reference bit is spent
	r.RecordAccess(1)
	v, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestClockReplacer_SetEvictable_Should_Be_Noop_Without_Access(t *testing.T) {
	r := NewClockReplacer(4)
	r.SetEvictable(0, true)
	assert.Equal(t, 0, r.Size())
}

func TestClockReplacer_Remove_Should_Panic_On_Protocol_Violations(t *testing.T) {
	r := NewClockReplacer(4)

	assert.Panics(t, func() { r.Remove(0) })

	r.RecordAccess(1)
	assert.Panics(t, func() { r.Remove(1) })

	r.SetEvictable(1, true)
	r.Remove(1)
	assert.Equal(t, 0, r.Size())
}

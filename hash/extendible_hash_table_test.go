package hash

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityHasher makes split behaviour deterministic in tests.
func identityHasher(key int) uint64 {
	return uint64(key)
}

// assertDirectoryInvariants checks that every bucket with local depth d is
// referenced by exactly 2^(globalDepth-d) directory slots, that those slots
// agree on their low d bits, and that every resident hashes into its bucket.
func assertDirectoryInvariants[K comparable, V any](t *testing.T, table *Table[K, V]) {
	t.Helper()
	table.latch.Lock()
	defer table.latch.Unlock()

	refs := map[*bucket[K, V]][]int{}
	for i, b := range table.dir {
		refs[b] = append(refs[b], i)
	}

	assert.Equal(t, table.numBuckets, len(refs))

	for b, slots := range refs {
		assert.LessOrEqual(t, b.depth(), table.globalDepth)
		assert.Len(t, slots, 1<<(table.globalDepth-b.depth()))

		mask := 1<<b.depth() - 1
		discriminator := slots[0] & mask
		for _, s := range slots {
			assert.Equal(t, discriminator, s&mask)
		}
		for _, e := range b.items {
			assert.Equal(t, discriminator, int(table.hasher(e.key))&mask)
		}
	}
}

func TestFind_Should_Return_Inserted_Values(t *testing.T) {
	table := NewTable[int, string](4, IntHasher)

	n := 1000
	for i := 0; i < n; i++ {
		require.NoError(t, table.Insert(i, fmt.Sprint(i)))
	}

	for i := 0; i < n; i++ {
		v, ok := table.Find(i)
		require.True(t, ok)
		require.Equal(t, fmt.Sprint(i), v)
	}

	_, ok := table.Find(n + 1)
	assert.False(t, ok)
	assertDirectoryInvariants(t, table)
}

func TestInsert_Should_Split_Bucket_When_Full(t *testing.T) {
	table := NewTable[int, string](2, identityHasher)

	for i, key := range []int{1, 2, 3, 4, 5} {
		require.NoError(t, table.Insert(key, fmt.Sprint(i)))
	}

	for i, key := range []int{1, 2, 3, 4, 5} {
		v, ok := table.Find(key)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), v)
	}

	assert.Equal(t, 2, table.GetGlobalDepth())
	assert.Equal(t, 3, table.GetNumBuckets())
	// even keys share one depth-1 bucket referenced from slots 00 and 10
	assert.Equal(t, 1, table.GetLocalDepth(0))
	assert.Equal(t, 1, table.GetLocalDepth(2))
	assert.Equal(t, 2, table.GetLocalDepth(1))
	assert.Equal(t, 2, table.GetLocalDepth(3))
	assertDirectoryInvariants(t, table)
}

func TestInsert_Should_Double_Directory_When_Target_Is_At_Global_Depth(t *testing.T) {
	table := NewTable[int, int](1, identityHasher)

	require.NoError(t, table.Insert(0, 0))
	require.NoError(t, table.Insert(1, 10))

	assert.Equal(t, 1, table.GetGlobalDepth())
	assert.Equal(t, 2, table.GetNumBuckets())
	assert.Equal(t, 1, table.GetLocalDepth(0))
	assert.Equal(t, 1, table.GetLocalDepth(1))

	v, ok := table.Find(0)
	require.True(t, ok)
	assert.Equal(t, 0, v)
	v, ok = table.Find(1)
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assertDirectoryInvariants(t, table)
}

func TestInsert_Should_Overwrite_Value_When_Key_Exists(t *testing.T) {
	table := NewTable[int, string](2, identityHasher)

	require.NoError(t, table.Insert(1, "a"))
	require.NoError(t, table.Insert(3, "b"))

	// the bucket is full, but overwriting does not need a free slot
	require.NoError(t, table.Insert(1, "c"))

	v, ok := table.Find(1)
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, 1, table.GetNumBuckets())
	assert.Equal(t, 0, table.GetGlobalDepth())
}

func TestRemove_Should_Make_Key_Absent(t *testing.T) {
	table := NewTable[int, int](4, IntHasher)

	for i := 0; i < 100; i++ {
		require.NoError(t, table.Insert(i, i*2))
	}

	for i := 0; i < 100; i += 2 {
		assert.True(t, table.Remove(i))
	}
	assert.False(t, table.Remove(0))

	for i := 0; i < 100; i++ {
		v, ok := table.Find(i)
		if i%2 == 0 {
			assert.False(t, ok)
		} else {
			require.True(t, ok)
			assert.Equal(t, i*2, v)
		}
	}

	// removals never merge buckets nor shrink the directory
	assertDirectoryInvariants(t, table)
}

func TestInsert_Should_Fail_When_All_Keys_Collide_On_Every_Bit(t *testing.T) {
	table := NewTable[int, int](2, func(int) uint64 { return 42 })

	require.NoError(t, table.Insert(1, 1))
	require.NoError(t, table.Insert(2, 2))

	err := table.Insert(3, 3)
	assert.ErrorIs(t, err, ErrBucketExhausted)

	// residents survive the failed insert, and overwrites still work
	v, ok := table.Find(1)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	require.NoError(t, table.Insert(2, 20))
	v, ok = table.Find(2)
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestDirectory_Invariants_Should_Hold_After_Churn(t *testing.T) {
	table := NewTable[int, int](4, identityHasher)

	for i := 0; i < 512; i++ {
		require.NoError(t, table.Insert(i, i))
		if i%3 == 0 {
			table.Remove(i / 2)
		}
	}

	assertDirectoryInvariants(t, table)
}

func TestTable_Should_Be_Safe_For_Concurrent_Use(t *testing.T) {
	table := NewTable[int, int](8, IntHasher)

	workers, perWorker := 8, 500
	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := w*perWorker + i
				assert.NoError(t, table.Insert(key, key))
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < workers*perWorker; i++ {
		v, ok := table.Find(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	assertDirectoryInvariants(t, table)
}

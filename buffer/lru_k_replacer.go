package buffer

import (
	"fmt"
	"sync"
)

var _ Replacer = &LRUKReplacer{}

// LRUKReplacer orders eviction candidates by backward k-distance: the gap
// between now and a frame's k-th most recent access. Frames with fewer than k
// recorded accesses have infinite distance and are evicted first, oldest
// first access winning; among frames with full histories the one whose k-th
// most recent access is oldest wins.
//
// Victim selection is a linear scan over the frames which is fine at typical
// pool sizes.
type LRUKReplacer struct {
	k            int
	replacerSize int
	currSize     int
	currentTS    uint64
	history      [][]uint64
	evictable    []bool
	latch        sync.Mutex
}

// NewLRUKReplacer creates a replacer tracking numFrames frames. Panics when
// k is zero.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	if k < 1 {
		panic("lru-k replacer requires k >= 1")
	}

	return &LRUKReplacer{
		k:            k,
		replacerSize: numFrames,
		history:      make([][]uint64, numFrames),
		evictable:    make([]bool, numFrames),
	}
}

func (l *LRUKReplacer) RecordAccess(frameID int) {
	l.latch.Lock()
	defer l.latch.Unlock()

	l.assertValid(frameID)
	l.history[frameID] = append(l.history[frameID], l.currentTS)
	l.currentTS++
}

func (l *LRUKReplacer) SetEvictable(frameID int, evictable bool) {
	l.latch.Lock()
	defer l.latch.Unlock()

	l.assertValid(frameID)
	if len(l.history[frameID]) == 0 {
		return
	}

	if evictable && !l.evictable[frameID] {
		l.evictable[frameID] = true
		l.currSize++
	} else if !evictable && l.evictable[frameID] {
		l.evictable[frameID] = false
		l.currSize--
	}
}

func (l *LRUKReplacer) Evict() (int, bool) {
	l.latch.Lock()
	defer l.latch.Unlock()

	victim := -1

	// Frames with fewer than k accesses have infinite backward k-distance and
	// take priority; ties go to the earliest first access.
	for f := 0; f < l.replacerSize; f++ {
		h := l.history[f]
		if !l.evictable[f] || len(h) == 0 || len(h) >= l.k {
			continue
		}
		if victim == -1 || h[0] < l.history[victim][0] {
			victim = f
		}
	}

	if victim == -1 {
		// All candidates have full histories; pick the oldest k-th most
		// recent access.
		for f := 0; f < l.replacerSize; f++ {
			h := l.history[f]
			if !l.evictable[f] || len(h) < l.k {
				continue
			}
			if victim == -1 || h[len(h)-l.k] < l.history[victim][len(l.history[victim])-l.k] {
				victim = f
			}
		}
	}

	if victim == -1 {
		return 0, false
	}

	l.history[victim] = nil
	l.evictable[victim] = false
	l.currSize--
	return victim, true
}

func (l *LRUKReplacer) Remove(frameID int) {
	l.latch.Lock()
	defer l.latch.Unlock()

	l.assertValid(frameID)
	if len(l.history[frameID]) == 0 {
		panic(fmt.Sprintf("removing frame %v which was never accessed", frameID))
	}
	if !l.evictable[frameID] {
		panic(fmt.Sprintf("removing non-evictable frame %v", frameID))
	}

	l.history[frameID] = nil
	l.evictable[frameID] = false
	l.currSize--
}

func (l *LRUKReplacer) Size() int {
	l.latch.Lock()
	defer l.latch.Unlock()

	return l.currSize
}

func (l *LRUKReplacer) assertValid(frameID int) {
	if frameID < 0 || frameID >= l.replacerSize {
		panic(fmt.Sprintf("frame id %v is out of range [0, %v)", frameID, l.replacerSize))
	}
}

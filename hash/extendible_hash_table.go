package hash

import (
	"errors"
	"sync"
)

// ErrBucketExhausted is returned from Insert when the target bucket cannot be
// split any further because every resident collides with the new key on all
// hash bits. No amount of directory doubling can open a slot at that point.
var ErrBucketExhausted = errors.New("hash: bucket cannot be split, all keys collide on every hash bit")

// maxDepth is the number of usable hash bits. A bucket at maxDepth holds keys
// that agree on the whole hash.
const maxDepth = 64

// Table is an extendible hash table. A directory of 2^globalDepth slots maps
// the low bits of a key's hash to a bucket; full buckets are split instead of
// rehashing the whole table, doubling the directory when needed. Multiple
// slots may share one bucket: a bucket with local depth d is referenced by
// exactly 2^(globalDepth-d) slots.
//
// Remove never merges buckets nor shrinks the directory.
type Table[K comparable, V any] struct {
	globalDepth int
	bucketSize  int
	numBuckets  int
	dir         []*bucket[K, V]
	hasher      Hasher[K]
	latch       sync.Mutex
}

func NewTable[K comparable, V any](bucketSize int, hasher Hasher[K]) *Table[K, V] {
	t := &Table[K, V]{
		bucketSize: bucketSize,
		numBuckets: 1,
		hasher:     hasher,
	}
	t.dir = append(t.dir, newBucket[K, V](bucketSize, 0))
	return t
}

// indexOf masks the key's hash with the low globalDepth bits.
func (t *Table[K, V]) indexOf(key K) int {
	mask := uint64(1)<<t.globalDepth - 1
	return int(t.hasher(key) & mask)
}

func (t *Table[K, V]) Find(key K) (V, bool) {
	t.latch.Lock()
	defer t.latch.Unlock()

	return t.dir[t.indexOf(key)].find(key)
}

func (t *Table[K, V]) Remove(key K) bool {
	t.latch.Lock()
	defer t.latch.Unlock()

	return t.dir[t.indexOf(key)].remove(key)
}

// Insert puts key into its target bucket, splitting as many times as needed
// until the target has room. A split may leave all residents on one side, in
// which case the loop splits again.
func (t *Table[K, V]) Insert(key K, val V) error {
	t.latch.Lock()
	defer t.latch.Unlock()

	for {
		b := t.dir[t.indexOf(key)]
		if b.insert(key, val) {
			return nil
		}

		if b.depth() >= maxDepth || t.collidesOnEveryBit(b, key) {
			return ErrBucketExhausted
		}

		t.split(b)
	}
}

// collidesOnEveryBit reports whether splitting is pointless: every resident of
// b hashes to exactly the same value as key, so no bit can ever tell them
// apart. Checked before splitting to fail fast instead of doubling the
// directory 64 times.
func (t *Table[K, V]) collidesOnEveryBit(b *bucket[K, V], key K) bool {
	h := t.hasher(key)
	for _, e := range b.items {
		if t.hasher(e.key) != h {
			return false
		}
	}
	return true
}

// split replaces bucket b with two buckets of local depth d+1, doubling the
// directory first when b is already at global depth.
func (t *Table[K, V]) split(b *bucket[K, V]) {
	d := b.depth()
	if d == t.globalDepth {
		// Directory doubling. New slot i references the same bucket as slot
		// i with its top bit cleared.
		size := len(t.dir)
		for i := 0; i < size; i++ {
			t.dir = append(t.dir, t.dir[i])
		}
		t.globalDepth++
	}

	b.incrementDepth()
	nb := newBucket[K, V](t.bucketSize, b.depth())
	t.numBuckets++

	// Rewire: among the slots referencing b, those with bit d set now
	// reference the new bucket.
	for i := range t.dir {
		if t.dir[i] == b && (i>>d)&1 == 1 {
			t.dir[i] = nb
		}
	}

	// Redistribute b's entries under the deeper mask.
	kept := make([]entry[K, V], 0, t.bucketSize)
	for _, e := range b.items {
		if t.dir[t.indexOf(e.key)] == nb {
			nb.items = append(nb.items, e)
		} else {
			kept = append(kept, e)
		}
	}
	b.items = kept
}

func (t *Table[K, V]) GetGlobalDepth() int {
	t.latch.Lock()
	defer t.latch.Unlock()

	return t.globalDepth
}

// GetLocalDepth returns the local depth of the bucket referenced by the given
// directory slot.
func (t *Table[K, V]) GetLocalDepth(dirIndex int) int {
	t.latch.Lock()
	defer t.latch.Unlock()

	return t.dir[dirIndex].depth()
}

func (t *Table[K, V]) GetNumBuckets() int {
	t.latch.Lock()
	defer t.latch.Unlock()

	return t.numBuckets
}

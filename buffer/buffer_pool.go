package buffer

import (
	"errors"
	"fmt"
	"sync"

	"ember/common"
	"ember/disk"
	"ember/hash"

	"go.uber.org/zap"
)

// ErrNoAvailableFrame is returned when the free list is empty and every
// resident page is pinned, so no frame can be reclaimed. Callers can retry
// after unpinning pages.
var ErrNoAvailableFrame = errors.New("buffer pool is exhausted: no free frame and no evictable page")

// pageTableBucketSize is the bucket capacity of the page table's extendible
// hash table.
const pageTableBucketSize = 4

type Pool interface {
	// NewPage allocates a fresh zeroed page, pinned once.
	NewPage() (*Page, error)

	// FetchPage returns the frame holding pageID, reading it from disk when
	// it is not resident, pinned once more.
	FetchPage(pageID uint64) (*Page, error)

	// UnpinPage drops one pin. Returns false when the page is not resident or
	// was not pinned. The dirty bit is sticky: passing false never clears it.
	UnpinPage(pageID uint64, isDirty bool) bool

	// FlushPage writes the frame to disk whether or not it is dirty and
	// clears the dirty bit. Returns false when the page is not resident.
	FlushPage(pageID uint64) bool

	// FlushAllPages flushes every resident page.
	FlushAllPages()

	// DeletePage drops a resident page from the pool and returns its frame to
	// the free list. Returns false when the page is pinned and true when it
	// was deleted or was not resident at all.
	DeletePage(pageID uint64) bool
}

var _ Pool = &BufferPool{}

// BufferPool presents a fixed pool of page sized frames over a disk manager.
// A page table maps resident page ids to frames and a replacer picks victims
// among unpinned frames. One mutex guards every public operation; the
// replacer and page table carry their own latches only so they stay safe when
// used standalone.
type BufferPool struct {
	poolSize    int
	frames      []*Page
	freeList    []int
	pageTable   *hash.Table[uint64, int]
	replacer    Replacer
	diskManager disk.IDiskManager
	nextPageID  uint64
	lock        sync.Mutex
	lg          *zap.Logger
	metrics     *PoolMetrics
}

// NewBufferPool opens (or creates) the database file and builds a pool of
// poolSize frames with an LRU-K replacer.
func NewBufferPool(dbFile string, poolSize, replacerK int) *BufferPool {
	d, err := disk.NewDiskManager(dbFile, zap.NewNop())
	common.PanicIfErr(err)
	return NewBufferPoolWithDM(poolSize, replacerK, d, nil)
}

// NewBufferPoolWithDM builds a pool over an existing disk manager. lg may be
// nil, in which case the pool is silent.
func NewBufferPoolWithDM(poolSize, replacerK int, dm disk.IDiskManager, lg *zap.Logger) *BufferPool {
	if lg == nil {
		lg = zap.NewNop()
	}

	frames := make([]*Page, poolSize)
	freeList := make([]int, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = newPage()
		freeList[i] = i
	}

	return &BufferPool{
		poolSize:    poolSize,
		frames:      frames,
		freeList:    freeList,
		pageTable:   hash.NewTable[uint64, int](pageTableBucketSize, hash.Uint64Hasher),
		replacer:    NewLRUKReplacer(poolSize, replacerK),
		diskManager: dm,
		nextPageID:  1,
		lg:          lg,
		metrics:     NewPoolMetrics(),
	}
}

// Metrics exposes the pool's counters for registration.
func (b *BufferPool) Metrics() *PoolMetrics {
	return b.metrics
}

// EmptyFrameSize returns the number of frames that hold no page at all.
func (b *BufferPool) EmptyFrameSize() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.freeList)
}

// acquireFrame returns a frame that is safe to load a page into. It pops the
// free list first, then falls back to evicting a replacer victim, writing the
// victim back to disk when dirty. Must be called with the pool lock held.
func (b *BufferPool) acquireFrame() (int, error) {
	if len(b.freeList) > 0 {
		f := b.freeList[0]
		b.freeList = b.freeList[1:]
		return f, nil
	}

	f, ok := b.replacer.Evict()
	if !ok {
		return 0, ErrNoAvailableFrame
	}

	victim := b.frames[f]
	if victim.GetPinCount() != 0 {
		panic(fmt.Sprintf("a page is chosen as victim while its pin count is not zero. pin count: %v, page_id: %v", victim.GetPinCount(), victim.GetPageId()))
	}

	if victim.IsDirty() {
		if err := b.diskManager.WritePage(victim.GetData(), victim.pageID); err != nil {
			// Hand the frame back to the replacer so a later call can retry.
			b.replacer.RecordAccess(f)
			b.replacer.SetEvictable(f, true)
			return 0, fmt.Errorf("writing back victim page %v failed: %w", victim.pageID, err)
		}
		victim.SetClean()
		b.metrics.Writebacks.Inc()
	}

	b.pageTable.Remove(victim.pageID)
	b.metrics.Evictions.Inc()
	b.lg.Debug("evicted page", zap.Uint64("pageID", victim.pageID), zap.Int("frame", f))
	return f, nil
}

func (b *BufferPool) NewPage() (*Page, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	f, err := b.acquireFrame()
	if err != nil {
		return nil, err
	}

	pid := b.nextPageID
	b.nextPageID++
	common.PanicIfErr(b.pageTable.Insert(pid, f))

	p := b.frames[f]
	p.reset()
	p.pageID = pid
	p.pinCount = 1

	b.replacer.RecordAccess(f)
	b.replacer.SetEvictable(f, false)
	return p, nil
}

func (b *BufferPool) FetchPage(pageID uint64) (*Page, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if f, ok := b.pageTable.Find(pageID); ok {
		p := b.frames[f]
		p.incrPinCount()
		b.replacer.RecordAccess(f)
		b.replacer.SetEvictable(f, false)
		b.metrics.Hits.Inc()
		return p, nil
	}

	f, err := b.acquireFrame()
	if err != nil {
		return nil, err
	}

	p := b.frames[f]
	if err := b.diskManager.ReadPage(pageID, p.GetData()); err != nil {
		p.reset()
		b.freeList = append(b.freeList, f)
		return nil, fmt.Errorf("reading page %v failed: %w", pageID, err)
	}

	common.PanicIfErr(b.pageTable.Insert(pageID, f))
	p.pageID = pageID
	p.pinCount = 1
	p.isDirty = false

	b.replacer.RecordAccess(f)
	b.replacer.SetEvictable(f, false)
	b.metrics.Misses.Inc()
	return p, nil
}

func (b *BufferPool) UnpinPage(pageID uint64, isDirty bool) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	f, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}

	p := b.frames[f]
	if p.GetPinCount() == 0 {
		return false
	}

	p.decrPinCount()
	if p.GetPinCount() == 0 {
		b.replacer.SetEvictable(f, true)
	}

	// Dirty is sticky: only a flush clears it.
	if isDirty {
		p.SetDirty()
	}
	return true
}

func (b *BufferPool) FlushPage(pageID uint64) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	f, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}

	b.flushFrame(f)
	return true
}

func (b *BufferPool) FlushAllPages() {
	b.lock.Lock()
	defer b.lock.Unlock()

	for f, p := range b.frames {
		if p.pageID != InvalidPageID {
			b.flushFrame(f)
		}
	}
}

// flushFrame writes the frame to disk whether or not it is dirty. Must be
// called with the pool lock held.
func (b *BufferPool) flushFrame(f int) {
	p := b.frames[f]
	common.PanicIfErr(b.diskManager.WritePage(p.GetData(), p.pageID))
	p.SetClean()
	b.metrics.Flushes.Inc()
}

func (b *BufferPool) DeletePage(pageID uint64) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	f, ok := b.pageTable.Find(pageID)
	if !ok {
		return true
	}

	p := b.frames[f]
	if p.GetPinCount() > 0 {
		return false
	}

	b.pageTable.Remove(pageID)
	b.replacer.Remove(f)
	b.freeList = append(b.freeList, f)
	p.reset()
	b.diskManager.DeallocatePage(pageID)
	b.lg.Debug("deleted page", zap.Uint64("pageID", pageID), zap.Int("frame", f))
	return true
}

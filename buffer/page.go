package buffer

import "ember/disk"

// InvalidPageID marks a frame that does not hold a physical page. Page id 0
// is never handed out; ids start from 1.
const InvalidPageID uint64 = 0

// Page is one frame of the buffer pool: a page sized byte buffer plus the
// bookkeeping the pool needs to decide when the frame can be reclaimed. A
// caller may use a Page only between a successful NewPage/FetchPage and the
// matching UnpinPage; keeping the pointer around after unpinning breaks the
// borrow protocol and the frame contents may change under it.
type Page struct {
	pageID   uint64
	pinCount int
	isDirty  bool
	data     []byte
}

func newPage() *Page {
	return &Page{
		pageID: InvalidPageID,
		data:   make([]byte, disk.PageSize),
	}
}

func (p *Page) GetPageId() uint64 {
	return p.pageID
}

func (p *Page) GetPinCount() int {
	return p.pinCount
}

func (p *Page) IsDirty() bool {
	return p.isDirty
}

func (p *Page) SetDirty() {
	p.isDirty = true
}

func (p *Page) SetClean() {
	p.isDirty = false
}

// GetData returns the frame's backing buffer. Writes to it are what the pool
// flushes to disk.
func (p *Page) GetData() []byte {
	return p.data
}

func (p *Page) incrPinCount() {
	p.pinCount++
}

func (p *Page) decrPinCount() {
	p.pinCount--
}

// reset zeroes the frame and clears its metadata.
func (p *Page) reset() {
	p.pageID = InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	for i := range p.data {
		p.data[i] = 0
	}
}

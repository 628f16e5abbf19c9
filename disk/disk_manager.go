package disk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

const PageSize int = 4096

// FlushInstantly should normally be set to true. If it is false then data
// might be lost even after a successful write operation when power loss
// occurs before os flushes its io buffers. But when it is false tests run
// noticeably faster thanks to io scheduling of os. Setting it to false does
// not change the validity of any test unless a test is simulating power loss.
const FlushInstantly bool = false

// IDiskManager is the stable storage collaborator of the buffer pool. Page id
// allocation is not part of it; the pool assigns ids itself and deallocation
// is advisory.
type IDiskManager interface {
	ReadPage(pageID uint64, dest []byte) error
	WritePage(data []byte, pageID uint64) error
	DeallocatePage(pageID uint64)
	Close() error
}

var _ IDiskManager = &Manager{}

// Manager stores pages in a single file at offset pageID*PageSize. Page 0 is
// reserved for the header, which threads a linked list of deallocated pages
// through their first eight bytes.
type Manager struct {
	file     *os.File
	filename string
	mu       sync.Mutex
	header   *header
	lg       *zap.Logger
}

func NewDiskManager(file string, lg *zap.Logger) (*Manager, error) {
	if lg == nil {
		lg = zap.NewNop()
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, err
	}

	d := &Manager{file: f, filename: file, lg: lg}

	stats, err := f.Stat()
	if err != nil {
		return nil, err
	}

	lg.Info("disk manager initialized", zap.String("file", file), zap.Int64("size", stats.Size()))
	return d, nil
}

func (d *Manager) WritePage(data []byte, pageID uint64) error {
	if len(data) != PageSize {
		panic(fmt.Sprintf("writing %v bytes instead of a full page", len(data)))
	}

	if _, err := d.file.WriteAt(data, int64(PageSize)*int64(pageID)); err != nil {
		return err
	}

	if FlushInstantly {
		if err := d.file.Sync(); err != nil {
			panic(err)
		}
	}

	return nil
}

// ReadPage fills dest with the page's content. A page can be fetched before
// it was ever written back, in which case the read lands past the end of the
// file and dest is zeroed instead.
func (d *Manager) ReadPage(pageID uint64, dest []byte) error {
	if len(dest) != PageSize {
		panic(fmt.Sprintf("reading into %v bytes instead of a full page", len(dest)))
	}

	n, err := d.file.ReadAt(dest, int64(PageSize)*int64(pageID))
	if err == io.EOF {
		for i := n; i < PageSize; i++ {
			dest[i] = 0
		}
		return nil
	}

	return err
}

// DeallocatePage appends the page to the on-disk free list and sets it as
// tail. The buffer pool never reuses these ids, so this only records the
// information for offline tooling and keeps the file from being interpreted
// as fully live.
func (d *Manager) DeallocatePage(pageID uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.getHeader()

	if h.freeListHead == 0 {
		h.freeListHead = pageID
		h.freeListTail = pageID
		d.setHeader(h)
		return
	}

	// Thread the new tail through the old tail's first bytes. The old tail is
	// free, so overwriting its content is fine.
	data := make([]byte, PageSize)
	if err := d.ReadPage(h.freeListTail, data); err != nil {
		panic(err)
	}

	binary.BigEndian.PutUint64(data, pageID)
	if err := d.WritePage(data, h.freeListTail); err != nil {
		panic(err)
	}

	h.freeListTail = pageID
	d.setHeader(h)
	d.lg.Debug("deallocated page", zap.Uint64("pageID", pageID))
}

func (d *Manager) Close() error {
	return d.file.Close()
}

type header struct {
	freeListHead uint64
	freeListTail uint64
}

func (d *Manager) getHeader() header {
	if d.header != nil {
		return *d.header
	}

	data := make([]byte, PageSize)
	if err := d.ReadPage(0, data); err != nil {
		panic(err)
	}

	h := readHeader(data)
	d.header = &h
	return h
}

func (d *Manager) setHeader(h header) {
	d.header = &h
	page := make([]byte, PageSize)
	writeHeader(h, page)
	if err := d.WritePage(page, 0); err != nil {
		panic(err)
	}
}

func readHeader(data []byte) header {
	return header{
		freeListHead: binary.BigEndian.Uint64(data),
		freeListTail: binary.BigEndian.Uint64(data[8:]),
	}
}

func writeHeader(h header, dest []byte) {
	binary.BigEndian.PutUint64(dest, h.freeListHead)
	binary.BigEndian.PutUint64(dest[8:], h.freeListTail)
}

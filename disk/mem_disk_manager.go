package disk

import (
	"fmt"
	"sync"

	"github.com/golang/snappy"
)

var _ IDiskManager = &MemManager{}

// MemManager is an in memory implementation of IDiskManager for tests. Page
// images are stored snappy compressed, which keeps big-pool tests cheap and
// makes sure nothing hands out aliases of the stored buffers. It also counts
// writes per page so tests can assert on writeback behaviour.
type MemManager struct {
	mu          sync.Mutex
	pages       map[uint64][]byte
	writeCounts map[uint64]int
}

func NewMemManager() *MemManager {
	return &MemManager{
		pages:       map[uint64][]byte{},
		writeCounts: map[uint64]int{},
	}
}

func (m *MemManager) WritePage(data []byte, pageID uint64) error {
	if len(data) != PageSize {
		panic(fmt.Sprintf("writing %v bytes instead of a full page", len(data)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[pageID] = snappy.Encode(nil, data)
	m.writeCounts[pageID]++
	return nil
}

// ReadPage fills dest with the page's content, or zeroes it when the page was
// never written, matching the file backed manager's past-the-end reads.
func (m *MemManager) ReadPage(pageID uint64, dest []byte) error {
	if len(dest) != PageSize {
		panic(fmt.Sprintf("reading into %v bytes instead of a full page", len(dest)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, ok := m.pages[pageID]
	if !ok {
		for i := range dest {
			dest[i] = 0
		}
		return nil
	}

	data, err := snappy.Decode(nil, encoded)
	if err != nil {
		return fmt.Errorf("corrupt page %v: %w", pageID, err)
	}

	copy(dest, data)
	return nil
}

func (m *MemManager) DeallocatePage(pageID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pages, pageID)
}

func (m *MemManager) Close() error {
	return nil
}

// WriteCount returns how many times the page was written.
func (m *MemManager) WriteCount(pageID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeCounts[pageID]
}

// Package extent groups pages into extents for locality and routes
// per-table allocations into them, per spec.md §4.3.
package extent

import (
	"strings"
	"sync"
)

const DefaultExtentSize = 64

// PageAllocator is the page-manager contract the extent manager sits
// above.
type PageAllocator interface {
	Allocate() (uint64, error)
	Deallocate(id uint64) error
}

// Meta describes one extent's page range and membership.
type Meta struct {
	ID         uint64
	StartPage  uint64
	Size       int
	Tablespace string
	Allocated  map[uint64]bool
}

func (m *Meta) EndPage() uint64 { return m.StartPage + uint64(m.Size) - 1 }
func (m *Meta) IsFull() bool    { return len(m.Allocated) >= m.Size }
func (m *Meta) IsEmpty() bool   { return len(m.Allocated) == 0 }

var largeTablePatterns = []string{"large", "big", "user", "log", "data", "main"}

// Manager implements the heuristic, advisory routing layer above the
// page manager.
type Manager struct {
	mu         sync.Mutex
	pages      PageAllocator
	extentSize int
	extents    map[uint64]*Meta
	pageToExt  map[uint64]uint64
	nextID     uint64
}

func New(pages PageAllocator, extentSize int) *Manager {
	if extentSize <= 0 {
		extentSize = DefaultExtentSize
	}
	return &Manager{
		pages:      pages,
		extentSize: extentSize,
		extents:    map[uint64]*Meta{},
		pageToExt:  map[uint64]uint64{},
		nextID:     1,
	}
}

// AllocateSmart implements the allocate_page_smart decision tree from
// spec.md §4.3.
func (m *Manager) AllocateSmart(tableName, tablespace string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tableName == "" || tableName == "unknown" {
		return m.pages.Allocate()
	}

	if id, ok := m.tryExistingExtent(tablespace); ok {
		return id, nil
	}

	if m.shouldCreateNewExtent(tableName) {
		return m.createExtentAndAllocate(tableName, tablespace)
	}

	return m.pages.Allocate()
}

func (m *Manager) tryExistingExtent(tablespace string) (uint64, bool) {
	for _, ext := range m.extents {
		if ext.Tablespace != tablespace || ext.IsFull() {
			continue
		}
		for off := uint64(0); off < uint64(ext.Size); off++ {
			candidate := ext.StartPage + off
			if !ext.Allocated[candidate] {
				ext.Allocated[candidate] = true
				m.pageToExt[candidate] = ext.ID
				return candidate, true
			}
		}
	}
	return 0, false
}

func (m *Manager) shouldCreateNewExtent(tableName string) bool {
	if len(m.extents) == 0 {
		return true
	}
	lower := strings.ToLower(tableName)
	for _, p := range largeTablePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (m *Manager) createExtentAndAllocate(tableName, tablespace string) (uint64, error) {
	first, err := m.pages.Allocate()
	if err != nil {
		return 0, err
	}

	ext := &Meta{
		ID:         m.nextID,
		StartPage:  first,
		Size:       m.extentSize,
		Tablespace: tablespace,
		Allocated:  map[uint64]bool{first: true},
	}
	m.nextID++
	m.extents[ext.ID] = ext
	m.pageToExt[first] = ext.ID

	m.preallocate(ext, 3)
	return first, nil
}

// preallocate grows the extent's declared range as needed to cover
// non-contiguous new pages, since physical contiguity is not
// guaranteed by the underlying page manager.
func (m *Manager) preallocate(ext *Meta, count int) {
	for i := 0; i < count; i++ {
		id, err := m.pages.Allocate()
		if err != nil {
			return
		}
		if id < ext.StartPage {
			grow := ext.StartPage - id
			ext.StartPage = id
			ext.Size += int(grow)
		} else if id > ext.EndPage() {
			ext.Size = int(id-ext.StartPage) + 1
		}
		ext.Allocated[id] = true
		m.pageToExt[id] = ext.ID
	}
}

// DeallocateSmart removes a page from its owning extent (recycling the
// extent if it becomes empty) before delegating to the page manager.
func (m *Manager) DeallocateSmart(pageID uint64) error {
	m.mu.Lock()
	if extID, ok := m.pageToExt[pageID]; ok {
		ext := m.extents[extID]
		delete(ext.Allocated, pageID)
		delete(m.pageToExt, pageID)
		if ext.IsEmpty() {
			delete(m.extents, extID)
		}
	}
	m.mu.Unlock()

	return m.pages.Deallocate(pageID)
}

func (m *Manager) Stats() (extentCount, mappedPages int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.extents), len(m.pageToExt)
}

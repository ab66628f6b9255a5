// Package pagemgr allocates, frees, and reads/writes fixed-size pages
// on disk across tablespace files, and persists the free/allocated
// page bookkeeping as JSON.
package pagemgr

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

const (
	PageSize = 4096
	MaxPages = 1 << 24
)

// metadata is the on-disk JSON shape for a single tablespace's page
// bookkeeping, matching the external-interface contract in spec.md §6.
type metadata struct {
	NextPageID      uint64            `json:"next_page_id"`
	FreePages       []uint64          `json:"free_pages"`
	AllocatedPages  []uint64          `json:"allocated_pages"`
	PageUsage       map[uint64]int64  `json:"page_usage"`
	LastModification int64            `json:"last_modification"`
	Version         int               `json:"version"`
}

func newMetadata() *metadata {
	return &metadata{
		NextPageID:     1,
		FreePages:      []uint64{},
		AllocatedPages: []uint64{},
		PageUsage:      map[uint64]int64{},
		Version:        1,
	}
}

// Manager owns one tablespace's backing data file and metadata file.
type Manager struct {
	mu       sync.Mutex
	dataPath string
	metaPath string
	file     *os.File
	meta     *metadata
	alloc    map[uint64]bool
	free     map[uint64]bool
}

// Open opens (creating if absent) the data and metadata files for a
// tablespace.
func Open(dataPath, metaPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return nil, errors.Annotate(err, "pagemgr: create data dir")
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return nil, errors.Annotate(err, "pagemgr: create meta dir")
	}

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Annotate(err, "pagemgr: open data file")
	}

	m := &Manager{dataPath: dataPath, metaPath: metaPath, file: f}
	m.loadMetadata()
	return m, nil
}

func (m *Manager) loadMetadata() {
	data, err := os.ReadFile(m.metaPath)
	if err != nil {
		m.meta = newMetadata()
		m.rebuildIndexes()
		return
	}

	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		// Corruption: back up and reset, per spec.md §4.1 failure semantics.
		logger.Errorf("pagemgr: corrupt metadata at %s, backing up: %v", m.metaPath, err)
		_ = os.Rename(m.metaPath, m.metaPath+".backup")
		m.meta = newMetadata()
		m.rebuildIndexes()
		return
	}
	if md.PageUsage == nil {
		md.PageUsage = map[uint64]int64{}
	}
	m.meta = &md
	m.rebuildIndexes()
}

func (m *Manager) rebuildIndexes() {
	m.alloc = make(map[uint64]bool, len(m.meta.AllocatedPages))
	for _, p := range m.meta.AllocatedPages {
		m.alloc[p] = true
	}
	m.free = make(map[uint64]bool, len(m.meta.FreePages))
	for _, p := range m.meta.FreePages {
		m.free[p] = true
	}
}

func (m *Manager) saveMetadata() error {
	m.meta.AllocatedPages = keysSorted(m.alloc)
	m.meta.FreePages = keysSorted(m.free)

	data, err := json.MarshalIndent(m.meta, "", "  ")
	if err != nil {
		return errors.Annotate(err, "pagemgr: marshal metadata")
	}
	tmp := m.metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "pagemgr: write temp metadata")
	}
	if err := os.Rename(tmp, m.metaPath); err != nil {
		return errors.Annotate(err, "pagemgr: rename metadata")
	}
	return nil
}

func keysSorted(m map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Allocate reuses the smallest freed page id if one exists, otherwise
// increments the next-id counter. Fails once the allocated count hits
// MaxPages.
func (m *Manager) Allocate() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.alloc) >= MaxPages {
		return 0, errors.Annotate(errs.ErrMaxPagesExceeded, "pagemgr: allocate")
	}

	var id uint64
	if len(m.free) > 0 {
		min := keysSorted(m.free)[0]
		delete(m.free, min)
		id = min
	} else {
		id = m.meta.NextPageID
		m.meta.NextPageID++
	}

	m.alloc[id] = true
	m.meta.PageUsage[id] = 0
	if err := m.saveMetadata(); err != nil {
		return 0, err
	}
	return id, nil
}

// Deallocate returns a page to the free list.
func (m *Manager) Deallocate(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.alloc[id] {
		return errors.Annotate(errs.ErrPageNotAllocated, "pagemgr: deallocate")
	}
	delete(m.alloc, id)
	m.free[id] = true
	delete(m.meta.PageUsage, id)
	return m.saveMetadata()
}

// IsAllocated reports whether id is currently allocated.
func (m *Manager) IsAllocated(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alloc[id]
}

// AllocatedPages returns a snapshot of allocated page ids.
func (m *Manager) AllocatedPages() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return keysSorted(m.alloc)
}

// Read returns exactly PageSize bytes for id, zero-padding short
// reads. Reading an unallocated id is permitted and returns zeroes.
func (m *Manager) Read(id uint64) ([]byte, error) {
	if id == 0 {
		return nil, errors.Annotate(errs.ErrInvalidPageID, "pagemgr: read")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, PageSize)
	off := int64(id-1) * PageSize
	n, err := m.file.ReadAt(buf, off)
	if err != nil && n == 0 {
		// EOF on an unallocated/never-written page: zero page is valid.
		return buf, nil
	}
	if err != nil && err != io.EOF {
		return nil, errors.Annotate(err, "pagemgr: read")
	}
	m.meta.PageUsage[id] = m.meta.PageUsage[id] + 1
	return buf, nil
}

// Write truncates/pads data to PageSize and fsyncs it to disk at the
// computed offset.
func (m *Manager) Write(id uint64, data []byte) error {
	if id == 0 {
		return errors.Annotate(errs.ErrInvalidPageID, "pagemgr: write")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, PageSize)
	copy(buf, data)

	off := int64(id-1) * PageSize
	if _, err := m.file.WriteAt(buf, off); err != nil {
		return errors.Annotate(err, "pagemgr: write")
	}
	if err := m.file.Sync(); err != nil {
		return errors.Annotate(err, "pagemgr: fsync")
	}
	m.meta.PageUsage[id] = m.meta.PageUsage[id] + 1
	return nil
}

// Close flushes metadata and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveMetadata(); err != nil {
		logger.Errorf("pagemgr: save metadata on close: %v", err)
	}
	return m.file.Close()
}

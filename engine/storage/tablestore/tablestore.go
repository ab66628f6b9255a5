// Package tablestore maps each table to its ordered list of backing
// page ids, independent of record format or schema, per SPEC_FULL.md
// §4.15 (supplemented feature, grounded on table_storage.py).
package tablestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/page"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

// PageStore is the subset of the storage manager the table-page
// mapper needs.
type PageStore interface {
	Allocate() (uint64, error)
	Deallocate(pageID uint64) error
	Read(pageID uint64) ([]byte, error)
	Write(pageID uint64, data []byte) error
	AllocatedPages() []uint64
}

type metadata struct {
	TableName            string  `json:"table_name"`
	Pages                []uint64 `json:"pages"`
	EstimatedRecordSize  int     `json:"estimated_record_size"`
	CreatedTime          float64 `json:"created_time"`
	LastModified         float64 `json:"last_modified"`
	TotalPageAllocations int     `json:"total_page_allocations"`
	TotalPageReads       int     `json:"total_page_reads"`
	TotalPageWrites      int     `json:"total_page_writes"`
}

func newMetadata(tableName string, estimatedRecordSize int) *metadata {
	now := nowSeconds()
	return &metadata{TableName: tableName, EstimatedRecordSize: estimatedRecordSize, CreatedTime: now, LastModified: now}
}

func (m *metadata) addPage(pageID uint64) {
	for _, p := range m.Pages {
		if p == pageID {
			return
		}
	}
	m.Pages = append(m.Pages, pageID)
	m.TotalPageAllocations++
	m.LastModified = nowSeconds()
}

func nowSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }

type catalogFile struct {
	Version     string      `json:"version"`
	CreatedTime float64     `json:"created_time"`
	TableCount  int         `json:"table_count"`
	Tables      []*metadata `json:"tables"`
}

// Store maps table names to their page lists, persisted as a JSON
// catalog alongside the other storage-layer metadata files.
type Store struct {
	mu          sync.Mutex
	store       PageStore
	catalogPath string
	tables      map[string]*metadata
}

func New(store PageStore, catalogPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(catalogPath), 0o755); err != nil {
		return nil, errors.Annotate(err, "tablestore: create dir")
	}
	s := &Store{store: store, catalogPath: catalogPath, tables: map[string]*metadata{}}
	s.loadCatalog()
	logger.Infof("tablestore: initialized with %d tables", len(s.tables))
	return s, nil
}

func (s *Store) loadCatalog() {
	data, err := os.ReadFile(s.catalogPath)
	if err != nil {
		return
	}
	var cf catalogFile
	if json.Unmarshal(data, &cf) != nil {
		logger.Errorf("tablestore: failed to parse catalog %s", s.catalogPath)
		return
	}
	for _, md := range cf.Tables {
		s.tables[md.TableName] = md
	}
}

func (s *Store) saveCatalogLocked() error {
	cf := catalogFile{Version: "1.0", CreatedTime: nowSeconds(), TableCount: len(s.tables)}
	for _, md := range s.tables {
		cf.Tables = append(cf.Tables, md)
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return errors.Annotate(err, "tablestore: marshal catalog")
	}
	tmp := s.catalogPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "tablestore: write catalog temp")
	}
	return os.Rename(tmp, s.catalogPath)
}

// CreateTableStorage allocates the table's first page and persists an
// empty canonical page image into it.
func (s *Store) CreateTableStorage(tableName string, estimatedRecordSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[tableName]; exists {
		return errors.Annotatef(errs.ErrTableExists, "table %q", tableName)
	}
	if estimatedRecordSize <= 0 {
		estimatedRecordSize = 1024
	}

	pageID, err := s.store.Allocate()
	if err != nil {
		return err
	}
	if err := s.store.Write(pageID, page.CreateEmpty()); err != nil {
		return err
	}

	md := newMetadata(tableName, estimatedRecordSize)
	md.addPage(pageID)
	s.tables[tableName] = md
	if err := s.saveCatalogLocked(); err != nil {
		return err
	}
	logger.Infof("tablestore: created storage for %q with initial page %d", tableName, pageID)
	return nil
}

func (s *Store) DropTableStorage(tableName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.tables[tableName]
	if !ok {
		return errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}
	for _, pageID := range md.Pages {
		if err := s.store.Deallocate(pageID); err != nil {
			logger.Warnf("tablestore: deallocate page %d for %q: %v", pageID, tableName, err)
		}
	}
	delete(s.tables, tableName)
	if err := s.saveCatalogLocked(); err != nil {
		return err
	}
	logger.Infof("tablestore: dropped storage for %q, freed %d pages", tableName, len(md.Pages))
	return nil
}

func (s *Store) GetTablePages(tableName string) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.tables[tableName]
	if !ok {
		return nil, errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}
	return append([]uint64{}, md.Pages...), nil
}

func (s *Store) AllocateTablePage(tableName string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.tables[tableName]
	if !ok {
		return 0, errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}

	pageID, err := s.store.Allocate()
	if err != nil {
		return 0, err
	}
	if err := s.store.Write(pageID, page.CreateEmpty()); err != nil {
		return 0, err
	}
	md.addPage(pageID)
	if err := s.saveCatalogLocked(); err != nil {
		return 0, err
	}
	return pageID, nil
}

func (s *Store) ReadTablePage(tableName string, pageIndex int) ([]byte, error) {
	s.mu.Lock()
	md, ok := s.tables[tableName]
	if !ok {
		s.mu.Unlock()
		return nil, errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}
	if pageIndex < 0 || pageIndex >= len(md.Pages) {
		s.mu.Unlock()
		return nil, errors.Errorf("tablestore: page index %d out of range for table %q", pageIndex, tableName)
	}
	pageID := md.Pages[pageIndex]
	md.TotalPageReads++
	s.mu.Unlock()

	return s.store.Read(pageID)
}

func (s *Store) WriteTablePage(tableName string, pageIndex int, data []byte) error {
	s.mu.Lock()
	md, ok := s.tables[tableName]
	if !ok {
		s.mu.Unlock()
		return errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}
	if pageIndex < 0 || pageIndex >= len(md.Pages) {
		s.mu.Unlock()
		return errors.Errorf("tablestore: page index %d out of range for table %q", pageIndex, tableName)
	}
	pageID := md.Pages[pageIndex]
	md.TotalPageWrites++
	md.LastModified = nowSeconds()
	s.mu.Unlock()

	return s.store.Write(pageID, data)
}

func (s *Store) TablePageCount(tableName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.tables[tableName]
	if !ok {
		return 0, errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}
	return len(md.Pages), nil
}

func (s *Store) TableExists(tableName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[tableName]
	return ok
}

func (s *Store) ListTables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	return out
}

// OptimizeTableStorage drops page references that are no longer
// allocated in the underlying page store.
func (s *Store) OptimizeTableStorage(tableName string) (removed, remaining int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.tables[tableName]
	if !ok {
		return 0, 0, errors.Annotatef(errs.ErrTableNotFound, "table %q", tableName)
	}

	allocated := map[uint64]bool{}
	for _, p := range s.store.AllocatedPages() {
		allocated[p] = true
	}
	valid := md.Pages[:0:0]
	for _, p := range md.Pages {
		if allocated[p] {
			valid = append(valid, p)
		}
	}
	removed = len(md.Pages) - len(valid)
	md.Pages = valid
	if removed > 0 {
		if err := s.saveCatalogLocked(); err != nil {
			return removed, len(valid), err
		}
		logger.Infof("tablestore: cleaned up %d invalid pages for %q", removed, tableName)
	}
	return removed, len(valid), nil
}

func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveCatalogLocked(); err != nil {
		logger.Errorf("tablestore: shutdown save failed: %v", err)
	}
}

// Package storage composes the page manager, buffer pool, extent and
// tablespace managers, WAL, lock manager, and transaction manager into
// one facade, per spec.md §4.9.
package storage

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/bufferpool"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/extent"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/lockmgr"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/page"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/pagemgr"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/tablespace"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/txn"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/wal"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

type Config struct {
	DataDir            string
	BufferCapacity     int
	BufferKind         bufferpool.Kind
	EnableExtents      bool
	EnableWAL          bool
	EnableConcurrency  bool
	AutoFlushInterval  time.Duration
	WALSyncMode        wal.SyncMode
	CheckpointInterval int
	LockTimeout        time.Duration
}

func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir: dataDir, BufferCapacity: 128, BufferKind: bufferpool.KindAdaptive,
		EnableExtents: true, EnableWAL: true, EnableConcurrency: true,
		AutoFlushInterval: 30 * time.Second, WALSyncMode: wal.SyncFsync,
		CheckpointInterval: 1000, LockTimeout: lockmgr.DefaultTimeout,
	}
}

// Manager is the storage facade: it owns the page manager, buffer pool,
// extents, tablespaces, WAL, locks and transactions, and offers cached
// and transactional page access. Not every path goes through it: table
// storage and startup recovery use the raw page manager (see Pages and
// pageWriterAdapter), and the catalog writes its own JSON file.
type Manager struct {
	cfg Config

	mu sync.RWMutex

	pages      *pagemgr.Manager
	pool       *bufferpool.Pool
	extents    *extent.Manager
	tablespace *tablespace.Manager
	walWriter  *wal.Writer
	checkpoint *wal.CheckpointManager
	locks      *lockmgr.Manager
	txns       *txn.Manager

	isShutdown bool

	contextMu    sync.Mutex
	tableContext string

	operationCount uint64
	readCount      uint64
	writeCount     uint64
	flushCount     uint64
	startTime      time.Time
	lastFlushTime  time.Time

	stopAutoFlush chan struct{}
}

func Open(cfg Config) (*Manager, error) {
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = 128
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Annotate(err, "storage: create data dir")
	}

	tsMgr, err := tablespace.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	pages, err := pagemgr.Open(filepath.Join(cfg.DataDir, "database.db"), filepath.Join(cfg.DataDir, "metadata.json"))
	if err != nil {
		return nil, err
	}

	pool, err := bufferpool.New(cfg.BufferCapacity, cfg.BufferKind)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg: cfg, pages: pages, pool: pool, tablespace: tsMgr,
		startTime: time.Now(), lastFlushTime: time.Now(),
	}

	if cfg.EnableExtents {
		m.extents = extent.New(pages, extent.DefaultExtentSize)
	}

	if cfg.EnableConcurrency {
		m.locks = lockmgr.New(cfg.LockTimeout)
	}

	if cfg.EnableWAL {
		walDir := filepath.Join(cfg.DataDir, "wal")
		w, err := wal.NewWriter(wal.WriterConfig{Dir: walDir, SyncMode: cfg.WALSyncMode})
		if err != nil {
			return nil, err
		}
		m.walWriter = w
		m.checkpoint = wal.NewCheckpointManager(w, wal.CheckpointConfig{
			Dir: walDir, CheckpointInterval: cfg.CheckpointInterval, AutoCheckpoint: true,
		})

		rm := wal.NewRecoveryManager(walDir, pageWriterAdapter{pages})
		if _, err := rm.Recover(); err != nil {
			logger.Errorf("storage: recovery failed: %v", err)
		}
	}

	m.txns = txn.NewManager(managerPageStore{m}, m.locks, filepath.Join(cfg.DataDir, "transaction_history.json"))

	if cfg.AutoFlushInterval > 0 {
		m.startAutoFlush()
	}

	logger.Infof("storage: manager initialized buffer_capacity=%d extents=%v wal=%v concurrency=%v",
		cfg.BufferCapacity, cfg.EnableExtents, cfg.EnableWAL, cfg.EnableConcurrency)
	return m, nil
}

// pageWriterAdapter satisfies wal.PageWriter with the raw page manager.
type pageWriterAdapter struct{ pages *pagemgr.Manager }

func (a pageWriterAdapter) Write(pageID uint64, data []byte) error { return a.pages.Write(pageID, data) }
func (a pageWriterAdapter) Read(pageID uint64) ([]byte, error)     { return a.pages.Read(pageID) }

// managerPageStore adapts Manager to txn.PageStore, routing through
// the cache-aware ReadPage/WritePage/FlushPage paths rather than the
// raw page manager, per DESIGN.md's decision to keep transactional
// reads/writes consistently routed through TransactionManager.
type managerPageStore struct{ m *Manager }

func (s managerPageStore) ReadPage(pageID uint64) ([]byte, error)  { return s.m.ReadPage(pageID) }
func (s managerPageStore) WritePage(pageID uint64, data []byte) error { return s.m.WritePage(pageID, data) }
func (s managerPageStore) FlushPage(pageID uint64) error           { _, err := s.m.FlushPage(pageID); return err }

func (m *Manager) startAutoFlush() {
	m.stopAutoFlush = make(chan struct{})
	go func() {
		ticker := time.NewTicker(m.cfg.AutoFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.autoFlushIfNeeded()
			case <-m.stopAutoFlush:
				return
			}
		}
	}()
}

func (m *Manager) autoFlushIfNeeded() {
	m.mu.RLock()
	shutdown := m.isShutdown
	m.mu.RUnlock()
	if shutdown {
		return
	}
	n, err := m.FlushAllPages()
	if err != nil {
		logger.Errorf("storage: auto flush failed: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("storage: auto flush completed pages_flushed=%d", n)
	}
}

func (m *Manager) checkShutdown() error {
	if m.isShutdown {
		return errors.New("storage: manager is shut down")
	}
	return nil
}

func (m *Manager) ReadPage(pageID uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShutdown(); err != nil {
		return nil, err
	}
	m.operationCount++
	m.readCount++

	if frame, ok := m.pool.Get(pageID); ok {
		return frame.Data, nil
	}

	data, err := m.pages.Read(pageID)
	if err != nil {
		return nil, err
	}
	m.pool.Put(pageID, data, false)
	return data, nil
}

func (m *Manager) WritePage(pageID uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShutdown(); err != nil {
		return err
	}
	m.operationCount++
	m.writeCount++

	if m.walWriter != nil {
		rec := wal.Record{Type: wal.PageWrite, PageID: uint32(pageID), Data: data}
		if _, err := m.walWriter.Write(rec, false); err != nil {
			return errors.Annotate(err, "storage: wal write")
		}
	}

	padded := make([]byte, page.Size)
	copy(padded, data)

	m.pool.Put(pageID, padded, true)
	return nil
}

func (m *Manager) SetTableContext(tableName string) {
	m.contextMu.Lock()
	defer m.contextMu.Unlock()
	m.tableContext = tableName
}

func (m *Manager) ClearTableContext() {
	m.contextMu.Lock()
	defer m.contextMu.Unlock()
	m.tableContext = ""
}

func (m *Manager) CurrentTableContext() string {
	m.contextMu.Lock()
	defer m.contextMu.Unlock()
	return m.tableContext
}

// WithTableContext runs fn with the table context set, restoring the
// previous context afterward, mirroring the Python TableContext
// context manager.
func (m *Manager) WithTableContext(tableName string, fn func() error) error {
	prev := m.CurrentTableContext()
	m.SetTableContext(tableName)
	defer func() {
		if prev == "" {
			m.ClearTableContext()
		} else {
			m.SetTableContext(prev)
		}
	}()
	return fn()
}

func (m *Manager) AllocatePage(tablespaceName, tableName string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShutdown(); err != nil {
		return 0, err
	}

	if tablespaceName == "" {
		tablespaceName = tablespace.DefaultName
	}
	effectiveTable := tableName
	if effectiveTable == "" {
		effectiveTable = m.CurrentTableContext()
	}
	if effectiveTable == "" {
		effectiveTable = "unknown"
	}

	var pageID uint64
	var err error
	if m.extents != nil {
		pageID, err = m.extents.AllocateSmart(effectiveTable, tablespaceName)
	} else {
		pageID, err = m.pages.Allocate()
	}
	if err != nil {
		return 0, err
	}
	logger.Infof("storage: allocated page %d for table %q in tablespace %q", pageID, effectiveTable, tablespaceName)
	return pageID, nil
}

// AllocatePageForTable chooses a tablespace via the tablespace
// manager's routing heuristic before allocating.
func (m *Manager) AllocatePageForTable(tableName string) (uint64, error) {
	tsName, err := m.tablespace.AllocateForTable(tableName, "")
	if err != nil {
		return 0, err
	}
	return m.AllocatePage(tsName, tableName)
}

func (m *Manager) DeallocatePage(pageID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShutdown(); err != nil {
		return err
	}

	if data, dirty, ok := m.pool.Remove(pageID); ok && dirty {
		if err := m.pages.Write(pageID, data); err != nil {
			logger.Errorf("storage: flush before dealloc page %d: %v", pageID, err)
		}
	}

	if m.extents != nil {
		return m.extents.DeallocateSmart(pageID)
	}
	return m.pages.Deallocate(pageID)
}

func (m *Manager) FlushPage(pageID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShutdown(); err != nil {
		return false, err
	}

	data, dirty, ok := m.pool.Remove(pageID)
	if !ok {
		return false, nil
	}
	if !dirty {
		m.pool.Put(pageID, data, false)
		return false, nil
	}
	if err := m.pages.Write(pageID, data); err != nil {
		return false, err
	}
	m.pool.Put(pageID, data, false)
	return true, nil
}

func (m *Manager) FlushAllPages() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShutdown(); err != nil {
		return 0, err
	}

	dirty := m.pool.FlushAll()
	for pageID, data := range dirty {
		if err := m.pages.Write(pageID, data); err != nil {
			return 0, err
		}
	}
	m.flushCount++
	m.lastFlushTime = time.Now()
	return len(dirty), nil
}

// ReadPageTransactional honors the transaction's isolation level: it
// acquires a shared lock (unless READ UNCOMMITTED), checks for an
// MVCC-visible version, and falls back to the physical page.
func (m *Manager) ReadPageTransactional(txnID, pageID uint64) ([]byte, error) {
	if err := m.txns.PrepareRead(txnID, pageID); err != nil {
		return nil, err
	}
	if data, ok := m.txns.VisibleVersion(txnID, pageID); ok {
		return data, nil
	}
	return m.ReadPage(pageID)
}

// WritePageTransactional routes locking and undo-logging through the
// transaction manager before performing the physical write, per
// DESIGN.md's decision to keep this path consistent rather than
// bypassing the transaction manager's locking.
func (m *Manager) WritePageTransactional(txnID, pageID uint64, data []byte) error {
	if err := m.txns.PrepareWrite(txnID, pageID); err != nil {
		return err
	}
	if err := m.WritePage(pageID, data); err != nil {
		return err
	}
	m.txns.RecordWrite(txnID, pageID, data)
	return nil
}

func (m *Manager) BeginTransaction(isolation txn.IsolationLevel) uint64 {
	return m.txns.Begin(isolation)
}

func (m *Manager) CommitTransaction(txnID uint64) error   { return m.txns.Commit(txnID) }
func (m *Manager) RollbackTransaction(txnID uint64) error { return m.txns.Rollback(txnID) }

func (m *Manager) Transactions() *txn.Manager { return m.txns }
func (m *Manager) Locks() *lockmgr.Manager    { return m.locks }
func (m *Manager) Tablespaces() *tablespace.Manager { return m.tablespace }
func (m *Manager) Pages() *pagemgr.Manager   { return m.pages }
func (m *Manager) Pool() *bufferpool.Pool    { return m.pool }

type Info struct {
	SystemStatus      string
	UptimeSeconds     float64
	OperationCount    uint64
	FlushCount        uint64
	CacheStatistics   bufferpool.Stats
	AllocatedPages    int
}

func (m *Manager) GetStorageInfo() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := "running"
	if m.isShutdown {
		status = "shutdown"
	}
	return Info{
		SystemStatus: status, UptimeSeconds: time.Since(m.startTime).Seconds(),
		OperationCount: m.operationCount, FlushCount: m.flushCount,
		CacheStatistics: m.pool.Statistics(), AllocatedPages: len(m.pages.AllocatedPages()),
	}
}

func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	logger.Infof("storage: shutdown starting")

	if m.txns != nil {
		m.txns.AbortAll()
	}

	if m.stopAutoFlush != nil {
		close(m.stopAutoFlush)
	}

	if _, err := m.FlushAllPages(); err != nil {
		logger.Errorf("storage: final flush failed: %v", err)
	}

	if m.checkpoint != nil {
		m.checkpoint.Stop()
	}
	if m.walWriter != nil {
		if err := m.walWriter.Close(); err != nil {
			logger.Errorf("storage: wal close failed: %v", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pages.Close(); err != nil {
		m.isShutdown = true
		return errors.Annotate(err, "storage: shutdown")
	}
	m.isShutdown = true
	logger.Infof("storage: shutdown completed uptime=%s operations=%d flushes=%d",
		time.Since(m.startTime), m.operationCount, m.flushCount)
	return nil
}

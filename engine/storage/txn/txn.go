// Package txn implements transaction bookkeeping: undo/redo logs, MVCC
// version chains, isolation-level-aware read/write preparation, and
// commit/rollback, per spec.md §4.8.
package txn

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/lockmgr"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

type State string

const (
	StateActive    State = "ACTIVE"
	StateCommitted State = "COMMITTED"
	StateAborted   State = "ABORTED"
)

type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

// PageStore is the subset of the storage manager facade the
// transaction manager needs: raw page read/write plus a flush hook
// invoked at commit time.
type PageStore interface {
	ReadPage(pageID uint64) ([]byte, error)
	WritePage(pageID uint64, data []byte) error
	FlushPage(pageID uint64) error
}

type undoEntry struct {
	PageID  uint64
	OldData []byte
}

type versionEntry struct {
	TxnID     uint64
	Data      []byte
	TimestampMicros int64
}

// Transaction tracks one in-flight unit of work: its undo log (for
// rollback), the set of pages it modified, and its isolation level.
type Transaction struct {
	ID              uint64
	State           State
	Isolation       IsolationLevel
	StartTime       time.Time
	EndTime         time.Time
	modifiedPages   map[uint64]bool
	undoLog         []undoEntry
	readSet         map[uint64]bool
	writeSet        map[uint64]bool
}

func newTransaction(id uint64, isolation IsolationLevel) *Transaction {
	return &Transaction{
		ID: id, State: StateActive, Isolation: isolation, StartTime: time.Now(),
		modifiedPages: map[uint64]bool{}, readSet: map[uint64]bool{}, writeSet: map[uint64]bool{},
	}
}

type historyEntry struct {
	TxnID     uint64  `json:"txn_id"`
	State     State   `json:"state"`
	Isolation int     `json:"isolation_level"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

const maxVersionsPerPage = 10
const maxHistoryEntries = 1000

// Manager coordinates active transactions, delegating page locking to
// a lockmgr.Manager and page I/O to a PageStore.
type Manager struct {
	mu sync.Mutex

	store   PageStore
	locks   *lockmgr.Manager
	active  map[uint64]*Transaction
	nextID  uint64

	versions map[uint64][]versionEntry

	history     []historyEntry
	historyPath string
}

func NewManager(store PageStore, locks *lockmgr.Manager, historyPath string) *Manager {
	m := &Manager{
		store: store, locks: locks,
		active: map[uint64]*Transaction{}, nextID: 1,
		versions: map[uint64][]versionEntry{}, historyPath: historyPath,
	}
	m.loadHistory()
	return m
}

func (m *Manager) loadHistory() {
	if m.historyPath == "" {
		return
	}
	data, err := os.ReadFile(m.historyPath)
	if err != nil {
		return
	}
	var hist []historyEntry
	if json.Unmarshal(data, &hist) != nil {
		return
	}
	m.history = hist
	var maxID uint64
	for _, h := range hist {
		if h.TxnID > maxID {
			maxID = h.TxnID
		}
	}
	m.nextID = maxID + 1
}

func (m *Manager) saveHistory() {
	if m.historyPath == "" {
		return
	}
	data, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		logger.Errorf("txn: marshal history: %v", err)
		return
	}
	if err := os.WriteFile(m.historyPath, data, 0o644); err != nil {
		logger.Errorf("txn: save history: %v", err)
	}
}

func (m *Manager) Begin(isolation IsolationLevel) uint64 {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	txn := newTransaction(id, isolation)
	m.active[id] = txn
	m.mu.Unlock()

	logger.Infof("txn: transaction %d started isolation=%d", id, isolation)
	return id
}

func (m *Manager) get(txnID uint64) (*Transaction, error) {
	txn, ok := m.active[txnID]
	if !ok {
		return nil, errors.Annotatef(errs.ErrTxnNotActive, "txn %d", txnID)
	}
	if txn.State != StateActive {
		return nil, errors.Annotatef(errs.ErrTxnNotActive, "txn %d", txnID)
	}
	return txn, nil
}

// PrepareWrite acquires an exclusive lock on pageID and, the first
// time this transaction touches the page, snapshots its current
// contents into the undo log.
func (m *Manager) PrepareWrite(txnID, pageID uint64) error {
	m.mu.Lock()
	txn, err := m.get(txnID)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if m.locks != nil && !m.locks.Acquire(txnID, pageID, lockmgr.Exclusive) {
		return errors.Annotatef(errs.ErrLockTimeout, "txn %d page %d", txnID, pageID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !txn.modifiedPages[pageID] {
		original, err := m.store.ReadPage(pageID)
		if err != nil {
			if m.locks != nil {
				m.locks.ReleaseAll(txnID)
			}
			return errors.Annotatef(err, "txn %d: read page %d for undo", txnID, pageID)
		}
		snapshot := append([]byte{}, original...)
		txn.undoLog = append(txn.undoLog, undoEntry{PageID: pageID, OldData: snapshot})
		txn.modifiedPages[pageID] = true
	}
	txn.writeSet[pageID] = true
	return nil
}

// PrepareRead acquires a shared lock unless the isolation level is
// READ UNCOMMITTED, which reads without locking.
func (m *Manager) PrepareRead(txnID, pageID uint64) error {
	m.mu.Lock()
	txn, err := m.get(txnID)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if txn.Isolation != ReadUncommitted && m.locks != nil {
		if !m.locks.Acquire(txnID, pageID, lockmgr.Shared) {
			return errors.Annotatef(errs.ErrLockTimeout, "txn %d page %d", txnID, pageID)
		}
	}

	m.mu.Lock()
	txn.readSet[pageID] = true
	m.mu.Unlock()
	return nil
}

// RecordWrite appends a version entry for pageID, trimming the chain
// to the most recent maxVersionsPerPage entries (the version cap
// spec.md §4.8 documents).
func (m *Manager) RecordWrite(txnID, pageID uint64, newData []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[txnID]; !ok {
		return
	}
	entries := append(m.versions[pageID], versionEntry{
		TxnID: txnID, Data: append([]byte{}, newData...), TimestampMicros: time.Now().UnixMicro(),
	})
	if len(entries) > maxVersionsPerPage {
		entries = entries[len(entries)-maxVersionsPerPage:]
	}
	m.versions[pageID] = entries
}

// VisibleVersion returns the page image this transaction should see
// under MVCC for pageID, or (nil, false) to fall back to the
// physically stored version.
func (m *Manager) VisibleVersion(txnID, pageID uint64) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.active[txnID]
	if !ok {
		return nil, false
	}
	entries := m.versions[pageID]
	if len(entries) == 0 {
		return nil, false
	}

	switch {
	case txn.Isolation == ReadUncommitted:
		return entries[len(entries)-1].Data, true

	case txn.Isolation == ReadCommitted:
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if e.TxnID == txnID {
				return e.Data, true
			}
			if _, stillActive := m.active[e.TxnID]; !stillActive {
				return e.Data, true
			}
		}

	default: // RepeatableRead, Serializable: snapshot at txn start
		startMicros := txn.StartTime.UnixMicro()
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].TimestampMicros <= startMicros {
				return entries[i].Data, true
			}
		}
	}
	return nil, false
}

// Commit flushes every page this transaction modified, releases its
// locks, and retires it from the active set.
func (m *Manager) Commit(txnID uint64) error {
	m.mu.Lock()
	txn, err := m.get(txnID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	pages := make([]uint64, 0, len(txn.modifiedPages))
	for p := range txn.modifiedPages {
		pages = append(pages, p)
	}
	m.mu.Unlock()

	for _, p := range pages {
		if err := m.store.FlushPage(p); err != nil {
			logger.Errorf("txn: commit %d: flush page %d failed: %v", txnID, p, err)
			_ = m.Rollback(txnID)
			return errors.Annotatef(errs.ErrCommitFailed, "txn %d: flush page %d: %v", txnID, p, err)
		}
	}

	m.mu.Lock()
	txn.State = StateCommitted
	txn.EndTime = time.Now()
	m.appendHistory(txn)
	delete(m.active, txnID)
	m.mu.Unlock()

	if m.locks != nil {
		m.locks.ReleaseAll(txnID)
	}
	logger.Infof("txn: transaction %d committed", txnID)
	return nil
}

// Rollback restores every page this transaction touched from its undo
// log, in reverse modification order, then discards the transaction.
func (m *Manager) Rollback(txnID uint64) error {
	m.mu.Lock()
	txn, ok := m.active[txnID]
	m.mu.Unlock()
	if !ok {
		m.mu.Lock()
		for _, h := range m.history {
			if h.TxnID == txnID && h.State == StateCommitted {
				m.mu.Unlock()
				return errors.Annotatef(errs.ErrIsolationViolation, "txn %d already committed", txnID)
			}
		}
		m.mu.Unlock()
		logger.Warnf("txn: rollback requested for inactive transaction %d", txnID)
		return nil
	}
	if txn.State == StateCommitted {
		return errors.Annotatef(errs.ErrIsolationViolation, "txn %d already committed", txnID)
	}

	txn.State = StateAborted
	for i := len(txn.undoLog) - 1; i >= 0; i-- {
		e := txn.undoLog[i]
		if err := m.store.WritePage(e.PageID, e.OldData); err != nil {
			logger.Errorf("txn: rollback %d: restore page %d failed: %v", txnID, e.PageID, err)
		}
	}

	m.mu.Lock()
	for pageID := range txn.modifiedPages {
		entries := m.versions[pageID]
		kept := entries[:0]
		for _, e := range entries {
			if e.TxnID != txnID {
				kept = append(kept, e)
			}
		}
		m.versions[pageID] = kept
	}
	txn.EndTime = time.Now()
	m.appendHistory(txn)
	delete(m.active, txnID)
	m.mu.Unlock()

	if m.locks != nil {
		m.locks.ReleaseAll(txnID)
	}
	logger.Infof("txn: transaction %d rolled back", txnID)
	return nil
}

func (m *Manager) appendHistory(txn *Transaction) {
	m.history = append(m.history, historyEntry{
		TxnID: txn.ID, State: txn.State, Isolation: int(txn.Isolation),
		StartTime: float64(txn.StartTime.UnixNano()) / 1e9,
		EndTime:   float64(txn.EndTime.UnixNano()) / 1e9,
	})
	if len(m.history) > maxHistoryEntries {
		m.history = m.history[len(m.history)-maxHistoryEntries:]
	}
	m.saveHistory()
}

func (m *Manager) ActiveTransactions() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	return out
}

// AbortAll rolls back every active transaction, used during shutdown.
func (m *Manager) AbortAll() {
	for _, id := range m.ActiveTransactions() {
		if err := m.Rollback(id); err != nil {
			logger.Errorf("txn: abort-all: rollback %d failed: %v", id, err)
		}
	}
}

type Stats struct {
	ActiveTransactions int
	NextTxnID          uint64
	TotalCommits       int
	TotalRollbacks     int
	VersionCount       int
}

func (m *Manager) Statistics() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var commits, rollbacks int
	for _, h := range m.history {
		switch h.State {
		case StateCommitted:
			commits++
		case StateAborted:
			rollbacks++
		}
	}
	versionCount := 0
	for _, v := range m.versions {
		versionCount += len(v)
	}
	return Stats{
		ActiveTransactions: len(m.active), NextTxnID: m.nextID,
		TotalCommits: commits, TotalRollbacks: rollbacks, VersionCount: versionCount,
	}
}

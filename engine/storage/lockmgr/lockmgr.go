// Package lockmgr implements page-granularity shared/exclusive locking
// with a busy-wait timeout, per spec.md §4.7.
package lockmgr

import (
	"sync"
	"time"

	"github.com/zhukovaskychina/xmysql-server/logger"
)

type LockType int

const (
	Shared LockType = iota
	Exclusive
)

func (t LockType) String() string {
	if t == Shared {
		return "S"
	}
	return "X"
}

type lockInfo struct {
	sHolders map[uint64]bool
	xHolder  uint64
	hasX     bool
}

type heldLock struct {
	pageID uint64
	typ    LockType
}

type Stats struct {
	LocksGranted      uint64
	LocksWaited       uint64
	LocksTimeout      uint64
	DeadlocksPrevented uint64
	ActiveLocks       int
	ActiveTransactions int
}

const (
	DefaultTimeout = 5 * time.Second
	pollInterval   = 10 * time.Millisecond
)

type Manager struct {
	mu       sync.Mutex
	locks    map[uint64]*lockInfo
	txnLocks map[uint64]map[heldLock]bool
	timeout  time.Duration

	locksGranted       uint64
	locksWaited        uint64
	locksTimeout       uint64
	deadlocksPrevented uint64
}

func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		locks:    map[uint64]*lockInfo{},
		txnLocks: map[uint64]map[heldLock]bool{},
		timeout:  timeout,
	}
}

// Acquire blocks until the lock is granted or the manager's timeout
// elapses. Unlike a loop that holds the mutex across the sleep, each
// retry releases the mutex before sleeping and reacquires it before
// re-checking grantability, so other transactions can make progress
// (and release locks) while this one waits, per spec.md §4.7's
// "busy-wait, yielding briefly" intent.
func (m *Manager) Acquire(txnID, pageID uint64, lockType LockType) bool {
	start := time.Now()
	waitCount := 0

	for {
		m.mu.Lock()
		info := m.infoFor(pageID)
		m.ensureTxnSet(txnID)

		if m.alreadyHolds(txnID, pageID, lockType) {
			m.mu.Unlock()
			return true
		}

		if m.canGrant(info, txnID, lockType) {
			m.grant(txnID, pageID, lockType, info)
			if waitCount > 0 {
				m.locksWaited++
				logger.Debugf("lockmgr: lock acquired after %d waits txn=%d page=%d type=%s",
					waitCount, txnID, pageID, lockType)
			} else {
				m.locksGranted++
			}
			m.mu.Unlock()
			return true
		}

		elapsed := time.Since(start)
		if elapsed > m.timeout {
			m.locksTimeout++
			m.deadlocksPrevented++
			m.mu.Unlock()
			logger.Warnf("lockmgr: timeout (possible deadlock prevented) txn=%d page=%d type=%s elapsed=%s",
				txnID, pageID, lockType, elapsed)
			return false
		}
		m.mu.Unlock()

		waitCount++
		time.Sleep(pollInterval)
	}
}

func (m *Manager) infoFor(pageID uint64) *lockInfo {
	info, ok := m.locks[pageID]
	if !ok {
		info = &lockInfo{sHolders: map[uint64]bool{}}
		m.locks[pageID] = info
	}
	return info
}

func (m *Manager) ensureTxnSet(txnID uint64) {
	if _, ok := m.txnLocks[txnID]; !ok {
		m.txnLocks[txnID] = map[heldLock]bool{}
	}
}

func (m *Manager) alreadyHolds(txnID, pageID uint64, lockType LockType) bool {
	for held := range m.txnLocks[txnID] {
		if held.pageID != pageID {
			continue
		}
		if held.typ == Exclusive {
			return true
		}
		if held.typ == Shared && lockType == Shared {
			return true
		}
	}
	return false
}

// canGrant implements the S/X compatibility matrix: S is compatible
// with S, X is compatible with nothing but the requester's own holds.
func (m *Manager) canGrant(info *lockInfo, txnID uint64, lockType LockType) bool {
	if lockType == Shared {
		return !info.hasX || info.xHolder == txnID
	}
	for holder := range info.sHolders {
		if holder != txnID {
			return false
		}
	}
	return !info.hasX || info.xHolder == txnID
}

func (m *Manager) grant(txnID, pageID uint64, lockType LockType, info *lockInfo) {
	if lockType == Shared {
		info.sHolders[txnID] = true
	} else {
		info.xHolder = txnID
		info.hasX = true
		delete(info.sHolders, txnID)
	}
	m.txnLocks[txnID][heldLock{pageID, lockType}] = true
}

func (m *Manager) ReleaseAll(txnID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.txnLocks[txnID]
	if !ok {
		return
	}

	released := 0
	for hl := range held {
		info, ok := m.locks[hl.pageID]
		if !ok {
			continue
		}
		if hl.typ == Shared {
			delete(info.sHolders, txnID)
		} else if info.xHolder == txnID {
			info.hasX = false
			info.xHolder = 0
		}
		released++
		if len(info.sHolders) == 0 && !info.hasX {
			delete(m.locks, hl.pageID)
		}
	}
	delete(m.txnLocks, txnID)
	if released > 0 {
		logger.Debugf("lockmgr: released %d locks for txn=%d", released, txnID)
	}
}

func (m *Manager) HeldByTransaction(txnID uint64) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pages []uint64
	for hl := range m.txnLocks[txnID] {
		pages = append(pages, hl.pageID)
	}
	return pages
}

func (m *Manager) Statistics() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, info := range m.locks {
		active += len(info.sHolders)
		if info.hasX {
			active++
		}
	}
	return Stats{
		LocksGranted: m.locksGranted, LocksWaited: m.locksWaited,
		LocksTimeout: m.locksTimeout, DeadlocksPrevented: m.deadlocksPrevented,
		ActiveLocks: active, ActiveTransactions: len(m.txnLocks),
	}
}

func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = map[uint64]*lockInfo{}
	m.txnLocks = map[uint64]map[heldLock]bool{}
}

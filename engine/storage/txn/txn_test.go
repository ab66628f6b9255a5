package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/engine/storage/lockmgr"
)

type fakeStore struct {
	pages map[uint64][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{pages: map[uint64][]byte{}}
}

func (f *fakeStore) ReadPage(pageID uint64) ([]byte, error) {
	data, ok := f.pages[pageID]
	if !ok {
		return make([]byte, 16), nil
	}
	return append([]byte{}, data...), nil
}

func (f *fakeStore) WritePage(pageID uint64, data []byte) error {
	f.pages[pageID] = append([]byte{}, data...)
	return nil
}

func (f *fakeStore) FlushPage(pageID uint64) error {
	return nil
}

func TestBeginAssignsIncreasingIDs(t *testing.T) {
	m := NewManager(newFakeStore(), nil, "")
	id1 := m.Begin(ReadCommitted)
	id2 := m.Begin(ReadCommitted)
	assert.Less(t, id1, id2)
}

func TestPrepareWriteSnapshotsOriginalOnFirstTouch(t *testing.T) {
	store := newFakeStore()
	store.pages[1] = []byte("original")
	m := NewManager(store, nil, "")
	txnID := m.Begin(ReadCommitted)

	require.NoError(t, m.PrepareWrite(txnID, 1))
	require.NoError(t, store.WritePage(1, []byte("changed")))
	require.NoError(t, m.PrepareWrite(txnID, 1))

	txn := m.active[txnID]
	require.Len(t, txn.undoLog, 1)
	assert.Equal(t, "original", string(txn.undoLog[0].OldData))
}

func TestCommitFlushesModifiedPagesAndReleasesLocks(t *testing.T) {
	locks := lockmgr.New(50_000_000)
	store := newFakeStore()
	m := NewManager(store, locks, "")
	txnID := m.Begin(ReadCommitted)

	require.NoError(t, m.PrepareWrite(txnID, 1))
	require.NoError(t, m.Commit(txnID))

	_, err := m.get(txnID)
	assert.Error(t, err)

	other := m.Begin(ReadCommitted)
	assert.NoError(t, m.PrepareWrite(other, 1))
}

func TestRollbackRestoresOriginalPageData(t *testing.T) {
	store := newFakeStore()
	store.pages[1] = []byte("original")
	m := NewManager(store, nil, "")
	txnID := m.Begin(ReadCommitted)

	require.NoError(t, m.PrepareWrite(txnID, 1))
	require.NoError(t, store.WritePage(1, []byte("dirty!!!")))
	require.NoError(t, m.Rollback(txnID))

	assert.Equal(t, "original", string(store.pages[1]))
}

func TestRollbackOnAlreadyCommittedTransactionFails(t *testing.T) {
	m := NewManager(newFakeStore(), nil, "")
	txnID := m.Begin(ReadCommitted)
	require.NoError(t, m.Commit(txnID))
	assert.Error(t, m.Rollback(txnID))
}

func TestVisibleVersionReadUncommittedSeesLatestWrite(t *testing.T) {
	m := NewManager(newFakeStore(), nil, "")
	writer := m.Begin(ReadCommitted)
	m.RecordWrite(writer, 1, []byte("v1"))
	m.RecordWrite(writer, 1, []byte("v2"))

	reader := m.Begin(ReadUncommitted)
	data, ok := m.VisibleVersion(reader, 1)
	require.True(t, ok)
	assert.Equal(t, "v2", string(data))
}

func TestVisibleVersionReadCommittedSkipsStillActiveWriter(t *testing.T) {
	m := NewManager(newFakeStore(), nil, "")
	writer := m.Begin(ReadCommitted)
	m.RecordWrite(writer, 1, []byte("uncommitted"))

	reader := m.Begin(ReadCommitted)
	_, ok := m.VisibleVersion(reader, 1)
	assert.False(t, ok)
}

func TestVisibleVersionReadCommittedSeesCommittedWrite(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, "")
	writer := m.Begin(ReadCommitted)
	require.NoError(t, m.PrepareWrite(writer, 1))
	m.RecordWrite(writer, 1, []byte("committed-data"))
	require.NoError(t, m.Commit(writer))

	reader := m.Begin(ReadCommitted)
	data, ok := m.VisibleVersion(reader, 1)
	require.True(t, ok)
	assert.Equal(t, "committed-data", string(data))
}

func TestAbortAllRollsBackEveryActiveTransaction(t *testing.T) {
	store := newFakeStore()
	store.pages[1] = []byte("clean")
	m := NewManager(store, nil, "")
	txnID := m.Begin(ReadCommitted)
	require.NoError(t, m.PrepareWrite(txnID, 1))
	require.NoError(t, store.WritePage(1, []byte("dirty-page!")))

	m.AbortAll()

	assert.Empty(t, m.ActiveTransactions())
	assert.Equal(t, "clean", string(store.pages[1]))
}

func TestStatisticsCountsCommitsAndRollbacks(t *testing.T) {
	m := NewManager(newFakeStore(), nil, "")
	committed := m.Begin(ReadCommitted)
	require.NoError(t, m.Commit(committed))
	rolledBack := m.Begin(ReadCommitted)
	require.NoError(t, m.Rollback(rolledBack))

	stats := m.Statistics()
	assert.Equal(t, 1, stats.TotalCommits)
	assert.Equal(t, 1, stats.TotalRollbacks)
}

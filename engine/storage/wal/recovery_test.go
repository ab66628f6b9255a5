package wal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePageWriter struct {
	pages map[uint64][]byte
}

func newFakePageWriter() *fakePageWriter {
	return &fakePageWriter{pages: map[uint64][]byte{}}
}

func (f *fakePageWriter) Write(pageID uint64, data []byte) error {
	f.pages[pageID] = append([]byte{}, data...)
	return nil
}

func (f *fakePageWriter) Read(pageID uint64) ([]byte, error) {
	return f.pages[pageID], nil
}

func TestRecoverRedoesPageWritesFromCommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: TxnBegin, TxnID: 1},
		Record{LSN: 2, Type: PageWrite, TxnID: 1, PageID: 7, Data: []byte("committed-value")},
		Record{LSN: 3, Type: TxnCommit, TxnID: 1},
	)

	pages := newFakePageWriter()
	rm := NewRecoveryManager(dir, pages)
	stats, err := rm.Recover()
	require.NoError(t, err)

	assert.Equal(t, 3, stats.RecordsAnalyzed)
	assert.Equal(t, 1, stats.RecordsRedone)
	assert.Equal(t, "committed-value", string(pages.pages[7]))
	assert.Equal(t, 0, stats.TransactionsAborted)
}

func TestRecoverUndoesPageWritesFromUncommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: TxnBegin, TxnID: 2},
		Record{
			LSN: 2, Type: PageWrite, TxnID: 2, PageID: 3, Data: []byte("never-committed"),
			Metadata: map[string]interface{}{"before_image": "original-data"},
		},
	)

	pages := newFakePageWriter()
	rm := NewRecoveryManager(dir, pages)
	stats, err := rm.Recover()
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TransactionsAborted)
	assert.Equal(t, 1, stats.RecordsUndone)
	assert.Equal(t, "original-data", string(pages.pages[3]))
}

func TestRecoverStartsFromLastCheckpointLSN(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: PageWrite, PageID: 1, Data: []byte("stale-before-checkpoint")},
		Record{LSN: 2, Type: CheckpointBegin},
		Record{LSN: 3, Type: CheckpointEnd, Data: []byte("{}")},
		Record{LSN: 4, Type: PageWrite, PageID: 2, Data: []byte("after-checkpoint")},
	)

	pages := newFakePageWriter()
	rm := NewRecoveryManager(dir, pages)
	stats, err := rm.Recover()
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.StartLSN)
	_, sawStale := pages.pages[1]
	assert.False(t, sawStale)
	assert.Equal(t, "after-checkpoint", string(pages.pages[2]))
}

func TestRecoverWithNoRecordsIsANoop(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(WriterConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rm := NewRecoveryManager(dir, newFakePageWriter())
	stats, err := rm.Recover()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RecordsAnalyzed)
}

package wal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCheckpointManager(t *testing.T, dir string) (*Writer, *CheckpointManager) {
	t.Helper()
	w, err := NewWriter(WriterConfig{Dir: dir})
	require.NoError(t, err)
	cm := NewCheckpointManager(w, CheckpointConfig{Dir: dir, CheckpointInterval: 1000})
	return w, cm
}

func TestCreateCheckpointWritesBeginAndEndRecords(t *testing.T) {
	dir := t.TempDir()
	w, cm := newTestCheckpointManager(t, dir)
	defer w.Close()

	md, err := cm.CreateCheckpoint(true)
	require.NoError(t, err)
	require.NotNil(t, md)

	r, err := NewReader(dir)
	require.NoError(t, err)
	recs, err := r.ReadAll()
	require.NoError(t, err)

	var sawBegin, sawEnd bool
	for _, rec := range recs {
		if rec.Type == CheckpointBegin {
			sawBegin = true
		}
		if rec.Type == CheckpointEnd {
			sawEnd = true
		}
	}
	assert.True(t, sawBegin)
	assert.True(t, sawEnd)
}

func TestCreateCheckpointSkipsWhenNotDueAndNotForced(t *testing.T) {
	dir := t.TempDir()
	w, cm := newTestCheckpointManager(t, dir)
	defer w.Close()

	md, err := cm.CreateCheckpoint(false)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestCreateCheckpointRecordsDirtyPagesAndActiveTransactions(t *testing.T) {
	dir := t.TempDir()
	w, cm := newTestCheckpointManager(t, dir)
	defer w.Close()

	pageID := uint32(5)
	txnID := uint32(9)
	cm.BeginTransaction(txnID, 1)
	cm.RecordWrite(2, &pageID, &txnID)

	md, err := cm.CreateCheckpoint(true)
	require.NoError(t, err)
	assert.Contains(t, md.DirtyPages, "5")
	assert.Contains(t, md.ActiveTransactions, txnID)
}

func TestEndTransactionRemovesFromActiveSet(t *testing.T) {
	dir := t.TempDir()
	w, cm := newTestCheckpointManager(t, dir)
	defer w.Close()

	txnID := uint32(1)
	cm.BeginTransaction(txnID, 1)
	cm.EndTransaction(txnID)

	md, err := cm.CreateCheckpoint(true)
	require.NoError(t, err)
	assert.NotContains(t, md.ActiveTransactions, txnID)
}

func TestGetRecoveryInfoReturnsLastCheckpoint(t *testing.T) {
	dir := t.TempDir()
	w, cm := newTestCheckpointManager(t, dir)
	defer w.Close()

	assert.Nil(t, cm.GetRecoveryInfo())
	md, err := cm.CreateCheckpoint(true)
	require.NoError(t, err)
	assert.Equal(t, md, cm.GetRecoveryInfo())
}

func TestCheckpointMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	w, cm := newTestCheckpointManager(t, dir)
	_, err := cm.CreateCheckpoint(true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := NewWriter(WriterConfig{Dir: dir})
	require.NoError(t, err)
	defer w2.Close()
	cm2 := NewCheckpointManager(w2, CheckpointConfig{Dir: dir, CheckpointInterval: 1000})
	assert.NotNil(t, cm2.GetRecoveryInfo())
}

package wal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, dir string, recs ...Record) {
	t.Helper()
	w, err := NewWriter(WriterConfig{Dir: dir})
	require.NoError(t, err)
	for _, r := range recs {
		_, err := w.Write(r, true)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestReadAllReturnsRecordsInWrittenOrder(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: TxnBegin, Data: []byte("a")},
		Record{LSN: 2, Type: TxnCommit, Data: []byte("b")},
	)

	r, err := NewReader(dir)
	require.NoError(t, err)
	recs, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(1), recs[0].LSN)
	assert.Equal(t, uint64(2), recs[1].LSN)
}

func TestReadFromLSNFiltersEarlierRecords(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: TxnBegin, Data: []byte("a")},
		Record{LSN: 2, Type: TxnCommit, Data: []byte("b")},
		Record{LSN: 3, Type: TxnCommit, Data: []byte("c")},
	)

	r, err := NewReader(dir)
	require.NoError(t, err)
	recs, err := r.ReadFromLSN(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), recs[0].LSN)
}

func TestReadAllRecoversAfterCorruptionByScanningForward(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: TxnBegin, Data: []byte("first record data")},
		Record{LSN: 2, Type: TxnCommit, Data: []byte("second record data")},
	)

	files, err := listWalFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	data[10] ^= 0xFF
	require.NoError(t, os.WriteFile(files[0], data, 0o644))

	r, err := NewReader(dir)
	require.NoError(t, err)
	recs, err := r.ReadAll()
	require.NoError(t, err)
	assert.Greater(t, r.CorruptedRecordCount(), 0)
	for _, rec := range recs {
		assert.NotEqual(t, uint64(1), rec.LSN)
	}
}

func TestFindLastCheckpointReturnsMostRecentPair(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir,
		Record{LSN: 1, Type: CheckpointBegin, Data: []byte("b1")},
		Record{LSN: 2, Type: CheckpointEnd, Data: []byte("e1")},
		Record{LSN: 3, Type: TxnCommit, Data: []byte("x")},
		Record{LSN: 4, Type: CheckpointBegin, Data: []byte("b2")},
		Record{LSN: 5, Type: CheckpointEnd, Data: []byte("e2")},
	)

	r, err := NewReader(dir)
	require.NoError(t, err)
	begin, end, err := r.FindLastCheckpoint()
	require.NoError(t, err)
	require.NotNil(t, begin)
	require.NotNil(t, end)
	assert.Equal(t, uint64(4), begin.LSN)
	assert.Equal(t, uint64(5), end.LSN)
}

func TestFindLastCheckpointReturnsNilWhenNone(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, Record{LSN: 1, Type: TxnCommit, Data: []byte("x")})

	r, err := NewReader(dir)
	require.NoError(t, err)
	begin, end, err := r.FindLastCheckpoint()
	require.NoError(t, err)
	assert.Nil(t, begin)
	assert.Nil(t, end)
}

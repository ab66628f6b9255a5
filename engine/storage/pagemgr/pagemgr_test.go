package pagemgr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestManager(t *testing.T) *Manager {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"), filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAllocateAssignsIncreasingIDs(t *testing.T) {
	m := openTestManager(t)
	id1, err := m.Allocate()
	require.NoError(t, err)
	id2, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.True(t, m.IsAllocated(id1))
	assert.True(t, m.IsAllocated(id2))
}

func TestDeallocateReusesFreedIDOnNextAllocate(t *testing.T) {
	m := openTestManager(t)
	id1, _ := m.Allocate()
	id2, _ := m.Allocate()
	require.NoError(t, m.Deallocate(id1))
	assert.False(t, m.IsAllocated(id1))

	reused, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, id1, reused)
	assert.NotEqual(t, id2, reused)
}

func TestDeallocateUnallocatedPageFails(t *testing.T) {
	m := openTestManager(t)
	assert.Error(t, m.Deallocate(99))
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	m := openTestManager(t)
	id, err := m.Allocate()
	require.NoError(t, err)

	payload := make([]byte, PageSize)
	copy(payload, []byte("hello page"))
	require.NoError(t, m.Write(id, payload))

	got, err := m.Read(id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadUnallocatedPageReturnsZeroes(t *testing.T) {
	m := openTestManager(t)
	data, err := m.Read(5)
	require.NoError(t, err)
	assert.Len(t, data, PageSize)
	for _, b := range data {
		assert.Equal(t, byte(0), b)
	}
}

func TestReadWriteRejectZeroPageID(t *testing.T) {
	m := openTestManager(t)
	_, err := m.Read(0)
	assert.Error(t, err)
	assert.Error(t, m.Write(0, make([]byte, PageSize)))
}

func TestAllocatedPagesReflectsCurrentSet(t *testing.T) {
	m := openTestManager(t)
	id1, _ := m.Allocate()
	id2, _ := m.Allocate()
	assert.ElementsMatch(t, []uint64{id1, id2}, m.AllocatedPages())
}

func TestMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.db")
	metaPath := filepath.Join(dir, "meta.json")

	m1, err := Open(dataPath, metaPath)
	require.NoError(t, err)
	id, err := m1.Allocate()
	require.NoError(t, err)
	require.NoError(t, m1.Close())

	m2, err := Open(dataPath, metaPath)
	require.NoError(t, err)
	defer m2.Close()
	assert.True(t, m2.IsAllocated(id))
}

package extent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	next uint64
	free []uint64
}

func newFakePages() *fakePages {
	return &fakePages{next: 1}
}

func (f *fakePages) Allocate() (uint64, error) {
	if len(f.free) > 0 {
		id := f.free[0]
		f.free = f.free[1:]
		return id, nil
	}
	id := f.next
	f.next++
	return id, nil
}

func (f *fakePages) Deallocate(id uint64) error {
	f.free = append(f.free, id)
	return nil
}

func TestAllocateSmartUnknownTableGoesStraightToPageManager(t *testing.T) {
	m := New(newFakePages(), 4)
	id, err := m.AllocateSmart("unknown", "ts1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	count, mapped := m.Stats()
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, mapped)
}

func TestAllocateSmartLargeTableNameCreatesExtent(t *testing.T) {
	m := New(newFakePages(), 4)
	_, err := m.AllocateSmart("user_log", "ts1")
	require.NoError(t, err)

	count, mapped := m.Stats()
	assert.Equal(t, 1, count)
	assert.Greater(t, mapped, 0)
}

func TestAllocateSmartReusesExistingExtentBeforeCreatingAnother(t *testing.T) {
	m := New(newFakePages(), 4)
	_, err := m.AllocateSmart("user_log", "ts1")
	require.NoError(t, err)
	countBefore, _ := m.Stats()

	_, err = m.AllocateSmart("user_log", "ts1")
	require.NoError(t, err)
	countAfter, _ := m.Stats()

	assert.Equal(t, countBefore, countAfter)
}

func TestDeallocateSmartRemovesPageFromExtentMapping(t *testing.T) {
	pages := newFakePages()
	m := New(pages, 4)
	id, err := m.AllocateSmart("big_table", "ts1")
	require.NoError(t, err)

	_, mappedBefore := m.Stats()
	require.NoError(t, m.DeallocateSmart(id))
	_, mappedAfter := m.Stats()

	assert.Equal(t, mappedBefore-1, mappedAfter)
	assert.Contains(t, pages.free, id)
}

func TestMetaHelpers(t *testing.T) {
	meta := &Meta{StartPage: 10, Size: 4, Allocated: map[uint64]bool{10: true, 11: true}}
	assert.Equal(t, uint64(13), meta.EndPage())
	assert.False(t, meta.IsFull())
	assert.False(t, meta.IsEmpty())

	meta.Allocated = map[uint64]bool{}
	assert.True(t, meta.IsEmpty())
}

package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndGetRecordsPreservesOrder(t *testing.T) {
	p := CreateEmpty()
	var ok bool
	p, ok = AddRecord(p, []byte("first"))
	require.True(t, ok)
	p, ok = AddRecord(p, []byte("second"))
	require.True(t, ok)

	records := GetRecords(p)
	require.Len(t, records, 2)
	assert.Equal(t, "first", string(records[0]))
	assert.Equal(t, "second", string(records[1]))
}

func TestAddRecordFailsWhenPageFull(t *testing.T) {
	p := CreateEmpty()
	big := make([]byte, Size-HeaderSize-SlotSize+1)
	_, ok := AddRecord(p, big)
	assert.False(t, ok)
}

func TestRemoveRecordRepacksRemaining(t *testing.T) {
	p := CreateEmpty()
	var ok bool
	p, ok = AddRecord(p, []byte("a"))
	require.True(t, ok)
	p, ok = AddRecord(p, []byte("b"))
	require.True(t, ok)
	p, ok = AddRecord(p, []byte("c"))
	require.True(t, ok)

	p, ok = RemoveRecord(p, 1)
	require.True(t, ok)

	records := GetRecords(p)
	require.Len(t, records, 2)
	assert.Equal(t, "a", string(records[0]))
	assert.Equal(t, "c", string(records[1]))
	assert.NoError(t, ValidateInvariants(p))
}

func TestGetInfoReflectsUtilization(t *testing.T) {
	p := CreateEmpty()
	info := GetInfo(p)
	assert.Equal(t, uint32(0), info.RecordCount)
	assert.Equal(t, uint32(Size-HeaderSize), info.FreeSpace)

	p, ok := AddRecord(p, make([]byte, 100))
	require.True(t, ok)
	info = GetInfo(p)
	assert.Equal(t, uint32(1), info.RecordCount)
	assert.Less(t, info.FreeSpace, uint32(Size-HeaderSize))
	assert.Greater(t, Utilization(p), 0.0)
}

func TestNextPageIDRoundTrips(t *testing.T) {
	p := CreateEmpty()
	SetNextPageID(p, 42)
	assert.Equal(t, uint32(42), NextPageID(p))
}

package record

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		{Name: "id", Type: TypeInt},
		{Name: "name", Type: TypeVarchar, Length: 20},
		{Name: "balance", Type: TypeDecimal, Length: 20},
		{Name: "active", Type: TypeBoolean},
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	schema := testSchema()
	rec := Record{
		"id":      int64(7),
		"name":    "ann",
		"balance": decimal.NewFromFloat(12.5),
		"active":  true,
	}

	data, err := Serialize(rec, schema)
	require.NoError(t, err)

	got, tombstone, err := Deserialize(data, schema)
	require.NoError(t, err)
	assert.False(t, tombstone)
	assert.Equal(t, int64(7), got["id"])
	assert.Equal(t, "ann", got["name"])
	assert.True(t, got["balance"].(decimal.Decimal).Equal(decimal.NewFromFloat(12.5)))
	assert.Equal(t, true, got["active"])
}

func TestSerializeNullFieldsRoundTripAsNil(t *testing.T) {
	schema := testSchema()
	rec := Record{"id": int64(1), "name": nil, "balance": nil, "active": nil}

	data, err := Serialize(rec, schema)
	require.NoError(t, err)

	got, tombstone, err := Deserialize(data, schema)
	require.NoError(t, err)
	assert.False(t, tombstone)
	assert.Nil(t, got["name"])
	assert.Nil(t, got["balance"])
	assert.Nil(t, got["active"])
}

func TestSerializeRejectsOverlongVarchar(t *testing.T) {
	schema := Schema{{Name: "name", Type: TypeVarchar, Length: 3}}
	_, err := Serialize(Record{"name": "toolong"}, schema)
	assert.Error(t, err)
}

func TestSerializeRejectsTypeMismatch(t *testing.T) {
	schema := Schema{{Name: "id", Type: TypeInt}}
	_, err := Serialize(Record{"id": "not a number"}, schema)
	assert.Error(t, err)
}

func TestDeserializeTombstoneStatus(t *testing.T) {
	schema := testSchema()
	data := make([]byte, CalculateSize(schema))
	data[0] = statusTombstone

	rec, tombstone, err := Deserialize(data, schema)
	require.NoError(t, err)
	assert.True(t, tombstone)
	assert.Nil(t, rec)
}

func TestCalculateSizeSumsFixedWidths(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: TypeInt},    // 4
		{Name: "big", Type: TypeBigInt}, // 8
	}
	assert.Equal(t, 1+4+8, CalculateSize(schema))
}

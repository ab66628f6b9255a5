package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderByNullsLastAscAndDesc(t *testing.T) {
	rows := []Row{
		{"age": int64(30)},
		{"age": nil},
		{"age": int64(10)},
	}

	asc := NewOrderBy(&staticOperator{rows: rows}, []OrderKey{{Column: "age"}})
	out, err := asc.Execute()
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int64(10), out[0]["age"])
	assert.Equal(t, int64(30), out[1]["age"])
	assert.Nil(t, out[2]["age"])

	desc := NewOrderBy(&staticOperator{rows: rows}, []OrderKey{{Column: "age", Desc: true}})
	out, err = desc.Execute()
	require.NoError(t, err)
	assert.Equal(t, int64(30), out[0]["age"])
	assert.Equal(t, int64(10), out[1]["age"])
	assert.Nil(t, out[2]["age"])
}

func TestOrderByMultipleKeysTieBreak(t *testing.T) {
	rows := []Row{
		{"dept": "eng", "age": int64(40)},
		{"dept": "eng", "age": int64(20)},
		{"dept": "sales", "age": int64(30)},
	}
	ob := NewOrderBy(&staticOperator{rows: rows}, []OrderKey{{Column: "dept"}, {Column: "age"}})
	out, err := ob.Execute()
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "eng", out[0]["dept"])
	assert.Equal(t, int64(20), out[0]["age"])
	assert.Equal(t, "eng", out[1]["dept"])
	assert.Equal(t, int64(40), out[1]["age"])
	assert.Equal(t, "sales", out[2]["dept"])
}

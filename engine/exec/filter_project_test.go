package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterKeepsOnlyTruthyRows(t *testing.T) {
	rows := []Row{
		{"age": int64(30)},
		{"age": int64(10)},
		{"age": nil},
	}
	f := NewFilter(&staticOperator{rows: rows}, Binary{Op: OpGt, Left: ColumnRef{Name: "age"}, Right: Literal{Value: int64(20)}})
	out, err := f.Execute()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(30), out[0]["age"])
}

func TestProjectStarPassesThrough(t *testing.T) {
	rows := []Row{{"t.age": int64(30), "t.name": "ann"}}
	p := NewProject(&staticOperator{rows: rows}, []string{"*"})
	out, err := p.Execute()
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestProjectSelectsRequestedColumnsOnly(t *testing.T) {
	rows := []Row{{"t.age": int64(30), "t.name": "ann"}}
	p := NewProject(&staticOperator{rows: rows}, []string{"t.name"})
	out, err := p.Execute()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Row{"t.name": "ann"}, out[0])
}

package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInnerJoinOnlyKeepsMatches(t *testing.T) {
	left := &staticOperator{rows: []Row{
		{"u.id": int64(1), "u.name": "ann"},
		{"u.id": int64(2), "u.name": "bob"},
	}}
	right := &staticOperator{rows: []Row{
		{"o.user_id": int64(1), "o.total": int64(100)},
	}}
	j := NewJoin(left, right, InnerJoin, Binary{Op: OpEq, Left: ColumnRef{Name: "u.id"}, Right: ColumnRef{Name: "o.user_id"}})

	out, err := j.Execute()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ann", out[0]["u.name"])
	assert.Equal(t, int64(100), out[0]["o.total"])
}

func TestLeftJoinFillsUnmatchedWithNull(t *testing.T) {
	left := &staticOperator{rows: []Row{
		{"u.id": int64(1), "u.name": "ann"},
		{"u.id": int64(2), "u.name": "bob"},
	}}
	right := &staticOperator{rows: []Row{
		{"o.user_id": int64(1), "o.total": int64(100)},
	}}
	j := NewJoin(left, right, LeftJoin, Binary{Op: OpEq, Left: ColumnRef{Name: "u.id"}, Right: ColumnRef{Name: "o.user_id"}})

	out, err := j.Execute()
	require.NoError(t, err)
	require.Len(t, out, 2)

	var bobRow Row
	for _, r := range out {
		if r["u.name"] == "bob" {
			bobRow = r
		}
	}
	require.NotNil(t, bobRow)
	assert.Nil(t, bobRow["o.total"])
}

func TestRightJoinFillsUnmatchedLeftWithNull(t *testing.T) {
	left := &staticOperator{rows: []Row{
		{"u.id": int64(1), "u.name": "ann"},
	}}
	right := &staticOperator{rows: []Row{
		{"o.user_id": int64(1), "o.total": int64(100)},
		{"o.user_id": int64(9), "o.total": int64(200)},
	}}
	j := NewJoin(left, right, RightJoin, Binary{Op: OpEq, Left: ColumnRef{Name: "u.id"}, Right: ColumnRef{Name: "o.user_id"}})

	out, err := j.Execute()
	require.NoError(t, err)
	require.Len(t, out, 2)

	var orphan Row
	for _, r := range out {
		if r["o.user_id"] == int64(9) {
			orphan = r
		}
	}
	require.NotNil(t, orphan)
	assert.Nil(t, orphan["u.name"])
}

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/xmysql-server/engine/exec"
)

func TestExtractAggregatesMatchesPriorityOrder(t *testing.T) {
	aggs := extractAggregates([]string{"COUNT(*)", "SUM(age)", "name"})
	assert := assert.New(t)
	assert.Len(aggs, 2)
	assert.Equal(exec.AggCount, aggs[0].Func)
	assert.Equal("*", aggs[0].Arg)
	assert.Equal(exec.AggSum, aggs[1].Func)
	assert.Equal("age", aggs[1].Arg)
}

func TestExtractAggregatesIgnoresPlainColumns(t *testing.T) {
	aggs := extractAggregates([]string{"t.name", "t.age"})
	assert.Empty(t, aggs)
}

func TestBuildSelectStacksFilterProjectOrderBy(t *testing.T) {
	stmt := &SelectStmt{
		Columns: []string{"name"},
		From:    TableRef{Table: "users", Alias: "u"},
		Where:   exec.Binary{Op: exec.OpGt, Left: exec.ColumnRef{Name: "u.age"}, Right: exec.Literal{Value: int64(18)}},
		OrderBy: []exec.OrderKey{{Column: "name"}},
	}
	op, err := buildSelect(nil, stmt)
	assert := assert.New(t)
	assert.NoError(err)

	// Outermost node is OrderBy, wrapping Project, wrapping Filter,
	// wrapping the scan, matching spec.md §4.12's pipeline shape.
	orderBy, ok := op.(*exec.OrderBy)
	assert.True(ok, "expected outermost operator to be OrderBy")
	project, ok := orderBy.Children()[0].(*exec.Project)
	assert.True(ok, "expected Project beneath OrderBy")
	filter, ok := project.Children()[0].(*exec.Filter)
	assert.True(ok, "expected Filter beneath Project")
	_, ok = filter.Children()[0].(*exec.SeqScan)
	assert.True(ok, "expected SeqScan beneath Filter")
}

func TestBuildSelectInjectsCountStarForGroupByWithNoAggregate(t *testing.T) {
	stmt := &SelectStmt{
		Columns: []string{"dept"},
		From:    TableRef{Table: "users", Alias: "u"},
		GroupBy: []string{"u.dept"},
	}
	op, err := buildSelect(nil, stmt)
	assert := assert.New(t)
	assert.NoError(err)

	project, ok := op.(*exec.Project)
	assert.True(ok, "expected outermost operator to be Project")
	groupBy, ok := project.Children()[0].(*exec.GroupBy)
	assert.True(ok, "expected GroupBy beneath Project")
	assert.Len(groupBy.Aggregates, 1)
	assert.Equal(exec.AggCount, groupBy.Aggregates[0].Func)
	assert.Equal("*", groupBy.Aggregates[0].Arg)
}

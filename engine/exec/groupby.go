package exec

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Aggregate names its output column "FUNC(arg)" unless Output is set
// explicitly, per spec.md §4.11/§4.12.
type Aggregate struct {
	Func   AggFunc
	Arg    string // column name, or "*" for COUNT(*)
	Output string
}

func (a Aggregate) outputName() string {
	if a.Output != "" {
		return a.Output
	}
	return fmt.Sprintf("%s(%s)", a.Func, a.Arg)
}

type aggState struct {
	count      int64
	sum        decimal.Decimal
	min, max   record.Value
	haveMinMax bool
}

type groupAcc struct {
	keyRow Row
	count  int64
	perAgg map[int]*aggState
}

// GroupBy partitions the child's rows by GroupCols, computes each
// requested Aggregate per partition, applies Having, and yields one
// row per surviving group.
type GroupBy struct {
	baseOperator
	GroupCols  []string
	Having     Expr
	Aggregates []Aggregate
}

func NewGroupBy(child Operator, groupCols []string, having Expr, aggregates []Aggregate) *GroupBy {
	return &GroupBy{baseOperator: baseOperator{children: []Operator{child}}, GroupCols: groupCols, Having: having, Aggregates: aggregates}
}

func groupKey(row Row, groupCols []string) string {
	key := ""
	for _, col := range groupCols {
		v := ColumnRef{Name: col}.Eval(row)
		key += fmt.Sprintf("%v\x1f", v)
	}
	return key
}

func (g *GroupBy) Execute() ([]Row, error) {
	rows, err := g.children[0].Execute()
	if err != nil {
		return nil, err
	}

	groups := map[string]*groupAcc{}
	var order []string
	for _, row := range rows {
		key := groupKey(row, g.GroupCols)
		acc, ok := groups[key]
		if !ok {
			keyRow := Row{}
			for _, col := range g.GroupCols {
				keyRow[col] = ColumnRef{Name: col}.Eval(row)
			}
			acc = &groupAcc{keyRow: keyRow}
			groups[key] = acc
			order = append(order, key)
		}
		acc.count++
		for i := range g.Aggregates {
			accumulate(acc, g.Aggregates[i], row, i)
		}
	}
	sort.Strings(order)

	out := make([]Row, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		row := Row{}
		for k, v := range acc.keyRow {
			row[k] = v
		}
		for i, agg := range g.Aggregates {
			row[agg.outputName()] = finalize(acc, agg, i)
		}
		if g.Having == nil || truthy(g.Having.Eval(row)) {
			out = append(out, row)
		}
	}
	return out, nil
}

// accumulate tracks running state for one Aggregate within a group,
// keyed by the aggregate's position in GroupBy.Aggregates so multiple
// aggregates over the same group stay independent.
func accumulate(acc *groupAcc, agg Aggregate, row Row, idx int) {
	if acc.perAgg == nil {
		acc.perAgg = map[int]*aggState{}
	}
	st, ok := acc.perAgg[idx]
	if !ok {
		st = &aggState{}
		acc.perAgg[idx] = st
	}

	if agg.Func == AggCount && agg.Arg == "*" {
		st.count++
		return
	}

	v := ColumnRef{Name: agg.Arg}.Eval(row)
	if v == nil {
		return
	}
	st.count++
	if f, ok := toFloat(v); ok {
		st.sum = st.sum.Add(decimal.NewFromFloat(f))
	}
	if !st.haveMinMax {
		st.min, st.max = v, v
		st.haveMinMax = true
		return
	}
	if truthy(compare(OpLt, v, st.min)) {
		st.min = v
	}
	if truthy(compare(OpGt, v, st.max)) {
		st.max = v
	}
}

func finalize(acc *groupAcc, agg Aggregate, idx int) record.Value {
	st := acc.perAgg[idx]
	if st == nil {
		st = &aggState{}
	}
	switch agg.Func {
	case AggCount:
		return st.count
	case AggSum:
		if st.count == 0 {
			return nil
		}
		f, _ := st.sum.Float64()
		return f
	case AggAvg:
		if st.count == 0 {
			return nil
		}
		avg := st.sum.Div(decimal.NewFromInt(st.count))
		f, _ := avg.Float64()
		return f
	case AggMin:
		return st.min
	case AggMax:
		return st.max
	}
	return nil
}

func (g *GroupBy) String() string { return "GroupBy" }

package exec

import (
	"sort"

	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

type OrderKey struct {
	Column string
	Desc   bool
}

// OrderBy stable-sorts the child's rows by Keys in order. Each key's
// natural comparison is (is_null, value) ascending; NULLs sort last
// regardless of direction, and Desc reverses the non-NULL comparison,
// per spec.md §4.11.
type OrderBy struct {
	baseOperator
	Keys []OrderKey
}

func NewOrderBy(child Operator, keys []OrderKey) *OrderBy {
	return &OrderBy{baseOperator: baseOperator{children: []Operator{child}}, Keys: keys}
}

func lessValue(a, b record.Value) bool {
	if as, ok := a.(string); ok {
		bs, ok2 := b.(string)
		if !ok2 {
			return false
		}
		return as < bs
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	if ab, ok := a.(bool); ok {
		bb, ok2 := b.(bool)
		if !ok2 {
			return false
		}
		return !ab && bb
	}
	return false
}

func (o *OrderBy) Execute() ([]Row, error) {
	rows, err := o.children[0].Execute()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range o.Keys {
			av := ColumnRef{Name: key.Column}.Eval(rows[i])
			bv := ColumnRef{Name: key.Column}.Eval(rows[j])

			if av == nil && bv == nil {
				continue
			}
			if av == nil {
				return false // NULLs last regardless of direction
			}
			if bv == nil {
				return true
			}

			lt := lessValue(av, bv)
			gt := lessValue(bv, av)
			if !lt && !gt {
				continue // equal on this key, fall through to next
			}
			if key.Desc {
				return gt
			}
			return lt
		}
		return false
	})
	return rows, nil
}

func (o *OrderBy) String() string { return "OrderBy" }

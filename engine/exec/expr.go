package exec

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

// Row is a single result tuple: column name (possibly alias-qualified,
// "alias.column") to dynamically typed value.
type Row map[string]record.Value

// CheckAssignable validates a value against a column's declared type
// per spec.md §4.11's DML type-compatibility table. NULL is always
// assignable; VARCHAR/CHAR and any pair of numeric types are mutually
// interchangeable.
func CheckAssignable(col record.ColumnType, v record.Value) error {
	if v == nil {
		return nil
	}
	switch col {
	case record.TypeInt, record.TypeBigInt:
		if _, ok := toInt(v); ok {
			return nil
		}
		if _, ok := toFloat(v); ok {
			return nil
		}
	case record.TypeFloat, record.TypeDouble, record.TypeDecimal:
		if _, ok := toFloat(v); ok {
			return nil
		}
		if _, ok := v.(decimal.Decimal); ok {
			return nil
		}
	case record.TypeVarchar, record.TypeChar:
		if _, ok := v.(string); ok {
			return nil
		}
	case record.TypeBoolean:
		if _, ok := v.(bool); ok {
			return nil
		}
	case record.TypeDate:
		if _, ok := toInt(v); ok {
			return nil
		}
	}
	return errs.ErrTypeMismatch
}

func toInt(v record.Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func toFloat(v record.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, true
	}
	return 0, false
}

// Expr is an evaluatable node: literal, column reference, binary,
// unary, or IN-list membership test, per spec.md §4.11's expression
// AST. There is no function-call node; a call such as COUNT(*) is a
// ColumnRef whose name is the rendered call text.
type Expr interface {
	Eval(row Row) record.Value
}

type Literal struct{ Value record.Value }

func (l Literal) Eval(Row) record.Value { return l.Value }

// ColumnRef resolves a (possibly qualified) column name against a row.
// An exact key match wins; otherwise a qualified "t.c" lookup also
// matches any row key ending in ".c" (the same rule Project uses),
// and an unqualified name matches any key ending in ".name".
type ColumnRef struct{ Name string }

func (c ColumnRef) Eval(row Row) record.Value {
	if v, ok := row[c.Name]; ok {
		return v
	}
	suffix := c.Name
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		suffix = c.Name[i:]
	} else {
		suffix = "." + c.Name
	}
	for k, v := range row {
		if strings.HasSuffix(k, suffix) {
			return v
		}
	}
	return nil
}

type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"

	OpEq  BinaryOp = "="
	OpNeq BinaryOp = "<>"
	OpLt  BinaryOp = "<"
	OpLte BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGte BinaryOp = ">="

	OpAnd BinaryOp = "AND"
	OpOr  BinaryOp = "OR"
)

type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

func (b Binary) Eval(row Row) record.Value {
	switch b.Op {
	case OpAnd:
		l, r := truthy(b.Left.Eval(row)), truthy(b.Right.Eval(row))
		return l && r
	case OpOr:
		l, r := truthy(b.Left.Eval(row)), truthy(b.Right.Eval(row))
		return l || r
	}

	lv, rv := b.Left.Eval(row), b.Right.Eval(row)

	switch b.Op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return arith(b.Op, lv, rv)
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return compare(b.Op, lv, rv)
	}
	return nil
}

// arith lifts ints to floats when mixed, propagates NULL, and yields
// NULL (not an error) for divide-by-zero, per spec.md §4.11.
func arith(op BinaryOp, lv, rv record.Value) record.Value {
	if lv == nil || rv == nil {
		return nil
	}
	li, lIsInt := toInt(lv)
	ri, rIsInt := toInt(rv)
	if lIsInt && rIsInt {
		switch op {
		case OpAdd:
			return li + ri
		case OpSub:
			return li - ri
		case OpMul:
			return li * ri
		case OpDiv:
			if ri == 0 {
				return nil
			}
			return li / ri
		}
	}
	lf, lok := toFloat(lv)
	rf, rok := toFloat(rv)
	if !lok || !rok {
		return nil
	}
	switch op {
	case OpAdd:
		return lf + rf
	case OpSub:
		return lf - rf
	case OpMul:
		return lf * rf
	case OpDiv:
		if rf == 0 {
			return nil
		}
		return lf / rf
	}
	return nil
}

// compare implements spec.md §4.11's deliberate 3VL departure: any
// comparison touching NULL yields false, never UNKNOWN. Strings only
// compare against strings; numerics compare against numerics with the
// usual int/float promotion.
func compare(op BinaryOp, lv, rv record.Value) record.Value {
	if lv == nil || rv == nil {
		return false
	}

	ls, lIsStr := lv.(string)
	rs, rIsStr := rv.(string)
	if lIsStr || rIsStr {
		if !lIsStr || !rIsStr {
			return false
		}
		return stringCompare(op, ls, rs)
	}

	if lb, ok := lv.(bool); ok {
		rb, ok2 := rv.(bool)
		if !ok2 {
			return false
		}
		switch op {
		case OpEq:
			return lb == rb
		case OpNeq:
			return lb != rb
		}
		return false
	}

	lf, lok := toFloat(lv)
	rf, rok := toFloat(rv)
	if !lok || !rok {
		return false
	}
	switch op {
	case OpEq:
		return lf == rf
	case OpNeq:
		return lf != rf
	case OpLt:
		return lf < rf
	case OpLte:
		return lf <= rf
	case OpGt:
		return lf > rf
	case OpGte:
		return lf >= rf
	}
	return false
}

func stringCompare(op BinaryOp, l, r string) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNeq:
		return l != r
	case OpLt:
		return l < r
	case OpLte:
		return l <= r
	case OpGt:
		return l > r
	case OpGte:
		return l >= r
	}
	return false
}

func truthy(v record.Value) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	default:
		return true
	}
}

type UnaryNot struct{ Operand Expr }

func (u UnaryNot) Eval(row Row) record.Value {
	return !truthy(u.Operand.Eval(row))
}

// InList evaluates to true if Target's value equals any of Candidates'
// values (NULL target or NULL candidate never matches).
type InList struct {
	Target     Expr
	Candidates []Expr
}

func (in InList) Eval(row Row) record.Value {
	tv := in.Target.Eval(row)
	if tv == nil {
		return false
	}
	for _, c := range in.Candidates {
		cv := c.Eval(row)
		if cv == nil {
			continue
		}
		if truthy(compare(OpEq, tv, cv)) {
			return true
		}
	}
	return false
}

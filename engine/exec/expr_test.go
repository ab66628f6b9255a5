package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

func TestColumnRefResolvesQualifiedAndBareNames(t *testing.T) {
	row := Row{"t.age": int64(30), "t.name": "ann"}

	assert.Equal(t, int64(30), ColumnRef{Name: "t.age"}.Eval(row))
	assert.Equal(t, int64(30), ColumnRef{Name: "age"}.Eval(row))
	assert.Nil(t, ColumnRef{Name: "missing"}.Eval(row))
}

func TestArithPropagatesNull(t *testing.T) {
	row := Row{}
	expr := Binary{Op: OpAdd, Left: Literal{Value: nil}, Right: Literal{Value: int64(1)}}
	assert.Nil(t, expr.Eval(row))
}

func TestDivideByZeroYieldsNullNotError(t *testing.T) {
	row := Row{}
	expr := Binary{Op: OpDiv, Left: Literal{Value: int64(10)}, Right: Literal{Value: int64(0)}}
	assert.Nil(t, expr.Eval(row))

	floatExpr := Binary{Op: OpDiv, Left: Literal{Value: 10.0}, Right: Literal{Value: 0.0}}
	assert.Nil(t, floatExpr.Eval(row))
}

func TestCompareWithNullYieldsFalse(t *testing.T) {
	row := Row{}
	expr := Binary{Op: OpEq, Left: Literal{Value: nil}, Right: Literal{Value: int64(5)}}
	assert.Equal(t, false, expr.Eval(row))

	lt := Binary{Op: OpLt, Left: Literal{Value: int64(5)}, Right: Literal{Value: nil}}
	assert.Equal(t, false, lt.Eval(row))
}

func TestInListSkipsNullCandidates(t *testing.T) {
	row := Row{}
	in := InList{
		Target:     Literal{Value: int64(2)},
		Candidates: []Expr{Literal{Value: nil}, Literal{Value: int64(2)}},
	}
	assert.Equal(t, true, in.Eval(row))

	miss := InList{
		Target:     Literal{Value: int64(3)},
		Candidates: []Expr{Literal{Value: int64(1)}, Literal{Value: int64(2)}},
	}
	assert.Equal(t, false, miss.Eval(row))
}

func TestCheckAssignableNullAlwaysOK(t *testing.T) {
	assert.NoError(t, CheckAssignable(record.TypeInt, nil))
}

func TestCheckAssignableRejectsWrongType(t *testing.T) {
	assert.Error(t, CheckAssignable(record.TypeInt, "not a number"))
	assert.NoError(t, CheckAssignable(record.TypeVarchar, "ok"))
}

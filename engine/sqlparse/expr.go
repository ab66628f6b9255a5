package sqlparse

import (
	"strings"

	"github.com/pingcap/errors"

	"github.com/zhukovaskychina/xmysql-server/engine/exec"
)

// parseExpr parses a WHERE/HAVING/ON/JOIN predicate into an exec.Expr
// tree, precedence-climbing OR < AND < NOT < comparison < additive <
// multiplicative < unary < primary.
func (p *parser) parseExpr() (exec.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (exec.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = exec.Binary{Op: exec.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (exec.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = exec.Binary{Op: exec.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (exec.Expr, error) {
	if p.atKeyword("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return exec.UnaryNot{Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]exec.BinaryOp{
	"=": exec.OpEq, "<>": exec.OpNeq, "!=": exec.OpNeq,
	"<": exec.OpLt, "<=": exec.OpLte, ">": exec.OpGt, ">=": exec.OpGte,
}

func (p *parser) parseComparison() (exec.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokOp {
		op, ok := comparisonOps[p.cur().text]
		if ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return exec.Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	if p.atKeyword("IN") {
		p.advance()
		candidates, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return exec.InList{Target: left, Candidates: candidates}, nil
	}
	if p.atKeyword("NOT") {
		save := p.pos
		p.advance()
		if p.atKeyword("IN") {
			p.advance()
			candidates, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			return exec.UnaryNot{Operand: exec.InList{Target: left, Candidates: candidates}}, nil
		}
		p.pos = save
	}
	return left, nil
}

func (p *parser) parseExprList() ([]exec.Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var exprs []exec.Expr
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return exprs, nil
}

func (p *parser) parseAdditive() (exec.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		op := exec.OpAdd
		if p.cur().text == "-" {
			op = exec.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = exec.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (exec.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atPunct("*") || p.atPunct("/") {
		op := exec.OpMul
		if p.cur().text == "/" {
			op = exec.OpDiv
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = exec.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (exec.Expr, error) {
	if p.atPunct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return exec.Binary{Op: exec.OpSub, Left: exec.Literal{Value: int64(0)}, Right: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (exec.Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tokPunct && t.text == "(":
		p.advance()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.kind == tokString:
		p.advance()
		return exec.Literal{Value: t.text}, nil
	case t.kind == tokNumber:
		p.advance()
		return exec.Literal{Value: parseNumber(t.text)}, nil
	case t.kind == tokIdent && t.upper() == "NULL":
		p.advance()
		return exec.Literal{Value: nil}, nil
	case t.kind == tokIdent && t.upper() == "TRUE":
		p.advance()
		return exec.Literal{Value: true}, nil
	case t.kind == tokIdent && t.upper() == "FALSE":
		p.advance()
		return exec.Literal{Value: false}, nil
	case t.kind == tokIdent && p.peekIsPunct("("):
		// A function-call reference like COUNT(*) or SUM(age): HAVING
		// clauses reference it by the same "FUNC(arg)" name a GroupBy
		// aggregate's output column carries, per its outputName().
		name, err := p.parseFuncCallName()
		if err != nil {
			return nil, err
		}
		return exec.ColumnRef{Name: name}, nil
	case t.kind == tokIdent:
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return exec.ColumnRef{Name: name}, nil
	default:
		return nil, errors.Errorf("sqlparse: unexpected token %q in expression", t.text)
	}
}

// peekIsPunct reports whether the token right after the current one
// is the given punctuation, without consuming anything.
func (p *parser) peekIsPunct(s string) bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	n := p.toks[p.pos+1]
	return (n.kind == tokPunct || n.kind == tokOp) && n.text == s
}

// parseFuncCallName renders "NAME(args)" for a function-call-style
// reference such as COUNT(*). Each argument must be "*" or a
// (qualified) column name; arguments are joined with ", ". Nested
// calls and other expressions are not accepted as arguments.
func (p *parser) parseFuncCallName() (string, error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if err := p.expectPunct("("); err != nil {
		return "", err
	}
	var args []string
	for !p.atPunct(")") {
		if p.atPunct("*") {
			args = append(args, "*")
			p.advance()
		} else {
			arg, err := p.parseQualifiedName()
			if err != nil {
				return "", err
			}
			args = append(args, arg)
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return "", err
	}
	return name + "(" + strings.Join(args, ", ") + ")", nil
}

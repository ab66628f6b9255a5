package sqlparse

import (
	"strconv"
	"strings"

	"github.com/pingcap/errors"

	"github.com/zhukovaskychina/xmysql-server/engine/catalog"
	"github.com/zhukovaskychina/xmysql-server/engine/exec"
	"github.com/zhukovaskychina/xmysql-server/engine/plan"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

// TxnControl is BEGIN/COMMIT/ROLLBACK/SAVEPOINT. These carry no row
// output or table dependency, so they are never compiled into an
// operator tree (see engine/plan's DESIGN.md entry) — the caller
// dispatches them straight at a storage.Manager.
type TxnControl struct {
	Kind      string // "BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT"
	Savepoint string
}

// Parse turns one SQL statement (without its trailing semicolon) into
// either a plan.Statement or a *TxnControl.
func Parse(sql string) (interface{}, error) {
	toks, err := tokenize(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, errors.Errorf("sqlparse: unexpected trailing input near %q", p.cur().text)
	}
	return stmt, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && t.upper() == kw
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return errors.Errorf("sqlparse: expected %q, found %q", kw, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", errors.Errorf("sqlparse: expected identifier, found %q", t.text)
	}
	p.advance()
	return t.text, nil
}

func (p *parser) expectPunct(s string) error {
	t := p.cur()
	if (t.kind != tokPunct && t.kind != tokOp) || t.text != s {
		return errors.Errorf("sqlparse: expected %q, found %q", s, t.text)
	}
	p.advance()
	return nil
}

func (p *parser) atPunct(s string) bool {
	t := p.cur()
	return (t.kind == tokPunct || t.kind == tokOp) && t.text == s
}

func (p *parser) parseStatement() (interface{}, error) {
	if p.cur().kind != tokIdent {
		return nil, errors.Errorf("sqlparse: expected a statement keyword, found %q", p.cur().text)
	}
	switch p.cur().upper() {
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "INSERT":
		return p.parseInsert()
	case "SELECT":
		return p.parseSelect()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	case "BEGIN":
		p.advance()
		return &TxnControl{Kind: "BEGIN"}, nil
	case "COMMIT":
		p.advance()
		return &TxnControl{Kind: "COMMIT"}, nil
	case "ROLLBACK":
		p.advance()
		return &TxnControl{Kind: "ROLLBACK"}, nil
	case "SAVEPOINT":
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &TxnControl{Kind: "SAVEPOINT", Savepoint: name}, nil
	default:
		return nil, errors.Errorf("sqlparse: unrecognized statement %q", p.cur().text)
	}
}

func (p *parser) parseCreate() (interface{}, error) {
	p.advance() // CREATE
	if p.atKeyword("TABLE") {
		return p.parseCreateTable()
	}
	unique := false
	if p.atKeyword("UNIQUE") {
		unique = true
		p.advance()
	}
	if err := p.expectKeyword("INDEX"); err != nil {
		return nil, err
	}
	return p.parseCreateIndex(unique)
}

func (p *parser) parseCreateTable() (*plan.CreateTableStmt, error) {
	p.advance() // TABLE
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []catalog.ColumnInfo
	for {
		colName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typ, length, err := p.parseColumnType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, catalog.ColumnInfo{Name: colName, Type: typ, Length: length})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &plan.CreateTableStmt{Table: name, Columns: cols}, nil
}

func (p *parser) parseColumnType() (record.ColumnType, int, error) {
	name, err := p.expectIdent()
	if err != nil {
		return 0, 0, err
	}
	length := 0
	if p.atPunct("(") {
		p.advance()
		n, err := p.expectIdent()
		if err != nil {
			// numeric length tokens lex as tokNumber, not tokIdent
			t := p.cur()
			if t.kind != tokNumber {
				return 0, 0, errors.Errorf("sqlparse: expected column length, found %q", t.text)
			}
			n = t.text
			p.advance()
		}
		length, _ = strconv.Atoi(n)
		// DECIMAL(p,s): skip an optional scale argument
		if p.atPunct(",") {
			p.advance()
			if p.cur().kind == tokNumber {
				p.advance()
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return 0, 0, err
		}
	}
	switch strings.ToUpper(name) {
	case "INT", "INTEGER":
		return record.TypeInt, length, nil
	case "BIGINT":
		return record.TypeBigInt, length, nil
	case "FLOAT":
		return record.TypeFloat, length, nil
	case "DOUBLE":
		return record.TypeDouble, length, nil
	case "VARCHAR":
		return record.TypeVarchar, length, nil
	case "CHAR":
		return record.TypeChar, length, nil
	case "BOOLEAN", "BOOL":
		return record.TypeBoolean, length, nil
	case "DATE":
		return record.TypeDate, length, nil
	case "DECIMAL", "NUMERIC":
		return record.TypeDecimal, length, nil
	default:
		return 0, 0, errors.Errorf("sqlparse: unknown column type %q", name)
	}
}

func (p *parser) parseCreateIndex(unique bool) (*plan.CreateIndexStmt, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	return &plan.CreateIndexStmt{Name: name, Table: table, Columns: cols, Unique: unique, IndexType: "btree"}, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *parser) parseDrop() (interface{}, error) {
	p.advance() // DROP
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &plan.DropTableStmt{Table: name}, nil
	case p.atKeyword("INDEX"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &plan.DropIndexStmt{Name: name}, nil
	default:
		return nil, errors.Errorf("sqlparse: expected TABLE or INDEX after DROP, found %q", p.cur().text)
	}
}

func (p *parser) parseInsert() (*plan.InsertStmt, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var values []record.Value
	for {
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &plan.InsertStmt{Table: table, Values: values}, nil
}

func (p *parser) parseLiteralValue() (record.Value, error) {
	t := p.cur()
	switch {
	case t.kind == tokString:
		p.advance()
		return t.text, nil
	case t.kind == tokNumber:
		p.advance()
		return parseNumber(t.text), nil
	case t.kind == tokPunct && t.text == "-":
		p.advance()
		n := p.cur()
		if n.kind != tokNumber {
			return nil, errors.Errorf("sqlparse: expected number after '-', found %q", n.text)
		}
		p.advance()
		return negate(parseNumber(n.text)), nil
	case t.kind == tokIdent && t.upper() == "NULL":
		p.advance()
		return nil, nil
	case t.kind == tokIdent && t.upper() == "TRUE":
		p.advance()
		return true, nil
	case t.kind == tokIdent && t.upper() == "FALSE":
		p.advance()
		return false, nil
	default:
		return nil, errors.Errorf("sqlparse: expected a literal value, found %q", t.text)
	}
}

func parseNumber(s string) record.Value {
	if strings.Contains(s, ".") {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	return i
}

func negate(v record.Value) record.Value {
	switch n := v.(type) {
	case int64:
		return -n
	case float64:
		return -n
	default:
		return v
	}
}

func (p *parser) parseSelect() (*plan.SelectStmt, error) {
	p.advance() // SELECT
	cols, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseFrom()
	if err != nil {
		return nil, err
	}
	stmt := &plan.SelectStmt{Columns: cols, From: from}

	if p.atKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	if p.atKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		groupCols, err := p.parseCommaIdents()
		if err != nil {
			return nil, err
		}
		stmt.GroupBy = groupCols
	}
	if p.atKeyword("HAVING") {
		p.advance()
		having, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = having
	}
	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		keys, err := p.parseOrderKeys()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = keys
	}
	return stmt, nil
}

func (p *parser) parseSelectList() ([]string, error) {
	if p.atPunct("*") {
		p.advance()
		return []string{"*"}, nil
	}
	var cols []string
	for {
		col, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return cols, nil
}

// parseSelectItem consumes one select-list entry as raw text (a bare
// or qualified column, or an aggregate call like SUM(age)), since
// builder.extractAggregates works on the rendered string form rather
// than a parsed expression tree.
func (p *parser) parseSelectItem() (string, error) {
	var b strings.Builder
	depth := 0
	noSpaceBefore := map[string]bool{"(": true, ")": true, ".": true, ",": true}
	noSpaceAfter := map[string]bool{"(": true, ".": true}
	for {
		t := p.cur()
		if t.kind == tokEOF {
			break
		}
		if depth == 0 && (t.kind == tokPunct && t.text == ",") {
			break
		}
		if depth == 0 && t.kind == tokIdent {
			up := t.upper()
			if up == "FROM" || up == "WHERE" || up == "GROUP" || up == "HAVING" || up == "ORDER" {
				break
			}
		}
		if t.kind == tokPunct && t.text == "(" {
			depth++
		}
		if t.kind == tokPunct && t.text == ")" {
			depth--
		}
		needSpace := b.Len() > 0 && !noSpaceBefore[t.text]
		if b.Len() > 0 {
			last := b.String()[b.Len()-1:]
			if noSpaceAfter[last] {
				needSpace = false
			}
		}
		if needSpace {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
		p.advance()
	}
	if b.Len() == 0 {
		return "", errors.Errorf("sqlparse: expected a select-list item, found %q", p.cur().text)
	}
	return b.String(), nil
}

func (p *parser) parseCommaIdents() ([]string, error) {
	var names []string
	for {
		n, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return names, nil
}

func (p *parser) parseQualifiedName() (string, error) {
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if p.atPunct(".") {
		p.advance()
		second, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		return first + "." + second, nil
	}
	return first, nil
}

func (p *parser) parseOrderKeys() ([]exec.OrderKey, error) {
	var keys []exec.OrderKey
	for {
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.atKeyword("DESC") {
			desc = true
			p.advance()
		} else if p.atKeyword("ASC") {
			p.advance()
		}
		keys = append(keys, exec.OrderKey{Column: name, Desc: desc})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return keys, nil
}

func (p *parser) parseFrom() (plan.FromClause, error) {
	left, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	var node plan.FromClause = left
	for {
		joinType, ok := p.matchJoin()
		if !ok {
			break
		}
		right, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		on, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node = plan.JoinClause{Left: node, Right: right, Type: joinType, On: on}
	}
	return node, nil
}

func (p *parser) matchJoin() (exec.JoinType, bool) {
	switch {
	case p.atKeyword("JOIN"):
		p.advance()
		return exec.InnerJoin, true
	case p.atKeyword("INNER"):
		p.advance()
		p.expectKeyword("JOIN")
		return exec.InnerJoin, true
	case p.atKeyword("LEFT"):
		p.advance()
		if p.atKeyword("OUTER") {
			p.advance()
		}
		p.expectKeyword("JOIN")
		return exec.LeftJoin, true
	case p.atKeyword("RIGHT"):
		p.advance()
		if p.atKeyword("OUTER") {
			p.advance()
		}
		p.expectKeyword("JOIN")
		return exec.RightJoin, true
	default:
		return "", false
	}
}

func (p *parser) parseTableRef() (plan.TableRef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return plan.TableRef{}, err
	}
	alias := ""
	if p.atKeyword("AS") {
		p.advance()
		alias, err = p.expectIdent()
		if err != nil {
			return plan.TableRef{}, err
		}
	} else if p.cur().kind == tokIdent && !isClauseKeyword(p.cur().upper()) {
		alias, err = p.expectIdent()
		if err != nil {
			return plan.TableRef{}, err
		}
	}
	return plan.TableRef{Table: name, Alias: alias}, nil
}

func isClauseKeyword(up string) bool {
	switch up {
	case "WHERE", "GROUP", "HAVING", "ORDER", "JOIN", "INNER", "LEFT", "RIGHT", "ON":
		return true
	}
	return false
}

func (p *parser) parseUpdate() (*plan.UpdateStmt, error) {
	p.advance() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	set := record.Record{}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		set[col] = v
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	stmt := &plan.UpdateStmt{Table: table, Set: set}
	if p.atKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *parser) parseDelete() (*plan.DeleteStmt, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt := &plan.DeleteStmt{Table: table}
	if p.atKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// Package plan compiles a typed statement AST into the operator tree
// defined in engine/exec, per spec.md §4.12. The AST shape here is
// deliberately small: just enough structure for the SQL dialect
// subset spec.md §6 names, grounded on
// original_source/sql_compiler/codegen/plan_generator.py's statement
// node attributes (table_name, columns, from_clause, where_clause,
// group_by, having_clause, order_by, set_clauses).
package plan

import (
	"github.com/zhukovaskychina/xmysql-server/engine/catalog"
	"github.com/zhukovaskychina/xmysql-server/engine/exec"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

// Statement is any of the supported SQL dialect subset's parsed forms.
type Statement interface{ isStatement() }

type CreateTableStmt struct {
	Table   string
	Columns []catalog.ColumnInfo
}

type DropTableStmt struct{ Table string }

type InsertStmt struct {
	Table  string
	Values []record.Value
}

type SelectStmt struct {
	// Columns is the select list: "*", bare/qualified column names, or
	// aggregate expressions like "SUM(age)" extracted by substring
	// match during Build.
	Columns []string
	From    FromClause
	Where   exec.Expr
	GroupBy []string
	Having  exec.Expr
	OrderBy []exec.OrderKey
}

type UpdateStmt struct {
	Table string
	Set   record.Record
	Where exec.Expr
}

type DeleteStmt struct {
	Table string
	Where exec.Expr
}

type CreateIndexStmt struct {
	Name      string
	Table     string
	Columns   []string
	Unique    bool
	IndexType string
}

type DropIndexStmt struct{ Name string }

func (*CreateTableStmt) isStatement() {}
func (*DropTableStmt) isStatement()   {}
func (*InsertStmt) isStatement()      {}
func (*SelectStmt) isStatement()      {}
func (*UpdateStmt) isStatement()      {}
func (*DeleteStmt) isStatement()      {}
func (*CreateIndexStmt) isStatement() {}
func (*DropIndexStmt) isStatement()   {}

// FromClause is either a single table reference or a join of two.
type FromClause interface{ isFromClause() }

type TableRef struct {
	Table string
	Alias string
}

type JoinClause struct {
	Left, Right FromClause
	Type        exec.JoinType
	On          exec.Expr
}

func (TableRef) isFromClause()   {}
func (JoinClause) isFromClause() {}

// CollectAliases walks a FROM clause gathering the bidirectional
// (table_name, alias) map spec.md §4.12 calls for as preprocessing.
func CollectAliases(from FromClause) (aliasToTable, tableToAlias map[string]string) {
	aliasToTable = map[string]string{}
	tableToAlias = map[string]string{}
	var walk func(FromClause)
	walk = func(f FromClause) {
		switch n := f.(type) {
		case TableRef:
			if n.Alias != "" {
				aliasToTable[n.Alias] = n.Table
				tableToAlias[n.Table] = n.Alias
			}
		case JoinClause:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(from)
	return aliasToTable, tableToAlias
}

package exec

import (
	"fmt"

	"github.com/zhukovaskychina/xmysql-server/engine/catalog"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

func statusRow(msg string) []Row { return []Row{{"status": msg}} }

// CreateTable is a DDL leaf producing a status row.
type CreateTable struct {
	baseOperator
	Engine  *TableEngine
	Table   string
	Columns []catalog.ColumnInfo
}

func (c *CreateTable) Execute() ([]Row, error) {
	if err := c.Engine.CreateTable(c.Table, c.Columns); err != nil {
		return nil, err
	}
	return statusRow(fmt.Sprintf("table %q created", c.Table)), nil
}

func (c *CreateTable) String() string { return "CreateTable(" + c.Table + ")" }

// DropTable is a DDL leaf producing a status row.
type DropTable struct {
	baseOperator
	Engine *TableEngine
	Table  string
}

func (d *DropTable) Execute() ([]Row, error) {
	if err := d.Engine.DropTable(d.Table); err != nil {
		return nil, err
	}
	return statusRow(fmt.Sprintf("table %q dropped", d.Table)), nil
}

func (d *DropTable) String() string { return "DropTable(" + d.Table + ")" }

// Insert is a DML leaf appending one row of positional values.
type Insert struct {
	baseOperator
	Engine *TableEngine
	Table  string
	Values []record.Value
}

func (i *Insert) Execute() ([]Row, error) {
	if err := i.Engine.InsertRow(i.Table, i.Values); err != nil {
		return nil, err
	}
	return statusRow(fmt.Sprintf("1 row inserted into %q", i.Table)), nil
}

func (i *Insert) String() string { return "Insert(" + i.Table + ")" }

// Update is a DML leaf: every row (read unprefixed, directly from the
// table engine) satisfying Predicate is merged with Changes and
// rewritten via TableEngine.UpdateRow.
type Update struct {
	baseOperator
	Engine    *TableEngine
	Table     string
	Predicate Expr
	Changes   record.Record
}

func (u *Update) Execute() ([]Row, error) {
	recs, err := u.Engine.AllRows(u.Table)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, rec := range recs {
		if u.Predicate != nil && !truthy(u.Predicate.Eval(Row(rec))) {
			continue
		}
		if err := u.Engine.UpdateRow(u.Table, rec, u.Changes); err != nil {
			return nil, err
		}
		count++
	}
	return statusRow(fmt.Sprintf("%d row(s) updated", count)), nil
}

func (u *Update) String() string { return "Update(" + u.Table + ")" }

// Delete is a DML leaf: every row satisfying Predicate is removed via
// TableEngine.DeleteRow.
type Delete struct {
	baseOperator
	Engine    *TableEngine
	Table     string
	Predicate Expr
}

func (d *Delete) Execute() ([]Row, error) {
	recs, err := d.Engine.AllRows(d.Table)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, rec := range recs {
		if d.Predicate != nil && !truthy(d.Predicate.Eval(Row(rec))) {
			continue
		}
		if err := d.Engine.DeleteRow(d.Table, rec); err != nil {
			return nil, err
		}
		count++
	}
	return statusRow(fmt.Sprintf("%d row(s) deleted", count)), nil
}

func (d *Delete) String() string { return "Delete(" + d.Table + ")" }

// CreateIndex / DropIndex are catalog-only operations; no storage
// backing is maintained for the index itself, per spec.md §4.11.
type CreateIndex struct {
	baseOperator
	Catalog   *catalog.Catalog
	Name      string
	Table     string
	Columns   []string
	Unique    bool
	IndexType string
}

func (c *CreateIndex) Execute() ([]Row, error) {
	if err := c.Catalog.CreateIndex(c.Name, c.Table, c.Columns, c.Unique, c.IndexType); err != nil {
		return nil, err
	}
	return statusRow(fmt.Sprintf("index %q created on %q", c.Name, c.Table)), nil
}

func (c *CreateIndex) String() string { return "CreateIndex(" + c.Name + ")" }

type DropIndex struct {
	baseOperator
	Catalog *catalog.Catalog
	Name    string
}

func (d *DropIndex) Execute() ([]Row, error) {
	if err := d.Catalog.DropIndex(d.Name); err != nil {
		return nil, err
	}
	return statusRow(fmt.Sprintf("index %q dropped", d.Name)), nil
}

func (d *DropIndex) String() string { return "DropIndex(" + d.Name + ")" }

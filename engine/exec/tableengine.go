// Package exec implements the physical operator tree described in
// spec.md §4.11: a pull-based tree of row-producing nodes over tables
// whose schema and page list live in the catalog and table store.
package exec

import (
	"github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-server/engine/catalog"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/page"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/tablestore"
)

// TableEngine binds a table's catalog entry to its backing pages,
// offering row-level create/insert/scan/update/delete on top of the
// page-level table store. Grounded on storage_engine.py's
// create_table/insert_row/get_all_rows/update_row/delete_row, whose
// page-by-page iteration and fallback-allocation pattern is kept
// verbatim in Go form; schema lookup goes straight to the catalog's
// typed record.Schema instead of the Python's string-based
// re-derivation from a loosely typed column dict.
type TableEngine struct {
	tables *tablestore.Store
	cat    *catalog.Catalog
}

func NewTableEngine(tables *tablestore.Store, cat *catalog.Catalog) *TableEngine {
	return &TableEngine{tables: tables, cat: cat}
}

// CreateTable registers the schema in the catalog and allocates the
// table's first backing page.
func (e *TableEngine) CreateTable(name string, columns []catalog.ColumnInfo) error {
	if err := e.cat.CreateTable(name, columns); err != nil {
		return err
	}
	schema := catalog.TableInfo{Columns: columns}.Schema()
	estimated := record.CalculateSize(schema)
	if err := e.tables.CreateTableStorage(name, estimated); err != nil {
		return err
	}
	return nil
}

func (e *TableEngine) DropTable(name string) error {
	if err := e.tables.DropTableStorage(name); err != nil {
		return err
	}
	return e.cat.DropTable(name)
}

func (e *TableEngine) Schema(table string) (record.Schema, error) {
	ti, err := e.cat.GetTable(table)
	if err != nil {
		return nil, err
	}
	return ti.Schema(), nil
}

// InsertRow validates values against the schema positionally (the SQL
// front end is responsible for column-order alignment) and writes the
// serialized record into the first page it fits, falling back to a
// freshly allocated page — storage_engine.py's insert_row loop.
func (e *TableEngine) InsertRow(table string, values []record.Value) error {
	schema, err := e.Schema(table)
	if err != nil {
		return err
	}
	if len(values) != len(schema) {
		return errors.Annotatef(errs.ErrTypeMismatch, "table %q expects %d columns, got %d", table, len(schema), len(values))
	}

	rec := record.Record{}
	for i, col := range schema {
		if err := CheckAssignable(col.Type, values[i]); err != nil {
			return errors.Annotatef(err, "column %q", col.Name)
		}
		rec[col.Name] = values[i]
	}

	data, err := record.Serialize(rec, schema)
	if err != nil {
		return err
	}

	pageCount, err := e.tables.TablePageCount(table)
	if err != nil {
		return err
	}
	for i := 0; i < pageCount; i++ {
		pageData, err := e.tables.ReadTablePage(table, i)
		if err != nil {
			return err
		}
		updated, ok := page.AddRecord(pageData, data)
		if ok {
			return e.tables.WriteTablePage(table, i, updated)
		}
	}

	if _, err := e.tables.AllocateTablePage(table); err != nil {
		return err
	}
	newIndex := pageCount
	pageData, err := e.tables.ReadTablePage(table, newIndex)
	if err != nil {
		return err
	}
	updated, ok := page.AddRecord(pageData, data)
	if !ok {
		return errors.Annotatef(errs.ErrRecordTooLarge, "table %q", table)
	}
	return e.tables.WriteTablePage(table, newIndex, updated)
}

// AllRows materializes every live row of the table by iterating its
// pages in order, per storage_engine.py's get_all_rows.
func (e *TableEngine) AllRows(table string) ([]record.Record, error) {
	schema, err := e.Schema(table)
	if err != nil {
		return nil, err
	}
	pageCount, err := e.tables.TablePageCount(table)
	if err != nil {
		return nil, err
	}

	var rows []record.Record
	for i := 0; i < pageCount; i++ {
		pageData, err := e.tables.ReadTablePage(table, i)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.GetRecords(pageData) {
			rec, tombstone, err := record.Deserialize(raw, schema)
			if err != nil || tombstone {
				continue
			}
			rows = append(rows, rec)
		}
	}
	return rows, nil
}

func rowsMatch(a, b record.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// UpdateRow finds the first row equal to old (field-for-field) and
// replaces it with merge(old, changes), rewriting the owning page in
// place — storage_engine.py's update_row (remove-then-add within the
// same page rather than a true in-place byte patch).
func (e *TableEngine) UpdateRow(table string, old record.Record, changes record.Record) error {
	schema, err := e.Schema(table)
	if err != nil {
		return err
	}
	pageCount, err := e.tables.TablePageCount(table)
	if err != nil {
		return err
	}

	for i := 0; i < pageCount; i++ {
		pageData, err := e.tables.ReadTablePage(table, i)
		if err != nil {
			return err
		}
		raws := page.GetRecords(pageData)
		for idx, raw := range raws {
			rec, tombstone, err := record.Deserialize(raw, schema)
			if err != nil || tombstone {
				continue
			}
			if !rowsMatch(rec, old) {
				continue
			}

			updated := record.Record{}
			for k, v := range rec {
				updated[k] = v
			}
			for k, v := range changes {
				updated[k] = v
			}
			for _, col := range schema {
				if err := CheckAssignable(col.Type, updated[col.Name]); err != nil {
					return errors.Annotatef(err, "column %q", col.Name)
				}
			}

			withoutOld, ok := page.RemoveRecord(pageData, uint32(idx))
			if !ok {
				return errors.Annotate(errs.ErrRecordTooLarge, "remove old record")
			}
			newData, err := record.Serialize(updated, schema)
			if err != nil {
				return err
			}
			withNew, ok := page.AddRecord(withoutOld, newData)
			if !ok {
				return errors.Annotatef(errs.ErrRecordTooLarge, "table %q", table)
			}
			return e.tables.WriteTablePage(table, i, withNew)
		}
	}
	return errors.Annotatef(errs.ErrUnknownColumn, "no matching row in %q to update", table)
}

// DeleteRow finds the first row equal to target and removes it,
// per storage_engine.py's delete_row.
func (e *TableEngine) DeleteRow(table string, target record.Record) error {
	schema, err := e.Schema(table)
	if err != nil {
		return err
	}
	pageCount, err := e.tables.TablePageCount(table)
	if err != nil {
		return err
	}

	for i := 0; i < pageCount; i++ {
		pageData, err := e.tables.ReadTablePage(table, i)
		if err != nil {
			return err
		}
		raws := page.GetRecords(pageData)
		for idx, raw := range raws {
			rec, tombstone, err := record.Deserialize(raw, schema)
			if err != nil || tombstone {
				continue
			}
			if !rowsMatch(rec, target) {
				continue
			}
			updated, ok := page.RemoveRecord(pageData, uint32(idx))
			if !ok {
				return errors.Annotate(errs.ErrRecordTooLarge, "remove record")
			}
			return e.tables.WriteTablePage(table, i, updated)
		}
	}
	return errors.Annotatef(errs.ErrUnknownColumn, "no matching row in %q to delete", table)
}

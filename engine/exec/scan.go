package exec

import "fmt"

// toRow alias-prefixes every field of rec with the scan's source
// alias, so downstream Project/Join can resolve either the bare
// column name or the qualified "alias.column" form via ColumnRef's
// suffix match.
func toRow(alias string, rec map[string]interface{}) Row {
	row := Row{}
	for k, v := range rec {
		row[alias+"."+k] = v
	}
	return row
}

// SeqScan yields every live row of a table, alias-prefixed.
type SeqScan struct {
	baseOperator
	Engine *TableEngine
	Table  string
	Alias  string
}

func NewSeqScan(engine *TableEngine, table, alias string) *SeqScan {
	if alias == "" {
		alias = table
	}
	return &SeqScan{Engine: engine, Table: table, Alias: alias}
}

func (s *SeqScan) Execute() ([]Row, error) {
	recs, err := s.Engine.AllRows(s.Table)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, toRow(s.Alias, rec))
	}
	return rows, nil
}

func (s *SeqScan) String() string { return fmt.Sprintf("SeqScan(%s)", s.Table) }

// OptimizedSeqScan is a SeqScan with projection pushed down: only the
// named columns (alias-qualified or bare) survive in each output row.
// The underlying page scan still reads every column since records are
// stored whole; the pushdown here is the post-scan column drop, which
// is as far as pushdown can go without a columnar page format.
type OptimizedSeqScan struct {
	baseOperator
	Engine  *TableEngine
	Table   string
	Alias   string
	Columns []string
}

func NewOptimizedSeqScan(engine *TableEngine, table, alias string, columns []string) *OptimizedSeqScan {
	if alias == "" {
		alias = table
	}
	return &OptimizedSeqScan{Engine: engine, Table: table, Alias: alias, Columns: columns}
}

func (s *OptimizedSeqScan) Execute() ([]Row, error) {
	recs, err := s.Engine.AllRows(s.Table)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		full := toRow(s.Alias, rec)
		projected := Row{}
		for _, col := range s.Columns {
			projected[col] = ColumnRef{Name: col}.Eval(full)
		}
		rows = append(rows, projected)
	}
	return rows, nil
}

func (s *OptimizedSeqScan) String() string { return fmt.Sprintf("OptimizedSeqScan(%s)", s.Table) }

// FilteredSeqScan is a SeqScan with a predicate pushed down: rows
// failing it never appear in the result. Like OptimizedSeqScan, the
// "pushdown" is applied immediately after materializing each row
// rather than during the page scan itself — there is no finer-grained
// access path than a full table scan in this storage layer.
type FilteredSeqScan struct {
	baseOperator
	Engine    *TableEngine
	Table     string
	Alias     string
	Predicate Expr
}

func NewFilteredSeqScan(engine *TableEngine, table, alias string, predicate Expr) *FilteredSeqScan {
	if alias == "" {
		alias = table
	}
	return &FilteredSeqScan{Engine: engine, Table: table, Alias: alias, Predicate: predicate}
}

func (s *FilteredSeqScan) Execute() ([]Row, error) {
	recs, err := s.Engine.AllRows(s.Table)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		row := toRow(s.Alias, rec)
		if truthy(s.Predicate.Eval(row)) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *FilteredSeqScan) String() string { return fmt.Sprintf("FilteredSeqScan(%s)", s.Table) }

// IndexScan looks up rows by equality on a named catalog index. The
// index carries no physical structure of its own (CreateIndex/DropIndex
// are catalog-only per spec.md §4.11), so the lookup degrades to a
// full scan filtered by the index's columns compared against key,
// positionally.
type IndexScan struct {
	baseOperator
	Engine    *TableEngine
	Table     string
	Alias     string
	IndexCols []string
	Key       []interface{}
}

func NewIndexScan(engine *TableEngine, table, alias string, indexCols []string, key []interface{}) *IndexScan {
	if alias == "" {
		alias = table
	}
	return &IndexScan{Engine: engine, Table: table, Alias: alias, IndexCols: indexCols, Key: key}
}

func (s *IndexScan) Execute() ([]Row, error) {
	recs, err := s.Engine.AllRows(s.Table)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0)
	for _, rec := range recs {
		row := toRow(s.Alias, rec)
		match := true
		for i, col := range s.IndexCols {
			if i >= len(s.Key) {
				break
			}
			want := s.Key[i]
			got := ColumnRef{Name: col}.Eval(row)
			if !truthy(compare(OpEq, got, want)) {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *IndexScan) String() string { return fmt.Sprintf("IndexScan(%s)", s.Table) }

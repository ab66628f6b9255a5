package plan

import (
	"strings"

	"github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-server/engine/catalog"
	"github.com/zhukovaskychina/xmysql-server/engine/exec"
)

// Build compiles a statement into its operator tree. The catalog is
// needed only for CreateIndex/DropIndex, which are catalog-only
// operations with no storage backing.
func Build(engine *exec.TableEngine, cat *catalog.Catalog, stmt Statement) (exec.Operator, error) {
	switch s := stmt.(type) {
	case *CreateTableStmt:
		return &exec.CreateTable{Engine: engine, Table: s.Table, Columns: s.Columns}, nil
	case *DropTableStmt:
		return &exec.DropTable{Engine: engine, Table: s.Table}, nil
	case *InsertStmt:
		return &exec.Insert{Engine: engine, Table: s.Table, Values: s.Values}, nil
	case *SelectStmt:
		return buildSelect(engine, s)
	case *UpdateStmt:
		return &exec.Update{Engine: engine, Table: s.Table, Predicate: s.Where, Changes: s.Set}, nil
	case *DeleteStmt:
		return &exec.Delete{Engine: engine, Table: s.Table, Predicate: s.Where}, nil
	case *CreateIndexStmt:
		return &exec.CreateIndex{Catalog: cat, Name: s.Name, Table: s.Table, Columns: s.Columns, Unique: s.Unique, IndexType: s.IndexType}, nil
	case *DropIndexStmt:
		return &exec.DropIndex{Catalog: cat, Name: s.Name}, nil
	default:
		return nil, errors.Errorf("plan: unsupported statement %T", stmt)
	}
}

func buildFrom(engine *exec.TableEngine, from FromClause) (exec.Operator, error) {
	switch f := from.(type) {
	case TableRef:
		return exec.NewSeqScan(engine, f.Table, f.Alias), nil
	case JoinClause:
		left, err := buildFrom(engine, f.Left)
		if err != nil {
			return nil, err
		}
		right, err := buildFrom(engine, f.Right)
		if err != nil {
			return nil, err
		}
		return exec.NewJoin(left, right, f.Type, f.On), nil
	default:
		return nil, errors.Errorf("plan: unsupported FROM clause %T", from)
	}
}

// buildSelect assembles Scan -> [Filter(WHERE)] -> [GroupBy] ->
// [Project] -> [OrderBy], the shape spec.md §4.12 names.
func buildSelect(engine *exec.TableEngine, stmt *SelectStmt) (exec.Operator, error) {
	node, err := buildFrom(engine, stmt.From)
	if err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		node = exec.NewFilter(node, stmt.Where)
	}

	if len(stmt.GroupBy) > 0 {
		aggregates := extractAggregates(stmt.Columns)
		if len(aggregates) == 0 {
			// COUNT(*) is auto-injected when GROUP BY has no explicit
			// aggregate, per spec.md §4.12.
			aggregates = []exec.Aggregate{{Func: exec.AggCount, Arg: "*"}}
		}
		node = exec.NewGroupBy(node, stmt.GroupBy, stmt.Having, aggregates)
	}

	if !(len(stmt.Columns) == 1 && stmt.Columns[0] == "*") {
		node = exec.NewProject(node, stmt.Columns)
	}

	if len(stmt.OrderBy) > 0 {
		node = exec.NewOrderBy(node, stmt.OrderBy)
	}

	return node, nil
}

var aggregateFuncs = []exec.AggFunc{exec.AggCount, exec.AggSum, exec.AggAvg, exec.AggMax, exec.AggMin}

// extractAggregates pulls aggregate calls out of a select list by
// simple substring match on "COUNT(", "SUM(", "AVG(", "MAX(", "MIN(",
// per spec.md §4.12 (no general expression parsing is attempted).
func extractAggregates(columns []string) []exec.Aggregate {
	var aggs []exec.Aggregate
	for _, col := range columns {
		upper := strings.ToUpper(col)
		for _, fn := range aggregateFuncs {
			marker := string(fn) + "("
			start := strings.Index(upper, marker)
			if start < 0 {
				continue
			}
			argStart := start + len(marker)
			rel := strings.Index(upper[argStart:], ")")
			if rel < 0 {
				continue
			}
			arg := strings.TrimSpace(col[argStart : argStart+rel])
			aggs = append(aggs, exec.Aggregate{Func: fn, Arg: arg})
			break
		}
	}
	return aggs
}

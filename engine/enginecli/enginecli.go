// Package enginecli wires the storage layers, catalog, and execution
// engine into one Database and drives it from semicolon-terminated SQL
// text, grounded on original_source/cli/main.py's SimpleDB class and
// main() loop. Both the root binary and cmd/storagecli share this so
// the REPL logic is written once.
package enginecli

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zhukovaskychina/xmysql-server/engine/catalog"
	"github.com/zhukovaskychina/xmysql-server/engine/engconf"
	"github.com/zhukovaskychina/xmysql-server/engine/exec"
	"github.com/zhukovaskychina/xmysql-server/engine/plan"
	"github.com/zhukovaskychina/xmysql-server/engine/sqlparse"
	"github.com/zhukovaskychina/xmysql-server/engine/storage"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/tablestore"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/txn"
)

// Database composes every layer needed to run one statement end to
// end. Open builds it in this order: storage manager (page manager and
// buffer pool inside it) -> catalog -> table storage over the raw page
// manager -> execution engine.
type Database struct {
	mgr    *storage.Manager
	cat    *catalog.Catalog
	tables *tablestore.Store
	engine *exec.TableEngine

	activeTxn uint64
	inTxn     bool
}

func Open(cfg engconf.Config) (*Database, error) {
	mgr, err := storage.Open(cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("open storage manager: %w", err)
	}
	cat, err := catalog.New(filepath.Join(cfg.DataDir, "system_catalog.json"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	tables, err := tablestore.New(mgr.Pages(), filepath.Join(cfg.DataDir, "table_storage.json"))
	if err != nil {
		return nil, fmt.Errorf("open table storage: %w", err)
	}
	return &Database{
		mgr:    mgr,
		cat:    cat,
		tables: tables,
		engine: exec.NewTableEngine(tables, cat),
	}, nil
}

func (db *Database) Shutdown() error {
	db.tables.Shutdown()
	return db.mgr.Shutdown()
}

// Execute runs one semicolon-terminated statement and returns either a
// list of result rows (for SELECT) or a single status string.
func (db *Database) Execute(sql string) ([]exec.Row, string, error) {
	parsed, err := sqlparse.Parse(sql)
	if err != nil {
		return nil, "", err
	}

	if ctl, ok := parsed.(*sqlparse.TxnControl); ok {
		return nil, db.execTxnControl(ctl), nil
	}

	stmt, ok := parsed.(plan.Statement)
	if !ok {
		return nil, "", fmt.Errorf("internal: unexpected parse result %T", parsed)
	}
	op, err := plan.Build(db.engine, db.cat, stmt)
	if err != nil {
		return nil, "", err
	}
	rows, err := op.Execute()
	if err != nil {
		return nil, "", err
	}
	if _, isSelect := stmt.(*plan.SelectStmt); isSelect {
		return rows, "", nil
	}
	if len(rows) == 1 {
		if msg, ok := rows[0]["status"].(string); ok {
			return nil, msg, nil
		}
	}
	return rows, "", nil
}

// execTxnControl dispatches BEGIN/COMMIT/ROLLBACK/SAVEPOINT directly
// at the storage manager's transaction manager, since these carry no
// row output or table dependency and were never compiled into the
// operator tree (see engine/plan's DESIGN.md entry).
func (db *Database) execTxnControl(ctl *sqlparse.TxnControl) string {
	switch ctl.Kind {
	case "BEGIN":
		if db.inTxn {
			return "a transaction is already active"
		}
		db.activeTxn = db.mgr.BeginTransaction(txn.ReadCommitted)
		db.inTxn = true
		return fmt.Sprintf("transaction %d started", db.activeTxn)
	case "COMMIT":
		if !db.inTxn {
			return "no active transaction"
		}
		err := db.mgr.CommitTransaction(db.activeTxn)
		db.inTxn = false
		if err != nil {
			return fmt.Sprintf("commit failed: %v", err)
		}
		return "transaction committed"
	case "ROLLBACK":
		if !db.inTxn {
			return "no active transaction"
		}
		err := db.mgr.RollbackTransaction(db.activeTxn)
		db.inTxn = false
		if err != nil {
			return fmt.Sprintf("rollback failed: %v", err)
		}
		return "transaction rolled back"
	case "SAVEPOINT":
		// Nested savepoints have no backing in the transaction manager
		// (see engine/plan's DESIGN.md entry); accepted but a no-op.
		return fmt.Sprintf("savepoint %q noted (not backed by nested undo)", ctl.Savepoint)
	default:
		return fmt.Sprintf("unsupported transaction control %q", ctl.Kind)
	}
}

func printRows(w io.Writer, rows []exec.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	colSet := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			colSet[k] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	fmt.Fprintln(w, strings.Join(cols, " | "))
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = fmt.Sprintf("%v", r[c])
		}
		fmt.Fprintln(w, strings.Join(vals, " | "))
	}
}

// RunREPL reads "SQL> " lines from in until a trailing ";", parses,
// plans, and executes each statement, printing either the result rows
// or an "Error executing SQL: ..." message to out. "exit;" (any case)
// shuts down the database and returns.
func RunREPL(db *Database, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	var buf strings.Builder
	fmt.Fprint(out, "SQL> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !strings.HasSuffix(line, ";") {
			fmt.Fprint(out, "  -> ")
			continue
		}

		stmt := strings.TrimSpace(strings.TrimSuffix(buf.String(), ";"))
		buf.Reset()

		if strings.EqualFold(stmt, "exit") {
			if err := db.Shutdown(); err != nil {
				fmt.Fprintf(out, "shutdown error: %v\n", err)
			}
			return
		}
		if stmt == "" {
			fmt.Fprint(out, "SQL> ")
			continue
		}

		rows, status, err := db.Execute(stmt)
		switch {
		case err != nil:
			fmt.Fprintf(out, "Error executing SQL: %v\n", err)
		case status != "":
			fmt.Fprintln(out, status)
		default:
			printRows(out, rows)
		}
		fmt.Fprint(out, "SQL> ")
	}
	if err := db.Shutdown(); err != nil {
		fmt.Fprintf(out, "shutdown error: %v\n", err)
	}
}

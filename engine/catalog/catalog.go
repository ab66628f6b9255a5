// Package catalog tracks table, column, and index metadata, persisted
// as JSON, per spec.md §4.10.
package catalog

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

type ColumnInfo struct {
	Name   string             `json:"name"`
	Type   record.ColumnType  `json:"type"`
	Length int                `json:"length"`
}

type TableInfo struct {
	Name       string       `json:"name"`
	Columns    []ColumnInfo `json:"columns"`
	SchemaHash uint64       `json:"schema_hash"`
}

func (t TableInfo) Schema() record.Schema {
	schema := make(record.Schema, len(t.Columns))
	for i, c := range t.Columns {
		schema[i] = record.Column{Name: c.Name, Type: c.Type, Length: c.Length}
	}
	return schema
}

type IndexInfo struct {
	Name    string   `json:"name"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Type    string   `json:"type"`
}

type persisted struct {
	Tables  map[string]*TableInfo `json:"tables"`
	Indexes map[string]*IndexInfo `json:"indexes"`
}

// Catalog holds in-memory table/column/index metadata, mirrored to a
// JSON file (system_catalog.json per spec.md §6).
type Catalog struct {
	mu      sync.RWMutex
	path    string
	tables  map[string]*TableInfo
	indexes map[string]*IndexInfo
	// byTable speeds up get_all_indexes / find_best_index lookups.
	byTable map[string][]*IndexInfo
}

func New(path string) (*Catalog, error) {
	c := &Catalog{path: path, tables: map[string]*TableInfo{}, indexes: map[string]*IndexInfo{}, byTable: map[string][]*IndexInfo{}}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Annotate(err, "catalog: parse system catalog")
	}
	if p.Tables != nil {
		c.tables = p.Tables
	}
	if p.Indexes != nil {
		c.indexes = p.Indexes
	}
	for _, idx := range c.indexes {
		c.byTable[idx.Table] = append(c.byTable[idx.Table], idx)
	}
	return nil
}

func (c *Catalog) saveLocked() error {
	p := persisted{Tables: c.tables, Indexes: c.indexes}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Annotate(err, "catalog: marshal")
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "catalog: write temp")
	}
	return os.Rename(tmp, c.path)
}

func hashSchema(cols []ColumnInfo) uint64 {
	h := xxhash.New64()
	for _, c := range cols {
		h.Write([]byte(c.Name))
		h.Write([]byte{byte(c.Type)})
		var lenBuf [4]byte
		lenBuf[0] = byte(c.Length)
		lenBuf[1] = byte(c.Length >> 8)
		lenBuf[2] = byte(c.Length >> 16)
		lenBuf[3] = byte(c.Length >> 24)
		h.Write(lenBuf[:])
	}
	return h.Sum64()
}

func (c *Catalog) CreateTable(name string, columns []ColumnInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		return errors.Annotatef(errs.ErrTableExists, "table %q", name)
	}
	seen := map[string]bool{}
	for _, col := range columns {
		if seen[col.Name] {
			return errors.Annotatef(errs.ErrInvalidSchema, "duplicate column %q", col.Name)
		}
		seen[col.Name] = true
	}
	c.tables[name] = &TableInfo{Name: name, Columns: columns, SchemaHash: hashSchema(columns)}
	return c.saveLocked()
}

func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; !ok {
		return errors.Annotatef(errs.ErrTableNotFound, "table %q", name)
	}
	delete(c.tables, name)
	for idxName, idx := range c.indexes {
		if idx.Table == name {
			delete(c.indexes, idxName)
		}
	}
	delete(c.byTable, name)
	return c.saveLocked()
}

func (c *Catalog) GetTable(name string) (*TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Annotatef(errs.ErrTableNotFound, "table %q", name)
	}
	return t, nil
}

func (c *Catalog) TableExists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[name]
	return ok
}

func (c *Catalog) GetColumnInfo(table, column string) (ColumnInfo, error) {
	t, err := c.GetTable(table)
	if err != nil {
		return ColumnInfo{}, err
	}
	for _, col := range t.Columns {
		if col.Name == column {
			return col, nil
		}
	}
	return ColumnInfo{}, errors.Annotatef(errs.ErrUnknownColumn, "column %q in table %q", column, table)
}

// SchemaDrift reports whether the table's stored columns differ from
// its last-recorded schema hash, the domain-stack use of xxhash per
// SPEC_FULL.md §4.14.
func (c *Catalog) SchemaDrift(table string) (bool, error) {
	t, err := c.GetTable(table)
	if err != nil {
		return false, err
	}
	return hashSchema(t.Columns) != t.SchemaHash, nil
}

func (c *Catalog) CreateIndex(name, table string, columns []string, unique bool, indexType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[table]; !ok {
		return errors.Annotatef(errs.ErrTableNotFound, "table %q", table)
	}
	if _, exists := c.indexes[name]; exists {
		return errors.Annotatef(errs.ErrIndexExists, "index %q", name)
	}
	idx := &IndexInfo{Name: name, Table: table, Columns: columns, Unique: unique, Type: indexType}
	c.indexes[name] = idx
	c.byTable[table] = append(c.byTable[table], idx)
	return c.saveLocked()
}

func (c *Catalog) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indexes[name]
	if !ok {
		return errors.Annotatef(errs.ErrIndexNotFound, "index %q", name)
	}
	delete(c.indexes, name)
	kept := c.byTable[idx.Table][:0]
	for _, i := range c.byTable[idx.Table] {
		if i.Name != name {
			kept = append(kept, i)
		}
	}
	c.byTable[idx.Table] = kept
	return c.saveLocked()
}

func (c *Catalog) GetIndex(name string) (*IndexInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, errors.Annotatef(errs.ErrIndexNotFound, "index %q", name)
	}
	return idx, nil
}

func (c *Catalog) GetAllIndexes(table string) []*IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*IndexInfo{}, c.byTable[table]...)
}

// FindBestIndex returns the index on table covering the most of the
// requested columns as a prefix, preferring unique indexes on ties.
func (c *Catalog) FindBestIndex(table string, columns []string) *IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	want := map[string]int{}
	for i, col := range columns {
		want[col] = i
	}

	var best *IndexInfo
	bestScore := -1
	candidates := append([]*IndexInfo{}, c.byTable[table]...)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	for _, idx := range candidates {
		score := 0
		for _, col := range idx.Columns {
			if _, ok := want[col]; ok {
				score++
			} else {
				break
			}
		}
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && idx.Unique && (best == nil || !best.Unique)) {
			best = idx
			bestScore = score
		}
	}
	return best
}

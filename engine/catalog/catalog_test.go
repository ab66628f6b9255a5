package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/engine/storage/record"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "system_catalog.json"))
	require.NoError(t, err)
	return c
}

func idColumns() []ColumnInfo {
	return []ColumnInfo{
		{Name: "id", Type: record.TypeInt},
		{Name: "name", Type: record.TypeVarchar, Length: 30},
	}
}

func TestCreateTableThenGetTableRoundTrips(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))

	tbl, err := c.GetTable("users")
	require.NoError(t, err)
	assert.Equal(t, "users", tbl.Name)
	assert.Len(t, tbl.Columns, 2)
	assert.True(t, c.TableExists("users"))
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	assert.Error(t, c.CreateTable("users", idColumns()))
}

func TestCreateTableRejectsDuplicateColumnNames(t *testing.T) {
	c := newTestCatalog(t)
	cols := []ColumnInfo{{Name: "id", Type: record.TypeInt}, {Name: "id", Type: record.TypeInt}}
	assert.Error(t, c.CreateTable("dup", cols))
}

func TestDropTableRemovesTableAndItsIndexes(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	require.NoError(t, c.CreateIndex("idx_users_id", "users", []string{"id"}, true, "btree"))

	require.NoError(t, c.DropTable("users"))
	assert.False(t, c.TableExists("users"))
	_, err := c.GetIndex("idx_users_id")
	assert.Error(t, err)
}

func TestGetColumnInfoFindsExistingColumn(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	col, err := c.GetColumnInfo("users", "name")
	require.NoError(t, err)
	assert.Equal(t, record.TypeVarchar, col.Type)
}

func TestGetColumnInfoRejectsUnknownColumn(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	_, err := c.GetColumnInfo("users", "missing")
	assert.Error(t, err)
}

func TestSchemaDriftFalseImmediatelyAfterCreate(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	drift, err := c.SchemaDrift("users")
	require.NoError(t, err)
	assert.False(t, drift)
}

func TestCreateIndexRejectsUnknownTable(t *testing.T) {
	c := newTestCatalog(t)
	assert.Error(t, c.CreateIndex("idx", "missing_table", []string{"id"}, false, "btree"))
}

func TestCreateIndexRejectsDuplicateName(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	require.NoError(t, c.CreateIndex("idx_users_id", "users", []string{"id"}, false, "btree"))
	assert.Error(t, c.CreateIndex("idx_users_id", "users", []string{"name"}, false, "btree"))
}

func TestGetAllIndexesReturnsOnlyThoseForTable(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("users", idColumns()))
	require.NoError(t, c.CreateTable("orders", idColumns()))
	require.NoError(t, c.CreateIndex("idx_users_id", "users", []string{"id"}, false, "btree"))
	require.NoError(t, c.CreateIndex("idx_orders_id", "orders", []string{"id"}, false, "btree"))

	idxs := c.GetAllIndexes("users")
	require.Len(t, idxs, 1)
	assert.Equal(t, "idx_users_id", idxs[0].Name)
}

func TestFindBestIndexPrefersLongerColumnPrefixMatch(t *testing.T) {
	c := newTestCatalog(t)
	cols := []ColumnInfo{
		{Name: "a", Type: record.TypeInt}, {Name: "b", Type: record.TypeInt}, {Name: "c", Type: record.TypeInt},
	}
	require.NoError(t, c.CreateTable("t", cols))
	require.NoError(t, c.CreateIndex("idx_a", "t", []string{"a"}, false, "btree"))
	require.NoError(t, c.CreateIndex("idx_ab", "t", []string{"a", "b"}, false, "btree"))

	best := c.FindBestIndex("t", []string{"a", "b", "c"})
	require.NotNil(t, best)
	assert.Equal(t, "idx_ab", best.Name)
}

func TestFindBestIndexReturnsNilWhenNoColumnsMatch(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable("t", idColumns()))
	require.NoError(t, c.CreateIndex("idx_id", "t", []string{"id"}, false, "btree"))

	best := c.FindBestIndex("t", []string{"name_only_in_where"})
	assert.Nil(t, best)
}

func TestCatalogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system_catalog.json")
	c1, err := New(path)
	require.NoError(t, err)
	require.NoError(t, c1.CreateTable("users", idColumns()))
	require.NoError(t, c1.CreateIndex("idx_users_id", "users", []string{"id"}, true, "btree"))

	c2, err := New(path)
	require.NoError(t, err)
	assert.True(t, c2.TableExists("users"))
	idx, err := c2.GetIndex("idx_users_id")
	require.NoError(t, err)
	assert.True(t, idx.Unique)
}

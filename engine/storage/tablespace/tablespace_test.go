package tablespace

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesDefaultTablespace(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, DefaultName, list[0].Name)
	assert.True(t, list[0].IsDefault)
}

func TestCreateAddsNewTablespaceAndBackingFile(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Create("archive", 10))

	path := m.FilePath("archive")
	assert.NotEmpty(t, path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), info.Size())
}

func TestDropRefusesDefaultTablespace(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, m.Drop(DefaultName, false))
}

func TestDropRemovesNonDefaultTablespace(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Create("scratch", 5))
	require.NoError(t, m.Drop("scratch", true))

	for _, info := range m.List() {
		assert.NotEqual(t, "scratch", info.Name)
	}
}

func TestAllocateForTableRoutesByPrefix(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	target, err := m.AllocateForTable("sys_users", "")
	require.NoError(t, err)
	assert.Equal(t, "system", target)

	target, err = m.AllocateForTable("log_events", "")
	require.NoError(t, err)
	assert.Equal(t, "log", target)

	target, err = m.AllocateForTable("orders", "")
	require.NoError(t, err)
	assert.Equal(t, "user_data", target)
}

func TestAllocateForTableHonorsExplicitPreference(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Create("custom", 5))

	target, err := m.AllocateForTable("orders", "custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", target)
}

func TestOnFileMappingChangeFiresOnCreate(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	var gotName, gotPath string
	m.OnFileMappingChange(func(name, path string) {
		gotName, gotPath = name, path
	})
	require.NoError(t, m.Create("notified", 5))
	assert.Equal(t, "notified", gotName)
	assert.NotEmpty(t, gotPath)
}

func TestMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	m1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, m1.Create("persisted", 5))

	m2, err := New(dir)
	require.NoError(t, err)
	found := false
	for _, info := range m2.List() {
		if info.Name == "persisted" {
			found = true
		}
	}
	assert.True(t, found)
}

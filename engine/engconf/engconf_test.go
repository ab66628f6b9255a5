package engconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/engine/storage/bufferpool"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/wal"
)

func TestDefaultMirrorsStorageDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/data")
	assert.Equal(t, "/tmp/data", cfg.DataDir)
	assert.Equal(t, bufferpool.KindAdaptive, cfg.BufferKind)
	assert.Equal(t, wal.SyncFsync, cfg.WALSyncMode)
}

func TestLoadReadsStorageSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.ini")
	contents := "[storage]\n" +
		"data_dir = /var/lib/mydb\n" +
		"buffer_capacity = 256\n" +
		"buffer_kind = fifo\n" +
		"wal_sync_mode = fsync\n" +
		"checkpoint_interval = 500\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mydb", cfg.DataDir)
	assert.Equal(t, 256, cfg.BufferCapacity)
	assert.Equal(t, bufferpool.KindFIFO, cfg.BufferKind)
	assert.Equal(t, wal.SyncFsync, cfg.WALSyncMode)
	assert.Equal(t, 500, cfg.CheckpointInterval)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(".").BufferKind, cfg.BufferKind)
}

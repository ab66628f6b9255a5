// Package engconf loads the storage engine's configuration from an
// ini file, per spec.md §6 ("Environment / config for data directory,
// buffer size, sync mode, and checkpoint interval"). Grounded on
// server/conf/config.go's Cfg.Load/parseMysqldCfg shape: a single
// ini.File loaded once, with one parse method per section and
// MustXxx-style defaulted key reads.
package engconf

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/zhukovaskychina/xmysql-server/engine/storage"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/bufferpool"
	"github.com/zhukovaskychina/xmysql-server/engine/storage/wal"
)

// Config is the resolved engine configuration, ready to hand to
// storage.Open via StorageConfig.
type Config struct {
	Raw *ini.File

	DataDir            string
	BufferCapacity     int
	BufferKind         bufferpool.Kind
	EnableExtents      bool
	EnableWAL          bool
	EnableConcurrency  bool
	AutoFlushInterval  time.Duration
	WALSyncMode        wal.SyncMode
	CheckpointInterval int
	LockTimeout        time.Duration
}

// Default mirrors storage.DefaultConfig's values so a missing ini
// file still produces a usable engine.
func Default(dataDir string) Config {
	sc := storage.DefaultConfig(dataDir)
	return Config{
		Raw:                ini.Empty(),
		DataDir:            sc.DataDir,
		BufferCapacity:     sc.BufferCapacity,
		BufferKind:         sc.BufferKind,
		EnableExtents:      sc.EnableExtents,
		EnableWAL:          sc.EnableWAL,
		EnableConcurrency:  sc.EnableConcurrency,
		AutoFlushInterval:  sc.AutoFlushInterval,
		WALSyncMode:        sc.WALSyncMode,
		CheckpointInterval: sc.CheckpointInterval,
		LockTimeout:        sc.LockTimeout,
	}
}

func parseBufferKind(s string, fallback bufferpool.Kind) bufferpool.Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lru":
		return bufferpool.KindLRU
	case "fifo":
		return bufferpool.KindFIFO
	case "adaptive":
		return bufferpool.KindAdaptive
	default:
		return fallback
	}
}

func parseSyncMode(s string, fallback wal.SyncMode) wal.SyncMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return wal.SyncNone
	case "flush":
		return wal.SyncFlush
	case "fsync":
		return wal.SyncFsync
	case "fdatasync":
		return wal.SyncFdatasync
	default:
		return fallback
	}
}

// Load reads an ini file's [storage] section, falling back to
// Default's values for any key that is absent.
func Load(path string) (Config, error) {
	cfg := Default(".")
	if path == "" {
		return cfg, nil
	}

	raw, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("engconf: load %s: %w", path, err)
	}
	cfg.Raw = raw

	section := raw.Section("storage")
	cfg.DataDir = section.Key("data_dir").MustString(cfg.DataDir)
	cfg.BufferCapacity = section.Key("buffer_capacity").MustInt(cfg.BufferCapacity)
	cfg.BufferKind = parseBufferKind(section.Key("buffer_kind").String(), cfg.BufferKind)
	cfg.EnableExtents = section.Key("enable_extents").MustBool(cfg.EnableExtents)
	cfg.EnableWAL = section.Key("enable_wal").MustBool(cfg.EnableWAL)
	cfg.EnableConcurrency = section.Key("enable_concurrency").MustBool(cfg.EnableConcurrency)

	autoFlush := section.Key("auto_flush_interval").MustString(cfg.AutoFlushInterval.String())
	if d, err := time.ParseDuration(autoFlush); err == nil {
		cfg.AutoFlushInterval = d
	}

	cfg.WALSyncMode = parseSyncMode(section.Key("wal_sync_mode").String(), cfg.WALSyncMode)
	cfg.CheckpointInterval = section.Key("checkpoint_interval").MustInt(cfg.CheckpointInterval)

	lockTimeout := section.Key("lock_timeout").MustString(cfg.LockTimeout.String())
	if d, err := time.ParseDuration(lockTimeout); err == nil {
		cfg.LockTimeout = d
	}

	return cfg, nil
}

// StorageConfig adapts this configuration to storage.Config.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		DataDir:            c.DataDir,
		BufferCapacity:     c.BufferCapacity,
		BufferKind:         c.BufferKind,
		EnableExtents:      c.EnableExtents,
		EnableWAL:          c.EnableWAL,
		EnableConcurrency:  c.EnableConcurrency,
		AutoFlushInterval:  c.AutoFlushInterval,
		WALSyncMode:        c.WALSyncMode,
		CheckpointInterval: c.CheckpointInterval,
		LockTimeout:        c.LockTimeout,
	}
}

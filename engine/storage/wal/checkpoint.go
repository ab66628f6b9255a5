package wal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

type CheckpointMetadata struct {
	CheckpointLSN      uint64           `json:"checkpoint_lsn"`
	CheckpointTime     float64          `json:"checkpoint_time"`
	StartLSN           uint64           `json:"start_lsn"`
	EndLSN             uint64           `json:"end_lsn"`
	DirtyPages         map[string]uint64 `json:"dirty_pages"`
	ActiveTransactions []uint32         `json:"active_transactions"`
	FileNumber         int              `json:"file_number"`
	FileOffset         int64            `json:"file_offset"`
}

type CheckpointManager struct {
	mu sync.Mutex

	writer             *Writer
	dir                string
	metaPath           string
	checkpointInterval int
	checkpointTimeout  time.Duration
	autoCheckpoint     bool

	lastCheckpoint       *CheckpointMetadata
	recordsSinceCheckpoint int
	lastCheckpointTime    time.Time

	activeTransactions map[uint32]bool
	txnStartLSN        map[uint32]uint64
	dirtyPages         map[uint32]uint64

	totalCheckpoints   int
	totalLogCleanups   int

	stopCh chan struct{}
}

type CheckpointConfig struct {
	Dir                string
	CheckpointInterval int
	CheckpointTimeout  time.Duration
	AutoCheckpoint     bool
}

func NewCheckpointManager(writer *Writer, cfg CheckpointConfig) *CheckpointManager {
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 1000
	}
	if cfg.CheckpointTimeout <= 0 {
		cfg.CheckpointTimeout = 300 * time.Second
	}
	cm := &CheckpointManager{
		writer: writer, dir: cfg.Dir, metaPath: filepath.Join(cfg.Dir, "checkpoint.json"),
		checkpointInterval: cfg.CheckpointInterval, checkpointTimeout: cfg.CheckpointTimeout,
		autoCheckpoint:      cfg.AutoCheckpoint,
		activeTransactions:  map[uint32]bool{},
		txnStartLSN:         map[uint32]uint64{},
		dirtyPages:          map[uint32]uint64{},
		lastCheckpointTime:  time.Now(),
	}
	cm.loadLastCheckpoint()
	if cfg.AutoCheckpoint {
		cm.startAutoCheckpoint()
	}
	return cm
}

func (cm *CheckpointManager) loadLastCheckpoint() {
	data, err := os.ReadFile(cm.metaPath)
	if err != nil {
		return
	}
	var md CheckpointMetadata
	if json.Unmarshal(data, &md) == nil {
		cm.lastCheckpoint = &md
	}
}

func (cm *CheckpointManager) saveCheckpointMetadata(md *CheckpointMetadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return errors.Annotate(err, "wal: marshal checkpoint")
	}
	tmp := cm.metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "wal: write checkpoint temp")
	}
	return os.Rename(tmp, cm.metaPath)
}

func (cm *CheckpointManager) startAutoCheckpoint() {
	cm.stopCh = make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cm.mu.Lock()
				due := cm.shouldCheckpointLocked()
				cm.mu.Unlock()
				if due {
					if _, err := cm.CreateCheckpoint(false); err != nil {
						logger.Errorf("wal: auto checkpoint failed: %v", err)
					}
				}
			case <-cm.stopCh:
				return
			}
		}
	}()
}

func (cm *CheckpointManager) shouldCheckpointLocked() bool {
	if cm.recordsSinceCheckpoint >= cm.checkpointInterval {
		return true
	}
	return time.Since(cm.lastCheckpointTime) >= cm.checkpointTimeout
}

func (cm *CheckpointManager) RecordWrite(lsn uint64, pageID *uint32, txnID *uint32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.recordsSinceCheckpoint++
	if pageID != nil {
		if _, ok := cm.dirtyPages[*pageID]; !ok {
			cm.dirtyPages[*pageID] = lsn
		}
	}
	if cm.autoCheckpoint && cm.shouldCheckpointLocked() {
		go func() {
			if _, err := cm.CreateCheckpoint(false); err != nil {
				logger.Errorf("wal: checkpoint-on-write failed: %v", err)
			}
		}()
	}
}

func (cm *CheckpointManager) BeginTransaction(txnID uint32, lsn uint64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.activeTransactions[txnID] = true
	cm.txnStartLSN[txnID] = lsn
}

func (cm *CheckpointManager) EndTransaction(txnID uint32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.activeTransactions, txnID)
	delete(cm.txnStartLSN, txnID)
}

// CreateCheckpoint writes BEGIN, a snapshot, then END, persisting
// checkpoint.json atomically, per spec.md §4.6.
func (cm *CheckpointManager) CreateCheckpoint(force bool) (*CheckpointMetadata, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !force && !cm.shouldCheckpointLocked() {
		return cm.lastCheckpoint, nil
	}

	currentLSN := cm.writer.TotalRecordsWritten()

	beginRec := Record{
		LSN: currentLSN, Type: CheckpointBegin,
		Metadata: map[string]interface{}{
			"dirty_page_count":        len(cm.dirtyPages),
			"active_transaction_count": len(cm.activeTransactions),
		},
	}
	if _, err := cm.writer.Write(beginRec, true); err != nil {
		return nil, err
	}

	fileNum, fileOff := cm.writer.CurrentPosition()
	dirtyCopy := map[string]uint64{}
	for k, v := range cm.dirtyPages {
		dirtyCopy[strconv.FormatUint(uint64(k), 10)] = v
	}
	activeCopy := make([]uint32, 0, len(cm.activeTransactions))
	for txn := range cm.activeTransactions {
		activeCopy = append(activeCopy, txn)
	}

	var startLSN uint64
	if cm.lastCheckpoint != nil {
		startLSN = cm.lastCheckpoint.EndLSN
	}
	md := &CheckpointMetadata{
		CheckpointLSN: currentLSN + 1, CheckpointTime: nowSeconds(),
		StartLSN: startLSN, EndLSN: currentLSN,
		DirtyPages: dirtyCopy, ActiveTransactions: activeCopy,
		FileNumber: fileNum, FileOffset: fileOff,
	}

	payload, err := json.Marshal(md)
	if err != nil {
		return nil, errors.Annotate(err, "wal: marshal checkpoint payload")
	}
	endRec := Record{LSN: currentLSN + 2, Type: CheckpointEnd, Data: payload}
	if _, err := cm.writer.Write(endRec, true); err != nil {
		return nil, err
	}

	if err := cm.saveCheckpointMetadata(md); err != nil {
		return nil, err
	}

	cm.lastCheckpoint = md
	cm.lastCheckpointTime = time.Now()
	cm.recordsSinceCheckpoint = 0
	cm.totalCheckpoints++

	if cm.totalCheckpoints%10 == 0 {
		cm.cleanupOldLogsLocked()
	}

	logger.Infof("wal: checkpoint created lsn=%d dirty_pages=%d active_txns=%d",
		md.CheckpointLSN, len(md.DirtyPages), len(md.ActiveTransactions))
	return md, nil
}

// cleanupOldLogsLocked deletes log files whose file number is below
// last_checkpoint.file_number - 2, per spec.md §4.6.
func (cm *CheckpointManager) cleanupOldLogsLocked() {
	if cm.lastCheckpoint == nil {
		return
	}
	min := cm.lastCheckpoint.FileNumber - 2
	if min < 0 {
		min = 0
	}
	files, err := listWalFiles(cm.dir)
	if err != nil {
		return
	}
	cleaned := 0
	for _, f := range files {
		name := filepath.Base(f)
		numPart := strings.TrimSuffix(strings.TrimPrefix(name, "wal_"), ".log")
		n, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		if n < min {
			if os.Remove(f) == nil {
				cleaned++
			}
		}
	}
	if cleaned > 0 {
		cm.totalLogCleanups++
		logger.Infof("wal: cleaned %d old log files", cleaned)
	}
}

func (cm *CheckpointManager) GetRecoveryInfo() *CheckpointMetadata {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastCheckpoint
}

func (cm *CheckpointManager) Stop() {
	if cm.stopCh != nil {
		close(cm.stopCh)
	}
	if _, err := cm.CreateCheckpoint(true); err != nil {
		logger.Errorf("wal: final checkpoint failed: %v", err)
	}
}

package wal

import (
	"sort"

	"github.com/zhukovaskychina/xmysql-server/logger"
)

// PageWriter is the subset of the buffer pool / page manager the
// recovery manager needs to replay and revert page images, decoupling
// this package from the concrete storage types.
type PageWriter interface {
	Write(pageID uint64, data []byte) error
	Read(pageID uint64) ([]byte, error)
}

type RecoveryStats struct {
	RecordsAnalyzed   int
	RecordsRedone     int
	RecordsUndone     int
	TransactionsAborted int
	StartLSN          uint64
	EndLSN            uint64
}

type RecoveryManager struct {
	dir    string
	pages  PageWriter
}

func NewRecoveryManager(dir string, pages PageWriter) *RecoveryManager {
	return &RecoveryManager{dir: dir, pages: pages}
}

// Recover runs the three-phase ARIES-lite procedure spec.md §4.6
// documents: analyze (find the last checkpoint and the set of
// transactions active at crash time), redo (replay every page-related
// record from the checkpoint's start LSN forward), and undo (roll back
// any transaction still open at crash time by replaying its before-images
// in reverse).
func (rm *RecoveryManager) Recover() (RecoveryStats, error) {
	reader, err := NewReader(rm.dir)
	if err != nil {
		return RecoveryStats{}, err
	}

	_, end, err := reader.FindLastCheckpoint()
	if err != nil {
		return RecoveryStats{}, err
	}

	var startLSN uint64
	if end != nil {
		startLSN = end.LSN
	}

	records, err := reader.ReadFromLSN(startLSN)
	if err != nil {
		return RecoveryStats{}, err
	}

	stats := RecoveryStats{StartLSN: startLSN}
	if len(records) > 0 {
		stats.EndLSN = records[len(records)-1].LSN
	}

	_, losers := rm.analyze(records)
	stats.RecordsAnalyzed = len(records)

	if err := rm.redo(records, &stats); err != nil {
		return stats, err
	}

	if err := rm.undo(records, losers, &stats); err != nil {
		return stats, err
	}

	logger.Infof("wal: recovery complete analyzed=%d redone=%d undone=%d aborted_txns=%d",
		stats.RecordsAnalyzed, stats.RecordsRedone, stats.RecordsUndone, stats.TransactionsAborted)
	return stats, nil
}

// analyze partitions transactions seen in the log into winners (committed)
// and losers (never committed nor aborted by crash time), per spec.md
// §4.6's recovery contract.
func (rm *RecoveryManager) analyze(records []Record) (winners, losers map[uint32]bool) {
	winners = map[uint32]bool{}
	losers = map[uint32]bool{}
	for _, r := range records {
		if !r.IsTransactionRelated() && r.TxnID == 0 {
			continue
		}
		switch r.Type {
		case TxnBegin:
			losers[r.TxnID] = true
		case TxnCommit:
			winners[r.TxnID] = true
			delete(losers, r.TxnID)
		case TxnAbort:
			delete(losers, r.TxnID)
		}
	}
	return winners, losers
}

// redo replays every page-related record forward in LSN order,
// reconstructing page images regardless of which transaction wrote them;
// undo will revert losers afterward.
func (rm *RecoveryManager) redo(records []Record, stats *RecoveryStats) error {
	if rm.pages == nil {
		return nil
	}
	ordered := append([]Record{}, records...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LSN < ordered[j].LSN })

	for _, r := range ordered {
		if !r.IsPageRelated() || len(r.Data) == 0 {
			continue
		}
		if err := rm.pages.Write(uint64(r.PageID), r.Data); err != nil {
			return err
		}
		stats.RecordsRedone++
	}
	return nil
}

// undo reverts losing transactions by replaying their before-images
// (carried in Metadata["before_image"], when present) in reverse LSN
// order, then counts the transaction as aborted.
func (rm *RecoveryManager) undo(records []Record, losers map[uint32]bool, stats *RecoveryStats) error {
	if rm.pages == nil || len(losers) == 0 {
		return nil
	}
	ordered := append([]Record{}, records...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LSN > ordered[j].LSN })

	for _, r := range ordered {
		if !r.IsPageRelated() || !losers[r.TxnID] {
			continue
		}
		before, ok := r.Metadata["before_image"]
		if !ok {
			continue
		}
		raw, ok := before.(string)
		if !ok {
			continue
		}
		if err := rm.pages.Write(uint64(r.PageID), []byte(raw)); err != nil {
			return err
		}
		stats.RecordsUndone++
	}
	stats.TransactionsAborted = len(losers)
	return nil
}

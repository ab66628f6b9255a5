package wal

import (
	"os"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

type Reader struct {
	dir   string
	files []string

	corruptedRecords int
}

func NewReader(dir string) (*Reader, error) {
	files, err := listWalFiles(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{dir: dir, files: files}, nil
}

// ReadAll returns every record across all log files, oldest file first
// and in write order within each file (records are not sorted by LSN),
// recovering from corruption by scanning byte-by-byte for the next
// valid magic, per spec.md §4.6.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for _, path := range r.files {
		recs, err := r.readFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (r *Reader) ReadFromLSN(startLSN uint64) ([]Record, error) {
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range all {
		if rec.LSN >= startLSN {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Reader) readFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "wal: read %s", path)
	}

	var out []Record
	pos := 0
	for pos < len(data) {
		remaining := data[pos:]
		if len(remaining) < HeaderSize+8 {
			break
		}
		rec, consumed, err := Deserialize(remaining)
		if err != nil {
			logger.Warnf("wal: corruption at offset %d in %s: %v", pos, path, err)
			r.corruptedRecords++
			skip := r.scanForNextMagic(remaining[1:])
			if skip < 0 {
				break
			}
			pos += 1 + skip
			continue
		}
		out = append(out, rec)
		pos += consumed
	}
	return out, nil
}

// scanForNextMagic performs the byte-by-byte forward scan for the
// next valid magic number, the recovery behavior spec.md §4.6
// documents for partial/corrupt files.
func (r *Reader) scanForNextMagic(data []byte) int {
	for i := 0; i+4 <= len(data); i++ {
		if _, _, err := Deserialize(data[i:]); err == nil {
			return i
		}
	}
	return -1
}

// FindLastCheckpoint scans for the last complete CHECKPOINT_BEGIN/END
// pair.
func (r *Reader) FindLastCheckpoint() (begin, end *Record, err error) {
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type == CheckpointEnd {
			e := all[i]
			for j := i - 1; j >= 0; j-- {
				if all[j].Type == CheckpointBegin {
					b := all[j]
					return &b, &e, nil
				}
			}
		}
	}
	return nil, nil, nil
}

func (r *Reader) CorruptedRecordCount() int { return r.corruptedRecords }

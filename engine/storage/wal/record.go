// Package wal implements the durable, binary write-ahead log: record
// format, batched writer, corruption-tolerant reader, checkpointing,
// and ARIES-lite recovery, per spec.md §4.6.
package wal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"math"
	"time"

	"github.com/juju/errors"
	"github.com/pierrec/lz4/v4"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
)

const (
	Magic      uint32 = 0x57414C31
	HeaderSize        = 32
)

type RecordType uint32

const (
	PageWrite RecordType = iota + 1
	PageUpdate
	TxnBegin
	TxnCommit
	TxnAbort
	CheckpointBegin
	CheckpointEnd
	TableCreate
	TableDrop
	IndexCreate
	IndexDrop
	SystemInit
)

// Record is one WAL entry. Metadata carries auxiliary fields such as
// a PAGE_UPDATE's byte offset or a rollback's before-image.
type Record struct {
	LSN       uint64
	Type      RecordType
	Timestamp float64
	TxnID     uint32
	PageID    uint32
	Data      []byte
	Metadata  map[string]interface{}
	CRC       uint32
}

func (r Record) IsPageRelated() bool {
	return r.Type == PageWrite || r.Type == PageUpdate
}

func (r Record) IsTransactionRelated() bool {
	return r.Type == TxnBegin || r.Type == TxnCommit || r.Type == TxnAbort
}

func (r Record) IsCheckpoint() bool {
	return r.Type == CheckpointBegin || r.Type == CheckpointEnd
}

// Serialize produces the on-disk byte layout documented in spec.md
// §4.6: 32-byte header, 4-byte length-prefixed (optionally metadata-
// prefixed, optionally lz4-compressed) payload, trailing CRC32.
func (r Record) Serialize(compress bool) ([]byte, error) {
	actual := r.Data
	meta := map[string]interface{}{}
	for k, v := range r.Metadata {
		meta[k] = v
	}

	if compress && len(actual) > 512 {
		compressed := make([]byte, lz4.CompressBlockBound(len(actual)))
		var c lz4.Compressor
		n, err := c.CompressBlock(actual, compressed)
		if err == nil && n > 0 && n < len(actual) {
			actual = compressed[:n]
			meta["compressed"] = true
			meta["uncompressed_size"] = len(r.Data)
		}
	}

	var metaBytes []byte
	if len(meta) > 0 {
		var err error
		metaBytes, err = json.Marshal(meta)
		if err != nil {
			return nil, errors.Annotate(err, "wal: marshal metadata")
		}
		prefix := make([]byte, 4)
		binary.LittleEndian.PutUint32(prefix, uint32(len(metaBytes)))
		actual = append(append([]byte{}, prefix...), append(metaBytes, actual...)...)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(r.LSN))
	binary.LittleEndian.PutUint32(header[8:12], uint32(r.Type))
	binary.LittleEndian.PutUint32(header[12:16], 0)
	binary.LittleEndian.PutUint64(header[16:24], math.Float64bits(r.Timestamp))
	binary.LittleEndian.PutUint32(header[24:28], r.TxnID)
	binary.LittleEndian.PutUint32(header[28:32], r.PageID)

	dataPart := make([]byte, 4+len(actual))
	binary.LittleEndian.PutUint32(dataPart[0:4], uint32(len(actual)))
	copy(dataPart[4:], actual)

	sum := crc32.ChecksumIEEE(append(append([]byte{}, header...), dataPart...))
	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, sum)

	out := make([]byte, 0, len(header)+len(dataPart)+len(trailer))
	out = append(out, header...)
	out = append(out, dataPart...)
	out = append(out, trailer...)
	return out, nil
}

// Deserialize parses a single record from data, validating the magic,
// declared length, and trailing CRC32.
func Deserialize(data []byte) (Record, int, error) {
	if len(data) < HeaderSize+8 {
		return Record{}, 0, errors.Annotate(errs.ErrCorruptRecord, "wal: buffer too short")
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != Magic {
		return Record{}, 0, errors.Annotate(errs.ErrCorruptRecord, "wal: bad magic")
	}
	lsn := binary.LittleEndian.Uint32(data[4:8])
	typ := binary.LittleEndian.Uint32(data[8:12])
	ts := math.Float64frombits(binary.LittleEndian.Uint64(data[16:24]))
	txnID := binary.LittleEndian.Uint32(data[24:28])
	pageID := binary.LittleEndian.Uint32(data[28:32])

	dataLen := binary.LittleEndian.Uint32(data[32:36])
	total := HeaderSize + 4 + int(dataLen) + 4
	if len(data) < total {
		return Record{}, 0, errors.Annotate(errs.ErrCorruptRecord, "wal: truncated record")
	}

	actual := data[36 : 36+int(dataLen)]
	storedCRC := binary.LittleEndian.Uint32(data[36+int(dataLen) : total])
	gotCRC := crc32.ChecksumIEEE(data[:36+int(dataLen)])
	if gotCRC != storedCRC {
		return Record{}, 0, errors.Annotate(errs.ErrCorruptRecord, "wal: crc mismatch")
	}

	meta := map[string]interface{}{}
	payload := actual
	if len(actual) >= 4 {
		metaLen := binary.LittleEndian.Uint32(actual[0:4])
		if int(metaLen) <= len(actual)-4 {
			var candidate map[string]interface{}
			if json.Unmarshal(actual[4:4+int(metaLen)], &candidate) == nil {
				meta = candidate
				payload = actual[4+int(metaLen):]
			}
		}
	}

	if compressedFlag, ok := meta["compressed"].(bool); ok && compressedFlag {
		size := len(payload) * 4
		if sz, ok := meta["uncompressed_size"].(float64); ok {
			size = int(sz)
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err == nil {
			payload = dst[:n]
		}
	}

	r := Record{
		LSN: uint64(lsn), Type: RecordType(typ), Timestamp: ts,
		TxnID: txnID, PageID: pageID, Data: payload, Metadata: meta, CRC: gotCRC,
	}
	return r, total, nil
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Batch accumulates serialized records up to a byte budget before a
// single flush, per spec.md §4.6's batched-writer requirement.
type Batch struct {
	records []Record
	maxSize int
	size    int
}

func NewBatch(maxSize int) *Batch { return &Batch{maxSize: maxSize} }

func (b *Batch) Add(r Record) bool {
	approx := HeaderSize + 8 + len(r.Data) + 64
	if len(b.records) > 0 && b.size+approx > b.maxSize {
		return false
	}
	b.records = append(b.records, r)
	b.size += approx
	return true
}

func (b *Batch) IsEmpty() bool { return len(b.records) == 0 }
func (b *Batch) IsFull() bool  { return b.size >= int(float64(b.maxSize)*0.9) }
func (b *Batch) Clear()        { b.records = nil; b.size = 0 }

func (b *Batch) Serialize(compress bool) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range b.records {
		enc, err := r.Serialize(compress)
		if err != nil {
			return nil, err
		}
		buf.Write(enc)
	}
	return buf.Bytes(), nil
}

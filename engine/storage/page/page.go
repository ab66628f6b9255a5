// Package page implements the slotted-page binary layout described in
// spec.md §3/§4.5: a 16-byte header, a slot directory of 4-byte
// offsets, and a downward-growing payload region.
package page

import (
	"encoding/binary"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
)

const (
	Size         = 4096
	HeaderSize   = 16
	SlotSize     = 4
)

// header layout (little-endian):
//   0:4   record count (live slots)
//   4:8   free-space start offset (where the slot directory ends)
//   8:12  next page id (0 = none)
//   12:16 reserved

func recordCount(p []byte) uint32     { return binary.LittleEndian.Uint32(p[0:4]) }
func setRecordCount(p []byte, n uint32) { binary.LittleEndian.PutUint32(p[0:4], n) }
func freeStart(p []byte) uint32       { return binary.LittleEndian.Uint32(p[4:8]) }
func setFreeStart(p []byte, v uint32) { binary.LittleEndian.PutUint32(p[4:8], v) }
func NextPageID(p []byte) uint32      { return binary.LittleEndian.Uint32(p[8:12]) }
func SetNextPageID(p []byte, id uint32) { binary.LittleEndian.PutUint32(p[8:12], id) }

// CreateEmpty returns a freshly zeroed page with a valid empty header.
func CreateEmpty() []byte {
	p := make([]byte, Size)
	setRecordCount(p, 0)
	setFreeStart(p, HeaderSize)
	return p
}

func slotOffset(i uint32) int { return HeaderSize + int(i)*SlotSize }

func slotAt(p []byte, i uint32) uint32 {
	off := slotOffset(i)
	return binary.LittleEndian.Uint32(p[off : off+4])
}

func setSlot(p []byte, i uint32, value uint32) {
	off := slotOffset(i)
	binary.LittleEndian.PutUint32(p[off:off+4], value)
}

// payloadStart returns the lowest live record offset, i.e. where the
// payload region begins, or Size when there are no slots.
func payloadStart(p []byte, slots []uint32, lengths []uint32) uint32 {
	min := uint32(Size)
	for i, off := range slots {
		end := off + lengths[i]
		_ = end
		if off < min {
			min = off
		}
	}
	return min
}

// blockLengths derives each live record's byte length from the sorted
// slot offsets (a record's length is the gap to the next record's
// start, or to Size for the record closest to the end).
func blockLengths(offsets []uint32) []uint32 {
	n := len(offsets)
	lengths := make([]uint32, n)
	// sort offsets descending to compute gaps, but keep original order
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := 1; i < n; i++ {
		for j := i; j > 0 && offsets[order[j-1]] < offsets[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	prevStart := uint32(Size)
	for _, idx := range order {
		lengths[idx] = prevStart - offsets[idx]
		prevStart = offsets[idx]
	}
	return lengths
}

// AddRecord appends bytes as a new record, rebuilding the slot
// directory. Returns the updated page and whether it fit.
func AddRecord(p []byte, data []byte) ([]byte, bool) {
	if len(data) > Size-HeaderSize-SlotSize {
		return p, false
	}

	n := recordCount(p)
	offsets := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		offsets[i] = slotAt(p, i)
	}
	lengths := blockLengths(offsets)

	payloadStart := uint32(Size)
	for _, off := range offsets {
		if off < payloadStart {
			payloadStart = off
		}
	}
	if n == 0 {
		payloadStart = Size
	}

	newDirEnd := HeaderSize + int(n+1)*SlotSize
	newRecordStart := int(payloadStart) - len(data)
	if newRecordStart < newDirEnd {
		return p, false
	}

	out := make([]byte, Size)
	copy(out, p[:HeaderSize])
	// Copy existing record bytes unchanged (they keep their absolute
	// offsets; only the directory grows).
	for i := uint32(0); i < n; i++ {
		off := offsets[i]
		l := lengths[i]
		copy(out[off:off+l], p[off:off+l])
		setSlot(out, i, off)
	}
	copy(out[newRecordStart:], data)
	setSlot(out, n, uint32(newRecordStart))

	setRecordCount(out, n+1)
	setFreeStart(out, uint32(newDirEnd))
	SetNextPageID(out, NextPageID(p))
	return out, true
}

// GetRecords returns every live record's raw bytes in slot order.
func GetRecords(p []byte) [][]byte {
	n := recordCount(p)
	offsets := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		offsets[i] = slotAt(p, i)
	}
	lengths := blockLengths(offsets)

	out := make([][]byte, n)
	for i := uint32(0); i < n; i++ {
		off, l := offsets[i], lengths[i]
		buf := make([]byte, l)
		copy(buf, p[off:off+l])
		out[i] = buf
	}
	return out
}

// RemoveRecord repacks the page without the record at idx, producing
// a canonical (compact) page per spec.md §4.5's design decision.
func RemoveRecord(p []byte, idx uint32) ([]byte, bool) {
	n := recordCount(p)
	if idx >= n {
		return p, false
	}
	records := GetRecords(p)
	kept := make([][]byte, 0, n-1)
	for i, r := range records {
		if uint32(i) == idx {
			continue
		}
		kept = append(kept, r)
	}

	out := CreateEmpty()
	SetNextPageID(out, NextPageID(p))
	for _, r := range kept {
		var ok bool
		out, ok = AddRecord(out, r)
		if !ok {
			return p, false
		}
	}
	return out, true
}

type Info struct {
	RecordCount uint32
	FreeSpace   uint32
	NextPageID  uint32
}

func GetInfo(p []byte) Info {
	n := recordCount(p)
	dirEnd := uint32(HeaderSize) + n*SlotSize
	offsets := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		offsets[i] = slotAt(p, i)
	}
	minOffset := uint32(Size)
	for _, off := range offsets {
		if off < minOffset {
			minOffset = off
		}
	}
	if n == 0 {
		minOffset = Size
	}
	return Info{RecordCount: n, FreeSpace: minOffset - dirEnd, NextPageID: NextPageID(p)}
}

func Utilization(p []byte) float64 {
	info := GetInfo(p)
	used := Size - int(info.FreeSpace)
	return float64(used) / float64(Size)
}

// ValidateInvariants checks that every live record starts at or after
// the end of the slot directory and ends within the page; returns a
// descriptive error otherwise. Record lengths are derived from the gaps
// between offsets, so overlap is not checked separately.
func ValidateInvariants(p []byte) error {
	n := recordCount(p)
	dirEnd := uint32(HeaderSize) + n*SlotSize
	offsets := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		offsets[i] = slotAt(p, i)
	}
	lengths := blockLengths(offsets)
	for i, off := range offsets {
		if off < dirEnd || off+lengths[i] > Size {
			return errors.Annotatef(errs.ErrInvalidPageID, "record %d offset %d out of bounds", i, off)
		}
	}
	return nil
}

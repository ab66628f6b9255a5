// Package record implements the per-column type codecs and the
// byte-encoded tuple format described in spec.md §3: a leading status
// byte (0 live, 1 tombstone) followed by fixed- or variable-width
// column encodings in schema order.
package record

import (
	"encoding/binary"
	"math"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
)

type ColumnType int

// Numeric type tags are an engine-local enumeration starting at 1; they
// are the values the catalog stores on disk and do not follow MySQL's
// field-type codes.
const (
	TypeInt ColumnType = iota + 1
	TypeBigInt
	TypeFloat
	TypeDouble
	TypeVarchar
	TypeChar
	TypeBoolean
	TypeDate
	TypeDecimal
)

type Column struct {
	Name   string
	Type   ColumnType
	Length int // declared width for VARCHAR/CHAR; for DECIMAL, the maximum length of the value's text form
}

type Schema []Column

// Value is the closed set of dynamically-typed row values per
// spec.md §9: int64, float64, string, bool, decimal, or nil for NULL.
type Value interface{}

type Record map[string]Value

const (
	statusLive      byte = 0
	statusTombstone byte = 1
)

// Serialize encodes a record as status byte + schema-ordered fields.
// A NULL at position i is encoded as zeroed bytes for that field.
func Serialize(rec Record, schema Schema) ([]byte, error) {
	buf := []byte{statusLive}
	for _, col := range schema {
		v := rec[col.Name]
		enc, err := encodeField(col, v)
		if err != nil {
			return nil, errors.Annotatef(err, "column %q", col.Name)
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

func fieldWidth(col Column) int {
	switch col.Type {
	case TypeInt:
		return 4
	case TypeBigInt:
		return 8
	case TypeFloat:
		return 4
	case TypeDouble:
		return 8
	case TypeBoolean:
		return 1
	case TypeDate:
		return 8
	case TypeVarchar, TypeChar:
		return 2 + col.Length
	case TypeDecimal:
		return 2 + col.Length
	default:
		return 0
	}
}

func encodeField(col Column, v Value) ([]byte, error) {
	out := make([]byte, fieldWidth(col))
	if v == nil {
		return out, nil
	}
	switch col.Type {
	case TypeInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		binary.LittleEndian.PutUint32(out, uint32(int32(n)))
	case TypeBigInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		binary.LittleEndian.PutUint64(out, uint64(n))
	case TypeFloat:
		f, ok := toFloat64(v)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		binary.LittleEndian.PutUint32(out, math.Float32bits(float32(f)))
	case TypeDouble:
		f, ok := toFloat64(v)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		binary.LittleEndian.PutUint64(out, math.Float64bits(f))
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		if b {
			out[0] = 1
		}
	case TypeDate:
		n, ok := toInt64(v)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		binary.LittleEndian.PutUint64(out, uint64(n))
	case TypeVarchar, TypeChar:
		s, ok := v.(string)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		if len(s) > col.Length {
			return nil, errors.Annotatef(errs.ErrLengthOverflow, "len %d > declared %d", len(s), col.Length)
		}
		binary.LittleEndian.PutUint16(out[:2], uint16(len(s)))
		copy(out[2:], s)
	case TypeDecimal:
		d, ok := toDecimal(v)
		if !ok {
			return nil, errs.ErrTypeMismatch
		}
		s := d.String()
		if len(s) > col.Length {
			return nil, errors.Annotatef(errs.ErrLengthOverflow, "decimal %q exceeds declared width", s)
		}
		binary.LittleEndian.PutUint16(out[:2], uint16(len(s)))
		copy(out[2:], s)
	default:
		return nil, errs.ErrUnknownType
	}
	return out, nil
}

// Deserialize reads the status byte and then each column in order,
// with bounds checks. A tombstone status returns (nil, true, nil).
func Deserialize(data []byte, schema Schema) (Record, bool, error) {
	if len(data) < 1 {
		return nil, false, errors.Annotate(errs.ErrLengthOverflow, "record: empty buffer")
	}
	if data[0] == statusTombstone {
		return nil, true, nil
	}

	rec := Record{}
	pos := 1
	for _, col := range schema {
		w := fieldWidth(col)
		if pos+w > len(data) {
			return nil, false, errors.Annotatef(errs.ErrLengthOverflow, "column %q out of bounds", col.Name)
		}
		field := data[pos : pos+w]
		pos += w

		v, isNull := decodeField(col, field)
		if isNull {
			rec[col.Name] = nil
		} else {
			rec[col.Name] = v
		}
	}
	return rec, false, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func decodeField(col Column, field []byte) (Value, bool) {
	switch col.Type {
	case TypeInt:
		if allZero(field) {
			return nil, true
		}
		return int64(int32(binary.LittleEndian.Uint32(field))), false
	case TypeBigInt:
		if allZero(field) {
			return nil, true
		}
		return int64(binary.LittleEndian.Uint64(field)), false
	case TypeFloat:
		if allZero(field) {
			return nil, true
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(field))), false
	case TypeDouble:
		if allZero(field) {
			return nil, true
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(field)), false
	case TypeBoolean:
		if allZero(field) {
			return nil, true
		}
		return field[0] != 0, false
	case TypeDate:
		if allZero(field) {
			return nil, true
		}
		return int64(binary.LittleEndian.Uint64(field)), false
	case TypeVarchar, TypeChar:
		n := binary.LittleEndian.Uint16(field[:2])
		if n == 0 {
			return nil, true
		}
		return string(field[2 : 2+int(n)]), false
	case TypeDecimal:
		n := binary.LittleEndian.Uint16(field[:2])
		if n == 0 {
			return nil, true
		}
		s := string(field[2 : 2+int(n)])
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, true
		}
		return d, false
	default:
		return nil, true
	}
}

func toInt64(v Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toDecimal(v Value) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// CalculateSize estimates a schema's fixed encoded width (recorded as a
// new table's estimated record size) by summing each column's field
// width plus the leading status byte.
func CalculateSize(schema Schema) int {
	total := 1
	for _, col := range schema {
		total += fieldWidth(col)
	}
	return total
}

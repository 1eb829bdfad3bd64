package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Kind is the storage class of a Value.
// It mirrors SQLite's five storage classes.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

// String returns the lower-case storage class name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single SQL value tagged with its storage class.
//
// The zero Value is NULL. Values are immutable; Blob copies its input and
// Bytes returns a copy, so a Value can be shared freely.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Row is one result row keyed by column name.
type Row map[string]Value

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Integer returns a 64-bit integer value.
func Integer(v int64) Value { return Value{kind: KindInteger, i: v} }

// Real returns a double-precision value.
func Real(v float64) Value { return Value{kind: KindReal, f: v} }

// Text returns a UTF-8 text value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Blob returns a byte-sequence value holding a copy of v.
// A nil slice produces an empty blob, not NULL.
func Blob(v []byte) Value {
	b := make([]byte, len(v))
	copy(b, v)
	return Value{kind: KindBlob, b: b}
}

// Kind reports the storage class.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is SQL NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer payload and whether v is an Integer.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInteger }

// Float64 returns the real payload and whether v is a Real.
func (v Value) Float64() (float64, bool) { return v.f, v.kind == KindReal }

// Text returns the text payload and whether v is Text.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }

// Bytes returns a copy of the blob payload and whether v is a Blob.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	b := make([]byte, len(v.b))
	copy(b, v.b)
	return b, true
}

// Interface returns the payload as a plain Go value:
// nil, int64, float64, string or []byte.
func (v Value) Interface() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		b, _ := v.Bytes()
		return b
	default:
		return nil
	}
}

// Equal reports whether v and other have the same storage class and payload.
// Reals compare with ==, so NaN is never equal to itself.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInteger:
		return v.i == other.i
	case KindReal:
		return v.f == other.f
	case KindText:
		return v.s == other.s
	case KindBlob:
		return bytes.Equal(v.b, other.b)
	}
	return false
}

// String renders v for logs and CLI output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.b)
	}
	return ""
}

// MarshalJSON encodes NULL as null, numbers as JSON numbers, text as a
// string and blobs as base64 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindReal && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return json.Marshal(v.String())
	}
	return json.Marshal(v.Interface())
}

// ValueOf converts a Go value into a Value.
//
// Accepted inputs are nil, Value, every integer kind, float32, float64,
// string, []byte, bool (stored as 0 or 1), time.Time (stored as text in
// SQLite's timestamp layout) and json.Number. Anything else is rejected.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case int:
		return Integer(int64(x)), nil
	case int8:
		return Integer(int64(x)), nil
	case int16:
		return Integer(int64(x)), nil
	case int32:
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case uint:
		return unsignedValue(uint64(x))
	case uint8:
		return Integer(int64(x)), nil
	case uint16:
		return Integer(int64(x)), nil
	case uint32:
		return Integer(int64(x)), nil
	case uint64:
		return unsignedValue(x)
	case float32:
		return Real(float64(x)), nil
	case float64:
		return Real(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case bool:
		if x {
			return Integer(1), nil
		}
		return Integer(0), nil
	case time.Time:
		return Text(x.Format(sqlite3.SQLiteTimestampFormats[0])), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Real(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func unsignedValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return Integer(int64(u)), nil
}

// driverValue converts v into the form the engine drivers bind.
func (v Value) driverValue() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		if v.b == nil {
			return []byte{}
		}
		return v.b
	default:
		return nil
	}
}

// fromDriver decodes a column value produced by a driver's Rows.Next.
// Driver conveniences are folded back into storage classes: bool becomes
// Integer and time.Time becomes Text.
func fromDriver(src any) (Value, error) {
	switch x := src.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Integer(x), nil
	case float64:
		return Real(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case bool:
		if x {
			return Integer(1), nil
		}
		return Integer(0), nil
	case time.Time:
		return Text(x.Format(sqlite3.SQLiteTimestampFormats[0])), nil
	default:
		return Value{}, fmt.Errorf("unexpected driver value type %T", src)
	}
}

// Package rowcodec serializes and deserializes rows against a schema,
// tracking the row-level live/dead marker and per-column nullable presence
// bytes. A row is the unit the table store and B+-tree index both operate
// on; this package knows nothing about pages beyond raw byte offsets.
package rowcodec

import (
	"fmt"
	"time"

	"github.com/gql-db/gqldb/internal/coltype"
)

// Timestamp is seconds + nanoseconds since the Unix epoch, matching the
// on-disk timestamp encoding.
type Timestamp struct {
	Sec  int64
	Nsec int32
}

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

func (ts Timestamp) Time() time.Time { return time.Unix(ts.Sec, int64(ts.Nsec)).UTC() }

// Value holds one column's value: exactly one of the typed fields is
// meaningful, selected by Type.Kind, unless Null is set.
type Value struct {
	Type coltype.Type
	Null bool

	i32 int32
	i64 int64
	f32 float32
	f64 float64
	b   bool
	ts  Timestamp
	str string
}

func NewI32(v int32) Value           { return Value{Type: coltype.I32(), i32: v} }
func NewI64(v int64) Value           { return Value{Type: coltype.I64(), i64: v} }
func NewFloat(v float32) Value       { return Value{Type: coltype.Float(), f32: v} }
func NewDouble(v float64) Value      { return Value{Type: coltype.Double(), f64: v} }
func NewBool(v bool) Value           { return Value{Type: coltype.Bool(), b: v} }
func NewTimestamp(v Timestamp) Value { return Value{Type: coltype.Timestamp(), ts: v} }
func NewString(v string, size uint16) Value {
	return Value{Type: coltype.String(size), str: v}
}

// NewNull builds the null value for a nullable column type t (t.Nullable
// must already be true).
func NewNull(t coltype.Type) Value { return Value{Type: t, Null: true} }

func (v Value) I32() int32           { return v.i32 }
func (v Value) I64() int64           { return v.i64 }
func (v Value) Float32() float32     { return v.f32 }
func (v Value) Float64() float64     { return v.f64 }
func (v Value) Bool() bool           { return v.b }
func (v Value) TimestampVal() Timestamp { return v.ts }
func (v Value) Str() string          { return v.str }

func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type.Kind {
	case coltype.KindI32:
		return fmt.Sprintf("%d", v.i32)
	case coltype.KindI64:
		return fmt.Sprintf("%d", v.i64)
	case coltype.KindFloat:
		return fmt.Sprintf("%g", v.f32)
	case coltype.KindDouble:
		return fmt.Sprintf("%g", v.f64)
	case coltype.KindBool:
		return fmt.Sprintf("%t", v.b)
	case coltype.KindTimestamp:
		return v.ts.Time().Format(time.RFC3339)
	case coltype.KindString:
		return v.str
	}
	return "<?>"
}

// Compare orders two values of the same kind lexicographically. ok is
// false when the two values have mismatched kinds — per the data model,
// mismatched key types are incomparable and must never be silently
// ordered.
func Compare(a, b Value) (cmp int, ok bool) {
	if a.Type.Kind != b.Type.Kind {
		return 0, false
	}
	if a.Null || b.Null {
		switch {
		case a.Null && b.Null:
			return 0, true
		case a.Null:
			return -1, true
		default:
			return 1, true
		}
	}
	switch a.Type.Kind {
	case coltype.KindI32:
		return compareOrdered(a.i32, b.i32), true
	case coltype.KindI64:
		return compareOrdered(a.i64, b.i64), true
	case coltype.KindFloat:
		return compareOrdered(a.f32, b.f32), true
	case coltype.KindDouble:
		return compareOrdered(a.f64, b.f64), true
	case coltype.KindBool:
		return compareOrdered(boolToInt(a.b), boolToInt(b.b)), true
	case coltype.KindTimestamp:
		if a.ts.Sec != b.ts.Sec {
			return compareOrdered(a.ts.Sec, b.ts.Sec), true
		}
		return compareOrdered(a.ts.Nsec, b.ts.Nsec), true
	case coltype.KindString:
		return compareOrdered(a.str, b.str), true
	}
	return 0, false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type ordered interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64 | ~string
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b are the same kind and value.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Key is an ordered tuple of Values forming an index key (or part of one).
type Key []Value

// CompareKeys compares two keys of the same arity column-by-column.
// ok is false if arity differs or any column pair is incomparable.
func CompareKeys(a, b Key) (cmp int, ok bool) {
	if len(a) != len(b) {
		return 0, false
	}
	for i := range a {
		c, ok := Compare(a[i], b[i])
		if !ok {
			return 0, false
		}
		if c != 0 {
			return c, true
		}
	}
	return 0, true
}

// EqualKeys reports whether two keys of the same arity are equal.
func EqualKeys(a, b Key) bool {
	c, ok := CompareKeys(a, b)
	return ok && c == 0
}

// Package coltype defines the column type tags and their on-disk byte
// encoding, per the column type encoding table: fixed-width integers,
// single/double float, bool, timestamp, and fixed-length strings, any of
// which may be wrapped nullable.
package coltype

import "github.com/gql-db/gqldb/internal/dberrors"

// Kind is the scalar type a column holds, independent of nullability.
type Kind uint16

const (
	KindI32 Kind = iota
	KindI64
	KindFloat
	KindDouble
	KindBool
	KindTimestamp
	// KindString is never used directly as a tag; string types carry their
	// length in the low 15 bits of the encoded tag with the high bit set.
	KindString
)

const stringHighBit = uint16(1) << 15

// nullableMarker precedes the inner type tag byte-pair when a column is
// nullable; chosen distinct from any valid Kind/string-length encoding.
const nullableMarker = 0xFF

// Type fully describes one column: its scalar kind, string length (if
// Kind == KindString), and whether it may hold a null/absent value.
type Type struct {
	Kind     Kind
	StrLen   uint16 // meaningful only when Kind == KindString
	Nullable bool
}

func I32() Type       { return Type{Kind: KindI32} }
func I64() Type       { return Type{Kind: KindI64} }
func Float() Type     { return Type{Kind: KindFloat} }
func Double() Type    { return Type{Kind: KindDouble} }
func Bool() Type      { return Type{Kind: KindBool} }
func Timestamp() Type { return Type{Kind: KindTimestamp} }
func String(n uint16) Type {
	return Type{Kind: KindString, StrLen: n}
}

// NullableOf wraps an existing type as nullable.
func NullableOf(t Type) Type {
	t.Nullable = true
	return t
}

// Size returns the number of bytes this type occupies on disk, not
// counting the row-level live/dead marker but including the nullable
// presence byte if Nullable is set.
func (t Type) Size() int {
	base := 0
	switch t.Kind {
	case KindI32, KindFloat:
		base = 4
	case KindI64, KindDouble:
		base = 8
	case KindBool:
		base = 1
	case KindTimestamp:
		base = 12 // int64 seconds + int32 nanos
	case KindString:
		base = int(t.StrLen)
	}
	if t.Nullable {
		base++
	}
	return base
}

// ToUint16 encodes the scalar kind (ignoring nullability) as the column
// type tag described in the on-disk layout.
func (t Type) ToUint16() uint16 {
	switch t.Kind {
	case KindI32:
		return 0
	case KindI64:
		return 1
	case KindFloat:
		return 2
	case KindDouble:
		return 3
	case KindBool:
		return 4
	case KindTimestamp:
		return 5
	case KindString:
		return stringHighBit | t.StrLen
	}
	return 0
}

// FromUint16 decodes a non-nullable scalar type tag.
func FromUint16(v uint16) (Type, error) {
	if v&stringHighBit != 0 {
		return Type{Kind: KindString, StrLen: v &^ stringHighBit}, nil
	}
	switch v {
	case 0:
		return Type{Kind: KindI32}, nil
	case 1:
		return Type{Kind: KindI64}, nil
	case 2:
		return Type{Kind: KindFloat}, nil
	case 3:
		return Type{Kind: KindDouble}, nil
	case 4:
		return Type{Kind: KindBool}, nil
	case 5:
		return Type{Kind: KindTimestamp}, nil
	}
	return Type{}, dberrors.FormatF("unknown column type tag %d", v)
}

// NullableByte is the marker byte preceding the inner type's encoding when
// a column is nullable, as stored in the table header.
const NullableByte = nullableMarker

func (t Type) String() string {
	name := map[Kind]string{
		KindI32: "i32", KindI64: "i64", KindFloat: "float", KindDouble: "double",
		KindBool: "bool", KindTimestamp: "timestamp", KindString: "string",
	}[t.Kind]
	if t.Kind == KindString {
		name = name + "[" + itoa(int(t.StrLen)) + "]"
	}
	if t.Nullable {
		name = "nullable(" + name + ")"
	}
	return name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

package rowcodec

import (
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/pageio"
)

const (
	markerEmpty = 0
	markerLive  = 1
)

// ReadRow reads the row at slot rownum of page against schema. Returns
// (nil, false, nil) if the slot is empty. A marker byte other than 0 or 1
// is a format error (corruption), never silently treated as empty.
func ReadRow(schema Schema, page *pageio.Page, rownum int) (Row, bool, error) {
	size := RowSize(schema)
	base := rownum * size
	marker, err := pageio.ReadUint8(page, base)
	if err != nil {
		return nil, false, err
	}
	switch marker {
	case markerEmpty:
		return nil, false, nil
	case markerLive:
		// fall through
	default:
		return nil, false, dberrors.FormatF("corrupt row marker %d at slot %d", marker, rownum)
	}
	row := make(Row, len(schema))
	for i, col := range schema {
		off := base + ColumnOffset(schema, i)
		v, err := readValue(page, off, col.Type)
		if err != nil {
			return nil, false, err
		}
		row[i] = v
	}
	return row, true, nil
}

// WriteRow writes row into slot rownum of page, marking it live. Fails if
// the slot (including its header byte) would exceed the page.
func WriteRow(schema Schema, page *pageio.Page, row Row, rownum int) error {
	size := RowSize(schema)
	base := rownum * size
	if base+size > pageio.PageSize {
		return dberrors.FormatF("row slot %d (size %d) exceeds page bounds", rownum, size)
	}
	if len(row) != len(schema) {
		return dberrors.SchemaF("row has %d columns, schema has %d", len(row), len(schema))
	}
	if err := pageio.WriteUint8(page, base, markerLive); err != nil {
		return err
	}
	for i, col := range schema {
		off := base + ColumnOffset(schema, i)
		if err := writeValue(page, off, col.Type, row[i]); err != nil {
			return err
		}
	}
	return nil
}

// InsertRow scans slots linearly starting at 0 and writes row into the
// first empty one found. Returns (-1, false, nil) if the page is full.
func InsertRow(schema Schema, page *pageio.Page, row Row) (int, bool, error) {
	size := RowSize(schema)
	capacity := pageio.PageSize / size
	for i := 0; i < capacity; i++ {
		_, live, err := ReadRow(schema, page, i)
		if err != nil {
			return -1, false, err
		}
		if !live {
			if err := WriteRow(schema, page, row, i); err != nil {
				return -1, false, err
			}
			return i, true, nil
		}
	}
	return -1, false, nil
}

// ClearRow zeroes the entire slot, making it reusable.
func ClearRow(schema Schema, page *pageio.Page, rownum int) error {
	size := RowSize(schema)
	base := rownum * size
	if base+size > pageio.PageSize {
		return dberrors.FormatF("row slot %d exceeds page bounds", rownum)
	}
	for i := base; i < base+size; i++ {
		page[i] = 0
	}
	return nil
}

// SlotsPerPage returns how many row slots fit in one page under schema.
func SlotsPerPage(schema Schema) int {
	return pageio.PageSize / RowSize(schema)
}

// EncodeValue writes v at byte offset off of page under type t. Exported
// for callers outside this package (the B+-tree) that lay out single
// column values directly on index pages, outside of full-row slots.
func EncodeValue(page *pageio.Page, off int, t coltype.Type, v Value) error {
	return writeValue(page, off, t, v)
}

// DecodeValue reads a value of type t at byte offset off of page.
func DecodeValue(page *pageio.Page, off int, t coltype.Type) (Value, error) {
	return readValue(page, off, t)
}

// KeyTypeSize is the total encoded byte width of a tuple of column types
// used as an index key (sum of each type's Size()).
func KeyTypeSize(types []coltype.Type) int {
	n := 0
	for _, t := range types {
		n += t.Size()
	}
	return n
}

// EncodeKey writes each value of key in order at consecutive offsets
// starting at off, per types.
func EncodeKey(page *pageio.Page, off int, types []coltype.Type, key Key) error {
	for i, t := range types {
		if err := writeValue(page, off, t, key[i]); err != nil {
			return err
		}
		off += t.Size()
	}
	return nil
}

// DecodeKey reads a Key of the given types starting at byte offset off.
func DecodeKey(page *pageio.Page, off int, types []coltype.Type) (Key, error) {
	key := make(Key, len(types))
	for i, t := range types {
		v, err := readValue(page, off, t)
		if err != nil {
			return nil, err
		}
		key[i] = v
		off += t.Size()
	}
	return key, nil
}

func readValue(page *pageio.Page, off int, t coltype.Type) (Value, error) {
	if t.Nullable {
		present, err := pageio.ReadUint8(page, off)
		if err != nil {
			return Value{}, err
		}
		off++
		if present == 0 {
			return NewNull(t), nil
		}
	}
	inner := t
	inner.Nullable = false
	switch t.Kind {
	case coltype.KindI32:
		v, err := pageio.ReadInt32(page, off)
		return NewI32(v), err
	case coltype.KindI64:
		v, err := pageio.ReadInt64(page, off)
		return NewI64(v), err
	case coltype.KindFloat:
		v, err := pageio.ReadFloat32(page, off)
		return NewFloat(v), err
	case coltype.KindDouble:
		v, err := pageio.ReadFloat64(page, off)
		return NewDouble(v), err
	case coltype.KindBool:
		v, err := pageio.ReadBool(page, off)
		return NewBool(v), err
	case coltype.KindTimestamp:
		sec, err := pageio.ReadInt64(page, off)
		if err != nil {
			return Value{}, err
		}
		nsec, err := pageio.ReadInt32(page, off+8)
		if err != nil {
			return Value{}, err
		}
		return NewTimestamp(Timestamp{Sec: sec, Nsec: nsec}), nil
	case coltype.KindString:
		s, err := pageio.ReadString(page, off, int(t.StrLen))
		return NewString(s, t.StrLen), err
	}
	return Value{}, dberrors.FormatF("unknown column kind %d", t.Kind)
}

func writeValue(page *pageio.Page, off int, t coltype.Type, v Value) error {
	if t.Nullable {
		present := uint8(1)
		if v.Null {
			present = 0
		}
		if err := pageio.WriteUint8(page, off, present); err != nil {
			return err
		}
		off++
		if v.Null {
			return nil
		}
	}
	switch t.Kind {
	case coltype.KindI32:
		return pageio.WriteInt32(page, off, v.I32())
	case coltype.KindI64:
		return pageio.WriteInt64(page, off, v.I64())
	case coltype.KindFloat:
		return pageio.WriteFloat32(page, off, v.Float32())
	case coltype.KindDouble:
		return pageio.WriteFloat64(page, off, v.Float64())
	case coltype.KindBool:
		return pageio.WriteBool(page, off, v.Bool())
	case coltype.KindTimestamp:
		ts := v.TimestampVal()
		if err := pageio.WriteInt64(page, off, ts.Sec); err != nil {
			return err
		}
		return pageio.WriteInt32(page, off+8, ts.Nsec)
	case coltype.KindString:
		return pageio.WriteString(page, off, v.Str(), int(t.StrLen))
	}
	return dberrors.FormatF("unknown column kind %d", t.Kind)
}

package rowcodec

import "github.com/gql-db/gqldb/internal/coltype"

// Column is one (name, type) pair in a table schema.
type Column struct {
	Name string
	Type coltype.Type
}

// Schema is an ordered list of columns. Schemas are immutable once a table
// is created.
type Schema []Column

// RowSize returns the serialized size of a row against this schema,
// including the one-byte live/dead marker at its head.
func RowSize(schema Schema) int {
	size := 1
	for _, c := range schema {
		size += c.Type.Size()
	}
	return size
}

// ColumnOffset returns the byte offset of column i within a serialized row
// (relative to the row's own start, i.e. after the live/dead marker).
func ColumnOffset(schema Schema, i int) int {
	off := 1
	for j := 0; j < i; j++ {
		off += schema[j].Type.Size()
	}
	return off
}

// IndexOf returns the position of a column by name, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Project returns the sub-schema for the given column positions, in order
// — used to derive an index's key type from its column-id list.
func (s Schema) Project(cols []int) Schema {
	out := make(Schema, len(cols))
	for i, c := range cols {
		out[i] = s[c]
	}
	return out
}

// Row is one row's values, ordered to match its schema.
type Row []Value

// Project extracts the key tuple for the given column positions, in
// order — the index key for a row under a given index id.
func (r Row) Project(cols []int) Key {
	k := make(Key, len(cols))
	for i, c := range cols {
		k[i] = r[c]
	}
	return k
}

// Clone returns an independent copy of the row (Value is a value type, so
// a slice copy suffices).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// RowLocation addresses a row by (page number, row number within page).
type RowLocation struct {
	PageNum uint32
	RowNum  uint16
}

// RowInfo pairs a row with its on-disk location, the unit diffs carry.
type RowInfo struct {
	Row Row
	Loc RowLocation
}

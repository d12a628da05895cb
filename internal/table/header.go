// Package table implements the page-oriented table file: page 0 is a
// header (page count, schema, index catalog); pages 1..N are data pages
// holding a dense array of row slots, or index pages owned by internal/btree.
package table

import (
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/pageio"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// ColumnNameSize and IndexNameSize are the fixed-width string fields used
// in the header page layout.
const (
	ColumnNameSize = 50
	IndexNameSize  = 50

	columnEntrySize = 1 + 2 + ColumnNameSize // nullable-marker byte + type tag u16 + name
)

// IndexID is the ordered list of column positions composing an index key,
// per the data model.
type IndexID []int

// IndexEntry is one row of the header's index catalog: its id, its
// display name, and the page number of its root (top-level) page.
type IndexEntry struct {
	ID       IndexID
	Name     string
	RootPage uint32
}

// Header is table page 0 decoded: page count, schema, and index catalog.
type Header struct {
	NumPages uint32
	Schema   rowcodec.Schema
	Indexes  []IndexEntry
}

// encodeHeader serializes h into a fresh header page. Returns an error if
// the schema + index catalog don't fit in one page — this implementation
// does not spill the header across pages.
func encodeHeader(h *Header) (*pageio.Page, error) {
	var p pageio.Page
	off := 0
	put := func(n int) { off += n }

	if err := pageio.WriteUint32(&p, off, h.NumPages); err != nil {
		return nil, err
	}
	put(4)
	if len(h.Schema) > 255 {
		return nil, dberrors.SchemaF("schema has %d columns, max 255", len(h.Schema))
	}
	if err := pageio.WriteUint8(&p, off, uint8(len(h.Schema))); err != nil {
		return nil, err
	}
	put(1)
	for _, col := range h.Schema {
		marker := uint8(0)
		if col.Type.Nullable {
			marker = coltype.NullableByte
		}
		if err := pageio.WriteUint8(&p, off, marker); err != nil {
			return nil, err
		}
		put(1)
		if err := pageio.WriteUint16(&p, off, col.Type.ToUint16()); err != nil {
			return nil, err
		}
		put(2)
		if err := pageio.WriteString(&p, off, col.Name, ColumnNameSize); err != nil {
			return nil, err
		}
		put(ColumnNameSize)
	}

	if len(h.Indexes) > 255 {
		return nil, dberrors.ConstraintF("too many indexes (%d), max 255", len(h.Indexes))
	}
	if err := pageio.WriteUint8(&p, off, uint8(len(h.Indexes))); err != nil {
		return nil, err
	}
	put(1)
	for _, idx := range h.Indexes {
		if len(idx.ID) > 255 {
			return nil, dberrors.ConstraintF("index id too long (%d columns)", len(idx.ID))
		}
		if err := pageio.WriteUint8(&p, off, uint8(len(idx.ID))); err != nil {
			return nil, err
		}
		put(1)
		for _, c := range idx.ID {
			if err := pageio.WriteUint8(&p, off, uint8(c)); err != nil {
				return nil, err
			}
			put(1)
		}
		if err := pageio.WriteString(&p, off, idx.Name, IndexNameSize); err != nil {
			return nil, err
		}
		put(IndexNameSize)
		if err := pageio.WriteUint32(&p, off, idx.RootPage); err != nil {
			return nil, err
		}
		put(4)
	}
	return &p, nil
}

func decodeHeader(p *pageio.Page) (*Header, error) {
	h := &Header{}
	off := 0

	numPages, err := pageio.ReadUint32(p, off)
	if err != nil {
		return nil, err
	}
	h.NumPages = numPages
	off += 4

	numCols, err := pageio.ReadUint8(p, off)
	if err != nil {
		return nil, err
	}
	off++

	h.Schema = make(rowcodec.Schema, numCols)
	for i := 0; i < int(numCols); i++ {
		marker, err := pageio.ReadUint8(p, off)
		if err != nil {
			return nil, err
		}
		off++
		tag, err := pageio.ReadUint16(p, off)
		if err != nil {
			return nil, err
		}
		off += 2
		name, err := pageio.ReadString(p, off, ColumnNameSize)
		if err != nil {
			return nil, err
		}
		off += ColumnNameSize
		typ, err := coltype.FromUint16(tag)
		if err != nil {
			return nil, err
		}
		if marker == coltype.NullableByte {
			typ.Nullable = true
		}
		h.Schema[i] = rowcodec.Column{Name: name, Type: typ}
	}

	numIdx, err := pageio.ReadUint8(p, off)
	if err != nil {
		return nil, err
	}
	off++
	h.Indexes = make([]IndexEntry, numIdx)
	for i := 0; i < int(numIdx); i++ {
		idLen, err := pageio.ReadUint8(p, off)
		if err != nil {
			return nil, err
		}
		off++
		id := make(IndexID, idLen)
		for j := 0; j < int(idLen); j++ {
			c, err := pageio.ReadUint8(p, off)
			if err != nil {
				return nil, err
			}
			off++
			id[j] = int(c)
		}
		name, err := pageio.ReadString(p, off, IndexNameSize)
		if err != nil {
			return nil, err
		}
		off += IndexNameSize
		root, err := pageio.ReadUint32(p, off)
		if err != nil {
			return nil, err
		}
		off += 4
		h.Indexes[i] = IndexEntry{ID: id, Name: name, RootPage: root}
	}
	return h, nil
}

// headerByteSize estimates the serialized size of a header, used to check
// it fits within one page before writing.
func headerByteSize(schema rowcodec.Schema, indexes []IndexEntry) int {
	size := 4 + 1 + len(schema)*columnEntrySize + 1
	for _, idx := range indexes {
		size += 1 + len(idx.ID) + IndexNameSize + 4
	}
	return size
}

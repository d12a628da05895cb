package commitstore

import (
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/pageio"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

const colNameSize = 50

// cursor is a sequential, page-crossing reader/writer over the delta
// file: a commit record's fields are packed back to back regardless of
// page boundaries, rolling onto a fresh page whenever a field would
// otherwise straddle one (a field is never split across two pages).
type cursor struct {
	path    string
	pagenum uint32
	offset  int
	page    *pageio.Page
	write   bool
	dirty   bool
}

func newReadCursor(path string, pagenum uint32) (*cursor, error) {
	p, err := pageio.ReadPage(pagenum, path)
	if err != nil {
		return nil, err
	}
	return &cursor{path: path, pagenum: pagenum, page: p}, nil
}

func newWriteCursor(path string, pagenum uint32) (*cursor, error) {
	n, err := pageio.NumPages(path)
	if err != nil {
		return nil, err
	}
	var p *pageio.Page
	if pagenum < n {
		p, err = pageio.ReadPage(pagenum, path)
		if err != nil {
			return nil, err
		}
	} else {
		p = &pageio.Page{}
		pageio.WriteTypeTag(p, pageio.PageTypeCommitDelta)
	}
	return &cursor{path: path, pagenum: pagenum, page: p, write: true}, nil
}

func (c *cursor) flush() error {
	if !c.write || !c.dirty {
		return nil
	}
	if err := pageio.WritePage(c.pagenum, c.path, c.page); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// roll ensures the next size bytes fit on the current page, flushing and
// advancing to the next page first if they would not.
func (c *cursor) roll(size int) error {
	if c.offset+size < pageio.PageSize {
		return nil
	}
	if err := c.flush(); err != nil {
		return err
	}
	c.pagenum++
	c.offset = 0
	if c.write {
		n, err := pageio.NumPages(c.path)
		if err != nil {
			return err
		}
		if c.pagenum < n {
			p, err := pageio.ReadPage(c.pagenum, c.path)
			if err != nil {
				return err
			}
			c.page = p
		} else {
			c.page = &pageio.Page{}
			pageio.WriteTypeTag(c.page, pageio.PageTypeCommitDelta)
		}
	} else {
		p, err := pageio.ReadPage(c.pagenum, c.path)
		if err != nil {
			return err
		}
		c.page = p
	}
	return nil
}

func (c *cursor) writeUint8(v uint8) error {
	if err := c.roll(1); err != nil {
		return err
	}
	if err := pageio.WriteUint8(c.page, c.offset, v); err != nil {
		return err
	}
	c.offset++
	c.dirty = true
	return nil
}

func (c *cursor) readUint8() (uint8, error) {
	if err := c.roll(1); err != nil {
		return 0, err
	}
	v, err := pageio.ReadUint8(c.page, c.offset)
	c.offset++
	return v, err
}

func (c *cursor) writeUint16(v uint16) error {
	if err := c.roll(2); err != nil {
		return err
	}
	if err := pageio.WriteUint16(c.page, c.offset, v); err != nil {
		return err
	}
	c.offset += 2
	c.dirty = true
	return nil
}

func (c *cursor) readUint16() (uint16, error) {
	if err := c.roll(2); err != nil {
		return 0, err
	}
	v, err := pageio.ReadUint16(c.page, c.offset)
	c.offset += 2
	return v, err
}

func (c *cursor) writeUint32(v uint32) error {
	if err := c.roll(4); err != nil {
		return err
	}
	if err := pageio.WriteUint32(c.page, c.offset, v); err != nil {
		return err
	}
	c.offset += 4
	c.dirty = true
	return nil
}

func (c *cursor) readUint32() (uint32, error) {
	if err := c.roll(4); err != nil {
		return 0, err
	}
	v, err := pageio.ReadUint32(c.page, c.offset)
	c.offset += 4
	return v, err
}

func (c *cursor) writeFixedString(s string, size int) error {
	if err := c.roll(size); err != nil {
		return err
	}
	if err := pageio.WriteString(c.page, c.offset, s, size); err != nil {
		return err
	}
	c.offset += size
	c.dirty = true
	return nil
}

func (c *cursor) readFixedString(size int) (string, error) {
	if err := c.roll(size); err != nil {
		return "", err
	}
	v, err := pageio.ReadString(c.page, c.offset, size)
	c.offset += size
	return v, err
}

// writeDynString writes a length-prefixed string of arbitrary size.
func (c *cursor) writeDynString(s string) error {
	if err := c.writeUint32(uint32(len(s))); err != nil {
		return err
	}
	return c.writeFixedString(s, len(s))
}

func (c *cursor) readDynString() (string, error) {
	n, err := c.readUint32()
	if err != nil {
		return "", err
	}
	return c.readFixedString(int(n))
}

func (c *cursor) writeSchema(schema rowcodec.Schema) error {
	if len(schema) > 255 {
		return dberrors.FormatF("schema has %d columns, max 255", len(schema))
	}
	if err := c.writeUint8(uint8(len(schema))); err != nil {
		return err
	}
	for _, col := range schema {
		marker := uint8(0)
		if col.Type.Nullable {
			marker = coltype.NullableByte
		}
		if err := c.writeUint8(marker); err != nil {
			return err
		}
		if err := c.writeUint16(col.Type.ToUint16()); err != nil {
			return err
		}
		if err := c.writeFixedString(col.Name, colNameSize); err != nil {
			return err
		}
	}
	return nil
}

func (c *cursor) readSchema() (rowcodec.Schema, error) {
	numCols, err := c.readUint8()
	if err != nil {
		return nil, err
	}
	schema := make(rowcodec.Schema, numCols)
	for i := 0; i < int(numCols); i++ {
		marker, err := c.readUint8()
		if err != nil {
			return nil, err
		}
		tag, err := c.readUint16()
		if err != nil {
			return nil, err
		}
		name, err := c.readFixedString(colNameSize)
		if err != nil {
			return nil, err
		}
		typ, err := coltype.FromUint16(tag)
		if err != nil {
			return nil, err
		}
		if marker == coltype.NullableByte {
			typ.Nullable = true
		}
		schema[i] = rowcodec.Column{Name: name, Type: typ}
	}
	return schema, nil
}

func (c *cursor) writeRowInfo(schema rowcodec.Schema, info rowcodec.RowInfo) error {
	for i, col := range schema {
		size := col.Type.Size()
		if err := c.roll(size); err != nil {
			return err
		}
		if err := rowcodec.EncodeValue(c.page, c.offset, col.Type, info.Row[i]); err != nil {
			return err
		}
		c.offset += size
		c.dirty = true
	}
	if err := c.writeUint32(info.Loc.PageNum); err != nil {
		return err
	}
	return c.writeUint16(info.Loc.RowNum)
}

func (c *cursor) readRowInfo(schema rowcodec.Schema) (rowcodec.RowInfo, error) {
	row := make(rowcodec.Row, len(schema))
	for i, col := range schema {
		size := col.Type.Size()
		if err := c.roll(size); err != nil {
			return rowcodec.RowInfo{}, err
		}
		v, err := rowcodec.DecodeValue(c.page, c.offset, col.Type)
		if err != nil {
			return rowcodec.RowInfo{}, err
		}
		c.offset += size
		row[i] = v
	}
	pageNum, err := c.readUint32()
	if err != nil {
		return rowcodec.RowInfo{}, err
	}
	rowNum, err := c.readUint16()
	if err != nil {
		return rowcodec.RowInfo{}, err
	}
	return rowcodec.RowInfo{Row: row, Loc: rowcodec.RowLocation{PageNum: pageNum, RowNum: rowNum}}, nil
}

// Package pageio presents a file as a random-access array of fixed-size
// pages, with typed read/write helpers at arbitrary byte offsets. It is the
// lowest layer of the engine: every table file, commit-delta file, and
// header file is read and written one page at a time through this package.
package pageio

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/gql-db/gqldb/internal/dberrors"
)

// PageSize is the fixed size of every page in every file the engine
// manages, per the on-disk layout.
const PageSize = 4096

// Page is one fixed-size block of a file.
type Page [PageSize]byte

// PageType tags the purpose of a page with a single byte at offset 0.
// Page 0 of a table file (the header page) is implicitly typed, and a
// table data page carries no separate tag: its byte 0 is row slot 0's
// live marker (0 or 1), which never equals an index page's tag.
type PageType byte

const (
	PageTypeHeader PageType = iota
	PageTypeData
	PageTypeInternalIndex
	PageTypeLeafIndex
	PageTypeCommitDelta
)

// CreateFile creates a file at path containing exactly one zero page.
// Fails if the file already exists.
func CreateFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return dberrors.WrapIO(err, "create file %s", path)
	}
	defer f.Close()
	if err := f.Truncate(PageSize); err != nil {
		return dberrors.WrapIO(err, "truncate new file %s", path)
	}
	return nil
}

// NumPages returns how many whole pages are currently stored in the file
// at path.
func NumPages(path string) (uint32, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, dberrors.WrapIO(err, "stat %s", path)
	}
	return uint32(info.Size() / PageSize), nil
}

// ReadPage reads page n from the file at path.
func ReadPage(n uint32, path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dberrors.WrapIO(err, "open %s for read", path)
	}
	defer f.Close()
	var p Page
	if _, err := f.ReadAt(p[:], int64(n)*PageSize); err != nil {
		return nil, dberrors.WrapIO(err, "read page %d of %s", n, path)
	}
	return &p, nil
}

// WritePage writes page n to the file at path, extending the file with
// zero pages if n is beyond the current length.
func WritePage(n uint32, path string, p *Page) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return dberrors.WrapIO(err, "open %s for write", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return dberrors.WrapIO(err, "stat %s", path)
	}
	needed := (int64(n) + 1) * PageSize
	if needed > info.Size() {
		if err := f.Truncate(needed); err != nil {
			return dberrors.WrapIO(err, "grow %s to %d bytes", path, needed)
		}
	}
	if _, err := f.WriteAt(p[:], int64(n)*PageSize); err != nil {
		return dberrors.WrapIO(err, "write page %d of %s", n, path)
	}
	return f.Sync()
}

// ReadTypeTag reads the single-byte page type tag at offset 0.
func ReadTypeTag(p *Page) PageType { return PageType(p[0]) }

// WriteTypeTag writes the single-byte page type tag at offset 0.
func WriteTypeTag(p *Page, t PageType) { p[0] = byte(t) }

func checkBounds(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > PageSize {
		return dberrors.FormatF("offset %d size %d crosses page boundary (page size %d)", offset, size, PageSize)
	}
	return nil
}

func ReadUint8(p *Page, offset int) (uint8, error) {
	if err := checkBounds(offset, 1); err != nil {
		return 0, err
	}
	return p[offset], nil
}

func WriteUint8(p *Page, offset int, v uint8) error {
	if err := checkBounds(offset, 1); err != nil {
		return err
	}
	p[offset] = v
	return nil
}

func ReadUint16(p *Page, offset int) (uint16, error) {
	if err := checkBounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p[offset : offset+2]), nil
}

func WriteUint16(p *Page, offset int, v uint16) error {
	if err := checkBounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(p[offset:offset+2], v)
	return nil
}

func ReadUint32(p *Page, offset int) (uint32, error) {
	if err := checkBounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p[offset : offset+4]), nil
}

func WriteUint32(p *Page, offset int, v uint32) error {
	if err := checkBounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p[offset:offset+4], v)
	return nil
}

func ReadInt32(p *Page, offset int) (int32, error) {
	v, err := ReadUint32(p, offset)
	return int32(v), err
}

func WriteInt32(p *Page, offset int, v int32) error {
	return WriteUint32(p, offset, uint32(v))
}

func ReadUint64(p *Page, offset int) (uint64, error) {
	if err := checkBounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p[offset : offset+8]), nil
}

func WriteUint64(p *Page, offset int, v uint64) error {
	if err := checkBounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(p[offset:offset+8], v)
	return nil
}

func ReadInt64(p *Page, offset int) (int64, error) {
	v, err := ReadUint64(p, offset)
	return int64(v), err
}

func WriteInt64(p *Page, offset int, v int64) error {
	return WriteUint64(p, offset, uint64(v))
}

func ReadFloat32(p *Page, offset int) (float32, error) {
	v, err := ReadUint32(p, offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func WriteFloat32(p *Page, offset int, v float32) error {
	return WriteUint32(p, offset, math.Float32bits(v))
}

func ReadFloat64(p *Page, offset int) (float64, error) {
	v, err := ReadUint64(p, offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func WriteFloat64(p *Page, offset int, v float64) error {
	return WriteUint64(p, offset, math.Float64bits(v))
}

func ReadBool(p *Page, offset int) (bool, error) {
	v, err := ReadUint8(p, offset)
	return v != 0, err
}

func WriteBool(p *Page, offset int, v bool) error {
	b := uint8(0)
	if v {
		b = 1
	}
	return WriteUint8(p, offset, b)
}

// ReadString reads size bytes at offset and trims trailing zero padding.
func ReadString(p *Page, offset, size int) (string, error) {
	if err := checkBounds(offset, size); err != nil {
		return "", err
	}
	raw := p[offset : offset+size]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return string(raw[:end]), nil
}

// WriteString writes s as UTF-8 bytes at offset, zero-padded to size.
// Fails if s is longer than size bytes.
func WriteString(p *Page, offset int, s string, size int) error {
	if err := checkBounds(offset, size); err != nil {
		return err
	}
	b := []byte(s)
	if len(b) > size {
		return dberrors.FormatF("string %q (%d bytes) exceeds field size %d", s, len(b), size)
	}
	dst := p[offset : offset+size]
	copy(dst, b)
	for i := len(b); i < size; i++ {
		dst[i] = 0
	}
	return nil
}

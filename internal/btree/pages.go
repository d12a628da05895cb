package btree

import (
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/pageio"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// leafEntry is one (key, row location) pointer stored in a leaf page.
type leafEntry struct {
	Key rowcodec.Key
	Loc rowcodec.RowLocation
}

// leafHeaderSize is the type tag byte plus the u16 entry count.
const leafHeaderSize = 1 + 2

const leafValueSize = 4 + 2 // row location: pagenum u32 + rownum u16

// maxLeafEntries returns how many (key, location) entries fit on one
// leaf page for the given key type.
func maxLeafEntries(kt IndexKeyType) int {
	return (pageio.PageSize - leafHeaderSize) / (keySize(kt) + leafValueSize)
}

func readLeafPage(p *pageio.Page, kt IndexKeyType) ([]leafEntry, error) {
	n, err := pageio.ReadUint16(p, 1)
	if err != nil {
		return nil, err
	}
	entries := make([]leafEntry, n)
	off := leafHeaderSize
	ks := keySize(kt)
	for i := 0; i < int(n); i++ {
		key, err := rowcodec.DecodeKey(p, off, []coltype.Type(kt))
		if err != nil {
			return nil, err
		}
		pagenum, err := pageio.ReadUint32(p, off+ks)
		if err != nil {
			return nil, err
		}
		rownum, err := pageio.ReadUint16(p, off+ks+4)
		if err != nil {
			return nil, err
		}
		entries[i] = leafEntry{Key: key, Loc: rowcodec.RowLocation{PageNum: pagenum, RowNum: rownum}}
		off += ks + leafValueSize
	}
	return entries, nil
}

func writeLeafPage(entries []leafEntry, kt IndexKeyType) (*pageio.Page, error) {
	var p pageio.Page
	pageio.WriteTypeTag(&p, pageio.PageTypeLeafIndex)
	if err := pageio.WriteUint16(&p, 1, uint16(len(entries))); err != nil {
		return nil, err
	}
	off := leafHeaderSize
	ks := keySize(kt)
	for _, e := range entries {
		if err := rowcodec.EncodeKey(&p, off, []coltype.Type(kt), e.Key); err != nil {
			return nil, err
		}
		if err := pageio.WriteUint32(&p, off+ks, e.Loc.PageNum); err != nil {
			return nil, err
		}
		if err := pageio.WriteUint16(&p, off+ks+4, e.Loc.RowNum); err != nil {
			return nil, err
		}
		off += ks + leafValueSize
	}
	return &p, nil
}

// internalHeaderSize is the type tag, depth byte, and u16 key count.
const internalHeaderSize = 1 + 1 + 2

const pointerSize = 4

// maxInternalEntries returns how many child pointers fit on one internal
// page (i.e. one more than the number of keys it can hold).
func maxInternalEntries(kt IndexKeyType) int {
	return (pageio.PageSize-internalHeaderSize-pointerSize)/(keySize(kt)+pointerSize) + 1
}

// internalPage holds depth, a sorted key list, and len(keys)+1 child
// pointers: children[0] precedes all keys; children[i+1] is paired with
// keys[i].
type internalPage struct {
	Depth    uint8
	Keys     []rowcodec.Key
	Children []uint32
}

func readInternalPage(p *pageio.Page, kt IndexKeyType) (*internalPage, error) {
	depth, err := pageio.ReadUint8(p, 1)
	if err != nil {
		return nil, err
	}
	numKeys, err := pageio.ReadUint16(p, 2)
	if err != nil {
		return nil, err
	}
	firstChild, err := pageio.ReadUint32(p, internalHeaderSize)
	if err != nil {
		return nil, err
	}
	ip := &internalPage{Depth: depth, Keys: make([]rowcodec.Key, numKeys), Children: make([]uint32, numKeys+1)}
	ip.Children[0] = firstChild
	off := internalHeaderSize + pointerSize
	ks := keySize(kt)
	for i := 0; i < int(numKeys); i++ {
		key, err := rowcodec.DecodeKey(p, off, []coltype.Type(kt))
		if err != nil {
			return nil, err
		}
		ip.Keys[i] = key
		off += ks
		child, err := pageio.ReadUint32(p, off)
		if err != nil {
			return nil, err
		}
		ip.Children[i+1] = child
		off += pointerSize
	}
	return ip, nil
}

func writeInternalPage(ip *internalPage, kt IndexKeyType) (*pageio.Page, error) {
	var p pageio.Page
	pageio.WriteTypeTag(&p, pageio.PageTypeInternalIndex)
	if err := pageio.WriteUint8(&p, 1, ip.Depth); err != nil {
		return nil, err
	}
	if err := pageio.WriteUint16(&p, 2, uint16(len(ip.Keys))); err != nil {
		return nil, err
	}
	if err := pageio.WriteUint32(&p, internalHeaderSize, ip.Children[0]); err != nil {
		return nil, err
	}
	off := internalHeaderSize + pointerSize
	ks := keySize(kt)
	for i, key := range ip.Keys {
		if err := rowcodec.EncodeKey(&p, off, []coltype.Type(kt), key); err != nil {
			return nil, err
		}
		off += ks
		if err := pageio.WriteUint32(&p, off, ip.Children[i+1]); err != nil {
			return nil, err
		}
		off += pointerSize
	}
	return &p, nil
}

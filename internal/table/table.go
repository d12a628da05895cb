package table

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/pageio"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// Table owns a single "<name>.db" file: its header (schema + index
// catalog) and CRUD over its data pages. A Table has no awareness of
// branches or commits — its mutating methods return the rows they
// touched; internal/diff turns those into typed deltas.
type Table struct {
	name   string
	path   string
	header *Header
	cache  *pageio.Cache
}

// Path for a table file of the given name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".db")
}

// Create writes a new table file with an empty data page. Fails if the
// file already exists.
func Create(name string, schema rowcodec.Schema, dir string) (*Table, error) {
	rowSize := rowcodec.RowSize(schema)
	if rowSize > pageio.PageSize {
		return nil, dberrors.SchemaF(
			"row size %d exceeds page size %d for table %q; no overflow pages supported",
			rowSize, pageio.PageSize, name)
	}
	path := Path(dir, name)
	if err := pageio.CreateFile(path); err != nil {
		return nil, err
	}
	h := &Header{NumPages: 2, Schema: schema, Indexes: nil}
	if headerByteSize(schema, nil) > pageio.PageSize {
		os.Remove(path)
		return nil, dberrors.SchemaF("schema for table %q does not fit in one header page", name)
	}
	hp, err := encodeHeader(h)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	if err := pageio.WritePage(0, path, hp); err != nil {
		os.Remove(path)
		return nil, err
	}
	var dataPage pageio.Page
	if err := pageio.WritePage(1, path, &dataPage); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &Table{name: name, path: path, header: h}, nil
}

// Open reads an existing table file's header.
func Open(name, dir string) (*Table, error) {
	path := Path(dir, name)
	hp, err := pageio.ReadPage(0, path)
	if err != nil {
		return nil, err
	}
	h, err := decodeHeader(hp)
	if err != nil {
		return nil, dberrors.WrapFormat(err, "decoding header of table %q", name)
	}
	return &Table{name: name, path: path, header: h}, nil
}

// SetCache attaches a page cache; nil disables caching.
func (t *Table) SetCache(c *pageio.Cache) { t.cache = c }

func (t *Table) Name() string            { return t.name }
func (t *Table) Path2() string           { return t.path }
func (t *Table) Schema() rowcodec.Schema { return t.header.Schema }
func (t *Table) NumPages() uint32        { return t.header.NumPages }
func (t *Table) Indexes() []IndexEntry   { return t.header.Indexes }

func (t *Table) rowSize() int { return rowcodec.RowSize(t.header.Schema) }

func (t *Table) readPage(n uint32) (*pageio.Page, error) {
	return pageio.ReadPageCached(t.cache, n, t.path)
}

func (t *Table) writePage(n uint32, p *pageio.Page) error {
	return pageio.WritePageCached(t.cache, n, t.path, p)
}

func (t *Table) writeHeader() error {
	hp, err := encodeHeader(t.header)
	if err != nil {
		return err
	}
	return t.writePage(0, hp)
}

// ReserveUpTo bumps the header's page count to at least n, without
// writing any page content. Used by index bulk build, which allocates
// and writes its own tree pages directly and then reserves the range in
// one header update rather than per-page.
func (t *Table) ReserveUpTo(n uint32) error {
	if n <= t.header.NumPages {
		return nil
	}
	t.header.NumPages = n
	return t.writeHeader()
}

// ensureDataPage grows NumPages (and writes a fresh zeroed data page) so
// that page n is addressable, writing the header if it changed.
func (t *Table) ensureDataPage(n uint32) error {
	if n < t.header.NumPages {
		return nil
	}
	var p pageio.Page
	if err := t.writePage(n, &p); err != nil {
		return err
	}
	t.header.NumPages = n + 1
	return t.writeHeader()
}

// GetRow returns the row at loc, or a Format error if the slot isn't live.
func (t *Table) GetRow(loc rowcodec.RowLocation) (rowcodec.Row, error) {
	p, err := t.readPage(loc.PageNum)
	if err != nil {
		return nil, err
	}
	row, live, err := rowcodec.ReadRow(t.header.Schema, p, int(loc.RowNum))
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, dberrors.FormatF("row (%d, %d) of table %q is not live", loc.PageNum, loc.RowNum, t.name)
	}
	return row, nil
}

// InsertRows finds the first free slot for each row (starting at page 1,
// allocating new pages as needed) and writes it there. Returns the rows'
// final locations in input order; allocation is append-only.
func (t *Table) InsertRows(rows []rowcodec.Row) ([]rowcodec.RowInfo, error) {
	out := make([]rowcodec.RowInfo, 0, len(rows))
	slots := rowcodec.SlotsPerPage(t.header.Schema)
	if slots == 0 {
		return nil, dberrors.SchemaF("row size exceeds page size for table %q", t.name)
	}
	pageNum := uint32(1)
	var page *pageio.Page
	// loadPage reads pageNum, stepping past index pages (they hold no row
	// slots) and allocating a fresh data page past the end of the file.
	loadPage := func() error {
		for ; ; pageNum++ {
			if pageNum >= t.header.NumPages {
				if err := t.ensureDataPage(pageNum); err != nil {
					return err
				}
			}
			p, err := t.readPage(pageNum)
			if err != nil {
				return err
			}
			if tag := pageio.ReadTypeTag(p); tag != pageio.PageTypeInternalIndex && tag != pageio.PageTypeLeafIndex {
				page = p
				return nil
			}
		}
	}
	if err := loadPage(); err != nil {
		return nil, err
	}
	dirty := false
	for _, row := range rows {
		for {
			rn, ok, err := rowcodec.InsertRow(t.header.Schema, page, row)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, rowcodec.RowInfo{Row: row, Loc: rowcodec.RowLocation{PageNum: pageNum, RowNum: uint16(rn)}})
				dirty = true
				break
			}
			if dirty {
				if err := t.writePage(pageNum, page); err != nil {
					return nil, err
				}
				dirty = false
			}
			pageNum++
			if err := loadPage(); err != nil {
				return nil, err
			}
		}
	}
	if dirty {
		if err := t.writePage(pageNum, page); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RewriteRows updates rows in place at the given addresses, sorted by
// page first to coalesce page writes. Returns the new RowInfos (as
// written) and the prior row images (required for revert).
func (t *Table) RewriteRows(infos []rowcodec.RowInfo) (newRows, oldRows []rowcodec.RowInfo, err error) {
	order := make([]int, len(infos))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return infos[order[a]].Loc.PageNum < infos[order[b]].Loc.PageNum })

	newRows = make([]rowcodec.RowInfo, len(infos))
	oldRows = make([]rowcodec.RowInfo, len(infos))

	var curPageNum uint32
	var curPage *pageio.Page
	var curDirty bool
	flush := func() error {
		if curPage != nil && curDirty {
			if err := t.writePage(curPageNum, curPage); err != nil {
				return err
			}
		}
		curDirty = false
		return nil
	}
	for _, idx := range order {
		info := infos[idx]
		if curPage == nil || info.Loc.PageNum != curPageNum {
			if err := flush(); err != nil {
				return nil, nil, err
			}
			p, err := t.readPage(info.Loc.PageNum)
			if err != nil {
				return nil, nil, err
			}
			curPage = p
			curPageNum = info.Loc.PageNum
		}
		oldRow, live, err := rowcodec.ReadRow(t.header.Schema, curPage, int(info.Loc.RowNum))
		if err != nil {
			return nil, nil, err
		}
		if !live {
			return nil, nil, dberrors.FormatF("cannot rewrite non-live row (%d, %d)", info.Loc.PageNum, info.Loc.RowNum)
		}
		if err := rowcodec.WriteRow(t.header.Schema, curPage, info.Row, int(info.Loc.RowNum)); err != nil {
			return nil, nil, err
		}
		curDirty = true
		newRows[idx] = info
		oldRows[idx] = rowcodec.RowInfo{Row: oldRow, Loc: info.Loc}
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	return newRows, oldRows, nil
}

// WriteRowsExact unconditionally places rows at caller-specified
// addresses, extending the file as needed. This is for diff replay only:
// it may silently overwrite live rows and must not be used for ordinary
// mutation paths.
func (t *Table) WriteRowsExact(infos []rowcodec.RowInfo) error {
	for _, info := range infos {
		if err := t.ensureDataPage(info.Loc.PageNum); err != nil {
			return err
		}
		p, err := t.readPage(info.Loc.PageNum)
		if err != nil {
			return err
		}
		if err := rowcodec.WriteRow(t.header.Schema, p, info.Row, int(info.Loc.RowNum)); err != nil {
			return err
		}
		if err := t.writePage(info.Loc.PageNum, p); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRows reads the existing row at each address (required for
// revert), zeroes its presence byte, and returns the removed images.
func (t *Table) RemoveRows(locs []rowcodec.RowLocation) ([]rowcodec.RowInfo, error) {
	removed := make([]rowcodec.RowInfo, 0, len(locs))
	byPage := map[uint32][]int{}
	order := make([]uint32, 0)
	for i, loc := range locs {
		if _, ok := byPage[loc.PageNum]; !ok {
			order = append(order, loc.PageNum)
		}
		byPage[loc.PageNum] = append(byPage[loc.PageNum], i)
	}
	sort.Slice(order, func(a, b int) bool { return order[a] < order[b] })
	results := make([]rowcodec.RowInfo, len(locs))
	for _, pn := range order {
		p, err := t.readPage(pn)
		if err != nil {
			return nil, err
		}
		for _, i := range byPage[pn] {
			loc := locs[i]
			row, live, err := rowcodec.ReadRow(t.header.Schema, p, int(loc.RowNum))
			if err != nil {
				return nil, err
			}
			if !live {
				return nil, dberrors.FormatF("cannot remove non-live row (%d, %d)", loc.PageNum, loc.RowNum)
			}
			if err := rowcodec.ClearRow(t.header.Schema, p, int(loc.RowNum)); err != nil {
				return nil, err
			}
			results[i] = rowcodec.RowInfo{Row: row, Loc: loc}
		}
		if err := t.writePage(pn, p); err != nil {
			return nil, err
		}
	}
	removed = append(removed, results...)
	return removed, nil
}

// EmptySlotRun is a contiguous run of free row slots, used by allocators.
type EmptySlotRun struct {
	Start  rowcodec.RowLocation
	Length int
}

// GetEmptySlotRuns scans every data page and returns contiguous runs of
// free slots.
func (t *Table) GetEmptySlotRuns() ([]EmptySlotRun, error) {
	var runs []EmptySlotRun
	open := false
	for pn := uint32(1); pn < t.header.NumPages; pn++ {
		p, err := t.readPage(pn)
		if err != nil {
			return nil, err
		}
		if tag := pageio.ReadTypeTag(p); tag == pageio.PageTypeInternalIndex || tag == pageio.PageTypeLeafIndex {
			continue
		}
		slots := rowcodec.SlotsPerPage(t.header.Schema)
		for rn := 0; rn < slots; rn++ {
			_, live, err := rowcodec.ReadRow(t.header.Schema, p, rn)
			if err != nil {
				return nil, err
			}
			if live {
				open = false
				continue
			}
			loc := rowcodec.RowLocation{PageNum: pn, RowNum: uint16(rn)}
			if open {
				last := &runs[len(runs)-1]
				if last.Start.PageNum == pn && int(last.Start.RowNum)+last.Length == rn {
					last.Length++
					continue
				}
			}
			runs = append(runs, EmptySlotRun{Start: loc, Length: 1})
			open = true
		}
	}
	return runs, nil
}

// Vacuum drops any wholly-empty trailing data pages, shrinking the file
// and updating NumPages. Pages interleaved with live data are left in
// place; this only reclaims space at the tail.
func (t *Table) Vacuum() error {
	slots := rowcodec.SlotsPerPage(t.header.Schema)
	last := t.header.NumPages - 1
	for last >= 1 {
		p, err := t.readPage(last)
		if err != nil {
			return err
		}
		empty := true
		for rn := 0; rn < slots && empty; rn++ {
			_, live, err := rowcodec.ReadRow(t.header.Schema, p, rn)
			if err != nil {
				return err
			}
			if live {
				empty = false
			}
		}
		if !empty {
			break
		}
		last--
	}
	if last+1 == t.header.NumPages {
		return nil
	}
	t.header.NumPages = last + 1
	if err := t.writeHeader(); err != nil {
		return err
	}
	path := t.path
	if err := os.Truncate(path, int64(t.header.NumPages)*pageio.PageSize); err != nil {
		return err
	}
	t.cache.InvalidateFile(path)
	return nil
}

// Iterate visits every live row in page-then-row order.
func (t *Table) Iterate(fn func(rowcodec.RowInfo) error) error {
	slots := rowcodec.SlotsPerPage(t.header.Schema)
	for pn := uint32(1); pn < t.header.NumPages; pn++ {
		p, err := t.readPage(pn)
		if err != nil {
			return err
		}
		if tag := pageio.ReadTypeTag(p); tag == pageio.PageTypeInternalIndex || tag == pageio.PageTypeLeafIndex {
			continue
		}
		for rn := 0; rn < slots; rn++ {
			row, live, err := rowcodec.ReadRow(t.header.Schema, p, rn)
			if err != nil {
				return err
			}
			if !live {
				continue
			}
			if err := fn(rowcodec.RowInfo{Row: row, Loc: rowcodec.RowLocation{PageNum: pn, RowNum: uint16(rn)}}); err != nil {
				return err
			}
		}
	}
	return nil
}

// AllRows collects every live row via Iterate.
func (t *Table) AllRows() ([]rowcodec.RowInfo, error) {
	var out []rowcodec.RowInfo
	err := t.Iterate(func(ri rowcodec.RowInfo) error {
		out = append(out, ri)
		return nil
	})
	return out, err
}

// AddIndex records a new index's id/name/root page in the header catalog.
// Fails if an index already exists on the same column id list.
func (t *Table) AddIndex(id IndexID, name string, rootPage uint32) error {
	for _, idx := range t.header.Indexes {
		if sameIndexID(idx.ID, id) {
			return dberrors.ConstraintF("table %q already has an index on columns %v", t.name, []int(id))
		}
	}
	t.header.Indexes = append(t.header.Indexes, IndexEntry{ID: id, Name: name, RootPage: rootPage})
	return t.writeHeader()
}

// RemoveIndex clears an index's entry from the header catalog by name.
// Index pages are left in place (dead); nothing reclaims them here.
func (t *Table) RemoveIndex(name string) error {
	for i, idx := range t.header.Indexes {
		if idx.Name == name {
			t.header.Indexes = append(t.header.Indexes[:i], t.header.Indexes[i+1:]...)
			return t.writeHeader()
		}
	}
	return dberrors.ConstraintF("table %q has no index named %q", t.name, name)
}

// FindIndex looks up an index's catalog entry by name.
func (t *Table) FindIndex(name string) (IndexEntry, bool) {
	for _, idx := range t.header.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexEntry{}, false
}

// FindIndexByID looks up an index's catalog entry by its column id list.
func (t *Table) FindIndexByID(id IndexID) (IndexEntry, bool) {
	for _, idx := range t.header.Indexes {
		if sameIndexID(idx.ID, id) {
			return idx, true
		}
	}
	return IndexEntry{}, false
}

func sameIndexID(a, b IndexID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Remove deletes the table's underlying file entirely.
func (t *Table) Remove() error {
	return os.Remove(t.path)
}

// Exists reports whether a table file exists in dir.
func Exists(name, dir string) bool {
	_, err := os.Stat(Path(dir, name))
	return err == nil
}

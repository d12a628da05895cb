package btree

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/pageio"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

// BTree is a loaded index: its key type, the table it indexes, and the
// page number of its root internal page.
type BTree struct {
	Name     string
	ID       table.IndexID
	KeyType  IndexKeyType
	RootPage uint32
	tbl      *table.Table
}

func (bt *BTree) readInternal(pn uint32) (*internalPage, error) {
	p, err := pageio.ReadPageCached(nil, pn, bt.tbl.Path2())
	if err != nil {
		return nil, err
	}
	if pageio.ReadTypeTag(p) != pageio.PageTypeInternalIndex {
		return nil, dberrors.FormatF("page %d is not an internal index page", pn)
	}
	return readInternalPage(p, bt.KeyType)
}

func (bt *BTree) readLeaf(pn uint32) ([]leafEntry, error) {
	p, err := pageio.ReadPageCached(nil, pn, bt.tbl.Path2())
	if err != nil {
		return nil, err
	}
	if pageio.ReadTypeTag(p) != pageio.PageTypeLeafIndex {
		return nil, dberrors.FormatF("page %d is not a leaf index page", pn)
	}
	return readLeafPage(p, bt.KeyType)
}

func (bt *BTree) writeInternal(pn uint32, ip *internalPage) error {
	p, err := writeInternalPage(ip, bt.KeyType)
	if err != nil {
		return err
	}
	return pageio.WritePageCached(nil, pn, bt.tbl.Path2(), p)
}

func (bt *BTree) writeLeaf(pn uint32, entries []leafEntry) error {
	p, err := writeLeafPage(entries, bt.KeyType)
	if err != nil {
		return err
	}
	return pageio.WritePageCached(nil, pn, bt.tbl.Path2(), p)
}

// CreateIndex builds a new B+-tree index over the given columns of tbl
// from its current contents, records it in the table header, and
// returns the loaded tree.
func CreateIndex(tbl *table.Table, columns []string, indexName string) (*BTree, error) {
	id, err := CreateIndexID(columns, tbl.Schema())
	if err != nil {
		return nil, err
	}
	if _, ok := tbl.FindIndexByID(id); ok {
		return nil, dberrors.ConstraintF("index already exists on columns %v", columns)
	}
	kt := IndexKeyTypeOf(id, tbl.Schema())

	rows, err := tbl.AllRows()
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(a, b int) bool {
		ka, kb := KeyOf(rows[a].Row, id), KeyOf(rows[b].Row, id)
		cmp, _ := rowcodec.CompareKeys(ka, kb)
		return cmp < 0
	})

	rootPage, err := buildTree(tbl, rows, id, kt)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddIndex(id, indexName, rootPage); err != nil {
		return nil, err
	}
	return &BTree{Name: indexName, ID: id, KeyType: kt, RootPage: rootPage, tbl: tbl}, nil
}

// LoadIndex loads an existing index by name from tbl's header.
func LoadIndex(tbl *table.Table, indexName string) (*BTree, error) {
	entry, ok := tbl.FindIndex(indexName)
	if !ok {
		return nil, dberrors.ConstraintF("no such index %q", indexName)
	}
	kt := IndexKeyTypeOf(entry.ID, tbl.Schema())
	return &BTree{Name: indexName, ID: entry.ID, KeyType: kt, RootPage: entry.RootPage, tbl: tbl}, nil
}

// DropIndex clears the index's catalog entry from the table header. Tree
// pages are left in place (dead); a future compaction pass may reclaim
// them.
func DropIndex(tbl *table.Table, indexName string) error {
	return tbl.RemoveIndex(indexName)
}

// pageAllocator hands out page numbers from tbl's current page count
// upward. alloc only advances its own counter; the caller writes the page
// bytes and then reserves the range in tbl's header (growTable).
type pageAllocator struct {
	tbl  *table.Table
	next uint32
}

func newAllocator(tbl *table.Table) *pageAllocator {
	return &pageAllocator{tbl: tbl, next: tbl.NumPages()}
}

func (a *pageAllocator) alloc() uint32 {
	pn := a.next
	a.next++
	return pn
}

// buildTree implements the bulk-build algorithm: evenly distribute
// sorted rows across a 50%-full set of leaves, then build internal
// levels bottom-up, each kept between 50% and 100% full, until exactly
// one page (the root) remains.
func buildTree(tbl *table.Table, rows []rowcodec.RowInfo, id table.IndexID, kt IndexKeyType) (uint32, error) {
	alloc := newAllocator(tbl)

	if len(rows) == 0 {
		leaf1 := alloc.alloc()
		leaf2 := alloc.alloc()
		root := alloc.alloc()
		bt := &BTree{KeyType: kt, tbl: tbl}
		if err := bt.writeLeaf(leaf1, nil); err != nil {
			return 0, err
		}
		if err := bt.writeLeaf(leaf2, nil); err != nil {
			return 0, err
		}
		ip := &internalPage{Depth: 0, Keys: []rowcodec.Key{defaultKey(kt)}, Children: []uint32{leaf1, leaf2}}
		if err := bt.writeInternal(root, ip); err != nil {
			return 0, err
		}
		if err := growTable(tbl, alloc.next); err != nil {
			return 0, err
		}
		return root, nil
	}

	maxLeaf := maxLeafEntries(kt)
	numLeaves := int(math.Ceil(float64(len(rows))/float64(maxLeaf))) * 2
	if numLeaves < 1 {
		numLeaves = 1
	}
	// Never plan more leaves than rows to distribute: an excess leaf would
	// end up with no entries and thus no lowest key to route to it.
	if numLeaves > len(rows) {
		numLeaves = len(rows)
	}

	leafPageNums := make([]uint32, numLeaves)
	for i := range leafPageNums {
		leafPageNums[i] = alloc.alloc()
	}
	leafEntries := distributeRows(rows, id, numLeaves)

	bt := &BTree{KeyType: kt, tbl: tbl}
	var grp errgroup.Group
	for i := range leafPageNums {
		i := i
		grp.Go(func() error {
			return bt.writeLeaf(leafPageNums[i], leafEntries[i])
		})
	}
	if err := grp.Wait(); err != nil {
		return 0, err
	}

	type levelNode struct {
		page     uint32
		smallest rowcodec.Key
	}
	below := make([]levelNode, numLeaves)
	for i, pn := range leafPageNums {
		if len(leafEntries[i]) == 0 {
			return 0, dberrors.FormatF("leaf page %d has no index keys", pn)
		}
		below[i] = levelNode{page: pn, smallest: leafEntries[i][0].Key}
	}

	maxInternal := maxInternalEntries(kt)
	depth := uint8(0)
	for {
		groupSize := maxInternal / 2
		if groupSize < 1 {
			groupSize = 1
		}
		numPages := int(math.Ceil(float64(len(below)) / float64(groupSize)))
		if numPages < 1 {
			numPages = 1
		}
		above := make([]levelNode, 0, numPages)
		idx := 0
		var grp2 errgroup.Group
		pages := make([]uint32, numPages)
		ips := make([]*internalPage, numPages)
		for pi := 0; pi < numPages; pi++ {
			end := idx + groupSize
			if pi == numPages-1 || end > len(below) {
				end = len(below)
			}
			chunk := below[idx:end]
			idx = end
			pn := alloc.alloc()
			pages[pi] = pn
			ip := &internalPage{Depth: depth, Children: []uint32{chunk[0].page}}
			for _, node := range chunk[1:] {
				ip.Keys = append(ip.Keys, node.smallest)
				ip.Children = append(ip.Children, node.page)
			}
			ips[pi] = ip
			above = append(above, levelNode{page: pn, smallest: chunk[0].smallest})
		}
		for pi := range pages {
			pi := pi
			grp2.Go(func() error { return bt.writeInternal(pages[pi], ips[pi]) })
		}
		if err := grp2.Wait(); err != nil {
			return 0, err
		}
		below = above
		if len(below) == 1 {
			break
		}
		depth++
	}

	if err := growTable(tbl, alloc.next); err != nil {
		return 0, err
	}
	return below[0].page, nil
}

// growTable ensures the table's header NumPages covers every page the
// bulk build allocated, even though the tree pages are written via the
// raw page path rather than through table's own CRUD.
func growTable(tbl *table.Table, upToExclusive uint32) error {
	return tbl.ReserveUpTo(upToExclusive)
}

// distributeRows splits sorted rows evenly across numLeaves leaf pages,
// converting each row to a (key, location) leaf entry.
func distributeRows(rows []rowcodec.RowInfo, id table.IndexID, numLeaves int) [][]leafEntry {
	out := make([][]leafEntry, numLeaves)
	n := len(rows)
	base := n / numLeaves
	rem := n % numLeaves
	idx := 0
	for i := 0; i < numLeaves; i++ {
		count := base
		if i < rem {
			count++
		}
		entries := make([]leafEntry, 0, count)
		for j := 0; j < count && idx < n; j++ {
			entries = append(entries, leafEntry{Key: KeyOf(rows[idx].Row, id), Loc: rows[idx].Loc})
			idx++
		}
		out[i] = entries
	}
	return out
}

// GetRows returns every row whose index key equals key, reading rows
// sorted by page to minimize page reads.
func (bt *BTree) GetRows(key rowcodec.Key) ([]rowcodec.RowInfo, error) {
	locs, err := bt.getLocations(key)
	if err != nil {
		return nil, err
	}
	sort.Slice(locs, func(a, b int) bool {
		if locs[a].PageNum != locs[b].PageNum {
			return locs[a].PageNum < locs[b].PageNum
		}
		return locs[a].RowNum < locs[b].RowNum
	})
	out := make([]rowcodec.RowInfo, 0, len(locs))
	for _, loc := range locs {
		row, err := bt.tbl.GetRow(loc)
		if err != nil {
			return nil, err
		}
		out = append(out, rowcodec.RowInfo{Row: row, Loc: loc})
	}
	return out, nil
}

func (bt *BTree) getLocations(key rowcodec.Key) ([]rowcodec.RowLocation, error) {
	leaves, err := bt.fanOutLeaves(bt.RootPage, key)
	if err != nil {
		return nil, err
	}
	var locs []rowcodec.RowLocation
	for _, leafPage := range leaves {
		entries, err := bt.readLeaf(leafPage)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if rowcodec.EqualKeys(e.Key, key) {
				locs = append(locs, e.Loc)
			}
		}
	}
	return locs, nil
}

// fanOutLeaves descends from pn collecting every leaf page that could
// hold an entry equal to key, following every child whose boundary key
// equals key (duplicates may straddle more than one page).
func (bt *BTree) fanOutLeaves(pn uint32, key rowcodec.Key) ([]uint32, error) {
	ip, err := bt.readInternal(pn)
	if err != nil {
		return nil, err
	}
	indices := childIndicesForKey(ip.Keys, key)
	var leaves []uint32
	for _, ci := range indices {
		child := ip.Children[ci]
		if ip.Depth == 0 {
			leaves = append(leaves, child)
			continue
		}
		sub, err := bt.fanOutLeaves(child, key)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, sub...)
	}
	return leaves, nil
}

// childIndicesForKey returns the contiguous range of child indices whose
// subtree could contain key, given an internal page's sorted keys.
func childIndicesForKey(keys []rowcodec.Key, key rowcodec.Key) []int {
	upper := sort.Search(len(keys), func(i int) bool {
		cmp, ok := rowcodec.CompareKeys(keys[i], key)
		return ok && cmp > 0
	})
	lo := upper
	for lo > 0 {
		cmp, ok := rowcodec.CompareKeys(keys[lo-1], key)
		if ok && cmp == 0 {
			lo--
			continue
		}
		break
	}
	indices := make([]int, 0, upper-lo+1)
	for i := lo; i <= upper; i++ {
		indices = append(indices, i)
	}
	return indices
}

// descendSingle follows a single target child at each level (no
// duplicate fan-out), used by mutation paths that need exactly one
// target leaf.
func (bt *BTree) descendSingle(key rowcodec.Key) (uint32, error) {
	pn := bt.RootPage
	for {
		ip, err := bt.readInternal(pn)
		if err != nil {
			return 0, err
		}
		upper := sort.Search(len(ip.Keys), func(i int) bool {
			cmp, ok := rowcodec.CompareKeys(ip.Keys[i], key)
			return ok && cmp > 0
		})
		child := ip.Children[upper]
		if ip.Depth == 0 {
			return child, nil
		}
		pn = child
	}
}

// InsertRows inserts (key, location) pointers for each given row into
// the tree. Each insert targets a single leaf (no split-on-full): if
// that leaf has no room, the engine reports a Constraint error rather
// than splitting.
func (bt *BTree) InsertRows(rows []rowcodec.RowInfo) error {
	for _, ri := range rows {
		key := KeyOf(ri.Row, bt.ID)
		leafPage, err := bt.descendSingle(key)
		if err != nil {
			return err
		}
		entries, err := bt.readLeaf(leafPage)
		if err != nil {
			return err
		}
		if len(entries)+1 > maxLeafEntries(bt.KeyType) {
			return dberrors.ConstraintF("leaf page %d is full; index %q has no split path", leafPage, bt.Name)
		}
		pos := sort.Search(len(entries), func(i int) bool {
			cmp, _ := rowcodec.CompareKeys(entries[i].Key, key)
			return cmp >= 0
		})
		entries = append(entries, leafEntry{})
		copy(entries[pos+1:], entries[pos:])
		entries[pos] = leafEntry{Key: key, Loc: ri.Loc}
		if err := bt.writeLeaf(leafPage, entries); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRows removes the (key, location) entry for each given row.
func (bt *BTree) RemoveRows(rows []rowcodec.RowInfo) error {
	for _, ri := range rows {
		key := KeyOf(ri.Row, bt.ID)
		leaves, err := bt.fanOutLeaves(bt.RootPage, key)
		if err != nil {
			return err
		}
		removed := false
		for _, leafPage := range leaves {
			entries, err := bt.readLeaf(leafPage)
			if err != nil {
				return err
			}
			for i, e := range entries {
				if rowcodec.EqualKeys(e.Key, key) && e.Loc == ri.Loc {
					entries = append(entries[:i], entries[i+1:]...)
					if err := bt.writeLeaf(leafPage, entries); err != nil {
						return err
					}
					removed = true
					break
				}
			}
			if removed {
				break
			}
		}
		if !removed {
			return dberrors.ConstraintF("no index entry for row %+v in index %q", ri.Loc, bt.Name)
		}
	}
	return nil
}

// UpdateRows replaces each old row's entry with its new row's entry. The
// tree never updates an entry in place because the key may change.
func (bt *BTree) UpdateRows(oldRows, newRows []rowcodec.RowInfo) error {
	if err := bt.RemoveRows(oldRows); err != nil {
		return err
	}
	return bt.InsertRows(newRows)
}

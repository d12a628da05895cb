package diff

import "github.com/gql-db/gqldb/internal/rowcodec"

// Squash folds an ordered sequence of diffs (oldest first, typically the
// diffs of several consecutive commits concatenated in commit order) into
// the smallest equivalent sequence: a table created then dropped within
// the window vanishes entirely, a row inserted then removed cancels, an
// update on a freshly-inserted row folds into the insert, and so on.
func Squash(diffs []Diff) []Diff {
	order := make([]string, 0)
	seen := make(map[string]bool)
	states := make(map[string]*tableState)

	for _, d := range diffs {
		name := d.TableName()
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
		st := states[name]
		if st == nil {
			st = newTableState()
			states[name] = st
		}
		st.fold(d)
		if st.dropped {
			delete(states, name)
		}
	}

	out := make([]Diff, 0, len(order))
	for _, name := range order {
		st := states[name]
		if st == nil {
			continue
		}
		out = append(out, st.emit(name)...)
	}
	return out
}

type tableState struct {
	schema rowcodec.Schema

	created bool
	dropped bool // created-then-removed within the window: net zero

	tableCreate *TableCreateDiff
	tableRemove *TableRemoveDiff

	insertOrder []rowcodec.RowLocation
	inserted    map[rowcodec.RowLocation]rowcodec.Row

	updateOrder []rowcodec.RowLocation
	updated     map[rowcodec.RowLocation]rowUpdate

	removeOrder []rowcodec.RowLocation
	removed     map[rowcodec.RowLocation]rowcodec.Row

	indexCreateOrder []string
	indexCreate      map[string]IndexRef
	indexRemoveOrder []string
	indexRemove      map[string]IndexRef
}

type rowUpdate struct {
	old rowcodec.Row
	new rowcodec.Row
}

func newTableState() *tableState {
	return &tableState{
		inserted:    make(map[rowcodec.RowLocation]rowcodec.Row),
		updated:     make(map[rowcodec.RowLocation]rowUpdate),
		removed:     make(map[rowcodec.RowLocation]rowcodec.Row),
		indexCreate: make(map[string]IndexRef),
		indexRemove: make(map[string]IndexRef),
	}
}

func (st *tableState) resetRows() {
	st.insertOrder = nil
	st.inserted = make(map[rowcodec.RowLocation]rowcodec.Row)
	st.updateOrder = nil
	st.updated = make(map[rowcodec.RowLocation]rowUpdate)
	st.removeOrder = nil
	st.removed = make(map[rowcodec.RowLocation]rowcodec.Row)
}

func (st *tableState) fold(d Diff) {
	switch v := d.(type) {
	case TableCreateDiff:
		st.schema = v.Schema
		st.created = true
		st.tableRemove = nil
		st.resetRows()
		tc := v
		st.tableCreate = &tc

	case TableRemoveDiff:
		st.schema = v.Schema
		if st.created {
			// created and removed inside this window: nothing survives.
			st.dropped = true
			return
		}
		tr := v
		st.tableRemove = &tr
		st.resetRows()

	case InsertDiff:
		st.schema = v.Schema
		for _, r := range v.Rows {
			if _, ok := st.inserted[r.Loc]; !ok {
				st.insertOrder = append(st.insertOrder, r.Loc)
			}
			delete(st.updated, r.Loc)
			delete(st.removed, r.Loc)
			st.inserted[r.Loc] = r.Row
		}

	case UpdateDiff:
		st.schema = v.Schema
		for i, newRow := range v.NewRows {
			loc := newRow.Loc
			oldRow := v.OldRows[i]
			if _, ok := st.inserted[loc]; ok {
				// update on a row inserted earlier in this window folds
				// straight into the insert.
				st.inserted[loc] = newRow.Row
				continue
			}
			if existing, ok := st.updated[loc]; ok {
				st.updated[loc] = rowUpdate{old: existing.old, new: newRow.Row}
				continue
			}
			st.updateOrder = append(st.updateOrder, loc)
			st.updated[loc] = rowUpdate{old: oldRow.Row, new: newRow.Row}
		}

	case RemoveDiff:
		st.schema = v.Schema
		for _, r := range v.Rows {
			loc := r.Loc
			if _, ok := st.inserted[loc]; ok {
				// inserted then removed within the window: cancels out.
				delete(st.inserted, loc)
				st.insertOrder = removeLoc(st.insertOrder, loc)
				continue
			}
			if upd, ok := st.updated[loc]; ok {
				delete(st.updated, loc)
				st.updateOrder = removeLoc(st.updateOrder, loc)
				if _, already := st.removed[loc]; !already {
					st.removeOrder = append(st.removeOrder, loc)
				}
				st.removed[loc] = upd.old
				continue
			}
			if _, already := st.removed[loc]; !already {
				st.removeOrder = append(st.removeOrder, loc)
			}
			st.removed[loc] = r.Row
		}

	case IndexCreateDiff:
		st.schema = v.Schema
		for _, idx := range v.Indexes {
			if _, ok := st.indexRemove[idx.Name]; ok {
				delete(st.indexRemove, idx.Name)
				st.indexRemoveOrder = removeName(st.indexRemoveOrder, idx.Name)
				continue
			}
			if _, ok := st.indexCreate[idx.Name]; !ok {
				st.indexCreateOrder = append(st.indexCreateOrder, idx.Name)
			}
			st.indexCreate[idx.Name] = idx
		}

	case IndexRemoveDiff:
		st.schema = v.Schema
		for _, idx := range v.Indexes {
			if _, ok := st.indexCreate[idx.Name]; ok {
				delete(st.indexCreate, idx.Name)
				st.indexCreateOrder = removeName(st.indexCreateOrder, idx.Name)
				continue
			}
			if _, ok := st.indexRemove[idx.Name]; !ok {
				st.indexRemoveOrder = append(st.indexRemoveOrder, idx.Name)
			}
			st.indexRemove[idx.Name] = idx
		}
	}
}

func (st *tableState) emit(name string) []Diff {
	var out []Diff
	if st.tableCreate != nil {
		out = append(out, *st.tableCreate)
	}
	if len(st.insertOrder) > 0 {
		rows := make([]rowcodec.RowInfo, 0, len(st.insertOrder))
		for _, loc := range st.insertOrder {
			rows = append(rows, rowcodec.RowInfo{Row: st.inserted[loc], Loc: loc})
		}
		out = append(out, InsertDiff{Table: name, Schema: st.schema, Rows: rows})
	}
	if len(st.updateOrder) > 0 {
		news := make([]rowcodec.RowInfo, 0, len(st.updateOrder))
		olds := make([]rowcodec.RowInfo, 0, len(st.updateOrder))
		for _, loc := range st.updateOrder {
			u := st.updated[loc]
			news = append(news, rowcodec.RowInfo{Row: u.new, Loc: loc})
			olds = append(olds, rowcodec.RowInfo{Row: u.old, Loc: loc})
		}
		out = append(out, UpdateDiff{Table: name, Schema: st.schema, NewRows: news, OldRows: olds})
	}
	if len(st.removeOrder) > 0 {
		rows := make([]rowcodec.RowInfo, 0, len(st.removeOrder))
		for _, loc := range st.removeOrder {
			rows = append(rows, rowcodec.RowInfo{Row: st.removed[loc], Loc: loc})
		}
		out = append(out, RemoveDiff{Table: name, Schema: st.schema, Rows: rows})
	}
	if st.tableRemove != nil {
		out = append(out, *st.tableRemove)
	}
	if len(st.indexCreateOrder) > 0 {
		refs := make([]IndexRef, 0, len(st.indexCreateOrder))
		for _, n := range st.indexCreateOrder {
			refs = append(refs, st.indexCreate[n])
		}
		out = append(out, IndexCreateDiff{Table: name, Schema: st.schema, Indexes: refs})
	}
	if len(st.indexRemoveOrder) > 0 {
		refs := make([]IndexRef, 0, len(st.indexRemoveOrder))
		for _, n := range st.indexRemoveOrder {
			refs = append(refs, st.indexRemove[n])
		}
		out = append(out, IndexRemoveDiff{Table: name, Schema: st.schema, Indexes: refs})
	}
	return out
}

func removeLoc(s []rowcodec.RowLocation, loc rowcodec.RowLocation) []rowcodec.RowLocation {
	for i, l := range s {
		if l == loc {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeName(s []string, name string) []string {
	for i, n := range s {
		if n == name {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

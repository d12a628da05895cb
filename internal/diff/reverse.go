package diff

// Reverse produces the diff sequence that undoes diffs, in the opposite
// order: the last change made is the first one undone.
func Reverse(diffs []Diff) []Diff {
	out := make([]Diff, 0, len(diffs))
	for i := len(diffs) - 1; i >= 0; i-- {
		out = append(out, invert(diffs[i])...)
	}
	return out
}

// invert returns the diff(s) that undo d. TableRemove/TableCreate can
// expand to two diffs since recreating a removed table also needs its
// rows reinserted, and dropping a just-created table needs nothing else.
func invert(d Diff) []Diff {
	switch v := d.(type) {
	case InsertDiff:
		return []Diff{RemoveDiff{Table: v.Table, Schema: v.Schema, Rows: v.Rows}}
	case RemoveDiff:
		return []Diff{InsertDiff{Table: v.Table, Schema: v.Schema, Rows: v.Rows}}
	case UpdateDiff:
		return []Diff{UpdateDiff{Table: v.Table, Schema: v.Schema, NewRows: v.OldRows, OldRows: v.NewRows}}
	case TableCreateDiff:
		return []Diff{TableRemoveDiff{Table: v.Table, Schema: v.Schema}}
	case TableRemoveDiff:
		diffs := []Diff{TableCreateDiff{Table: v.Table, Schema: v.Schema}}
		if len(v.Rows) > 0 {
			diffs = append(diffs, InsertDiff{Table: v.Table, Schema: v.Schema, Rows: v.Rows})
		}
		return diffs
	case IndexCreateDiff:
		return []Diff{IndexRemoveDiff{Table: v.Table, Schema: v.Schema, Indexes: v.Indexes}}
	case IndexRemoveDiff:
		return []Diff{IndexCreateDiff{Table: v.Table, Schema: v.Schema, Indexes: v.Indexes}}
	}
	return []Diff{d}
}

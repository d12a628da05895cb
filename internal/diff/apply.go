package diff

import (
	"github.com/gql-db/gqldb/internal/btree"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

// Apply replays diffs against the tables rooted at dir, in order. It is
// the forward direction used by checkout/commit-advance.
func Apply(dir string, diffs []Diff) error {
	for _, d := range diffs {
		if err := applyOne(dir, d); err != nil {
			return err
		}
	}
	return nil
}

// RevertApply undoes diffs against the tables rooted at dir by reversing
// each one and applying the reversed list in reverse order — the same
// direction a plain Apply of Reverse(diffs) would take, spelled out here
// since callers revert a whole commit at a time.
func RevertApply(dir string, diffs []Diff) error {
	return Apply(dir, Reverse(diffs))
}

func applyOne(dir string, d Diff) error {
	switch v := d.(type) {
	case TableCreateDiff:
		_, err := table.Create(v.Table, v.Schema, dir)
		return err

	case TableRemoveDiff:
		tbl, err := table.Open(v.Table, dir)
		if err != nil {
			return err
		}
		return tbl.Remove()

	case InsertDiff:
		tbl, err := table.Open(v.Table, dir)
		if err != nil {
			return err
		}
		return tbl.WriteRowsExact(v.Rows)

	case UpdateDiff:
		tbl, err := table.Open(v.Table, dir)
		if err != nil {
			return err
		}
		return tbl.WriteRowsExact(v.NewRows)

	case RemoveDiff:
		tbl, err := table.Open(v.Table, dir)
		if err != nil {
			return err
		}
		locs := make([]rowcodec.RowLocation, len(v.Rows))
		for i, r := range v.Rows {
			locs[i] = r.Loc
		}
		_, err = tbl.RemoveRows(locs)
		return err

	case IndexCreateDiff:
		tbl, err := table.Open(v.Table, dir)
		if err != nil {
			return err
		}
		for _, idx := range v.Indexes {
			if _, err := btree.CreateIndex(tbl, idx.Columns, idx.Name); err != nil {
				return err
			}
		}
		return nil

	case IndexRemoveDiff:
		tbl, err := table.Open(v.Table, dir)
		if err != nil {
			return err
		}
		for _, idx := range v.Indexes {
			if err := btree.DropIndex(tbl, idx.Name); err != nil {
				return err
			}
		}
		return nil
	}
	return dberrors.FormatF("apply: unknown diff kind %v", d.Kind())
}

// Package branchmerge implements the conflict-detection and folding
// rules used to merge one branch's diffs into another's: it generalizes
// the commit-squash algebra (internal/diff.Squash) from "fold a
// contiguous run of one branch's own commits" to "fold two branches'
// independent diff sequences since their common ancestor, with an
// explicit conflict policy". The fold/accumulate pattern here is
// generalized from merging lists of records keyed by ID to merging diff
// sequences keyed by (table, row location).
package branchmerge

import (
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/diff"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// Strategy picks how Fold resolves a conflicting change.
type Strategy int

const (
	// Clean fails the merge with a diagnostic if any conflict exists.
	Clean Strategy = iota
	// Ours keeps the destination branch's resolution of every conflict.
	Ours
	// Theirs keeps the source branch's resolution of every conflict.
	Theirs
)

func (s Strategy) String() string {
	switch s {
	case Clean:
		return "clean"
	case Ours:
		return "ours"
	case Theirs:
		return "theirs"
	}
	return "?"
}

// ParseStrategy maps a command-surface flag value to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "clean":
		return Clean, nil
	case "ours":
		return Ours, nil
	case "theirs":
		return Theirs, nil
	}
	return Clean, dberrors.HistoryF("unknown merge strategy %q", name)
}

// ConflictKind distinguishes the two shapes of merge conflict this
// package detects.
type ConflictKind int

const (
	// ConflictCreateRemove: one side creates a table the other removes.
	ConflictCreateRemove ConflictKind = iota
	// ConflictAddress: both sides touch the same (table, row) address,
	// with any pairing of insert, update, and remove.
	ConflictAddress
)

// Conflict names one point of disagreement between two diff sequences.
type Conflict struct {
	Table string
	Kind  ConflictKind
	Loc   rowcodec.RowLocation // zero value when Kind == ConflictCreateRemove
}

type tableTouch struct {
	hasCreate bool
	hasRemove bool
	rows      map[rowcodec.RowLocation]diff.Kind
}

func newTableTouch() *tableTouch {
	return &tableTouch{rows: map[rowcodec.RowLocation]diff.Kind{}}
}

func collectTouches(diffs []diff.Diff) map[string]*tableTouch {
	out := map[string]*tableTouch{}
	get := func(name string) *tableTouch {
		t := out[name]
		if t == nil {
			t = newTableTouch()
			out[name] = t
		}
		return t
	}
	for _, d := range diffs {
		t := get(d.TableName())
		switch v := d.(type) {
		case diff.TableCreateDiff:
			t.hasCreate = true
		case diff.TableRemoveDiff:
			t.hasRemove = true
		case diff.InsertDiff:
			for _, r := range v.Rows {
				t.rows[r.Loc] = diff.KindInsert
			}
		case diff.UpdateDiff:
			for _, r := range v.NewRows {
				t.rows[r.Loc] = diff.KindUpdate
			}
		case diff.RemoveDiff:
			for _, r := range v.Rows {
				t.rows[r.Loc] = diff.KindRemove
			}
		}
	}
	return out
}

// DetectConflicts finds every point of disagreement between src and
// dest: a table created by one side and removed by the other, or any
// row address both sides touch (two inserts, both updating/removing, or
// an insert on one side against an update/remove on the other).
func DetectConflicts(src, dest []diff.Diff) []Conflict {
	srcTouch := collectTouches(src)
	destTouch := collectTouches(dest)

	tables := map[string]bool{}
	for name := range srcTouch {
		tables[name] = true
	}
	for name := range destTouch {
		tables[name] = true
	}

	var conflicts []Conflict
	for name := range tables {
		s := srcTouch[name]
		d := destTouch[name]
		if s == nil {
			s = newTableTouch()
		}
		if d == nil {
			d = newTableTouch()
		}
		if (s.hasCreate && d.hasRemove) || (s.hasRemove && d.hasCreate) {
			conflicts = append(conflicts, Conflict{Table: name, Kind: ConflictCreateRemove})
		}
		for loc, sk := range s.rows {
			dk, ok := d.rows[loc]
			if !ok {
				continue
			}
			if sk == diff.KindInsert && dk == diff.KindInsert {
				conflicts = append(conflicts, Conflict{Table: name, Kind: ConflictAddress, Loc: loc})
				continue
			}
			if sk != diff.KindInsert && dk != diff.KindInsert {
				conflicts = append(conflicts, Conflict{Table: name, Kind: ConflictAddress, Loc: loc})
				continue
			}
			// One side inserts fresh at an address the other already
			// updated or removed: the addresses can only coincide by an
			// allocator collision, which is itself a conflict worth
			// surfacing rather than silently picking a winner.
			conflicts = append(conflicts, Conflict{Table: name, Kind: ConflictAddress, Loc: loc})
		}
	}
	return conflicts
}

// Fold computes the diffs that still need to be applied to the
// destination branch's already-materialized working directory in order
// to bring src's changes in: the destination's own diffs are already
// reflected on disk, so the result is src's squashed diffs with any
// conflicting piece resolved per strategy, not a recombination of both
// sides. Clean fails if DetectConflicts finds anything. Ours drops the
// conflicting piece of src entirely, leaving the destination's existing
// value in place; Theirs keeps it, so applying the result overwrites the
// destination's value at that address. The returned conflicts are
// reported regardless of strategy, so a successful ours/theirs merge can
// still tell its caller what it overrode or kept.
func Fold(src, dest []diff.Diff, strategy Strategy) ([]diff.Diff, []Conflict, error) {
	conflicts := DetectConflicts(src, dest)
	if strategy == Clean && len(conflicts) > 0 {
		return nil, conflicts, dberrors.MergeConflictF(
			"merge has %d conflicting change(s); retry with --strategy ours or --strategy theirs", len(conflicts))
	}

	srcFolded := diff.Squash(src)
	if strategy == Theirs {
		return srcFolded, conflicts, nil
	}

	conflictTables := map[string]bool{}
	conflictAddrs := map[string]map[rowcodec.RowLocation]bool{}
	for _, c := range conflicts {
		if c.Kind == ConflictCreateRemove {
			conflictTables[c.Table] = true
			continue
		}
		m := conflictAddrs[c.Table]
		if m == nil {
			m = map[rowcodec.RowLocation]bool{}
			conflictAddrs[c.Table] = m
		}
		m[c.Loc] = true
	}

	var resolved []diff.Diff
	for _, d := range srcFolded {
		switch v := d.(type) {
		case diff.TableCreateDiff:
			if !conflictTables[v.Table] {
				resolved = append(resolved, v)
			}
		case diff.TableRemoveDiff:
			if !conflictTables[v.Table] {
				resolved = append(resolved, v)
			}
		case diff.InsertDiff:
			if rows := filterRows(v.Rows, conflictAddrs[v.Table]); len(rows) > 0 {
				resolved = append(resolved, diff.InsertDiff{Table: v.Table, Schema: v.Schema, Rows: rows})
			}
		case diff.UpdateDiff:
			news, olds := filterRowPairs(v.NewRows, v.OldRows, conflictAddrs[v.Table])
			if len(news) > 0 {
				resolved = append(resolved, diff.UpdateDiff{Table: v.Table, Schema: v.Schema, NewRows: news, OldRows: olds})
			}
		case diff.RemoveDiff:
			if rows := filterRows(v.Rows, conflictAddrs[v.Table]); len(rows) > 0 {
				resolved = append(resolved, diff.RemoveDiff{Table: v.Table, Schema: v.Schema, Rows: rows})
			}
		default:
			// Index create/remove diffs aren't tracked by DetectConflicts;
			// they always pass through untouched.
			resolved = append(resolved, d)
		}
	}
	return resolved, conflicts, nil
}

func filterRows(rows []rowcodec.RowInfo, conflicted map[rowcodec.RowLocation]bool) []rowcodec.RowInfo {
	if len(conflicted) == 0 {
		return rows
	}
	out := make([]rowcodec.RowInfo, 0, len(rows))
	for _, r := range rows {
		if !conflicted[r.Loc] {
			out = append(out, r)
		}
	}
	return out
}

func filterRowPairs(news, olds []rowcodec.RowInfo, conflicted map[rowcodec.RowLocation]bool) ([]rowcodec.RowInfo, []rowcodec.RowInfo) {
	if len(conflicted) == 0 {
		return news, olds
	}
	outNew := make([]rowcodec.RowInfo, 0, len(news))
	outOld := make([]rowcodec.RowInfo, 0, len(olds))
	for i, r := range news {
		if !conflicted[r.Loc] {
			outNew = append(outNew, r)
			outOld = append(outOld, olds[i])
		}
	}
	return outNew, outOld
}

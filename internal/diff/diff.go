// Package diff implements the delta codec: typed deltas describing a
// single change to a table (insert/update/remove/create/drop a table,
// create/drop an index), plus the two universal operations every delta
// supports — Apply (mutate a working directory to match the post-state)
// and Reverse (produce the delta that undoes it) — and the squash-fold
// algebra used by commit squash.
package diff

import (
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// Kind tags which of the seven variants a Diff is.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindRemove
	KindTableCreate
	KindTableRemove
	KindIndexCreate
	KindIndexRemove
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "Insert"
	case KindUpdate:
		return "Update"
	case KindRemove:
		return "Remove"
	case KindTableCreate:
		return "TableCreate"
	case KindTableRemove:
		return "TableRemove"
	case KindIndexCreate:
		return "IndexCreate"
	case KindIndexRemove:
		return "IndexRemove"
	}
	return "?"
}

// Diff is one of the seven tagged delta variants below.
type Diff interface {
	TableName() string
	Kind() Kind
}

// IndexRef names an index by (name, column list), as recorded by an
// IndexCreate/IndexRemove diff.
type IndexRef struct {
	Name    string
	Columns []string
}

type InsertDiff struct {
	Table  string
	Schema rowcodec.Schema
	Rows   []rowcodec.RowInfo
}

func (d InsertDiff) TableName() string { return d.Table }
func (d InsertDiff) Kind() Kind        { return KindInsert }

// UpdateDiff carries both the new and the prior row image at each
// address; the prior image is required for revert.
type UpdateDiff struct {
	Table   string
	Schema  rowcodec.Schema
	NewRows []rowcodec.RowInfo
	OldRows []rowcodec.RowInfo
}

func (d UpdateDiff) TableName() string { return d.Table }
func (d UpdateDiff) Kind() Kind        { return KindUpdate }

type RemoveDiff struct {
	Table  string
	Schema rowcodec.Schema
	Rows   []rowcodec.RowInfo
}

func (d RemoveDiff) TableName() string { return d.Table }
func (d RemoveDiff) Kind() Kind        { return KindRemove }

type TableCreateDiff struct {
	Table  string
	Schema rowcodec.Schema
}

func (d TableCreateDiff) TableName() string { return d.Table }
func (d TableCreateDiff) Kind() Kind        { return KindTableCreate }

// TableRemoveDiff carries every row that existed in the table at the
// moment of removal, so a revert can fully restore it.
type TableRemoveDiff struct {
	Table  string
	Schema rowcodec.Schema
	Rows   []rowcodec.RowInfo
}

func (d TableRemoveDiff) TableName() string { return d.Table }
func (d TableRemoveDiff) Kind() Kind        { return KindTableRemove }

type IndexCreateDiff struct {
	Table   string
	Schema  rowcodec.Schema
	Indexes []IndexRef
}

func (d IndexCreateDiff) TableName() string { return d.Table }
func (d IndexCreateDiff) Kind() Kind        { return KindIndexCreate }

type IndexRemoveDiff struct {
	Table   string
	Schema  rowcodec.Schema
	Indexes []IndexRef
}

func (d IndexRemoveDiff) TableName() string { return d.Table }
func (d IndexRemoveDiff) Kind() Kind        { return KindIndexRemove }

// IsEmpty reports whether a diff changed nothing (used to skip emitting
// no-op diffs from a commit).
func IsEmpty(d Diff) bool {
	switch v := d.(type) {
	case InsertDiff:
		return len(v.Rows) == 0
	case UpdateDiff:
		return len(v.NewRows) == 0
	case RemoveDiff:
		return len(v.Rows) == 0
	case IndexCreateDiff:
		return len(v.Indexes) == 0
	case IndexRemoveDiff:
		return len(v.Indexes) == 0
	}
	return false
}

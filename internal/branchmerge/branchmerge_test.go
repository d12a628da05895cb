package branchmerge

import (
	"testing"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/diff"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

func testSchema() rowcodec.Schema {
	return rowcodec.Schema{{Name: "id", Type: coltype.I32()}}
}

func rowAt(page uint32, row uint16, v int32) rowcodec.RowInfo {
	return rowcodec.RowInfo{
		Row: rowcodec.Row{rowcodec.NewI32(v)},
		Loc: rowcodec.RowLocation{PageNum: page, RowNum: row},
	}
}

func TestDetectConflictsNoOverlap(t *testing.T) {
	src := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 0, 10)}}}
	dest := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 1, 20)}}}
	if c := DetectConflicts(src, dest); len(c) != 0 {
		t.Fatalf("expected no conflicts, got %+v", c)
	}
}

func TestDetectConflictsInsertInsert(t *testing.T) {
	src := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 0, 10)}}}
	dest := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 0, 20)}}}
	conflicts := DetectConflicts(src, dest)
	if len(conflicts) != 1 || conflicts[0].Kind != ConflictAddress {
		t.Fatalf("expected one address conflict, got %+v", conflicts)
	}
}

func TestDetectConflictsCreateRemove(t *testing.T) {
	src := []diff.Diff{diff.TableCreateDiff{Table: "t", Schema: testSchema()}}
	dest := []diff.Diff{diff.TableRemoveDiff{Table: "t", Schema: testSchema()}}
	conflicts := DetectConflicts(src, dest)
	if len(conflicts) != 1 || conflicts[0].Kind != ConflictCreateRemove {
		t.Fatalf("expected one create/remove conflict, got %+v", conflicts)
	}
}

func TestFoldCleanFailsOnConflict(t *testing.T) {
	src := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 0, 10)}}}
	dest := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 0, 20)}}}
	if _, _, err := Fold(src, dest, Clean); err == nil {
		t.Fatalf("expected clean strategy to fail on conflict")
	}
}

func TestFoldCleanSucceedsWithoutConflict(t *testing.T) {
	src := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 0, 10)}}}
	dest := []diff.Diff{diff.InsertDiff{Table: "t", Schema: testSchema(), Rows: []rowcodec.RowInfo{rowAt(1, 1, 20)}}}
	out, conflicts, err := Fold(src, dest, Clean)
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
	ins, ok := out[0].(diff.InsertDiff)
	if !ok || len(ins.Rows) != 1 || ins.Rows[0].Row[0].I32() != 10 {
		t.Fatalf("expected src's own insert to pass through untouched, got %+v", out)
	}
}

func TestFoldOursSuppressesConflictingSrcChange(t *testing.T) {
	src := []diff.Diff{diff.UpdateDiff{
		Table: "t", Schema: testSchema(),
		NewRows: []rowcodec.RowInfo{rowAt(1, 0, 111)},
		OldRows: []rowcodec.RowInfo{rowAt(1, 0, 0)},
	}}
	dest := []diff.Diff{diff.UpdateDiff{
		Table: "t", Schema: testSchema(),
		NewRows: []rowcodec.RowInfo{rowAt(1, 0, 222)},
		OldRows: []rowcodec.RowInfo{rowAt(1, 0, 0)},
	}}
	out, conflicts, err := Fold(src, dest, Ours)
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected the conflict to still be reported, got %+v", conflicts)
	}
	if len(out) != 0 {
		t.Fatalf("expected src's conflicting update to be suppressed so dest's value stands, got %+v", out)
	}
}

func TestFoldTheirsKeepsSourceOnConflict(t *testing.T) {
	src := []diff.Diff{diff.UpdateDiff{
		Table: "t", Schema: testSchema(),
		NewRows: []rowcodec.RowInfo{rowAt(1, 0, 111)},
		OldRows: []rowcodec.RowInfo{rowAt(1, 0, 0)},
	}}
	dest := []diff.Diff{diff.UpdateDiff{
		Table: "t", Schema: testSchema(),
		NewRows: []rowcodec.RowInfo{rowAt(1, 0, 222)},
		OldRows: []rowcodec.RowInfo{rowAt(1, 0, 0)},
	}}
	out, _, err := Fold(src, dest, Theirs)
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	upd, ok := out[0].(diff.UpdateDiff)
	if !ok || len(upd.NewRows) != 1 || upd.NewRows[0].Row[0].I32() != 111 {
		t.Fatalf("expected source's value to win, got %+v", out)
	}
}

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{"": Clean, "clean": Clean, "ours": Ours, "theirs": Theirs}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("bogus"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

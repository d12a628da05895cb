package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

func testSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "id", Type: coltype.I32()},
		{Name: "name", Type: coltype.String(10)},
	}
}

func row(id int32, name string) rowcodec.Row {
	return rowcodec.Row{rowcodec.NewI32(id), rowcodec.NewString(name, 10)}
}

func mustExist(t *testing.T, dir, name string) {
	t.Helper()
	if !table.Exists(name, dir) {
		t.Fatalf("expected table %q to exist in %s", name, dir)
	}
}

func TestApplyTableCreateInsertRemove(t *testing.T) {
	dir := t.TempDir()
	schema := testSchema()

	diffs := []Diff{
		TableCreateDiff{Table: "people", Schema: schema},
	}
	if err := Apply(dir, diffs); err != nil {
		t.Fatalf("Apply TableCreate: %v", err)
	}
	mustExist(t, dir, "people")

	tbl, err := table.Open("people", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{row(1, "a"), row(2, "b")})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	insert := InsertDiff{Table: "people", Schema: schema, Rows: infos}
	// Applying an already-present insert via WriteRowsExact is idempotent
	// since it targets the same addresses.
	if err := Apply(dir, []Diff{insert}); err != nil {
		t.Fatalf("Apply Insert: %v", err)
	}

	remove := RemoveDiff{Table: "people", Schema: schema, Rows: []rowcodec.RowInfo{infos[0]}}
	if err := Apply(dir, []Diff{remove}); err != nil {
		t.Fatalf("Apply Remove: %v", err)
	}
	if _, err := tbl.GetRow(infos[0].Loc); err == nil {
		t.Fatalf("expected removed row to read as dead")
	}
}

func TestReverseInsertRemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	schema := testSchema()
	if _, err := table.Create("people", schema, dir); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tbl, err := table.Open("people", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{row(1, "a")})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	insert := InsertDiff{Table: "people", Schema: schema, Rows: infos}
	reversed := Reverse([]Diff{insert})
	if len(reversed) != 1 {
		t.Fatalf("expected a single reverse diff, got %d", len(reversed))
	}
	if _, ok := reversed[0].(RemoveDiff); !ok {
		t.Fatalf("expected Insert to reverse into Remove, got %T", reversed[0])
	}

	if err := Apply(dir, []Diff{reversed[0]}); err != nil {
		t.Fatalf("apply reversed remove: %v", err)
	}
	if _, err := tbl.GetRow(infos[0].Loc); err == nil {
		t.Fatalf("expected row removed after reverting the insert")
	}
}

func TestReverseTableRemoveRestoresRows(t *testing.T) {
	schema := testSchema()
	rows := []rowcodec.RowInfo{
		{Row: row(1, "a"), Loc: rowcodec.RowLocation{PageNum: 1, RowNum: 0}},
	}
	tr := TableRemoveDiff{Table: "people", Schema: schema, Rows: rows}
	reversed := invert(tr)
	if len(reversed) != 2 {
		t.Fatalf("expected TableRemove to reverse into create+insert, got %d", len(reversed))
	}
	if _, ok := reversed[0].(TableCreateDiff); !ok {
		t.Fatalf("expected first reversed diff to be TableCreate, got %T", reversed[0])
	}
	ins, ok := reversed[1].(InsertDiff)
	if !ok {
		t.Fatalf("expected second reversed diff to be Insert, got %T", reversed[1])
	}
	if len(ins.Rows) != 1 {
		t.Fatalf("expected restored rows to carry over, got %d", len(ins.Rows))
	}
}

func TestSquashCancelsInsertThenRemove(t *testing.T) {
	schema := testSchema()
	loc := rowcodec.RowLocation{PageNum: 1, RowNum: 0}
	diffs := []Diff{
		InsertDiff{Table: "people", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}}},
		RemoveDiff{Table: "people", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}}},
	}
	out := Squash(diffs)
	if len(out) != 0 {
		t.Fatalf("expected insert+remove at the same address to cancel, got %+v", out)
	}
}

func TestSquashTableCreateThenRemoveVanishes(t *testing.T) {
	schema := testSchema()
	diffs := []Diff{
		TableCreateDiff{Table: "scratch", Schema: schema},
		InsertDiff{Table: "scratch", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a")}}},
		TableRemoveDiff{Table: "scratch", Schema: schema},
	}
	out := Squash(diffs)
	if len(out) != 0 {
		t.Fatalf("expected a table created and dropped within the window to vanish, got %+v", out)
	}
}

func TestSquashUpdateOnInsertedRowFoldsIntoInsert(t *testing.T) {
	schema := testSchema()
	loc := rowcodec.RowLocation{PageNum: 1, RowNum: 0}
	diffs := []Diff{
		InsertDiff{Table: "people", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}}},
		UpdateDiff{
			Table:   "people",
			Schema:  schema,
			NewRows: []rowcodec.RowInfo{{Row: row(1, "z"), Loc: loc}},
			OldRows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}},
		},
	}
	out := Squash(diffs)
	if len(out) != 1 {
		t.Fatalf("expected update-on-insert to fold into a single Insert, got %d diffs: %+v", len(out), out)
	}
	ins, ok := out[0].(InsertDiff)
	if !ok {
		t.Fatalf("expected remaining diff to be Insert, got %T", out[0])
	}
	if ins.Rows[0].Row[1].Str() != "z" {
		t.Fatalf("expected folded insert to carry the updated value, got %+v", ins.Rows[0].Row[1])
	}
}

func TestSquashRemoveAfterUpdateDropsUpdate(t *testing.T) {
	schema := testSchema()
	loc := rowcodec.RowLocation{PageNum: 1, RowNum: 0}
	diffs := []Diff{
		UpdateDiff{
			Table:   "people",
			Schema:  schema,
			NewRows: []rowcodec.RowInfo{{Row: row(1, "z"), Loc: loc}},
			OldRows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}},
		},
		RemoveDiff{Table: "people", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "z"), Loc: loc}}},
	}
	out := Squash(diffs)
	if len(out) != 1 {
		t.Fatalf("expected only a Remove to survive, got %d: %+v", len(out), out)
	}
	rem, ok := out[0].(RemoveDiff)
	if !ok {
		t.Fatalf("expected RemoveDiff, got %T", out[0])
	}
	if rem.Rows[0].Row[1].Str() != "a" {
		t.Fatalf("expected removed row to carry the pre-update original value, got %+v", rem.Rows[0].Row[1])
	}
}

func TestSquashIndexCreateThenRemoveCancels(t *testing.T) {
	schema := testSchema()
	diffs := []Diff{
		IndexCreateDiff{Table: "people", Schema: schema, Indexes: []IndexRef{{Name: "by_id", Columns: []string{"id"}}}},
		IndexRemoveDiff{Table: "people", Schema: schema, Indexes: []IndexRef{{Name: "by_id", Columns: []string{"id"}}}},
	}
	out := Squash(diffs)
	if len(out) != 0 {
		t.Fatalf("expected index create+drop to cancel, got %+v", out)
	}
}

func TestSquashPreservesTableOrder(t *testing.T) {
	schema := testSchema()
	diffs := []Diff{
		InsertDiff{Table: "b", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a")}}},
		InsertDiff{Table: "a", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(2, "b")}}},
	}
	out := Squash(diffs)
	if len(out) != 2 {
		t.Fatalf("expected two surviving diffs, got %d", len(out))
	}
	if out[0].TableName() != "b" || out[1].TableName() != "a" {
		t.Fatalf("expected tables to emit in first-seen order, got %s then %s", out[0].TableName(), out[1].TableName())
	}
}

func TestApplyIndexCreateRemove(t *testing.T) {
	dir := t.TempDir()
	schema := testSchema()
	tbl, err := table.Create("people", schema, dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.InsertRows([]rowcodec.Row{row(1, "a")}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	create := IndexCreateDiff{Table: "people", Schema: schema, Indexes: []IndexRef{{Name: "by_id", Columns: []string{"id"}}}}
	if err := Apply(dir, []Diff{create}); err != nil {
		t.Fatalf("Apply IndexCreate: %v", err)
	}
	reopened, err := table.Open("people", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := reopened.FindIndex("by_id"); !ok {
		t.Fatalf("expected index to be present after applying IndexCreate")
	}

	remove := IndexRemoveDiff{Table: "people", Schema: schema, Indexes: []IndexRef{{Name: "by_id"}}}
	if err := Apply(dir, []Diff{remove}); err != nil {
		t.Fatalf("Apply IndexRemove: %v", err)
	}
	reopened2, err := table.Open("people", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := reopened2.FindIndex("by_id"); ok {
		t.Fatalf("expected index to be gone after applying IndexRemove")
	}
}

func TestApplyTableRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	schema := testSchema()
	if _, err := table.Create("scratch", schema, dir); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Apply(dir, []Diff{TableRemoveDiff{Table: "scratch", Schema: schema}}); err != nil {
		t.Fatalf("Apply TableRemove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "scratch.db")); err == nil {
		t.Fatalf("expected table file removed")
	}
}

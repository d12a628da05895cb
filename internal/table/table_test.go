package table

import (
	"testing"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

func testSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "id", Type: coltype.I32()},
		{Name: "name", Type: coltype.String(10)},
	}
}

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	schema := testSchema()
	tbl, err := Create("people", schema, dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tbl.NumPages() != 2 {
		t.Fatalf("expected 2 pages after create, got %d", tbl.NumPages())
	}
	reopened, err := Open("people", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(reopened.Schema()) != 2 {
		t.Fatalf("schema mismatch on reopen: %+v", reopened.Schema())
	}
}

func TestInsertGetIterate(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rows := []rowcodec.Row{
		{rowcodec.NewI32(1), rowcodec.NewString("alice", 10)},
		{rowcodec.NewI32(2), rowcodec.NewString("bob", 10)},
	}
	infos, err := tbl.InsertRows(rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 infos, got %d", len(infos))
	}
	got, err := tbl.GetRow(infos[0].Loc)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if got[0].I32() != 1 {
		t.Fatalf("unexpected row: %+v", got)
	}
	all, err := tbl.AllRows()
	if err != nil {
		t.Fatalf("AllRows: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 live rows, got %d", len(all))
	}
}

func TestInsertSpansMultiplePages(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("wide", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	slots := rowcodec.SlotsPerPage(testSchema())
	rows := make([]rowcodec.Row, slots+5)
	for i := range rows {
		rows[i] = rowcodec.Row{rowcodec.NewI32(int32(i)), rowcodec.NewString("x", 10)}
	}
	infos, err := tbl.InsertRows(rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	sawPage2 := false
	for _, info := range infos {
		if info.Loc.PageNum == 2 {
			sawPage2 = true
		}
	}
	if !sawPage2 {
		t.Fatalf("expected overflow onto a second data page")
	}
	if tbl.NumPages() < 3 {
		t.Fatalf("expected at least 3 pages (header + 2 data), got %d", tbl.NumPages())
	}
}

func TestRemoveAndReuseSlot(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{
		{rowcodec.NewI32(1), rowcodec.NewString("alice", 10)},
	})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	removed, err := tbl.RemoveRows([]rowcodec.RowLocation{infos[0].Loc})
	if err != nil {
		t.Fatalf("RemoveRows: %v", err)
	}
	if removed[0].Row[0].I32() != 1 {
		t.Fatalf("unexpected removed image: %+v", removed[0])
	}
	if _, err := tbl.GetRow(infos[0].Loc); err == nil {
		t.Fatalf("expected error reading removed row")
	}
	next, err := tbl.InsertRows([]rowcodec.Row{
		{rowcodec.NewI32(2), rowcodec.NewString("bob", 10)},
	})
	if err != nil {
		t.Fatalf("InsertRows after remove: %v", err)
	}
	if next[0].Loc != infos[0].Loc {
		t.Fatalf("expected reuse of freed slot %+v, got %+v", infos[0].Loc, next[0].Loc)
	}
}

func TestRewriteRowsCapturesOldImage(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{
		{rowcodec.NewI32(1), rowcodec.NewString("alice", 10)},
	})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	updated := rowcodec.RowInfo{Row: rowcodec.Row{rowcodec.NewI32(1), rowcodec.NewString("alicia", 10)}, Loc: infos[0].Loc}
	newRows, oldRows, err := tbl.RewriteRows([]rowcodec.RowInfo{updated})
	if err != nil {
		t.Fatalf("RewriteRows: %v", err)
	}
	if oldRows[0].Row[1].Str() != "alice" {
		t.Fatalf("expected old image preserved, got %+v", oldRows[0])
	}
	if newRows[0].Row[1].Str() != "alicia" {
		t.Fatalf("expected new image applied, got %+v", newRows[0])
	}
	got, err := tbl.GetRow(infos[0].Loc)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if got[1].Str() != "alicia" {
		t.Fatalf("expected persisted update, got %+v", got)
	}
}

func TestWriteRowsExactPlacesAtAddress(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	loc := rowcodec.RowLocation{PageNum: 1, RowNum: 0}
	err = tbl.WriteRowsExact([]rowcodec.RowInfo{
		{Row: rowcodec.Row{rowcodec.NewI32(42), rowcodec.NewString("z", 10)}, Loc: loc},
	})
	if err != nil {
		t.Fatalf("WriteRowsExact: %v", err)
	}
	got, err := tbl.GetRow(loc)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if got[0].I32() != 42 {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestAddRemoveIndex(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tbl.AddIndex(IndexID{0}, "by_id", 5); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}
	if err := tbl.AddIndex(IndexID{0}, "dup", 6); err == nil {
		t.Fatalf("expected duplicate index id to be rejected")
	}
	reopened, err := Open("people", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(reopened.Indexes()) != 1 || reopened.Indexes()[0].Name != "by_id" {
		t.Fatalf("index catalog didn't persist: %+v", reopened.Indexes())
	}
	if err := tbl.RemoveIndex("by_id"); err != nil {
		t.Fatalf("RemoveIndex: %v", err)
	}
	if len(tbl.Indexes()) != 0 {
		t.Fatalf("expected index catalog empty after remove")
	}
}

func TestGetEmptySlotRuns(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{
		{rowcodec.NewI32(1), rowcodec.NewString("a", 10)},
		{rowcodec.NewI32(2), rowcodec.NewString("b", 10)},
		{rowcodec.NewI32(3), rowcodec.NewString("c", 10)},
	})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if _, err := tbl.RemoveRows([]rowcodec.RowLocation{infos[1].Loc}); err != nil {
		t.Fatalf("RemoveRows: %v", err)
	}
	runs, err := tbl.GetEmptySlotRuns()
	if err != nil {
		t.Fatalf("GetEmptySlotRuns: %v", err)
	}
	found := false
	for _, r := range runs {
		if r.Start == infos[1].Loc && r.Length >= 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a run starting at the freed slot, got %+v", runs)
	}
}

func TestVacuumShrinksTrailingEmptyPages(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create("people", testSchema(), dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	slots := rowcodec.SlotsPerPage(testSchema())
	rows := make([]rowcodec.Row, slots+3)
	for i := range rows {
		rows[i] = rowcodec.Row{rowcodec.NewI32(int32(i)), rowcodec.NewString("x", 10)}
	}
	infos, err := tbl.InsertRows(rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	pagesBefore := tbl.NumPages()
	var trailing []rowcodec.RowLocation
	for _, info := range infos {
		if info.Loc.PageNum == pagesBefore-1 {
			trailing = append(trailing, info.Loc)
		}
	}
	if _, err := tbl.RemoveRows(trailing); err != nil {
		t.Fatalf("RemoveRows: %v", err)
	}
	if err := tbl.Vacuum(); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if tbl.NumPages() >= pagesBefore {
		t.Fatalf("expected Vacuum to shrink page count, still %d", tbl.NumPages())
	}
}

func TestCreateRejectsOversizedRow(t *testing.T) {
	dir := t.TempDir()
	schema := rowcodec.Schema{{Name: "huge", Type: coltype.String(5000)}}
	if _, err := Create("huge", schema, dir); err == nil {
		t.Fatalf("expected oversized row to be rejected at Create")
	}
}

package rowcodec

import (
	"testing"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/pageio"
)

func testSchema() Schema {
	return Schema{
		{Name: "id", Type: coltype.I32()},
		{Name: "name", Type: coltype.String(10)},
		{Name: "score", Type: coltype.NullableOf(coltype.Double())},
	}
}

func TestWriteReadRowRoundTrip(t *testing.T) {
	schema := testSchema()
	var page pageio.Page
	row := Row{NewI32(7), NewString("alice", 10), NewDouble(3.5)}
	if err := WriteRow(schema, &page, row, 0); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	got, live, err := ReadRow(schema, &page, 0)
	if err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if !live {
		t.Fatalf("expected live row")
	}
	if got[0].I32() != 7 || got[1].Str() != "alice" || got[2].Float64() != 3.5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestReadEmptySlot(t *testing.T) {
	schema := testSchema()
	var page pageio.Page
	_, live, err := ReadRow(schema, &page, 0)
	if err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if live {
		t.Fatalf("expected empty slot to report not-live")
	}
}

func TestCorruptMarker(t *testing.T) {
	schema := testSchema()
	var page pageio.Page
	page[0] = 7
	if _, _, err := ReadRow(schema, &page, 0); err == nil {
		t.Fatalf("expected error for corrupt marker byte")
	}
}

func TestNullRoundTrip(t *testing.T) {
	schema := testSchema()
	var page pageio.Page
	row := Row{NewI32(1), NewString("bob", 10), NewNull(coltype.NullableOf(coltype.Double()))}
	if err := WriteRow(schema, &page, row, 0); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	got, _, err := ReadRow(schema, &page, 0)
	if err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if !got[2].Null {
		t.Fatalf("expected null score, got %v", got[2])
	}
}

func TestInsertRowFindsFirstEmptySlot(t *testing.T) {
	schema := Schema{{Name: "id", Type: coltype.I32()}}
	var page pageio.Page
	row0 := Row{NewI32(1)}
	n, ok, err := InsertRow(schema, &page, row0)
	if err != nil || !ok || n != 0 {
		t.Fatalf("InsertRow: n=%d ok=%v err=%v", n, ok, err)
	}
	if err := ClearRow(schema, &page, 0); err != nil {
		t.Fatalf("ClearRow: %v", err)
	}
	n2, ok, err := InsertRow(schema, &page, row0)
	if err != nil || !ok || n2 != 0 {
		t.Fatalf("expected reuse of cleared slot, got n=%d ok=%v err=%v", n2, ok, err)
	}
}

func TestInsertRowPageFull(t *testing.T) {
	schema := Schema{{Name: "id", Type: coltype.I32()}}
	var page pageio.Page
	capacity := SlotsPerPage(schema)
	for i := 0; i < capacity; i++ {
		if _, ok, err := InsertRow(schema, &page, Row{NewI32(int32(i))}); err != nil || !ok {
			t.Fatalf("InsertRow %d: ok=%v err=%v", i, ok, err)
		}
	}
	_, ok, err := InsertRow(schema, &page, Row{NewI32(999)})
	if err != nil {
		t.Fatalf("InsertRow on full page: %v", err)
	}
	if ok {
		t.Fatalf("expected full page to refuse insert")
	}
}

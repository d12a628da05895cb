package commitstore

import (
	"testing"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/diff"
	"github.com/gql-db/gqldb/internal/rowcodec"
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

func TestCreateCommitAndFetch(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	schema := testSchema()
	diffs := []diff.Diff{
		diff.TableCreateDiff{Table: "people", Schema: schema},
		diff.InsertDiff{Table: "people", Schema: schema, Rows: []rowcodec.RowInfo{
			{Row: row(1, "a"), Loc: rowcodec.RowLocation{PageNum: 1, RowNum: 0}},
		}},
	}
	c, err := s.CreateCommit("initial commit", "commit -m initial", diffs)
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if c.Hash == "" {
		t.Fatalf("expected a generated hash")
	}

	got, err := s.FetchCommit(c.Hash)
	if err != nil {
		t.Fatalf("FetchCommit: %v", err)
	}
	if got.Message != "initial commit" || got.Command != "commit -m initial" {
		t.Fatalf("unexpected commit fields: %+v", got)
	}
	if len(got.Diffs) != 2 {
		t.Fatalf("expected 2 diffs round-tripped, got %d", len(got.Diffs))
	}
	ins, ok := got.Diffs[1].(diff.InsertDiff)
	if !ok {
		t.Fatalf("expected second diff to be Insert, got %T", got.Diffs[1])
	}
	if len(ins.Rows) != 1 || ins.Rows[0].Row[1].Str() != "a" {
		t.Fatalf("unexpected insert diff round-trip: %+v", ins)
	}
}

func TestFetchUnknownCommit(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.FetchCommit("nonexistent"); err == nil {
		t.Fatalf("expected error fetching unknown commit")
	}
}

func TestMultipleCommitsReopenable(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	schema := testSchema()
	var hashes []string
	for i := 0; i < 5; i++ {
		c, err := s.CreateCommit("msg", "cmd", []diff.Diff{
			diff.InsertDiff{Table: "t", Schema: schema, Rows: []rowcodec.RowInfo{
				{Row: row(int32(i), "x"), Loc: rowcodec.RowLocation{PageNum: 1, RowNum: uint16(i)}},
			}},
		})
		if err != nil {
			t.Fatalf("CreateCommit %d: %v", i, err)
		}
		hashes = append(hashes, c.Hash)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i, h := range hashes {
		c, err := reopened.FetchCommit(h)
		if err != nil {
			t.Fatalf("FetchCommit %d: %v", i, err)
		}
		ins := c.Diffs[0].(diff.InsertDiff)
		if ins.Rows[0].Row[0].I32() != int32(i) {
			t.Fatalf("commit %d: expected row id %d, got %d", i, i, ins.Rows[0].Row[0].I32())
		}
	}
}

func TestSquashCombinesCommits(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	schema := testSchema()
	loc := rowcodec.RowLocation{PageNum: 1, RowNum: 0}
	c1, err := s.CreateCommit("insert", "cmd1", []diff.Diff{
		diff.InsertDiff{Table: "t", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}}},
	})
	if err != nil {
		t.Fatalf("CreateCommit 1: %v", err)
	}
	c2, err := s.CreateCommit("remove", "cmd2", []diff.Diff{
		diff.RemoveDiff{Table: "t", Schema: schema, Rows: []rowcodec.RowInfo{{Row: row(1, "a"), Loc: loc}}},
	})
	if err != nil {
		t.Fatalf("CreateCommit 2: %v", err)
	}

	squashed, err := s.Squash([]Commit{c1, c2})
	if err != nil {
		t.Fatalf("Squash: %v", err)
	}
	if len(squashed.Diffs) != 0 {
		t.Fatalf("expected insert+remove to cancel under squash, got %+v", squashed.Diffs)
	}
	if squashed.Hash == c1.Hash || squashed.Hash == c2.Hash {
		t.Fatalf("expected squash to produce a new commit hash")
	}

	fetched, err := s.FetchCommit(squashed.Hash)
	if err != nil {
		t.Fatalf("FetchCommit squashed: %v", err)
	}
	if fetched.Command != "squash "+c1.Hash+" "+c2.Hash {
		t.Fatalf("unexpected squash command: %q", fetched.Command)
	}
}

func TestSquashSingleCommitIsNoop(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c, err := s.CreateCommit("msg", "cmd", nil)
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	out, err := s.Squash([]Commit{c})
	if err != nil {
		t.Fatalf("Squash: %v", err)
	}
	if out.Hash != c.Hash {
		t.Fatalf("expected squashing a single commit to be a no-op, got different hash")
	}
}

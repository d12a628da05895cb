package command

import (
	"strings"
	"testing"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/database"
	"github.com/gql-db/gqldb/internal/diff"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

const user = "alice"

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	base := t.TempDir()
	db, err := database.CreateDatabase(base, "cmddb", 0)
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func schema() rowcodec.Schema {
	return rowcodec.Schema{{Name: "id", Type: coltype.I32()}}
}

func TestRunUnknownCommand(t *testing.T) {
	db := newTestDatabase(t)
	if _, err := Run(db, user, "frobnicate"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestRunStatusAndCommit(t *testing.T) {
	db := newTestDatabase(t)
	if _, err := table.Create("widgets", schema(), db.BranchPath(database.MainBranchName)); err != nil {
		t.Fatalf("table.Create: %v", err)
	}
	res, err := Run(db, user, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(res.Text, "No uncommitted") {
		t.Fatalf("unexpected status text %q", res.Text)
	}

	if _, err := Run(db, user, `commit -m "nothing pending"`); err == nil {
		t.Fatalf("expected commit with nothing pending to fail")
	}

	tbl, err := table.Open("widgets", db.BranchPath(database.MainBranchName))
	if err != nil {
		t.Fatalf("Open widgets: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{{rowcodec.NewI32(1)}})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	db.AppendDiff(user, diff.InsertDiff{Table: "widgets", Schema: schema(), Rows: infos})

	res, err = Run(db, user, `commit -m "add widget"`)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !strings.Contains(res.Text, "Committed") {
		t.Fatalf("unexpected commit text %q", res.Text)
	}
}

func TestRunBranchLifecycle(t *testing.T) {
	db := newTestDatabase(t)

	if _, err := Run(db, user, "create feature"); err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := Run(db, user, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(res.Text, "feature") {
		t.Fatalf("expected feature in branch list, got %q", res.Text)
	}

	if _, err := Run(db, user, "switch feature"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if _, err := Run(db, user, "switch main"); err != nil {
		t.Fatalf("switch back: %v", err)
	}
	if _, err := Run(db, user, "delete feature"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Run(db, user, "delete main"); err == nil {
		t.Fatalf("expected deleting main to fail")
	}
}

func TestRunMergeRequiresStrategyFlagParsing(t *testing.T) {
	db := newTestDatabase(t)
	if _, err := table.Create("widgets", schema(), db.BranchPath(database.MainBranchName)); err != nil {
		t.Fatalf("table.Create: %v", err)
	}
	if _, err := Run(db, user, "create feature"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Run(db, user, "switch feature"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	tbl, err := table.Open("widgets", db.BranchPath("feature"))
	if err != nil {
		t.Fatalf("Open widgets: %v", err)
	}
	infos, err := tbl.InsertRows([]rowcodec.Row{{rowcodec.NewI32(9)}})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	db.AppendDiff(user, diff.InsertDiff{Table: "widgets", Schema: schema(), Rows: infos})
	if _, err := Run(db, user, `commit -m "on feature"`); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := Run(db, user, "switch main"); err != nil {
		t.Fatalf("switch back to main: %v", err)
	}
	res, err := Run(db, user, `merge feature main "merge it" --strategy clean`)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !strings.Contains(res.Text, "Merged") {
		t.Fatalf("unexpected merge text %q", res.Text)
	}
}

func TestRunSchemaTableSQLMirror(t *testing.T) {
	db := newTestDatabase(t)
	if _, err := table.Create("widgets", schema(), db.BranchPath(database.MainBranchName)); err != nil {
		t.Fatalf("table.Create: %v", err)
	}
	tbl, err := table.Open("widgets", db.BranchPath(database.MainBranchName))
	if err != nil {
		t.Fatalf("Open widgets: %v", err)
	}
	if _, err := tbl.InsertRows([]rowcodec.Row{{rowcodec.NewI32(42)}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	res, err := Run(db, user, `schema_table --sql "SELECT id FROM widgets"`)
	if err != nil {
		t.Fatalf("schema_table --sql: %v", err)
	}
	if !strings.Contains(res.Text, "42") {
		t.Fatalf("expected mirrored row value 42 in output, got %q", res.Text)
	}

	res, err = Run(db, user, "schema_table")
	if err != nil {
		t.Fatalf("schema_table: %v", err)
	}
	if !strings.Contains(res.Text, "widgets") {
		t.Fatalf("expected widgets in table listing, got %q", res.Text)
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	if _, err := tokenize(`commit -m "oops`); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

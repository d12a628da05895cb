package cliview

import (
	"strings"
	"testing"
	"time"

	"github.com/gql-db/gqldb/internal/branchgraph"
	"github.com/gql-db/gqldb/internal/commitstore"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

func TestRenderLogEmpty(t *testing.T) {
	if got := RenderLog("main", nil); !strings.Contains(got, "No Commits!") {
		t.Fatalf("unexpected empty log render %q", got)
	}
}

func TestRenderLogIncludesHashAndMessage(t *testing.T) {
	commits := []commitstore.Commit{{
		Hash: "abc123", Message: "add widgets", Timestamp: time.Unix(0, 0).UTC(),
	}}
	got := RenderLog("main", commits)
	if !strings.Contains(got, "abc123") || !strings.Contains(got, "add widgets") || !strings.Contains(got, "main") {
		t.Fatalf("rendered log missing expected content: %q", got)
	}
}

func TestRenderInfoIncludesCommand(t *testing.T) {
	c := commitstore.Commit{Hash: "deadbeef", Message: "msg", Command: "commit -m msg", Timestamp: time.Unix(0, 0).UTC()}
	got := RenderInfo(c)
	if !strings.Contains(got, "deadbeef") {
		t.Fatalf("rendered info missing hash: %q", got)
	}
}

func TestRenderStatus(t *testing.T) {
	if got := RenderStatus("main", 0); !strings.Contains(got, "no uncommitted") {
		t.Fatalf("unexpected zero-pending status %q", got)
	}
	if got := RenderStatus("main", 3); !strings.Contains(got, "3 uncommitted") {
		t.Fatalf("unexpected pending status %q", got)
	}
}

func TestRenderBranchViewMarksHead(t *testing.T) {
	loc := rowcodec.RowLocation{PageNum: 1, RowNum: 0}
	view := &branchgraph.BranchView{
		Heads: map[string]rowcodec.RowLocation{"main": loc},
		Nodes: map[rowcodec.RowLocation]branchgraph.Node{
			loc: {Hash: "abc123", BranchName: "main", IsHead: true, Loc: loc},
		},
	}
	got := RenderBranchView(view)
	if !strings.Contains(got, "main") || !strings.Contains(got, "abc123") {
		t.Fatalf("unexpected branch view render %q", got)
	}
}

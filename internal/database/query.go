package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gql-db/gqldb/internal/branchgraph"
	"github.com/gql-db/gqldb/internal/commitstore"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// Log returns every commit reachable from userID's current branch HEAD,
// tip first (newest to oldest), for the `log` command.
func (d *Database) Log(userID string) ([]commitstore.Commit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a := d.actor(userID)
	nodes, err := d.graph.Log(a.BranchName)
	if err != nil {
		return nil, err
	}
	out := make([]commitstore.Commit, 0, len(nodes))
	for _, n := range nodes {
		c, err := d.commits.FetchCommit(n.Hash)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CurrentBranchName returns the branch userID currently has checked
// out, for commands (like `log`) that render output rooted at a
// branch name rather than a path.
func (d *Database) CurrentBranchName(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.actor(userID).BranchName
}

// CommitInfo fetches the full record for one commit, for the `info`
// command.
func (d *Database) CommitInfo(hash string) (commitstore.Commit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits.FetchCommit(hash)
}

// PendingDiffCount reports how many uncommitted diffs userID has
// accumulated, for the `status` command.
func (d *Database) PendingDiffCount(userID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actor(userID).Diffs)
}

// BranchView returns the union of every branch's commit chain, for the
// `branch_view` command.
func (d *Database) BranchView() (*branchgraph.BranchView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.graph.BuildBranchView()
}

// TableNames lists the tables present on userID's current branch, for
// the `schema_table` command.
func (d *Database) TableNames(userID string) ([]string, error) {
	d.mu.Lock()
	dir := d.BranchPath(d.actor(userID).BranchName)
	d.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dberrors.WrapIO(err, "list tables in %q", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".db" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	return names, nil
}

// Users returns userID (the caller) alongside every registered
// username, for the `user` command.
func (d *Database) Users(userID string) (current string, all []string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	err = d.creds.Iterate(func(ri rowcodec.RowInfo) error {
		all = append(all, ri.Row[0].Str())
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return userID, all, nil
}

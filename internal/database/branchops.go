package database

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gql-db/gqldb/internal/dberrors"
)

// CreateBranch snapshots userID's current working directory into a new
// branch directory, then links a branch-graph node sharing the source
// tip's commit. See DESIGN.md's branchgraph entry: each branch node
// already carries its own branch_name, so the source branch's own HEAD
// row is untouched by a fork.
func (d *Database) CreateBranch(name, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if exists, err := d.graph.BranchExists(name); err != nil {
		return err
	} else if exists {
		return dberrors.HistoryF("branch %q already exists", name)
	}

	a := d.actor(userID)
	srcDir := d.BranchPath(a.BranchName)
	dstDir := d.BranchPath(name)
	if err := copyDir(srcDir, dstDir); err != nil {
		return err
	}
	if err := d.graph.CreateBranch(name, a.BranchName); err != nil {
		return err
	}
	return nil
}

// SwitchBranch moves userID onto branch. Requires no uncommitted work,
// since diffs are tracked against the branch they were accumulated on.
func (d *Database) SwitchBranch(branch, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a := d.actor(userID)
	if a.HasUncommittedWork() {
		return dberrors.ConstraintF("cannot switch branch: %q has uncommitted changes (commit or discard first)", userID)
	}
	if exists, err := d.graph.BranchExists(branch); err != nil {
		return err
	} else if !exists {
		return dberrors.HistoryF("branch %q does not exist", branch)
	}
	a.BranchName = branch
	return nil
}

// Discard drops userID's uncommitted diffs without applying them.
func (d *Database) Discard(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actor(userID).Diffs = nil
}

// ListBranches returns every branch name in the database.
func (d *Database) ListBranches() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.graph.BranchNames()
}

// DeleteBranch removes branch's working directory and every branch-graph
// node tagged with it. name must not be main and must not be the
// caller's current branch; unless force, the branch must have no
// uncommitted work recorded by any actor currently on it.
func (d *Database) DeleteBranch(name, userID string, force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleteBranchLocked(name, userID, force)
}

func (d *Database) deleteBranchLocked(name, userID string, force bool) error {
	if name == MainBranchName {
		return dberrors.ConstraintF("cannot delete the main branch")
	}
	if a, ok := d.actors[userID]; ok && a.BranchName == name {
		return dberrors.ConstraintF("cannot delete the branch %q you are currently on", name)
	}
	if !force {
		for _, a := range d.actors {
			if a.BranchName == name && a.HasUncommittedWork() {
				return dberrors.ConstraintF("branch %q has uncommitted work from user %q; use --force", name, a.UserID)
			}
		}
	}
	if err := d.graph.DeleteBranch(name); err != nil {
		return err
	}
	if err := os.RemoveAll(d.BranchPath(name)); err != nil {
		return dberrors.WrapIO(err, "remove branch working directory")
	}
	return nil
}

// copyDir copies every regular file directly inside src into dst,
// creating dst. Branch working directories hold only table files, never
// subdirectories, so this doesn't need to recurse.
func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return dberrors.WrapIO(err, "create branch directory")
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return dberrors.WrapIO(err, "read source branch directory")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return dberrors.WrapIO(err, "open source file")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return dberrors.WrapIO(err, "create destination file")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return dberrors.WrapIO(err, "copy file")
	}
	return out.Close()
}

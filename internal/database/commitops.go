package database

import (
	"fmt"

	"github.com/gql-db/gqldb/internal/branchgraph"
	"github.com/gql-db/gqldb/internal/branchmerge"
	"github.com/gql-db/gqldb/internal/commitstore"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/diff"
)

// AppendDiff records a change userID made against their current branch's
// working directory. Higher layers (the out-of-scope SQL executor, or
// test code standing in for it) call this as they mutate tables; the
// diff stays private to userID until Commit.
func (d *Database) AppendDiff(userID string, dd diff.Diff) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.actor(userID)
	a.Diffs = append(a.Diffs, dd)
}

// Commit flushes userID's accumulated diffs into a new commit on their
// current branch, advancing its HEAD.
func (d *Database) Commit(message, userID string) (commitstore.Commit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a := d.actor(userID)
	if !a.HasUncommittedWork() {
		return commitstore.Commit{}, dberrors.ConstraintF("nothing to commit")
	}
	c, err := d.commits.CreateCommit(message, "commit -m "+message, a.Diffs)
	if err != nil {
		return commitstore.Commit{}, err
	}
	if _, err := d.graph.AppendCommit(a.BranchName, c.Hash); err != nil {
		return commitstore.Commit{}, err
	}
	a.Diffs = nil
	return c, nil
}

// Revert fetches hash, reverses its diffs, applies the reversal to
// userID's working directory, and records the reversal as a new forward
// commit so history never rewrites the past.
func (d *Database) Revert(hash, userID string) (commitstore.Commit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a := d.actor(userID)
	c, err := d.commits.FetchCommit(hash)
	if err != nil {
		return commitstore.Commit{}, err
	}
	reversed := diff.Reverse(c.Diffs)
	if err := diff.Apply(d.BranchPath(a.BranchName), reversed); err != nil {
		return commitstore.Commit{}, err
	}
	newCommit, err := d.commits.CreateCommit(
		"Revert "+hash, "revert "+hash, reversed)
	if err != nil {
		return commitstore.Commit{}, err
	}
	if _, err := d.graph.AppendCommit(a.BranchName, newCommit.Hash); err != nil {
		return commitstore.Commit{}, err
	}
	return newCommit, nil
}

// Squash folds every commit on userID's current branch between hashFirst
// and hashLast (inclusive, oldest-to-newest) into one commit, rejecting
// the request if any commit in that range is shared with another branch
//.
func (d *Database) Squash(hashFirst, hashLast, userID string) (commitstore.Commit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a := d.actor(userID)
	chain, err := d.graph.SquashChain(a.BranchName, hashFirst, hashLast)
	if err != nil {
		return commitstore.Commit{}, err
	}
	commits := make([]commitstore.Commit, 0, len(chain))
	for _, n := range chain {
		c, err := d.commits.FetchCommit(n.Hash)
		if err != nil {
			return commitstore.Commit{}, err
		}
		commits = append(commits, c)
	}
	squashed, err := d.commits.Squash(commits)
	if err != nil {
		return commitstore.Commit{}, err
	}
	if err := d.graph.ApplySquash(chain[len(chain)-1], chain[0], squashed.Hash); err != nil {
		return commitstore.Commit{}, err
	}
	return squashed, nil
}

// MergeResult summarizes a completed merge.
type MergeResult struct {
	Commit    commitstore.Commit
	Conflicts []branchmerge.Conflict
}

// Merge folds src's changes since its common ancestor with dest into
// dest's working directory under strategy, records a merge commit on
// dest, logs the merge, and optionally deletes src.
func (d *Database) Merge(src, dest, message string, strategy branchmerge.Strategy, deleteSrc bool) (MergeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	srcTip, err := d.graph.HeadNode(src)
	if err != nil {
		return MergeResult{}, err
	}
	destTip, err := d.graph.HeadNode(dest)
	if err != nil {
		return MergeResult{}, err
	}
	ancestor, ok, err := d.graph.CommonAncestor(srcTip, destTip)
	if err != nil {
		return MergeResult{}, err
	}
	if !ok {
		return MergeResult{}, dberrors.HistoryF("branches %q and %q share no history", src, dest)
	}

	srcHashes, err := d.graph.HashesSince(srcTip, ancestor)
	if err != nil {
		return MergeResult{}, err
	}
	destHashes, err := d.graph.HashesSince(destTip, ancestor)
	if err != nil {
		return MergeResult{}, err
	}

	srcDiffs, err := d.diffsForHashes(srcHashes)
	if err != nil {
		return MergeResult{}, err
	}
	destDiffs, err := d.diffsForHashes(destHashes)
	if err != nil {
		return MergeResult{}, err
	}

	resolved, conflicts, err := branchmerge.Fold(srcDiffs, destDiffs, strategy)
	if err != nil {
		return MergeResult{Conflicts: conflicts}, err
	}

	if err := diff.Apply(d.BranchPath(dest), resolved); err != nil {
		return MergeResult{Conflicts: conflicts}, err
	}

	command := fmt.Sprintf("merge %s %s --strategy %s", src, dest, strategy)
	mergeCommit, err := d.commits.CreateCommit(message, command, resolved)
	if err != nil {
		return MergeResult{Conflicts: conflicts}, err
	}
	if _, err := d.graph.AppendCommit(dest, mergeCommit.Hash); err != nil {
		return MergeResult{Conflicts: conflicts}, err
	}
	if err := d.graph.AppendMerged(branchgraph.MergedBranch{
		BranchName:        src,
		SourceCommit:      srcTip.Hash,
		DestinationCommit: mergeCommit.Hash,
	}); err != nil {
		return MergeResult{Conflicts: conflicts}, err
	}

	if deleteSrc {
		if err := d.deleteBranchLocked(src, "", true); err != nil {
			return MergeResult{Commit: mergeCommit, Conflicts: conflicts}, err
		}
	}

	return MergeResult{Commit: mergeCommit, Conflicts: conflicts}, nil
}

func (d *Database) diffsForHashes(hashes []string) ([]diff.Diff, error) {
	var out []diff.Diff
	for _, h := range hashes {
		c, err := d.commits.FetchCommit(h)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Diffs...)
	}
	return out, nil
}

package branchgraph

import (
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// CreateBranch requires name be unused, then inserts a new tip node for
// name that shares the source branch's tip commit hash and predecessor:
// the new node and the source tip become siblings under the same parent,
// whose num_children is incremented (it is now shared across branches).
// Copying the working directory itself is the caller's (database
// facade's) responsibility, since this package has no notion of a
// filesystem tree of table files.
func (g *Graph) CreateBranch(name, from string) error {
	if exists, err := g.BranchExists(name); err != nil {
		return err
	} else if exists {
		return dberrors.HistoryF("branch %q already exists", name)
	}
	tip, err := g.HeadNode(from)
	if err != nil {
		return err
	}
	newNode := Node{
		Hash:        tip.Hash,
		BranchName:  name,
		Prev:        tip.Prev,
		NumChildren: 0,
		IsHead:      true,
	}
	loc, err := g.insertNode(newNode)
	if err != nil {
		return err
	}
	if tip.Prev.Has {
		parent, err := g.nodeAt(rowcodec.RowLocation{PageNum: tip.Prev.Page, RowNum: tip.Prev.Row})
		if err != nil {
			return err
		}
		parent.NumChildren++
		if err := g.writeNode(parent); err != nil {
			return err
		}
	}
	return g.writeHead(name, loc)
}

// AppendCommit links a newly stored commit onto branch's tip, advancing
// its HEAD. Used both for ordinary commits and for revert (which records
// its reversed diffs as a forward commit, per the history-is-forward-only
// design) and for merge commits.
func (g *Graph) AppendCommit(branch, hash string) (Node, error) {
	tip, err := g.HeadNode(branch)
	if err != nil {
		return Node{}, err
	}
	next := Node{
		Hash:        hash,
		BranchName:  branch,
		Prev:        Location{Page: tip.Loc.PageNum, Row: tip.Loc.RowNum, Has: true},
		NumChildren: 0,
		IsHead:      true,
	}
	loc, err := g.insertNode(next)
	if err != nil {
		return Node{}, err
	}
	next.Loc = loc
	tip.NumChildren++
	if err := g.writeNode(tip); err != nil {
		return Node{}, err
	}
	if err := g.writeHead(branch, loc); err != nil {
		return Node{}, err
	}
	return next, nil
}

// DeleteBranch removes the HEAD row and every branch-node row tagged
// with this branch name. Callers enforce the "not main, not current"
// rule before calling this, since this package has no notion of
// "current branch" (that belongs to the per-actor state the database
// facade owns).
func (g *Graph) DeleteBranch(name string) error {
	if err := g.deleteHead(name); err != nil {
		return err
	}
	var toRemove []rowcodec.RowLocation
	err := g.nodes.Iterate(func(ri rowcodec.RowInfo) error {
		if ri.Row[1].Str() == name {
			toRemove = append(toRemove, ri.Loc)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(toRemove) == 0 {
		return nil
	}
	_, err = g.nodes.RemoveRows(toRemove)
	return err
}

// SquashChain walks branch's tip backward looking for hashLast, then
// continues back to hashFirst, requiring every node in the closed range
// [hashFirst..hashLast] to be unshared (NumChildren <= 1). On success it
// returns the nodes oldest-first; the caller folds their commits'
// diffs (internal/diff.Squash) and stores the result, then calls
// ApplySquash to retarget the graph.
func (g *Graph) SquashChain(branch, hashFirst, hashLast string) ([]Node, error) {
	tip, err := g.HeadNode(branch)
	if err != nil {
		return nil, err
	}

	cur, ok := tip, true
	for ok && cur.Hash != hashLast {
		cur, ok, err = g.PrevNode(cur)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, dberrors.HistoryF("commit %q not found on branch %q", hashLast, branch)
	}

	var chain []Node
	for {
		if cur.NumChildren > 1 {
			return nil, dberrors.HistoryF("cannot squash: commit %q is shared across branches", cur.Hash)
		}
		chain = append(chain, cur)
		if cur.Hash == hashFirst {
			break
		}
		next, hasPrev, err := g.PrevNode(cur)
		if err != nil {
			return nil, err
		}
		if !hasPrev {
			return nil, dberrors.HistoryF("commit %q not found on branch %q", hashFirst, branch)
		}
		cur = next
	}
	// chain is tip-to-root (newest-first); reverse to oldest-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ApplySquash rewrites the node that held hashLast (the tip end of a
// squashed range) so it now carries newHash and points back to the
// predecessor of hashFirst (the root end), orphaning every node strictly
// between them. last and first are the chain endpoints as returned by
// SquashChain.
func (g *Graph) ApplySquash(last, first Node, newHash string) error {
	replacement := Node{
		Hash:        newHash,
		BranchName:  last.BranchName,
		Prev:        first.Prev,
		NumChildren: last.NumChildren,
		IsHead:      last.IsHead,
		Loc:         last.Loc,
	}
	return g.writeNode(replacement)
}

// CommonAncestor walks both branches' chains back toward their roots and
// returns the nearest commit common to both, identified by commit hash
// rather than node location: a branch created from another clones its
// source tip's commit into a fresh row (same hash, different address),
// so two branches sharing history never share a node's row identity past
// the fork point, only the commit hash it carries. Placeholder root
// nodes (Hash == "") never match by hash; when no commit is shared and
// both chains bottom out at a placeholder root (every branch descends
// from main's root), that root is returned as the ancestor, so every
// commit on either side counts as made since it.
func (g *Graph) CommonAncestor(a, b Node) (Node, bool, error) {
	seen := map[string]Node{}
	if a.Hash != "" {
		seen[a.Hash] = a
	}
	rootA := a
	cur, ok := a, true
	for ok {
		var err error
		cur, ok, err = g.PrevNode(cur)
		if err != nil {
			return Node{}, false, err
		}
		if ok {
			rootA = cur
		}
		if ok && cur.Hash != "" {
			seen[cur.Hash] = cur
		}
	}
	if b.Hash != "" {
		if n, found := seen[b.Hash]; found {
			return n, true, nil
		}
	}
	rootB := b
	cur, ok = b, true
	for ok {
		var err error
		cur, ok, err = g.PrevNode(cur)
		if err != nil {
			return Node{}, false, err
		}
		if ok {
			rootB = cur
		}
		if ok && cur.Hash != "" {
			if n, found := seen[cur.Hash]; found {
				return n, true, nil
			}
		}
	}
	if rootA.Hash == "" && rootB.Hash == "" {
		return rootB, true, nil
	}
	return Node{}, false, nil
}

// HashesSince returns the commit hashes strictly after ancestor up to and
// including tip, oldest first. Used by merge to gather each side's diffs
// since the common ancestor. Matching stops on commit hash, not node
// location, since a branched-off side holds its own clone row of the
// ancestor commit rather than the same row CommonAncestor returned.
func (g *Graph) HashesSince(tip Node, ancestor Node) ([]string, error) {
	var hashes []string
	cur, ok := tip, true
	for ok {
		if ancestor.Hash != "" && cur.Hash == ancestor.Hash {
			break
		}
		if cur.Hash != "" {
			hashes = append(hashes, cur.Hash)
		}
		var err error
		cur, ok, err = g.PrevNode(cur)
		if err != nil {
			return nil, err
		}
	}
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
	return hashes, nil
}

// AppendMerged records a completed merge in the merged-branches log.
func (g *Graph) AppendMerged(m MergedBranch) error {
	_, err := g.merged.InsertRows([]rowcodec.Row{{
		rowcodec.NewString(m.BranchName, branchNameSize),
		rowcodec.NewString(m.SourceCommit, hashSize),
		rowcodec.NewString(m.DestinationCommit, hashSize),
	}})
	return err
}

// MergedBranches lists every recorded merge.
func (g *Graph) MergedBranches() ([]MergedBranch, error) {
	var out []MergedBranch
	err := g.merged.Iterate(func(ri rowcodec.RowInfo) error {
		out = append(out, MergedBranch{
			BranchName:        ri.Row[0].Str(),
			SourceCommit:      ri.Row[1].Str(),
			DestinationCommit: ri.Row[2].Str(),
		})
		return nil
	})
	return out, err
}

// BranchView renders every branch's HEAD-to-root chain merged into a
// single tree keyed by node location, so shared ancestor prefixes are
// walked (and can be rendered) once.
type BranchView struct {
	Heads map[string]rowcodec.RowLocation
	Nodes map[rowcodec.RowLocation]Node
}

// BuildBranchView walks every branch's HEAD node back to the root,
// collecting the union of nodes reachable from any HEAD.
func (g *Graph) BuildBranchView() (*BranchView, error) {
	names, err := g.BranchNames()
	if err != nil {
		return nil, err
	}
	view := &BranchView{Heads: map[string]rowcodec.RowLocation{}, Nodes: map[rowcodec.RowLocation]Node{}}
	for _, name := range names {
		head, err := g.HeadNode(name)
		if err != nil {
			return nil, err
		}
		view.Heads[name] = head.Loc
		cur, ok := head, true
		for ok {
			if _, seen := view.Nodes[cur.Loc]; seen {
				break
			}
			view.Nodes[cur.Loc] = cur
			cur, ok, err = g.PrevNode(cur)
			if err != nil {
				return nil, err
			}
		}
	}
	return view, nil
}

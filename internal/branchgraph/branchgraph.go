// Package branchgraph implements the persistent DAG of branch nodes, the
// per-branch HEAD table, and the merged-branches log described in the
// branch graph design: branch creation, commit linking, squash, delete,
// and the log/branch_view traversals. Each node places one commit into a
// branch's linear history; a node shared by more than one branch (a
// num_children > 1 predecessor) cannot be the target of a squash.
package branchgraph

import (
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

const (
	nodesTableName  = "branches"
	headsTableName  = "branch_heads"
	mergedTableName = "merged_branches"

	hashSize       = 30
	branchNameSize = 60

	// sentinelLoc marks "no predecessor" in the prev_page/prev_row fields.
	sentinelLoc = -1
)

// Location addresses a branch node, or is the zero-value sentinel meaning
// "no predecessor" (the root of a branch's chain).
type Location struct {
	Page uint32
	Row  uint16
	Has  bool
}

// Node is one row of the branch-node table, decoded. Hash == "" marks the
// placeholder root node of a branch that has not yet received a commit;
// it is never yielded by Log as a real commit.
type Node struct {
	Hash        string
	BranchName  string
	Prev        Location
	NumChildren int32
	IsHead      bool
	Loc         rowcodec.RowLocation
}

// MergedBranch is one row of the merged-branches log: purely informational
// record of a completed merge.
type MergedBranch struct {
	BranchName        string
	SourceCommit      string
	DestinationCommit string
}

// Graph owns the three tables backing the branch DAG: branch nodes,
// per-branch HEAD pointers, and the merged-branches log.
type Graph struct {
	nodes  *table.Table
	heads  *table.Table
	merged *table.Table
}

func nodeSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "commit_hash", Type: coltype.String(hashSize)},
		{Name: "branch_name", Type: coltype.String(branchNameSize)},
		{Name: "prev_page", Type: coltype.I32()},
		{Name: "prev_row", Type: coltype.I32()},
		{Name: "num_children", Type: coltype.I32()},
		{Name: "is_head", Type: coltype.Bool()},
	}
}

func headSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "branch_name", Type: coltype.String(branchNameSize)},
		{Name: "page", Type: coltype.I32()},
		{Name: "row", Type: coltype.I32()},
	}
}

func mergedSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "branch_name", Type: coltype.String(branchNameSize)},
		{Name: "source_commit", Type: coltype.String(hashSize)},
		{Name: "destination_commit", Type: coltype.String(hashSize)},
	}
}

// Create initializes a brand new branch graph rooted at dir, with a
// single placeholder root node for mainBranch (no commit yet) as its
// HEAD.
func Create(dir, mainBranch string) (*Graph, error) {
	nodes, err := table.Create(nodesTableName, nodeSchema(), dir)
	if err != nil {
		return nil, err
	}
	heads, err := table.Create(headsTableName, headSchema(), dir)
	if err != nil {
		return nil, err
	}
	merged, err := table.Create(mergedTableName, mergedSchema(), dir)
	if err != nil {
		return nil, err
	}
	g := &Graph{nodes: nodes, heads: heads, merged: merged}
	root := Node{Hash: "", BranchName: mainBranch, Prev: Location{}, NumChildren: 0, IsHead: true}
	loc, err := g.insertNode(root)
	if err != nil {
		return nil, err
	}
	if err := g.writeHead(mainBranch, loc); err != nil {
		return nil, err
	}
	return g, nil
}

// Open loads an existing branch graph rooted at dir.
func Open(dir string) (*Graph, error) {
	nodes, err := table.Open(nodesTableName, dir)
	if err != nil {
		return nil, err
	}
	heads, err := table.Open(headsTableName, dir)
	if err != nil {
		return nil, err
	}
	merged, err := table.Open(mergedTableName, dir)
	if err != nil {
		return nil, err
	}
	return &Graph{nodes: nodes, heads: heads, merged: merged}, nil
}

func locSentinel() (int32, int32) { return sentinelLoc, sentinelLoc }

func encodeLoc(l Location) (int32, int32) {
	if !l.Has {
		p, r := locSentinel()
		return p, r
	}
	return int32(l.Page), int32(l.Row)
}

func decodeLoc(page, row int32) Location {
	if page == sentinelLoc && row == sentinelLoc {
		return Location{}
	}
	return Location{Page: uint32(page), Row: uint16(row), Has: true}
}

func nodeToRow(n Node) rowcodec.Row {
	pp, pr := encodeLoc(n.Prev)
	return rowcodec.Row{
		rowcodec.NewString(n.Hash, hashSize),
		rowcodec.NewString(n.BranchName, branchNameSize),
		rowcodec.NewI32(pp),
		rowcodec.NewI32(pr),
		rowcodec.NewI32(n.NumChildren),
		rowcodec.NewBool(n.IsHead),
	}
}

func rowToNode(ri rowcodec.RowInfo) Node {
	r := ri.Row
	return Node{
		Hash:        r[0].Str(),
		BranchName:  r[1].Str(),
		Prev:        decodeLoc(r[2].I32(), r[3].I32()),
		NumChildren: r[4].I32(),
		IsHead:      r[5].Bool(),
		Loc:         ri.Loc,
	}
}

func (g *Graph) insertNode(n Node) (rowcodec.RowLocation, error) {
	infos, err := g.nodes.InsertRows([]rowcodec.Row{nodeToRow(n)})
	if err != nil {
		return rowcodec.RowLocation{}, err
	}
	return infos[0].Loc, nil
}

func (g *Graph) writeNode(n Node) error {
	_, _, err := g.nodes.RewriteRows([]rowcodec.RowInfo{{Row: nodeToRow(n), Loc: n.Loc}})
	return err
}

func (g *Graph) nodeAt(loc rowcodec.RowLocation) (Node, error) {
	row, err := g.nodes.GetRow(loc)
	if err != nil {
		return Node{}, err
	}
	return rowToNode(rowcodec.RowInfo{Row: row, Loc: loc}), nil
}

// PrevNode returns the predecessor of n, if any.
func (g *Graph) PrevNode(n Node) (Node, bool, error) {
	if !n.Prev.Has {
		return Node{}, false, nil
	}
	prev, err := g.nodeAt(rowcodec.RowLocation{PageNum: n.Prev.Page, RowNum: n.Prev.Row})
	if err != nil {
		return Node{}, false, err
	}
	return prev, true, nil
}

// BranchNames lists every branch with a HEAD row.
func (g *Graph) BranchNames() ([]string, error) {
	var names []string
	err := g.heads.Iterate(func(ri rowcodec.RowInfo) error {
		names = append(names, ri.Row[0].Str())
		return nil
	})
	return names, err
}

// Log returns the tip-to-root chain of real commits on branch (the
// placeholder root, if reached, is excluded).
func (g *Graph) Log(branch string) ([]Node, error) {
	head, err := g.HeadNode(branch)
	if err != nil {
		return nil, err
	}
	var out []Node
	cur, ok := head, true
	for ok {
		if cur.Hash != "" {
			out = append(out, cur)
		}
		cur, ok, err = g.PrevNode(cur)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

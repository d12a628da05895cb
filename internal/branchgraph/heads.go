package branchgraph

import (
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// headRow locates the HEAD table's row for branch, if any.
func (g *Graph) headRow(branch string) (rowcodec.RowInfo, bool, error) {
	var found rowcodec.RowInfo
	var ok bool
	err := g.heads.Iterate(func(ri rowcodec.RowInfo) error {
		if ri.Row[0].Str() == branch {
			found, ok = ri, true
		}
		return nil
	})
	return found, ok, err
}

func (g *Graph) writeHead(branch string, loc rowcodec.RowLocation) error {
	existing, ok, err := g.headRow(branch)
	if err != nil {
		return err
	}
	row := rowcodec.Row{
		rowcodec.NewString(branch, branchNameSize),
		rowcodec.NewI32(int32(loc.PageNum)),
		rowcodec.NewI32(int32(loc.RowNum)),
	}
	if ok {
		_, _, err := g.heads.RewriteRows([]rowcodec.RowInfo{{Row: row, Loc: existing.Loc}})
		return err
	}
	_, err = g.heads.InsertRows([]rowcodec.Row{row})
	return err
}

// HeadNode returns the tip branch node for branch.
func (g *Graph) HeadNode(branch string) (Node, error) {
	ri, ok, err := g.headRow(branch)
	if err != nil {
		return Node{}, err
	}
	if !ok {
		return Node{}, dberrors.HistoryF("branch %q does not exist", branch)
	}
	loc := rowcodec.RowLocation{
		PageNum: uint32(ri.Row[1].I32()),
		RowNum:  uint16(ri.Row[2].I32()),
	}
	return g.nodeAt(loc)
}

// deleteHead removes the HEAD row for branch.
func (g *Graph) deleteHead(branch string) error {
	ri, ok, err := g.headRow(branch)
	if err != nil {
		return err
	}
	if !ok {
		return dberrors.HistoryF("branch %q does not exist", branch)
	}
	_, err = g.heads.RemoveRows([]rowcodec.RowLocation{ri.Loc})
	return err
}

// BranchExists reports whether branch has a HEAD row.
func (g *Graph) BranchExists(branch string) (bool, error) {
	_, ok, err := g.headRow(branch)
	return ok, err
}

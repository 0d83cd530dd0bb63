package graph

import (
	"context"

	"github.com/fossilgo/fossilgo/internal/bag"
)

// PathNode is one step of a computed path between two commits, the
// arena-indexed replacement for the legacy PathNode linked list (§9).
// IsParent records the direction of the edge leading into this node from
// the previous one in the slice (true if this node is the previous
// node's parent).
type PathNode struct {
	Rid      int64
	IsParent bool
}

type pathEdge struct {
	from, to int64
	isParent bool
}

// ShortestPath computes the shortest chain of plink edges between a and
// b using bidirectional BFS (§4.4), expanding both parent and child
// edges unless primaryOnly restricts to isprim=1 edges. Ties are broken
// by earliest insertion into the frontier (earliest rid visited first,
// matching §8's "earliest rid wins"). The returned slice runs from a to
// b inclusive, each entry after the first carrying the edge direction
// that reached it.
func ShortestPath(ctx context.Context, db DB, a, b int64, primaryOnly bool) ([]PathNode, error) {
	if a == b {
		return []PathNode{{Rid: a}}, nil
	}

	predFrom := map[int64]pathEdge{a: {}}
	predTo := map[int64]pathEdge{b: {}}
	seenFrom := bag.New(64)
	seenTo := bag.New(64)
	seenFrom.Insert(a)
	seenTo.Insert(b)
	frontierFrom := []int64{a}
	frontierTo := []int64{b}

	meeting := int64(-1)
	for len(frontierFrom) > 0 && len(frontierTo) > 0 && meeting == -1 {
		var err error
		frontierFrom, meeting, err = expandFrontier(ctx, db, frontierFrom, predFrom, seenFrom, seenTo, primaryOnly)
		if err != nil {
			return nil, err
		}
		if meeting != -1 {
			break
		}
		frontierTo, meeting, err = expandFrontier(ctx, db, frontierTo, predTo, seenTo, seenFrom, primaryOnly)
		if err != nil {
			return nil, err
		}
	}
	if meeting == -1 {
		return nil, NoCommonAncestor
	}

	// Walk predFrom from meeting back to a.
	var left []PathNode
	for cur := meeting; ; {
		left = append(left, PathNode{Rid: cur})
		e, ok := predFrom[cur]
		if !ok || e.from == 0 {
			break
		}
		left[len(left)-1].IsParent = e.isParent
		cur = e.from
	}
	reverse(left)

	// Walk predTo from meeting forward to b, recording the edge direction
	// as seen from the meeting side (inverted, since predTo direction
	// points away from b toward meeting).
	var right []PathNode
	for cur := meeting; ; {
		e, ok := predTo[cur]
		if !ok || e.from == 0 {
			break
		}
		right = append(right, PathNode{Rid: e.from, IsParent: !e.isParent})
		cur = e.from
	}

	out := append(left, right...)
	return out, nil
}

func expandFrontier(ctx context.Context, db DB, frontier []int64, pred map[int64]pathEdge, seenThis, seenOther *bag.Bag, primaryOnly bool) ([]int64, int64, error) {
	var next []int64
	for _, node := range frontier {
		neighbors, err := neighborsOf(ctx, db, node, primaryOnly)
		if err != nil {
			return nil, -1, err
		}
		for _, nb := range neighbors {
			if !seenThis.Insert(nb.to) {
				continue
			}
			pred[nb.to] = pathEdge{from: node, to: nb.to, isParent: nb.isParent}
			if seenOther.Find(nb.to) {
				return next, nb.to, nil
			}
			next = append(next, nb.to)
		}
	}
	return next, -1, nil
}

type neighbor struct {
	to       int64
	isParent bool // true if `to` is the parent of `from` (the expanding node)
}

func neighborsOf(ctx context.Context, db DB, rid int64, primaryOnly bool) ([]neighbor, error) {
	var out []neighbor

	prows, err := db.QueryContext(ctx, `SELECT pid, isprim FROM plink WHERE cid = ?`, rid)
	if err != nil {
		return nil, err
	}
	for prows.Next() {
		var pid int64
		var isprim bool
		if err := prows.Scan(&pid, &isprim); err != nil {
			prows.Close()
			return nil, err
		}
		if primaryOnly && !isprim {
			continue
		}
		out = append(out, neighbor{to: pid, isParent: true})
	}
	if err := prows.Err(); err != nil {
		prows.Close()
		return nil, err
	}
	prows.Close()

	crows, err := db.QueryContext(ctx, `SELECT cid, isprim FROM plink WHERE pid = ?`, rid)
	if err != nil {
		return nil, err
	}
	for crows.Next() {
		var cid int64
		var isprim bool
		if err := crows.Scan(&cid, &isprim); err != nil {
			crows.Close()
			return nil, err
		}
		if primaryOnly && !isprim {
			continue
		}
		out = append(out, neighbor{to: cid, isParent: false})
	}
	if err := crows.Err(); err != nil {
		crows.Close()
		return nil, err
	}
	crows.Close()

	return out, nil
}

func reverse(nodes []PathNode) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

// RenameEvent records a filename change discovered while threading mlink
// rows along a computed path (§4.4 "File name changes along a path").
type RenameEvent struct {
	AtRid    int64
	OldName  string
	NewName  string
}

// RenamesAlongPath walks each edge of path and, for every mlink row on
// that edge carrying both an old and new filename id, appends a
// RenameEvent. Used by blame/annotate and diff-across-rename.
func RenamesAlongPath(ctx context.Context, db DB, path []PathNode) ([]RenameEvent, error) {
	var out []RenameEvent
	for i := 1; i < len(path); i++ {
		var commitRid int64
		if path[i].IsParent {
			commitRid = path[i-1].Rid // the child is the commit carrying the mlink rows
		} else {
			commitRid = path[i].Rid
		}
		rows, err := db.QueryContext(ctx, `
			SELECT fn_new.name, fn_old.name
			FROM mlink
			JOIN filename fn_new ON fn_new.fnid = mlink.fnid
			JOIN filename fn_old ON fn_old.fnid = mlink.pfnid
			WHERE mlink.mid = ? AND mlink.pfnid != 0 AND mlink.fnid != mlink.pfnid`, commitRid)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var newName, oldName string
			if err := rows.Scan(&newName, &oldName); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, RenameEvent{AtRid: commitRid, OldName: oldName, NewName: newName})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

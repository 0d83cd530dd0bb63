package graph

import (
	"context"
	"sort"

	"github.com/fossilgo/fossilgo/internal/bag"
)

// label identifies which side of a 3-way merge a work-queue node was
// reached from, per §4.4 "Pivot".
type label int

const (
	labelNone label = iota
	labelPrimary
	labelSecondary
	labelBoth
)

type pivotQueueItem struct {
	rid   int64
	mtime float64
}

// Pivot finds the most recent common ancestor of a primary commit and one
// or more secondary commits by a Dijkstra-like walk over plink in
// descending-mtime order (§4.4): the work queue pops the highest-mtime
// unvisited node, labels it by which seed set(s) reached it, and expands
// its parent edges (restricted to isprim=1 when ignoreMerges is set). A
// node becomes the pivot the moment both a primary-labeled and a
// secondary-labeled predecessor have reached it. Ties at equal mtime are
// broken by ascending rid (lower rid = earlier insertion), per the Open
// Question decision recorded in SPEC_FULL.md §6.3.
func Pivot(ctx context.Context, db DB, primary int64, secondary []int64, ignoreMerges bool) (int64, error) {
	labels := make(map[int64]label)
	mtimes := make(map[int64]float64)
	visited := bag.New(64)

	var queue []pivotQueueItem

	seed := func(rid int64, lbl label) error {
		mt, err := commitMtime(ctx, db, rid)
		if err != nil {
			return err
		}
		labels[rid] = lbl
		mtimes[rid] = mt
		queue = append(queue, pivotQueueItem{rid: rid, mtime: mt})
		return nil
	}
	if err := seed(primary, labelPrimary); err != nil {
		return 0, err
	}
	for _, s := range secondary {
		if existing, ok := labels[s]; ok && existing == labelPrimary {
			return s, nil // seed itself is shared
		}
		if err := seed(s, labelSecondary); err != nil {
			return 0, err
		}
	}

	for len(queue) > 0 {
		sort.Slice(queue, func(i, j int) bool {
			if queue[i].mtime != queue[j].mtime {
				return queue[i].mtime > queue[j].mtime // descending mtime
			}
			return queue[i].rid < queue[j].rid // ascending rid tie-break
		})
		top := queue[0]
		queue = queue[1:]
		if !visited.Insert(top.rid) {
			continue
		}

		if labels[top.rid] == labelBoth {
			return top.rid, nil
		}

		parents, err := parentEdges(ctx, db, top.rid, ignoreMerges)
		if err != nil {
			return 0, err
		}
		for _, pid := range parents {
			mt, ok := mtimes[pid]
			if !ok {
				mt, err = commitMtime(ctx, db, pid)
				if err != nil {
					return 0, err
				}
				mtimes[pid] = mt
				queue = append(queue, pivotQueueItem{rid: pid, mtime: mt})
			}
			newLabel := mergeLabel(labels[pid], labels[top.rid])
			if newLabel != labels[pid] {
				labels[pid] = newLabel
				if newLabel == labelBoth {
					return pid, nil
				}
			}
		}
	}
	return 0, NoCommonAncestor
}

func mergeLabel(existing, incoming label) label {
	if existing == labelNone {
		return incoming
	}
	if existing == incoming {
		return existing
	}
	return labelBoth
}

func commitMtime(ctx context.Context, db DB, rid int64) (float64, error) {
	var mtime float64
	row := db.QueryRowContext(ctx, `SELECT mtime FROM event WHERE objid = ?`, rid)
	if err := row.Scan(&mtime); err != nil {
		return 0, err
	}
	return mtime, nil
}

func parentEdges(ctx context.Context, db DB, cid int64, primaryOnly bool) ([]int64, error) {
	query := `SELECT pid FROM plink WHERE cid = ?`
	if primaryOnly {
		query += ` AND isprim = 1`
	}
	rows, err := db.QueryContext(ctx, query, cid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, rows.Err()
}

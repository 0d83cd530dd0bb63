// Package graph implements the ancestor/descendant walks, leaf
// maintenance, shortest-path, pivot, and rename-threading algorithms that
// share a common BFS/DFS scaffold over plink (§4.4). Per §9's redesign
// guidance it replaces the legacy row-pointer linked lists (PathNode,
// BisectNode) with an arena of index-addressed nodes and an integer bag
// for the seen-set.
package graph

import (
	"context"
	"database/sql"

	"github.com/fossilgo/fossilgo/internal/bag"
	"github.com/fossilgo/fossilgo/internal/errs"
)

// DB is the subset of *repo.Tx (or *sql.DB) graph needs. It is expressed
// structurally so this package never imports internal/repo, which would
// create a cycle (repo will eventually call into graph for rebuild).
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TrunkBranch is the implicit branch name a commit belongs to when no
// propagating "branch" tag is in effect for it.
const TrunkBranch = "trunk"

// lookupTagID returns the tagid for name, or ok=false if no such tag has
// ever been created (meaning no artifact has ever carried it).
func lookupTagID(ctx context.Context, db DB, name string) (int64, bool, error) {
	var tagid int64
	row := db.QueryRowContext(ctx, `SELECT tagid FROM tag WHERE tagname = ?`, name)
	switch err := row.Scan(&tagid); err {
	case nil:
		return tagid, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, err
	}
}

func lookupTagXref(ctx context.Context, db DB, tagid, rid int64) (tagtype int, value string, ok bool, err error) {
	var v sql.NullString
	row := db.QueryRowContext(ctx, `SELECT tagtype, value FROM tagxref WHERE tagid = ? AND rid = ?`, tagid, rid)
	switch scanErr := row.Scan(&tagtype, &v); scanErr {
	case nil:
		return tagtype, v.String, true, nil
	case sql.ErrNoRows:
		return 0, "", false, nil
	default:
		return 0, "", false, scanErr
	}
}

func primaryParent(ctx context.Context, db DB, cid int64) (pid int64, ok bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT pid FROM plink WHERE cid = ? AND isprim = 1`, cid)
	switch scanErr := row.Scan(&pid); scanErr {
	case nil:
		return pid, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, scanErr
	}
}

// EffectiveTag computes the value of tagname in effect at rid by walking
// primary-parent ancestry (§4.2 "Tag propagation"). A tagtype=2
// (propagating) row at or above rid supplies the value; a tagtype=0
// (cancel) row encountered first along the walk stops propagation
// entirely. A tagtype=1 (single-commit) row only applies when found
// exactly at rid itself — per the Open Question decision recorded in
// SPEC_FULL.md §6.2, a single-commit tag on an intermediate ancestor
// neither blocks nor substitutes for an outer propagating tag.
func EffectiveTag(ctx context.Context, db DB, rid int64, tagname string) (string, bool, error) {
	tagid, ok, err := lookupTagID(ctx, db, tagname)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	seen := bag.New(16)
	cur := rid
	for {
		if !seen.Insert(cur) {
			return "", false, nil // cycle guard; plink must be acyclic in primary edges
		}
		tagtype, value, found, err := lookupTagXref(ctx, db, tagid, cur)
		if err != nil {
			return "", false, err
		}
		if found {
			switch tagtype {
			case 0:
				return "", false, nil
			case 1:
				if cur == rid {
					return value, true, nil
				}
			case 2:
				return value, true, nil
			}
		}
		parent, hasParent, err := primaryParent(ctx, db, cur)
		if err != nil {
			return "", false, err
		}
		if !hasParent {
			return "", false, nil
		}
		cur = parent
	}
}

// BranchOf returns the branch name in effect at rid: the value of its
// effective propagating "branch" tag, or TrunkBranch if none is set.
func BranchOf(ctx context.Context, db DB, rid int64) (string, error) {
	value, found, err := EffectiveTag(ctx, db, rid, "branch")
	if err != nil {
		return "", err
	}
	if !found {
		return TrunkBranch, nil
	}
	return value, nil
}

// Ancestors enumerates every commit transitively reachable from rid via
// parent edges (plink.cid = current, following pid). primaryOnly
// restricts the walk to primary-parent edges only.
func Ancestors(ctx context.Context, db DB, rid int64, primaryOnly bool) ([]int64, error) {
	return walk(ctx, db, rid, primaryOnly, false)
}

// Descendants enumerates every commit transitively reachable from rid via
// child edges (plink.pid = current, following cid).
func Descendants(ctx context.Context, db DB, rid int64, primaryOnly bool) ([]int64, error) {
	return walk(ctx, db, rid, primaryOnly, true)
}

func walk(ctx context.Context, db DB, start int64, primaryOnly, forward bool) ([]int64, error) {
	seen := bag.New(64)
	frontier := []int64{start}
	seen.Insert(start)
	var out []int64

	for len(frontier) > 0 {
		var next []int64
		for _, node := range frontier {
			var query string
			if forward {
				query = `SELECT cid, isprim FROM plink WHERE pid = ?`
			} else {
				query = `SELECT pid, isprim FROM plink WHERE cid = ?`
			}
			rows, err := db.QueryContext(ctx, query, node)
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var other int64
				var isprim bool
				if err := rows.Scan(&other, &isprim); err != nil {
					rows.Close()
					return nil, err
				}
				if primaryOnly && !isprim {
					continue
				}
				if seen.Insert(other) {
					out = append(out, other)
					next = append(next, other)
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
		frontier = next
	}
	return out, nil
}

// NoCommonAncestor is returned by Pivot when the primary and secondary
// rid sets share no common ancestor.
var NoCommonAncestor = errs.New(errs.CategoryNotFound, "no common ancestor")

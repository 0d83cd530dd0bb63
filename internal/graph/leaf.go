package graph

import (
	"context"
	"database/sql"
)

// LeafCheck recomputes whether rid belongs to the Leaf set: it has no
// child commit sharing its branch (§3 Invariant 4, §4.4 "Leaf
// maintenance"). The leaf row is inserted or removed to match.
func LeafCheck(ctx context.Context, db DB, rid int64) error {
	branch, err := BranchOf(ctx, db, rid)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `SELECT cid FROM plink WHERE pid = ?`, rid)
	if err != nil {
		return err
	}
	isLeaf := true
	var children []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		children = append(children, cid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, cid := range children {
		cb, err := BranchOf(ctx, db, cid)
		if err != nil {
			return err
		}
		if cb == branch {
			isLeaf = false
			break
		}
	}

	if isLeaf {
		_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO leaf(rid) VALUES (?)`, rid)
	} else {
		_, err = db.ExecContext(ctx, `DELETE FROM leaf WHERE rid = ?`, rid)
	}
	return err
}

// LeafRebuild recomputes the entire Leaf set from scratch over every
// commit event, per §3 Invariant 4. Used by the rebuild operation and by
// `scrub`.
func LeafRebuild(ctx context.Context, db DB) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM leaf`); err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, `SELECT objid FROM event WHERE type = 'ci'`)
	if err != nil {
		return err
	}
	var commits []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return err
		}
		commits = append(commits, rid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, rid := range commits {
		if err := LeafCheck(ctx, db, rid); err != nil {
			return err
		}
	}
	return nil
}

// IsLeaf reports whether rid is currently recorded in the Leaf set.
func IsLeaf(ctx context.Context, db DB, rid int64) (bool, error) {
	var x int64
	row := db.QueryRowContext(ctx, `SELECT rid FROM leaf WHERE rid = ?`, rid)
	switch err := row.Scan(&x); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, err
	}
}

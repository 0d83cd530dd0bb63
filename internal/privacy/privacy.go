// Package privacy implements the Private set and the publish/undelta
// visibility rules (§4.1 invariant 6, §4.7 "Publish"): which artifacts
// a peer is allowed to see, and the atomic rewrite that moves one from
// private to public.
package privacy

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
)

// DB is the subset of *repo.Tx this package needs, expressed
// structurally so internal/privacy never imports internal/repo.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsPrivate reports whether rid currently carries the Private flag.
func IsPrivate(ctx context.Context, db DB, rid int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM private WHERE rid = ?`, rid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(err, errs.CategoryInternal, "check private flag")
	}
	return true, nil
}

// MarkPrivate inserts rid into the Private set, idempotently. Used both
// directly (a caller-requested private commit) and by the moderation
// queue, which marks an artifact private the moment it is queued for
// approval.
func MarkPrivate(ctx context.Context, db DB, rid int64) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO private(rid) VALUES (?)`, rid)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "mark private")
	}
	return nil
}

// clearPrivate removes rid from the Private set.
func clearPrivate(ctx context.Context, db DB, rid int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM private WHERE rid = ?`, rid)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "clear private flag")
	}
	return nil
}

// Publish moves rids (and, unless only is true, their closure under
// "same check-in"/"same ticket" per §4.7) from Private to public. Before
// clearing a rid's Private flag this undeltas every blob currently
// delta-encoded against it, restoring Invariant 6 ("no public blob is a
// delta whose srcid is Private") regardless of how a pre-existing
// violation arose — the same defensive posture spec.md's worked
// example (publish({P1}) rewriting P2 full before clearing P1) takes.
func Publish(ctx context.Context, db DB, store blob.Store, rids []int64, only bool) error {
	targets := rids
	if !only {
		closure, err := closeOverRelated(ctx, db, rids)
		if err != nil {
			return err
		}
		targets = closure
	}

	for _, rid := range targets {
		private, err := IsPrivate(ctx, db, rid)
		if err != nil {
			return err
		}
		if !private {
			continue
		}
		if err := undeltaChildren(ctx, db, store, rid); err != nil {
			return err
		}
		if err := clearPrivate(ctx, db, rid); err != nil {
			return err
		}
	}
	return nil
}

// undeltaChildren rewrites every blob currently stored as a delta
// against rid into full-bytes form, so that removing rid from Private
// never leaves a public blob pointing at a (former) private baseline.
func undeltaChildren(ctx context.Context, db DB, store blob.Store, rid int64) error {
	rows, err := db.QueryContext(ctx, `SELECT rid FROM delta WHERE srcid = ?`, rid)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "list delta children")
	}
	defer rows.Close()

	var children []int64
	for rows.Next() {
		var child int64
		if err := rows.Scan(&child); err != nil {
			return err
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, child := range children {
		if err := store.Undelta(ctx, db, child); err != nil {
			return err
		}
	}
	return nil
}

// closeOverRelated expands seeds to include artifacts sharing the same
// check-in (via tagxref, which links a control artifact to the rid it
// tags) or the same ticket (via modreq's tktid column), so that
// publishing a commit also publishes the tag/attachment artifacts that
// travel with it, the way spec.md's "closed under same check-in/same
// ticket" describes.
func closeOverRelated(ctx context.Context, db DB, seeds []int64) ([]int64, error) {
	seen := make(map[int64]bool, len(seeds))
	var queue []int64
	for _, rid := range seeds {
		if !seen[rid] {
			seen[rid] = true
			queue = append(queue, rid)
		}
	}

	for i := 0; i < len(queue); i++ {
		rid := queue[i]

		related, err := relatedByTag(ctx, db, rid)
		if err != nil {
			return nil, err
		}
		related2, err := relatedByTicket(ctx, db, rid)
		if err != nil {
			return nil, err
		}
		related = append(related, related2...)

		for _, r := range related {
			if !seen[r] {
				seen[r] = true
				queue = append(queue, r)
			}
		}
	}
	return queue, nil
}

func relatedByTag(ctx context.Context, db DB, rid int64) ([]int64, error) {
	var out []int64

	// Control artifacts (srcid) that tagged rid travel with it.
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT srcid FROM tagxref WHERE rid = ? AND srcid IS NOT NULL`, rid)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "related by tag (as target)")
	}
	if err := scanInto(rows, &out); err != nil {
		return nil, err
	}

	// The artifacts rid (as a control artifact) tags travel with it too.
	rows, err = db.QueryContext(ctx, `SELECT DISTINCT rid FROM tagxref WHERE srcid = ?`, rid)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "related by tag (as source)")
	}
	if err := scanInto(rows, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func relatedByTicket(ctx context.Context, db DB, rid int64) ([]int64, error) {
	var tktid string
	err := db.QueryRowContext(ctx, `SELECT tktid FROM modreq WHERE objid = ? AND tktid IS NOT NULL`, rid).Scan(&tktid)
	if errors.Is(err, sql.ErrNoRows) || tktid == "" {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "lookup ticket id")
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT objid FROM modreq WHERE tktid = ?`, tktid)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "related by ticket")
	}
	var out []int64
	if err := scanInto(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanInto(rows *sql.Rows, out *[]int64) error {
	defer rows.Close()
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return err
		}
		*out = append(*out, v)
	}
	return rows.Err()
}

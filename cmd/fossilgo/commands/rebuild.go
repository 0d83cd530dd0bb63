package commands

import (
	"context"
	"database/sql"

	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/metrics"
	"github.com/fossilgo/fossilgo/internal/notify"
	"github.com/fossilgo/fossilgo/internal/privacy"
	"github.com/fossilgo/fossilgo/internal/repo"
	"github.com/fossilgo/fossilgo/internal/xref"
)

// RebuildCmd implements `fossilgo rebuild`: recompute every derived
// table from Blob/Delta content alone (§3 "Derived rows ... are
// deterministically rebuildable").
type RebuildCmd struct{}

func (c *RebuildCmd) Run(g *Global, root *Root) error {
	r, cfg, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()
	n, err := RunRebuild(ctx, r, NewNotifierFromConfig(cfg))
	if err != nil {
		return err
	}
	g.Logger.Info("rebuild complete", "rids", n)
	return nil
}

// RunRebuild purges any blob still naming a shunned hash (§3 "Shun:
// ... deleted on rebuild"), then recomputes every derived table over
// every remaining non-phantom rid in ascending order, all inside a
// single transaction so the verifier sees the rebuilt rows before they
// are made durable. Also invoked after a clone/pull/sync round
// completes, since the sync engine's Client only ingests content-
// addressed bytes and leaves cross-referencing to this explicit pass,
// mirroring how `fossil rebuild` is the authoritative way to
// reconstruct derived state after any bulk content change. notifier may
// be nil; a nil *notify.Publisher is never wrapped into the xref/
// privacy Notifier interfaces, so a disabled notify config stays a true
// no-op rather than a nil-pointer-in-an-interface trap.
func RunRebuild(ctx context.Context, r *repo.Repo, notifier *notify.Publisher) (int, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return 0, err
	}

	var shunNotifier privacy.Notifier
	var xrefNotifier xref.Notifier
	if notifier != nil {
		shunNotifier, xrefNotifier = notifier, notifier
	}

	if _, err := privacy.PurgeShunned(ctx, tx, r.Store, shunNotifier); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	rids, err := allRids(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	builder := xref.New(r.Store, metrics.NoopRecorder{}).WithNotifier(xrefNotifier)
	if err := builder.Rebuild(ctx, tx, rids); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rids), nil
}

// rebuildDB is the subset of *repo.Tx allRids needs.
type rebuildDB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func allRids(ctx context.Context, db rebuildDB) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT rid FROM blob ORDER BY rid ASC`)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "list rids for rebuild")
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		out = append(out, rid)
	}
	return out, rows.Err()
}

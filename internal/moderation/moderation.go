// Package moderation implements the modreq queue (§4.7): an inbound
// artifact from a user lacking the required capability is held as
// Private and pending until a moderator approves or disapproves it.
package moderation

import (
	"context"
	"database/sql"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/notify"
	"github.com/fossilgo/fossilgo/internal/privacy"
	"github.com/fossilgo/fossilgo/internal/xref"
)

// Notifier publishes a best-effort repository event; see xref.Notifier.
type Notifier interface {
	PublishBestEffort(ctx context.Context, kind notify.EventKind, artifactUUID, detail string)
}

// DB is the subset of *repo.Tx this package needs, expressed
// structurally so internal/moderation never imports internal/repo.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queue holds the dependencies Approve needs to re-run the cross-
// reference builder once an artifact clears moderation.
type Queue struct {
	store    blob.Store
	builder  *xref.Builder
	notifier Notifier
}

// New constructs a Queue over store and builder.
func New(store blob.Store, builder *xref.Builder) *Queue {
	return &Queue{store: store, builder: builder}
}

// WithNotifier arms the Queue to publish a moderation_decided event
// (best-effort) each time Approve or Disapprove resolves a request.
func (q *Queue) WithNotifier(n Notifier) *Queue {
	q.notifier = n
	return q
}

// Request enqueues objid for moderator review and marks it Private, per
// §4.7: "the xref builder inserts a modreq row and also marks the blob
// Private." attachRid and tktid are optional correlation fields (an
// attachment's target artifact, or a ticket id); pass 0 / "" when not
// applicable.
func (q *Queue) Request(ctx context.Context, db DB, objid, attachRid int64, tktid string) error {
	var attachArg any
	if attachRid != 0 {
		attachArg = attachRid
	}
	var tktArg any
	if tktid != "" {
		tktArg = tktid
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO modreq(objid, attachrid, tktid) VALUES (?, ?, ?)
		ON CONFLICT(objid) DO UPDATE SET attachrid = excluded.attachrid, tktid = excluded.tktid`,
		objid, attachArg, tktArg)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "enqueue moderation request")
	}
	return privacy.MarkPrivate(ctx, db, objid)
}

// Approve removes objid from the moderation queue, clears its Private
// flag, and re-runs the cross-reference builder so its derived rows
// appear — exactly the sequence §4.7 describes ("Approving an item
// removes it from both tables and re-runs xref so derived rows
// appear").
func (q *Queue) Approve(ctx context.Context, db DB, objid int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM modreq WHERE objid = ?`, objid); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "dequeue moderation request")
	}

	private, err := privacy.IsPrivate(ctx, db, objid)
	if err != nil {
		return err
	}
	if private {
		if err := privacy.Publish(ctx, db, q.store, []int64{objid}, true); err != nil {
			return err
		}
	}

	content, err := q.store.Get(ctx, db, objid)
	if err != nil {
		return err
	}
	var uuid string
	if err := q.builder.Build(ctx, db, objid, uuid, content); err != nil {
		return err
	}
	if q.notifier != nil {
		q.notifier.PublishBestEffort(ctx, notify.EventModerationDecided, lookupUUID(ctx, db, objid), "approved")
	}
	return nil
}

// lookupUUID resolves rid's uuid for notification purposes; an error
// (e.g. the row is already gone) degrades to an empty detail rather
// than failing the moderation decision it accompanies.
func lookupUUID(ctx context.Context, db DB, rid int64) string {
	var uuid string
	if err := db.QueryRowContext(ctx, `SELECT uuid FROM blob WHERE rid = ?`, rid).Scan(&uuid); err != nil {
		return ""
	}
	return uuid
}

// Disapprove deletes objid's blob and every derived row it produced,
// per §4.7: "Disapproving an item deletes the blob and all derived
// rows, and recurses through delta children: any public artifact
// stored as a delta against a disapproved Private blob is first
// undelta'd, then the Private blob is removed."
func (q *Queue) Disapprove(ctx context.Context, db DB, objid int64) error {
	disapprovedUUID := lookupUUID(ctx, db, objid)

	rows, err := db.QueryContext(ctx, `SELECT rid FROM delta WHERE srcid = ?`, objid)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "list delta children before disapprove")
	}
	var children []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return err
		}
		children = append(children, rid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, child := range children {
		if err := q.store.Undelta(ctx, db, child); err != nil {
			return err
		}
	}

	for _, table := range []string{"plink", "mlink", "tagxref", "event", "leaf"} {
		col := "cid"
		switch table {
		case "mlink":
			col = "mid"
		case "tagxref":
			col = "rid"
		case "event":
			col = "objid"
		case "leaf":
			col = "rid"
		}
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+col+" = ?", objid); err != nil {
			return errs.Wrap(err, errs.CategoryInternal, "delete derived rows for "+table)
		}
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM plink WHERE pid = ?`, objid); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "delete plink rows as parent")
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM modreq WHERE objid = ?`, objid); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "dequeue disapproved artifact")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM private WHERE rid = ?`, objid); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "clear private flag on disapproved artifact")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM delta WHERE rid = ?`, objid); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "delete delta row for disapproved artifact")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM blob WHERE rid = ?`, objid); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "delete blob row for disapproved artifact")
	}
	if q.notifier != nil {
		q.notifier.PublishBestEffort(ctx, notify.EventModerationDecided, disapprovedUUID, "disapproved")
	}
	return nil
}

package privacy

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/notify"
)

// Notifier publishes a best-effort repository event; see xref.Notifier.
type Notifier interface {
	PublishBestEffort(ctx context.Context, kind notify.EventKind, artifactUUID, detail string)
}

// Shun administratively blacklists uuid (§3 "Shun": "hash values that
// must be ignored on receipt and deleted on rebuild", §6's worked
// example "administratively delete an artifact and refuse to receive
// it again"). It records the uuid so ingest refuses it and rebuild
// skips any row that still carries it, but it does not itself delete
// an existing blob row — callers pair Shun with moderation.Disapprove
// or a direct delete when shunning already-present content.
func Shun(ctx context.Context, db DB, uuid string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO shun(uuid) VALUES (?)`, uuid)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "shun artifact")
	}
	return nil
}

// Unshun removes uuid from the shun list, permitting it to be received again.
func Unshun(ctx context.Context, db DB, uuid string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM shun WHERE uuid = ?`, uuid)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "unshun artifact")
	}
	return nil
}

// IsShunned reports whether uuid is on the shun list, the check ingest
// runs before accepting an inbound artifact's content.
func IsShunned(ctx context.Context, db DB, uuid string) (bool, error) {
	var one int
	row := db.QueryRowContext(ctx, `SELECT 1 FROM shun WHERE uuid = ?`, uuid)
	err := row.Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, errs.Wrap(err, errs.CategoryInternal, "check shun list")
}

// PurgeShunned deletes every Blob row whose uuid is on the shun list
// (§3 "Shun": "hash values that must be ignored on receipt and deleted
// on rebuild"), undeltaing any public child first so no surviving blob
// is left pointing at a row about to disappear. Derived rows are left
// for the caller's subsequent rebuild pass to drop, since a rebuild
// already clears and repopulates plink/mlink/tagxref/event/leaf from
// whatever rids remain. notifier may be nil; when set, each purge
// publishes an artifact_shunned event. Returns the count of rows purged.
func PurgeShunned(ctx context.Context, db DB, store blob.Store, notifier Notifier) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT b.rid, b.uuid FROM blob b JOIN shun s ON s.uuid = b.uuid`)
	if err != nil {
		return 0, errs.Wrap(err, errs.CategoryInternal, "list shunned rids")
	}
	type shunned struct {
		rid  int64
		uuid string
	}
	var targets []shunned
	for rows.Next() {
		var s shunned
		if err := rows.Scan(&s.rid, &s.uuid); err != nil {
			rows.Close()
			return 0, err
		}
		targets = append(targets, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, s := range targets {
		if err := undeltaChildren(ctx, db, store, s.rid); err != nil {
			return 0, err
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM private WHERE rid = ?`, s.rid); err != nil {
			return 0, errs.Wrap(err, errs.CategoryInternal, "clear private flag on shunned artifact")
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM delta WHERE rid = ?`, s.rid); err != nil {
			return 0, errs.Wrap(err, errs.CategoryInternal, "delete delta row for shunned artifact")
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM blob WHERE rid = ?`, s.rid); err != nil {
			return 0, errs.Wrap(err, errs.CategoryInternal, "delete blob row for shunned artifact")
		}
		if notifier != nil {
			notifier.PublishBestEffort(ctx, notify.EventArtifactShunned, s.uuid, "purged on rebuild")
		}
	}
	return len(targets), nil
}

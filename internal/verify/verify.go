// Package verify implements the integrity verifier: every blob row
// appended to the store is queued, and a commit-hook re-reads and
// re-hashes each queued row immediately before the enclosing transaction
// commits, aborting on any mismatch.
package verify

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fossilgo/fossilgo/internal/bag"
	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/metrics"
)

// DB is the subset of *repo.Tx (or *repo.Repo) the verifier needs to
// re-read a rid's content and recorded uuid, expressed structurally so
// internal/verify never imports internal/repo.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UUIDLookup resolves a rid to the uuid it was inserted under, so the
// verifier can re-hash fetched content against it. internal/repo supplies
// this from the blob table.
type UUIDLookup func(ctx context.Context, db DB, rid int64) (string, error)

// Verifier holds the pending-verification set (backed by internal/bag)
// and re-checks each queued rid's content hash on RunBeforeCommit.
type Verifier struct {
	store   blob.Store
	lookup  UUIDLookup
	pending *bag.Bag
	rec     metrics.Recorder
}

// New constructs a Verifier. lookup resolves a rid to its recorded uuid.
func New(store blob.Store, lookup UUIDLookup, rec metrics.Recorder) *Verifier {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Verifier{store: store, lookup: lookup, pending: bag.New(64), rec: rec}
}

// Enqueue marks rid as needing verification before the next commit.
// Idempotent: enqueuing the same rid twice before it is verified has no
// additional effect. Called by the blob store itself (via the Verifier
// interface it holds) on every insert, phantom fill, and reference.
func (v *Verifier) Enqueue(rid int64) {
	v.pending.Insert(rid)
}

// Pending reports whether rid is currently queued for verification.
func (v *Verifier) Pending(rid int64) bool {
	return v.pending.Find(rid)
}

// RunBeforeCommit re-reads and re-hashes every pending rid via db, clearing
// the pending set only if all verify successfully. A single failure aborts
// with a VerifyFailed error and leaves the set unchanged so the caller
// can retry or roll back. db must be the transaction about to commit, so
// verification sees exactly the rows it is about to make durable.
func (v *Verifier) RunBeforeCommit(ctx context.Context, db DB) error {
	for _, rid := range v.pending.Elements() {
		if err := v.verifyOne(ctx, db, rid); err != nil {
			v.rec.IncVerifyFailure(string(errs.GetCategory(err)))
			return err
		}
	}
	v.pending.Clear()
	return nil
}

func (v *Verifier) verifyOne(ctx context.Context, db DB, rid int64) error {
	uuid, err := v.lookup(ctx, db, rid)
	if err != nil {
		return errs.VerifyRejected(fmt.Sprintf("rid %d: uuid lookup failed", rid), err)
	}
	content, err := v.store.Get(ctx, db, rid)
	if err != nil {
		if errs.IsCategory(err, errs.CategoryPhantom) {
			// Phantom rows carry no content yet; nothing to verify until filled.
			return nil
		}
		return errs.VerifyRejected(fmt.Sprintf("rid %d: content fetch failed", rid), err)
	}
	if !hashpolicy.VerifyHash(content, uuid) {
		return errs.New(errs.CategoryVerifyFailed, fmt.Sprintf("rid %d hash mismatch against uuid %s", rid, uuid)).
			WithField("rid", rid).WithField("uuid", uuid)
	}
	return nil
}

// RebuildVerifyAll re-verifies every rid supplied by allRids via db, used
// by the rebuild path to check every row rather than only newly-queued
// ones.
func (v *Verifier) RebuildVerifyAll(ctx context.Context, db DB, allRids []int64) error {
	for _, rid := range allRids {
		if err := v.verifyOne(ctx, db, rid); err != nil {
			return err
		}
	}
	return nil
}

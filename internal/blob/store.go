// Package blob implements the content-addressed artifact store: Blob/Delta
// rows, delta-vs-full compression choice, phantom handling, and recursive
// delta resolution with a reconstruction cache.
package blob

import (
	"context"
	"database/sql"
)

// DB is the subset of *repo.Tx (or, for read-only callers that can
// tolerate the latest committed state, *repo.Repo) this package needs,
// expressed structurally so internal/blob never imports internal/repo.
// Every Store method takes one so a write lands inside whatever
// transaction the caller is driving, instead of going through a
// store-owned *sql.DB outside it.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Verifier is the subset of *verify.Verifier the store needs in order to
// queue a newly-inserted or newly-filled rid for pre-commit re-hashing.
// Expressed structurally so internal/blob never imports internal/verify,
// which in turn depends on blob.Store to fetch content back — importing
// it directly would be circular.
type Verifier interface {
	Enqueue(rid int64)
}

// Store is the content-addressed blob API used by the manifest parser,
// xref builder, and sync engine.
type Store interface {
	// Put hashes content under the repository's current hash policy and
	// inserts it via db, or returns the existing rid idempotently if that
	// uuid is already present (filling in a phantom row if one exists).
	Put(ctx context.Context, db DB, content []byte) (rid int64, uuid string, err error)

	// PutDelta behaves like Put but, when the content is new, encodes it as
	// a delta against baseRid if that is smaller than storing it full.
	PutDelta(ctx context.Context, db DB, content []byte, baseRid int64) (rid int64, uuid string, err error)

	// Get fetches and fully reconstructs the content for rid via db,
	// recursively resolving any delta chain. Returns a Phantom error if rid
	// has no content yet.
	Get(ctx context.Context, db DB, rid int64) ([]byte, error)

	// Undelta replaces a delta-encoded blob with its full-bytes form in
	// place, removing the Delta row. A no-op if rid is already full.
	Undelta(ctx context.Context, db DB, rid int64) error

	// Size returns the original (uncompressed) byte length of rid, or -1 if
	// rid is a phantom.
	Size(ctx context.Context, db DB, rid int64) (int64, error)

	// Reference returns the rid for uuid, inserting a phantom row if no
	// Blob with that uuid exists yet.
	Reference(ctx context.Context, db DB, uuid string) (rid int64, err error)
}

// Package repo implements the repository handle: schema bootstrap for
// every table named in the data model beyond Blob/Delta (which
// internal/blob owns), a Begin/Commit/Rollback wrapper that runs the
// integrity verifier immediately before the outermost commit, nested
// transactions as SQLite SAVEPOINTs, and the small config key-value
// table used for project/server identity and cache invalidation.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/graph"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/metrics"
	"github.com/fossilgo/fossilgo/internal/retry"
	"github.com/fossilgo/fossilgo/internal/verify"
)

// Repo is a single repository's handle: one SQLite file (or :memory:)
// holding the Blob/Delta tables plus every derived table in the data
// model, guarded by a mutex the way the teacher's eventstore.SQLiteStore
// guards its *sql.DB.
type Repo struct {
	db       *sql.DB
	mu       sync.Mutex
	Store    blob.Store
	Verifier *verify.Verifier

	retryPolicy retry.Policy
	rec         metrics.Recorder

	nextSavepoint atomic.Int64
}

// Options configures a new Repo.
type Options struct {
	// Policy selects the hash-name policy (§4.6); required.
	Policy *hashpolicy.Policy
	// MaxDeltaDepth bounds recursive delta resolution (0 uses the default of 32).
	MaxDeltaDepth int
	// CacheSize bounds the blob store's reconstructed-blob LRU cache.
	CacheSize int
	// RetryPolicy governs Busy-condition retries on Begin and ConfigSet.
	RetryPolicy retry.Policy
	// Recorder receives repo-level metrics; nil uses a no-op recorder.
	Recorder metrics.Recorder
}

// Open opens or creates the repository database at path (":memory:" for an
// ephemeral repository) and bootstraps every table in the schema.
func Open(path string, opts Options) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer model; avoid pool contention on locks.

	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.RetryPolicy.Initial == 0 {
		opts.RetryPolicy = retry.DefaultPolicy()
	}

	r := &Repo{db: db, retryPolicy: opts.RetryPolicy, rec: opts.Recorder}

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := graph.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize bisect schema: %w", err)
	}

	if err := r.resolveHashPolicy(context.Background(), opts.Policy); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve hash policy: %w", err)
	}

	store, err := blob.NewSQLiteStore(db, opts.Policy, opts.MaxDeltaDepth, opts.CacheSize, opts.Recorder)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize blob store: %w", err)
	}
	r.Store = store

	r.Verifier = verify.New(store, r.lookupUUID, opts.Recorder)
	store.SetVerifier(r.Verifier)

	return r, nil
}

// Close closes the underlying database handle.
func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// QueryRowContext runs a read-only single-row query directly against the
// repository database, outside any transaction. Used by the graph and
// xref packages' read-only walks (ancestors, pivot, effective tag) and
// by cmd/fossilgo's reporting subcommands, none of which need
// transactional isolation for a query that can tolerate seeing the
// latest committed state.
func (r *Repo) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, query, args...)
}

// QueryContext runs a read-only multi-row query directly against the
// repository database, outside any transaction.
func (r *Repo) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement directly against the repository database,
// outside any transaction and outside the integrity verifier's
// commit-hook. Used only for schema/maintenance statements (e.g.
// rebuild's table-clearing DELETEs via a Tx) and read-adjacent
// bookkeeping; artifact ingest must go through Begin/Commit so the
// verifier sees it.
func (r *Repo) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, query, args...)
}

// lookupUUID satisfies verify.UUIDLookup against the blob table owned by
// internal/blob, avoiding a circular import between repo and verify. db is
// the transaction about to commit, so the lookup sees the row it is
// verifying rather than risking contention against the single-connection
// pool that transaction already holds.
func (r *Repo) lookupUUID(ctx context.Context, db verify.DB, rid int64) (string, error) {
	var uuid string
	row := db.QueryRowContext(ctx, `SELECT uuid FROM blob WHERE rid = ?`, rid)
	if err := row.Scan(&uuid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errs.NotFound(fmt.Sprintf("no blob row for rid %d", rid))
		}
		return "", err
	}
	return uuid, nil
}

// isBusyErr reports whether err looks like a SQLITE_BUSY / "database is
// locked" condition from modernc.org/sqlite, which does not expose a typed
// sentinel for this the way mattn/go-sqlite3 does.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// withBusyRetry runs fn, retrying on a Busy condition per r.retryPolicy.
func (r *Repo) withBusyRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.retryPolicy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyErr(lastErr) {
			return lastErr
		}
		delay := r.retryPolicy.Delay(attempt + 1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errs.RepoLocked(op, lastErr)
}

package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx wraps a database transaction (or, for a nested Begin, a SAVEPOINT)
// and runs the integrity verifier before the outermost commit actually
// lands, per the verifier's "commit-hook" contract.
type Tx struct {
	repo       *Repo
	sqlTx      *sql.Tx
	ctx        context.Context
	parent     *Tx
	savepoint  string
	done       bool
}

// Begin starts a new top-level transaction with Busy retry.
func (r *Repo) Begin(ctx context.Context) (*Tx, error) {
	var sqlTx *sql.Tx
	err := r.withBusyRetry(ctx, "begin", func() error {
		var beginErr error
		sqlTx, beginErr = r.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return nil, err
	}
	return &Tx{repo: r, sqlTx: sqlTx, ctx: ctx}, nil
}

// Begin starts a nested transaction as a SAVEPOINT. The verifier's
// pending set is shared across the whole nesting and only drained when
// the outermost Tx commits.
func (t *Tx) Begin(ctx context.Context) (*Tx, error) {
	sp := fmt.Sprintf("sp_%d", t.repo.nextSavepoint.Add(1))
	if _, err := t.sqlTx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return nil, err
	}
	return &Tx{repo: t.repo, sqlTx: t.sqlTx, ctx: ctx, parent: t, savepoint: sp}, nil
}

// ExecContext runs a statement within the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.sqlTx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query within the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.sqlTx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query within the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.sqlTx.QueryRowContext(ctx, query, args...)
}

// Commit releases a nested SAVEPOINT, or, for the outermost Tx, runs the
// verifier's pre-commit check and commits the underlying transaction.
// Any verifier failure aborts: the whole transaction is rolled back and
// the pending set is left intact for a future retry.
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	if t.parent != nil {
		_, err := t.sqlTx.ExecContext(t.ctx, "RELEASE SAVEPOINT "+t.savepoint)
		return err
	}

	if err := t.repo.Verifier.RunBeforeCommit(t.ctx, t); err != nil {
		_ = t.sqlTx.Rollback()
		return err
	}
	return t.sqlTx.Commit()
}

// Rollback aborts a nested SAVEPOINT or the outermost transaction.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true

	if t.parent != nil {
		_, err := t.sqlTx.ExecContext(t.ctx, "ROLLBACK TO SAVEPOINT "+t.savepoint)
		return err
	}
	return t.sqlTx.Rollback()
}

package repo

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fossilgo/fossilgo/internal/hashpolicy"
)

// Well-known config keys persisted in the config table (§3 "Persisted state").
const (
	ConfigProjectCode   = "project-code"
	ConfigServerCode    = "server-code"
	ConfigHashPolicy    = "hash-policy"
	ConfigContentSchema = "content-schema"
	ConfigAuxSchema     = "aux-schema"
	ConfigCfgCnt        = "cfgcnt"
)

// ConfigGet reads a single config value. The second return is false if the
// key is absent.
func (r *Repo) ConfigGet(ctx context.Context, name string) (string, bool, error) {
	var value string
	row := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE name = ?`, name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// ConfigSet writes a config value and bumps cfgcnt, the monotonic counter
// callers use to invalidate any config cache they keep.
func (r *Repo) ConfigSet(ctx context.Context, name, value string) error {
	return r.withBusyRetry(ctx, "config-set", func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO config(name, value) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value); err != nil {
			_ = tx.Rollback()
			return err
		}
		if name != ConfigCfgCnt {
			if err := bumpCfgCnt(ctx, tx); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

func bumpCfgCnt(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO config(name, value) VALUES (?, '1')
		ON CONFLICT(name) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`,
		ConfigCfgCnt)
	return err
}

// randomHexCode generates a 32-byte random value encoded as 64 lowercase
// hex digits, the form used for project-code and server-code identity
// values (distinct from a content hash: these identify the repository
// itself, not any artifact within it).
func randomHexCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// resolveHashPolicy reconciles the caller-supplied policy (seeded from the
// config file's hash_policy field) with whatever mode a prior run already
// persisted to the config table. Spec §4.6: auto's promotion to sha3 is
// one-way and must survive reopen, so a persisted value always wins over
// the caller's starting mode; the very first open of a repository has
// nothing persisted yet, so it persists the caller's starting mode for
// the next open to read.
func (r *Repo) resolveHashPolicy(ctx context.Context, policy *hashpolicy.Policy) error {
	stored, ok, err := r.ConfigGet(ctx, ConfigHashPolicy)
	if err != nil {
		return err
	}
	if ok {
		mode, err := hashpolicy.ParseMode(stored)
		if err != nil {
			return fmt.Errorf("persisted hash-policy %q: %w", stored, err)
		}
		policy.SetMode(mode)
		return nil
	}
	return r.ConfigSet(ctx, ConfigHashPolicy, string(policy.Mode()))
}

// InitIdentity assigns project-code and server-code if not already
// present, used once when a repository is first created (clone/import).
func (r *Repo) InitIdentity(ctx context.Context) error {
	for _, key := range []string{ConfigProjectCode, ConfigServerCode} {
		if _, ok, err := r.ConfigGet(ctx, key); err != nil {
			return err
		} else if ok {
			continue
		}
		code, err := randomHexCode()
		if err != nil {
			return err
		}
		if err := r.ConfigSet(ctx, key, code); err != nil {
			return err
		}
	}
	return nil
}

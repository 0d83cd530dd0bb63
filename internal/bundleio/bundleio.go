// Package bundleio implements the `bundle` CLI subcommand family
// (export/import/ls/extract/append): packaging a subset of a
// repository's artifacts into a standalone file for offline transfer,
// grounded in original_source/src/bundle.c's bblob table but reusing
// this module's own card-stream framing (§4.5) rather than attaching
// a second SQLite file, per SPEC_FULL.md's §4 "SUPPLEMENTED FEATURES"
// note. A bundle is the same File-card grammar internal/sync puts on
// the wire, zlib-compressed, written to a regular file instead of an
// HTTP body.
package bundleio

import (
	"bytes"
	"compress/zlib"
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/sync"
)

// DB is the subset of *repo.Repo/*repo.Tx this package needs, expressed
// structurally so internal/bundleio never imports internal/repo. It
// carries ExecContext too, not just the two read methods, since it is
// also passed straight through to blob.Store's tx-shaped db parameter.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// magicPragma tags a bundle file with a format version, written as
// the first card so Ls/Import can reject a file that isn't one of
// ours before attempting to decode the rest as cards.
const magicPragma = "fossilgo-bundle"
const formatVersion = "1"

// Entry describes one artifact catalogued in a bundle, as reported by Ls.
type Entry struct {
	UUID string
	Size int64
}

// Export writes every rid in rids to path as a bundle file, fetching
// full (already delta-resolved) content from store so a bundle never
// depends on a source blob outside the set it carries.
func Export(ctx context.Context, store blob.Store, db DB, rids []int64, path string) error {
	cards := []sync.Card{sync.Pragma(magicPragma, formatVersion)}
	for _, rid := range rids {
		uuid, err := uuidForRid(ctx, db, rid)
		if err != nil {
			return err
		}
		content, err := store.Get(ctx, db, rid)
		if err != nil {
			return err
		}
		cards = append(cards, sync.File(uuid, content))
	}
	return writeBundle(path, cards)
}

// Import reads every file card from the bundle at path and ingests it
// into store (via db, the caller's open transaction) under the
// repository's current hash policy, verifying each artifact's
// recomputed hash matches the uuid the bundle recorded (the same
// integrity discipline §4.3 applies to any other ingest path) before
// accepting it. Returns the uuids actually imported.
func Import(ctx context.Context, store blob.Store, db DB, path string, policy *hashpolicy.Policy) ([]string, error) {
	cards, err := readBundle(path)
	if err != nil {
		return nil, err
	}
	var imported []string
	for _, card := range cards {
		if card.Kind != sync.KindFile {
			continue
		}
		if policy != nil && !policy.AcceptOnSync(card.UUID, false) {
			return imported, errs.New(errs.CategoryPermission, "hash policy refuses artifact "+card.UUID)
		}
		_, uuid, err := store.Put(ctx, db, card.Bytes)
		if err != nil {
			return imported, err
		}
		if uuid != card.UUID {
			return imported, errs.BlobHashMismatch(0, card.UUID, uuid)
		}
		imported = append(imported, uuid)
	}
	return imported, nil
}

// Ls lists every artifact catalogued in the bundle at path without
// ingesting it anywhere.
func Ls(path string) ([]Entry, error) {
	cards, err := readBundle(path)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, card := range cards {
		if card.Kind != sync.KindFile {
			continue
		}
		out = append(out, Entry{UUID: card.UUID, Size: card.Size})
	}
	return out, nil
}

// Extract writes the single artifact named uuid from the bundle at
// path to destPath, or returns errs.NotFound if the bundle does not
// carry it.
func Extract(path, uuid, destPath string) error {
	cards, err := readBundle(path)
	if err != nil {
		return err
	}
	for _, card := range cards {
		if card.Kind == sync.KindFile && card.UUID == uuid {
			return os.WriteFile(destPath, card.Bytes, 0o644)
		}
	}
	return errs.NotFound("bundle does not contain artifact " + uuid)
}

// Append hashes each named local file under policy and adds it to the
// bundle at path, creating the bundle if it does not yet exist. Unlike
// Import, Append does not touch the repository's blob store — it is
// the CLI's "fossil bundle append BUNDLE FILE..." equivalent, packing
// arbitrary files (not necessarily existing artifacts) into a bundle
// for later distribution.
func Append(path string, filePaths []string, policy *hashpolicy.Policy) error {
	var cards []sync.Card
	if _, err := os.Stat(path); err == nil {
		existing, err := readBundle(path)
		if err != nil {
			return err
		}
		cards = existing
	} else {
		cards = []sync.Card{sync.Pragma(magicPragma, formatVersion)}
	}

	algo := hashpolicy.AlgoSHA1
	if policy != nil {
		algo = policy.NewArtifactAlgo()
	}

	for _, fp := range filePaths {
		content, err := os.ReadFile(fp)
		if err != nil {
			return errs.Wrap(err, errs.CategoryUsage, "read file for bundle append: "+fp)
		}
		uuid, err := hashpolicy.ComputeHash(content, algo)
		if err != nil {
			return err
		}
		cards = append(cards, sync.File(uuid, content))
	}
	return writeBundle(path, cards)
}

func uuidForRid(ctx context.Context, db DB, rid int64) (string, error) {
	var uuid string
	row := db.QueryRowContext(ctx, `SELECT uuid FROM blob WHERE rid = ?`, rid)
	if err := row.Scan(&uuid); err != nil {
		return "", errs.NotFound("no blob for rid in bundle export")
	}
	return uuid, nil
}

func writeBundle(path string, cards []sync.Card) error {
	encoded := sync.Encode(cards)
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(encoded); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "compress bundle")
	}
	if err := w.Close(); err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "close bundle compressor")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(err, errs.CategoryUsage, "write bundle file: "+path)
	}
	return nil
}

func readBundle(path string) ([]sync.Card, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryUsage, "read bundle file: "+path)
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.CorruptBlob("invalid bundle file: " + err.Error())
	}
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.CorruptBlob("invalid bundle file: " + err.Error())
	}
	cards, err := sync.Decode(decoded)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 || cards[0].Kind != sync.KindPragma || cards[0].Name != magicPragma {
		return nil, errs.New(errs.CategoryUsage, "not a fossilgo bundle file: "+path)
	}
	return cards, nil
}

// Package xref implements the manifest cross-reference builder (§4.2
// "Cross-reference builder"): given a parsed, classified manifest it
// populates plink, mlink, tagxref, event, and leaf, and maintains tag
// propagation. Rebuild recomputes every derived row from Blob+Delta
// content alone, deterministically (§5's ordering guarantee, §8's
// round-trip property).
package xref

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/graph"
	"github.com/fossilgo/fossilgo/internal/manifest"
	"github.com/fossilgo/fossilgo/internal/metrics"
	"github.com/fossilgo/fossilgo/internal/notify"
)

// Notifier publishes a best-effort repository event. Matched
// structurally against *notify.Publisher so this package depends only
// on notify.EventKind, not on a concrete transport. A nil Notifier
// (the default) makes notification a no-op.
type Notifier interface {
	PublishBestEffort(ctx context.Context, kind notify.EventKind, artifactUUID, detail string)
}

// DB is the subset of *repo.Tx xref needs. Expressed structurally, like
// internal/graph's DB interface, so this package never imports
// internal/repo.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Builder parses artifact content and populates the derived tables. It
// holds the blob store (to resolve parent/baseline references), a
// metrics recorder and an optional Notifier; all SQL state lives on the
// DB passed to Build.
type Builder struct {
	store    blob.Store
	rec      metrics.Recorder
	notifier Notifier
}

// New constructs a Builder over store.
func New(store blob.Store, rec metrics.Recorder) *Builder {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Builder{store: store, rec: rec}
}

// WithNotifier arms the Builder to publish a commit_ingested event
// (best-effort, never fatal to Build) each time a commit artifact is
// successfully cross-referenced.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// Build parses the content of rid/uuid and, if it classifies as a
// recognized artifact type, dispatches to the matching Build* function.
// An artifact that parses but does not classify (ArtifactUnknown) is not
// an error. Content that does not parse as a manifest, such as a plain
// file blob, returns a manifest-parse error; Rebuild skips such rids.
func (b *Builder) Build(ctx context.Context, db DB, rid int64, uuid string, content []byte) error {
	start := time.Now()
	m, err := manifest.Parse(content)
	if err != nil {
		b.rec.IncXrefResult("unknown", metrics.ResultFatal)
		return err
	}
	if m.IsDelta {
		m, err = b.resolveDeltaManifest(ctx, db, m)
		if err != nil {
			b.rec.IncXrefResult("unknown", metrics.ResultFatal)
			return err
		}
	}

	artifactType := manifest.Classify(m)
	var buildErr error
	switch artifactType {
	case manifest.ArtifactCommit:
		buildErr = b.BuildCommit(ctx, db, rid, m)
	case manifest.ArtifactWiki:
		buildErr = b.BuildWiki(ctx, db, rid, m)
	case manifest.ArtifactTechnote:
		buildErr = b.BuildTechnote(ctx, db, rid, m)
	case manifest.ArtifactTicket:
		buildErr = b.BuildTicket(ctx, db, rid, m)
	case manifest.ArtifactAttachment:
		buildErr = b.BuildAttachment(ctx, db, rid, m)
	case manifest.ArtifactCluster:
		buildErr = b.BuildCluster(ctx, db, rid, m)
	case manifest.ArtifactControl:
		buildErr = b.BuildControl(ctx, db, rid, m)
	default:
		b.rec.ObserveXrefDuration(string(artifactType), time.Since(start))
		return nil
	}

	b.rec.ObserveXrefDuration(string(artifactType), time.Since(start))
	if buildErr != nil {
		b.rec.IncXrefResult(string(artifactType), metrics.ResultFatal)
		return buildErr
	}
	b.rec.IncXrefResult(string(artifactType), metrics.ResultSuccess)
	if artifactType == manifest.ArtifactCommit && b.notifier != nil {
		b.notifier.PublishBestEffort(ctx, notify.EventCommitIngested, uuidOrLookup(ctx, db, rid, uuid), "")
	}
	return nil
}

// uuidOrLookup returns uuid if the caller already had it, else resolves
// rid's uuid from the blob table; Rebuild and moderation.Approve call
// Build without a uuid in hand, so this is the one place that cares.
func uuidOrLookup(ctx context.Context, db DB, rid int64, uuid string) string {
	if uuid != "" {
		return uuid
	}
	var resolved string
	if err := db.QueryRowContext(ctx, `SELECT uuid FROM blob WHERE rid = ?`, rid).Scan(&resolved); err != nil {
		return ""
	}
	return resolved
}

// resolveDeltaManifest fetches and parses the baseline referenced by a
// delta manifest's B card and merges the two via manifest.ResolveDelta.
// The baseline is resolved through the blob store's Reference, which
// transparently creates a phantom row if the baseline has not yet
// arrived — in that case Build fails with CategoryPhantom and the caller
// (sync) converts this into a gimme request for the next round.
func (b *Builder) resolveDeltaManifest(ctx context.Context, db DB, m *manifest.Manifest) (*manifest.Manifest, error) {
	baseRid, err := b.store.Reference(ctx, db, m.Baseline)
	if err != nil {
		return nil, err
	}
	baseContent, err := b.store.Get(ctx, db, baseRid)
	if err != nil {
		return nil, err
	}
	baseManifest, err := manifest.Parse(baseContent)
	if err != nil {
		return nil, err
	}
	return manifest.ResolveDelta(m, baseManifest)
}

// fnidFor returns the filename id for name, inserting a new Filename row
// if none exists yet.
func fnidFor(ctx context.Context, db DB, name string) (int64, error) {
	var fnid int64
	row := db.QueryRowContext(ctx, `SELECT fnid FROM filename WHERE name = ?`, name)
	switch err := row.Scan(&fnid); err {
	case nil:
		return fnid, nil
	case sql.ErrNoRows:
		res, err := db.ExecContext(ctx, `INSERT INTO filename(name) VALUES (?)`, name)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	default:
		return 0, err
	}
}

// tagidFor returns the tag id for name, inserting a new Tag row if none
// exists yet.
func tagidFor(ctx context.Context, db DB, name string) (int64, error) {
	var tagid int64
	row := db.QueryRowContext(ctx, `SELECT tagid FROM tag WHERE tagname = ?`, name)
	switch err := row.Scan(&tagid); err {
	case nil:
		return tagid, nil
	case sql.ErrNoRows:
		res, err := db.ExecContext(ctx, `INSERT INTO tag(tagname) VALUES (?)`, name)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	default:
		return 0, err
	}
}

// ridForUUID resolves uuid to a rid via the blob store, creating a
// phantom row if the artifact has not been received yet (§4.5 "Phantom
// handling").
func (b *Builder) ridForUUID(ctx context.Context, db DB, uuid string) (int64, error) {
	return b.store.Reference(ctx, db, uuid)
}

// parseMtime converts a D-card (or E-card) datetime to the float64
// Julian day this package stores in every mtime column. It accepts
// ISO-8601 "YYYY-MM-DDTHH:MM:SS" with or without fractional seconds
// (read as UTC), RFC3339 with a zone, and a value already in Julian-day
// form; an empty or unparseable value yields 0.
func parseMtime(d string) float64 {
	if d == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02T15:04:05", d)
	if err != nil {
		t, err = time.Parse(time.RFC3339, d)
		if err != nil {
			if jd, jerr := strconv.ParseFloat(d, 64); jerr == nil {
				return jd
			}
			return 0
		}
	}
	const julianUnixEpoch = 2440587.5
	return julianUnixEpoch + float64(t.Unix())/86400.0
}

// insertEvent inserts or replaces the unified timeline row for objid.
func insertEvent(ctx context.Context, db DB, objid int64, typ, mtimeRaw, user, comment string) error {
	mtime := parseMtime(mtimeRaw)
	_, err := db.ExecContext(ctx, `
		INSERT INTO event(objid, type, mtime, user, comment) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(objid) DO UPDATE SET type = excluded.type, mtime = excluded.mtime,
			user = excluded.user, comment = excluded.comment`,
		objid, typ, mtime, user, comment)
	return err
}

// errNotClassified is returned by a Build* function invoked on a
// manifest that does not actually carry the cards its caller expected —
// defensive, since Build already classified before dispatching.
func errNotClassified(kind string) error {
	return errs.Newf(errs.CategoryManifestParse, "manifest does not classify as %s", kind)
}

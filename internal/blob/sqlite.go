package blob

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/fossilgo/fossilgo/internal/blob/delta"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/metrics"
)

// defaultMaxDeltaDepth bounds recursive delta resolution; exceeding it is treated
// as corruption rather than looped indefinitely.
const defaultMaxDeltaDepth = 32

// SQLiteStore implements Store against whatever DB handle each call is
// given (a *repo.Tx in production, structured like the teacher's
// eventstore.SQLiteStore otherwise: a mutex-guarded cache, an
// initialize() schema bootstrap against the raw *sql.DB, and
// straightforward queries per call rather than long-lived prepared
// statement handles). schemaDB is kept only for initialize(); every
// read/write a caller drives goes through the db passed into that call,
// so blob writes land inside the caller's transaction rather than
// bypassing it via an autocommit connection of the store's own.
type SQLiteStore struct {
	schemaDB *sql.DB
	mu       sync.RWMutex
	policy   *hashpolicy.Policy
	maxDepth int
	cache    *reconCache
	rec      metrics.Recorder
	verifier Verifier
}

// NewSQLiteStore wraps db with Blob/Delta table bootstrap. maxDepth bounds
// delta chain recursion (0 uses the default of 32); cacheSize bounds the
// number of reconstructed blobs kept in memory.
func NewSQLiteStore(db *sql.DB, policy *hashpolicy.Policy, maxDepth, cacheSize int, rec metrics.Recorder) (*SQLiteStore, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDeltaDepth
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	s := &SQLiteStore{
		schemaDB: db,
		policy:   policy,
		maxDepth: maxDepth,
		cache:    newReconCache(cacheSize),
		rec:      rec,
	}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("initialize blob schema: %w", err)
	}
	return s, nil
}

// SetVerifier wires the integrity verifier the store enqueues every
// inserted or filled rid into, once one exists. Must be called before
// any write the caller wants verified; nil is a valid no-verifier state
// (e.g. in tests that don't care about re-hashing).
func (s *SQLiteStore) SetVerifier(v Verifier) {
	s.verifier = v
}

func (s *SQLiteStore) enqueue(rid int64) {
	if s.verifier != nil {
		s.verifier.Enqueue(rid)
	}
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blob(
		rid INTEGER PRIMARY KEY AUTOINCREMENT,
		rcvid INTEGER,
		size INTEGER NOT NULL,
		uuid TEXT UNIQUE NOT NULL,
		content BLOB
	);
	CREATE TABLE IF NOT EXISTS delta(
		rid INTEGER PRIMARY KEY REFERENCES blob(rid),
		srcid INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_delta_srcid ON delta(srcid);
	CREATE TABLE IF NOT EXISTS config (
		name  TEXT PRIMARY KEY,
		value TEXT
	);
	`
	_, err := s.schemaDB.Exec(schema)
	return err
}

// configKeyHashPolicy and configKeyCfgCnt mirror internal/repo's
// ConfigHashPolicy/ConfigCfgCnt keys. internal/blob cannot import
// internal/repo (repo imports blob), so the config-table row it writes
// on auto-promotion is expressed directly against the DB handed to it
// rather than through repo.Repo.ConfigSet.
const (
	configKeyHashPolicy = "hash-policy"
	configKeyCfgCnt     = "cfgcnt"
)

// persistHashPolicyPromotion rewrites the config table's hash-policy row
// to "sha3" and bumps cfgcnt, within the same transaction as the artifact
// write that triggered the promotion. Spec §4.6: "auto's promotion is
// one-way; once promoted the stored setting is rewritten to sha3" — a
// promotion that only flips the in-memory Policy is lost on reopen.
func persistHashPolicyPromotion(ctx context.Context, db DB) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO config(name, value) VALUES (?, 'sha3')
		ON CONFLICT(name) DO UPDATE SET value = 'sha3'`, configKeyHashPolicy); err != nil {
		return fmt.Errorf("persist hash-policy promotion: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO config(name, value) VALUES (?, '1')
		ON CONFLICT(name) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`, configKeyCfgCnt); err != nil {
		return fmt.Errorf("bump cfgcnt for hash-policy promotion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, db DB, content []byte) (int64, string, error) {
	return s.putWithBase(ctx, db, content, 0, false)
}

func (s *SQLiteStore) PutDelta(ctx context.Context, db DB, content []byte, baseRid int64) (int64, string, error) {
	return s.putWithBase(ctx, db, content, baseRid, true)
}

func (s *SQLiteStore) putWithBase(ctx context.Context, db DB, content []byte, baseRid int64, haveBase bool) (rid int64, uuid string, err error) {
	start := time.Now()
	algo := s.policy.NewArtifactAlgo()
	uuid, err = hashpolicy.ComputeHash(content, algo)
	if err != nil {
		return 0, "", err
	}
	if s.policy.ObserveArtifact(uuid) {
		if err := persistHashPolicyPromotion(ctx, db); err != nil {
			return 0, "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existingRid, existingSize, existingHasContent, found, err := s.lookupByUUID(ctx, db, uuid)
	if err != nil {
		return 0, "", err
	}
	if found {
		if existingHasContent {
			s.rec.IncBlobOperationResult("put", true)
			return existingRid, uuid, nil
		}
		if err := s.fillPhantom(ctx, db, existingRid, content, baseRid, haveBase); err != nil {
			return 0, "", err
		}
		s.enqueue(existingRid)
		s.rec.ObserveBlobOperationDuration("put", time.Since(start), true)
		s.rec.IncBlobOperationResult("put", true)
		return existingRid, uuid, nil
	}
	_ = existingSize

	rid, err = s.insertBlob(ctx, db, content, baseRid, haveBase)
	if err != nil {
		s.rec.IncBlobOperationResult("put", false)
		return 0, "", err
	}
	s.enqueue(rid)
	s.rec.ObserveBlobOperationDuration("put", time.Since(start), true)
	s.rec.IncBlobOperationResult("put", true)
	return rid, uuid, nil
}

func (s *SQLiteStore) lookupByUUID(ctx context.Context, db DB, uuid string) (rid int64, size int64, hasContent bool, found bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT rid, size, content IS NOT NULL FROM blob WHERE uuid = ?`, uuid)
	err = row.Scan(&rid, &size, &hasContent)
	if err == sql.ErrNoRows {
		return 0, 0, false, false, nil
	}
	if err != nil {
		return 0, 0, false, false, err
	}
	return rid, size, hasContent, true, nil
}

func (s *SQLiteStore) insertBlob(ctx context.Context, db DB, content []byte, baseRid int64, haveBase bool) (int64, error) {
	compressed, deltaAgainst, err := s.encodeForStorage(ctx, db, content, baseRid, haveBase)
	if err != nil {
		return 0, err
	}
	algo := s.policy.NewArtifactAlgo()
	uuid, err := hashpolicy.ComputeHash(content, algo)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO blob(rcvid, size, uuid, content) VALUES (NULL, ?, ?, ?)`,
		len(content), uuid, compressed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert blob: %w", err)
	}
	rid, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if deltaAgainst != 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO delta(rid, srcid) VALUES (?, ?)`, rid, deltaAgainst); err != nil {
			return 0, fmt.Errorf("insert delta row: %w", err)
		}
	}
	return rid, nil
}

func (s *SQLiteStore) fillPhantom(ctx context.Context, db DB, rid int64, content []byte, baseRid int64, haveBase bool) error {
	compressed, deltaAgainst, err := s.encodeForStorage(ctx, db, content, baseRid, haveBase)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE blob SET size = ?, content = ? WHERE rid = ?`, len(content), compressed, rid); err != nil {
		return fmt.Errorf("fill phantom: %w", err)
	}
	if deltaAgainst != 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO delta(rid, srcid) VALUES (?, ?)`, rid, deltaAgainst); err != nil {
			return fmt.Errorf("insert delta row for phantom fill: %w", err)
		}
	}
	return nil
}

// encodeForStorage compresses content full, and if a base is proposed also
// computes a delta against it, choosing whichever compresses smaller
// (spec: "compression choice is per-row; readers never need to
// distinguish"). Returns compressed bytes and the srcid to record in
// Delta (0 meaning full/no delta).
func (s *SQLiteStore) encodeForStorage(ctx context.Context, db DB, content []byte, baseRid int64, haveBase bool) ([]byte, int64, error) {
	fullCompressed, err := deflate(content)
	if err != nil {
		return nil, 0, err
	}
	if !haveBase {
		return fullCompressed, 0, nil
	}
	base, err := s.get(ctx, db, baseRid, 0)
	if err != nil {
		// Base unavailable (e.g. phantom): fall back to full storage.
		return fullCompressed, 0, nil
	}
	deltaBytes := delta.Create(base, content)
	deltaCompressed, err := deflate(deltaBytes)
	if err != nil {
		return fullCompressed, 0, nil
	}
	denom := len(fullCompressed)
	if denom == 0 {
		denom = 1
	}
	ratio := float64(len(deltaCompressed)) / float64(denom)
	s.rec.ObserveDeltaCompressionRatio(ratio)
	if len(deltaCompressed) < len(fullCompressed) {
		return deltaCompressed, baseRid, nil
	}
	return fullCompressed, 0, nil
}

func (s *SQLiteStore) Get(ctx context.Context, db DB, rid int64) ([]byte, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.get(ctx, db, rid, 0)
	s.rec.ObserveBlobOperationDuration("get", time.Since(start), err == nil)
	s.rec.IncBlobOperationResult("get", err == nil)
	return data, err
}

// get performs the actual recursive reconstruction; depth tracks recursion
// to enforce maxDepth.
func (s *SQLiteStore) get(ctx context.Context, db DB, rid int64, depth int) ([]byte, error) {
	if cached, ok := s.cache.get(rid); ok {
		return cached, nil
	}
	if depth > s.maxDepth {
		return nil, errs.DeltaDepthExceeded(rid, depth, s.maxDepth)
	}

	var size int64
	var compressed []byte
	row := db.QueryRowContext(ctx, `SELECT size, content FROM blob WHERE rid = ?`, rid)
	if err := row.Scan(&size, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound(fmt.Sprintf("no blob with rid %d", rid))
		}
		return nil, fmt.Errorf("lookup blob %d: %w", rid, err)
	}
	if size == -1 || compressed == nil {
		return nil, errs.PhantomContentUnavailable(fmt.Sprintf("rid=%d", rid))
	}

	var srcid int64
	var isDelta bool
	drow := db.QueryRowContext(ctx, `SELECT srcid FROM delta WHERE rid = ?`, rid)
	switch err := drow.Scan(&srcid); err {
	case nil:
		isDelta = true
	case sql.ErrNoRows:
		isDelta = false
	default:
		return nil, fmt.Errorf("lookup delta row for %d: %w", rid, err)
	}

	raw, err := inflate(compressed)
	if err != nil {
		return nil, errs.CorruptBlob(fmt.Sprintf("rid=%d: %v", rid, err))
	}

	if !isDelta {
		s.cache.put(rid, raw)
		return raw, nil
	}

	base, err := s.get(ctx, db, srcid, depth+1)
	if err != nil {
		return nil, errs.DeltaChainBroken(rid, srcid, err)
	}
	full, err := delta.Apply(base, raw)
	if err != nil {
		return nil, err
	}
	s.cache.put(rid, full)
	return full, nil
}

func (s *SQLiteStore) Undelta(ctx context.Context, db DB, rid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var srcid int64
	row := db.QueryRowContext(ctx, `SELECT srcid FROM delta WHERE rid = ?`, rid)
	if err := row.Scan(&srcid); err == sql.ErrNoRows {
		return nil // already full
	} else if err != nil {
		return fmt.Errorf("lookup delta row for %d: %w", rid, err)
	}

	full, err := s.get(ctx, db, rid, 0)
	if err != nil {
		return err
	}
	compressed, err := deflate(full)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE blob SET content = ? WHERE rid = ?`, compressed, rid); err != nil {
		return fmt.Errorf("undelta rewrite blob %d: %w", rid, err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM delta WHERE rid = ?`, rid); err != nil {
		return fmt.Errorf("undelta remove delta row %d: %w", rid, err)
	}
	s.cache.put(rid, full)
	return nil
}

func (s *SQLiteStore) Size(ctx context.Context, db DB, rid int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var size int64
	row := db.QueryRowContext(ctx, `SELECT size FROM blob WHERE rid = ?`, rid)
	if err := row.Scan(&size); err != nil {
		if err == sql.ErrNoRows {
			return 0, errs.NotFound(fmt.Sprintf("no blob with rid %d", rid))
		}
		return 0, err
	}
	return size, nil
}

func (s *SQLiteStore) Reference(ctx context.Context, db DB, uuid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rid, _, _, found, err := s.lookupByUUID(ctx, db, uuid)
	if err != nil {
		return 0, err
	}
	if found {
		return rid, nil
	}
	res, err := db.ExecContext(ctx, `INSERT INTO blob(rcvid, size, uuid, content) VALUES (NULL, -1, ?, NULL)`, uuid)
	if err != nil {
		return 0, fmt.Errorf("insert phantom blob: %w", err)
	}
	rid, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.enqueue(rid)
	return rid, nil
}

// deflate compresses b with raw DEFLATE and no length prefix. The
// content column's on-disk form omits the 4-byte big-endian
// uncompressed-length prefix the wire format describes for this field;
// deflate/inflate are the only two places that ever read or write a
// compressed blob, so the omission is internally consistent. See
// DESIGN.md for the deviation note.
func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	return io.ReadAll(r)
}

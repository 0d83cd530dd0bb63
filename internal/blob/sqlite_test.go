package blob

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
)

func newTestStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	policy := hashpolicy.NewPolicy(hashpolicy.ModeSHA3)
	store, err := NewSQLiteStore(db, policy, 0, 16, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, db
}

func TestPutAndGetRoundTrip(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	rid, uuid, err := store.Put(ctx, db, []byte("hello\n"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rid == 0 || uuid == "" {
		t.Fatal("expected non-zero rid and uuid")
	}

	got, err := store.Get(ctx, db, rid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("got %q", got)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	rid1, uuid1, err := store.Put(ctx, db, []byte("same content"))
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	rid2, uuid2, err := store.Put(ctx, db, []byte("same content"))
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if rid1 != rid2 || uuid1 != uuid2 {
		t.Fatalf("expected idempotent put, got (%d,%s) vs (%d,%s)", rid1, uuid1, rid2, uuid2)
	}
}

func TestPutDeltaAgainstBase(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	base := make([]byte, 5000)
	for i := range base {
		base[i] = byte(i % 7)
	}
	baseRid, _, err := store.Put(ctx, db, base)
	if err != nil {
		t.Fatalf("put base: %v", err)
	}

	target := append([]byte(nil), base...)
	copy(target[2000:2010], []byte("0123456789"))

	rid, _, err := store.PutDelta(ctx, db, target, baseRid)
	if err != nil {
		t.Fatalf("put delta: %v", err)
	}

	got, err := store.Get(ctx, db, rid)
	if err != nil {
		t.Fatalf("get delta-encoded blob: %v", err)
	}
	if string(got) != string(target) {
		t.Fatal("delta round trip mismatch")
	}
}

func TestReferenceCreatesPhantom(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	uuid := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"
	rid, err := store.Reference(ctx, db, uuid)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}

	size, err := store.Size(ctx, db, rid)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != -1 {
		t.Fatalf("expected phantom size -1, got %d", size)
	}

	_, err = store.Get(ctx, db, rid)
	if !errs.IsCategory(err, errs.CategoryPhantom) {
		t.Fatalf("expected CategoryPhantom, got %v", err)
	}
}

func TestReferenceThenPutFillsPhantom(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	content := []byte("content arriving later over sync")
	algo := store.policy.NewArtifactAlgo()
	uuid, err := hashpolicy.ComputeHash(content, algo)
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}

	phantomRid, err := store.Reference(ctx, db, uuid)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}

	filledRid, filledUUID, err := store.Put(ctx, db, content)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if filledRid != phantomRid {
		t.Fatalf("expected same rid, got %d vs %d", filledRid, phantomRid)
	}
	if filledUUID != uuid {
		t.Fatalf("expected uuid %s, got %s", uuid, filledUUID)
	}

	got, err := store.Get(ctx, db, phantomRid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(content) {
		t.Fatal("filled phantom content mismatch")
	}
}

func TestUndelta(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	base := make([]byte, 5000)
	baseRid, _, err := store.Put(ctx, db, base)
	if err != nil {
		t.Fatalf("put base: %v", err)
	}
	target := append([]byte(nil), base...)
	target[100] = 'X'
	rid, _, err := store.PutDelta(ctx, db, target, baseRid)
	if err != nil {
		t.Fatalf("put delta: %v", err)
	}

	if err := store.Undelta(ctx, db, rid); err != nil {
		t.Fatalf("undelta: %v", err)
	}

	var srcid int64
	row := db.QueryRowContext(ctx, `SELECT srcid FROM delta WHERE rid = ?`, rid)
	if err := row.Scan(&srcid); err != sql.ErrNoRows {
		t.Fatalf("expected delta row removed, err=%v", err)
	}

	got, err := store.Get(ctx, db, rid)
	if err != nil {
		t.Fatalf("get after undelta: %v", err)
	}
	if string(got) != string(target) {
		t.Fatal("content mismatch after undelta")
	}
}

func TestGetMissingRidIsNotFound(t *testing.T) {
	store, db := newTestStore(t)
	_, err := store.Get(context.Background(), db, 999999)
	if !errs.IsCategory(err, errs.CategoryNotFound) {
		t.Fatalf("expected CategoryNotFound, got %v", err)
	}
}

package repo

import (
	"context"
	"testing"

	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(":memory:", Options{Policy: hashpolicy.NewPolicy(hashpolicy.ModeSHA3)})
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOpenBootstrapsSchema(t *testing.T) {
	r := newTestRepo(t)
	for _, table := range []string{"plink", "mlink", "filename", "tag", "tagxref", "event", "leaf", "private", "rcvfrom", "modreq", "shun", "config", "blob", "delta"} {
		var name string
		row := r.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table)
		if err := row.Scan(&name); err != nil {
			t.Fatalf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestCommitRunsVerifierAndClearsPending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rid, _, err := r.Store.Put(ctx, r, []byte("commit payload"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	r.Verifier.Enqueue(rid)

	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO event(objid, type, mtime, user) VALUES (?, 'ci', 0, 'alice')`, rid); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if r.Verifier.Pending(rid) {
		t.Fatal("expected pending set cleared after commit")
	}
}

func TestCommitAbortsOnVerifierFailure(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rid, _, err := r.Store.Put(ctx, r, []byte("original"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE blob SET uuid = ? WHERE rid = ?`,
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", rid); err != nil {
		t.Fatalf("corrupt uuid: %v", err)
	}
	r.Verifier.Enqueue(rid)

	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO event(objid, type, mtime, user) VALUES (?, 'ci', 0, 'bob')`, rid); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	err = tx.Commit()
	if !errs.IsCategory(err, errs.CategoryVerifyFailed) {
		t.Fatalf("expected verify failure, got %v", err)
	}
	if !r.Verifier.Pending(rid) {
		t.Fatal("expected rid to remain pending after aborted commit")
	}

	var count int
	if err := r.db.QueryRow(`SELECT count(*) FROM event WHERE objid = ?`, rid).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 0 {
		t.Fatal("expected rolled-back event row to be absent")
	}
}

func TestNestedSavepointCommitAndRollback(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	outer, err := r.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := outer.ExecContext(ctx, `INSERT INTO filename(name) VALUES ('kept.go')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	inner, err := outer.Begin(ctx)
	if err != nil {
		t.Fatalf("begin nested: %v", err)
	}
	if _, err := inner.ExecContext(ctx, `INSERT INTO filename(name) VALUES ('discarded.go')`); err != nil {
		t.Fatalf("insert nested: %v", err)
	}
	if err := inner.Rollback(); err != nil {
		t.Fatalf("rollback nested: %v", err)
	}

	if err := outer.Commit(); err != nil {
		t.Fatalf("commit outer: %v", err)
	}

	var count int
	if err := r.db.QueryRow(`SELECT count(*) FROM filename`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly the outer insert to survive, got %d rows", count)
	}
}

func TestConfigSetGetAndCfgCntBumps(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.ConfigSet(ctx, ConfigHashPolicy, "sha3-only"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := r.ConfigGet(ctx, ConfigHashPolicy)
	if err != nil || !ok {
		t.Fatalf("get: value=%q ok=%v err=%v", value, ok, err)
	}
	if value != "sha3-only" {
		t.Fatalf("unexpected value %q", value)
	}

	cnt1, _, err := r.ConfigGet(ctx, ConfigCfgCnt)
	if err != nil {
		t.Fatalf("get cfgcnt: %v", err)
	}
	if err := r.ConfigSet(ctx, ConfigAuxSchema, "2020-01-01"); err != nil {
		t.Fatalf("set: %v", err)
	}
	cnt2, _, err := r.ConfigGet(ctx, ConfigCfgCnt)
	if err != nil {
		t.Fatalf("get cfgcnt: %v", err)
	}
	if cnt1 == cnt2 {
		t.Fatalf("expected cfgcnt to change, stayed at %q", cnt1)
	}
}

func TestInitIdentityAssignsCodesOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.InitIdentity(ctx); err != nil {
		t.Fatalf("init identity: %v", err)
	}
	project1, _, _ := r.ConfigGet(ctx, ConfigProjectCode)
	if len(project1) != 64 {
		t.Fatalf("expected a 64-hex-digit project code, got %q", project1)
	}

	if err := r.InitIdentity(ctx); err != nil {
		t.Fatalf("init identity again: %v", err)
	}
	project2, _, _ := r.ConfigGet(ctx, ConfigProjectCode)
	if project1 != project2 {
		t.Fatal("expected project code to remain stable across repeated InitIdentity calls")
	}
}

func TestAutoPromotionPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir() + "/repo.sqlite"
	ctx := context.Background()

	policy := hashpolicy.NewPolicy(hashpolicy.ModeAuto)
	r, err := Open(dir, Options{Policy: policy})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Every new artifact under ModeAuto is already named sha3
	// (NewArtifactAlgo's default case), so the very first Put promotes.
	if _, _, err := r.Store.Put(ctx, r, []byte("seed content")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if policy.Mode() != hashpolicy.ModeSHA3 {
		t.Fatalf("expected auto mode to promote to sha3 on its first stored artifact, got %q", policy.Mode())
	}
	stored, ok, err := r.ConfigGet(ctx, ConfigHashPolicy)
	if err != nil || !ok {
		t.Fatalf("config get: value=%q ok=%v err=%v", stored, ok, err)
	}
	if stored != "sha3" {
		t.Fatalf("expected hash-policy config row rewritten to sha3, got %q", stored)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopenedPolicy := hashpolicy.NewPolicy(hashpolicy.ModeAuto)
	r2, err := Open(dir, Options{Policy: reopenedPolicy})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r2.Close()
	if reopenedPolicy.Mode() != hashpolicy.ModeSHA3 {
		t.Fatalf("expected reopen to read back the promoted sha3 mode, got %q", reopenedPolicy.Mode())
	}
}

func TestIsBusyErrRecognizesLockedMessages(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errs.New(errs.CategoryInternal, "database is locked"), true},
		{errs.New(errs.CategoryInternal, "SQLITE_BUSY"), true},
		{errs.New(errs.CategoryInternal, "no such table"), false},
	}
	for _, c := range cases {
		if got := isBusyErr(c.err); got != c.want {
			t.Errorf("isBusyErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

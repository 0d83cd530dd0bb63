package graph

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

// newTestDB builds a bare plink/event/tag/tagxref schema sufficient for
// graph algorithms, independent of internal/repo to avoid an import cycle
// in tests.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE plink (pid INTEGER, cid INTEGER, isprim INTEGER, mtime REAL, PRIMARY KEY(pid,cid));
		CREATE TABLE event (objid INTEGER PRIMARY KEY, type TEXT, mtime REAL, user TEXT);
		CREATE TABLE tag (tagid INTEGER PRIMARY KEY AUTOINCREMENT, tagname TEXT UNIQUE);
		CREATE TABLE tagxref (tagid INTEGER, rid INTEGER, tagtype INTEGER, srcid INTEGER, value TEXT, mtime REAL, PRIMARY KEY(tagid,rid));
		CREATE TABLE mlink (mid INTEGER, fid INTEGER, pid INTEGER, fnid INTEGER, pfnid INTEGER, mperm TEXT);
		CREATE TABLE filename (fnid INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT UNIQUE);
		CREATE TABLE leaf (rid INTEGER PRIMARY KEY);
		CREATE TABLE bilog (rid INTEGER PRIMARY KEY, status TEXT);
	`)
	require.NoError(t, err)
	return db
}

func addCommit(t *testing.T, db *sql.DB, rid int64, mtime float64, parents ...int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO event(objid, type, mtime, user) VALUES (?, 'ci', ?, 'alice')`, rid, mtime)
	require.NoError(t, err)
	for i, p := range parents {
		_, err := db.Exec(`INSERT INTO plink(pid, cid, isprim, mtime) VALUES (?, ?, ?, ?)`, p, rid, i == 0, mtime)
		require.NoError(t, err)
	}
}

// diamondGraph builds: 1 -> 2 -> 3, 1 -> 4 -> 3 (matching spec.md §8's
// worked example 4/5).
func diamondGraph(t *testing.T) *sql.DB {
	db := newTestDB(t)
	addCommit(t, db, 1, 1)
	addCommit(t, db, 2, 2, 1)
	addCommit(t, db, 4, 2, 1)
	addCommit(t, db, 3, 3, 2, 4)
	return db
}

func TestShortestPathDiamond(t *testing.T) {
	db := diamondGraph(t)
	path, err := ShortestPath(context.Background(), db, 1, 3, false)
	require.NoError(t, err)
	require.Len(t, path, 3)
	require.Equal(t, int64(1), path[0].Rid)
	require.Equal(t, int64(3), path[len(path)-1].Rid)
}

func TestPivotDiamond(t *testing.T) {
	db := diamondGraph(t)
	pivot, err := Pivot(context.Background(), db, 4, []int64{2}, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), pivot)
}

func TestBranchOfDefaultsToTrunk(t *testing.T) {
	db := diamondGraph(t)
	branch, err := BranchOf(context.Background(), db, 3)
	require.NoError(t, err)
	require.Equal(t, TrunkBranch, branch)
}

func TestEffectiveTagPropagatesAcrossPrimaryEdges(t *testing.T) {
	db := diamondGraph(t)
	_, err := db.Exec(`INSERT INTO tag(tagname) VALUES ('branch')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tagxref(tagid, rid, tagtype, value, mtime) VALUES (1, 1, 2, 'release', 1)`)
	require.NoError(t, err)

	value, found, err := EffectiveTag(context.Background(), db, 2, "branch")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "release", value)
}

func TestEffectiveTagStopsAtCancel(t *testing.T) {
	db := diamondGraph(t)
	_, err := db.Exec(`INSERT INTO tag(tagname) VALUES ('branch')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tagxref(tagid, rid, tagtype, value, mtime) VALUES (1, 1, 2, 'release', 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tagxref(tagid, rid, tagtype, value, mtime) VALUES (1, 2, 0, NULL, 2)`)
	require.NoError(t, err)

	_, found, err := EffectiveTag(context.Background(), db, 2, "branch")
	require.NoError(t, err)
	require.False(t, found)

	// The sibling branch (via commit 4) is unaffected by 2's cancel.
	value, found, err := EffectiveTag(context.Background(), db, 4, "branch")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "release", value)
}

func TestLeafCheckAndRebuild(t *testing.T) {
	db := diamondGraph(t)
	ctx := context.Background()
	require.NoError(t, LeafRebuild(ctx, db))

	isLeaf, err := IsLeaf(ctx, db, 3)
	require.NoError(t, err)
	require.True(t, isLeaf)

	isLeaf, err = IsLeaf(ctx, db, 1)
	require.NoError(t, err)
	require.False(t, isLeaf)
}

func TestBisectNarrowsInterval(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	// Linear chain 1->2->3->4->5.
	addCommit(t, db, 1, 1)
	addCommit(t, db, 2, 2, 1)
	addCommit(t, db, 3, 3, 2)
	addCommit(t, db, 4, 4, 3)
	addCommit(t, db, 5, 5, 4)

	require.NoError(t, BisectMark(ctx, db, 1, false))
	require.NoError(t, BisectMark(ctx, db, 5, true))

	next, err := BisectNext(ctx, db)
	require.NoError(t, err)
	require.True(t, next > 1 && next < 5)
}

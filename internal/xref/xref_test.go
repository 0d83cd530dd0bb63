package xref_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/repo"
	"github.com/fossilgo/fossilgo/internal/xref"
)

func newTestRepo(t *testing.T) *repo.Repo {
	t.Helper()
	r, err := repo.Open(":memory:", repo.Options{Policy: hashpolicy.NewPolicy(hashpolicy.ModeSHA3)})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestBuildCommitPopulatesDerivedTables(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	builder := xref.New(r.Store, nil)

	_, fileUUID, err := r.Store.Put(ctx, r, []byte("package main\n"))
	require.NoError(t, err)

	manifestText := "C initial\\scommit\n" +
		"D 2026-07-31T10:00:00\n" +
		"F main.go " + fileUUID + "\n" +
		"U alice\n"
	rid, uuid, err := r.Store.Put(ctx, r, []byte(manifestText))
	require.NoError(t, err)

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, builder.Build(ctx, tx, rid, uuid, []byte(manifestText)))
	require.NoError(t, tx.Commit())

	var count int
	err = r.QueryRowContext(ctx, `SELECT COUNT(*) FROM mlink WHERE mid = ?`, rid).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var eventType string
	err = r.QueryRowContext(ctx, `SELECT type FROM event WHERE objid = ?`, rid).Scan(&eventType)
	require.NoError(t, err)
	require.Equal(t, "ci", eventType)
}

func TestBuildCommitWithParentTracksFileRename(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	builder := xref.New(r.Store, nil)

	_, fileUUID, err := r.Store.Put(ctx, r, []byte("package main\n"))
	require.NoError(t, err)

	rootText := "D 2026-07-31T10:00:00\n" +
		"F old.go " + fileUUID + "\n" +
		"U alice\n"
	rootRid, rootUUID, err := r.Store.Put(ctx, r, []byte(rootText))
	require.NoError(t, err)

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, builder.Build(ctx, tx, rootRid, rootUUID, []byte(rootText)))
	require.NoError(t, tx.Commit())

	childText := "D 2026-07-31T11:00:00\n" +
		"F new.go " + fileUUID + " w old.go\n" +
		"P " + rootUUID + "\n" +
		"U alice\n"
	childRid, childUUID, err := r.Store.Put(ctx, r, []byte(childText))
	require.NoError(t, err)

	tx, err = r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, builder.Build(ctx, tx, childRid, childUUID, []byte(childText)))
	require.NoError(t, tx.Commit())

	var pfnidName string
	err = r.QueryRowContext(ctx, `
		SELECT fn.name FROM mlink
		JOIN filename fn ON fn.fnid = mlink.pfnid
		WHERE mlink.mid = ?`, childRid).Scan(&pfnidName)
	require.NoError(t, err)
	require.Equal(t, "old.go", pfnidName)
}

package privacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/privacy"
	"github.com/fossilgo/fossilgo/internal/repo"
)

func newTestRepo(t *testing.T) *repo.Repo {
	t.Helper()
	r, err := repo.Open(":memory:", repo.Options{Policy: hashpolicy.NewPolicy(hashpolicy.ModeSHA3)})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPublishUndeltasPublicChildBeforeClearingPrivateFlag(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	p1Rid, _, err := r.Store.Put(ctx, r, []byte("baseline content for P1"))
	require.NoError(t, err)

	p2Rid, _, err := r.Store.PutDelta(ctx, r, []byte("baseline content for P1, plus a little more"), p1Rid)
	require.NoError(t, err)

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, privacy.MarkPrivate(ctx, tx, p1Rid))
	require.NoError(t, tx.Commit())

	private, err := privacy.IsPrivate(ctx, r, p1Rid)
	require.NoError(t, err)
	require.True(t, private)

	require.NoError(t, privacy.Publish(ctx, r, r.Store, []int64{p1Rid}, true))

	private, err = privacy.IsPrivate(ctx, r, p1Rid)
	require.NoError(t, err)
	require.False(t, private)

	p2Content, err := r.Store.Get(ctx, r, p2Rid)
	require.NoError(t, err)
	require.Equal(t, "baseline content for P1, plus a little more", string(p2Content))
}

func TestShunAndUnshun(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	const uuid = "0123456789abcdef0123456789abcdef01234567"

	shunned, err := privacy.IsShunned(ctx, r, uuid)
	require.NoError(t, err)
	require.False(t, shunned)

	require.NoError(t, privacy.Shun(ctx, r, uuid))

	shunned, err = privacy.IsShunned(ctx, r, uuid)
	require.NoError(t, err)
	require.True(t, shunned)

	require.NoError(t, privacy.Unshun(ctx, r, uuid))

	shunned, err = privacy.IsShunned(ctx, r, uuid)
	require.NoError(t, err)
	require.False(t, shunned)
}

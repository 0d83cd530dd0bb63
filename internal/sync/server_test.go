package sync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/repo"
	"github.com/fossilgo/fossilgo/internal/sync"
)

func TestServerSessionAdvertisesForPullAndClientFetches(t *testing.T) {
	ctx := context.Background()
	serverRepo := newTestRepo(t)
	clientRepo := newTestRepo(t)

	_, uuid, err := serverRepo.Store.Put(ctx, serverRepo, []byte("hello\n"))
	require.NoError(t, err)

	server := sync.NewServerSession(serverRepo.Store, hashpolicy.NewPolicy(hashpolicy.ModeSHA1), sync.ServerOptions{})
	client := sync.NewClient(clientRepo.Store, clientRepo, hashpolicy.NewPolicy(hashpolicy.ModeSHA1), sync.RolePull)

	outbound, err := client.Start(ctx)
	require.NoError(t, err)

	inbound, err := server.HandleRound(ctx, serverRepo, outbound)
	require.NoError(t, err)

	var sawIgot bool
	for _, c := range inbound {
		if c.Kind == sync.KindIgot && c.UUID == uuid {
			sawIgot = true
		}
	}
	require.True(t, sawIgot, "server should advertise its content via igot for a pull session")

	outbound2, done, err := client.Step(ctx, clientRepo, inbound)
	require.NoError(t, err)
	require.False(t, done)

	var sawGimme bool
	for _, c := range outbound2 {
		if c.Kind == sync.KindGimme && c.UUID == uuid {
			sawGimme = true
		}
	}
	require.True(t, sawGimme, "client should gimme content it was igot'd but lacks")

	inbound2, err := server.HandleRound(ctx, serverRepo, outbound2)
	require.NoError(t, err)

	_, done3, err := client.Step(ctx, clientRepo, inbound2)
	require.NoError(t, err)
	require.True(t, done3)

	rid, err := clientRepo.Store.Reference(ctx, clientRepo, uuid)
	require.NoError(t, err)
	content, err := clientRepo.Store.Get(ctx, clientRepo, rid)
	require.NoError(t, err)
	require.Equal(t, []byte("hello\n"), content)
}

func TestServerSessionRequiresLogin(t *testing.T) {
	ctx := context.Background()
	serverRepo := newTestRepo(t)
	server := sync.NewServerSession(serverRepo.Store, hashpolicy.NewPolicy(hashpolicy.ModeSHA1), sync.ServerOptions{Password: "secret"})

	_, err := server.HandleRound(ctx, serverRepo, []sync.Card{{Kind: sync.KindClone, Version: "pull"}})
	require.Error(t, err)
}

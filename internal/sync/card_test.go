package sync_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fossilgo/fossilgo/internal/sync"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cards := []sync.Card{
		sync.Pragma("send-private", ""),
		sync.Login("alice", "deadbeef", "cafebabe"),
		sync.Igot("0123456789abcdef0123456789abcdef01234567", true),
		sync.Gimme("fedcba9876543210fedcba9876543210fedcba98"),
		sync.File("0123456789abcdef0123456789abcdef01234567", []byte("hello world")),
		sync.FileDelta("fedcba9876543210fedcba9876543210fedcba98", "0123456789abcdef0123456789abcdef01234567", []byte("Z1:some delta bytes")),
		sync.Cluster("1111111111111111111111111111111111111111"),
		sync.Cookie("resume-token-123"),
		sync.Message("hello there"),
	}

	encoded := sync.Encode(cards)
	decoded, err := sync.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(cards))

	for i, c := range cards {
		require.Equal(t, c.Kind, decoded[i].Kind, "card %d", i)
	}
	require.Equal(t, "hello world", string(decoded[4].Bytes))
	require.True(t, decoded[5].IsDelta)
	require.Equal(t, "0123456789abcdef0123456789abcdef01234567", decoded[5].SrcUUID)
	require.Equal(t, "hello there", decoded[8].Text)
}

func TestLoginSignatureVerifiable(t *testing.T) {
	nonce, err := sync.NewNonce()
	require.NoError(t, err)

	sig := sync.LoginSignature(nonce, "hunter2")
	card := sync.Login("alice", nonce, sig)

	require.NoError(t, sync.VerifyLogin(card, "hunter2"))
	require.Error(t, sync.VerifyLogin(card, "wrong-password"))
}

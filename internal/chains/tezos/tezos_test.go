package tezos

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func TestRegisteredAtInit(t *testing.T) {
	group, ok := registry.Lookup(registry.ChainXtz)
	require.True(t, ok)
	require.NotNil(t, group.Address)
}

func TestFromPublicKeyThenFromStringRoundTrips(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainXtz)
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a, err := group.Address.FromPublicKey(pub)
	require.NoError(t, err)
	require.Regexp(t, `^[1-9A-HJ-NP-Za-km-z]+$`, a.String())

	parsed, err := group.Address.FromString(a.String())
	require.NoError(t, err)
	require.True(t, group.Address.Equal(a, parsed))
}

func TestFromPublicKeyRejectsWrongLength(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainXtz)
	_, err := group.Address.FromPublicKey([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestFromStringRejectsCorruptChecksum(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainXtz)
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a, err := group.Address.FromPublicKey(pub)
	require.NoError(t, err)

	corrupted := []byte(a.String())
	corrupted[len(corrupted)-1]++
	_, err = group.Address.FromString(string(corrupted))
	require.Error(t, err)
}

package ripple

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func TestRegisteredAtInit(t *testing.T) {
	group, ok := registry.Lookup(registry.ChainXrp)
	require.True(t, ok)
	require.NotNil(t, group.Address)
	require.NotNil(t, group.Transfer)
}

func TestFromPublicKeyThenFromStringRoundTrips(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainXrp)
	pub := testPubKey(t)

	a, err := group.Address.FromPublicKey(pub)
	require.NoError(t, err)
	require.True(t, len(a.String()) > 0)

	parsed, err := group.Address.FromString(a.String())
	require.NoError(t, err)
	require.True(t, group.Address.Equal(a, parsed))
}

func TestFromStringRejectsCorruptChecksum(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainXrp)
	pub := testPubKey(t)
	a, err := group.Address.FromPublicKey(pub)
	require.NoError(t, err)

	corrupted := []byte(a.String())
	corrupted[len(corrupted)-1]++
	_, err = group.Address.FromString(string(corrupted))
	require.Error(t, err)
}

func TestValidateAttributeDestinationTag(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainXrp)
	good := "12345"
	require.NoError(t, group.Transfer.ValidateAttribute("DestinationTag", &good, true))

	bad := "not-a-number"
	err := group.Transfer.ValidateAttribute("DestinationTag", &bad, true)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindAttributeMismatched))

	err = group.Transfer.ValidateAttribute("DestinationTag", nil, true)
	require.True(t, errs.Is(err, errs.KindAttributeRequired))
}

func testPubKey(t *testing.T) []byte {
	t.Helper()
	b, err := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	require.NoError(t, err)
	return b
}

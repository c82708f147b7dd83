package ethereum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func TestRegisteredAtInit(t *testing.T) {
	group, ok := registry.Lookup(registry.ChainEth)
	require.True(t, ok)
	require.NotNil(t, group.Address)
}

func TestChecksumAddressKnownVector(t *testing.T) {
	// EIP-55 test vector from the standard's own reference list.
	require.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", checksumAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
}

func TestFromPublicKeyThenFromStringRoundTrips(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainEth)
	pub := testUncompressedPubKey(t)

	a, err := group.Address.FromPublicKey(pub)
	require.NoError(t, err)

	parsed, err := group.Address.FromString(a.String())
	require.NoError(t, err)
	require.True(t, group.Address.Equal(a, parsed))
}

func TestEqualIsCaseInsensitive(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainEth)
	a, _ := group.Address.FromString("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	b, _ := group.Address.FromString("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.True(t, group.Address.Equal(a, b))
}

func TestFromStringRejectsWrongLength(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainEth)
	_, err := group.Address.FromString("0x1234")
	require.Error(t, err)
}

func TestSignProducesWellFormedSignature(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainEth)
	seed := bytes.Repeat([]byte{0x09}, 32)
	hash := sha256.Sum256([]byte("eth tx payload"))

	sig, err := group.WalletManager.Sign(hash[:], seed)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.LessOrEqual(t, sig[64], byte(1))
}

func TestSignIsDeterministicForSameInputs(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainEth)
	seed := bytes.Repeat([]byte{0x09}, 32)
	hash := sha256.Sum256([]byte("eth tx payload"))

	sig1, err := group.WalletManager.Sign(hash[:], seed)
	require.NoError(t, err)
	sig2, err := group.WalletManager.Sign(hash[:], seed)
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)
}

func TestSignRejectsWrongSizedInputs(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainEth)
	_, err := group.WalletManager.Sign([]byte("short"), bytes.Repeat([]byte{0x01}, 32))
	require.Error(t, err)
	_, err = group.WalletManager.Sign(bytes.Repeat([]byte{0x01}, 32), []byte("short"))
	require.Error(t, err)
}

func testUncompressedPubKey(t *testing.T) []byte {
	t.Helper()
	b, err := hex.DecodeString("0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")
	require.NoError(t, err)
	return b
}

package bitcoin

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func TestRegisteredAtInit(t *testing.T) {
	group, ok := registry.Lookup(registry.ChainBtc)
	require.True(t, ok)
	require.NotNil(t, group.Address)
	require.NotNil(t, group.Network)
	require.NotNil(t, group.Wallet)
}

func TestFromPublicKeyThenFromStringRoundTrips(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainBtc)
	pub := testPubKey(t)

	a, err := group.Address.FromPublicKey(pub)
	require.NoError(t, err)
	require.NotEmpty(t, a.String())

	parsed, err := group.Address.FromString(a.String())
	require.NoError(t, err)
	require.True(t, group.Address.Equal(a, parsed))
}

func TestFromStringRejectsGarbage(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainBtc)
	_, err := group.Address.FromString("not-an-address")
	require.Error(t, err)
}

func TestValidateFeeUnitAcceptsSatoshisAndBTC(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainBtc)
	require.NoError(t, group.Network.ValidateFeeUnit(0))
	require.NoError(t, group.Network.ValidateFeeUnit(8))
	require.Error(t, group.Network.ValidateFeeUnit(6))
}

func TestSignProducesVerifiableSignatureWithSigHashByte(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainBtc)
	seed := bytes.Repeat([]byte{0x07}, 32)
	hash := sha256.Sum256([]byte("unsigned tx payload"))

	sig, err := group.WalletManager.Sign(hash[:], seed)
	require.NoError(t, err)
	require.Equal(t, byte(sigHashAllByte), sig[len(sig)-1])

	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	require.NoError(t, err)

	privKey, _ := btcec.PrivKeyFromBytes(seed)
	require.True(t, parsed.Verify(hash[:], privKey.PubKey()))
}

func TestSignRejectsWrongSizedInputs(t *testing.T) {
	group, _ := registry.Lookup(registry.ChainBtc)
	_, err := group.WalletManager.Sign([]byte("short"), bytes.Repeat([]byte{0x01}, 32))
	require.Error(t, err)
	_, err = group.WalletManager.Sign(bytes.Repeat([]byte{0x01}, 32), []byte("short"))
	require.Error(t, err)
}

// testPubKey is the compressed secp256k1 generator-point public key, a
// fixed known-good test vector independent of any derivation path.
func testPubKey(t *testing.T) []byte {
	t.Helper()
	b, err := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	require.NoError(t, err)
	return b
}

// Package avax registers the handler group for the AVAX chain tag,
// covering Avalanche's C-Chain: an EVM-compatible execution environment
// whose account addresses are derived exactly like Ethereum's
// (Keccak-256 + EIP-55 checksum over a secp256k1 public key). Avalanche's
// X/P-Chain bech32 addresses are a distinct, non-EVM format this handler
// does not cover; no bech32-over-"avax"-hrp example exists anywhere in
// the retrieval pack, so extending to it would mean inventing an
// unconfirmed wire format rather than adapting one.
package avax

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/sha3"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// defaultGasLimit mirrors internal/chains/ethereum's plain-transfer cost
// factor; Avalanche's C-Chain charges gas the same way.
const defaultGasLimit = 21000

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainAvax,
		Network:       networkHandler{},
		Address:       addressHandler{},
		Transfer:      transferHandler{},
		Wallet:        walletHandler{},
		WalletManager: walletManagerHandler{},
	})
}

type addr struct{ raw string }

func (a addr) String() string        { return a.raw }
func (a addr) Chain() registry.Chain { return registry.ChainAvax }

type addressHandler struct{}

func (addressHandler) FromString(s string) (registry.Address, error) {
	body := strings.TrimPrefix(s, "0x")
	if len(body) != 40 {
		return nil, fmt.Errorf("avax: invalid C-Chain address %q", s)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return nil, fmt.Errorf("avax: invalid C-Chain address %q: %w", s, err)
	}
	return addr{raw: checksumAddress(strings.ToLower(body))}, nil
}

func (addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("avax: invalid public key: %w", err)
	}
	pubKeyBytes := pubKey.SerializeUncompressed()
	hash := keccak256(pubKeyBytes[1:])
	return addr{raw: checksumAddress(hex.EncodeToString(hash[12:]))}, nil
}

func (addressHandler) Equal(a, b registry.Address) bool {
	return strings.EqualFold(a.String(), b.String())
}

func (addressHandler) HashValue(a registry.Address) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(strings.ToLower(a.String())))
	return f.Sum64()
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// checksumAddress applies EIP-55 mixed-case checksumming, the same rule
// internal/chains/ethereum uses (the C-Chain is EVM, so addresses share
// Ethereum's checksum convention).
func checksumAddress(body string) string {
	hash := hex.EncodeToString(keccak256([]byte(body)))
	var b strings.Builder
	b.WriteString("0x")
	for i, c := range body {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
			continue
		}
		if hash[i] >= '8' {
			b.WriteRune(c - ('a' - 'A'))
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

type networkHandler struct{}

func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 && decimalsOffset != 9 && decimalsOffset != 18 {
		return fmt.Errorf("avax: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("avax: empty transaction hash")
	}
	return "0x" + hex.EncodeToString(hash), nil
}

func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	return errs.ErrUnsupported
}

type walletHandler struct{}

func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("avax: missing gas price")
	}
	return registry.FeeBasis{
		PricePerCostFactor: new(big.Int).Set(networkFee),
		CostFactor:         big.NewInt(defaultGasLimit),
	}, nil
}

type walletManagerHandler struct{}

// Sign returns ErrUnsupported: the C-Chain's raw-scalar-over-hash
// signing contract is identical to Ethereum's, but no Avalanche-specific
// signed-transaction example exists in the pack to confirm the wire
// format the resulting signature would be embedded into, so this stays
// the explicit unsupported extension point rather than a copy-pasted
// guess (internal/chains/ripple's `walletManagerHandler.Sign` likewise
// returns ErrUnsupported for a non-EVM chain).
func (walletManagerHandler) Sign(unsignedPayload []byte, seed []byte) ([]byte, error) {
	return nil, errs.ErrUnsupported
}

func (walletManagerHandler) RecoverableAddressLookahead() uint32 { return 1 }

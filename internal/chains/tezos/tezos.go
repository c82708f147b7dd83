// Package tezos registers the handler group for the XTZ chain tag.
// tz1 implicit addresses are base58check(prefix || blake2b-160(pubkey))
// over ed25519 keys; edwards25519 point validation and the blake2b
// hash come from filippo.io/edwards25519 and golang.org/x/crypto/blake2b
// rather than a hand-rolled primitive.
package tezos

import (
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"math/big"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// tz1Prefix is the 3-byte version prefix that base58-encodes to the
// "tz1" string prefix once applied to a 20-byte payload.
var tz1Prefix = []byte{0x06, 0xa1, 0x9f}

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainXtz,
		Network:       networkHandler{},
		Address:       addressHandler{},
		Transfer:      transferHandler{},
		Wallet:        walletHandler{},
		WalletManager: walletManagerHandler{},
	})
}

type addr struct {
	raw string
}

func (a addr) String() string        { return a.raw }
func (a addr) Chain() registry.Chain { return registry.ChainXtz }

type addressHandler struct{}

func (addressHandler) FromString(s string) (registry.Address, error) {
	if _, err := decodeTz1(s); err != nil {
		return nil, fmt.Errorf("tezos: invalid address %q: %w", s, err)
	}
	return addr{raw: s}, nil
}

func (addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	if len(pub) != 32 {
		return nil, fmt.Errorf("tezos: ed25519 public key must be 32 bytes, got %d", len(pub))
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("tezos: invalid ed25519 point: %w", err)
	}
	h, err := blake2b.New(20, nil)
	if err != nil {
		return nil, fmt.Errorf("tezos: blake2b init failed: %w", err)
	}
	h.Write(pub)
	payloadHash := h.Sum(nil)
	return addr{raw: encodeTz1(payloadHash)}, nil
}

func (addressHandler) Equal(a, b registry.Address) bool { return a.String() == b.String() }

func (addressHandler) HashValue(a registry.Address) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(a.String()))
	return f.Sum64()
}

func encodeTz1(payloadHash []byte) string {
	versioned := append(append([]byte{}, tz1Prefix...), payloadHash...)
	checksum := doubleSHA256(versioned)[:4]
	return base58.Encode(append(versioned, checksum...))
}

func decodeTz1(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(tz1Prefix)+20+4 {
		return nil, fmt.Errorf("wrong payload length %d", len(raw))
	}
	versioned, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	for i, b := range tz1Prefix {
		if versioned[i] != b {
			return nil, fmt.Errorf("wrong address prefix")
		}
	}
	want := doubleSHA256(versioned)[:4]
	for i := range checksum {
		if checksum[i] != want[i] {
			return nil, fmt.Errorf("checksum mismatch")
		}
	}
	return versioned[len(tz1Prefix):], nil
}

func doubleSHA256(b []byte) []byte {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

type networkHandler struct{}

// ValidateFeeUnit accepts only mutez (decimalsOffset 0), XTZ's base unit.
func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 {
		return fmt.Errorf("tezos: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("tezos: empty operation hash")
	}
	return base58.Encode(hash), nil
}

// ValidateAttribute rejects every attribute: Tezos transfers carry no
// destination/source tag.
func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	return errs.ErrUnsupported
}

type walletHandler struct{}

// EstimateFee treats networkFee as mutez-per-gas-unit and applies a
// typical simple-transfer gas cost as the cost factor.
func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("tezos: missing gas price")
	}
	return registry.FeeBasis{
		PricePerCostFactor: new(big.Int).Set(networkFee),
		CostFactor:         big.NewInt(1420),
	}, nil
}

type walletManagerHandler struct{}

func (walletManagerHandler) Sign(unsignedPayload []byte, seed []byte) ([]byte, error) {
	return nil, errs.ErrUnsupported
}

func (walletManagerHandler) RecoverableAddressLookahead() uint32 { return 1 }

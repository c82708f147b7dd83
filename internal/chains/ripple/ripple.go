// Package ripple registers the handler group for the XRP chain tag.
// Addresses are base58check over the ripple alphabet, which differs
// from the bitcoin alphabet github.com/mr-tron/base58 encodes with, so
// the base58 math itself is implemented directly against that
// alphabet (see DESIGN.md); the account-id hashing it wraps is
// grounded in the same RIPEMD160(SHA256(pubkey)) payload shape
// internal/wallet uses for bitcoin-family P2PKH, via
// golang.org/x/crypto/ripemd160.
package ripple

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for ripple account-id hashing

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

const accountIDVersion = 0x00

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainXrp,
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
func (a addr) Chain() registry.Chain { return registry.ChainXrp }

type addressHandler struct{}

func (addressHandler) FromString(s string) (registry.Address, error) {
	if _, err := decodeAccountID(s); err != nil {
		return nil, fmt.Errorf("ripple: invalid address %q: %w", s, err)
	}
	return addr{raw: s}, nil
}

func (addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("ripple: invalid public key: %w", err)
	}
	accountID := hash160(pubKey.SerializeCompressed())
	return addr{raw: encodeAccountID(accountID)}, nil
}

func (addressHandler) Equal(a, b registry.Address) bool { return a.String() == b.String() }

func (addressHandler) HashValue(a registry.Address) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(a.String()))
	return f.Sum64()
}

func hash160(b []byte) []byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:])
	return r.Sum(nil)
}

func encodeAccountID(accountID []byte) string {
	payload := append([]byte{accountIDVersion}, accountID...)
	checksum := doubleSHA256(payload)[:4]
	return base58Encode(append(payload, checksum...))
}

func decodeAccountID(s string) ([]byte, error) {
	raw, err := base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 1+20+4 {
		return nil, fmt.Errorf("ripple: wrong payload length %d", len(raw))
	}
	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	if payload[0] != accountIDVersion {
		return nil, fmt.Errorf("ripple: wrong address version 0x%02x", payload[0])
	}
	want := doubleSHA256(payload)[:4]
	for i := range checksum {
		if checksum[i] != want[i] {
			return nil, fmt.Errorf("ripple: checksum mismatch")
		}
	}
	return payload[1:], nil
}

// base58Encode encodes data in the ripple alphabet, preserving leading
// zero bytes as leading rippleAlphabet[0] characters the way every
// base58check variant does.
func base58Encode(data []byte) string {
	zero := rippleAlphabet[0]
	leadingZeros := 0
	for leadingZeros < len(data) && data[leadingZeros] == 0 {
		leadingZeros++
	}

	num := new(big.Int).SetBytes(data)
	base := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		out = append(out, rippleAlphabet[mod.Int64()])
	}
	for i := 0; i < leadingZeros; i++ {
		out = append(out, zero)
	}
	reverse(out)
	return string(out)
}

func base58Decode(s string) ([]byte, error) {
	zero := rippleAlphabet[0]
	leadingZeros := 0
	for leadingZeros < len(s) && s[leadingZeros] == zero {
		leadingZeros++
	}

	num := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(rippleAlphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("ripple: invalid base58 character %q", s[i])
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(idx)))
	}

	body := num.Bytes()
	out := make([]byte, leadingZeros+len(body))
	copy(out[leadingZeros:], body)
	return out, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func doubleSHA256(b []byte) []byte {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

type networkHandler struct{}

// ValidateFeeUnit accepts only drops (decimalsOffset 0), XRP's base unit.
func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 {
		return fmt.Errorf("ripple: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("ripple: empty transaction hash")
	}
	return strings.ToUpper(hex.EncodeToString(hash)), nil
}

// ValidateAttribute validates the optional DestinationTag: a required
// uint32 when present, used to route payments into a shared deposit
// address (e.g. an exchange hot wallet).
func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	if key != "DestinationTag" {
		return errs.ErrUnsupported
	}
	if value == nil {
		if required {
			return errs.New(errs.KindAttributeRequired, fmt.Errorf("ripple: DestinationTag required"))
		}
		return nil
	}
	if _, err := strconv.ParseUint(*value, 10, 32); err != nil {
		return errs.New(errs.KindAttributeMismatched, fmt.Errorf("ripple: DestinationTag must be a uint32: %w", err))
	}
	return nil
}

type walletHandler struct{}

// EstimateFee treats networkFee as the flat per-transaction drop cost
// (XRP's reference fee model has no per-byte component).
func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("ripple: missing reference fee")
	}
	return registry.FeeBasis{
		PricePerCostFactor: new(big.Int).Set(networkFee),
		CostFactor:         big.NewInt(1),
	}, nil
}

type walletManagerHandler struct{}

func (walletManagerHandler) Sign(unsignedPayload []byte, seed []byte) ([]byte, error) {
	return nil, errs.ErrUnsupported
}

func (walletManagerHandler) RecoverableAddressLookahead() uint32 { return 1 }

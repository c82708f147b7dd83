// Package xlm registers the handler group for the XLM (Stellar) chain
// tag: StrKey account addresses ("G..." ed25519 public keys), version
// byte 6 << 3, base32(RFC4648, no padding) over [version || payload ||
// crc16]. No Stellar SDK exists anywhere in the retrieval pack, so the
// StrKey codec is implemented directly against the public spec rather
// than adapted from an example; crc16-xmodem and base32 are treated as
// checksum/encoding conventions (like internal/core/account's
// hand-rolled Fletcher-16), not cryptographic primitives needing an
// external library.
package xlm

import (
	"encoding/base32"
	"fmt"
	"hash/fnv"
	"math/big"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// versionByteAccountID is StrKey's version byte for an ed25519 public
// key ("G..." addresses): 6 << 3.
const versionByteAccountID = 6 << 3

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainXlm,
		Network:       networkHandler{},
		Address:       addressHandler{},
		Transfer:      transferHandler{},
		Wallet:        walletHandler{},
		WalletManager: walletManagerHandler{},
	})
}

type addr struct{ raw string }

func (a addr) String() string        { return a.raw }
func (a addr) Chain() registry.Chain { return registry.ChainXlm }

type addressHandler struct{}

func (addressHandler) FromString(s string) (registry.Address, error) {
	if _, err := decodeStrKey(s); err != nil {
		return nil, err
	}
	return addr{raw: s}, nil
}

// FromPublicKey encodes a raw 32-byte ed25519 public key as a StrKey
// "G..." account address.
func (addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	if len(pub) != 32 {
		return nil, fmt.Errorf("xlm: ed25519 public key must be 32 bytes, got %d", len(pub))
	}
	return addr{raw: encodeStrKey(pub)}, nil
}

func (addressHandler) Equal(a, b registry.Address) bool { return a.String() == b.String() }

func (addressHandler) HashValue(a registry.Address) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(a.String()))
	return f.Sum64()
}

var base32Encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// encodeStrKey builds a StrKey address: base32(version || payload || crc16).
func encodeStrKey(payload []byte) string {
	body := make([]byte, 0, 1+len(payload)+2)
	body = append(body, versionByteAccountID)
	body = append(body, payload...)
	sum := crc16XModem(body)
	body = append(body, byte(sum), byte(sum>>8))
	return base32Encoding.EncodeToString(body)
}

// decodeStrKey validates a StrKey address's version byte and checksum,
// returning the 32-byte ed25519 public key payload.
func decodeStrKey(s string) ([]byte, error) {
	raw, err := base32Encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("xlm: invalid StrKey address %q: %w", s, err)
	}
	if len(raw) != 1+32+2 {
		return nil, fmt.Errorf("xlm: invalid StrKey address length %q", s)
	}
	if raw[0] != versionByteAccountID {
		return nil, fmt.Errorf("xlm: unsupported StrKey version byte %d", raw[0])
	}
	payload := raw[1:33]
	want := uint16(raw[33]) | uint16(raw[34])<<8
	got := crc16XModem(raw[:33])
	if want != got {
		return nil, fmt.Errorf("xlm: StrKey checksum mismatch for %q", s)
	}
	return payload, nil
}

// crc16XModem implements the CRC-16/XMODEM variant StrKey specifies
// (poly 0x1021, init 0x0000, no reflection, no final xor).
func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

type networkHandler struct{}

// ValidateFeeUnit accepts only stroops (decimalsOffset 0), XLM's base unit.
func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 {
		return fmt.Errorf("xlm: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("xlm: empty transaction hash")
	}
	return fmt.Sprintf("%x", hash), nil
}

// ValidateAttribute validates the optional Memo: Stellar payments carry a
// free-form text memo up to 28 bytes, never required.
func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	if key != "Memo" {
		return errs.ErrUnsupported
	}
	if value != nil && len(*value) > 28 {
		return errs.New(errs.KindAttributeMismatched, fmt.Errorf("xlm: memo exceeds 28 bytes"))
	}
	return nil
}

type walletHandler struct{}

// EstimateFee treats networkFee as the stroops-per-operation base fee
// (Stellar's fee schedule), with cost factor fixed at one operation for
// a plain payment.
func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("xlm: missing base fee")
	}
	return registry.FeeBasis{
		PricePerCostFactor: new(big.Int).Set(networkFee),
		CostFactor:         big.NewInt(1),
	}, nil
}

type walletManagerHandler struct{}

// Sign returns ErrUnsupported: Stellar's XDR transaction envelope and
// ed25519-over-network-id signature hint have no grounded example in
// the pack, so this stays the explicit unsupported extension point
// rather than an invented wire format.
func (walletManagerHandler) Sign(unsignedPayload []byte, seed []byte) ([]byte, error) {
	return nil, errs.ErrUnsupported
}

func (walletManagerHandler) RecoverableAddressLookahead() uint32 { return 1 }

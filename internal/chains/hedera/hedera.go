// Package hedera registers the handler group for the HBAR chain tag.
// Hedera account identity is shard.realm.num, assigned by network
// consensus rather than derived locally the way UTXO/account-keccak
// chains derive addresses; there is no ecosystem Hedera SDK in the
// retrieval pack, so identifier parsing/formatting stays on the
// standard library (see DESIGN.md). Public-key-derived addresses use
// Hedera's alias-account convention, approximated here by a
// sha256-derived placeholder shard.realm.num until a real
// CryptoCreate/auto-association response assigns one.
package hedera

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/big"
	"strconv"
	"strings"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainHbar,
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
func (a addr) Chain() registry.Chain { return registry.ChainHbar }

type addressHandler struct{}

func (addressHandler) FromString(s string) (registry.Address, error) {
	if _, _, _, err := parseAccountID(s); err != nil {
		return nil, err
	}
	return addr{raw: s}, nil
}

// FromPublicKey derives a placeholder account id from the public key's
// digest; the real account number is assigned once the CryptoCreate
// transaction carrying this key reaches consensus.
func (addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	if len(pub) == 0 {
		return nil, fmt.Errorf("hedera: empty public key")
	}
	digest := sha256.Sum256(pub)
	num := binary.BigEndian.Uint64(digest[:8])
	return addr{raw: fmt.Sprintf("0.0.%d", num)}, nil
}

func (addressHandler) Equal(a, b registry.Address) bool { return a.String() == b.String() }

func (addressHandler) HashValue(a registry.Address) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(a.String()))
	return f.Sum64()
}

func parseAccountID(s string) (shard, realm, num uint64, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("hedera: malformed account id %q", s)
	}
	shard, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("hedera: bad shard in %q: %w", s, err)
	}
	realm, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("hedera: bad realm in %q: %w", s, err)
	}
	num, err = strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("hedera: bad account num in %q: %w", s, err)
	}
	return shard, realm, num, nil
}

type networkHandler struct{}

// ValidateFeeUnit accepts only tinybar (decimalsOffset 0), HBAR's base unit.
func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 {
		return fmt.Errorf("hedera: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

// DeriveIdentifier builds a transaction-id-shaped identifier
// (shard.realm.num-seconds-nanos) deterministically from the hash,
// since Hedera identifies transfers by transaction id rather than a
// bare content hash.
func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("hedera: empty transaction hash")
	}
	stretched := hash
	for len(stretched) < 20 {
		next := sha256.Sum256(stretched)
		stretched = append(stretched, next[:]...)
	}
	num := binary.BigEndian.Uint64(stretched[:8])
	seconds := int64(binary.BigEndian.Uint64(stretched[8:16])) % 2_000_000_000
	if seconds < 0 {
		seconds = -seconds
	}
	nanos := binary.BigEndian.Uint32(stretched[16:20]) % 1_000_000_000
	return fmt.Sprintf("0.0.%d-%d-%d", num, seconds, nanos), nil
}

// ValidateAttribute validates the optional Memo: Hedera transfers carry
// a free-form memo up to 100 bytes, never required.
func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	if key != "Memo" {
		return errs.ErrUnsupported
	}
	if value != nil && len(*value) > 100 {
		return errs.New(errs.KindAttributeMismatched, fmt.Errorf("hedera: memo exceeds 100 bytes"))
	}
	return nil
}

type walletHandler struct{}

// EstimateFee treats networkFee as the flat tinybar cost of a
// CryptoTransfer transaction (Hedera's fee schedule has no per-byte
// network component for a simple transfer).
func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("hedera: missing fee schedule cost")
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

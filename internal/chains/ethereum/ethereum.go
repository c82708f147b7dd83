// Package ethereum registers the handler group for the ETH chain tag:
// Keccak-256/EIP-55 address derivation grounded in internal/wallet's
// PublicKeyToEVMAddress/ChecksumAddress, with fee estimation expressed
// as gas price * gas limit rather than a fixed vsize.
package ethereum

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// defaultGasLimit is the cost factor for a plain ETH transfer.
const defaultGasLimit = 21000

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainEth,
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
func (a addr) Chain() registry.Chain { return registry.ChainEth }

type addressHandler struct{}

func (addressHandler) FromString(s string) (registry.Address, error) {
	if !validAddress(s) {
		return nil, fmt.Errorf("ethereum: invalid address %q", s)
	}
	return addr{raw: checksumAddress(strings.TrimPrefix(s, "0x"))}, nil
}

func (addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("ethereum: invalid public key: %w", err)
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

func validAddress(address string) bool {
	address = strings.TrimPrefix(address, "0x")
	if len(address) != 40 {
		return false
	}
	_, err := hex.DecodeString(address)
	return err == nil
}

// checksumAddress applies EIP-55 mixed-case checksumming to a hex
// address body (no 0x prefix).
func checksumAddress(addr string) string {
	addr = strings.ToLower(addr)
	hash := hex.EncodeToString(keccak256([]byte(addr)))

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range addr {
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

// ValidateFeeUnit accepts wei (0), gwei (9) or ETH (18) as the fee unit's
// decimal offset from ETH's base unit.
func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 && decimalsOffset != 9 && decimalsOffset != 18 {
		return fmt.Errorf("ethereum: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("ethereum: empty transaction hash")
	}
	return "0x" + hex.EncodeToString(hash), nil
}

// ValidateAttribute rejects every attribute: plain ETH transfers carry no
// destination/source tag (ERC-20 memo conventions are out of scope here).
func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	return errs.ErrUnsupported
}

type walletHandler struct{}

func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("ethereum: missing gas price")
	}
	return registry.FeeBasis{
		PricePerCostFactor: new(big.Int).Set(networkFee),
		CostFactor:         big.NewInt(defaultGasLimit),
	}, nil
}

type walletManagerHandler struct{}

// Sign signs unsignedPayload (a 32-byte transaction or EIP-712 hash) with
// seed as the raw secp256k1 private scalar, returning the 65-byte
// Ethereum signature r || s || v (v is 0 or 1). It does not assemble or
// RLP-encode the surrounding transaction.
func (walletManagerHandler) Sign(unsignedPayload []byte, seed []byte) ([]byte, error) {
	if len(unsignedPayload) != 32 {
		return nil, fmt.Errorf("ethereum: hash must be 32 bytes, got %d", len(unsignedPayload))
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("ethereum: private key seed must be 32 bytes, got %d", len(seed))
	}
	privKey, _ := btcec.PrivKeyFromBytes(seed)
	sig := ecdsa.SignCompact(privKey, unsignedPayload, false)
	if len(sig) != 65 {
		return nil, fmt.Errorf("ethereum: unexpected signature length %d", len(sig))
	}
	// SignCompact returns v || r || s with v in {27,28}; Ethereum wants
	// r || s || v with v in {0,1}.
	out := make([]byte, 65)
	copy(out[:64], sig[1:65])
	out[64] = sig[0] - 27
	return out, nil
}

func (walletManagerHandler) RecoverableAddressLookahead() uint32 { return 1 }

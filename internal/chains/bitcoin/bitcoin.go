// Package bitcoin registers the handler group for the BTC chain tag:
// native SegWit address derivation/parsing via btcutil, grounded in
// internal/wallet's DeriveAddressFromKey/ParseAddress.
package bitcoin

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// estimatedVBytesP2WPKH is the typical size of a 1-in/1-out native
// SegWit transaction, used as the cost factor for fee estimation.
const estimatedVBytesP2WPKH = 110

func init() {
	registry.Register(&registry.HandlerGroup{
		Chain:         registry.ChainBtc,
		Network:       networkHandler{},
		Address:       addressHandler{params: &chaincfg.MainNetParams},
		Transfer:      transferHandler{},
		Wallet:        walletHandler{},
		WalletManager: walletManagerHandler{},
		Transaction:   transactionHandler{params: &chaincfg.MainNetParams},
	})
}

// addr is the chain-local address value satisfying registry.Address.
type addr struct {
	raw string
}

func (a addr) String() string         { return a.raw }
func (a addr) Chain() registry.Chain  { return registry.ChainBtc }

type addressHandler struct {
	params *chaincfg.Params
}

func (h addressHandler) FromString(s string) (registry.Address, error) {
	if _, err := btcutil.DecodeAddress(s, h.params); err != nil {
		return nil, fmt.Errorf("bitcoin: invalid address %q: %w", s, err)
	}
	return addr{raw: s}, nil
}

func (h addressHandler) FromPublicKey(pub []byte) (registry.Address, error) {
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: invalid public key: %w", err)
	}
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	a, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, h.params)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: address derivation failed: %w", err)
	}
	return addr{raw: a.EncodeAddress()}, nil
}

func (h addressHandler) Equal(a, b registry.Address) bool {
	return a.String() == b.String()
}

func (h addressHandler) HashValue(a registry.Address) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(a.String()))
	return f.Sum64()
}

type networkHandler struct{}

// ValidateFeeUnit rejects a fee unit that is not denominated in satoshis
// (decimalsOffset 0) or whole bitcoin (decimalsOffset 8).
func (networkHandler) ValidateFeeUnit(decimalsOffset int32) error {
	if decimalsOffset != 0 && decimalsOffset != 8 {
		return fmt.Errorf("bitcoin: unsupported fee unit decimals %d", decimalsOffset)
	}
	return nil
}

type transferHandler struct{}

// DeriveIdentifier returns the hex-encoded transaction hash; Bitcoin's
// transfer identifier is the txid itself, no chain-specific remapping.
func (transferHandler) DeriveIdentifier(hash []byte) (string, error) {
	if len(hash) == 0 {
		return "", fmt.Errorf("bitcoin: empty transaction hash")
	}
	return hex.EncodeToString(hash), nil
}

// ValidateAttribute rejects every attribute: Bitcoin transfers carry no
// destination/source tag.
func (transferHandler) ValidateAttribute(key string, value *string, required bool) error {
	return errs.ErrUnsupported
}

type walletHandler struct{}

// EstimateFee multiplies the caller-supplied fee rate (satoshis per
// vbyte, carried in networkFee) by the estimated vsize of a 1-in/1-out
// native SegWit spend.
func (walletHandler) EstimateFee(cookie string, target registry.Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (registry.FeeBasis, error) {
	if networkFee == nil {
		return registry.FeeBasis{}, fmt.Errorf("bitcoin: missing fee rate")
	}
	return registry.FeeBasis{
		PricePerCostFactor: new(big.Int).Set(networkFee),
		CostFactor:         big.NewInt(estimatedVBytesP2WPKH),
	}, nil
}

type walletManagerHandler struct{}

// sigHashAllByte is the legacy SIGHASH_ALL marker appended to a DER
// signature, matching the byte txscript.SignatureScript appends after
// the raw ECDSA signature for a P2PKH/P2WPKH spend.
const sigHashAllByte = 0x01

// Sign produces a DER-encoded ECDSA signature with a trailing SIGHASH_ALL
// byte over unsignedPayload (the transaction's sighash), using seed as
// the raw secp256k1 private scalar. Building and assembling the
// surrounding transaction (input selection, witness/script placement) is
// a per-chain transaction-builder concern outside this handler's vtable.
func (walletManagerHandler) Sign(unsignedPayload []byte, seed []byte) ([]byte, error) {
	if len(unsignedPayload) != 32 {
		return nil, fmt.Errorf("bitcoin: sighash must be 32 bytes, got %d", len(unsignedPayload))
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("bitcoin: private key seed must be 32 bytes, got %d", len(seed))
	}
	privKey, _ := btcec.PrivKeyFromBytes(seed)
	sig := ecdsa.Sign(privKey, unsignedPayload)
	return append(sig.Serialize(), sigHashAllByte), nil
}

// RecoverableAddressLookahead is the BIP-44-style gap limit.
func (walletManagerHandler) RecoverableAddressLookahead() uint32 { return 20 }

type transactionHandler struct {
	params *chaincfg.Params
}

// DecodeTransaction deserializes a raw wire-format transaction and
// extracts the first output's address and value, matching the shape
// internal/wallet/tx.go assembles transactions with
// (wire.MsgTx + txscript). A UTXO transaction's true "source" address
// requires resolving its inputs' previous outputs, which is chain-state
// this handler does not have offline; recovery therefore reports the
// first payment output only, sufficient to reconstruct a Received-style
// transfer for the wallet's own recoverable addresses.
func (h transactionHandler) DecodeTransaction(raw []byte) (registry.DecodedTransaction, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return registry.DecodedTransaction{}, fmt.Errorf("bitcoin: decode transaction: %w", err)
	}
	if len(tx.TxOut) == 0 {
		return registry.DecodedTransaction{}, fmt.Errorf("bitcoin: transaction has no outputs")
	}
	hash := tx.TxHash()
	out := tx.TxOut[0]
	var target string
	if _, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, h.params); err == nil && len(addrs) > 0 {
		target = addrs[0].EncodeAddress()
	}
	return registry.DecodedTransaction{
		Hash:          hash[:],
		TargetAddress: target,
		Amount:        big.NewInt(out.Value),
	}, nil
}

// Package registry implements the process-wide handler table:
// a lookup keyed by chain tag yielding a vtable of function groups per
// entity kind. It mirrors internal/chain params table
// (Register/Get/List over a symbol) generalized from "chain parameters" to
// "chain behavior".
package registry

import (
	"math/big"
)

// Chain is the tagged variant enumerating every supported blockchain.
type Chain int

const (
	ChainUnknown Chain = iota
	ChainBtc
	ChainBch
	ChainBsv
	ChainLtc
	ChainDoge
	ChainEth
	ChainXrp
	ChainHbar
	ChainXtz
	ChainXlm
	ChainAvax

	chainCount
)

func (c Chain) String() string {
	switch c {
	case ChainBtc:
		return "BTC"
	case ChainBch:
		return "BCH"
	case ChainBsv:
		return "BSV"
	case ChainLtc:
		return "LTC"
	case ChainDoge:
		return "DOGE"
	case ChainEth:
		return "ETH"
	case ChainXrp:
		return "XRP"
	case ChainHbar:
		return "HBAR"
	case ChainXtz:
		return "XTZ"
	case ChainXlm:
		return "XLM"
	case ChainAvax:
		return "AVAX"
	default:
		return "UNKNOWN"
	}
}

// AddressHandler provides address allocation/compare/stringify for a chain.
type AddressHandler interface {
	FromString(s string) (Address, error)
	FromPublicKey(pub []byte) (Address, error)
	Equal(a, b Address) bool
	HashValue(a Address) uint64
}

// Address is the minimal cross-chain address contract C3 dispatches
// through. Concrete address value types live in internal/core/address.
type Address interface {
	String() string
	Chain() Chain
}

// NetworkHandler supplies chain-specific network behavior (fee parsing,
// verified-block-hash format checks).
type NetworkHandler interface {
	ValidateFeeUnit(decimalsOffset int32) error
}

// TransferHandler provides chain-specific transfer hooks: identifier
// derivation (when it is not simply the tx hash, e.g. Hedera) and
// attribute validation.
type TransferHandler interface {
	// DeriveIdentifier computes a transfer's UIDS from its hash, when the
	// chain's identifier format differs from a bare hash encoding.
	DeriveIdentifier(hash []byte) (string, error)
	ValidateAttribute(key string, value *string, required bool) error
}

// WalletHandler computes chain-specific balance/fee adjustments.
type WalletHandler interface {
	// EstimateFee computes a fee-basis for sending amount to target.
	EstimateFee(cookie string, target Address, amount *big.Int, networkFee *big.Int, attrs map[string]string) (FeeBasis, error)
}

// WalletManagerHandler drives per-chain signing and submission.
type WalletManagerHandler interface {
	Sign(unsignedPayload []byte, seed []byte) (signature []byte, err error)
	RecoverableAddressLookahead() uint32 // gap limit
}

// SweeperHandler implements paper-wallet/private-key sweeps (optional).
type SweeperHandler interface {
	Sweep(privateKey []byte, target Address) (txBytes []byte, err error)
}

// PaperWalletHandler exports a chain's key material in paper-wallet form
// (optional).
type PaperWalletHandler interface {
	ExportPaperWallet(privateKey []byte) (string, error)
}

// PaymentProtocolHandler parses/produces payment-protocol requests
// (optional, e.g. BIP-70 style flows).
type PaymentProtocolHandler interface {
	ParseRequest(raw []byte) (target Address, amount *big.Int, err error)
}

// DecodedTransaction is the minimal address/amount data a
// TransactionHandler extracts from a UTXO-style bundle's raw
// serialization, sufficient to reconstruct a Transfer without a remote
// round trip.
type DecodedTransaction struct {
	Hash          []byte
	TargetAddress string
	Amount        *big.Int
}

// TransactionHandler decodes a persisted transaction bundle's raw bytes
// for UTXO-style chains (the account-style equivalent is the transfer
// bundle itself, which already carries transfer-shaped fields).
type TransactionHandler interface {
	DecodeTransaction(raw []byte) (DecodedTransaction, error)
}

// FeeBasis is the opaque chain-specific (price-per-cost-factor, cost-factor)
// pair from which a fee amount can be computed (GLOSSARY).
type FeeBasis struct {
	PricePerCostFactor *big.Int
	CostFactor *big.Int
}

// Amount computes price * costFactor.
func (f FeeBasis) Amount() *big.Int {
	if f.PricePerCostFactor == nil || f.CostFactor == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(f.PricePerCostFactor, f.CostFactor)
}

// HandlerGroup bundles every optional handler group for one chain. A nil
// field means "not supported" — callers see ErrUnsupported, never a
// panic.
type HandlerGroup struct {
	Chain Chain
	Network NetworkHandler
	Address AddressHandler
	Transfer TransferHandler
	Wallet WalletHandler
	WalletManager WalletManagerHandler
	Sweeper SweeperHandler
	PaperWallet PaperWalletHandler
	PaymentProtocol PaymentProtocolHandler
	Transaction TransactionHandler
}

var table [chainCount]*HandlerGroup

// Register installs the handler group for a chain tag. Called from each
// internal/chains/<chain> package's init. No mutation is expected after
// process init.
func Register(group *HandlerGroup) {
	if group == nil || group.Chain <= ChainUnknown || group.Chain >= chainCount {
		panic("registry: invalid handler group registration")
	}
	table[group.Chain] = group
}

// Lookup returns the handler group for a chain tag, or (nil, false) if no
// chain has registered one.
func Lookup(c Chain) (*HandlerGroup, bool) {
	if c <= ChainUnknown || c >= chainCount {
		return nil, false
	}
	g := table[c]
	return g, g != nil
}

// Supported reports every chain tag with a registered handler group.
func Supported() []Chain {
	out := make([]Chain, 0, chainCount)
	for i := ChainBtc; i < chainCount; i++ {
		if table[i] != nil {
			out = append(out, i)
		}
	}
	return out
}

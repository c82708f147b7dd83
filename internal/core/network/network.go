// Package network implements the immutable network descriptor plus the
// mutable height/fees/currency-association set. It follows
// internal/chain.Params compiled-in descriptor table,
// generalized from per-chain static parameters to the mutable
// network model with an event-emitting lock.
package network

import (
	"sync"
	"time"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/event"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// AddressScheme identifies a supported address encoding for a network
// (e.g. legacy vs. segwit vs. EVM).
type AddressScheme string

// SyncMode selects how a wallet manager reconciles remote state.
type SyncMode string

const (
	SyncModeAPIOnly SyncMode = "api_only"
	SyncModeAPIWithP2P SyncMode = "api_send_p2p"
	SyncModeP2PWithAPI SyncMode = "p2p_sync_api"
	SyncModeP2POnly SyncMode = "p2p_only"
)

// FeeTier is one entry in a network's fee-tier list.
type FeeTier struct {
	Amount currency.Amount
	Tier string
	ExpectedConfirmation time.Duration
}

// Descriptor is the compiled-in, immutable portion of a network.
type Descriptor struct {
	Chain registry.Chain
	UIDS string
	Name string
	Kind string // "mainnet" | "testnet"
	IsMainnet bool
	InitialHeight uint64
	Confirmations uint32
	ConfirmationPeriod time.Duration
	DefaultFees []FeeTier
	DefaultCurrency currency.Currency
	Associations []currency.Association
	AddressSchemes []AddressScheme
	DefaultAddrScheme AddressScheme
	SyncModes []SyncMode
	DefaultSyncMode SyncMode
}

// Network is a Descriptor plus its mutable state, guarded by a single
// lock. Network is a sibling leaf in the lock-order hierarchy:
// it is never held across System/WalletManager/Wallet/Transfer locks.
type Network struct {
	Descriptor

	mu sync.RWMutex
	height uint64
	verifiedBlockHash string
	fees []FeeTier
	associations []currency.Association

	loop *event.Loop // owner of Changed/FeesUpdated/CurrenciesUpdated events
}

// New constructs a Network from its compiled-in descriptor.
func New(d Descriptor, loop *event.Loop) *Network {
	n := &Network{
		Descriptor: d,
		height: d.InitialHeight,
		fees: append([]FeeTier(nil), d.DefaultFees...),
		associations: append([]currency.Association(nil), d.Associations...),
		loop: loop,
	}
	return n
}

// Height returns the current block height.
func (n *Network) Height() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height
}

// SetHeight updates the block height, emitting a Changed event only when
// the value actually differs.
func (n *Network) SetHeight(height uint64, post func(old, new uint64)) {
	n.mu.Lock()
	old := n.height
	if old == height {
		n.mu.Unlock()
		return
	}
	n.height = height
	n.mu.Unlock()
	if post != nil {
		post(old, height)
	}
}

// VerifiedBlockHash returns the last verified block hash string, if any.
func (n *Network) VerifiedBlockHash() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.verifiedBlockHash
}

// SetVerifiedBlockHash records a new verified block hash under the
// network lock. Observers learn of the change via the network listener,
// not a return value.
func (n *Network) SetVerifiedBlockHash(hash string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifiedBlockHash = hash
}

// Fees returns a snapshot of the current fee-tier list.
func (n *Network) Fees() []FeeTier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]FeeTier(nil), n.fees...)
}

// SetFees atomically replaces the fee-tier list under the network lock and
// emits a FeesUpdated event.
func (n *Network) SetFees(fees []FeeTier, postFeesUpdated func()) {
	n.mu.Lock()
	n.fees = append([]FeeTier(nil), fees...)
	n.mu.Unlock()
	if postFeesUpdated != nil {
		postFeesUpdated()
	}
}

// Associations returns a snapshot of the currency association set.
func (n *Network) Associations() []currency.Association {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]currency.Association(nil), n.associations...)
}

// FindAssociation looks up an existing association by currency UIDS.
func (n *Network) FindAssociation(uids string) (currency.Association, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, a := range n.associations {
		if a.Currency.UIDS == uids {
			return a, true
		}
	}
	return currency.Association{}, false
}

// InstallCurrency resolves and installs a currency bundle's association
// into the network's monotonically growing association set.
// Returns true if a new association was installed.
func (n *Network) InstallCurrency(id, name, code, ctype, issuer string, denoms []currency.Denomination) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, a := range n.associations {
		if a.Currency.UIDS == id {
			return false
		}
	}

	assoc := currency.ResolveAssociation(nil, id, name, code, ctype, issuer, denoms)
	n.associations = append(n.associations, assoc)
	return true
}

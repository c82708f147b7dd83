// Package address implements the polymorphic address value:
// constructed by a network-specific string parser or key-derivation step,
// with equality and stringification dispatched through the chain's address
// handler and a precomputed hash for use in sets.
package address

import (
	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// Address is a concrete cross-chain address: a chain tag, the raw string
// form, and a precomputed hash (so addresses can key a Go map/set without
// re-hashing on every lookup).
type Address struct {
	chain registry.Chain
	raw string
	hashValue uint64
}

// Chain returns the owning chain tag.
func (a Address) Chain() registry.Chain { return a.chain }

// String returns the address's canonical string form.
func (a Address) String() string { return a.raw }

// HashValue returns the precomputed hash used for set membership.
func (a Address) HashValue() uint64 { return a.hashValue }

// FromString parses a string address for the given chain, dispatching
// through that chain's registered AddressHandler.
func FromString(c registry.Chain, s string) (Address, error) {
	group, ok := registry.Lookup(c)
	if !ok || group.Address == nil {
		return Address{}, errs.ErrUnsupported
	}
	parsed, err := group.Address.FromString(s)
	if err != nil {
		return Address{}, err
	}
	return Address{chain: c, raw: parsed.String(), hashValue: group.Address.HashValue(parsed)}, nil
}

// FromPublicKey derives an address from a public key for the given chain.
func FromPublicKey(c registry.Chain, pub []byte) (Address, error) {
	group, ok := registry.Lookup(c)
	if !ok || group.Address == nil {
		return Address{}, errs.ErrUnsupported
	}
	derived, err := group.Address.FromPublicKey(pub)
	if err != nil {
		return Address{}, err
	}
	return Address{chain: c, raw: derived.String(), hashValue: group.Address.HashValue(derived)}, nil
}

// Equal compares two addresses for equality, dispatching through the
// owning chain's handler when both sides agree on chain; addresses from
// different chains are never equal.
func Equal(a, b Address) bool {
	if a.chain != b.chain {
		return false
	}
	group, ok := registry.Lookup(a.chain)
	if !ok || group.Address == nil {
		return a.raw == b.raw
	}
	pa, errA := group.Address.FromString(a.raw)
	pb, errB := group.Address.FromString(b.raw)
	if errA != nil || errB != nil {
		return a.raw == b.raw
	}
	return group.Address.Equal(pa, pb)
}

// Package config provides the compiled-in network and currency descriptor
// table for the wallet engine. ALL chain-specific constants (decimals,
// confirmations, default endpoints) MUST be defined here rather than
// scattered across internal/chains and internal/core.
package config

import "github.com/klingon-exchange/walletcore/internal/core/registry"

// NetworkType distinguishes a chain's production network from its public
// test network.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// CurrencyDescriptor is the compiled-in definition of a chain's native
// currency: its display units and the handler registry tag that resolves
// its address/transfer/wallet behavior.
type CurrencyDescriptor struct {
	UIDS     string // e.g. "bitcoin-mainnet:__native__"
	Symbol   string // e.g. "BTC"
	Name     string // e.g. "Bitcoin"
	Chain    registry.Chain
	Decimals uint8 // decimal offset of the base display unit, e.g. 8 for BTC
}

// NetworkDescriptor is the compiled-in definition of one network endpoint:
// its confirmation policy, a default QRY endpoint, and the currencies
// installed on it at startup.
type NetworkDescriptor struct {
	Name          string // e.g. "bitcoin-mainnet"
	Chain         registry.Chain
	Type          NetworkType
	Confirmations uint32 // blocks required before a transfer is considered final
	QRYEndpoint   string // default remote-indexer endpoint; "" means caller must configure
	Currencies    []CurrencyDescriptor
}

// Networks lists every compiled-in network, mainnet and testnet
// together. cmd/walletcored installs the networks of one NetworkType,
// selected with NetworksByType.
var Networks = []NetworkDescriptor{
	{
		Name:          "bitcoin-mainnet",
		Chain:         registry.ChainBtc,
		Type:          Mainnet,
		Confirmations: 6,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "bitcoin-mainnet:__native__", Symbol: "BTC", Name: "Bitcoin", Chain: registry.ChainBtc, Decimals: 8},
		},
	},
	{
		Name:          "bitcoin-testnet",
		Chain:         registry.ChainBtc,
		Type:          Testnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "bitcoin-testnet:__native__", Symbol: "BTC", Name: "Bitcoin", Chain: registry.ChainBtc, Decimals: 8},
		},
	},
	{
		Name:          "ethereum-mainnet",
		Chain:         registry.ChainEth,
		Type:          Mainnet,
		Confirmations: 12,
		QRYEndpoint:   "https://eth.llamarpc.com",
		Currencies: []CurrencyDescriptor{
			{UIDS: "ethereum-mainnet:__native__", Symbol: "ETH", Name: "Ethereum", Chain: registry.ChainEth, Decimals: 18},
		},
	},
	{
		Name:          "ethereum-sepolia",
		Chain:         registry.ChainEth,
		Type:          Testnet,
		Confirmations: 2,
		QRYEndpoint:   "https://rpc.sepolia.org",
		Currencies: []CurrencyDescriptor{
			{UIDS: "ethereum-sepolia:__native__", Symbol: "ETH", Name: "Ethereum", Chain: registry.ChainEth, Decimals: 18},
		},
	},
	{
		Name:          "ripple-mainnet",
		Chain:         registry.ChainXrp,
		Type:          Mainnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "ripple-mainnet:__native__", Symbol: "XRP", Name: "XRP", Chain: registry.ChainXrp, Decimals: 6},
		},
	},
	{
		Name:          "ripple-testnet",
		Chain:         registry.ChainXrp,
		Type:          Testnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "ripple-testnet:__native__", Symbol: "XRP", Name: "XRP", Chain: registry.ChainXrp, Decimals: 6},
		},
	},
	{
		Name:          "hedera-mainnet",
		Chain:         registry.ChainHbar,
		Type:          Mainnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "hedera-mainnet:__native__", Symbol: "HBAR", Name: "Hedera", Chain: registry.ChainHbar, Decimals: 8},
		},
	},
	{
		Name:          "hedera-testnet",
		Chain:         registry.ChainHbar,
		Type:          Testnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "hedera-testnet:__native__", Symbol: "HBAR", Name: "Hedera", Chain: registry.ChainHbar, Decimals: 8},
		},
	},
	{
		Name:          "tezos-mainnet",
		Chain:         registry.ChainXtz,
		Type:          Mainnet,
		Confirmations: 2,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "tezos-mainnet:__native__", Symbol: "XTZ", Name: "Tezos", Chain: registry.ChainXtz, Decimals: 6},
		},
	},
	{
		Name:          "tezos-testnet",
		Chain:         registry.ChainXtz,
		Type:          Testnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "tezos-testnet:__native__", Symbol: "XTZ", Name: "Tezos", Chain: registry.ChainXtz, Decimals: 6},
		},
	},
	{
		Name:          "avalanche-mainnet",
		Chain:         registry.ChainAvax,
		Type:          Mainnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "avalanche-mainnet:__native__", Symbol: "AVAX", Name: "Avalanche", Chain: registry.ChainAvax, Decimals: 18},
		},
	},
	{
		Name:          "avalanche-fuji",
		Chain:         registry.ChainAvax,
		Type:          Testnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "avalanche-fuji:__native__", Symbol: "AVAX", Name: "Avalanche", Chain: registry.ChainAvax, Decimals: 18},
		},
	},
	{
		Name:          "stellar-mainnet",
		Chain:         registry.ChainXlm,
		Type:          Mainnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "stellar-mainnet:__native__", Symbol: "XLM", Name: "Stellar Lumens", Chain: registry.ChainXlm, Decimals: 7},
		},
	},
	{
		Name:          "stellar-testnet",
		Chain:         registry.ChainXlm,
		Type:          Testnet,
		Confirmations: 1,
		QRYEndpoint:   "",
		Currencies: []CurrencyDescriptor{
			{UIDS: "stellar-testnet:__native__", Symbol: "XLM", Name: "Stellar Lumens", Chain: registry.ChainXlm, Decimals: 7},
		},
	},
}

// NetworksByType returns every compiled-in network of the given type, in
// declaration order.
func NetworksByType(t NetworkType) []NetworkDescriptor {
	var out []NetworkDescriptor
	for _, n := range Networks {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// NetworkByName returns the compiled-in descriptor for a network name.
func NetworkByName(name string) (NetworkDescriptor, bool) {
	for _, n := range Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkDescriptor{}, false
}

// IsChainSupported reports whether any compiled-in network uses the chain.
func IsChainSupported(c registry.Chain) bool {
	for _, n := range Networks {
		if n.Chain == c {
			return true
		}
	}
	return false
}

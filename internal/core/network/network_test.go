package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func testDescriptor() Descriptor {
	btc := currency.Currency{UIDS: "bitcoin-mainnet:native", Name: "Bitcoin", Code: "BTC", Type: "native"}
	return Descriptor{
		Chain:              registry.ChainBtc,
		UIDS:               "bitcoin-mainnet",
		Name:               "Bitcoin Mainnet",
		Kind:               "mainnet",
		IsMainnet:          true,
		InitialHeight:      0,
		Confirmations:      6,
		ConfirmationPeriod: 10 * time.Minute,
		DefaultCurrency:    btc,
		AddressSchemes:     []AddressScheme{"legacy", "segwit"},
		DefaultAddrScheme:  "segwit",
		SyncModes:          []SyncMode{SyncModeAPIOnly, SyncModeAPIWithP2P},
		DefaultSyncMode:    SyncModeAPIOnly,
	}
}

func TestSetHeightOnlyEmitsOnChange(t *testing.T) {
	n := New(testDescriptor(), nil)

	calls := 0
	n.SetHeight(0, func(old, new uint64) { calls++ })
	require.Equal(t, 0, calls)
	require.EqualValues(t, 0, n.Height())

	n.SetHeight(100, func(old, new uint64) {
		calls++
		require.EqualValues(t, 0, old)
		require.EqualValues(t, 100, new)
	})
	require.Equal(t, 1, calls)
	require.EqualValues(t, 100, n.Height())

	n.SetHeight(100, func(old, new uint64) { calls++ })
	require.Equal(t, 1, calls)
}

func TestInstallCurrencyNeverOverwrites(t *testing.T) {
	n := New(testDescriptor(), nil)

	installed := n.InstallCurrency("usdt:ethereum", "Tether", "USDT", "erc20", "",
		[]currency.Denomination{{Name: "Tether", Code: "USDT", Symbol: "USDT", Decimals: 6}})
	require.True(t, installed)

	assoc, ok := n.FindAssociation("usdt:ethereum")
	require.True(t, ok)
	require.Equal(t, int32(6), assoc.DefaultUnit.Decimals)

	installedAgain := n.InstallCurrency("usdt:ethereum", "Tether Renamed", "USDT2", "erc20", "", nil)
	require.False(t, installedAgain)

	assocAfter, ok := n.FindAssociation("usdt:ethereum")
	require.True(t, ok)
	require.Equal(t, "Tether", assocAfter.Currency.Name)
}

func TestSetFeesReplacesAtomically(t *testing.T) {
	n := New(testDescriptor(), nil)
	require.Empty(t, n.Fees())

	fired := false
	n.SetFees([]FeeTier{{Tier: "standard"}, {Tier: "fast"}}, func() { fired = true })
	require.True(t, fired)
	require.Len(t, n.Fees(), 2)
}

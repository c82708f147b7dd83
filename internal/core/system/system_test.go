package system

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/account"
	"github.com/klingon-exchange/walletcore/internal/core/bundle"
	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/manager"
	"github.com/klingon-exchange/walletcore/internal/core/network"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

func testAccount(t *testing.T) *account.Account {
	acc, err := account.New(
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		&chaincfg.MainNetParams, time.Unix(1577836800, 0).UTC(), "test-uids")
	require.NoError(t, err)
	return acc
}

func testNetwork() *network.Network {
	btc := currency.Currency{UIDS: "bitcoin-mainnet:native", Name: "Bitcoin", Code: "BTC"}
	return network.New(network.Descriptor{
		Chain: registry.ChainBtc, UIDS: "bitcoin-mainnet", Name: "Bitcoin Mainnet",
		ConfirmationPeriod: 10 * time.Minute, DefaultCurrency: btc,
	}, nil)
}

func TestCreateWalletManagerIsIdempotent(t *testing.T) {
	sys := New(testAccount(t), nil, t.TempDir(), true)
	n := testNetwork()
	sys.AddNetwork(n)

	m1 := sys.CreateWalletManager(n, manager.Config{Mode: network.SyncModeAPIOnly, AccountStyle: true})
	m2 := sys.CreateWalletManager(n, manager.Config{Mode: network.SyncModeAPIOnly, AccountStyle: true})
	require.Same(t, m1, m2)
	require.Len(t, sys.Managers(), 1)
}

func TestIngestCurrenciesInstallsOncePerNetwork(t *testing.T) {
	sys := New(testAccount(t), nil, t.TempDir(), true)
	n := testNetwork()
	sys.AddNetwork(n)

	sys.IngestCurrencies([]bundle.Currency{
		{ID: "usdt-bitcoin-mainnet", Name: "Tether", Code: "USDT", BlockchainID: n.UIDS,
			Denominations: []bundle.CurrencyDenomination{{Name: "Tether", Code: "USDT", Symbol: "USDT", Decimals: 6}}},
	})

	assoc, ok := n.FindAssociation("usdt-bitcoin-mainnet")
	require.True(t, ok)
	require.EqualValues(t, 6, assoc.DefaultUnit.Decimals)

	// Re-ingesting the same id is a no-op (bundles never overwrite).
	sys.IngestCurrencies([]bundle.Currency{
		{ID: "usdt-bitcoin-mainnet", Name: "Renamed", Code: "USDT2", BlockchainID: n.UIDS},
	})
	assocAfter, ok := n.FindAssociation("usdt-bitcoin-mainnet")
	require.True(t, ok)
	require.Equal(t, "Tether", assocAfter.Currency.Name)
}

func TestStartStopGatesListenerDelivery(t *testing.T) {
	calls := 0
	sys := New(testAccount(t), changedListener(func() { calls++ }), t.TempDir(), true)

	n := testNetwork()
	sys.AddNetwork(n) // before Start: suppressed
	require.Equal(t, 0, calls)

	sys.Start()
	sys.AddNetwork(testNetwork())
	require.Equal(t, 1, calls)

	sys.Stop()
	sys.AddNetwork(testNetwork()) // after Stop: suppressed again
	require.Equal(t, 1, calls)
}

type changedListener func()

func (f changedListener) Changed(old, new State)                      {}
func (f changedListener) NetworkAdded(n *network.Network)              { f() }
func (f changedListener) ManagerCreated(m *manager.Manager)            {}
func (f changedListener) CurrenciesUpdated(n *network.Network)         {}

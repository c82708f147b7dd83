package manager

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/account"
	"github.com/klingon-exchange/walletcore/internal/core/bundle"
	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/network"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
	coresync "github.com/klingon-exchange/walletcore/internal/core/sync"
	"github.com/klingon-exchange/walletcore/internal/core/transfer"
	"github.com/klingon-exchange/walletcore/internal/core/wallet"

	// blank-imported so the BTC handler group (including TransactionHandler)
	// registers itself before these tests run.
	_ "github.com/klingon-exchange/walletcore/internal/chains/bitcoin"
)

type fakeClient struct {
	mu         sync.Mutex
	blockCalls int
	height     uint64
	xferCalls  []struct {
		addrs      []string
		begin, end uint64
	}
}

func (c *fakeClient) GetBlockNumber(ctx context.Context, m *Manager, cbState any) {
	c.mu.Lock()
	c.blockCalls++
	h := c.height
	c.mu.Unlock()
	m.AnnounceBlockNumber(true, h, "")
}

func (c *fakeClient) GetTransactions(ctx context.Context, m *Manager, cbState any, addrs []string, begin, end uint64, unbounded bool) {
	c.mu.Lock()
	c.xferCalls = append(c.xferCalls, struct {
		addrs      []string
		begin, end uint64
	}{addrs, begin, end})
	c.mu.Unlock()
}

func (c *fakeClient) GetTransfers(ctx context.Context, m *Manager, cbState any, addrs []string, begin, end uint64, unbounded bool) {
	c.mu.Lock()
	c.xferCalls = append(c.xferCalls, struct {
		addrs      []string
		begin, end uint64
	}{addrs, begin, end})
	c.mu.Unlock()
}

func (c *fakeClient) SubmitTransaction(ctx context.Context, m *Manager, cbState any, identifier string, serialization []byte) {
}

func (c *fakeClient) EstimateTransactionFee(ctx context.Context, m *Manager, cbState any, serialization []byte, hashAsHex string) {
	m.AnnounceEstimatedFee(cbState, true, big.NewInt(int64(len(serialization))), big.NewInt(1))
}

func testNetwork() *network.Network {
	btc := currency.Currency{UIDS: "bitcoin-mainnet:native", Name: "Bitcoin", Code: "BTC"}
	return network.New(network.Descriptor{
		Chain:              registry.ChainBtc,
		UIDS:               "bitcoin-mainnet",
		Name:               "Bitcoin Mainnet",
		ConfirmationPeriod: 10 * time.Minute,
		DefaultCurrency:    btc,
	}, nil)
}

func testAccount(t *testing.T) *account.Account {
	acc, err := account.New(
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		&chaincfg.MainNetParams, time.Unix(1577836800, 0).UTC(), "test-uids")
	require.NoError(t, err)
	return acc
}

func TestRequestSyncIssuesTransfersOnTick(t *testing.T) {
	client := &fakeClient{height: 1000}
	m := New(Config{
		Network: testNetwork(), Account: testAccount(t), Mode: network.SyncModeAPIOnly,
		BasePath: t.TempDir(), Client: client, AccountStyle: true,
	})
	m.qry.SetConnected(true)

	m.onTick()

	require.Equal(t, 1, client.blockCalls)
	require.Len(t, client.xferCalls, 1)
	require.EqualValues(t, 1000, client.xferCalls[0].end)
}

func TestAnnounceTransfersDiscardsStaleRID(t *testing.T) {
	client := &fakeClient{height: 1000}
	m := New(Config{
		Network: testNetwork(), Account: testAccount(t), Mode: network.SyncModeAPIOnly,
		BasePath: t.TempDir(), Client: client, AccountStyle: true,
	})
	m.qry.SetConnected(true)
	unit := currency.Base(testNetwork().DefaultCurrency, "Satoshi", "SAT", "sat")
	m.InstallPrimaryWallet(unit, func(a, b *transfer.Transfer) bool { return false })

	m.onTick() // mints rid R1
	record1 := m.qry.Snapshot()

	// Reconnect: advance to a new sync round (rid R2).
	_, _ = m.qry.PrepareSync(2000)
	record2 := m.qry.Snapshot()
	require.NotEqual(t, record1.RID, record2.RID)

	// A late response carrying R1 must mutate nothing.
	before := m.qry.Snapshot()
	m.AnnounceTransfers(syncCallbackState{rid: record1.RID}, true, []bundle.Transfer{{UIDS: "x:y:0"}})
	after := m.qry.Snapshot()
	require.Equal(t, before, after)
}

func TestManagerResumesSyncCursorAcrossRestart(t *testing.T) {
	basePath := t.TempDir()
	acct := testAccount(t)
	client := &fakeClient{height: 5000}

	first := New(Config{
		Network: testNetwork(), Account: acct, Mode: network.SyncModeAPIOnly,
		BasePath: basePath, Client: client, AccountStyle: true,
	})
	first.qry.SetConnected(true)
	first.onTick() // rid R1, begin=0 end=5000
	record := first.qry.Snapshot()
	first.AnnounceTransfers(syncCallbackState{rid: record.RID}, true, nil)
	require.NoError(t, first.ledger.Close())

	second := New(Config{
		Network: testNetwork(), Account: acct, Mode: network.SyncModeAPIOnly,
		BasePath: basePath, Client: client, AccountStyle: true,
	})
	require.True(t, second.qry.Snapshot().Completed)
	require.EqualValues(t, 5000, second.qry.Snapshot().EndBlock)

	// Next sync round advances from the persisted end block, not genesis.
	second.qry.SetConnected(true)
	second.onTick()
	offset := coresync.DefaultOffset(testNetwork().ConfirmationPeriod)
	require.EqualValues(t, 5000-offset, second.qry.Snapshot().BeginBlock)
}

// rawP2WPKHTransaction builds a minimal serialized one-output native
// SegWit transaction paying a freshly derived address, matching the
// shape internal/wallet/tx.go assembles with wire.MsgTx + txscript.
func rawP2WPKHTransaction(t *testing.T) []byte {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	destAddr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(destAddr)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(50000, pkScript))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes()
}

// TestAnnounceTransactionsRecoversUTXOTransfer exercises the
// UTXO/Bitcoin sync path end to end (AccountStyle: false): onTick issues
// GetTransactions, the response is decoded through the BTC
// TransactionHandler into a Received transfer on the primary wallet, and
// persisted for reload across a restart.
func TestAnnounceTransactionsRecoversUTXOTransfer(t *testing.T) {
	client := &fakeClient{height: 1000}
	basePath := t.TempDir()
	m := New(Config{
		Network: testNetwork(), Account: testAccount(t), Mode: network.SyncModeAPIOnly,
		BasePath: basePath, Client: client, AccountStyle: false,
	})
	m.qry.SetConnected(true)
	unit := currency.Base(testNetwork().DefaultCurrency, "Satoshi", "SAT", "sat")
	m.InstallPrimaryWallet(unit, func(a, b *transfer.Transfer) bool { return false })

	m.onTick() // issues GetTransactions, mints rid R1
	record := m.qry.Snapshot()

	raw := rawP2WPKHTransaction(t)
	m.AnnounceTransactions(syncCallbackState{rid: record.RID}, true, []bundle.Transaction{
		{Status: bundle.StatusIncluded, Bytes: raw, Timestamp: 1700000000, BlockHeight: 900},
	})

	transfers := m.Primary().Transfers()
	require.Len(t, transfers, 1)
	require.Equal(t, transfer.StateIncluded, transfers[0].State())
	require.True(t, m.qry.Snapshot().Completed)
	require.True(t, m.qry.Snapshot().Success)

	loaded := m.fileSvc.LoadTransactions(testNetwork().UIDS, "native")
	require.Len(t, loaded, 1)
}

type feeEstimateListener struct {
	mu       sync.Mutex
	status   string
	cookie   string
	basis    registry.FeeBasis
	recorded bool
}

func (l *feeEstimateListener) TransferAdded(t *transfer.Transfer)    {}
func (l *feeEstimateListener) TransferChanged(t *transfer.Transfer)  {}
func (l *feeEstimateListener) TransferSubmitted(t *transfer.Transfer) {}
func (l *feeEstimateListener) TransferDeleted(t *transfer.Transfer)  {}
func (l *feeEstimateListener) BalanceUpdated(old, new currency.Amount) {}
func (l *feeEstimateListener) FeeBasisUpdated(basis registry.FeeBasis) {}
func (l *feeEstimateListener) FeeBasisEstimated(status, cookie string, basis registry.FeeBasis) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status, l.cookie, l.basis, l.recorded = status, cookie, basis, true
}

// TestEstimateFeeRemoteDeliversFeeBasis exercises the Client.EstimateTransactionFee
// dispatch path: EstimateFeeRemote hands a serialization to the client,
// which replies through AnnounceEstimatedFee, delivering a FeeBasisEstimated
// event correlated by cookie.
func TestEstimateFeeRemoteDeliversFeeBasis(t *testing.T) {
	client := &fakeClient{height: 1000}
	basePath := t.TempDir()
	m := New(Config{
		Network: testNetwork(), Account: testAccount(t), Mode: network.SyncModeAPIOnly,
		BasePath: basePath, Client: client, AccountStyle: true,
	})

	listener := &feeEstimateListener{}
	unit := currency.Base(testNetwork().DefaultCurrency, "Satoshi", "SAT", "sat")
	w := wallet.New(testNetwork().Chain, unit, unit, func(a, b *transfer.Transfer) bool { return false }, listener, nil)

	m.EstimateFeeRemote(w, "cookie-1", []byte{1, 2, 3, 4}, "deadbeef")

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.True(t, listener.recorded)
	require.Equal(t, "success", listener.status)
	require.Equal(t, "cookie-1", listener.cookie)
	require.Equal(t, big.NewInt(4), listener.basis.PricePerCostFactor)
	require.Equal(t, big.NewInt(1), listener.basis.CostFactor)
}

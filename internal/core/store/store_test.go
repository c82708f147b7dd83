package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/bundle"
)

func TestTransactionPutLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fs-ident")

	tx := bundle.Transaction{Status: bundle.StatusIncluded, Bytes: []byte{1, 2, 3}, Timestamp: 100, BlockHeight: 50}
	require.NoError(t, s.PutTransaction("bitcoin-mainnet", "btc", tx))

	loaded := s.LoadTransactions("bitcoin-mainnet", "btc")
	require.Len(t, loaded, 1)
	require.True(t, tx.Equal(loaded[0]))
}

func TestTransactionLoadSortsByHeight(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fs-ident")

	require.NoError(t, s.PutTransaction("bitcoin-mainnet", "btc", bundle.Transaction{Bytes: []byte("c"), BlockHeight: 300}))
	require.NoError(t, s.PutTransaction("bitcoin-mainnet", "btc", bundle.Transaction{Bytes: []byte("a"), BlockHeight: 100}))
	require.NoError(t, s.PutTransaction("bitcoin-mainnet", "btc", bundle.Transaction{Bytes: []byte("b"), BlockHeight: 200}))

	loaded := s.LoadTransactions("bitcoin-mainnet", "btc")
	require.Len(t, loaded, 3)
	require.EqualValues(t, 100, loaded[0].BlockHeight)
	require.EqualValues(t, 200, loaded[1].BlockHeight)
	require.EqualValues(t, 300, loaded[2].BlockHeight)
}

func TestTransferPutIsIdempotentByUIDS(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fs-ident")

	xfer := bundle.Transfer{UIDS: "bitcoin-mainnet:0xabc:0", BlockNumber: 10, Amount: "1"}
	require.NoError(t, s.PutTransfer("bitcoin-mainnet", "btc", xfer, bundle.TransferBundleV2))

	updated := xfer
	updated.Amount = "2"
	require.NoError(t, s.PutTransfer("bitcoin-mainnet", "btc", updated, bundle.TransferBundleV2))

	loaded := s.LoadTransfers("bitcoin-mainnet", "btc", bundle.TransferBundleV2)
	require.Len(t, loaded, 1)
	require.Equal(t, "2", loaded[0].Amount)
}

func TestLoadFromMissingDirReturnsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fs-ident")
	require.Empty(t, s.LoadTransactions("nonexistent-network", "xyz"))
	require.Empty(t, s.LoadTransfers("nonexistent-network", "xyz", bundle.TransferBundleV2))
	require.Empty(t, s.LoadCurrencies())
}

func TestCurrencyPutLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fs-ident")

	c := bundle.Currency{ID: "usdt-ethereum", Name: "Tether", Code: "USDT", Type: "erc20"}
	require.NoError(t, s.PutCurrency(c))

	loaded := s.LoadCurrencies()
	require.Len(t, loaded, 1)
	require.Equal(t, c.ID, loaded[0].ID)
}

func TestLedgerSaveLoadCursor(t *testing.T) {
	dir := t.TempDir()
	ledger, err := OpenLedger(dir, "fs-ident")
	require.NoError(t, err)
	defer ledger.Close()

	_, ok, err := ledger.LoadCursor("bitcoin-mainnet", "btc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ledger.SaveCursor("bitcoin-mainnet", "btc", Cursor{BeginBlock: 100, EndBlock: 200, Completed: true, Success: true}))

	cursor, ok, err := ledger.LoadCursor("bitcoin-mainnet", "btc")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100, cursor.BeginBlock)
	require.EqualValues(t, 200, cursor.EndBlock)
	require.True(t, cursor.Completed)
}

package wallet

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
	"github.com/klingon-exchange/walletcore/internal/core/transfer"
)

type testAddr string

func (a testAddr) String() string { return string(a) }

func testUnit() currency.Unit {
	c := currency.Currency{UIDS: "bitcoin-mainnet:native", Name: "Bitcoin", Code: "BTC"}
	return currency.Base(c, "Satoshi", "SAT", "sat")
}

type recordingListener struct {
	mu      sync.Mutex
	added   int
	updates []struct{ old, new currency.Amount }
}

func (l *recordingListener) TransferAdded(t *transfer.Transfer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.added++
}
func (l *recordingListener) TransferChanged(t *transfer.Transfer)   {}
func (l *recordingListener) TransferSubmitted(t *transfer.Transfer) {}
func (l *recordingListener) TransferDeleted(t *transfer.Transfer)   {}
func (l *recordingListener) BalanceUpdated(old, new currency.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, struct{ old, new currency.Amount }{old, new})
}
func (l *recordingListener) FeeBasisUpdated(basis registry.FeeBasis) {}
func (l *recordingListener) FeeBasisEstimated(status, cookie string, basis registry.FeeBasis) {}

func noDup(a, b *transfer.Transfer) bool { return a == b }

func TestBalanceInvariantAcrossDirections(t *testing.T) {
	unit := testUnit()
	w := New(registry.ChainBtc, unit, unit, noDup, nil, nil)

	recv := transfer.New(registry.ChainBtc, testAddr("x"), testAddr("w"),
		currency.FromBase(big.NewInt(1000), false, unit), transfer.DirectionReceived,
		unit, currency.Zero(unit), nil)
	require.True(t, w.AddTransfer(recv))

	sent := transfer.New(registry.ChainBtc, testAddr("w"), testAddr("y"),
		currency.FromBase(big.NewInt(300), false, unit), transfer.DirectionSent,
		unit, currency.FromBase(big.NewInt(10), false, unit), nil)
	require.True(t, w.AddTransfer(sent))

	bal := w.Balance()
	// +1000 (received, no fee subtracted) - 300 - 10 (fee) = 690
	require.Equal(t, big.NewInt(690), bal.Value)
	require.False(t, bal.Negative)
}

func TestErroredTransfersExcludedFromBalance(t *testing.T) {
	unit := testUnit()
	w := New(registry.ChainBtc, unit, unit, noDup, nil, nil)

	xfer := transfer.New(registry.ChainBtc, testAddr("w"), testAddr("y"),
		currency.FromBase(big.NewInt(500), false, unit), transfer.DirectionSent,
		unit, currency.Zero(unit), nil)
	w.AddTransfer(xfer)
	require.NoError(t, xfer.SetState(transfer.StateSigned, transfer.IncludedInfo{}, "", false))
	require.NoError(t, xfer.SetState(transfer.StateErrored, transfer.IncludedInfo{}, "posix", false))

	w.OnTransferStateChanged(xfer, transfer.StateSigned, transfer.StateErrored, nil)
	require.True(t, w.Balance().IsZero())
}

func TestAddTransferRejectsDuplicate(t *testing.T) {
	unit := testUnit()
	w := New(registry.ChainBtc, unit, unit, func(a, b *transfer.Transfer) bool { return true }, nil, nil)

	xfer := transfer.New(registry.ChainBtc, testAddr("w"), testAddr("y"),
		currency.FromBase(big.NewInt(1), false, unit), transfer.DirectionSent,
		unit, currency.Zero(unit), nil)
	require.True(t, w.AddTransfer(xfer))
	require.False(t, w.AddTransfer(xfer))
	require.Len(t, w.Transfers(), 1)
}

func TestRemoveTransferRecomputesBalance(t *testing.T) {
	unit := testUnit()
	w := New(registry.ChainBtc, unit, unit, noDup, nil, nil)

	xfer := transfer.New(registry.ChainBtc, testAddr("x"), testAddr("w"),
		currency.FromBase(big.NewInt(1000), false, unit), transfer.DirectionReceived,
		unit, currency.Zero(unit), nil)
	w.AddTransfer(xfer)
	require.Equal(t, big.NewInt(1000), w.Balance().Value)

	w.RemoveTransfer(xfer)
	require.True(t, w.Balance().IsZero())
}

package transfer

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

type testAddr string

func (a testAddr) String() string { return string(a) }

func testUnit() currency.Unit {
	c := currency.Currency{UIDS: "bitcoin-mainnet:native", Name: "Bitcoin", Code: "BTC"}
	return currency.Base(c, "Satoshi", "SAT", "sat")
}

func TestLegalTransitions(t *testing.T) {
	var fired []State
	xfer := New(registry.ChainBtc, testAddr("from"), testAddr("to"),
		currency.FromBase(big.NewInt(1000), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), func(old, new State) { fired = append(fired, new) })

	require.Equal(t, StateCreated, xfer.State())

	require.NoError(t, xfer.SetState(StateSigned, IncludedInfo{}, "", false))
	require.Equal(t, StateSigned, xfer.State())

	require.NoError(t, xfer.SetState(StateSubmitted, IncludedInfo{}, "", false))
	require.Equal(t, StateSubmitted, xfer.State())

	require.NoError(t, xfer.SetState(StateIncluded, IncludedInfo{BlockNumber: 10, Success: true}, "", false))
	require.Equal(t, StateIncluded, xfer.State())

	require.Equal(t, []State{StateSigned, StateSubmitted, StateIncluded}, fired)
}

func TestIllegalTransitionRejected(t *testing.T) {
	xfer := New(registry.ChainBtc, testAddr("from"), testAddr("to"),
		currency.FromBase(big.NewInt(1000), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), nil)

	err := xfer.SetState(StateIncluded, IncludedInfo{}, "", false)
	require.Error(t, err)
	require.Equal(t, StateCreated, xfer.State())
}

func TestSetStateIdempotentUnlessForced(t *testing.T) {
	calls := 0
	xfer := New(registry.ChainBtc, testAddr("from"), testAddr("to"),
		currency.FromBase(big.NewInt(1000), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), func(old, new State) { calls++ })

	require.NoError(t, xfer.SetState(StateSigned, IncludedInfo{}, "", false))
	require.NoError(t, xfer.SetState(StateSubmitted, IncludedInfo{}, "", false))
	require.NoError(t, xfer.SetState(StateIncluded, IncludedInfo{BlockNumber: 5}, "", false))
	require.Equal(t, 3, calls)

	// Re-inclusion at the exact same location is a no-op equality-wise.
	require.NoError(t, xfer.SetState(StateIncluded, IncludedInfo{BlockNumber: 5}, "", false))
	require.Equal(t, 3, calls)

	// A reorg moving the block number fires again.
	require.NoError(t, xfer.SetState(StateIncluded, IncludedInfo{BlockNumber: 6}, "", false))
	require.Equal(t, 4, calls)

	// force re-emits even with no change.
	require.NoError(t, xfer.SetState(StateIncluded, IncludedInfo{BlockNumber: 6}, "", true))
	require.Equal(t, 5, calls)
}

func TestAnyToDeletedAlwaysLegal(t *testing.T) {
	xfer := New(registry.ChainBtc, testAddr("from"), testAddr("to"),
		currency.FromBase(big.NewInt(1000), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), nil)
	require.NoError(t, xfer.SetState(StateDeleted, IncludedInfo{}, "", false))
	require.Equal(t, StateDeleted, xfer.State())
}

func TestValidateAttributesAggregatesFailures(t *testing.T) {
	xfer := New(registry.ChainXrp, testAddr("from"), testAddr("to"),
		currency.FromBase(big.NewInt(1), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), nil)
	xfer.SetAttributes([]Attribute{
		{Key: "DestinationTag", Required: true, HasValue: false},
		{Key: "SourceTag", Required: false, HasValue: true, Value: "not-a-number"},
	})

	errs := xfer.ValidateAttributes(func(a Attribute) bool {
		if a.Key == "SourceTag" {
			return false
		}
		return true
	}, nil)

	require.Len(t, errs, 2)
	kinds := map[string]bool{}
	for _, e := range errs {
		kinds[e.Kind] = true
	}
	require.True(t, kinds["RequiredButNotProvided"])
	require.True(t, kinds["MismatchedType"])
}

func TestCompareOrdersIncludedBeforeUnincluded(t *testing.T) {
	included := New(registry.ChainBtc, testAddr("a"), testAddr("b"),
		currency.FromBase(big.NewInt(1), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), nil)
	require.NoError(t, included.SetState(StateSigned, IncludedInfo{}, "", false))
	require.NoError(t, included.SetState(StateSubmitted, IncludedInfo{}, "", false))
	require.NoError(t, included.SetState(StateIncluded, IncludedInfo{BlockNumber: 1, BlockTimestamp: time.Unix(0, 0)}, "", false))
	included.SetLocation(1, 0, 0, "a-uids")

	pending := New(registry.ChainBtc, testAddr("a"), testAddr("b"),
		currency.FromBase(big.NewInt(1), false, testUnit()), DirectionSent,
		testUnit(), currency.Zero(testUnit()), nil)

	require.Equal(t, -1, Compare(included, pending))
	require.Equal(t, 1, Compare(pending, included))
}

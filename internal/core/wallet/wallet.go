// Package wallet implements the wallet aggregate: an ordered,
// de-duplicated list of owned transfers plus a cached balance maintained
// under the balance invariant. It generalizes internal/wallet.Service's
// fast-path/full-recompute balance rules, and applies the
// recursive-lock-avoidance redesign: the public AddTransfer takes the
// lock, the private addTransferLocked asserts it is already held.
package wallet

import (
	"sync"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/event"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
	"github.com/klingon-exchange/walletcore/internal/core/transfer"
)

// Identity is the handler-specific equality/dup-check contract a wallet
// uses to reject duplicate transfers.
type Identity func(a, b *transfer.Transfer) bool

// Listener receives wallet-level events.
type Listener interface {
	TransferAdded(t *transfer.Transfer)
	TransferChanged(t *transfer.Transfer)
	TransferSubmitted(t *transfer.Transfer)
	TransferDeleted(t *transfer.Transfer)
	BalanceUpdated(old, new currency.Amount)
	FeeBasisUpdated(basis registry.FeeBasis)
	FeeBasisEstimated(status string, cookie string, basis registry.FeeBasis)
}

// Wallet is the per-currency balance and transfer-list aggregate.
type Wallet struct {
	mu sync.Mutex

	chain registry.Chain
	unit currency.Unit
	feeUnit currency.Unit
	identity Identity
	listener Listener
	loop *event.Loop

	transfers []*transfer.Transfer
	balance currency.Amount

	minBalance *currency.Amount
	maxBalance *currency.Amount
	defaultFeeBasis registry.FeeBasis
}

// New constructs an empty wallet denominated in unit, with fees in
// feeUnit (which may differ, e.g. an ERC-20 balance wallet paying ETH
// fees). loop is the wallet's owner event loop (its manager's); listener
// callbacks are posted to it so they run single-threaded and in order,
// never inline under the wallet lock.
func New(chain registry.Chain, unit, feeUnit currency.Unit, identity Identity, listener Listener, loop *event.Loop) *Wallet {
	return &Wallet{
		chain: chain,
		unit: unit,
		feeUnit: feeUnit,
		identity: identity,
		listener: listener,
		loop: loop,
		balance: currency.Zero(unit),
	}
}

// PostFeeBasisEstimated delivers a FeeBasisEstimated{status, cookie,
// basis} event through the wallet's owner loop: callers correlate
// estimation requests to results by the opaque cookie.
func (w *Wallet) PostFeeBasisEstimated(status, cookie string, basis registry.FeeBasis) {
	listener := w.listener
	if listener == nil {
		return
	}
	w.post("FeeBasisEstimated", func() { listener.FeeBasisEstimated(status, cookie, basis) })
}

// post dispatches an event through the wallet's owner loop if one is
// configured, else runs it synchronously (used by tests that construct a
// Wallet without a loop).
func (w *Wallet) post(kind string, dispatch func()) {
	if w.loop == nil {
		dispatch()
		return
	}
	w.loop.Post(event.NewEvent(kind, dispatch, nil))
}

// Unit returns the wallet's balance-denominating unit.
func (w *Wallet) Unit() currency.Unit { return w.unit }

// FeeUnit returns the unit the wallet's fees are denominated in.
func (w *Wallet) FeeUnit() currency.Unit { return w.feeUnit }

// Balance returns the current cached balance.
func (w *Wallet) Balance() currency.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// Transfers returns a snapshot of the owned transfer list, in insertion
// order.
func (w *Wallet) Transfers() []*transfer.Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*transfer.Transfer(nil), w.transfers...)
}

// SetFeeLimits installs optional min/max balance bounds used by fee
// estimation to avoid draining a wallet below a floor.
func (w *Wallet) SetFeeLimits(min, max *currency.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minBalance = min
	w.maxBalance = max
}

// SetDefaultFeeBasis installs the wallet's default fee-basis, emitting
// FeeBasisUpdated.
func (w *Wallet) SetDefaultFeeBasis(basis registry.FeeBasis) {
	w.mu.Lock()
	w.defaultFeeBasis = basis
	listener := w.listener
	w.mu.Unlock()
	if listener != nil {
		w.post("FeeBasisUpdated", func() { listener.FeeBasisUpdated(basis) })
	}
}

// AddTransfer is the public entry point: it takes the wallet lock, checks
// for a handler-specific duplicate, appends, and recomputes the balance.
func (w *Wallet) AddTransfer(t *transfer.Transfer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addTransferLocked(t)
}

// addTransferLocked asserts the caller already holds w.mu. It exists so
// that callers already holding w.mu never have to re-enter the public,
// lock-taking AddTransfer. Each call recomputes the balance.
func (w *Wallet) addTransferLocked(t *transfer.Transfer) bool {
	for _, existing := range w.transfers {
		if w.identity != nil && w.identity(existing, t) {
			return false
		}
	}
	w.transfers = append(w.transfers, t)
	w.recomputeBalanceLocked()
	if w.listener != nil {
		listener := w.listener
		added := t
		w.post("TransferAdded", func() { listener.TransferAdded(added) })
	}
	return true
}

// RemoveTransfer deletes a transfer from the wallet (e.g. on wallet
// manager teardown) and recomputes the balance.
func (w *Wallet) RemoveTransfer(t *transfer.Transfer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, existing := range w.transfers {
		if existing == t {
			w.transfers = append(w.transfers[:i], w.transfers[i+1:]...)
			break
		}
	}
	w.recomputeBalanceLocked()
}

// OnTransferStateChanged must be invoked whenever a transfer owned by
// this wallet changes state. It implements the fast-path/full-recompute
// split: an Included(old)->Included(new) transition where only the
// confirmed fee differs applies the fee delta directly; any other
// fee-invalidating transition (Errored, or a reorg that also moves the
// amount) triggers a full recompute.
func (w *Wallet) OnTransferStateChanged(t *transfer.Transfer, old, new transfer.State, feeDelta *currency.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old == transfer.StateIncluded && new == transfer.StateIncluded && feeDelta != nil {
		w.applyBalanceDeltaLocked(*feeDelta)
		return
	}
	w.recomputeBalanceLocked()
}

// applyBalanceDeltaLocked applies a signed delta directly to the cached
// balance (the fast path), emitting BalanceUpdated only if it actually
// changes the value.
func (w *Wallet) applyBalanceDeltaLocked(delta currency.Amount) {
	old := w.balance
	newBal, err := w.balance.Add(delta)
	if err != nil {
		// Incompatible units: fall back to a full recompute rather than
		// silently dropping the delta.
		w.recomputeBalanceLocked()
		return
	}
	w.balance = newBal
	w.emitBalanceUpdatedLocked(old)
}

// recomputeBalanceLocked sums the net amount of every non-errored
// transfer, subtracting any fee this wallet is responsible for.
func (w *Wallet) recomputeBalanceLocked() {
	old := w.balance
	total := currency.Zero(w.unit)

	for _, t := range w.transfers {
		if t.State() == transfer.StateErrored {
			continue
		}
		amt := t.Amount()
		if !amt.Unit.Compatible(w.unit) {
			continue
		}

		v := amt
		if t.Direction() == transfer.DirectionSent || t.Direction() == transfer.DirectionRecovered {
			v = currency.FromBase(amt.Value, true, amt.Unit)
		}
		if t.Direction() == transfer.DirectionRecovered {
			v = currency.Zero(w.unit)
		}

		if t.FeeUnit().Compatible(w.unit) && t.Direction() != transfer.DirectionReceived {
			included := t.Included()
			fee := t.EstimatedFee()
			if t.State() == transfer.StateIncluded {
				fee = included.ConfirmedFee
			}
			negFee := currency.FromBase(fee.Value, true, fee.Unit)
			if sum, err := v.Add(negFee); err == nil {
				v = sum
			}
		}

		if sum, err := total.Add(v); err == nil {
			total = sum
		}
	}

	w.balance = total
	w.emitBalanceUpdatedLocked(old)
}

func (w *Wallet) emitBalanceUpdatedLocked(old currency.Amount) {
	if cmp, err := old.Compare(w.balance); err == nil && cmp == 0 {
		return
	}
	if w.listener != nil {
		listener, newBal := w.listener, w.balance
		w.post("BalanceUpdated", func() { listener.BalanceUpdated(old, newBal) })
	}
}

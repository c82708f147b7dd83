package manager

import (
	"context"
	"math/big"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
	"github.com/klingon-exchange/walletcore/internal/core/transfer"
	"github.com/klingon-exchange/walletcore/internal/core/wallet"
)

// Signer signs a transfer using the account's seed or an external key,
// returning the chain-specific serialization to submit.
type Signer interface {
	Sign(t *transfer.Transfer, acct any) (serialization []byte, err error)
}

// Submit drives the transfer submission flow: sign, move to Signed, add
// to wallet (and fee wallet if distinct), dispatch to the active send
// sub-manager.
func (m *Manager) Submit(t *transfer.Transfer, w, feeWallet *wallet.Wallet, signer Signer) error {
	serialization, err := signer.Sign(t, m.account)
	if err != nil {
		return err
	}
	if err := t.SetState(transfer.StateSigned, transfer.IncludedInfo{}, "", false); err != nil {
		return err
	}

	w.AddTransfer(t)
	if feeWallet != nil && feeWallet != w {
		feeWallet.AddTransfer(t)
	}

	cbState := submitCallbackState{transfer: t, wallet: w, feeWallet: feeWallet}
	if m.sendSourceIsQRY() {
		if m.client != nil {
			m.client.SubmitTransaction(context.Background(), m, cbState, "", serialization)
		}
	} else if m.p2p != nil {
		go func() { _ = m.p2p.Send(context.Background(), serialization) }()
	}
	return nil
}

type submitCallbackState struct {
	transfer *transfer.Transfer
	wallet *wallet.Wallet
	feeWallet *wallet.Wallet
}

// AnnounceSubmitTransfer is the Client's non-blocking callback for
// SubmitTransaction: on success, move to Submitted; on failure, move to
// Errored and recompute the fee wallet's balance if it differs from the
// balance wallet and the transfer is not Received.
func (m *Manager) AnnounceSubmitTransfer(cbState any, identifier, hash string, success bool) {
	cb, ok := cbState.(submitCallbackState)
	if !ok {
		return
	}

	if success {
		_ = cb.transfer.SetState(transfer.StateSubmitted, transfer.IncludedInfo{}, "", false)
	} else {
		_ = cb.transfer.SetState(transfer.StateErrored, transfer.IncludedInfo{}, "unknown", false)
		if cb.feeWallet != nil && cb.feeWallet != cb.wallet && cb.transfer.Direction() != transfer.DirectionReceived {
			cb.feeWallet.OnTransferStateChanged(cb.transfer, transfer.StateSigned, transfer.StateErrored, nil)
		}
	}

	if identifier != "" {
		if _, had := cb.transfer.Identifier(nil); !had {
			cb.transfer.Identifier(func() (string, bool) { return identifier, true })
		}
	}
}

// EstimateFee dispatches fee estimation through the wallet-manager
// vtable: the estimated fee-basis is delivered via FeeBasisEstimated on
// the wallet's event stream, correlated to the caller by the opaque
// cookie.
func (m *Manager) EstimateFee(w *wallet.Wallet, cookie string, target registry.Address, amount currency.Amount, networkFee registry.FeeBasis, attrs []transfer.Attribute, estimator func(target registry.Address, amount currency.Amount, networkFee registry.FeeBasis, attrs []transfer.Attribute) (registry.FeeBasis, error)) {
	basis, err := estimator(target, amount, networkFee, attrs)
	status := "success"
	if err != nil {
		status = "failed"
	}
	w.PostFeeBasisEstimated(status, cookie, basis)
}

type feeCallbackState struct {
	wallet *wallet.Wallet
	cookie string
}

// EstimateFeeRemote asks the remote indexer to estimate a fee for an
// already-serialized, unsubmitted transaction (the indexer simulates or
// prices it directly, as opposed to EstimateFee's local
// registry.WalletHandler pricing). The result arrives via
// AnnounceEstimatedFee on the wallet's event stream, correlated by cookie.
func (m *Manager) EstimateFeeRemote(w *wallet.Wallet, cookie string, serialization []byte, hashAsHex string) {
	if m.client == nil {
		w.PostFeeBasisEstimated("failed", cookie, registry.FeeBasis{})
		return
	}
	cbState := feeCallbackState{wallet: w, cookie: cookie}
	m.client.EstimateTransactionFee(context.Background(), m, cbState, serialization, hashAsHex)
}

// AnnounceEstimatedFee is the Client's non-blocking callback for
// EstimateTransactionFee, symmetric to AnnounceSubmitTransfer.
func (m *Manager) AnnounceEstimatedFee(cbState any, success bool, pricePerCostFactor, costFactor *big.Int) {
	cb, ok := cbState.(feeCallbackState)
	if !ok {
		return
	}
	status := "failed"
	var basis registry.FeeBasis
	if success && pricePerCostFactor != nil && costFactor != nil {
		status = "success"
		basis = registry.FeeBasis{PricePerCostFactor: pricePerCostFactor, CostFactor: costFactor}
	}
	cb.wallet.PostFeeBasisEstimated(status, cb.cookie, basis)
}

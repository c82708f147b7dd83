package manager

import (
	"context"

	"github.com/klingon-exchange/walletcore/internal/core/bundle"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
	"github.com/klingon-exchange/walletcore/internal/core/store"
	coresync "github.com/klingon-exchange/walletcore/internal/core/sync"
)

// onTick is the manager event loop's periodic callback: if connected and
// the configured mode uses QRY for sync, issue GetBlockNumber. The
// response (AnnounceBlockNumber) drives RequestSync.
func (m *Manager) onTick() {
	if !m.qry.Connected() || !m.syncSourceIsQRY() {
		return
	}
	if m.client != nil {
		m.client.GetBlockNumber(context.Background(), m, nil)
	}
}

// AnnounceBlockNumber is the Client's non-blocking callback for
// GetBlockNumber: updates network height only if changed, optionally
// records the verified block hash, emits BlockHeightUpdated, then
// invokes RequestSync.
func (m *Manager) AnnounceBlockNumber(success bool, blockNumber uint64, blockHash string) {
	if !success {
		return
	}
	m.network.SetHeight(blockNumber, func(old, new uint64) {
		if m.listener != nil {
			m.listener.BlockHeightUpdated(new)
		}
	})
	if blockHash != "" {
		m.network.SetVerifiedBlockHash(blockHash)
	}
	m.RequestSync()
}

// RequestSync prepares the sync window via QRY, and if there is new
// ground to cover, snapshots the wallet's recoverable addresses and
// issues GetTransfers/GetTransactions for them.
func (m *Manager) RequestSync() {
	height := m.network.Height()
	record, should := m.qry.PrepareSync(height)
	if !should {
		return
	}

	if !m.qry.SuppressLifecycleEvents(record.BeginBlock, height) && m.listener != nil {
		m.listener.SyncStarted()
	}
	m.setState(StateSyncing, "")

	addrs := m.recoverableAddresses()
	m.issueSyncRequest(record, addrs)
}

func (m *Manager) issueSyncRequest(record coresync.Record, addrs []string) {
	if m.client == nil {
		return
	}
	cbState := syncCallbackState{rid: record.RID}
	if m.nativeTransferStyle() {
		m.client.GetTransfers(context.Background(), m, cbState, addrs, record.BeginBlock, record.EndBlock, record.Unbounded)
	} else {
		m.client.GetTransactions(context.Background(), m, cbState, addrs, record.BeginBlock, record.EndBlock, record.Unbounded)
	}
}

// nativeTransferStyle reports whether this chain's sync requests use
// GetTransfers (account-style chains) vs GetTransactions (UTXO-style
// chains), selected once at manager creation.
func (m *Manager) nativeTransferStyle() bool {
	return m.accountStyle
}

// syncCallbackState threads the originating rid through the client round
// trip so the response handler can validate it against the current sync
// record.
type syncCallbackState struct {
	rid coresync.RequestID
}

// AnnounceTransfers is the Client's non-blocking callback delivering a
// batch of transfer bundles for an account-style chain.
func (m *Manager) AnnounceTransfers(cbState any, success bool, bundles []bundle.Transfer) {
	cb, ok := cbState.(syncCallbackState)
	if !ok {
		return
	}
	if m.qry.IsStale(cb.rid) {
		// Late response from a cancelled sync: zero state mutation.
		return
	}
	if !success {
		m.qry.CompleteSync(cb.rid, false)
		m.maybeEmitSyncStopped(cb.rid, "remote_failure")
		return
	}

	sorted := bundle.SortTransfersByHeightResponse(bundles)
	oldAddrs := m.recoverableAddresses()

	for _, xb := range sorted {
		if m.fileSvc != nil {
			_ = m.fileSvc.PutTransfer(m.network.UIDS, "native", xb, m.transferVersion)
		}
		m.recoverOneTransferBundle(xb)
	}

	newAddrs := m.recoverableAddresses()
	diff := addressSetDiff(oldAddrs, newAddrs)
	if len(diff) > 0 {
		if m.qry.ContinueWithSameRID(cb.rid) {
			record := m.qry.Snapshot()
			m.issueSyncRequest(record, diff)
		}
		return
	}

	m.qry.CompleteSync(cb.rid, true)
	m.persistCursor()
	m.maybeEmitSyncStopped(cb.rid, "")
	m.setState(StateConnected, "")
}

// AnnounceTransactions is the Client's non-blocking callback delivering a
// batch of transaction bundles for a UTXO-style chain, symmetric to
// AnnounceTransfers.
func (m *Manager) AnnounceTransactions(cbState any, success bool, bundles []bundle.Transaction) {
	cb, ok := cbState.(syncCallbackState)
	if !ok {
		return
	}
	if m.qry.IsStale(cb.rid) {
		// Late response from a cancelled sync: zero state mutation.
		return
	}
	if !success {
		m.qry.CompleteSync(cb.rid, false)
		m.maybeEmitSyncStopped(cb.rid, "remote_failure")
		return
	}

	sorted := bundle.SortTransactionsByHeightResponse(bundles)
	oldAddrs := m.recoverableAddresses()

	for _, tx := range sorted {
		if m.fileSvc != nil {
			_ = m.fileSvc.PutTransaction(m.network.UIDS, "native", tx)
		}
		m.recoverOneTransactionBundleResponse(tx)
	}

	newAddrs := m.recoverableAddresses()
	diff := addressSetDiff(oldAddrs, newAddrs)
	if len(diff) > 0 {
		if m.qry.ContinueWithSameRID(cb.rid) {
			record := m.qry.Snapshot()
			m.issueSyncRequest(record, diff)
		}
		return
	}

	m.qry.CompleteSync(cb.rid, true)
	m.persistCursor()
	m.maybeEmitSyncStopped(cb.rid, "")
	m.setState(StateConnected, "")
}

// recoverOneTransactionBundleResponse turns one in-flight transaction
// bundle into a live Transfer on the primary wallet, dispatching through
// the chain's registered TransactionHandler, matching the recovery path
// used at startup (see manager.go's recoverTransfers).
func (m *Manager) recoverOneTransactionBundleResponse(tx bundle.Transaction) {
	w := m.Primary()
	if w == nil {
		return
	}
	group, ok := registry.Lookup(m.network.Chain)
	if !ok || group.Transaction == nil {
		return
	}
	m.recoverOneTransactionBundle(w, group.Transaction, tx)
}

// persistCursor saves the current sync record to the migration ledger,
// if one is open, so a restarted process resumes from roughly this point
// instead of re-requesting from genesis.
func (m *Manager) persistCursor() {
	if m.ledger == nil {
		return
	}
	record := m.qry.Snapshot()
	cursor := store.Cursor{
		BeginBlock: record.BeginBlock,
		EndBlock:   record.EndBlock,
		Completed:  record.Completed,
		Success:    record.Success,
	}
	if err := m.ledger.SaveCursor(m.network.UIDS, ledgerCurrencyKey, cursor); err != nil {
		m.log.Error("migration ledger cursor save failed", "err", err)
	}
}

func (m *Manager) maybeEmitSyncStopped(rid coresync.RequestID, reason string) {
	record := m.qry.Snapshot()
	if m.qry.SuppressLifecycleEvents(record.BeginBlock, m.network.Height()) {
		return
	}
	if m.listener != nil {
		m.listener.SyncStopped(reason)
	}
}

// recoverOneTransferBundle turns a persisted transfer bundle into a live
// Transfer and adds it to the primary wallet, matching the recovery path
// used at startup (see manager.go's recoverTransfers).
func (m *Manager) recoverOneTransferBundle(xb bundle.Transfer) {
	w := m.Primary()
	if w == nil {
		return
	}
	m.recoverTransfers(w, nil, []bundle.Transfer{xb})
}

// recoverableAddresses snapshots the primary wallet's address set used
// for gap-limit scanning. Concrete per-chain address derivation lives in
// internal/chains; here we report the identifiers of the wallet's
// existing transfers (skipping transfers without one) as a conservative
// placeholder that still exercises the diff algorithm end-to-end. No
// addresses are derived or read from the transfers.
func (m *Manager) recoverableAddresses() []string {
	w := m.Primary()
	if w == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range w.Transfers() {
		id, ok := t.Identifier(nil)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func addressSetDiff(old, new []string) []string {
	seen := make(map[string]bool, len(old))
	for _, a := range old {
		seen[a] = true
	}
	var diff []string
	for _, a := range new {
		if !seen[a] {
			diff = append(diff, a)
		}
	}
	return diff
}

// Package sync implements the QRY (remote-indexer) sub-manager's request
// bookkeeping: a monotonic request-id counter, the sync record (rid,
// begin/end block, completed/success/unbounded flags), the block-number
// offset, and the connected flag — all under the QRY's own lock, which
// is never held across a handler vtable call. It generalizes
// internal/node retry-worker tick/backoff bookkeeping to the rid-based
// sync cursor.
package sync

import (
	"sync"
	"time"
)

// RequestID identifies one round of GetBlockNumber/GetTransfers requests.
// A late response whose rid no longer matches the current record is
// discarded — the sync engine's central invariant.
type RequestID uint64

// OffsetBlocksSeconds is the default lookback window, three days,
// used to derive the default block-number offset from a chain's
// confirmation period.
const OffsetBlocksSeconds = 259200

// MinOffsetBlocks is the floor applied to the derived offset.
const MinOffsetBlocks = 100

// DefaultOffset derives a chain's block-number offset from its
// confirmation period: OffsetBlocksSeconds / confirmation_period,
// floored at MinOffsetBlocks.
func DefaultOffset(confirmationPeriod time.Duration) uint64 {
	seconds := confirmationPeriod.Seconds()
	if seconds <= 0 {
		return MinOffsetBlocks
	}
	offset := uint64(OffsetBlocksSeconds / seconds)
	if offset < MinOffsetBlocks {
		return MinOffsetBlocks
	}
	return offset
}

// Record is the sync cursor: (rid, begin_block, end_block, completed,
// success, unbounded_flag).
type Record struct {
	RID RequestID
	BeginBlock uint64
	EndBlock uint64
	Completed bool
	Success bool
	Unbounded bool
}

// QRY is the always-constructed remote-indexer sub-manager.
type QRY struct {
	mu sync.Mutex
	nextRID RequestID
	record Record
	offset uint64
	connected bool
}

// NewQRY constructs a QRY sub-manager with the given block-number offset.
// The initial record is marked completed+success so the first
// PrepareSync call advances begin_block from end_block (0) as expected.
func NewQRY(offset uint64) *QRY {
	return &QRY{offset: offset, record: Record{Completed: true, Success: true}}
}

// Connected reports whether the QRY sub-manager is currently connected.
func (q *QRY) Connected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.connected
}

// SetConnected updates the connected flag (e.g. on manager connect/disconnect).
func (q *QRY) SetConnected(connected bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.connected = connected
}

// Offset returns the configured block-number offset.
func (q *QRY) Offset() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offset
}

// Snapshot returns a copy of the current sync record.
func (q *QRY) Snapshot() Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.record
}

// Resume seeds the sync record's end block from a persisted cursor so
// the next PrepareSync call advances begin_block from endBlock - offset
// instead of from zero, letting a restarted process pick up roughly
// where it left off rather than re-requesting from genesis.
func (q *QRY) Resume(endBlock uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.record = Record{BeginBlock: 0, EndBlock: endBlock, Completed: true, Success: true}
}

// PrepareSync implements the sync-window advance: if the previous sync
// completed successfully, advance begin_block to max(0, end_block -
// offset); always set end_block to the current network height; if
// begin_block < end_block, assign a fresh rid and mark the sync
// uncompleted, returning (record, true). Otherwise returns (record,
// false) and no request should be issued.
func (q *QRY) PrepareSync(height uint64) (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.record.Completed && q.record.Success {
		newBegin := uint64(0)
		if q.record.EndBlock > q.offset {
			newBegin = q.record.EndBlock - q.offset
		}
		q.record.BeginBlock = newBegin
	}
	q.record.EndBlock = height
	if q.record.BeginBlock > q.record.EndBlock {
		q.record.BeginBlock = q.record.EndBlock
	}

	shouldSync := q.record.BeginBlock < q.record.EndBlock
	if shouldSync {
		q.nextRID++
		q.record.RID = q.nextRID
		q.record.Completed = false
		q.record.Success = false
	}
	return q.record, shouldSync
}

// IsStale reports whether rid no longer matches the current sync
// record — a response bearing a stale rid must cause zero state
// mutation.
func (q *QRY) IsStale(rid RequestID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return rid != q.record.RID
}

// ContinueWithSameRID keeps the sync in progress (completed stays false)
// without minting a new rid — used for the gap-limit follow-up request,
// which must carry the same rid as the round that discovered new
// addresses.
func (q *QRY) ContinueWithSameRID(rid RequestID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rid != q.record.RID {
		return false
	}
	q.record.Completed = false
	return true
}

// CompleteSync marks the current sync finished, recording success or
// failure. Returns false without mutating state if rid is already
// stale.
func (q *QRY) CompleteSync(rid RequestID, success bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rid != q.record.RID {
		return false
	}
	q.record.Completed = true
	q.record.Success = success
	return true
}

// SuppressLifecycleEvents reports whether sync lifecycle events
// (SyncStarted/SyncContinues/SyncStopped) should be suppressed for a
// given (beginBlock, height) pair: suppressed when
// begin_block >= height - 2*offset.
func (q *QRY) SuppressLifecycleEvents(beginBlock, height uint64) bool {
	q.mu.Lock()
	threshold := uint64(0)
	if height > 2*q.offset {
		threshold = height - 2*q.offset
	}
	q.mu.Unlock()
	return beginBlock >= threshold
}

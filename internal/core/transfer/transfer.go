// Package transfer implements the transfer state machine:
// Created -> Signed -> Submitted -> Included, with Errored and Deleted as
// side/terminal states. It follows an int-backed enum with a String
// method generalized to the full transition table and included-state
// fields.
package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
)

// State is a transfer's position in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateSigned
	StateSubmitted
	StateIncluded
	StateErrored
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateIncluded:
		return "included"
	case StateErrored:
		return "errored"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Direction is the transfer's relation to the owning wallet.
type Direction int

const (
	DirectionSent Direction = iota
	DirectionReceived
	DirectionRecovered
)

// Attribute is a (key, optional value, required) chain-specific transfer
// attribute (e.g. XRP destination tag, Hedera memo).
type Attribute struct {
	Key string
	Value string
	HasValue bool
	Required bool
}

// IncludedInfo holds the fields recorded only while State == StateIncluded.
type IncludedInfo struct {
	BlockNumber uint64
	BlockIndex uint32
	BlockTimestamp time.Time
	ConfirmedFee currency.Amount
	Success bool
	Error string
	TransferIndex uint32
}

// transitions enumerates the legal (from, to) edges of the state machine.
// Included -> Included (reorg) and any -> Deleted are handled specially
// in SetState rather than via this table.
var transitions = map[State]map[State]bool{
	StateCreated: {StateSigned: true},
	StateSigned: {StateSubmitted: true, StateErrored: true},
	StateSubmitted: {StateIncluded: true, StateErrored: true},
	StateIncluded: {StateIncluded: true},
}

// Transfer is a single value movement owned by exactly one wallet at a
// time.
type Transfer struct {
	mu sync.Mutex

	chain registry.Chain
	identifier string
	hasIdentifier bool
	originatingTxID string

	source Address
	target Address

	amount currency.Amount
	direction Direction

	feeUnit currency.Unit
	estimatedFee currency.Amount

	state State
	included IncludedInfo
	errKind string

	attributes []Attribute

	blockNumber uint64
	blockTransactionIndex uint32
	transferIndex uint32
	uids string

	onChanged func(old, new State)
}

// Address is the minimal cross-chain address contract a transfer needs;
// kept local to avoid a hard dependency on internal/core/address's
// registry-dispatch machinery for simple construction in tests.
type Address interface {
	String() string
}

// New constructs a Created transfer. The per-transfer lock guards
// identifier, state, and attribute list.
func New(chain registry.Chain, source, target Address, amount currency.Amount, direction Direction, feeUnit currency.Unit, estimatedFee currency.Amount, onChanged func(old, new State)) *Transfer {
	return &Transfer{
		chain: chain,
		source: source,
		target: target,
		amount: amount,
		direction: direction,
		feeUnit: feeUnit,
		estimatedFee: estimatedFee,
		state: StateCreated,
		onChanged: onChanged,
	}
}

// State returns the current lifecycle state.
func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Direction returns the transfer's direction relative to its wallet.
func (t *Transfer) Direction() Direction { return t.direction }

// Amount returns the transfer's unsigned amount.
func (t *Transfer) Amount() currency.Amount { return t.amount }

// FeeUnit returns the unit the transfer's fee is denominated in.
func (t *Transfer) FeeUnit() currency.Unit { return t.feeUnit }

// EstimatedFee returns the fee estimated at construction time.
func (t *Transfer) EstimatedFee() currency.Amount { return t.estimatedFee }

// Included returns the included-state fields; only meaningful when
// State == StateIncluded.
func (t *Transfer) Included() IncludedInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.included
}

// Identifier lazily returns the transfer's UIDS, deriving it on first call
// via identify if it has not yet been computed.
func (t *Transfer) Identifier(identify func() (string, bool)) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasIdentifier {
		return t.identifier, true
	}
	if identify == nil {
		return "", false
	}
	id, ok := identify()
	if ok {
		t.identifier = id
		t.hasIdentifier = true
	}
	return id, ok
}

// SetAttributes replaces the attribute list under the transfer lock.
func (t *Transfer) SetAttributes(attrs []Attribute) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attributes = append([]Attribute(nil), attrs...)
}

// Attributes returns a snapshot of the attribute list.
func (t *Transfer) Attributes() []Attribute {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Attribute(nil), t.attributes...)
}

// ValidationError categorizes a failed attribute check.
type ValidationError struct {
	Key string
	Kind string // "RequiredButNotProvided" | "MismatchedType" | "RelationshipInconsistency"
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("transfer: attribute %q: %s", e.Key, e.Kind)
}

// ValidateAttributes runs each attribute through the chain handler's
// per-attribute validator (matchType) and aggregates every failure,
// plus any relationship hook across the whole set.
func (t *Transfer) ValidateAttributes(matchType func(Attribute) bool, relationship func([]Attribute) bool) []ValidationError {
	attrs := t.Attributes()
	var errs []ValidationError
	for _, a := range attrs {
		if a.Required && !a.HasValue {
			errs = append(errs, ValidationError{Key: a.Key, Kind: "RequiredButNotProvided"})
			continue
		}
		if matchType != nil && a.HasValue && !matchType(a) {
			errs = append(errs, ValidationError{Key: a.Key, Kind: "MismatchedType"})
		}
	}
	if relationship != nil && !relationship(attrs) {
		errs = append(errs, ValidationError{Kind: "RelationshipInconsistency"})
	}
	return errs
}

// SetState transitions the transfer, enforcing the legal-edge table plus
// the Included->Included reorg special case and the any->Deleted terminal
// edge. It is idempotent: onChanged fires only when the new logical state
// differs from the old, unless force is set.
func (t *Transfer) SetState(new State, included IncludedInfo, errKind string, force bool) error {
	t.mu.Lock()

	old := t.state
	if new == StateDeleted {
		// any -> Deleted is always legal.
	} else if new == StateErrored {
		if old != StateSigned && old != StateSubmitted {
			t.mu.Unlock()
			return fmt.Errorf("transfer: illegal transition %s -> %s", old, new)
		}
	} else if !transitions[old][new] {
		t.mu.Unlock()
		return fmt.Errorf("transfer: illegal transition %s -> %s", old, new)
	}

	equal := old == new && stateEquals(old, new, t.included, included)
	t.state = new
	if new == StateIncluded {
		t.included = included
	}
	if new == StateErrored {
		t.errKind = errKind
	}
	onChanged := t.onChanged
	t.mu.Unlock()

	if (!equal || force) && onChanged != nil {
		onChanged(old, new)
	}
	return nil
}

// stateEquals treats an Included->Included transition as a no-op only
// when every included-state field matches.
func stateEquals(old, new State, prevIncluded, nextIncluded IncludedInfo) bool {
	if old != StateIncluded || new != StateIncluded {
		return true
	}
	feeCmp, feeErr := prevIncluded.ConfirmedFee.Compare(nextIncluded.ConfirmedFee)
	return prevIncluded.BlockNumber == nextIncluded.BlockNumber &&
		prevIncluded.TransferIndex == nextIncluded.TransferIndex &&
		prevIncluded.BlockTimestamp.Equal(nextIncluded.BlockTimestamp) &&
		prevIncluded.Success == nextIncluded.Success &&
		feeErr == nil && feeCmp == 0
}

// ErrorKind returns the typed submission error recorded when Errored.
func (t *Transfer) ErrorKind() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errKind
}

// SetLocation records the sort/ordering fields assigned once a transfer is
// included in a block.
func (t *Transfer) SetLocation(blockNumber uint64, blockTxIndex, transferIndex uint32, uids string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockNumber = blockNumber
	t.blockTransactionIndex = blockTxIndex
	t.transferIndex = transferIndex
	t.uids = uids
}

// Compare orders two transfers by (block_number, block_transaction_index,
// transfer_index, uids), with both-unincluded transfers falling back to
// pointer identity and one-unincluded sorting greater than one-included.
func Compare(a, b *Transfer) int {
	a.mu.Lock()
	aIncluded := a.state == StateIncluded
	aBlock, aTxIdx, aXferIdx, aUIDS := a.blockNumber, a.blockTransactionIndex, a.transferIndex, a.uids
	a.mu.Unlock()

	b.mu.Lock()
	bIncluded := b.state == StateIncluded
	bBlock, bTxIdx, bXferIdx, bUIDS := b.blockNumber, b.blockTransactionIndex, b.transferIndex, b.uids
	b.mu.Unlock()

	if !aIncluded && !bIncluded {
		switch {
		case a == b:
			return 0
		case fmt.Sprintf("%p", a) < fmt.Sprintf("%p", b):
			return -1
		default:
			return 1
		}
	}
	if aIncluded != bIncluded {
		if aIncluded {
			return -1
		}
		return 1
	}
	if aBlock != bBlock {
		if aBlock < bBlock {
			return -1
		}
		return 1
	}
	if aTxIdx != bTxIdx {
		if aTxIdx < bTxIdx {
			return -1
		}
		return 1
	}
	if aXferIdx != bXferIdx {
		if aXferIdx < bXferIdx {
			return -1
		}
		return 1
	}
	switch {
	case aUIDS == bUIDS:
		return 0
	case aUIDS < bUIDS:
		return -1
	default:
		return 1
	}
}

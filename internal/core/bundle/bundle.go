// Package bundle implements the three RLP-encoded persistent record
// types: transaction bundles (UTXO-style chains), transfer bundles
// (account-style chains), and currency bundles (the remote catalogue
// descriptor). It encodes all three with
// github.com/ethereum/go-ethereum/rlp.
package bundle

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// TransferBundleVersion selects which RLP shape a transfer bundle
// round-trips through: version 1 derives TransferIndex from the UIDS
// string; version 2 carries it as an explicit element.
type TransferBundleVersion int

const (
	TransferBundleV1 TransferBundleVersion = 1
	TransferBundleV2 TransferBundleVersion = 2
)

// Status is the chain-observed status of a persisted bundle.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusSubmitted
	StatusIncluded
	StatusErrored
)

// Transaction is a UTXO-style persisted record: RLP
// [status, bytes, timestamp, block_height].
type Transaction struct {
	Status Status
	Bytes []byte
	Timestamp int64
	BlockHeight uint64
}

// transactionRLP mirrors Transaction's wire layout; RLP requires
// unsigned fixed-width-free integer fields, so Status/Timestamp are
// carried as uint64.
type transactionRLP struct {
	Status uint64
	Bytes []byte
	Timestamp uint64
	BlockHeight uint64
}

// Identifier returns the MD5 digest over the raw bytes.
func (t Transaction) Identifier() string {
	sum := md5.Sum(t.Bytes)
	return hex.EncodeToString(sum[:])
}

// Equal compares all fields.
func (t Transaction) Equal(o Transaction) bool {
	return t.Status == o.Status && t.Timestamp == o.Timestamp &&
		t.BlockHeight == o.BlockHeight && string(t.Bytes) == string(o.Bytes)
}

// Encode serializes t to RLP.
func (t Transaction) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(transactionRLP{
		Status: uint64(t.Status),
		Bytes: t.Bytes,
		Timestamp: uint64(t.Timestamp),
		BlockHeight: t.BlockHeight,
	})
}

// DecodeTransaction parses an RLP-encoded transaction bundle.
func DecodeTransaction(data []byte) (Transaction, error) {
	var w transactionRLP
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Status: Status(w.Status),
		Bytes: w.Bytes,
		Timestamp: int64(w.Timestamp),
		BlockHeight: w.BlockHeight,
	}, nil
}

// Attribute is a chain-specific transfer attribute persisted alongside a
// transfer bundle.
type Attribute struct {
	Key string
	Value string
}

// Transfer is an account-style persisted record.
type Transfer struct {
	Hash string
	TxIdentifier string
	UIDS string
	SourceAddress string
	TargetAddress string
	Amount string
	CurrencyCode string
	Fee string
	HasFee bool
	TransferIndex uint32
	BlockTimestamp int64
	BlockNumber uint64
	Confirmations uint64
	BlockTransactionIndex uint32
	BlockHash string
	Attributes []Attribute
}

// Identifier returns the MD5 digest over the UIDS string.
func (t Transfer) Identifier() string {
	sum := md5.Sum([]byte(t.UIDS))
	return hex.EncodeToString(sum[:])
}

// Equal compares UIDS only.
func (t Transfer) Equal(o Transfer) bool { return t.UIDS == o.UIDS }

// attrRLP is the RLP-encodable form of Attribute (RLP cannot encode a
// struct with an omitted/optional field directly, so fee presence is
// carried as an explicit flag below).
type attrRLP struct {
	Key string
	Value string
}

// transferRLPv1 is the 15-item version-1 wire shape: transfer_index is
// derived from the UIDS (`<network>:<hash>:<index>`) rather than stored.
type transferRLPv1 struct {
	Hash string
	TxIdentifier string
	UIDS string
	SourceAddress string
	TargetAddress string
	Amount string
	CurrencyCode string
	HasFee bool
	Fee string
	BlockTimestamp uint64
	BlockNumber uint64
	Confirmations uint64
	BlockTransactionIndex uint32
	BlockHash string
	Attributes []attrRLP
}

// transferRLPv2 is the 16-item version-2 wire shape, adding an explicit
// TransferIndex element.
type transferRLPv2 struct {
	Hash string
	TxIdentifier string
	UIDS string
	SourceAddress string
	TargetAddress string
	Amount string
	CurrencyCode string
	HasFee bool
	Fee string
	TransferIndex uint32
	BlockTimestamp uint64
	BlockNumber uint64
	Confirmations uint64
	BlockTransactionIndex uint32
	BlockHash string
	Attributes []attrRLP
}

func toAttrRLP(attrs []Attribute) []attrRLP {
	out := make([]attrRLP, len(attrs))
	for i, a := range attrs {
		out[i] = attrRLP{Key: a.Key, Value: a.Value}
	}
	return out
}

func fromAttrRLP(attrs []attrRLP) []Attribute {
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = Attribute{Key: a.Key, Value: a.Value}
	}
	return out
}

// Encode serializes t as the given version's RLP shape.
func (t Transfer) Encode(version TransferBundleVersion) ([]byte, error) {
	if version == TransferBundleV1 {
		return rlp.EncodeToBytes(transferRLPv1{
			Hash: t.Hash, TxIdentifier: t.TxIdentifier, UIDS: t.UIDS,
			SourceAddress: t.SourceAddress, TargetAddress: t.TargetAddress,
			Amount: t.Amount, CurrencyCode: t.CurrencyCode,
			HasFee: t.HasFee, Fee: t.Fee,
			BlockTimestamp: uint64(t.BlockTimestamp), BlockNumber: t.BlockNumber,
			Confirmations: t.Confirmations, BlockTransactionIndex: t.BlockTransactionIndex,
			BlockHash: t.BlockHash, Attributes: toAttrRLP(t.Attributes),
		})
	}
	return rlp.EncodeToBytes(transferRLPv2{
		Hash: t.Hash, TxIdentifier: t.TxIdentifier, UIDS: t.UIDS,
		SourceAddress: t.SourceAddress, TargetAddress: t.TargetAddress,
		Amount: t.Amount, CurrencyCode: t.CurrencyCode,
		HasFee: t.HasFee, Fee: t.Fee, TransferIndex: t.TransferIndex,
		BlockTimestamp: uint64(t.BlockTimestamp), BlockNumber: t.BlockNumber,
		Confirmations: t.Confirmations, BlockTransactionIndex: t.BlockTransactionIndex,
		BlockHash: t.BlockHash, Attributes: toAttrRLP(t.Attributes),
	})
}

// DecodeTransfer parses an RLP-encoded transfer bundle of the given
// version. Version 1 derives TransferIndex from the UIDS's trailing
// `:<index>` component.
func DecodeTransfer(data []byte, version TransferBundleVersion) (Transfer, error) {
	if version == TransferBundleV1 {
		var w transferRLPv1
		if err := rlp.DecodeBytes(data, &w); err != nil {
			return Transfer{}, err
		}
		return Transfer{
			Hash: w.Hash, TxIdentifier: w.TxIdentifier, UIDS: w.UIDS,
			SourceAddress: w.SourceAddress, TargetAddress: w.TargetAddress,
			Amount: w.Amount, CurrencyCode: w.CurrencyCode,
			HasFee: w.HasFee, Fee: w.Fee, TransferIndex: transferIndexFromUIDS(w.UIDS),
			BlockTimestamp: int64(w.BlockTimestamp), BlockNumber: w.BlockNumber,
			Confirmations: w.Confirmations, BlockTransactionIndex: w.BlockTransactionIndex,
			BlockHash: w.BlockHash, Attributes: fromAttrRLP(w.Attributes),
		}, nil
	}
	var w transferRLPv2
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Transfer{}, err
	}
	return Transfer{
		Hash: w.Hash, TxIdentifier: w.TxIdentifier, UIDS: w.UIDS,
		SourceAddress: w.SourceAddress, TargetAddress: w.TargetAddress,
		Amount: w.Amount, CurrencyCode: w.CurrencyCode,
		HasFee: w.HasFee, Fee: w.Fee, TransferIndex: w.TransferIndex,
		BlockTimestamp: int64(w.BlockTimestamp), BlockNumber: w.BlockNumber,
		Confirmations: w.Confirmations, BlockTransactionIndex: w.BlockTransactionIndex,
		BlockHash: w.BlockHash, Attributes: fromAttrRLP(w.Attributes),
	}, nil
}

// transferIndexFromUIDS parses the trailing index component of a UIDS of
// the form "<network>:<hash>:<index>" (version-1 derivation rule).
func transferIndexFromUIDS(uids string) uint32 {
	var network, hash string
	var index uint32
	n, err := fscanTriplet(uids, &network, &hash, &index)
	if err != nil || n != 3 {
		return 0
	}
	return index
}

// fscanTriplet splits uids on ':' and parses the final field as a decimal
// uint32, matching the version-1 UIDS convention without importing
// fmt.Sscanf's looser parsing.
func fscanTriplet(uids string, network, hash *string, index *uint32) (int, error) {
	var parts [3]string
	n := 0
	start := 0
	for i := 0; i < len(uids); i++ {
		if uids[i] == ':' {
			if n < 3 {
				parts[n] = uids[start:i]
			}
			n++
			start = i + 1
		}
	}
	if n < 3 {
		parts[n] = uids[start:]
		n++
	}
	if n != 3 {
		return n, nil
	}
	*network, *hash = parts[0], parts[1]
	var v uint32
	for _, c := range parts[2] {
		if c < '0' || c > '9' {
			return 0, nil
		}
		v = v*10 + uint32(c-'0')
	}
	*index = v
	return 3, nil
}

// Currency is the remote catalogue descriptor.
type Currency struct {
	ID string
	Name string
	Code string
	Type string
	BlockchainID string
	Address string
	HasAddress bool
	Verified bool
	Denominations []CurrencyDenomination
}

// CurrencyDenomination mirrors one entry of Currency.Denominations.
type CurrencyDenomination struct {
	Name string
	Code string
	Symbol string
	Decimals uint8
}

type currencyRLP struct {
	ID string
	Name string
	Code string
	Type string
	BlockchainID string
	Address string
	Verified bool
	Denominations []currencyDenominationRLP
}

type currencyDenominationRLP struct {
	Name string
	Code string
	Symbol string
	Decimals uint8
}

// Identifier returns the SHA-256 digest over the id string.
func (c Currency) Identifier() string {
	sum := sha256.Sum256([]byte(c.ID))
	return hex.EncodeToString(sum[:])
}

// Encode serializes c to RLP.
func (c Currency) Encode() ([]byte, error) {
	denoms := make([]currencyDenominationRLP, len(c.Denominations))
	for i, d := range c.Denominations {
		denoms[i] = currencyDenominationRLP{Name: d.Name, Code: d.Code, Symbol: d.Symbol, Decimals: d.Decimals}
	}
	return rlp.EncodeToBytes(currencyRLP{
		ID: c.ID, Name: c.Name, Code: c.Code, Type: c.Type,
		BlockchainID: c.BlockchainID, Address: c.Address, Verified: c.Verified,
		Denominations: denoms,
	})
}

// DecodeCurrency parses an RLP-encoded currency bundle.
func DecodeCurrency(data []byte) (Currency, error) {
	var w currencyRLP
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Currency{}, err
	}
	denoms := make([]CurrencyDenomination, len(w.Denominations))
	for i, d := range w.Denominations {
		denoms[i] = CurrencyDenomination{Name: d.Name, Code: d.Code, Symbol: d.Symbol, Decimals: d.Decimals}
	}
	return Currency{
		ID: w.ID, Name: w.Name, Code: w.Code, Type: w.Type,
		BlockchainID: w.BlockchainID, Address: w.Address, HasAddress: w.Address != "",
		Verified: w.Verified, Denominations: denoms,
	}, nil
}

// SortTransactionsByHeight sorts in place, ascending by block height,
// via a stable mergesort since input is usually already sorted.
func SortTransactionsByHeight(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].BlockHeight < txs[j].BlockHeight })
}

// SortTransfersByHeight sorts in place, ascending by block number,
// matching the order transfers are recovered at startup.
func SortTransfersByHeight(transfers []Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool { return transfers[i].BlockNumber < transfers[j].BlockNumber })
}

// SortTransactionsByHeightResponse mergesorts a response batch by block
// height ascending.
func SortTransactionsByHeightResponse(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	SortTransactionsByHeight(out)
	return out
}

// SortTransfersByHeightResponse mergesorts a response batch by block
// number ascending.
func SortTransfersByHeightResponse(transfers []Transfer) []Transfer {
	out := append([]Transfer(nil), transfers...)
	SortTransfersByHeight(out)
	return out
}

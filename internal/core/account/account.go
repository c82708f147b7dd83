// Package account implements the multi-chain account: one
// sub-account per supported chain derived once from a BIP-39 phrase, with
// a deterministic versioned serialization format checksummed with
// Fletcher-16.
//
// BIP-39/BIP-32 derivation is delegated to
// github.com/tyler-smith/go-bip39 and
// github.com/btcsuite/btcd/btcutil/hdkeychain; the file-identifier hash
// uses crypto/sha256 directly (see DESIGN.md for why SHA-256 stays on
// the standard library).
package account

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/walletcore/internal/core/errs"
)

// SerializeVersion is ACCOUNT_SERIALIZE_DEFAULT_VERSION: the only
// version this build will deserialize. Older blobs force fresh account
// creation.
const SerializeVersion uint16 = 4

// SubAccount holds one chain's derived key material. Only the fields a
// chain actually populates are non-empty; BTC/ETH are always present,
// the others are populated only when their handler participates.
type SubAccount struct {
	BTCMasterPublicKey []byte // BIP-32 serialized MPK
	ETHPublicKey []byte // 65-byte uncompressed pubkey
	XRPPublicKey []byte
	HBARPublicKey []byte
	XTZPublicKey []byte
}

// Account is the immutable, once-derived multi-chain account.
type Account struct {
	sub SubAccount
	createdAt time.Time
	uids string
}

// New derives an Account from a BIP-39 mnemonic phrase. The seed is
// zeroized after per-chain derivation.
func New(phrase string, network *chaincfg.Params, createdAt time.Time, uids string) (*Account, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return nil, errors.New("account: invalid BIP-39 phrase")
	}
	seed := bip39.NewSeed(phrase, "")
	defer zero(seed)

	master, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, fmt.Errorf("account: master key derivation failed: %w", err)
	}
	neutered, err := master.Neuter()
	if err != nil {
		return nil, fmt.Errorf("account: neuter failed: %w", err)
	}
	mpkBytes, err := serializeMasterPublicKey(neutered)
	if err != nil {
		return nil, err
	}

	ethPub, err := deriveETHPublicKey(master)
	if err != nil {
		return nil, err
	}

	return &Account{
		sub: SubAccount{
			BTCMasterPublicKey: mpkBytes,
			ETHPublicKey: ethPub,
		},
		createdAt: createdAt,
		uids: uids,
	}, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func serializeMasterPublicKey(neutered *hdkeychain.ExtendedKey) ([]byte, error) {
	s := neutered.String()
	return []byte(s), nil
}

// UIDS returns the opaque caller-assigned identifier for this account.
func (a *Account) UIDS() string { return a.uids }

// CreatedAt returns the account's creation timestamp.
func (a *Account) CreatedAt() time.Time { return a.createdAt }

// SubAccount returns the per-chain key material bundle.
func (a *Account) SubAccount() SubAccount { return a.sub }

// FileSystemIdentifier returns the first 32 hex characters of
// SHA256(SHA256(btc_master_public_key_bytes)) — the directory name under
// which this account's wallet managers persist bundles.
func (a *Account) FileSystemIdentifier() string {
	return fsIdentifier(a.sub.BTCMasterPublicKey)
}

func fsIdentifier(mpk []byte) string {
	h1 := sha256.Sum256(mpk)
	h2 := sha256.Sum256(h1[:])
	return hex.EncodeToString(h2[:])[:32]
}

// --- Serialization ---------------------------------------

// Serialize encodes the account into the versioned, checksummed blob
// format:
//
//	[u16 checksum][u32 total_size][u16 version][u64 timestamp]
//	[u32 btc_size][btc_mpk bytes]
//	[u32 eth_size][eth_pubkey bytes]
//	[u32 xrp_size][xrp_pubkey bytes]
//	[u32 hbar_size][hbar_pubkey bytes]
//	[u32 xtz_size][xtz_pubkey bytes]
//
// Checksum is Fletcher-16 over everything after the checksum field.
func (a *Account) Serialize() []byte {
	var body []byte
	body = appendU16(body, SerializeVersion)
	body = appendU64(body, uint64(a.createdAt.Unix()))
	body = appendSized(body, a.sub.BTCMasterPublicKey)
	body = appendSized(body, a.sub.ETHPublicKey)
	body = appendSized(body, a.sub.XRPPublicKey)
	body = appendSized(body, a.sub.HBARPublicKey)
	body = appendSized(body, a.sub.XTZPublicKey)

	// total_size covers everything from total_size field onward, i.e.
	// len(totalSizeField) + len(body).
	totalSize := uint32(4 + len(body))
	var sized []byte
	sized = appendU32(sized, totalSize)
	sized = append(sized, body...)

	checksum := fletcher16(sized)

	out := make([]byte, 0, 2+len(sized))
	out = appendU16(out, checksum)
	out = append(out, sized...)
	return out
}

// Deserialize validates and decodes a blob produced by Serialize. It
// returns (nil, err) — never a partial object — if the length is short,
// the declared size mismatches, the checksum fails, or the version is not
// exactly SerializeVersion.
func Deserialize(data []byte, uids string) (*Account, error) {
	const chkSize = 2
	const sizeFieldSize = 4
	if len(data) < chkSize+sizeFieldSize {
		return nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: blob too short"))
	}

	declaredChecksum := binary.BigEndian.Uint16(data[:chkSize])
	rest := data[chkSize:]

	actualChecksum := fletcher16(rest)
	if declaredChecksum != actualChecksum {
		return nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: checksum mismatch"))
	}

	totalSize := binary.BigEndian.Uint32(rest[:sizeFieldSize])
	if int(totalSize) != len(rest) {
		return nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: declared size mismatch"))
	}

	cursor := rest[sizeFieldSize:]
	if len(cursor) < 2+8 {
		return nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: truncated header"))
	}
	version := binary.BigEndian.Uint16(cursor[:2])
	if version != SerializeVersion {
		return nil, errs.New(errs.KindSerializationVersionMismatch, fmt.Errorf("account: version %d != %d", version, SerializeVersion))
	}
	cursor = cursor[2:]
	tsSeconds := binary.BigEndian.Uint64(cursor[:8])
	cursor = cursor[8:]

	btc, cursor, err := readSized(cursor)
	if err != nil {
		return nil, err
	}
	eth, cursor, err := readSized(cursor)
	if err != nil {
		return nil, err
	}
	xrp, cursor, err := readSized(cursor)
	if err != nil {
		return nil, err
	}
	hbar, cursor, err := readSized(cursor)
	if err != nil {
		return nil, err
	}
	xtz, _, err := readSized(cursor)
	if err != nil {
		return nil, err
	}

	if len(eth) != 0 && len(eth) != 65 {
		return nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: eth pubkey must be 65 bytes"))
	}

	return &Account{
		sub: SubAccount{
			BTCMasterPublicKey: btc,
			ETHPublicKey: eth,
			XRPPublicKey: xrp,
			HBARPublicKey: hbar,
			XTZPublicKey: xtz,
		},
		createdAt: time.Unix(int64(tsSeconds), 0).UTC(),
		uids: uids,
	}, nil
}

// Equal reports bitwise equality of two accounts' serialized form.
func (a *Account) Equal(o *Account) bool {
	if a == nil || o == nil {
		return a == o
	}
	return string(a.Serialize()) == string(o.Serialize())
}

func appendU16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func appendSized(b []byte, field []byte) []byte {
	b = appendU32(b, uint32(len(field)))
	return append(b, field...)
}

func readSized(b []byte) (field []byte, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: truncated size field"))
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, errs.New(errs.KindSerializationChecksumFail, errors.New("account: truncated field body"))
	}
	return b[:n], b[n:], nil
}

// fletcher16 computes the 16-bit Fletcher checksum over data, mod 255 per
// running sum (https://en.wikipedia.org/wiki/Fletcher%27s_checksum). No
// ecosystem library in the retrieval pack implements this fixed, tiny
// wire-format checksum — it is the core's own contract, not a
// cryptographic primitive, so it is implemented directly (see DESIGN.md).
func fletcher16(data []byte) uint16 {
	var sum1, sum2 uint16
	for _, b := range data {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return (sum2 << 8) | sum1
}

// Package store implements the per-wallet-manager file service: one
// directory tree per account under
// <base>/<fs_identifier>/<network>/<currency>/{transactions,transfers}/,
// plus system/state/currency-bundle/ for the system-level currency
// catalogue. Every file is [u16 version][RLP body]. It generalizes
// internal/storage's sqlite file (kept alongside, see ledger.go, as the
// supplemented migration-cursor table) to a plain-file bundle
// persistence model.
package store

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/klingon-exchange/walletcore/internal/core/bundle"
	"github.com/klingon-exchange/walletcore/internal/core/errs"
	"github.com/klingon-exchange/walletcore/pkg/logging"
)

const recordVersion uint16 = 1

// Service roots persistence for one account's wallet managers.
type Service struct {
	basePath string
	log *logging.Logger
}

// New returns a Service rooted at <basePath>/<fsIdentifier>.
func New(basePath, fsIdentifier string) *Service {
	return &Service{
		basePath: filepath.Join(basePath, fsIdentifier),
		log: logging.GetDefault().Component("store"),
	}
}

func (s *Service) transactionsDir(network, currency string) string {
	return filepath.Join(s.basePath, network, currency, "transactions")
}

func (s *Service) transfersDir(network, currency string) string {
	return filepath.Join(s.basePath, network, currency, "transfers")
}

func (s *Service) currencyBundleDir() string {
	return filepath.Join(s.basePath, "system", "state", "currency-bundle")
}

// categorize maps a raw I/O or decode error to one of the file
// service error categories, logs it, and returns the typed error. The
// manager continues operating with an empty store on any such failure.
func (s *Service) categorize(kind errs.Kind, op string, err error) error {
	wrapped := errs.New(kind, err)
	s.log.Error("file service error", "op", op, "kind", kind, "err", err)
	return wrapped
}

func writeRecord(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out[:2], recordVersion)
	copy(out[2:], body)
	return os.WriteFile(path, out, 0600)
}

func readRecord(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, errors.New("store: record too short")
	}
	return raw[2:], nil
}

// PutTransaction persists a transaction bundle, keyed by its MD5
// identifier — idempotent, overwriting any existing file with the same
// identifier.
func (s *Service) PutTransaction(network, currency string, tx bundle.Transaction) error {
	body, err := tx.Encode()
	if err != nil {
		return s.categorize(errs.KindFileServiceEntity, "encode transaction", err)
	}
	path := filepath.Join(s.transactionsDir(network, currency), tx.Identifier())
	if err := writeRecord(path, body); err != nil {
		return s.categorize(errs.KindFileServiceUnix, "write transaction", err)
	}
	return nil
}

// LoadTransactions loads every persisted transaction bundle for
// (network, currency), sorted ascending by block height. Decode
// failures are logged and skipped rather than aborting the whole load.
func (s *Service) LoadTransactions(network, currency string) []bundle.Transaction {
	dir := s.transactionsDir(network, currency)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.categorize(errs.KindFileServiceUnix, "read transactions dir", err)
		}
		return nil
	}

	var out []bundle.Transaction
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			s.categorize(errs.KindFileServiceUnix, "read transaction", err)
			continue
		}
		tx, err := bundle.DecodeTransaction(body)
		if err != nil {
			s.categorize(errs.KindFileServiceEntity, "decode transaction", err)
			continue
		}
		out = append(out, tx)
	}
	bundle.SortTransactionsByHeight(out)
	return out
}

// PutTransfer persists a transfer bundle, keyed by its MD5(UIDS)
// identifier.
func (s *Service) PutTransfer(network, currency string, t bundle.Transfer, version bundle.TransferBundleVersion) error {
	body, err := t.Encode(version)
	if err != nil {
		return s.categorize(errs.KindFileServiceEntity, "encode transfer", err)
	}
	path := filepath.Join(s.transfersDir(network, currency), t.Identifier())
	if err := writeRecord(path, body); err != nil {
		return s.categorize(errs.KindFileServiceUnix, "write transfer", err)
	}
	return nil
}

// LoadTransfers loads every persisted transfer bundle for (network,
// currency), sorted ascending by block number.
func (s *Service) LoadTransfers(network, currency string, version bundle.TransferBundleVersion) []bundle.Transfer {
	dir := s.transfersDir(network, currency)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.categorize(errs.KindFileServiceUnix, "read transfers dir", err)
		}
		return nil
	}

	var out []bundle.Transfer
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			s.categorize(errs.KindFileServiceUnix, "read transfer", err)
			continue
		}
		xfer, err := bundle.DecodeTransfer(body, version)
		if err != nil {
			s.categorize(errs.KindFileServiceEntity, "decode transfer", err)
			continue
		}
		out = append(out, xfer)
	}
	bundle.SortTransfersByHeight(out)
	return out
}

// PutCurrency persists a system-level currency bundle keyed by its
// SHA-256(id) identifier.
func (s *Service) PutCurrency(c bundle.Currency) error {
	body, err := c.Encode()
	if err != nil {
		return s.categorize(errs.KindFileServiceEntity, "encode currency", err)
	}
	path := filepath.Join(s.currencyBundleDir(), c.Identifier())
	if err := writeRecord(path, body); err != nil {
		return s.categorize(errs.KindFileServiceUnix, "write currency", err)
	}
	return nil
}

// LoadCurrencies loads every persisted currency bundle, sorted by id for
// determinism.
func (s *Service) LoadCurrencies() []bundle.Currency {
	dir := s.currencyBundleDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.categorize(errs.KindFileServiceUnix, "read currency dir", err)
		}
		return nil
	}

	var out []bundle.Currency
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			s.categorize(errs.KindFileServiceUnix, "read currency", err)
			continue
		}
		c, err := bundle.DecodeCurrency(body)
		if err != nil {
			s.categorize(errs.KindFileServiceEntity, "decode currency", err)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Package main provides walletcored - a multi-chain wallet engine daemon.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/walletcore/internal/config"
	"github.com/klingon-exchange/walletcore/internal/core/account"
	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/event"
	"github.com/klingon-exchange/walletcore/internal/core/manager"
	"github.com/klingon-exchange/walletcore/internal/core/network"
	"github.com/klingon-exchange/walletcore/internal/core/registry"
	"github.com/klingon-exchange/walletcore/internal/core/system"
	"github.com/klingon-exchange/walletcore/internal/core/transfer"
	"github.com/klingon-exchange/walletcore/pkg/logging"

	// Blank-imported so each chain's init() registers its handler group
	// with internal/core/registry before any network is installed —
	// mirroring how database/sql drivers register themselves.
	_ "github.com/klingon-exchange/walletcore/internal/chains/avax"
	_ "github.com/klingon-exchange/walletcore/internal/chains/bitcoin"
	_ "github.com/klingon-exchange/walletcore/internal/chains/ethereum"
	_ "github.com/klingon-exchange/walletcore/internal/chains/hedera"
	_ "github.com/klingon-exchange/walletcore/internal/chains/ripple"
	_ "github.com/klingon-exchange/walletcore/internal/chains/tezos"
	_ "github.com/klingon-exchange/walletcore/internal/chains/xlm"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir        = flag.String("data-dir", "~/.walletcore", "Data directory")
		phraseFile     = flag.String("phrase-file", "", "Path to a file holding a BIP-39 recovery phrase (generated if missing)")
		phrasePassword = flag.String("phrase-password", "", "Passphrase used to encrypt the phrase file at rest (plaintext file if empty)")
		testnet        = flag.Bool("testnet", false, "Install testnet networks instead of mainnet")
		logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion    = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("walletcored %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	effectiveDataDir := expandPath(*dataDir)
	if *testnet {
		effectiveDataDir = filepath.Join(effectiveDataDir, "testnet")
	}
	if err := os.MkdirAll(effectiveDataDir, 0o700); err != nil {
		log.Fatal("failed to create data directory", "error", err)
	}

	phrase, err := loadOrCreatePhrase(*phraseFile, *phrasePassword)
	if err != nil {
		log.Fatal("failed to load recovery phrase", "error", err)
	}

	acctNetwork := &chaincfg.MainNetParams
	networkType := config.Mainnet
	if *testnet {
		acctNetwork = &chaincfg.TestNet3Params
		networkType = config.Testnet
	}

	acct, err := account.New(phrase, acctNetwork, time.Now(), "walletcored-primary")
	if err != nil {
		log.Fatal("failed to derive account", "error", err)
	}
	log.Info("account derived", "fsIdentifier", acct.FileSystemIdentifier())

	listener := &logListener{log: log.Component("system")}
	sys := system.New(acct, listener, effectiveDataDir, !*testnet)
	sys.Start()
	defer sys.Stop()

	for _, nd := range config.NetworksByType(networkType) {
		installNetwork(sys, nd, log)
	}

	log.Info("walletcored started", "networks", len(sys.Networks()), "dataDir", effectiveDataDir)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
}

// installNetwork registers a compiled-in network descriptor with the
// system and creates its wallet manager in API-only sync mode.
func installNetwork(sys *system.System, nd config.NetworkDescriptor, log *logging.Logger) {
	var defaultCurrency currency.Currency
	if len(nd.Currencies) > 0 {
		cd := nd.Currencies[0]
		defaultCurrency = currency.Currency{UIDS: cd.UIDS, Name: cd.Name, Code: cd.Symbol, Type: "native"}
	}

	loop := event.NewLoop("network-"+nd.Name, 64, 0, nil)
	loop.Start()

	n := network.New(network.Descriptor{
		Chain:              nd.Chain,
		UIDS:               nd.Name,
		Name:               nd.Name,
		Kind:               string(nd.Type),
		IsMainnet:          nd.Type == config.Mainnet,
		Confirmations:      nd.Confirmations,
		ConfirmationPeriod: 30 * time.Second,
		DefaultCurrency:    defaultCurrency,
		DefaultSyncMode:    network.SyncModeAPIOnly,
		SyncModes:          []network.SyncMode{network.SyncModeAPIOnly},
	}, loop)

	sys.AddNetwork(n)

	m := sys.CreateWalletManager(n, manager.Config{
		Mode:         network.SyncModeAPIOnly,
		AccountStyle: nd.Chain != registry.ChainBtc,
	})

	log.Info("network installed", "name", nd.Name, "chain", nd.Chain, "currencies", len(nd.Currencies))

	if len(nd.Currencies) > 0 {
		cd := nd.Currencies[0]
		baseUnit := currency.Base(defaultCurrency, cd.Name, cd.Symbol, cd.Symbol)
		displayUnit := currency.Unit{Currency: defaultCurrency, Name: cd.Name, Code: cd.Symbol, Symbol: cd.Symbol, Decimals: int32(cd.Decimals)}
		w := m.InstallPrimaryWallet(baseUnit, transferIdentity)
		if decStr, err := w.Balance().DecimalString(displayUnit); err == nil {
			log.Info("primary wallet installed", "network", nd.Name, "balance", decStr)
		} else {
			log.Info("primary wallet installed", "network", nd.Name, "balance", w.Balance().String())
		}
	}
}

// transferIdentity is the default wallet Identity contract: transfers are
// the same transfer once their UIDS has been derived, falling back to
// pointer identity before that (a freshly Created transfer has no hash
// yet).
func transferIdentity(a, b *transfer.Transfer) bool {
	aID, aOK := a.Identifier(nil)
	bID, bOK := b.Identifier(nil)
	if aOK && bOK {
		return aID == bID
	}
	return a == b
}

type logListener struct {
	log *logging.Logger
}

func (l *logListener) Changed(old, new system.State)        { l.log.Info("state changed", "old", old, "new", new) }
func (l *logListener) NetworkAdded(n *network.Network)       { l.log.Info("network added", "name", n.UIDS) }
func (l *logListener) ManagerCreated(m *manager.Manager)     { l.log.Info("manager created") }
func (l *logListener) CurrenciesUpdated(n *network.Network)  { l.log.Info("currencies updated", "network", n.UIDS) }

// loadOrCreatePhrase loads the recovery phrase from path, generating and
// persisting a fresh one if it doesn't exist yet. When passphrase is
// non-empty, the file holds an account.EncryptedPhrase JSON envelope
// (Argon2id + AES-256-GCM) rather than the raw mnemonic.
func loadOrCreatePhrase(path, passphrase string) (string, error) {
	if path == "" {
		return generateMnemonic()
	}

	if passphrase != "" {
		enc, err := account.LoadEncryptedPhrase(path)
		if err == nil {
			return account.DecryptPhrase(enc, passphrase)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		phrase, err := generateMnemonic()
		if err != nil {
			return "", err
		}
		enc, err = account.EncryptPhrase(phrase, passphrase)
		if err != nil {
			return "", fmt.Errorf("walletcored: failed to encrypt generated phrase: %w", err)
		}
		if err := account.SaveEncryptedPhrase(enc, path); err != nil {
			return "", fmt.Errorf("walletcored: failed to persist generated phrase: %w", err)
		}
		return phrase, nil
	}

	b, err := os.ReadFile(path)
	if err == nil {
		return string(b), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	phrase, err := generateMnemonic()
	if err != nil {
		return "", err
	}
	if writeErr := os.WriteFile(path, []byte(phrase), 0o600); writeErr != nil {
		return "", fmt.Errorf("walletcored: failed to persist generated phrase: %w", writeErr)
	}
	return phrase, nil
}

func generateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// Package system implements the System façade: the top-level object
// owning the account, listener, networks, and wallet managers,
// with idempotent per-(system, network) manager creation and
// currency-bundle ingestion partitioned by network.
package system

import (
	"sync"

	"github.com/klingon-exchange/walletcore/internal/core/account"
	"github.com/klingon-exchange/walletcore/internal/core/bundle"
	"github.com/klingon-exchange/walletcore/internal/core/currency"
	"github.com/klingon-exchange/walletcore/internal/core/handle"
	"github.com/klingon-exchange/walletcore/internal/core/manager"
	"github.com/klingon-exchange/walletcore/internal/core/network"
	"github.com/klingon-exchange/walletcore/internal/core/store"
	"github.com/klingon-exchange/walletcore/pkg/logging"
)

// State is the system's lifecycle state.
type State int

const (
	StateCreated State = iota
	StateConnected
	StateSyncing
	StateDisconnected
	StateDeleted
)

// Listener receives system-level events.
type Listener interface {
	Changed(old, new State)
	NetworkAdded(n *network.Network)
	ManagerCreated(m *manager.Manager)
	CurrenciesUpdated(n *network.Network)
}

// System is the top-level façade.
type System struct {
	mu sync.Mutex

	account *account.Account
	listener Listener
	basePath string
	reachable bool
	isMainnet bool
	state State
	started bool

	networks []*network.Network
	managers map[string]*handle.Ref[*manager.Manager] // keyed by network UIDS

	currencyFileSvc *store.Service

	log *logging.Logger
}

// New constructs a System in state Created.
func New(acct *account.Account, listener Listener, basePath string, isMainnet bool) *System {
	return &System{
		account: acct,
		listener: listener,
		basePath: basePath,
		isMainnet: isMainnet,
		state: StateCreated,
		managers: make(map[string]*handle.Ref[*manager.Manager]),
		currencyFileSvc: store.New(basePath, acct.FileSystemIdentifier()),
		log: logging.GetDefault().Component("system"),
	}
}

// Start gates listener event delivery on.
func (s *System) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
}

// Stop gates listener event delivery off and releases every wallet
// manager's strong reference, running each manager's Stop exactly once
// as its last reference drops.
func (s *System) Stop() {
	s.mu.Lock()
	s.started = false
	refs := make([]*handle.Ref[*manager.Manager], 0, len(s.managers))
	for _, r := range s.managers {
		refs = append(refs, r)
	}
	s.mu.Unlock()
	for _, r := range refs {
		r.Give()
	}
	s.setState(StateDisconnected)
}

func (s *System) emit(f func()) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started && f != nil {
		f()
	}
}

func (s *System) setState(new State) {
	s.mu.Lock()
	old := s.state
	if old == new {
		s.mu.Unlock()
		return
	}
	s.state = new
	s.mu.Unlock()
	s.emit(func() {
		if s.listener != nil {
			s.listener.Changed(old, new)
		}
	})
}

// State returns the current system state.
func (s *System) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddNetwork registers a network with the system.
func (s *System) AddNetwork(n *network.Network) {
	s.mu.Lock()
	s.networks = append(s.networks, n)
	s.mu.Unlock()
	s.emit(func() {
		if s.listener != nil {
			s.listener.NetworkAdded(n)
		}
	})
}

// Networks returns a snapshot of registered networks.
func (s *System) Networks() []*network.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*network.Network(nil), s.networks...)
}

// CreateWalletManager idempotently creates a wallet manager for the
// given network, per (system, network). Returns the existing manager if
// one was already created.
func (s *System) CreateWalletManager(n *network.Network, cfg manager.Config) *manager.Manager {
	s.mu.Lock()
	if existing, ok := s.managers[n.UIDS]; ok {
		s.mu.Unlock()
		return existing.Peek()
	}
	cfg.Network = n
	cfg.Account = s.account
	cfg.BasePath = s.basePath
	m := manager.New(cfg)
	m.Start()
	ref := handle.New(m, func(m *manager.Manager) { m.Stop() })
	s.managers[n.UIDS] = ref
	s.mu.Unlock()

	s.emit(func() {
		if s.listener != nil {
			s.listener.ManagerCreated(m)
		}
	})
	return m
}

// Manager returns the wallet manager for a network, if one exists. The
// returned manager is only guaranteed live for the duration of the call;
// long-lived holders outside the System (e.g. event closures) should
// take a weak reference via ManagerWeak instead.
func (s *System) Manager(networkUIDS string) (*manager.Manager, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.managers[networkUIDS]
	if !ok {
		return nil, false
	}
	return ref.Peek(), true
}

// ManagerWeak returns a weak reference to a network's wallet manager, if
// one exists. Upgrade fails once System.Stop has released the manager,
// so non-owning observers never race the manager's own Stop/Destroy.
func (s *System) ManagerWeak(networkUIDS string) (*handle.Weak[*manager.Manager], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.managers[networkUIDS]
	if !ok {
		return nil, false
	}
	return ref.TakeWeak(), true
}

// Managers returns a snapshot of all created wallet managers.
func (s *System) Managers() []*manager.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*manager.Manager, 0, len(s.managers))
	for _, ref := range s.managers {
		out = append(out, ref.Peek())
	}
	return out
}

// IngestCurrencies partitions bundles by owning network, persists each,
// then installs them into each network's association set, emitting one
// CurrenciesUpdated event per affected network.
func (s *System) IngestCurrencies(bundles []bundle.Currency) {
	byNetwork := make(map[string][]bundle.Currency)
	for _, b := range bundles {
		byNetwork[b.BlockchainID] = append(byNetwork[b.BlockchainID], b)
		if err := s.currencyFileSvc.PutCurrency(b); err != nil {
			s.log.Error("currency bundle persist failed", "id", b.ID, "err", err)
		}
	}

	for _, n := range s.Networks() {
		cbs, ok := byNetwork[n.UIDS]
		if !ok {
			continue
		}
		installedAny := false
		for _, cb := range cbs {
			denoms := make([]currency.Denomination, len(cb.Denominations))
			for i, d := range cb.Denominations {
				denoms[i] = currency.Denomination{Name: d.Name, Code: d.Code, Symbol: d.Symbol, Decimals: int32(d.Decimals)}
			}
			if n.InstallCurrency(cb.ID, cb.Name, cb.Code, cb.Type, cb.Address, denoms) {
				installedAny = true
			}
		}
		if installedAny {
			target := n
			s.emit(func() {
				if s.listener != nil {
					s.listener.CurrenciesUpdated(target)
				}
			})
		}
	}
}

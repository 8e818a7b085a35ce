package session

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/chain"
	"github.com/PixelPet-dev/xlayerslot/errors"
)

// State is the wallet session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateWrongNetwork
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateWrongNetwork:
		return "wrong_network"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session at one point in time.
type Snapshot struct {
	State      State          `json:"state"`
	Account    common.Address `json:"account"`
	ChainID    uint64         `json:"chain_id"`
	Generation uint64         `json:"generation"`
	Err        string         `json:"error,omitempty"`
}

// Connected reports whether the session is usable for transactions.
func (s Snapshot) Connected() bool {
	return s.State == StateConnected && s.Account != (common.Address{})
}

// Listener receives session snapshots as the session changes.
type Listener func(Snapshot)

// Manager owns the wallet session: connection state, the active account,
// network verification, and wallet-originated change events. Account or
// chain changes invalidate the session generation so in-flight work bound
// to the old identity can detect staleness.
type Manager struct {
	client *chain.Client
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	account  common.Address
	chainID  uint64
	lastErr  string
	teardown func()

	generation atomic.Uint64

	listMu    sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func NewManager(client *chain.Client, logger zerolog.Logger) *Manager {
	return &Manager{
		client:    client,
		logger:    logger.With().Str("component", "session_manager").Logger(),
		state:     StateDisconnected,
		listeners: make(map[int]Listener),
	}
}

// Generation returns the current session generation. The counter advances
// on every account or chain change, so a value captured before an async
// operation identifies the session that operation belongs to.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:      m.state,
		Account:    m.account,
		ChainID:    m.chainID,
		Generation: m.generation.Load(),
		Err:        m.lastErr,
	}
}

// Subscribe registers a listener for session changes and returns an
// unsubscribe function. The listener is invoked immediately with the
// current snapshot.
func (m *Manager) Subscribe(fn Listener) func() {
	m.listMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listMu.Unlock()

	fn(m.Snapshot())

	return func() {
		m.listMu.Lock()
		delete(m.listeners, id)
		m.listMu.Unlock()
	}
}

func (m *Manager) notify(snap Snapshot) {
	m.listMu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Connect runs the full connection flow: prompt for an account, verify
// the network (switching or registering it in the wallet when needed),
// and begin watching for wallet-originated changes. A user rejection or
// missing wallet leaves the session disconnected; a network the user
// declined to switch leaves it in StateWrongNetwork.
func (m *Manager) Connect(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.state == StateConnecting {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, errors.New(errors.ErrBusy, "connection already in progress")
	}
	m.state = StateConnecting
	m.lastErr = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	account, err := m.client.ResolveAccount(ctx)
	if err != nil {
		return m.fail(err)
	}

	if err := m.client.EnsureNetwork(ctx); err != nil {
		m.mu.Lock()
		m.state = StateWrongNetwork
		m.account = account
		m.lastErr = err.Error()
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(snap)
		return snap, err
	}

	return m.established(ctx, account)
}

// CheckExisting restores a session without prompting: it succeeds only
// when the wallet already exposes an authorized account on the required
// network. Used on startup so a returning user is not re-prompted.
func (m *Manager) CheckExisting(ctx context.Context) (Snapshot, error) {
	account, err := m.client.ActiveAccount(ctx)
	if err != nil {
		return m.fail(err)
	}
	if account == (common.Address{}) {
		return m.Snapshot(), nil
	}

	ok, _, err := m.client.OnRequiredNetwork(ctx)
	if err != nil {
		return m.fail(err)
	}
	if !ok {
		m.mu.Lock()
		m.state = StateWrongNetwork
		m.account = account
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(snap)
		return snap, nil
	}

	return m.established(ctx, account)
}

func (m *Manager) established(ctx context.Context, account common.Address) (Snapshot, error) {
	_, chainID, err := m.client.OnRequiredNetwork(ctx)
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	m.state = StateConnected
	m.account = account
	m.chainID = chainID.Uint64()
	m.lastErr = ""
	m.startWatchingLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info().
		Str("account", account.Hex()).
		Uint64("chain_id", snap.ChainID).
		Msg("session established")
	m.notify(snap)
	return snap, nil
}

func (m *Manager) fail(err error) (Snapshot, error) {
	m.mu.Lock()
	if errors.IsUserRejected(err) || errors.IsCode(err, errors.ErrNoWalletFound) {
		m.state = StateDisconnected
	} else {
		m.state = StateError
	}
	m.lastErr = err.Error()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Warn().Err(err).Msg("session connection failed")
	m.notify(snap)
	return snap, err
}

// startWatchingLocked subscribes to wallet change events. Idempotent:
// an existing subscription is kept.
func (m *Manager) startWatchingLocked() {
	if m.teardown != nil {
		return
	}

	provider := m.client.Provider()
	unsubAccounts := provider.OnAccountsChanged(m.handleAccountsChanged)
	unsubChain := provider.OnChainChanged(m.handleChainChanged)

	var once sync.Once
	m.teardown = func() {
		once.Do(func() {
			unsubAccounts()
			unsubChain()
		})
	}
}

func (m *Manager) handleAccountsChanged(accounts []common.Address) {
	m.mu.Lock()
	prev := m.account

	if len(accounts) == 0 {
		m.generation.Add(1)
		m.state = StateDisconnected
		m.account = common.Address{}
		m.stopWatchingLocked()
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.logger.Info().Str("previous", prev.Hex()).Msg("wallet disconnected")
		m.notify(snap)
		return
	}

	next := accounts[0]
	if next == prev {
		m.mu.Unlock()
		return
	}

	// The session stays Connected rather than cycling through Connecting:
	// the wallet already authorized the new account, and the generation
	// bump makes every consumer re-derive its per-account state.
	m.generation.Add(1)
	m.account = next
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info().
		Str("previous", prev.Hex()).
		Str("account", next.Hex()).
		Msg("active account changed")
	m.notify(snap)
}

// handleChainChanged hard-resets session identity: anything resolved on
// the previous chain (balances, history, pending outcomes) is invalid.
func (m *Manager) handleChainChanged(chainID *big.Int) {
	required := m.client.RequiredChainID()

	m.mu.Lock()
	m.generation.Add(1)
	m.chainID = chainID.Uint64()
	if chainID.Cmp(required) == 0 {
		if m.account != (common.Address{}) {
			m.state = StateConnected
		}
	} else {
		m.state = StateWrongNetwork
	}
	m.lastErr = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info().
		Uint64("chain_id", snap.ChainID).
		Uint64("generation", snap.Generation).
		Str("state", snap.State.String()).
		Msg("wallet network changed")
	m.notify(snap)
}

// Disconnect tears down the session locally. The wallet keeps its own
// authorization; only this side forgets the account.
func (m *Manager) Disconnect() Snapshot {
	m.mu.Lock()
	m.generation.Add(1)
	m.state = StateDisconnected
	m.account = common.Address{}
	m.chainID = 0
	m.lastErr = ""
	m.stopWatchingLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info().Msg("session disconnected")
	m.notify(snap)
	return snap
}

func (m *Manager) stopWatchingLocked() {
	if m.teardown != nil {
		m.teardown()
		m.teardown = nil
	}
}

package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// State of the wallet session
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Session is a read-only snapshot of the active wallet session
type Session struct {
	State        State          `json:"state"`
	Account      common.Address `json:"account"`
	ChainID      uint64         `json:"chainId"`
	WalletKind   string         `json:"walletKind,omitempty"`
	WrongNetwork bool           `json:"wrongNetwork"`
}

// Connected reports whether the snapshot holds an account
func (s Session) Connected() bool {
	return s.State == StateConnected
}

// ManagerConfig configures a Manager
type ManagerConfig struct {
	// ExpectedChainID is the network swaps and liquidity actions must run on
	ExpectedChainID uint64
	// Networks holds add-network metadata keyed by chain id
	Networks map[uint64]NetworkParams
	// SettleDelay is how long AutoReconnect waits for late wallet injection
	SettleDelay time.Duration
	Notifier    Notifier
	Logger      *zap.Logger
}

// Manager owns the single wallet session. It is safe for concurrent use;
// wallet events may arrive on any goroutine.
type Manager struct {
	detector Detector
	cfg      ManagerConfig
	logger   *zap.Logger

	mu      sync.RWMutex
	state   State
	adapter *Adapter
	account common.Address
	chainID uint64
	subs    []*Subscription
	// epoch increments whenever a session is established or cleared so
	// callbacks from an older session are ignored
	epoch uint64
}

// NewManager creates a disconnected session manager
func NewManager(detector Detector, cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		detector: detector,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "wallet_session")),
		state:    StateDisconnected,
	}
}

// Session returns a snapshot of the current session
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Session {
	s := Session{State: m.state}
	if m.state == StateConnected {
		s.Account = m.account
		s.ChainID = m.chainID
		s.WrongNetwork = m.chainID != m.cfg.ExpectedChainID
		if m.adapter != nil {
			s.WalletKind = m.adapter.Kind()
		}
	}
	return s
}

// Signer returns the adapter of the active session, or nil when disconnected
func (m *Manager) Signer() *Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateConnected {
		return nil
	}
	return m.adapter
}

// RequireCorrectNetwork returns the signer and account when the session is
// connected to the expected chain. Trading paths call it before submitting.
func (m *Manager) RequireCorrectNetwork() (*Adapter, common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateConnected || m.adapter == nil {
		return nil, common.Address{}, ErrNotConnected
	}
	if m.chainID != m.cfg.ExpectedChainID {
		return nil, common.Address{}, fmt.Errorf("%w: on chain %d, expected %d",
			ErrNetworkMismatch, m.chainID, m.cfg.ExpectedChainID)
	}
	return m.adapter, m.account, nil
}

// ExpectedChainID is the chain the session must be on for trading
func (m *Manager) ExpectedChainID() uint64 {
	return m.cfg.ExpectedChainID
}

// Connect prompts the wallet for accounts and establishes the session. A
// second call while one is in flight returns ErrConnectInProgress; a call on
// an established session returns it unchanged. Connecting to the wrong
// network still succeeds, with Session.WrongNetwork set and a notice raised.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	m.mu.Lock()
	switch m.state {
	case StateConnecting:
		m.mu.Unlock()
		return Session{State: StateConnecting}, ErrConnectInProgress
	case StateConnected:
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s, nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	session, err := m.connect(ctx)
	if err != nil {
		m.mu.Lock()
		if m.state == StateConnecting {
			m.state = StateDisconnected
		}
		m.mu.Unlock()

		err = Classify(err)
		m.logger.Warn("wallet connect failed", zap.Error(err))
		m.notify(NoticeFor(err))
		return Session{State: StateDisconnected}, err
	}

	if session.WrongNetwork {
		m.notify(NoticeFor(fmt.Errorf("%w: on chain %d", ErrNetworkMismatch, session.ChainID)))
	}
	m.logger.Info("wallet connected",
		zap.String("account", session.Account.Hex()),
		zap.Uint64("chain_id", session.ChainID),
		zap.Bool("wrong_network", session.WrongNetwork))
	return session, nil
}

func (m *Manager) connect(ctx context.Context) (Session, error) {
	if m.detector == nil || !m.detector.Probe() {
		return Session{}, ErrWalletNotInstalled
	}
	adapter := NewAdapter(m.detector.Handle(), m.cfg.ExpectedChainID)

	accounts, err := adapter.RequestAccounts(ctx)
	if err != nil {
		return Session{}, err
	}
	chainID, err := adapter.ChainIDNumber(ctx)
	if err != nil {
		return Session{}, err
	}
	return m.establish(adapter, accounts[0], chainID), nil
}

// AutoReconnect waits for the settle delay, then silently restores a session
// if the wallet already exposes accounts. It never prompts and never fails:
// every error leaves the session disconnected. It reports whether a session
// was restored.
func (m *Manager) AutoReconnect(ctx context.Context) bool {
	if m.cfg.SettleDelay > 0 {
		t := time.NewTimer(m.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}

	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return false
	}
	m.state = StateConnecting
	m.mu.Unlock()

	restored := false
	defer func() {
		if !restored {
			m.mu.Lock()
			if m.state == StateConnecting {
				m.state = StateDisconnected
			}
			m.mu.Unlock()
		}
	}()

	if m.detector == nil || !m.detector.Probe() {
		return false
	}
	adapter := NewAdapter(m.detector.Handle(), m.cfg.ExpectedChainID)

	accounts, err := adapter.Accounts(ctx)
	if err != nil {
		m.logger.Debug("auto-reconnect probe failed", zap.Error(err))
		return false
	}
	if len(accounts) == 0 {
		return false
	}
	chainID, err := adapter.ChainIDNumber(ctx)
	if err != nil {
		m.logger.Debug("auto-reconnect chain lookup failed", zap.Error(err))
		return false
	}

	s := m.establish(adapter, accounts[0], chainID)
	restored = true
	m.logger.Info("wallet session restored",
		zap.String("account", s.Account.Hex()),
		zap.Uint64("chain_id", s.ChainID))
	return true
}

// establish installs a new session and subscribes to wallet events
func (m *Manager) establish(adapter *Adapter, account common.Address, chainID uint64) Session {
	m.mu.Lock()
	stale := m.subs
	m.subs = nil
	m.epoch++
	epoch := m.epoch
	m.adapter = adapter
	m.account = account
	m.chainID = chainID
	m.state = StateConnected
	session := m.snapshotLocked()
	m.mu.Unlock()
	unsubscribeAll(stale)

	subs := []*Subscription{
		adapter.On(EventAccountsChanged, func(payload any) { m.handleAccountsChanged(epoch, payload) }),
		adapter.On(EventChainChanged, func(payload any) { m.handleChainChanged(epoch, payload) }),
		adapter.On(EventDisconnect, func(any) { m.handleWalletDisconnect(epoch) }),
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.subs = subs
		subs = nil
	}
	m.mu.Unlock()
	// session was replaced while subscribing
	for _, s := range subs {
		s.Unsubscribe()
	}
	return session
}

func (m *Manager) handleAccountsChanged(epoch uint64, payload any) {
	accounts := NormalizeAddresses(payload)

	m.mu.Lock()
	if m.epoch != epoch || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	if len(accounts) == 0 {
		subs := m.clearLocked()
		m.mu.Unlock()
		unsubscribeAll(subs)
		m.logger.Info("wallet reported no accounts, session cleared")
		m.notify(Notice{Kind: NoticeInfo, Message: "Wallet disconnected."})
		return
	}
	m.account = accounts[0]
	m.mu.Unlock()
	m.logger.Info("wallet account changed", zap.String("account", accounts[0].Hex()))
}

func (m *Manager) handleChainChanged(epoch uint64, payload any) {
	chainID, err := ParseChainID(NormalizeChainID(payload, m.cfg.ExpectedChainID))
	if err != nil {
		m.logger.Warn("ignoring malformed chainChanged payload", zap.Any("payload", payload))
		return
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.chainID = chainID
	wrong := chainID != m.cfg.ExpectedChainID
	m.mu.Unlock()

	m.logger.Info("wallet chain changed", zap.Uint64("chain_id", chainID), zap.Bool("wrong_network", wrong))
	if wrong {
		m.notify(NoticeFor(fmt.Errorf("%w: on chain %d", ErrNetworkMismatch, chainID)))
	}
}

func (m *Manager) handleWalletDisconnect(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	subs := m.clearLocked()
	m.mu.Unlock()
	unsubscribeAll(subs)
	m.logger.Info("wallet emitted disconnect, session cleared")
}

// SwitchNetwork asks the wallet to move to target. When the wallet does not
// know the chain, the network is added with its full metadata and the switch
// is retried once.
func (m *Manager) SwitchNetwork(ctx context.Context, target uint64) error {
	adapter := m.Signer()
	if adapter == nil {
		return ErrNotConnected
	}

	if err := m.switchNetwork(ctx, adapter, target); err != nil {
		err = Classify(err)
		m.logger.Warn("network switch failed", zap.Uint64("target", target), zap.Error(err))
		m.notify(NoticeFor(err))
		return err
	}

	// Wallets that emit chainChanged have already updated us; others have not.
	chainID, err := adapter.ChainIDNumber(ctx)
	if err != nil {
		chainID = target
	}
	m.mu.Lock()
	if m.adapter == adapter && m.state == StateConnected {
		m.chainID = chainID
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) switchNetwork(ctx context.Context, adapter *Adapter, target uint64) error {
	hex := ChainIDToHex(target)
	_, err := adapter.Request(ctx, MethodSwitchNetwork, hex)
	if err == nil {
		return nil
	}
	if err = Classify(err); !errors.Is(err, ErrUnknownNetwork) {
		return err
	}

	params, ok := m.cfg.Networks[target]
	if !ok {
		return fmt.Errorf("no metadata for chain %d: %w", target, err)
	}
	params.ChainID = hex
	m.logger.Info("wallet does not know network, adding it", zap.Uint64("target", target))
	if _, err := adapter.Request(ctx, MethodAddNetwork, params); err != nil {
		return err
	}
	_, err = adapter.Request(ctx, MethodSwitchNetwork, hex)
	return err
}

// Disconnect calls the wallet's disconnect (errors ignored) and clears the
// session unconditionally.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	adapter := m.adapter
	subs := m.clearLocked()
	m.mu.Unlock()

	unsubscribeAll(subs)
	if adapter != nil {
		if err := adapter.Disconnect(ctx); err != nil {
			m.logger.Debug("wallet disconnect failed", zap.Error(err))
		}
	}
	m.logger.Info("wallet session cleared")
}

func (m *Manager) clearLocked() []*Subscription {
	subs := m.subs
	m.subs = nil
	m.epoch++
	m.adapter = nil
	m.account = common.Address{}
	m.chainID = 0
	m.state = StateDisconnected
	return subs
}

func unsubscribeAll(subs []*Subscription) {
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (m *Manager) notify(n Notice) {
	if m.cfg.Notifier != nil {
		m.cfg.Notifier(n)
	}
}

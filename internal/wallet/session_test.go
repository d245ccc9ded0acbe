package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otherAccount = "0x6B175474E89094C44Da98b954EedeAC495271d0F"

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) kinds() []NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

func newTestManager(w Provider, rec *noticeRecorder) *Manager {
	cfg := ManagerConfig{
		ExpectedChainID: 8,
		Networks: map[uint64]NetworkParams{
			8: {
				ChainName:      "Supra EVM",
				NativeCurrency: NativeCurrency{Name: "Supra", Symbol: "SUPRA", Decimals: 18},
				RPCURLs:        []string{"https://rpc.example"},
			},
		},
	}
	if rec != nil {
		cfg.Notifier = rec.notify
	}
	return NewManager(StaticDetector{Provider: w}, cfg)
}

func TestManagerConnect(t *testing.T) {
	ctx := context.Background()
	rec := &noticeRecorder{}
	w := newFakeWallet([]any{longAccount}, 8)
	m := newTestManager(w, rec)

	s, err := m.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateConnected, s.State)
	assert.Equal(t, usdtChecksummed, s.Account.Hex())
	assert.Equal(t, uint64(8), s.ChainID)
	assert.False(t, s.WrongNetwork)
	assert.Equal(t, "fake", s.WalletKind)
	assert.Empty(t, rec.kinds())

	signer, account, err := m.RequireCorrectNetwork()
	require.NoError(t, err)
	assert.NotNil(t, signer)
	assert.Equal(t, s.Account, account)

	// connecting again returns the same session without prompting
	again, err := m.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, again)
	assert.Equal(t, 1, w.connectCalls)
}

func TestManagerConnectWrongNetwork(t *testing.T) {
	rec := &noticeRecorder{}
	m := newTestManager(newFakeWallet([]any{usdtChecksummed}, "0x1"), rec)

	s, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Connected())
	assert.True(t, s.WrongNetwork)
	assert.Equal(t, []NoticeKind{NoticeWrongNetwork}, rec.kinds())

	_, _, err = m.RequireCorrectNetwork()
	assert.ErrorIs(t, err, ErrNetworkMismatch)
}

func TestManagerConnectFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		wantErr  error
		wantKind NoticeKind
	}{
		{
			name:     "not installed",
			provider: nil,
			wantErr:  ErrWalletNotInstalled,
			wantKind: NoticeWalletNotInstalled,
		},
		{
			name: "user rejected",
			provider: func() Provider {
				w := newFakeWallet(nil, 8)
				w.connectErr = &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
				return w
			}(),
			wantErr:  ErrUserRejected,
			wantKind: NoticeUserRejected,
		},
		{
			name: "pending request",
			provider: func() Provider {
				w := newFakeWallet(nil, 8)
				w.connectErr = &ProviderError{Code: CodeRequestPending, Message: "already pending"}
				return w
			}(),
			wantErr:  ErrPendingRequest,
			wantKind: NoticePendingRequest,
		},
		{
			name:     "malformed accounts",
			provider: newFakeWallet([]any{"not-an-address"}, 8),
			wantErr:  ErrMalformedResponse,
			wantKind: NoticeMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &noticeRecorder{}
			m := newTestManager(tt.provider, rec)

			s, err := m.Connect(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateDisconnected, s.State)
			assert.Equal(t, StateDisconnected, m.Session().State)
			assert.Equal(t, []NoticeKind{tt.wantKind}, rec.kinds())
		})
	}
}

func TestManagerConnectIgnoresConcurrentCall(t *testing.T) {
	w := newFakeWallet([]any{usdtChecksummed}, 8)
	w.block = make(chan struct{})
	m := newTestManager(w, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return m.Session().State == StateConnecting }, time.Second, 5*time.Millisecond)

	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectInProgress)

	close(w.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, w.connectCalls)
	assert.True(t, m.Session().Connected())
}

func TestManagerAutoReconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("restores silently", func(t *testing.T) {
		rec := &noticeRecorder{}
		w := newFakeWallet([]any{usdtChecksummed}, 8)
		m := newTestManager(w, rec)

		assert.True(t, m.AutoReconnect(ctx))
		assert.True(t, m.Session().Connected())
		assert.Zero(t, w.connectCalls)
		assert.Empty(t, rec.kinds())
	})

	t.Run("no accounts stays disconnected", func(t *testing.T) {
		m := newTestManager(newFakeWallet([]any{}, 8), nil)
		assert.False(t, m.AutoReconnect(ctx))
		assert.Equal(t, StateDisconnected, m.Session().State)
	})

	t.Run("errors are swallowed", func(t *testing.T) {
		rec := &noticeRecorder{}
		w := newFakeWallet(nil, 8)
		w.accountsErr = &ProviderError{Code: CodeUnauthorized, Message: "locked"}
		m := newTestManager(w, rec)

		assert.False(t, m.AutoReconnect(ctx))
		assert.Equal(t, StateDisconnected, m.Session().State)
		assert.Empty(t, rec.kinds())
	})

	t.Run("no wallet", func(t *testing.T) {
		m := newTestManager(nil, nil)
		assert.False(t, m.AutoReconnect(ctx))
	})

	t.Run("settle delay honors cancellation", func(t *testing.T) {
		m := NewManager(StaticDetector{Provider: newFakeWallet([]any{usdtChecksummed}, 8)},
			ManagerConfig{ExpectedChainID: 8, SettleDelay: time.Hour})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.False(t, m.AutoReconnect(cctx))
		assert.Equal(t, StateDisconnected, m.Session().State)
	})
}

func TestManagerAccountsChanged(t *testing.T) {
	w := newFakeWallet([]any{usdtChecksummed}, 8)
	m := newTestManager(w, nil)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	w.emit(EventAccountsChanged, []any{otherAccount})
	assert.Equal(t, common.HexToAddress(otherAccount), m.Session().Account)

	// entries that fail normalization are dropped, leaving nothing
	w.emit(EventAccountsChanged, []any{"bogus"})
	s := m.Session()
	assert.Equal(t, StateDisconnected, s.State)
	assert.Equal(t, common.Address{}, s.Account)
	assert.Zero(t, s.ChainID)
	assert.Nil(t, m.Signer())
	assert.Zero(t, w.listenerCount(EventAccountsChanged))
	assert.Zero(t, w.listenerCount(EventChainChanged))
}

func TestManagerEmptyAccountsDisconnects(t *testing.T) {
	w := newFakeWallet([]any{usdtChecksummed}, 8)
	m := newTestManager(w, nil)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	w.emit(EventAccountsChanged, []any{})

	s := m.Session()
	assert.Equal(t, StateDisconnected, s.State)
	assert.Equal(t, common.Address{}, s.Account)
	assert.Zero(t, s.ChainID)
	assert.Nil(t, m.Signer())
}

func TestManagerChainChanged(t *testing.T) {
	rec := &noticeRecorder{}
	w := newFakeWallet([]any{usdtChecksummed}, 8)
	m := newTestManager(w, rec)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	w.emit(EventChainChanged, map[string]any{"chainId": 1})
	s := m.Session()
	assert.Equal(t, uint64(1), s.ChainID)
	assert.True(t, s.WrongNetwork)
	assert.Equal(t, []NoticeKind{NoticeWrongNetwork}, rec.kinds())

	w.emit(EventChainChanged, "0x8")
	assert.False(t, m.Session().WrongNetwork)
}

func TestManagerSwitchNetwork(t *testing.T) {
	ctx := context.Background()

	t.Run("direct switch", func(t *testing.T) {
		w := newFakeWallet([]any{usdtChecksummed}, 1)
		m := newTestManager(w, nil)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, m.SwitchNetwork(ctx, 8))
		assert.Equal(t, uint64(8), m.Session().ChainID)
		assert.Empty(t, w.added)
	})

	t.Run("unknown chain is added then retried", func(t *testing.T) {
		w := newFakeWallet([]any{usdtChecksummed}, 1)
		w.switchErrs = []error{&ProviderError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID"}}
		m := newTestManager(w, nil)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, m.SwitchNetwork(ctx, 8))
		assert.Equal(t, []string{"0x8", "0x8"}, w.switchCalls)
		require.Len(t, w.added, 1)
		assert.Equal(t, "0x8", w.added[0].ChainID)
		assert.Equal(t, "Supra EVM", w.added[0].ChainName)
		assert.Equal(t, "SUPRA", w.added[0].NativeCurrency.Symbol)
		assert.False(t, m.Session().WrongNetwork)
	})

	t.Run("rejection becomes a notice", func(t *testing.T) {
		rec := &noticeRecorder{}
		w := newFakeWallet([]any{usdtChecksummed}, 1)
		w.switchErrs = []error{&ProviderError{Code: CodeUserRejected, Message: "User rejected"}}
		m := newTestManager(w, rec)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		err = m.SwitchNetwork(ctx, 8)
		assert.ErrorIs(t, err, ErrUserRejected)
		assert.Contains(t, rec.kinds(), NoticeUserRejected)
		assert.True(t, m.Session().Connected())
	})

	t.Run("requires a session", func(t *testing.T) {
		m := newTestManager(newFakeWallet(nil, 1), nil)
		assert.ErrorIs(t, m.SwitchNetwork(ctx, 8), ErrNotConnected)
	})
}

func TestManagerDisconnect(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet([]any{usdtChecksummed}, 8)
	called := false
	w.disconnectFn = func() error {
		called = true
		return assert.AnError
	}
	m := newTestManager(w, nil)
	_, err := m.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, w.listenerCount(EventAccountsChanged))

	m.Disconnect(ctx)
	assert.True(t, called)
	assert.Equal(t, StateDisconnected, m.Session().State)
	assert.Zero(t, w.listenerCount(EventAccountsChanged))

	// events after disconnect are ignored
	w.emit(EventAccountsChanged, []any{otherAccount})
	assert.Equal(t, StateDisconnected, m.Session().State)

	_, _, err = m.RequireCorrectNetwork()
	assert.ErrorIs(t, err, ErrNotConnected)
}

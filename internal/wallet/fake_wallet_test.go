package wallet

import (
	"context"
	"sync"
)

// fakeWallet mimics the targeted non-standard wallet: native method names,
// decimal chain ids and over-long account strings.
type fakeWallet struct {
	mu sync.Mutex

	accounts     any
	chainID      any
	connectErr   error
	accountsErr  error
	switchErrs   []error
	addErr       error
	disconnectFn func() error

	connectCalls  int
	accountsCalls int
	switchCalls   []string
	added         []NetworkParams
	sent          []TxRequest

	listeners map[string]map[int]Handler
	nextID    int
	// block, when set, holds Connect until closed
	block chan struct{}
}

func newFakeWallet(accounts any, chainID any) *fakeWallet {
	return &fakeWallet{accounts: accounts, chainID: chainID, listeners: map[string]map[int]Handler{}}
}

func (w *fakeWallet) Connect(ctx context.Context) (any, error) {
	w.mu.Lock()
	w.connectCalls++
	block := w.block
	w.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connectErr != nil {
		return nil, w.connectErr
	}
	return w.accounts, nil
}

func (w *fakeWallet) Accounts(context.Context) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accountsCalls++
	if w.accountsErr != nil {
		return nil, w.accountsErr
	}
	return w.accounts, nil
}

func (w *fakeWallet) ChainID(context.Context) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

func (w *fakeWallet) SendTransaction(_ context.Context, tx TxRequest) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, tx)
	return "0xhash", nil
}

func (w *fakeWallet) SwitchNetwork(_ context.Context, chainIDHex string) (any, error) {
	w.mu.Lock()
	w.switchCalls = append(w.switchCalls, chainIDHex)
	var err error
	if len(w.switchErrs) > 0 {
		err, w.switchErrs = w.switchErrs[0], w.switchErrs[1:]
	}
	if err == nil {
		w.chainID = chainIDHex
	}
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	w.emit(EventChainChanged, chainIDHex)
	return nil, nil
}

func (w *fakeWallet) AddNetwork(_ context.Context, params NetworkParams) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.added = append(w.added, params)
	return nil, w.addErr
}

func (w *fakeWallet) Disconnect(context.Context) error {
	if w.disconnectFn != nil {
		return w.disconnectFn()
	}
	return nil
}

func (w *fakeWallet) On(event string, h Handler) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listeners[event] == nil {
		w.listeners[event] = map[int]Handler{}
	}
	id := w.nextID
	w.nextID++
	w.listeners[event][id] = h
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners[event], id)
	}
}

func (w *fakeWallet) WalletName() string { return "fake" }

func (w *fakeWallet) listenerCount(event string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners[event])
}

func (w *fakeWallet) emit(event string, payload any) {
	w.mu.Lock()
	handlers := make([]Handler, 0, len(w.listeners[event]))
	for _, h := range w.listeners[event] {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
}

// bareWallet exposes nothing but a generic request passthrough
type bareWallet struct {
	calls []string
}

func (b *bareWallet) Request(_ context.Context, method string, _ ...any) (any, error) {
	b.calls = append(b.calls, method)
	return "ok:" + method, nil
}

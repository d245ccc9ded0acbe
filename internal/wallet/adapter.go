package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Standard request methods understood by the Adapter
const (
	MethodRequestAccounts = "requestAccounts"
	MethodGetAccounts     = "getAccounts"
	MethodGetChainID      = "getChainId"
	MethodSendTransaction = "sendTransaction"
	MethodSignMessage     = "signMessage"
	MethodSwitchNetwork   = "switchNetwork"
	MethodAddNetwork      = "addNetwork"
)

// Adapter presents a uniform request/event contract over a non-standard
// injected wallet. Address- and chain-bearing results are normalized here and
// nowhere else. The adapter keeps no state beyond the wrapped provider.
type Adapter struct {
	provider       Provider
	defaultChainID uint64
}

// NewAdapter wraps a raw provider. defaultChainID is used when the wallet
// cannot report its chain.
func NewAdapter(provider Provider, defaultChainID uint64) *Adapter {
	return &Adapter{provider: provider, defaultChainID: defaultChainID}
}

// Provider returns the wrapped raw provider
func (a *Adapter) Provider() Provider {
	return a.provider
}

// Request dispatches a standard method. Results:
//   - requestAccounts, getAccounts: []common.Address
//   - getChainId: string (0x hex)
//   - everything else: the wallet's raw result
func (a *Adapter) Request(ctx context.Context, method string, params ...any) (any, error) {
	switch method {
	case MethodRequestAccounts:
		return a.RequestAccounts(ctx)
	case MethodGetAccounts:
		return a.Accounts(ctx)
	case MethodGetChainID:
		return a.ChainID(ctx)
	case MethodSendTransaction:
		s, ok := a.provider.(TransactionSender)
		if !ok {
			return a.passthrough(ctx, method, params)
		}
		tx, ok := firstParam[TxRequest](params)
		if !ok {
			return a.untyped(ctx, method, "TxRequest", params)
		}
		return s.SendTransaction(ctx, tx)
	case MethodSignMessage:
		if s, ok := a.provider.(MessageSigner); ok {
			if len(params) == 0 {
				return nil, fmt.Errorf("%s: missing message", method)
			}
			return s.SignMessage(ctx, params[0])
		}
		return a.passthrough(ctx, method, params)
	case MethodSwitchNetwork:
		s, ok := a.provider.(NetworkSwitcher)
		if !ok {
			return a.passthrough(ctx, method, params)
		}
		chainID, ok := firstParam[string](params)
		if !ok {
			return a.untyped(ctx, method, "chain id hex", params)
		}
		return s.SwitchNetwork(ctx, chainID)
	case MethodAddNetwork:
		s, ok := a.provider.(NetworkAdder)
		if !ok {
			return a.passthrough(ctx, method, params)
		}
		np, ok := firstParam[NetworkParams](params)
		if !ok {
			return a.untyped(ctx, method, "NetworkParams", params)
		}
		return s.AddNetwork(ctx, np)
	default:
		return a.passthrough(ctx, method, params)
	}
}

func (a *Adapter) passthrough(ctx context.Context, method string, params []any) (any, error) {
	r, ok := a.provider.(Requester)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnsupported, method)
	}
	return r.Request(ctx, method, params...)
}

// untyped handles a param the typed entry point cannot take. A wallet that
// also has a generic Request receives it raw.
func (a *Adapter) untyped(ctx context.Context, method, want string, params []any) (any, error) {
	if _, ok := a.provider.(Requester); ok {
		return a.passthrough(ctx, method, params)
	}
	return nil, fmt.Errorf("%s: expected %s param", method, want)
}

func firstParam[T any](params []any) (T, bool) {
	var zero T
	if len(params) == 0 {
		return zero, false
	}
	switch v := params[0].(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	return zero, false
}

// RequestAccounts runs the wallet's connect entry point and returns the
// normalized accounts. An empty result is ErrNoValidAddress.
func (a *Adapter) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var (
		raw any
		err error
	)
	switch p := a.provider.(type) {
	case Connector:
		raw, err = p.Connect(ctx)
	case Requester:
		raw, err = p.Request(ctx, MethodRequestAccounts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodUnsupported, MethodRequestAccounts)
	}
	if err != nil {
		return nil, err
	}

	accounts := NormalizeAddresses(raw)
	if len(accounts) == 0 {
		// Some wallets return nothing useful from connect but answer the accessor
		if lister, ok := a.provider.(AccountLister); ok {
			if again, lerr := lister.Accounts(ctx); lerr == nil {
				accounts = NormalizeAddresses(again)
			}
		}
	}
	if len(accounts) == 0 {
		return nil, ErrNoValidAddress
	}
	return accounts, nil
}

// Accounts reads accounts without prompting. A wallet without an accessor
// yields an empty list rather than an error.
func (a *Adapter) Accounts(ctx context.Context) ([]common.Address, error) {
	lister, ok := a.provider.(AccountLister)
	if !ok {
		return []common.Address{}, nil
	}
	raw, err := lister.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeAddresses(raw), nil
}

// ChainID returns the wallet's chain as normalized hex, or the default
// chain's hex id when the wallet exposes no accessor.
func (a *Adapter) ChainID(ctx context.Context) (string, error) {
	getter, ok := a.provider.(ChainIDGetter)
	if !ok {
		return ChainIDToHex(a.defaultChainID), nil
	}
	raw, err := getter.ChainID(ctx)
	if err != nil {
		return "", err
	}
	return NormalizeChainID(raw, a.defaultChainID), nil
}

// ChainIDNumber is ChainID parsed into the integer used for comparisons
func (a *Adapter) ChainIDNumber(ctx context.Context) (uint64, error) {
	hex, err := a.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return ParseChainID(hex)
}

// Subscription is a registered listener. Unsubscribe is idempotent.
type Subscription struct {
	once   sync.Once
	remove func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.remove != nil {
			s.remove()
		}
	})
}

// On forwards listener registration to the wallet. Wallets without an
// emitter get a no-op subscription.
func (a *Adapter) On(event string, h Handler) *Subscription {
	src, ok := a.provider.(EventSource)
	if !ok || h == nil {
		return &Subscription{}
	}
	return &Subscription{remove: src.On(event, h)}
}

// RemoveListener removes a listener registered with On
func (a *Adapter) RemoveListener(sub *Subscription) {
	sub.Unsubscribe()
}

// Disconnect calls the wallet's native disconnect when it has one
func (a *Adapter) Disconnect(ctx context.Context) error {
	if d, ok := a.provider.(Disconnector); ok {
		return d.Disconnect(ctx)
	}
	return nil
}

// Kind reports the wallet's self-declared name, if any
func (a *Adapter) Kind() string {
	if n, ok := a.provider.(Named); ok {
		return n.WalletName()
	}
	return "injected"
}

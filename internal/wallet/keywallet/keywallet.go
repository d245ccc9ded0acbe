// Package keywallet is a private-key backed wallet that speaks the same
// non-standard surface as the injected browser wallet: decimal chain ids,
// padded account strings, native method names and event callbacks. The local
// bridge uses it as its signer.
package keywallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/wallet"
)

// Name is what the wallet reports as its kind
const Name = "keywallet"

// Backend is the chain access the wallet needs to broadcast
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Dialer opens a backend for an RPC endpoint
type Dialer func(rpcURL string) (Backend, error)

// Wallet holds one key and a set of known networks
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	dial    Dialer
	logger  *zap.Logger

	mu        sync.Mutex
	connected bool
	chainID   uint64
	networks  map[uint64]wallet.NetworkParams
	backends  map[uint64]Backend
	listeners map[string]map[int]wallet.Handler
	nextID    int
}

// New creates a wallet from a hex private key, starting on chainID
func New(hexKey string, chainID uint64, networks map[uint64]wallet.NetworkParams, dial Dialer, logger *zap.Logger) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if _, ok := networks[chainID]; !ok {
		return nil, fmt.Errorf("chain %d is not a configured network", chainID)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	known := make(map[uint64]wallet.NetworkParams, len(networks))
	for id, n := range networks {
		known[id] = n
	}

	return &Wallet{
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		dial:      dial,
		logger:    logger.With(zap.String("component", "keywallet")),
		chainID:   chainID,
		networks:  known,
		backends:  make(map[uint64]Backend),
		listeners: make(map[string]map[int]wallet.Handler),
	}, nil
}

// Address is the account controlled by the key
func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) WalletName() string { return Name }

// paddedAccount is the 32-byte form this wallet family returns for accounts
func (w *Wallet) paddedAccount() string {
	return "0x" + strings.Repeat("0", 24) + strings.ToLower(w.address.Hex()[2:])
}

// Connect marks the wallet connected and returns its accounts
func (w *Wallet) Connect(ctx context.Context) (any, error) {
	w.mu.Lock()
	already := w.connected
	w.connected = true
	w.mu.Unlock()

	accounts := []string{w.paddedAccount()}
	if !already {
		w.emit(wallet.EventAccountsChanged, accounts)
	}
	return accounts, nil
}

// Accounts lists accounts without prompting; empty until connected
func (w *Wallet) Accounts(ctx context.Context) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return []string{}, nil
	}
	return []string{w.paddedAccount()}, nil
}

// ChainID reports the active chain as a plain number
func (w *Wallet) ChainID(ctx context.Context) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

// SendTransaction signs tx with the key and broadcasts it on the active
// network. It returns the transaction hash as hex.
func (w *Wallet) SendTransaction(ctx context.Context, req wallet.TxRequest) (any, error) {
	w.mu.Lock()
	connected, chainID := w.connected, w.chainID
	w.mu.Unlock()

	if !connected {
		return nil, &wallet.ProviderError{Code: wallet.CodeUnauthorized, Message: "wallet not connected"}
	}
	if req.From != "" {
		from, ok := wallet.NormalizeAddress(req.From)
		if !ok || from != w.address {
			return nil, &wallet.ProviderError{Code: wallet.CodeUnauthorized, Message: "from address not controlled by this wallet"}
		}
	}

	backend, err := w.backend(chainID)
	if err != nil {
		return nil, err
	}

	tx, err := w.buildTx(ctx, backend, req)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(tx, types.NewEIP155Signer(new(big.Int).SetUint64(chainID)), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast transaction: %w", err)
	}

	w.logger.Info("transaction broadcast",
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("chain_id", chainID),
		zap.Uint64("nonce", signed.Nonce()))
	return signed.Hash().Hex(), nil
}

func (w *Wallet) buildTx(ctx context.Context, backend Backend, req wallet.TxRequest) (*types.Transaction, error) {
	var to *common.Address
	if req.To != "" {
		addr, ok := wallet.NormalizeAddress(req.To)
		if !ok {
			return nil, fmt.Errorf("invalid to address %q", req.To)
		}
		to = &addr
	}

	value := new(big.Int)
	if req.Value != "" {
		v, err := hexutil.DecodeBig(req.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", req.Value, err)
		}
		value = v
	}

	var data []byte
	if req.Data != "" {
		d, err := hexutil.Decode(req.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
		data = d
	}

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	var gasPrice *big.Int
	if req.GasPrice != "" {
		if gasPrice, err = hexutil.DecodeBig(req.GasPrice); err != nil {
			return nil, fmt.Errorf("invalid gasPrice: %w", err)
		}
	} else if gasPrice, err = backend.SuggestGasPrice(ctx); err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	var gas uint64
	if req.Gas != "" {
		if gas, err = hexutil.DecodeUint64(req.Gas); err != nil {
			return nil, fmt.Errorf("invalid gas: %w", err)
		}
	} else {
		estimate, err := backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  w.address,
			To:    to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		// 20% headroom over the node's estimate
		gas = estimate * 120 / 100
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	}), nil
}

func (w *Wallet) backend(chainID uint64) (Backend, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.backends[chainID]; ok {
		return b, nil
	}
	network, ok := w.networks[chainID]
	if !ok || len(network.RPCURLs) == 0 {
		return nil, fmt.Errorf("no rpc endpoint for chain %d", chainID)
	}
	if w.dial == nil {
		return nil, fmt.Errorf("no dialer configured")
	}
	b, err := w.dial(network.RPCURLs[0])
	if err != nil {
		return nil, err
	}
	w.backends[chainID] = b
	return b, nil
}

// SignMessage produces an EIP-191 personal signature. Hex strings are signed
// as raw bytes; other strings as UTF-8 text.
func (w *Wallet) SignMessage(ctx context.Context, message any) (any, error) {
	var payload []byte
	switch m := message.(type) {
	case []byte:
		payload = m
	case string:
		if b, err := hexutil.Decode(m); err == nil {
			payload = b
		} else {
			payload = []byte(m)
		}
	default:
		return nil, fmt.Errorf("unsupported message type %T", message)
	}

	sig, err := crypto.Sign(accounts.TextHash(payload), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// SwitchNetwork activates a known network. Unknown networks fail with the
// unrecognized-chain code so callers can add them first.
func (w *Wallet) SwitchNetwork(ctx context.Context, chainIDHex string) (any, error) {
	id, err := wallet.ParseChainID(chainIDHex)
	if err != nil {
		return nil, &wallet.ProviderError{Code: -32602, Message: err.Error()}
	}

	w.mu.Lock()
	if _, ok := w.networks[id]; !ok {
		w.mu.Unlock()
		return nil, &wallet.ProviderError{
			Code:    wallet.CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain first.", chainIDHex),
		}
	}
	changed := w.chainID != id
	w.chainID = id
	w.mu.Unlock()

	if changed {
		w.logger.Info("switched network", zap.Uint64("chain_id", id))
		w.emit(wallet.EventChainChanged, id)
	}
	return nil, nil
}

// AddNetwork registers network metadata without switching to it
func (w *Wallet) AddNetwork(ctx context.Context, params wallet.NetworkParams) (any, error) {
	id, err := wallet.ParseChainID(params.ChainID)
	if err != nil {
		return nil, &wallet.ProviderError{Code: -32602, Message: err.Error()}
	}
	if len(params.RPCURLs) == 0 {
		return nil, &wallet.ProviderError{Code: -32602, Message: "rpcUrls is required"}
	}

	w.mu.Lock()
	w.networks[id] = params
	delete(w.backends, id)
	w.mu.Unlock()

	w.logger.Info("network added", zap.Uint64("chain_id", id), zap.String("name", params.ChainName))
	return nil, nil
}

// Disconnect forgets the connection and notifies listeners
func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	was := w.connected
	w.connected = false
	w.mu.Unlock()
	if was {
		w.emit(wallet.EventDisconnect, nil)
	}
	return nil
}

// On registers an event listener and returns its removal function
func (w *Wallet) On(event string, h wallet.Handler) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listeners[event] == nil {
		w.listeners[event] = make(map[int]wallet.Handler)
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

func (w *Wallet) emit(event string, payload any) {
	w.mu.Lock()
	handlers := make([]wallet.Handler, 0, len(w.listeners[event]))
	for _, h := range w.listeners[event] {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

package services

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/infrastructure/dex"
	"github.com/bimakw/dex-client/internal/infrastructure/pricing"
	"github.com/bimakw/dex-client/internal/wallet"
)

var (
	routerAddress = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	pairAddress   = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")
	userAddress   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	nativeETH = entities.NativeToken(1, "Ether", "ETH", 18)
)

func units(s string, decimals uint8) *big.Int {
	v, err := entities.ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// MockDEXClient is a mock implementation of DEXClient for testing
type MockDEXClient struct {
	mu         sync.Mutex
	pairs      map[string]*entities.Pair
	amountsOut []*big.Int
	err        error
	lookups    int
}

func NewMockDEXClient() *MockDEXClient {
	return &MockDEXClient{pairs: make(map[string]*entities.Pair)}
}

func (m *MockDEXClient) SetPair(pair *entities.Pair) {
	m.pairs[pairKey(pair.Token0.Address, pair.Token1.Address)] = pair
}

func (m *MockDEXClient) SetAmountsOut(amounts ...*big.Int) {
	m.amountsOut = amounts
}

func (m *MockDEXClient) SetError(err error) {
	m.err = err
}

func (m *MockDEXClient) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

func pairKey(tokenA, tokenB common.Address) string {
	a, b := entities.SortTokens(tokenA, tokenB)
	return a.Hex() + "-" + b.Hex()
}

func (m *MockDEXClient) GetPairAddress(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if m.err != nil {
		return common.Address{}, m.err
	}
	if pair, ok := m.pairs[pairKey(tokenA, tokenB)]; ok {
		return pair.Address, nil
	}
	return common.Address{}, nil
}

func (m *MockDEXClient) GetPairByTokens(ctx context.Context, tokenA, tokenB entities.Token) (*entities.Pair, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if pair, ok := m.pairs[pairKey(tokenA.Address, tokenB.Address)]; ok {
		return pair, nil
	}
	return nil, dex.ErrPairNotFound
}

func (m *MockDEXClient) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.amountsOut != nil {
		return m.amountsOut, nil
	}
	if pair, ok := m.pairs[pairKey(path[0], path[len(path)-1])]; ok {
		return []*big.Int{amountIn, pair.GetAmountOut(amountIn, path[0])}, nil
	}
	return nil, errors.New("execution reverted: UniswapV2Library: INSUFFICIENT_LIQUIDITY")
}

func (m *MockDEXClient) Router() common.Address {
	return routerAddress
}

// MockTokenReader serves ERC-20 state from maps
type MockTokenReader struct {
	mu         sync.Mutex
	metadata   map[common.Address]dex.TokenMetadata
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
}

func NewMockTokenReader() *MockTokenReader {
	return &MockTokenReader{
		metadata:   make(map[common.Address]dex.TokenMetadata),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
	}
}

func (m *MockTokenReader) Metadata(ctx context.Context, token common.Address) (dex.TokenMetadata, error) {
	md, ok := m.metadata[token]
	if !ok {
		return dex.TokenMetadata{}, dex.ErrNoContract
	}
	return md, nil
}

func (m *MockTokenReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *MockTokenReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.allowances[token]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

func (m *MockTokenReader) setAllowance(token common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[token] = amount
}

// MockChain returns receipts after a configurable number of pending polls
type MockChain struct {
	mu            sync.Mutex
	nativeBalance *big.Int
	pendingPolls  int
	status        uint64
	polls         map[common.Hash]int
}

func NewMockChain(balance *big.Int) *MockChain {
	return &MockChain{
		nativeBalance: balance,
		status:        types.ReceiptStatusSuccessful,
		polls:         make(map[common.Hash]int),
	}
}

func (m *MockChain) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.nativeBalance), nil
}

func (m *MockChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls[hash]++
	if m.polls[hash] <= m.pendingPolls {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      m.status,
		TxHash:      hash,
		BlockNumber: big.NewInt(19_000_000),
		GasUsed:     120_000,
	}, nil
}

// sentTx records one wallet submission
type sentTx struct {
	req    wallet.TxRequest
	method string
	args   []any
}

// MockWallet is an injected wallet that accepts transactions. Approvals it
// sends are applied to the token reader so later allowance checks pass.
type MockWallet struct {
	mu     sync.Mutex
	sent   []sentTx
	tokens *MockTokenReader
	err    error
}

func (w *MockWallet) SendTransaction(ctx context.Context, tx wallet.TxRequest) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	data, err := hexutil.Decode(tx.Data)
	if err != nil {
		return nil, err
	}
	method, args, err := dex.DecodeCall(data)
	if err != nil {
		return nil, err
	}
	w.sent = append(w.sent, sentTx{req: tx, method: method, args: args})

	if method == "approve" && w.tokens != nil {
		w.tokens.setAllowance(common.HexToAddress(tx.To), args[1].(*big.Int))
	}

	hash := common.BigToHash(big.NewInt(int64(len(w.sent))))
	return hash.Hex(), nil
}

func (w *MockWallet) last() sentTx {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent[len(w.sent)-1]
}

func (w *MockWallet) methods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.sent))
	for i, s := range w.sent {
		out[i] = s.method
	}
	return out
}

// MockSession hands out a fixed signer or a fixed error
type MockSession struct {
	adapter *wallet.Adapter
	err     error
}

func (m *MockSession) RequireCorrectNetwork() (*wallet.Adapter, common.Address, error) {
	if m.err != nil {
		return nil, common.Address{}, m.err
	}
	return m.adapter, userAddress, nil
}

// MockPriceSource serves canned aggregator answers or fails
type MockPriceSource struct {
	mu       sync.Mutex
	byToken  map[string][]pricing.PairData
	bySearch map[string][]pricing.PairData
	err      error
	calls    int
}

func NewMockPriceSource() *MockPriceSource {
	return &MockPriceSource{
		byToken:  make(map[string][]pricing.PairData),
		bySearch: make(map[string][]pricing.PairData),
	}
}

func (m *MockPriceSource) TokenPairs(ctx context.Context, addresses ...string) ([]pricing.PairData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []pricing.PairData
	for _, a := range addresses {
		out = append(out, m.byToken[common.HexToAddress(a).Hex()]...)
	}
	return out, nil
}

func (m *MockPriceSource) Search(ctx context.Context, query string) ([]pricing.PairData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.bySearch[query], nil
}

func (m *MockPriceSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func pricedPair(token entities.Token, price string, liquidity float64) pricing.PairData {
	return pricing.PairData{
		DexID:       "uniswap",
		BaseToken:   pricing.PairToken{Address: token.Address.Hex(), Symbol: token.Symbol, Name: token.Name},
		PriceUsd:    price,
		Liquidity:   &pricing.PairLiquidity{Usd: liquidity},
		Volume:      pricing.PairVolume{H24: 1000},
		PriceChange: pricing.PairPriceChange{H24: 1.5},
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/infrastructure/dex"
	"github.com/bimakw/dex-client/internal/wallet"
)

const (
	bpsDenominator = 10_000
	// LP tokens of constant-product pairs always carry 18 decimals
	lpDecimals = 18
)

// SessionSigner hands out the active signer once the wallet is on the
// expected chain
type SessionSigner interface {
	RequireCorrectNetwork() (*wallet.Adapter, common.Address, error)
}

// ChainReader reads native balances and receipts
type ChainReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type TradingConfig struct {
	WrappedNative common.Address
	Deadline      time.Duration
	// DefaultSlippage applies when an order leaves slippage unset
	DefaultSlippage float64
	ReceiptPoll     time.Duration
	ReceiptTimeout  time.Duration
}

// SwapOrder is an exact-input swap. AmountIn is the user-visible decimal string.
type SwapOrder struct {
	From            entities.Token `json:"fromToken"`
	To              entities.Token `json:"toToken"`
	AmountIn        string         `json:"amountIn"`
	SlippagePercent *float64       `json:"slippagePercent,omitempty"`
}

type AddLiquidityOrder struct {
	TokenA          entities.Token `json:"tokenA"`
	TokenB          entities.Token `json:"tokenB"`
	AmountA         string         `json:"amountA"`
	AmountB         string         `json:"amountB"`
	SlippagePercent *float64       `json:"slippagePercent,omitempty"`
}

// RemoveLiquidityOrder burns Liquidity LP tokens (decimal string, 18 decimals)
type RemoveLiquidityOrder struct {
	TokenA          entities.Token `json:"tokenA"`
	TokenB          entities.Token `json:"tokenB"`
	Liquidity       string         `json:"liquidity"`
	SlippagePercent *float64       `json:"slippagePercent,omitempty"`
}

// TxResult is a confirmed transaction
type TxResult struct {
	Hash        common.Hash   `json:"hash"`
	BlockNumber uint64        `json:"blockNumber"`
	GasUsed     uint64        `json:"gasUsed"`
	Approvals   []common.Hash `json:"approvals,omitempty"`
}

// TradingService builds, submits and confirms router transactions. Every
// mutating call ends in a confirmed receipt or a classified error.
type TradingService struct {
	dex     dex.DEXClient
	tokens  dex.TokenReader
	chain   ChainReader
	session SessionSigner
	cfg     TradingConfig
	now     func() time.Time
	logger  *zap.Logger
}

func NewTradingService(dexClient dex.DEXClient, tokens dex.TokenReader, chain ChainReader, session SessionSigner, cfg TradingConfig, logger *zap.Logger) *TradingService {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 20 * time.Minute
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = 2 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradingService{
		dex:     dexClient,
		tokens:  tokens,
		chain:   chain,
		session: session,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(zap.String("component", "trading")),
	}
}

// PairState returns the pair for (a, b) with reserves oriented as stored
// on-chain, or dex.ErrPairNotFound
func (s *TradingService) PairState(ctx context.Context, a, b entities.Token) (*entities.Pair, error) {
	return s.dex.GetPairByTokens(ctx, s.onChain(a), s.onChain(b))
}

func (s *TradingService) TokenMetadata(ctx context.Context, token common.Address) (dex.TokenMetadata, error) {
	return s.tokens.Metadata(ctx, token)
}

// Balance returns owner's balance of token; the native coin reads the account balance
func (s *TradingService) Balance(ctx context.Context, token entities.Token, owner common.Address) (*big.Int, error) {
	if token.IsNative() {
		return s.chain.BalanceAt(ctx, owner)
	}
	return s.tokens.BalanceOf(ctx, token.Address, owner)
}

func (s *TradingService) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return s.tokens.Allowance(ctx, token, owner, spender)
}

// Swap sells exactly AmountIn of From for at least the router's quoted output
// less slippage
func (s *TradingService) Swap(ctx context.Context, order SwapOrder) (*TxResult, error) {
	signer, account, err := s.session.RequireCorrectNetwork()
	if err != nil {
		return nil, err
	}
	if order.From.Equal(order.To) {
		return nil, fmt.Errorf("%w: same token on both sides", ErrInvalidQuoteInputs)
	}
	bps, err := s.slippageBps(order.SlippagePercent)
	if err != nil {
		return nil, err
	}
	amountIn, err := positiveUnits(order.AmountIn, order.From.Decimals)
	if err != nil {
		return nil, err
	}
	if err := s.requireBalance(ctx, order.From, account, amountIn); err != nil {
		return nil, err
	}

	path := []common.Address{s.onChain(order.From).Address, s.onChain(order.To).Address}
	amounts, err := s.dex.GetAmountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, ClassifyTxError(err)
	}
	if len(amounts) != len(path) || amounts[len(amounts)-1].Sign() <= 0 {
		return nil, &TxFailure{Kind: ErrInsufficientLiquidity, Guidance: "The pool returned no output for this amount.", Raw: "empty getAmountsOut result"}
	}

	params := dex.SwapParams{
		AmountIn:     amountIn,
		AmountOutMin: applySlippage(amounts[len(amounts)-1], bps),
		Path:         path,
		To:           account,
		Deadline:     s.deadline(),
	}

	var (
		data      []byte
		value     *big.Int
		approvals []common.Hash
	)
	switch {
	case order.From.IsNative():
		data, err = dex.PackSwapExactETHForTokens(params)
		value = amountIn
	case order.To.IsNative():
		approvals, err = s.ensureAllowance(ctx, signer, account, order.From.Address, amountIn)
		if err == nil {
			data, err = dex.PackSwapExactTokensForETH(params)
		}
	default:
		approvals, err = s.ensureAllowance(ctx, signer, account, order.From.Address, amountIn)
		if err == nil {
			data, err = dex.PackSwapExactTokensForTokens(params)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("submitting swap",
		zap.String("from", order.From.Symbol),
		zap.String("to", order.To.Symbol),
		zap.String("amountIn", amountIn.String()),
		zap.String("amountOutMin", params.AmountOutMin.String()))

	result, err := s.submit(ctx, signer, account, s.dex.Router(), data, value)
	if err != nil {
		return nil, err
	}
	result.Approvals = approvals
	return result, nil
}

// AddLiquidity deposits into the pool for (A, B). For an existing pool the
// amounts are first cut to the pool ratio the way the router does, and each
// minimum is that amount less slippage. A native side uses addLiquidityETH.
func (s *TradingService) AddLiquidity(ctx context.Context, order AddLiquidityOrder) (*TxResult, error) {
	signer, account, err := s.session.RequireCorrectNetwork()
	if err != nil {
		return nil, err
	}
	if order.TokenA.Equal(order.TokenB) {
		return nil, fmt.Errorf("%w: same token on both sides", ErrInvalidQuoteInputs)
	}
	if order.TokenA.IsNative() && order.TokenB.IsNative() {
		return nil, fmt.Errorf("%w: both sides native", ErrInvalidQuoteInputs)
	}
	bps, err := s.slippageBps(order.SlippagePercent)
	if err != nil {
		return nil, err
	}
	desiredA, err := positiveUnits(order.AmountA, order.TokenA.Decimals)
	if err != nil {
		return nil, err
	}
	desiredB, err := positiveUnits(order.AmountB, order.TokenB.Decimals)
	if err != nil {
		return nil, err
	}

	pair, err := s.PairState(ctx, order.TokenA, order.TokenB)
	if err != nil && !errors.Is(err, dex.ErrPairNotFound) {
		return nil, fmt.Errorf("read pair: %w", err)
	}
	amountA, amountB, err := depositAmounts(pair, s.onChain(order.TokenA).Address, s.onChain(order.TokenB).Address, desiredA, desiredB)
	if err != nil {
		return nil, err
	}
	if amountA.Cmp(desiredA) != 0 || amountB.Cmp(desiredB) != 0 {
		s.logger.Info("deposit cut to pool ratio",
			zap.String("pair", pair.Address.Hex()),
			zap.String("amountA", amountA.String()),
			zap.String("amountB", amountB.String()))
	}

	if err := s.requireBalance(ctx, order.TokenA, account, amountA); err != nil {
		return nil, err
	}
	if err := s.requireBalance(ctx, order.TokenB, account, amountB); err != nil {
		return nil, err
	}

	// normalize so that any native side is B
	tokenA, tokenB := order.TokenA, order.TokenB
	if tokenA.IsNative() {
		tokenA, tokenB = tokenB, tokenA
		amountA, amountB = amountB, amountA
	}

	approvals, err := s.ensureAllowance(ctx, signer, account, tokenA.Address, amountA)
	if err != nil {
		return nil, err
	}

	var (
		data  []byte
		value *big.Int
	)
	if tokenB.IsNative() {
		value = amountB
		data, err = dex.PackAddLiquidityETH(dex.AddLiquidityETHParams{
			Token:          tokenA.Address,
			AmountTokenDes: amountA,
			AmountTokenMin: applySlippage(amountA, bps),
			AmountETHMin:   applySlippage(amountB, bps),
			To:             account,
			Deadline:       s.deadline(),
		})
	} else {
		more, aerr := s.ensureAllowance(ctx, signer, account, tokenB.Address, amountB)
		if aerr != nil {
			return nil, aerr
		}
		approvals = append(approvals, more...)
		data, err = dex.PackAddLiquidity(dex.AddLiquidityParams{
			TokenA:         tokenA.Address,
			TokenB:         tokenB.Address,
			AmountADesired: amountA,
			AmountBDesired: amountB,
			AmountAMin:     applySlippage(amountA, bps),
			AmountBMin:     applySlippage(amountB, bps),
			To:             account,
			Deadline:       s.deadline(),
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("submitting add liquidity",
		zap.String("tokenA", tokenA.Symbol),
		zap.String("tokenB", tokenB.Symbol),
		zap.String("amountA", amountA.String()),
		zap.String("amountB", amountB.String()))

	result, err := s.submit(ctx, signer, account, s.dex.Router(), data, value)
	if err != nil {
		return nil, err
	}
	result.Approvals = approvals
	return result, nil
}

// RemoveLiquidity burns LP tokens; minimums are the pro-rata share of the
// reserves less slippage
func (s *TradingService) RemoveLiquidity(ctx context.Context, order RemoveLiquidityOrder) (*TxResult, error) {
	signer, account, err := s.session.RequireCorrectNetwork()
	if err != nil {
		return nil, err
	}
	if order.TokenA.IsNative() && order.TokenB.IsNative() {
		return nil, fmt.Errorf("%w: both sides native", ErrInvalidQuoteInputs)
	}
	bps, err := s.slippageBps(order.SlippagePercent)
	if err != nil {
		return nil, err
	}
	liquidity, err := positiveUnits(order.Liquidity, lpDecimals)
	if err != nil {
		return nil, err
	}

	pair, err := s.PairState(ctx, order.TokenA, order.TokenB)
	if err != nil {
		return nil, err
	}
	if pair.TotalSupply == nil || pair.TotalSupply.Sign() <= 0 {
		return nil, &TxFailure{Kind: ErrInsufficientLiquidity, Guidance: "The pool has no liquidity to withdraw.", Raw: "zero total supply"}
	}

	held, err := s.tokens.BalanceOf(ctx, pair.Address, account)
	if err != nil {
		return nil, fmt.Errorf("read LP balance: %w", err)
	}
	if held.Cmp(liquidity) < 0 {
		return nil, fmt.Errorf("%w: have %s LP, need %s", ErrInsufficientBalance,
			entities.FormatUnits(held, lpDecimals), entities.FormatUnits(liquidity, lpDecimals))
	}

	tokenA, tokenB := order.TokenA, order.TokenB
	if tokenA.IsNative() {
		tokenA, tokenB = tokenB, tokenA
	}
	reserveA, reserveB := pair.ReservesFor(s.onChain(tokenA).Address)
	minA := applySlippage(proRata(liquidity, reserveA, pair.TotalSupply), bps)
	minB := applySlippage(proRata(liquidity, reserveB, pair.TotalSupply), bps)

	approvals, err := s.ensureAllowance(ctx, signer, account, pair.Address, liquidity)
	if err != nil {
		return nil, err
	}

	var data []byte
	if tokenB.IsNative() {
		data, err = dex.PackRemoveLiquidityETH(dex.RemoveLiquidityETHParams{
			Token:          tokenA.Address,
			Liquidity:      liquidity,
			AmountTokenMin: minA,
			AmountETHMin:   minB,
			To:             account,
			Deadline:       s.deadline(),
		})
	} else {
		data, err = dex.PackRemoveLiquidity(dex.RemoveLiquidityParams{
			TokenA:     tokenA.Address,
			TokenB:     tokenB.Address,
			Liquidity:  liquidity,
			AmountAMin: minA,
			AmountBMin: minB,
			To:         account,
			Deadline:   s.deadline(),
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("submitting remove liquidity",
		zap.String("pair", pair.Address.Hex()),
		zap.String("liquidity", liquidity.String()))

	result, err := s.submit(ctx, signer, account, s.dex.Router(), data, nil)
	if err != nil {
		return nil, err
	}
	result.Approvals = approvals
	return result, nil
}

// ensureAllowance approves exactly amount for the router when the current
// allowance is short, and waits for the approval to confirm
func (s *TradingService) ensureAllowance(ctx context.Context, signer *wallet.Adapter, owner, token common.Address, amount *big.Int) ([]common.Hash, error) {
	router := s.dex.Router()
	current, err := s.tokens.Allowance(ctx, token, owner, router)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if current.Cmp(amount) >= 0 {
		return nil, nil
	}

	data, err := dex.PackApprove(router, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("approving router",
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()))

	result, err := s.submit(ctx, signer, owner, token, data, nil)
	if err != nil {
		return nil, fmt.Errorf("approve %s: %w", token.Hex(), err)
	}
	return []common.Hash{result.Hash}, nil
}

func (s *TradingService) requireBalance(ctx context.Context, token entities.Token, owner common.Address, amount *big.Int) error {
	balance, err := s.Balance(ctx, token, owner)
	if err != nil {
		return fmt.Errorf("read %s balance: %w", token.Symbol, err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s %s, need %s", ErrInsufficientBalance,
			entities.FormatUnits(balance, token.Decimals), token.Symbol,
			entities.FormatUnits(amount, token.Decimals))
	}
	return nil
}

// submit sends one transaction through the wallet and waits for its receipt
func (s *TradingService) submit(ctx context.Context, signer *wallet.Adapter, from, to common.Address, data []byte, value *big.Int) (*TxResult, error) {
	req := wallet.TxRequest{
		From: from.Hex(),
		To:   to.Hex(),
		Data: hexutil.Encode(data),
	}
	if value != nil && value.Sign() > 0 {
		req.Value = hexutil.EncodeBig(value)
	}
	if method, args, err := dex.DecodeCall(data); err == nil {
		s.logger.Debug("sending transaction",
			zap.String("to", to.Hex()),
			zap.String("method", method),
			zap.Any("args", args))
	}

	raw, err := signer.Request(ctx, wallet.MethodSendTransaction, req)
	if err != nil {
		classified := ClassifyTxError(err)
		s.logger.Error("transaction submission failed",
			zap.String("to", to.Hex()),
			zap.String("method", dex.MethodName(data)),
			zap.Error(classified))
		return nil, classified
	}
	hash, err := parseTxHash(raw)
	if err != nil {
		return nil, err
	}

	receipt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		s.logger.Error("transaction reverted",
			zap.String("hash", hash.Hex()),
			zap.String("method", dex.MethodName(data)))
		return nil, &TxFailure{
			Kind:     ErrTransactionReverted,
			Guidance: "The transaction was mined but reverted. Check the amounts and try again.",
			Raw:      "reverted in block " + receipt.BlockNumber.String(),
		}
	}

	result := &TxResult{Hash: hash, GasUsed: receipt.GasUsed}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

// waitReceipt polls until the receipt exists, the timeout elapses or ctx ends
func (s *TradingService) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := s.chain.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Warn("receipt lookup failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *TradingService) deadline() *big.Int {
	return big.NewInt(s.now().Add(s.cfg.Deadline).Unix())
}

// onChain maps the native coin onto the wrapped token used in router paths
func (s *TradingService) onChain(t entities.Token) entities.Token {
	if t.IsNative() && s.cfg.WrappedNative != entities.NativeAddress {
		t.Address = s.cfg.WrappedNative
	}
	return t
}

func parseTxHash(raw any) (common.Hash, error) {
	switch v := raw.(type) {
	case common.Hash:
		return v, nil
	case string:
		b, err := hexutil.Decode(v)
		if err == nil && len(b) == common.HashLength {
			return common.BytesToHash(b), nil
		}
	}
	return common.Hash{}, fmt.Errorf("%w: transaction hash %v", wallet.ErrMalformedResponse, raw)
}

// slippageBps converts the order's tolerance into basis points
func (s *TradingService) slippageBps(requested *float64) (int64, error) {
	percent, err := ResolveSlippage(requested, s.cfg.DefaultSlippage)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(percent * 100)), nil
}

func applySlippage(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bpsDenominator-bps))
	return out.Div(out, big.NewInt(bpsDenominator))
}

// depositAmounts picks the amounts the router will actually take from a pool
// at the pair's reserves: desired A with its matching B when that B fits,
// otherwise desired B with its matching A. A missing or empty pool takes
// both desired amounts.
func depositAmounts(pair *entities.Pair, tokenA, tokenB common.Address, desiredA, desiredB *big.Int) (*big.Int, *big.Int, error) {
	if pair == nil || pair.Reserve0 == nil || pair.Reserve1 == nil ||
		(pair.Reserve0.Sign() == 0 && pair.Reserve1.Sign() == 0) {
		return desiredA, desiredB, nil
	}

	amountA, amountB := desiredA, pair.Quote(desiredA, tokenA)
	if amountB.Cmp(desiredB) > 0 {
		amountA, amountB = pair.Quote(desiredB, tokenB), desiredB
	}
	if amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: deposit rounds to zero at the pool ratio", entities.ErrInvalidAmount)
	}
	return amountA, amountB, nil
}

func proRata(liquidity, reserve, totalSupply *big.Int) *big.Int {
	if reserve == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(liquidity, reserve)
	return out.Div(out, totalSupply)
}

func positiveUnits(s string, decimals uint8) (*big.Int, error) {
	amount, err := entities.ParseUnits(s, decimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be positive", entities.ErrInvalidAmount)
	}
	return amount, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/infrastructure/cache"
	"github.com/bimakw/dex-client/internal/infrastructure/dex"
)

const (
	// constant-product fee as used by the quoting formula
	feeNumerator   = 997.0
	feeDenominator = 1000.0

	directLPFee   = 0.003
	indirectLPFee = 0.006

	// input ratios further than this from the pool ratio are corrected
	ratioTolerance = 0.02

	maxLiquidityImpactPercent = 10.0
)

// impactStep maps a trade size (below Limit, in whole input units) to the
// assumed price impact used when no reserves are available
type impactStep struct {
	Limit   float64
	Percent float64
}

var fallbackImpactSteps = []impactStep{
	{100, 0.1},
	{1_000, 0.3},
	{10_000, 0.8},
	{50_000, 1.5},
	{100_000, 2.5},
	{500_000, 3.5},
}

const fallbackImpactCeiling = 4.5

// ExchangeRates is the subset of the price oracle the calculator needs
type ExchangeRates interface {
	GetExchangeRate(ctx context.Context, from, to entities.Token) (float64, bool)
	GetUSDValue(ctx context.Context, token entities.Token, amount float64) float64
}

// SwapRequest is the input of a swap quote. AmountIn is the user-visible
// decimal string; a nil SlippagePercent takes the service default.
type SwapRequest struct {
	From            entities.Token `json:"fromToken"`
	To              entities.Token `json:"toToken"`
	AmountIn        string         `json:"amountIn"`
	SlippagePercent *float64       `json:"slippagePercent,omitempty"`
}

// LiquidityRequest is the input of a liquidity quote. AmountB may be empty
// when the pool exists; it is then derived from the pool ratio.
type LiquidityRequest struct {
	TokenA  entities.Token `json:"tokenA"`
	TokenB  entities.Token `json:"tokenB"`
	AmountA string         `json:"amountA"`
	AmountB string         `json:"amountB"`
}

// QuoteService computes advisory swap and liquidity quotes. Amounts here are
// floats for display; submission re-derives integer amounts from the
// original decimal strings.
type QuoteService struct {
	dex             dex.DEXClient
	rates           ExchangeRates
	wrappedNative   entities.Token
	defaultSlippage float64
	pairs           cache.Cache
	pairTTL         time.Duration
	logger          *zap.Logger
}

// NewQuoteService creates a calculator. wrappedNative stands in for the
// native coin in pair lookups and is the intermediate hop of indirect routes.
func NewQuoteService(dexClient dex.DEXClient, rates ExchangeRates, wrappedNative entities.Token, defaultSlippage float64, logger *zap.Logger) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{
		dex:             dexClient,
		rates:           rates,
		wrappedNative:   wrappedNative,
		defaultSlippage: defaultSlippage,
		logger:          logger.With(zap.String("component", "quote")),
	}
}

// WithPairCache serves pair reserves from c for ttl. Trading reads reserves
// uncached.
func (s *QuoteService) WithPairCache(c cache.Cache, ttl time.Duration) *QuoteService {
	s.pairs = c
	s.pairTTL = ttl
	return s
}

// SwapQuote tries the on-chain reserves first and falls back entirely to the
// oracle rate when the pair is missing or unusable. Unusable inputs or a
// non-finite result return ErrInvalidQuoteInputs.
func (s *QuoteService) SwapQuote(ctx context.Context, req SwapRequest) (*entities.SwapQuote, error) {
	amountIn, err := parseDisplayAmount(req.AmountIn)
	if err != nil {
		return nil, err
	}
	if req.From.Equal(req.To) {
		return nil, fmt.Errorf("%w: same token on both sides", ErrInvalidQuoteInputs)
	}
	slippage, err := ResolveSlippage(req.SlippagePercent, s.defaultSlippage)
	if err != nil {
		return nil, err
	}

	pair, pairErr := s.pair(ctx, req.From, req.To)
	if pairErr == nil {
		if quote, ok := s.onChainSwap(req, pair, amountIn, slippage); ok {
			return quote, nil
		}
		s.logger.Debug("reserves unusable, using oracle rate",
			zap.String("pair", pair.Address.Hex()))
	} else {
		s.logger.Debug("no direct pair, using oracle rate",
			zap.String("from", req.From.Symbol),
			zap.String("to", req.To.Symbol),
			zap.Error(pairErr))
	}

	return s.oracleSwap(ctx, req, amountIn, slippage, pairErr != nil)
}

// onChainSwap applies output = in·997·rOut / (rIn·1000 + in·997) to the
// pair's reserves in whole units
func (s *QuoteService) onChainSwap(req SwapRequest, pair *entities.Pair, amountIn, slippage float64) (*entities.SwapQuote, bool) {
	reserveInUnits, reserveOutUnits := pair.ReservesFor(s.lookupToken(req.From).Address)
	if reserveInUnits == nil || reserveOutUnits == nil || reserveInUnits.Sign() <= 0 || reserveOutUnits.Sign() <= 0 {
		return nil, false
	}
	reserveIn := entities.UnitsToFloat(reserveInUnits, req.From.Decimals)
	reserveOut := entities.UnitsToFloat(reserveOutUnits, req.To.Decimals)

	output, impact := ConstantProductOut(amountIn, reserveIn, reserveOut)
	if !positiveFinite(output) {
		return nil, false
	}

	return &entities.SwapQuote{
		FromToken:            req.From,
		ToToken:              req.To,
		InputAmount:          amountIn,
		OutputAmount:         output,
		ExchangeRate:         output / amountIn,
		PriceImpactPercent:   impact,
		MinimumReceived:      MinimumReceived(output, slippage),
		LiquidityProviderFee: amountIn * directLPFee,
		SlippagePercent:      slippage,
		RouteHops:            []entities.Token{req.From, req.To},
		Source:               entities.RouteOnChain,
	}, true
}

// oracleSwap prices the trade from the oracle rate with the synthetic impact
// curve. The route is indirect when the symbols differ and no direct pair was
// found.
func (s *QuoteService) oracleSwap(ctx context.Context, req SwapRequest, amountIn, slippage float64, pairMissing bool) (*entities.SwapQuote, error) {
	rate, ok := s.rates.GetExchangeRate(ctx, req.From, req.To)
	if !ok {
		s.logger.Debug("oracle rate unavailable, assuming parity",
			zap.String("from", req.From.Symbol),
			zap.String("to", req.To.Symbol))
	}

	indirect := pairMissing && !req.From.SameSymbol(req.To)
	impact := FallbackImpact(amountIn)
	lpFee := directLPFee
	hops := []entities.Token{req.From, req.To}
	if indirect {
		impact *= 2
		lpFee = indirectLPFee
		hops = []entities.Token{req.From, s.wrappedNative, req.To}
	}

	output := amountIn * rate * (1 - impact/100)
	if !positiveFinite(output) {
		return nil, fmt.Errorf("%w: computed output %v", ErrInvalidQuoteInputs, output)
	}

	return &entities.SwapQuote{
		FromToken:            req.From,
		ToToken:              req.To,
		InputAmount:          amountIn,
		OutputAmount:         output,
		ExchangeRate:         rate,
		PriceImpactPercent:   impact,
		MinimumReceived:      MinimumReceived(output, slippage),
		LiquidityProviderFee: amountIn * lpFee,
		SlippagePercent:      slippage,
		RouteHops:            hops,
		Indirect:             indirect,
		Source:               entities.RouteOracle,
	}, nil
}

// LiquidityQuote previews a deposit. For an existing pool, an input ratio
// more than 2% off the pool ratio has its second amount corrected.
func (s *QuoteService) LiquidityQuote(ctx context.Context, req LiquidityRequest) (*entities.LiquidityQuote, error) {
	amountA, err := parseDisplayAmount(req.AmountA)
	if err != nil {
		return nil, err
	}
	if req.TokenA.Equal(req.TokenB) {
		return nil, fmt.Errorf("%w: same token on both sides", ErrInvalidQuoteInputs)
	}
	var amountB float64
	if strings.TrimSpace(req.AmountB) != "" {
		if amountB, err = parseDisplayAmount(req.AmountB); err != nil {
			return nil, err
		}
	}

	quote := &entities.LiquidityQuote{
		TokenA:  req.TokenA,
		TokenB:  req.TokenB,
		AmountA: amountA,
		AmountB: amountB,
	}

	pair, err := s.pair(ctx, req.TokenA, req.TokenB)
	var reserveA, reserveB float64
	if err == nil {
		ra, rb := pair.ReservesFor(s.lookupToken(req.TokenA).Address)
		reserveA = entities.UnitsToFloat(ra, req.TokenA.Decimals)
		reserveB = entities.UnitsToFloat(rb, req.TokenB.Decimals)
	}

	if err != nil || reserveA <= 0 || reserveB <= 0 {
		if amountB <= 0 {
			return nil, fmt.Errorf("%w: a new pool needs both amounts", ErrInvalidQuoteInputs)
		}
		quote.NewPool = true
		quote.PoolRatio = amountB / amountA
		quote.LPTokensToReceive = math.Sqrt(amountA * amountB)
		quote.PoolSharePercent = 100
	} else {
		poolRatio := reserveB / reserveA
		quote.PoolRatio = poolRatio
		if amountB <= 0 || math.Abs(amountB/amountA-poolRatio)/poolRatio > ratioTolerance {
			quote.AmountB = amountA * poolRatio
			quote.AmountBAdjusted = true
		}

		var totalSupply float64
		if pair.TotalSupply != nil && pair.TotalSupply.Sign() > 0 {
			totalSupply = entities.UnitsToFloat(pair.TotalSupply, 18)
		}
		quote.LPTokensToReceive, quote.PoolSharePercent, quote.Estimated =
			LPShare(quote.AmountA, quote.AmountB, reserveA, reserveB, totalSupply)
		quote.PriceImpactPercent = math.Min(
			(quote.AmountA+quote.AmountB)/(reserveA+reserveB)*100,
			maxLiquidityImpactPercent)
	}

	if !positiveFinite(quote.LPTokensToReceive) {
		return nil, fmt.Errorf("%w: computed LP amount %v", ErrInvalidQuoteInputs, quote.LPTokensToReceive)
	}

	quote.TotalUSDValue = s.rates.GetUSDValue(ctx, req.TokenA, quote.AmountA) +
		s.rates.GetUSDValue(ctx, req.TokenB, quote.AmountB)
	return quote, nil
}

func (s *QuoteService) pair(ctx context.Context, a, b entities.Token) (*entities.Pair, error) {
	if s.dex == nil {
		return nil, dex.ErrPairNotFound
	}
	a, b = s.lookupToken(a), s.lookupToken(b)

	var key string
	if s.pairs != nil && s.pairTTL > 0 {
		key = cache.PairCacheKey(a.ChainID, a.Address.Hex(), b.Address.Hex())
		if cached, err := s.pairs.GetPair(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	pair, err := s.dex.GetPairByTokens(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if err := s.pairs.SetPair(ctx, key, pair, s.pairTTL); err != nil {
			s.logger.Debug("pair cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return pair, nil
}

// lookupToken maps the native coin onto its wrapped form for pair lookups
func (s *QuoteService) lookupToken(t entities.Token) entities.Token {
	if t.IsNative() && s.wrappedNative.Address != entities.NativeAddress {
		wrapped := s.wrappedNative
		wrapped.Decimals = t.Decimals
		return wrapped
	}
	return t
}

// ConstantProductOut returns the fee-adjusted output of the constant-product
// formula and the price impact in percent against the spot output
func ConstantProductOut(amountIn, reserveIn, reserveOut float64) (output, impactPercent float64) {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0, 0
	}
	withFee := amountIn * feeNumerator
	output = withFee * reserveOut / (reserveIn*feeDenominator + withFee)
	spot := amountIn * reserveOut / reserveIn
	impactPercent = (spot - output) / spot * 100
	return output, impactPercent
}

// FallbackImpact is the assumed impact in percent for a trade of amountIn
// whole units when reserves are unknown. Display only.
func FallbackImpact(amountIn float64) float64 {
	size := math.Abs(amountIn)
	for _, step := range fallbackImpactSteps {
		if size < step.Limit {
			return step.Percent
		}
	}
	return fallbackImpactCeiling
}

// MinimumReceived applies the slippage tolerance to an output
func MinimumReceived(output, slippagePercent float64) float64 {
	return output * (1 - slippagePercent/100)
}

// LPShare estimates LP tokens and pool share for a deposit of (a, b) into a
// pool with reserves (ra, rb). With a known total supply it mirrors the pair's
// mint; otherwise √(a·b) against √(ra·rb) approximates it and estimated is set.
func LPShare(a, b, ra, rb, totalSupply float64) (lp, sharePercent float64, estimated bool) {
	if totalSupply > 0 {
		lp = math.Min(a*totalSupply/ra, b*totalSupply/rb)
		return lp, lp / (totalSupply + lp) * 100, false
	}
	lp = math.Sqrt(a * b)
	existing := math.Sqrt(ra * rb)
	return lp, lp / (existing + lp) * 100, true
}

func parseDisplayAmount(s string) (float64, error) {
	d, err := entities.ParseDecimal(s)
	switch {
	case errors.Is(err, entities.ErrAmountOutOfRange):
		return 0, fmt.Errorf("%w: %w", ErrInvalidQuoteInputs, err)
	case err != nil:
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidQuoteInputs, s)
	}
	f, _ := d.Float64()
	if !positiveFinite(f) {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidQuoteInputs)
	}
	return f, nil
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// IsQuoteUnavailable reports whether err means the quote should be cleared
// rather than shown as a failure
func IsQuoteUnavailable(err error) bool {
	return errors.Is(err, ErrInvalidQuoteInputs) || errors.Is(err, ErrInvalidSlippage)
}

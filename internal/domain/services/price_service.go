package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/infrastructure/cache"
	"github.com/bimakw/dex-client/internal/infrastructure/pricing"
)

// PriceSource is the aggregator API
type PriceSource interface {
	TokenPairs(ctx context.Context, addresses ...string) ([]pricing.PairData, error)
	Search(ctx context.Context, query string) ([]pricing.PairData, error)
}

// DefaultPriceTTL is how long a fetched price is served from cache
const DefaultPriceTTL = 30 * time.Second

// Last-resort USD prices by symbol, used when the aggregator cannot answer
var fallbackUSDPrices = map[string]float64{
	"USDT":  1.0,
	"USDC":  1.0,
	"DAI":   1.0,
	"SUPRA": 0.85,
	"ETH":   3000,
	"WETH":  3000,
}

// Last-resort exchange rates by "FROM/TO" symbol pair
var fallbackPairRates = map[string]float64{
	"SUPRA/USDT": 0.85,
	"USDT/SUPRA": 1 / 0.85,
	"SUPRA/USDC": 0.85,
	"USDC/SUPRA": 1 / 0.85,
}

// PriceOracle resolves USD prices and exchange rates. Every lookup falls back
// through address, symbol and the built-in tables; failures are logged and
// never returned to callers of the advisory methods.
type PriceOracle struct {
	source PriceSource
	cache  cache.Cache
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewPriceOracle creates an oracle. A nil cache gets an in-memory one; a
// zero ttl uses DefaultPriceTTL.
func NewPriceOracle(source PriceSource, c cache.Cache, ttl time.Duration, logger *zap.Logger) *PriceOracle {
	if c == nil {
		c = cache.NewInMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceOracle{
		source: source,
		cache:  c,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(zap.String("component", "price_oracle")),
	}
}

// WithClock replaces the time source used for FetchedAt stamps
func (s *PriceOracle) WithClock(now func() time.Time) *PriceOracle {
	s.now = now
	return s
}

// GetTokenPrice returns the token's market snapshot: cache, then the
// aggregator by address, then the fallback table by symbol.
// ErrPriceOracleUnavailable means nothing resolved.
func (s *PriceOracle) GetTokenPrice(ctx context.Context, token entities.Token) (*entities.PriceQuote, error) {
	if !token.IsNative() {
		q, err := s.byAddress(ctx, token.Address)
		if err == nil {
			return q, nil
		}
		s.logger.Debug("price by address failed",
			zap.String("token", token.Address.Hex()),
			zap.Error(err))
	}
	if q, ok := s.fallback(token); ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPriceOracleUnavailable, token.Symbol)
}

// GetTokenPriceBySymbol searches the aggregator and keeps the match with the
// highest reported liquidity, falling back to the built-in table
func (s *PriceOracle) GetTokenPriceBySymbol(ctx context.Context, symbol string) (*entities.PriceQuote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrPriceOracleUnavailable)
	}
	q, err := s.bySymbol(ctx, symbol)
	if err == nil {
		return q, nil
	}
	s.logger.Debug("price by symbol failed", zap.String("symbol", symbol), zap.Error(err))
	if q, ok := s.fallback(entities.Token{Symbol: symbol}); ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPriceOracleUnavailable, symbol)
}

// GetUSDValue returns amount × price, or 0 when no price resolves
func (s *PriceOracle) GetUSDValue(ctx context.Context, token entities.Token, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	price, ok := s.resolveUSD(ctx, token)
	if !ok {
		return 0
	}
	return amount * price
}

// GetExchangeRate returns how many units of to one unit of from buys, as the
// ratio of their USD prices. When either price is missing the symbol pair
// table is consulted, then 1.0; ok is false only in that last case.
func (s *PriceOracle) GetExchangeRate(ctx context.Context, from, to entities.Token) (rate float64, ok bool) {
	if from.SameSymbol(to) {
		return 1.0, true
	}
	fromUSD, fromOK := s.resolveUSD(ctx, from)
	toUSD, toOK := s.resolveUSD(ctx, to)
	if fromOK && toOK && toUSD > 0 {
		return fromUSD / toUSD, true
	}

	key := strings.ToUpper(from.Symbol) + "/" + strings.ToUpper(to.Symbol)
	if r, found := fallbackPairRates[key]; found {
		return r, true
	}
	s.logger.Debug("no exchange rate, defaulting to 1.0",
		zap.String("from", from.Symbol),
		zap.String("to", to.Symbol))
	return 1.0, false
}

// resolveUSD tries address, then symbol, then the fallback table
func (s *PriceOracle) resolveUSD(ctx context.Context, token entities.Token) (float64, bool) {
	if !token.IsNative() {
		if q, err := s.byAddress(ctx, token.Address); err == nil {
			return q.USDPrice, true
		}
	}
	if token.Symbol != "" {
		if q, err := s.bySymbol(ctx, token.Symbol); err == nil {
			return q.USDPrice, true
		}
	}
	if q, ok := s.fallback(token); ok {
		return q.USDPrice, true
	}
	return 0, false
}

func (s *PriceOracle) byAddress(ctx context.Context, address common.Address) (*entities.PriceQuote, error) {
	key := cache.PriceCacheKey(address.Hex())
	if q := s.cached(ctx, key); q != nil {
		return q, nil
	}
	if s.source == nil {
		return nil, ErrPriceOracleUnavailable
	}

	pairs, err := s.source.TokenPairs(ctx, address.Hex())
	if err != nil {
		return nil, err
	}
	best, found := pricing.MostLiquid(pairs, pricing.BaseAddress(address.Hex()))
	if !found {
		return nil, fmt.Errorf("%w: no priced pair for %s", ErrPriceOracleUnavailable, address.Hex())
	}

	q := s.quoteFromPair(best)
	s.store(ctx, key, q)
	return q, nil
}

func (s *PriceOracle) bySymbol(ctx context.Context, symbol string) (*entities.PriceQuote, error) {
	key := cache.PriceCacheKey("symbol:" + symbol)
	if q := s.cached(ctx, key); q != nil {
		return q, nil
	}
	if s.source == nil {
		return nil, ErrPriceOracleUnavailable
	}

	pairs, err := s.source.Search(ctx, symbol)
	if err != nil {
		return nil, err
	}
	best, found := pricing.MostLiquid(pairs, pricing.BaseSymbol(symbol))
	if !found {
		return nil, fmt.Errorf("%w: no priced pair for %s", ErrPriceOracleUnavailable, symbol)
	}

	q := s.quoteFromPair(best)
	s.store(ctx, key, q)
	if common.IsHexAddress(q.TokenAddress) {
		s.store(ctx, cache.PriceCacheKey(q.TokenAddress), q)
	}
	return q, nil
}

func (s *PriceOracle) fallback(token entities.Token) (*entities.PriceQuote, bool) {
	price, ok := fallbackUSDPrices[strings.ToUpper(token.Symbol)]
	if !ok {
		return nil, false
	}
	q := &entities.PriceQuote{
		Symbol:    strings.ToUpper(token.Symbol),
		USDPrice:  price,
		FetchedAt: s.now(),
		Fallback:  true,
	}
	if token.Address != entities.NativeAddress {
		q.TokenAddress = token.Address.Hex()
	}
	return q, true
}

func (s *PriceOracle) cached(ctx context.Context, key string) *entities.PriceQuote {
	q, err := s.cache.GetPrice(ctx, key)
	if err != nil {
		s.logger.Debug("price cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	// the cache may outlive its TTL when shared; FetchedAt is authoritative
	if q == nil || !q.Fresh(s.ttl, s.now()) {
		return nil
	}
	return q
}

func (s *PriceOracle) store(ctx context.Context, key string, q *entities.PriceQuote) {
	if err := s.cache.SetPrice(ctx, key, q, s.ttl); err != nil {
		s.logger.Debug("price cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *PriceOracle) quoteFromPair(p pricing.PairData) *entities.PriceQuote {
	price, _ := p.USDPrice()
	return &entities.PriceQuote{
		TokenAddress: p.BaseToken.Address,
		Symbol:       p.BaseToken.Symbol,
		USDPrice:     price,
		Change24h:    p.PriceChange.H24,
		Volume24h:    p.Volume.H24,
		LiquidityUSD: p.LiquidityUSD(),
		MarketCap:    p.MarketCap,
		FDV:          p.Fdv,
		FetchedAt:    s.now(),
	}
}

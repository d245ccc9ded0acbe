package services

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/infrastructure/cache"
)

// fixedRates answers every rate with one value and prices every token at usd
type fixedRates struct {
	rate float64
	ok   bool
	usd  float64
}

func (f fixedRates) GetExchangeRate(ctx context.Context, from, to entities.Token) (float64, bool) {
	return f.rate, f.ok
}

func (f fixedRates) GetUSDValue(ctx context.Context, token entities.Token, amount float64) float64 {
	return amount * f.usd
}

func wethUSDTPair() *entities.Pair {
	return &entities.Pair{
		Address:  pairAddress,
		Token0:   entities.WETH,
		Token1:   entities.USDT,
		Reserve0: units("1000", 18),
		Reserve1: units("850", 6),
	}
}

func TestSwapQuoteOnChain(t *testing.T) {
	mock := NewMockDEXClient()
	mock.SetPair(wethUSDTPair())
	svc := NewQuoteService(mock, fixedRates{rate: 1, ok: true}, entities.WETH, 0.5, nil)

	quote, err := svc.SwapQuote(context.Background(), SwapRequest{
		From: nativeETH, To: entities.USDT, AmountIn: "10", SlippagePercent: Slippage(0.5),
	})
	require.NoError(t, err)

	want := 10 * 997 * 850 / (1000*1000 + 10*997.0)
	assert.InDelta(t, want, quote.OutputAmount, 1e-9)
	assert.InDelta(t, 8.3908, quote.OutputAmount, 1e-4)
	assert.InDelta(t, want*0.995, quote.MinimumReceived, 1e-9)
	assert.InDelta(t, 0.03, quote.LiquidityProviderFee, 1e-12)
	assert.InDelta(t, want/10, quote.ExchangeRate, 1e-12)
	assert.Equal(t, entities.RouteOnChain, quote.Source)
	assert.False(t, quote.Indirect)
	require.Len(t, quote.RouteHops, 2)
	assert.True(t, quote.RouteHops[0].IsNative())

	spot := 10 * 850 / 1000.0
	assert.InDelta(t, (spot-want)/spot*100, quote.PriceImpactPercent, 1e-9)
}

func TestSwapQuotePairCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := NewMockDEXClient()
	mock.SetPair(wethUSDTPair())
	pairs := cache.NewInMemoryCache().WithClock(func() time.Time { return now })
	svc := NewQuoteService(mock, fixedRates{rate: 1, ok: true}, entities.WETH, 0.5, nil).
		WithPairCache(pairs, 10*time.Second)

	req := SwapRequest{From: nativeETH, To: entities.USDT, AmountIn: "1"}
	first, err := svc.SwapQuote(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.SwapQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.OutputAmount, second.OutputAmount)
	assert.Equal(t, 1, mock.Lookups())

	now = now.Add(11 * time.Second)
	_, err = svc.SwapQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Lookups())
}

func TestSwapQuoteOracleFallback(t *testing.T) {
	rates := fixedRates{rate: 0.85, ok: true}

	t.Run("no pair and different symbols is indirect", func(t *testing.T) {
		svc := NewQuoteService(NewMockDEXClient(), rates, entities.WETH, 0.5, nil)
		quote, err := svc.SwapQuote(context.Background(), SwapRequest{
			From: supraToken, To: entities.USDT, AmountIn: "50", SlippagePercent: Slippage(1),
		})
		require.NoError(t, err)

		assert.Equal(t, entities.RouteOracle, quote.Source)
		assert.True(t, quote.Indirect)
		assert.Equal(t, 0.85, quote.ExchangeRate)
		assert.InDelta(t, 0.2, quote.PriceImpactPercent, 1e-12)
		assert.InDelta(t, 50*0.85*(1-0.002), quote.OutputAmount, 1e-9)
		assert.InDelta(t, quote.OutputAmount*0.99, quote.MinimumReceived, 1e-9)
		assert.InDelta(t, 50*0.006, quote.LiquidityProviderFee, 1e-12)
		require.Len(t, quote.RouteHops, 3)
		assert.Equal(t, entities.WETH.Address, quote.RouteHops[1].Address)
	})

	t.Run("same symbol is never indirect", func(t *testing.T) {
		bridged := entities.USDT
		bridged.Address = common.HexToAddress("0x00000000000000000000000000000000000000b7")
		svc := NewQuoteService(NewMockDEXClient(), rates, entities.WETH, 0.5, nil)
		quote, err := svc.SwapQuote(context.Background(), SwapRequest{
			From: bridged, To: entities.USDT, AmountIn: "50",
		})
		require.NoError(t, err)
		assert.False(t, quote.Indirect)
		assert.Equal(t, 0.5, quote.SlippagePercent)
	})

	t.Run("existing pair with empty reserves stays direct", func(t *testing.T) {
		mock := NewMockDEXClient()
		mock.SetPair(&entities.Pair{
			Address: pairAddress, Token0: entities.USDT, Token1: supraToken,
			Reserve0: big.NewInt(0), Reserve1: big.NewInt(0),
		})
		svc := NewQuoteService(mock, rates, entities.WETH, 0.5, nil)
		quote, err := svc.SwapQuote(context.Background(), SwapRequest{
			From: supraToken, To: entities.USDT, AmountIn: "50",
		})
		require.NoError(t, err)
		assert.Equal(t, entities.RouteOracle, quote.Source)
		assert.False(t, quote.Indirect)
		assert.InDelta(t, 50*0.003, quote.LiquidityProviderFee, 1e-12)
	})

	t.Run("rpc failure falls back entirely", func(t *testing.T) {
		mock := NewMockDEXClient()
		mock.SetError(errors.New("dial tcp: i/o timeout"))
		svc := NewQuoteService(mock, fixedRates{rate: 1, ok: false}, entities.WETH, 0.5, nil)
		quote, err := svc.SwapQuote(context.Background(), SwapRequest{
			From: supraToken, To: entities.USDT, AmountIn: "1",
		})
		require.NoError(t, err)
		assert.Equal(t, entities.RouteOracle, quote.Source)
		assert.Equal(t, 1.0, quote.ExchangeRate)
		assert.True(t, quote.Indirect)
	})
}

func TestSwapQuoteOracleUnreachableScenario(t *testing.T) {
	src := NewMockPriceSource()
	src.err = errors.New("connection refused")
	oracle := NewPriceOracle(src, nil, 0, nil)
	svc := NewQuoteService(NewMockDEXClient(), oracle, entities.WETH, 0.5, nil)

	quote, err := svc.SwapQuote(context.Background(), SwapRequest{
		From: supraToken, To: entities.USDT, AmountIn: "10",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, quote.ExchangeRate, 1e-12)
	assert.True(t, quote.Indirect)
}

func TestSwapQuoteRejectsBadInputs(t *testing.T) {
	svc := NewQuoteService(NewMockDEXClient(), fixedRates{rate: 1, ok: true}, entities.WETH, 0.5, nil)
	tests := []struct {
		name string
		req  SwapRequest
	}{
		{"not a number", SwapRequest{From: supraToken, To: entities.USDT, AmountIn: "abc"}},
		{"zero", SwapRequest{From: supraToken, To: entities.USDT, AmountIn: "0"}},
		{"negative", SwapRequest{From: supraToken, To: entities.USDT, AmountIn: "-3"}},
		{"same token", SwapRequest{From: entities.USDT, To: entities.USDT, AmountIn: "1"}},
		{"slippage", SwapRequest{From: supraToken, To: entities.USDT, AmountIn: "1", SlippagePercent: Slippage(100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := svc.SwapQuote(context.Background(), tt.req)
			assert.Nil(t, quote)
			assert.True(t, IsQuoteUnavailable(err), "got %v", err)
		})
	}
}

func TestSwapQuoteAmountBounds(t *testing.T) {
	svc := NewQuoteService(NewMockDEXClient(), fixedRates{rate: 1, ok: true}, entities.WETH, 0.5, nil)

	for _, amount := range []string{"1e20000000", "1e2000000000", "1e5000"} {
		quote, err := svc.SwapQuote(context.Background(), SwapRequest{From: supraToken, To: entities.USDT, AmountIn: amount})
		assert.Nil(t, quote)
		require.ErrorIs(t, err, ErrInvalidQuoteInputs, amount)
		assert.ErrorIs(t, err, entities.ErrAmountOutOfRange, amount)
		assert.Contains(t, err.Error(), "too large")
	}

	quote, err := svc.SwapQuote(context.Background(), SwapRequest{From: supraToken, To: entities.USDT, AmountIn: "5e1"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, quote.InputAmount)
}

func TestSwapQuoteSlippage(t *testing.T) {
	mock := NewMockDEXClient()
	mock.SetPair(wethUSDTPair())
	svc := NewQuoteService(mock, fixedRates{rate: 1, ok: true}, entities.WETH, 0.5, nil)
	req := SwapRequest{From: nativeETH, To: entities.USDT, AmountIn: "1"}

	quote, err := svc.SwapQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.5, quote.SlippagePercent)

	req.SlippagePercent = Slippage(0)
	quote, err = svc.SwapQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, quote.SlippagePercent)
	assert.Equal(t, quote.OutputAmount, quote.MinimumReceived)

	req.SlippagePercent = Slippage(MaxSlippagePercent)
	_, err = svc.SwapQuote(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidSlippage)
}

func TestConstantProductProperties(t *testing.T) {
	reserves := []struct{ in, out float64 }{
		{1000, 850}, {1, 1e9}, {1e9, 1}, {42.5, 42.5}, {1e-3, 7},
	}
	amounts := []float64{1e-9, 0.01, 1, 10, 1e6}

	for _, r := range reserves {
		for _, a := range amounts {
			out, impact := ConstantProductOut(a, r.in, r.out)
			spot := a * r.out / r.in
			assert.Less(t, out, spot, "reserves %v amount %v", r, a)
			assert.GreaterOrEqual(t, impact, 0.0)
		}

		// as amountIn goes to zero the output tends to 0.997 of spot
		tiny := 1e-12
		out, impact := ConstantProductOut(tiny, r.in, r.out)
		assert.InDelta(t, 0.997*r.out/r.in, out/tiny, 1e-5*r.out/r.in)
		assert.InDelta(t, 0.3, impact, 1e-3)
	}

	out, impact := ConstantProductOut(1, 0, 10)
	assert.Zero(t, out)
	assert.Zero(t, impact)
}

func TestFallbackImpact(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{1, 0.1}, {99.9, 0.1}, {100, 0.3}, {999, 0.3}, {5_000, 0.8},
		{20_000, 1.5}, {75_000, 2.5}, {250_000, 3.5}, {1e7, 4.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FallbackImpact(tt.amount), "amount %v", tt.amount)
	}

	prev := 0.0
	for a := 1.0; a < 1e8; a *= 3 {
		got := FallbackImpact(a)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

var (
	tokenA = entities.Token{Symbol: "AAA", Address: common.HexToAddress("0x000000000000000000000000000000000000000a"), ChainID: 1, Decimals: 18}
	tokenB = entities.Token{Symbol: "BBB", Address: common.HexToAddress("0x000000000000000000000000000000000000000b"), ChainID: 1, Decimals: 18}
)

func abPair(totalSupply *big.Int) *entities.Pair {
	return &entities.Pair{
		Address:     pairAddress,
		Token0:      tokenA,
		Token1:      tokenB,
		Reserve0:    units("100", 18),
		Reserve1:    units("200", 18),
		TotalSupply: totalSupply,
	}
}

func TestLiquidityQuoteCorrectsRatio(t *testing.T) {
	mock := NewMockDEXClient()
	mock.SetPair(abPair(nil))
	svc := NewQuoteService(mock, fixedRates{usd: 2}, entities.WETH, 0.5, nil)

	quote, err := svc.LiquidityQuote(context.Background(), LiquidityRequest{
		TokenA: tokenA, TokenB: tokenB, AmountA: "10", AmountB: "5",
	})
	require.NoError(t, err)

	assert.False(t, quote.NewPool)
	assert.True(t, quote.AmountBAdjusted)
	assert.InDelta(t, 20.0, quote.AmountB, 1e-12)
	assert.InDelta(t, 2.0, quote.PoolRatio, 1e-12)
	assert.True(t, quote.Estimated)

	lp := math.Sqrt(10 * 20)
	assert.InDelta(t, lp, quote.LPTokensToReceive, 1e-9)
	assert.InDelta(t, lp/(math.Sqrt(100*200)+lp)*100, quote.PoolSharePercent, 1e-9)
	assert.InDelta(t, 10.0, quote.PriceImpactPercent, 1e-9)
	assert.InDelta(t, 60.0, quote.TotalUSDValue, 1e-9)
}

func TestLiquidityQuoteReverseOrientation(t *testing.T) {
	mock := NewMockDEXClient()
	mock.SetPair(abPair(nil))
	svc := NewQuoteService(mock, fixedRates{}, entities.WETH, 0.5, nil)

	quote, err := svc.LiquidityQuote(context.Background(), LiquidityRequest{
		TokenA: tokenB, TokenB: tokenA, AmountA: "20", AmountB: "10.1",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, quote.PoolRatio, 1e-12)
	assert.False(t, quote.AmountBAdjusted, "1% off is within tolerance")
	assert.InDelta(t, 10.1, quote.AmountB, 1e-12)
}

func TestLiquidityQuoteDerivesMissingAmount(t *testing.T) {
	mock := NewMockDEXClient()
	mock.SetPair(abPair(nil))
	svc := NewQuoteService(mock, fixedRates{}, entities.WETH, 0.5, nil)

	quote, err := svc.LiquidityQuote(context.Background(), LiquidityRequest{
		TokenA: tokenA, TokenB: tokenB, AmountA: "1",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, quote.AmountB, 1e-12)
	assert.InDelta(t, 1.0, quote.PriceImpactPercent, 1e-9)
}

func TestLiquidityQuoteWithTotalSupply(t *testing.T) {
	mock := NewMockDEXClient()
	mock.SetPair(abPair(units("100", 18)))
	svc := NewQuoteService(mock, fixedRates{}, entities.WETH, 0.5, nil)

	quote, err := svc.LiquidityQuote(context.Background(), LiquidityRequest{
		TokenA: tokenA, TokenB: tokenB, AmountA: "10", AmountB: "20",
	})
	require.NoError(t, err)
	assert.False(t, quote.Estimated)
	assert.InDelta(t, 10.0, quote.LPTokensToReceive, 1e-9)
	assert.InDelta(t, 10.0/110*100, quote.PoolSharePercent, 1e-9)
}

func TestLiquidityQuoteNewPool(t *testing.T) {
	svc := NewQuoteService(NewMockDEXClient(), fixedRates{}, entities.WETH, 0.5, nil)

	quote, err := svc.LiquidityQuote(context.Background(), LiquidityRequest{
		TokenA: tokenA, TokenB: tokenB, AmountA: "4", AmountB: "9",
	})
	require.NoError(t, err)
	assert.True(t, quote.NewPool)
	assert.Equal(t, 100.0, quote.PoolSharePercent)
	assert.InDelta(t, 6.0, quote.LPTokensToReceive, 1e-12)
	assert.InDelta(t, 2.25, quote.PoolRatio, 1e-12)
	assert.Zero(t, quote.PriceImpactPercent)

	_, err = svc.LiquidityQuote(context.Background(), LiquidityRequest{
		TokenA: tokenA, TokenB: tokenB, AmountA: "4",
	})
	assert.ErrorIs(t, err, ErrInvalidQuoteInputs)
}

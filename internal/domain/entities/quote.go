package entities

import "time"

// RouteSource tells which tier produced a swap quote
type RouteSource string

const (
	RouteOnChain RouteSource = "onchain"
	RouteOracle  RouteSource = "oracle"
)

// SwapQuote is derived from (from, to, amountIn, reserves or oracle rate,
// slippage). Amounts are display-level floats in whole token units.
type SwapQuote struct {
	FromToken            Token       `json:"fromToken"`
	ToToken              Token       `json:"toToken"`
	InputAmount          float64     `json:"inputAmount"`
	OutputAmount         float64     `json:"outputAmount"`
	ExchangeRate         float64     `json:"exchangeRate"`
	PriceImpactPercent   float64     `json:"priceImpactPercent"`
	MinimumReceived      float64     `json:"minimumReceived"`
	LiquidityProviderFee float64     `json:"liquidityProviderFee"`
	SlippagePercent      float64     `json:"slippagePercent"`
	RouteHops            []Token     `json:"routeHops"`
	Indirect             bool        `json:"indirect"`
	Source               RouteSource `json:"source"`
}

// LiquidityQuote is the derived preview of a liquidity deposit
type LiquidityQuote struct {
	TokenA             Token   `json:"tokenA"`
	TokenB             Token   `json:"tokenB"`
	AmountA            float64 `json:"amountA"`
	AmountB            float64 `json:"amountB"`
	AmountBAdjusted    bool    `json:"amountBAdjusted"`
	LPTokensToReceive  float64 `json:"lpTokensToReceive"`
	PoolSharePercent   float64 `json:"poolSharePercent"`
	PoolRatio          float64 `json:"poolRatio"`
	PriceImpactPercent float64 `json:"priceImpactPercent"`
	TotalUSDValue      float64 `json:"totalUsdValue"`
	NewPool            bool    `json:"newPool"`
	// Estimated is set when the LP figure is approximated without the pair's total supply
	Estimated bool `json:"estimated"`
}

// PriceQuote is a cached market snapshot for one token
type PriceQuote struct {
	TokenAddress string    `json:"tokenAddress"`
	Symbol       string    `json:"symbol"`
	USDPrice     float64   `json:"usdPrice"`
	Change24h    float64   `json:"change24h"`
	Volume24h    float64   `json:"volume24h"`
	LiquidityUSD float64   `json:"liquidityUsd"`
	MarketCap    float64   `json:"marketCap"`
	FDV          float64   `json:"fdv"`
	FetchedAt    time.Time `json:"fetchedAt"`
	// Fallback marks a price taken from the built-in table
	Fallback bool `json:"fallback,omitempty"`
}

// Fresh reports whether the quote is younger than ttl
func (q *PriceQuote) Fresh(ttl time.Duration, now time.Time) bool {
	return q != nil && now.Sub(q.FetchedAt) < ttl
}

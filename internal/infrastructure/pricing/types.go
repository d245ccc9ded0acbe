package pricing

import (
	"strconv"
	"strings"
)

// PairsResponse is the envelope for both the token and the search endpoints
type PairsResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairData `json:"pairs"`
}

// PairData is one trading pair as reported by the aggregator
type PairData struct {
	ChainID     string          `json:"chainId"`
	DexID       string          `json:"dexId"`
	URL         string          `json:"url"`
	PairAddress string          `json:"pairAddress"`
	BaseToken   PairToken       `json:"baseToken"`
	QuoteToken  PairToken       `json:"quoteToken"`
	PriceNative string          `json:"priceNative"`
	PriceUsd    string          `json:"priceUsd"`
	Volume      PairVolume      `json:"volume"`
	PriceChange PairPriceChange `json:"priceChange"`
	Liquidity   *PairLiquidity  `json:"liquidity"`
	Fdv         float64         `json:"fdv"`
	MarketCap   float64         `json:"marketCap"`
}

type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type PairLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type PairVolume struct {
	H1  float64 `json:"h1"`
	H24 float64 `json:"h24"`
}

type PairPriceChange struct {
	H1  float64 `json:"h1"`
	H24 float64 `json:"h24"`
}

// USDPrice parses priceUsd. Missing or malformed prices report false.
func (p PairData) USDPrice() (float64, bool) {
	if p.PriceUsd == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(p.PriceUsd, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// LiquidityUSD is zero when the aggregator omits liquidity
func (p PairData) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}

// MostLiquid returns the priced pair with the highest USD liquidity among
// those accepted by match. A nil match accepts every pair.
func MostLiquid(pairs []PairData, match func(PairData) bool) (PairData, bool) {
	var (
		best  PairData
		found bool
	)
	for _, p := range pairs {
		if match != nil && !match(p) {
			continue
		}
		if _, ok := p.USDPrice(); !ok {
			continue
		}
		if !found || p.LiquidityUSD() > best.LiquidityUSD() {
			best, found = p, true
		}
	}
	return best, found
}

// BaseAddress matches pairs whose base token is address
func BaseAddress(address string) func(PairData) bool {
	return func(p PairData) bool {
		return strings.EqualFold(p.BaseToken.Address, address)
	}
}

// BaseSymbol matches pairs whose base token symbol equals symbol, ignoring case
func BaseSymbol(symbol string) func(PairData) bool {
	return func(p PairData) bool {
		return strings.EqualFold(p.BaseToken.Symbol, symbol)
	}
}

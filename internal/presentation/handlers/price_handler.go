package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/domain/services"
)

// PriceReader is the part of the price oracle the HTTP layer serves
type PriceReader interface {
	GetTokenPrice(ctx context.Context, token entities.Token) (*entities.PriceQuote, error)
	GetTokenPriceBySymbol(ctx context.Context, symbol string) (*entities.PriceQuote, error)
}

type PriceHandler struct {
	prices  PriceReader
	tokens  TokenCatalog
	chainID uint64
	logger  *zap.Logger
}

func NewPriceHandler(prices PriceReader, tokens TokenCatalog, chainID uint64, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, tokens: tokens, chainID: chainID, logger: logger}
}

type PriceResponse struct {
	Token        string  `json:"token"`
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"priceUSD"`
	Change24h    float64 `json:"change24h"`
	LiquidityUSD float64 `json:"liquidityUSD"`
	Fallback     bool    `json:"fallback,omitempty"`
	UpdatedAt    string  `json:"updatedAt"`
}

// GetPrice handles GET /api/v1/price/{tokenAddress}. The path segment may
// also be a symbol; unknown symbols are searched on the aggregator.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(chi.URLParam(r, "tokenAddress"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing_token", "token address is required")
		return
	}
	chainID, ok := chainParam(r, h.chainID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}

	var (
		quote *entities.PriceQuote
		err   error
	)
	token, resolveErr := h.tokens.Resolve(r.Context(), chainID, ref)
	switch {
	case resolveErr == nil:
		quote, err = h.prices.GetTokenPrice(r.Context(), token)
	case !errors.Is(resolveErr, services.ErrTokenNotFound):
		writeServiceError(w, h.logger, resolveErr)
		return
	case common.IsHexAddress(ref):
		quote, err = h.prices.GetTokenPrice(r.Context(), entities.Token{
			Address:  common.HexToAddress(ref),
			ChainID:  chainID,
			Symbol:   "UNKNOWN",
			Decimals: 18,
		})
	default:
		quote, err = h.prices.GetTokenPriceBySymbol(r.Context(), ref)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	symbol := quote.Symbol
	if symbol == "" {
		symbol = token.Symbol
	}
	tokenAddr := quote.TokenAddress
	if tokenAddr == "" && resolveErr == nil {
		tokenAddr = token.Address.Hex()
	}
	writeJSON(w, http.StatusOK, PriceResponse{
		Token:        tokenAddr,
		Symbol:       symbol,
		PriceUSD:     quote.USDPrice,
		Change24h:    quote.Change24h,
		LiquidityUSD: quote.LiquidityUSD,
		Fallback:     quote.Fallback,
		UpdatedAt:    quote.FetchedAt.UTC().Format(time.RFC3339),
	})
}

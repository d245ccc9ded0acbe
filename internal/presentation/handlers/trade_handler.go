package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/services"
)

// Trader submits router transactions through the wallet session
type Trader interface {
	Swap(ctx context.Context, order services.SwapOrder) (*services.TxResult, error)
	AddLiquidity(ctx context.Context, order services.AddLiquidityOrder) (*services.TxResult, error)
	RemoveLiquidity(ctx context.Context, order services.RemoveLiquidityOrder) (*services.TxResult, error)
}

type TradeHandler struct {
	trader  Trader
	tokens  TokenCatalog
	chainID uint64
	logger  *zap.Logger
}

func NewTradeHandler(trader Trader, tokens TokenCatalog, chainID uint64, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{trader: trader, tokens: tokens, chainID: chainID, logger: logger}
}

// Slippage is optional in every body; omitted means the configured default
type SwapBody struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	AmountIn string   `json:"amountIn"`
	Slippage *float64 `json:"slippage"`
}

type AddLiquidityBody struct {
	TokenA   string   `json:"tokenA"`
	TokenB   string   `json:"tokenB"`
	AmountA  string   `json:"amountA"`
	AmountB  string   `json:"amountB"`
	Slippage *float64 `json:"slippage"`
}

type RemoveLiquidityBody struct {
	TokenA    string   `json:"tokenA"`
	TokenB    string   `json:"tokenB"`
	Liquidity string   `json:"liquidity"`
	Slippage  *float64 `json:"slippage"`
}

// Swap handles POST /api/v1/swap
func (h *TradeHandler) Swap(w http.ResponseWriter, r *http.Request) {
	var body SwapBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	from, err := h.tokens.Resolve(r.Context(), h.chainID, body.From)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	to, err := h.tokens.Resolve(r.Context(), h.chainID, body.To)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.trader.Swap(r.Context(), services.SwapOrder{
		From: from, To: to, AmountIn: body.AmountIn, SlippagePercent: body.Slippage,
	})
	h.respond(w, result, err)
}

// AddLiquidity handles POST /api/v1/liquidity/add
func (h *TradeHandler) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	var body AddLiquidityBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	tokenA, err := h.tokens.Resolve(r.Context(), h.chainID, body.TokenA)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	tokenB, err := h.tokens.Resolve(r.Context(), h.chainID, body.TokenB)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.trader.AddLiquidity(r.Context(), services.AddLiquidityOrder{
		TokenA: tokenA, TokenB: tokenB,
		AmountA: body.AmountA, AmountB: body.AmountB,
		SlippagePercent: body.Slippage,
	})
	h.respond(w, result, err)
}

// RemoveLiquidity handles POST /api/v1/liquidity/remove
func (h *TradeHandler) RemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var body RemoveLiquidityBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	tokenA, err := h.tokens.Resolve(r.Context(), h.chainID, body.TokenA)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	tokenB, err := h.tokens.Resolve(r.Context(), h.chainID, body.TokenB)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.trader.RemoveLiquidity(r.Context(), services.RemoveLiquidityOrder{
		TokenA: tokenA, TokenB: tokenB, Liquidity: body.Liquidity, SlippagePercent: body.Slippage,
	})
	h.respond(w, result, err)
}

func (h *TradeHandler) respond(w http.ResponseWriter, result *services.TxResult, err error) {
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

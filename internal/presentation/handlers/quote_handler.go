package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/domain/services"
)

// Quoter computes advisory quotes
type Quoter interface {
	SwapQuote(ctx context.Context, req services.SwapRequest) (*entities.SwapQuote, error)
	LiquidityQuote(ctx context.Context, req services.LiquidityRequest) (*entities.LiquidityQuote, error)
}

// DraftScheduler debounces live quote recomputation per client key
type DraftScheduler interface {
	Schedule(key string, compute services.QuoteFunc) uint64
	Latest(key string) (services.DraftResult, bool)
	Pending(key string) bool
}

// QuoteHandler handles quote requests
type QuoteHandler struct {
	quotes  Quoter
	drafts  DraftScheduler
	tokens  TokenCatalog
	chainID uint64
	logger  *zap.Logger
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quotes Quoter, drafts DraftScheduler, tokens TokenCatalog, chainID uint64, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, drafts: drafts, tokens: tokens, chainID: chainID, logger: logger}
}

// DraftRequest is one edit of a live swap form
type DraftRequest struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	AmountIn string   `json:"amountIn"`
	Slippage *float64 `json:"slippage"`
}

// DraftResponse reports the latest committed quote for a key. Quote is null
// while the inputs cannot be quoted.
type DraftResponse struct {
	Key        string              `json:"key"`
	Generation uint64              `json:"generation"`
	Pending    bool                `json:"pending"`
	Quote      *entities.SwapQuote `json:"quote"`
	Error      string              `json:"error,omitempty"`
	ComputedAt *time.Time          `json:"computedAt,omitempty"`
}

// GetQuote handles GET /api/v1/quote?from=&to=&amountIn=&slippage=. Tokens
// are addresses or symbols of the configured chain.
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromRef, toRef, amountIn := q.Get("from"), q.Get("to"), q.Get("amountIn")
	if fromRef == "" || toRef == "" || amountIn == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "from, to, and amountIn are required")
		return
	}
	slippage, ok := slippageParam(q.Get("slippage"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_slippage", "slippage must be a non-negative percentage")
		return
	}

	from, to, err := h.resolvePair(r.Context(), fromRef, toRef)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	quote, err := h.quotes.SwapQuote(r.Context(), services.SwapRequest{
		From: from, To: to, AmountIn: amountIn, SlippagePercent: slippage,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// GetLiquidityQuote handles GET /api/v1/liquidity/quote?tokenA=&tokenB=&amountA=&amountB=
func (h *QuoteHandler) GetLiquidityQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aRef, bRef, amountA := q.Get("tokenA"), q.Get("tokenB"), q.Get("amountA")
	if aRef == "" || bRef == "" || amountA == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "tokenA, tokenB, and amountA are required")
		return
	}

	tokenA, tokenB, err := h.resolvePair(r.Context(), aRef, bRef)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	quote, err := h.quotes.LiquidityQuote(r.Context(), services.LiquidityRequest{
		TokenA: tokenA, TokenB: tokenB, AmountA: amountA, AmountB: q.Get("amountB"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// ScheduleDraft handles POST /api/v1/quote/draft/{key}. The quote is computed
// after the debounce window; a newer draft for the same key supersedes it.
func (h *QuoteHandler) ScheduleDraft(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	var req DraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	from, to, err := h.resolvePair(r.Context(), req.From, req.To)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	sr := services.SwapRequest{From: from, To: to, AmountIn: req.AmountIn, SlippagePercent: req.Slippage}
	gen := h.drafts.Schedule(key, func(ctx context.Context) (*entities.SwapQuote, error) {
		return h.quotes.SwapQuote(ctx, sr)
	})
	writeJSON(w, http.StatusAccepted, DraftResponse{Key: key, Generation: gen, Pending: true})
}

// GetDraft handles GET /api/v1/quote/draft/{key}
func (h *QuoteHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	pending := h.drafts.Pending(key)
	result, ok := h.drafts.Latest(key)
	if !ok && !pending {
		writeError(w, http.StatusNotFound, "draft_not_found", "no quote scheduled for "+key)
		return
	}

	resp := DraftResponse{Key: key, Pending: pending}
	if ok {
		resp.Generation = result.Generation
		resp.Quote = result.Quote
		resp.ComputedAt = &result.ComputedAt
		if result.Err != nil && !services.IsQuoteUnavailable(result.Err) {
			resp.Error = result.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *QuoteHandler) resolvePair(ctx context.Context, a, b string) (entities.Token, entities.Token, error) {
	tokenA, err := h.tokens.Resolve(ctx, h.chainID, a)
	if err != nil {
		return entities.Token{}, entities.Token{}, err
	}
	tokenB, err := h.tokens.Resolve(ctx, h.chainID, b)
	if err != nil {
		return entities.Token{}, entities.Token{}, err
	}
	return tokenA, tokenB, nil
}

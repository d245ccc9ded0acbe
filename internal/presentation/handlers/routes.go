package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/logger"
)

// Dependencies are the services behind the HTTP bridge
type Dependencies struct {
	Version string
	ChainID uint64
	Tokens  TokenCatalog
	Prices  PriceReader
	Quotes  Quoter
	Drafts  DraftScheduler
	Session SessionController
	Prober  WalletProber
	Trader  Trader
	Logger  *zap.Logger
	// ReadTimeout bounds quote and lookup requests. Trading routes wait for
	// receipts and are bounded by the trading service instead.
	ReadTimeout time.Duration
}

// NewRouter wires every route onto a chi mux
func NewRouter(d Dependencies) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.ReadTimeout <= 0 {
		d.ReadTimeout = 30 * time.Second
	}

	health := NewHealthHandler(d.Version, d.Session)
	tokens := NewTokenHandler(d.Tokens, d.ChainID, d.Logger)
	prices := NewPriceHandler(d.Prices, d.Tokens, d.ChainID, d.Logger)
	quotes := NewQuoteHandler(d.Quotes, d.Drafts, d.Tokens, d.ChainID, d.Logger)
	wallets := NewWalletHandler(d.Session, d.Prober, d.Logger)
	trades := NewTradeHandler(d.Trader, d.Tokens, d.ChainID, d.Logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.ReadTimeout))

			r.Get("/tokens", tokens.List)
			r.Post("/tokens", tokens.Add)
			r.Delete("/tokens/{address}", tokens.Remove)

			r.Get("/price/{tokenAddress}", prices.GetPrice)

			r.Get("/quote", quotes.GetQuote)
			r.Get("/liquidity/quote", quotes.GetLiquidityQuote)
			r.Post("/quote/draft/{key}", quotes.ScheduleDraft)
			r.Get("/quote/draft/{key}", quotes.GetDraft)

			r.Get("/wallet/session", wallets.Session)
		})

		r.Post("/wallet/connect", wallets.Connect)
		r.Post("/wallet/disconnect", wallets.Disconnect)
		r.Post("/wallet/switch", wallets.SwitchNetwork)
		r.Post("/wallet/probe", wallets.Probe)

		r.Post("/swap", trades.Swap)
		r.Post("/liquidity/add", trades.AddLiquidity)
		r.Post("/liquidity/remove", trades.RemoveLiquidity)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

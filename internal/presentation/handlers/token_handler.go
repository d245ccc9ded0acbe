package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
)

// TokenCatalog lists, resolves and edits the token registry
type TokenCatalog interface {
	Tokens(ctx context.Context, chainID uint64) ([]entities.Token, error)
	Resolve(ctx context.Context, chainID uint64, ref string) (entities.Token, error)
	AddCustomToken(ctx context.Context, chainID uint64, address string) (entities.Token, error)
	RemoveCustomToken(ctx context.Context, chainID uint64, address string) error
}

type TokenHandler struct {
	tokens  TokenCatalog
	chainID uint64
	logger  *zap.Logger
}

func NewTokenHandler(tokens TokenCatalog, chainID uint64, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, chainID: chainID, logger: logger}
}

type TokenListResponse struct {
	ChainID uint64           `json:"chainId"`
	Tokens  []entities.Token `json:"tokens"`
}

type AddTokenRequest struct {
	ChainID uint64 `json:"chainId"`
	Address string `json:"address"`
}

// List handles GET /api/v1/tokens?chainId=
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(r, h.chainID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}
	tokens, err := h.tokens.Tokens(r.Context(), chainID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenListResponse{ChainID: chainID, Tokens: tokens})
}

// Add handles POST /api/v1/tokens
func (h *TokenHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.ChainID == 0 {
		req.ChainID = h.chainID
	}
	token, err := h.tokens.AddCustomToken(r.Context(), req.ChainID, req.Address)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

// Remove handles DELETE /api/v1/tokens/{address}?chainId=
func (h *TokenHandler) Remove(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(r, h.chainID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chainId must be a positive integer")
		return
	}
	if err := h.tokens.RemoveCustomToken(r.Context(), chainID, chi.URLParam(r, "address")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/bimakw/dex-client/internal/wallet"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status          string       `json:"status"`
	Version         string       `json:"version"`
	ExpectedChainID uint64       `json:"expectedChainId"`
	Wallet          wallet.State `json:"wallet"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	version string
	session SessionController
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, session SessionController) *HealthHandler {
	return &HealthHandler{version: version, session: session}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Wallet:  wallet.StateDisconnected,
	}
	if h.session != nil {
		resp.ExpectedChainID = h.session.ExpectedChainID()
		resp.Wallet = h.session.Session().State
	}
	writeJSON(w, http.StatusOK, resp)
}

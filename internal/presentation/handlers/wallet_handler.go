package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/wallet"
)

// SessionController drives the wallet session
type SessionController interface {
	Session() wallet.Session
	ExpectedChainID() uint64
	Connect(ctx context.Context) (wallet.Session, error)
	Disconnect(ctx context.Context)
	SwitchNetwork(ctx context.Context, target uint64) error
}

// WalletProber re-probes for an injected wallet out of band
type WalletProber interface {
	ProbeNow()
	Found() bool
	Running() bool
}

type WalletHandler struct {
	session SessionController
	prober  WalletProber
	logger  *zap.Logger
}

// NewWalletHandler creates the wallet routes. prober may be nil when no
// watcher runs.
func NewWalletHandler(session SessionController, prober WalletProber, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{session: session, prober: prober, logger: logger}
}

type ProbeResponse struct {
	Requested bool `json:"requested"`
	Watching  bool `json:"watching"`
	Found     bool `json:"found"`
}

type SwitchNetworkRequest struct {
	ChainID uint64 `json:"chainId"`
}

// Session handles GET /api/v1/wallet/session
func (h *WalletHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Session())
}

// Connect handles POST /api/v1/wallet/connect
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	s, err := h.session.Connect(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Disconnect handles POST /api/v1/wallet/disconnect
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, h.session.Session())
}

// SwitchNetwork handles POST /api/v1/wallet/switch. An empty body targets the
// expected chain.
func (h *WalletHandler) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	var req SwitchNetworkRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}
	if req.ChainID == 0 {
		req.ChainID = h.session.ExpectedChainID()
	}
	if err := h.session.SwitchNetwork(r.Context(), req.ChainID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Session())
}

// Probe handles POST /api/v1/wallet/probe, the hook a client calls when its
// window regains focus
func (h *WalletHandler) Probe(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		writeError(w, http.StatusServiceUnavailable, "probe_unavailable", "no wallet watcher is running")
		return
	}
	h.prober.ProbeNow()
	writeJSON(w, http.StatusAccepted, ProbeResponse{
		Requested: true,
		Watching:  h.prober.Running(),
		Found:     h.prober.Found(),
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/domain/services"
	"github.com/bimakw/dex-client/internal/wallet"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Guidance string `json:"guidance,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Ordered: the first sentinel the error matches decides the response
var errorMappings = []errorMapping{
	{services.ErrInvalidQuoteInputs, http.StatusBadRequest, "invalid_quote_inputs"},
	{services.ErrInvalidSlippage, http.StatusBadRequest, "invalid_slippage"},
	{entities.ErrTooManyDecimal, http.StatusBadRequest, "too_many_decimals"},
	{entities.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
	{services.ErrUnsupportedChain, http.StatusBadRequest, "unsupported_chain"},
	{services.ErrTokenNotFound, http.StatusNotFound, "token_not_found"},
	{services.ErrPriceOracleUnavailable, http.StatusNotFound, "price_not_found"},

	{wallet.ErrWalletNotInstalled, http.StatusServiceUnavailable, "wallet_not_installed"},
	{wallet.ErrNotConnected, http.StatusConflict, "wallet_not_connected"},
	{wallet.ErrNetworkMismatch, http.StatusConflict, "wrong_network"},
	{wallet.ErrConnectInProgress, http.StatusConflict, "connect_in_progress"},
	{wallet.ErrPendingRequest, http.StatusConflict, "wallet_request_pending"},
	{wallet.ErrUserRejected, http.StatusForbidden, "user_rejected"},
	{wallet.ErrUnknownNetwork, http.StatusBadRequest, "unknown_network"},
	{wallet.ErrMethodUnsupported, http.StatusNotImplemented, "wallet_unsupported"},
	{wallet.ErrMalformedResponse, http.StatusBadGateway, "malformed_wallet_response"},

	{services.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{services.ErrInsufficientAllowance, http.StatusUnprocessableEntity, "insufficient_allowance"},
	{services.ErrInsufficientLiquidity, http.StatusUnprocessableEntity, "insufficient_liquidity"},
	{services.ErrInsufficientOutputAmount, http.StatusUnprocessableEntity, "insufficient_output_amount"},
	{services.ErrTransactionExpired, http.StatusUnprocessableEntity, "transaction_expired"},
	{services.ErrTransactionReverted, http.StatusUnprocessableEntity, "transaction_reverted"},
	{services.ErrTransactionFailed, http.StatusUnprocessableEntity, "transaction_failed"},

	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// writeServiceError maps a domain error onto its status and logs server-side failures
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	resp := ErrorResponse{Error: code, Message: err.Error()}
	if g := services.Guidance(err); g != resp.Message {
		resp.Guidance = g
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// chainParam reads ?chainId=, falling back to def
func chainParam(r *http.Request, def uint64) (uint64, bool) {
	v := r.URL.Query().Get("chainId")
	if v == "" {
		return def, true
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// slippageParam reads an optional percentage; empty means the service default
func slippageParam(v string) (*float64, bool) {
	if v == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return nil, false
	}
	return services.Slippage(f), true
}

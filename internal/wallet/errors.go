package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWalletNotInstalled = errors.New("wallet not installed")
	ErrUserRejected       = errors.New("request rejected by user")
	ErrPendingRequest     = errors.New("a wallet request is already pending")
	ErrMalformedResponse  = errors.New("malformed wallet response")
	ErrNoValidAddress     = fmt.Errorf("%w: no valid address", ErrMalformedResponse)
	ErrMethodUnsupported  = errors.New("method not supported by wallet")
	ErrNetworkMismatch    = errors.New("wallet is connected to the wrong network")
	ErrUnknownNetwork     = errors.New("network not recognized by wallet")
	ErrNotConnected       = errors.New("wallet not connected")
	ErrConnectInProgress  = errors.New("connection already in progress")
)

// Provider error codes used by injected wallets
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
	CodeMethodNotFound    = -32601
)

// ProviderError is an error reported by the wallet itself
type ProviderError struct {
	Code    int
	Message string
	Data    any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Classify maps a raw wallet error onto the package sentinels. Errors that
// already carry a sentinel are returned unchanged; unrecognized errors come
// back as they are.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrWalletNotInstalled, ErrUserRejected, ErrPendingRequest, ErrMalformedResponse,
		ErrMethodUnsupported, ErrNetworkMismatch, ErrUnknownNetwork, ErrNotConnected,
		ErrConnectInProgress, context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		switch perr.Code {
		case CodeUserRejected:
			return fmt.Errorf("%w: %s", ErrUserRejected, perr.Message)
		case CodeRequestPending:
			return fmt.Errorf("%w: %s", ErrPendingRequest, perr.Message)
		case CodeUnrecognizedChain:
			return fmt.Errorf("%w: %s", ErrUnknownNetwork, perr.Message)
		case CodeUnsupportedMethod, CodeMethodNotFound:
			return fmt.Errorf("%w: %s", ErrMethodUnsupported, perr.Message)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"), strings.Contains(msg, "rejected by user"):
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	case strings.Contains(msg, "already pending"), strings.Contains(msg, "request already"):
		return fmt.Errorf("%w: %v", ErrPendingRequest, err)
	case strings.Contains(msg, "unrecognized chain"), strings.Contains(msg, "unknown chain"), strings.Contains(msg, "try adding the chain"):
		return fmt.Errorf("%w: %v", ErrUnknownNetwork, err)
	}
	return err
}

// NoticeKind is the user-facing category of a wallet condition
type NoticeKind string

const (
	NoticeInfo               NoticeKind = "info"
	NoticeWalletNotInstalled NoticeKind = "wallet_not_installed"
	NoticeUserRejected       NoticeKind = "user_rejected"
	NoticePendingRequest     NoticeKind = "pending_request"
	NoticeMalformedResponse  NoticeKind = "malformed_response"
	NoticeWrongNetwork       NoticeKind = "wrong_network"
	NoticeUnsupported        NoticeKind = "unsupported"
	NoticeError              NoticeKind = "error"
)

// Notice is a transient, user-visible message raised by the session manager
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

// Notifier receives notices; implementations must not block
type Notifier func(Notice)

// NoticeFor converts a classified error into a notice
func NoticeFor(err error) Notice {
	switch {
	case errors.Is(err, ErrWalletNotInstalled):
		return Notice{Kind: NoticeWalletNotInstalled, Message: "Wallet not detected. Install or unlock the wallet extension and try again.", Err: err}
	case errors.Is(err, ErrUserRejected):
		return Notice{Kind: NoticeUserRejected, Message: "Request was rejected in the wallet.", Err: err}
	case errors.Is(err, ErrPendingRequest):
		return Notice{Kind: NoticePendingRequest, Message: "A wallet request is already open. Check the wallet window.", Err: err}
	case errors.Is(err, ErrMalformedResponse):
		return Notice{Kind: NoticeMalformedResponse, Message: "The wallet returned data that could not be read.", Err: err}
	case errors.Is(err, ErrNetworkMismatch):
		return Notice{Kind: NoticeWrongNetwork, Message: "Wallet is on the wrong network. Switch networks to continue.", Err: err}
	case errors.Is(err, ErrMethodUnsupported):
		return Notice{Kind: NoticeUnsupported, Message: "This action is not supported by the wallet.", Err: err}
	default:
		return Notice{Kind: NoticeError, Message: fmt.Sprintf("Wallet error: %v", err), Err: err}
	}
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bimakw/dex-client/internal/wallet"
)

var (
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientAllowance    = errors.New("insufficient allowance")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrTransactionExpired       = errors.New("transaction expired")
	ErrTransactionReverted      = errors.New("transaction reverted")
	ErrTransactionFailed        = errors.New("transaction failed")
	ErrPriceOracleUnavailable   = errors.New("price oracle unavailable")
	ErrInvalidQuoteInputs       = errors.New("invalid quote inputs")
	ErrInvalidSlippage          = errors.New("slippage tolerance out of range")
)

// TxFailure is a submission error mapped onto a known category, with guidance
// for the user and the raw text the wallet or node returned
type TxFailure struct {
	Kind     error
	Guidance string
	Raw      string
}

func (f *TxFailure) Error() string {
	return fmt.Sprintf("%v: %s", f.Kind, f.Raw)
}

func (f *TxFailure) Unwrap() error {
	return f.Kind
}

type revertPattern struct {
	substrings []string
	kind       error
	guidance   string
}

// Ordered: the first matching pattern wins
var revertPatterns = []revertPattern{
	{[]string{"insufficient_output_amount", "insufficient_a_amount", "insufficient_b_amount"},
		ErrInsufficientOutputAmount, "Price moved beyond your slippage tolerance. Increase slippage and try again."},
	{[]string{"insufficient_liquidity"},
		ErrInsufficientLiquidity, "The pool does not hold enough liquidity for this trade. Try a smaller amount."},
	{[]string{"expired"},
		ErrTransactionExpired, "The transaction deadline passed before it was mined. Submit it again."},
	{[]string{"transfer_from_failed", "allowance"},
		ErrInsufficientAllowance, "The router could not move your tokens. Check your token approvals."},
	{[]string{"insufficient funds", "exceeds balance"},
		ErrInsufficientBalance, "Your balance does not cover the amount plus gas."},
}

// ClassifyTxError maps a submission error onto the trading sentinels. Wallet
// rejections keep their wallet category; nil stays nil.
func ClassifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var failure *TxFailure
	if errors.As(err, &failure) {
		return err
	}

	classified := wallet.Classify(err)
	for _, known := range []error{wallet.ErrUserRejected, wallet.ErrPendingRequest, wallet.ErrNotConnected, wallet.ErrNetworkMismatch} {
		if errors.Is(classified, known) {
			return classified
		}
	}

	raw := err.Error()
	msg := strings.ToLower(raw)
	for _, p := range revertPatterns {
		for _, s := range p.substrings {
			if strings.Contains(msg, s) {
				return &TxFailure{Kind: p.kind, Guidance: p.guidance, Raw: raw}
			}
		}
	}
	return &TxFailure{
		Kind:     ErrTransactionFailed,
		Guidance: "Transaction failed: " + raw,
		Raw:      raw,
	}
}

// Guidance returns the user-facing advice for an error from the trading service
func Guidance(err error) string {
	var failure *TxFailure
	if errors.As(err, &failure) {
		return failure.Guidance
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wallet.ErrNotConnected), errors.Is(err, wallet.ErrNetworkMismatch),
		errors.Is(err, wallet.ErrUserRejected), errors.Is(err, wallet.ErrPendingRequest):
		return wallet.NoticeFor(err).Message
	case errors.Is(err, ErrInsufficientBalance):
		return "Your balance does not cover this amount."
	default:
		return err.Error()
	}
}

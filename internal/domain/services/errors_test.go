package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/dex-client/internal/wallet"
)

func TestClassifyTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"slippage", errors.New("execution reverted: UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"), ErrInsufficientOutputAmount},
		{"liquidity slippage", errors.New("execution reverted: UniswapV2Router: INSUFFICIENT_B_AMOUNT"), ErrInsufficientOutputAmount},
		{"liquidity", errors.New("execution reverted: UniswapV2Library: INSUFFICIENT_LIQUIDITY"), ErrInsufficientLiquidity},
		{"deadline", errors.New("execution reverted: UniswapV2Router: EXPIRED"), ErrTransactionExpired},
		{"allowance", errors.New("execution reverted: TransferHelper: TRANSFER_FROM_FAILED"), ErrInsufficientAllowance},
		{"erc20 allowance", errors.New("ERC20: transfer amount exceeds allowance"), ErrInsufficientAllowance},
		{"gas funds", errors.New("insufficient funds for gas * price + value"), ErrInsufficientBalance},
		{"balance", errors.New("ERC20: transfer amount exceeds balance"), ErrInsufficientBalance},
		{"unknown", errors.New("nonce too low"), ErrTransactionFailed},
		{"rejected", &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User denied transaction signature"}, wallet.ErrUserRejected},
		{"pending", &wallet.ProviderError{Code: wallet.CodeRequestPending, Message: "Request already pending"}, wallet.ErrPendingRequest},
		{"wrong network", fmt.Errorf("submit: %w", wallet.ErrNetworkMismatch), wallet.ErrNetworkMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTxError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.NotEmpty(t, Guidance(got))
		})
	}

	assert.NoError(t, ClassifyTxError(nil))
}

func TestClassifyTxErrorKeepsRawText(t *testing.T) {
	got := ClassifyTxError(errors.New("replacement transaction underpriced"))

	var failure *TxFailure
	require.ErrorAs(t, got, &failure)
	assert.Equal(t, "replacement transaction underpriced", failure.Raw)
	assert.Equal(t, "Transaction failed: replacement transaction underpriced", failure.Guidance)

	// already classified errors pass through untouched
	assert.Same(t, got, ClassifyTxError(got))
}

func TestGuidance(t *testing.T) {
	assert.Empty(t, Guidance(nil))
	assert.Equal(t, "Wallet is on the wrong network. Switch networks to continue.", Guidance(wallet.ErrNetworkMismatch))
	assert.Equal(t, "Your balance does not cover this amount.", Guidance(fmt.Errorf("%w: need 2 ETH", ErrInsufficientBalance)))
	assert.Equal(t, "boom", Guidance(errors.New("boom")))
}

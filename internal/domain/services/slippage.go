package services

import (
	"fmt"
	"math"
)

// MaxSlippagePercent is the exclusive upper bound on a slippage tolerance.
// Quotes and transactions share it.
const MaxSlippagePercent = 50.0

// Slippage returns an explicit tolerance for a request
func Slippage(percent float64) *float64 {
	return &percent
}

// ResolveSlippage returns the requested tolerance, or def when the request
// left it unset. Zero is a valid request.
func ResolveSlippage(requested *float64, def float64) (float64, error) {
	percent := def
	if requested != nil {
		percent = *requested
	}
	if math.IsNaN(percent) || percent < 0 || percent >= MaxSlippagePercent {
		return 0, fmt.Errorf("%w: %v%%", ErrInvalidSlippage, percent)
	}
	return percent, nil
}

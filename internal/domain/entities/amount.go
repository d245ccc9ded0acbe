package entities

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountDigits bounds both the integer digits and the fractional digits of
// a parsed amount. A uint256 has 78 decimal digits.
const MaxAmountDigits = 78

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrTooManyDecimal   = errors.New("amount has more fractional digits than the token supports")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// ParseDecimal parses a non-negative decimal string. Exponent notation is
// accepted, but only within MaxAmountDigits of the decimal point.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}

	exp := int64(d.Exponent())
	if exp > MaxAmountDigits || int64(d.NumDigits())+exp > MaxAmountDigits {
		return decimal.Zero, fmt.Errorf("%w: too large", ErrAmountOutOfRange)
	}
	if exp < -MaxAmountDigits {
		return decimal.Zero, fmt.Errorf("%w: too many fractional digits", ErrAmountOutOfRange)
	}
	return d, nil
}

// ParseUnits converts a user-visible decimal string into integer token units.
// The conversion is exact: extra fractional digits are rejected, never rounded.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return nil, err
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q with %d decimals", ErrTooManyDecimal, s, decimals)
	}

	units := scaled.BigInt()
	if units.BitLen() > 256 {
		return nil, fmt.Errorf("%w: exceeds uint256", ErrAmountOutOfRange)
	}
	return units, nil
}

// FormatUnits renders integer token units as a decimal string without
// trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// UnitsToFloat converts integer units to a float for display-level estimation only
func UnitsToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(amount, -int32(decimals)).Float64()
	return f
}

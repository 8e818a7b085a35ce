package contract

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/PixelPet-dev/xlayerslot/errors"
)

// TokenDecimals is the precision of the wagering token (OKB).
const TokenDecimals = 18

// ParseAmount converts a human-entered token amount ("0.5", "1000")
// into base units. Amounts with more fractional digits than the token
// supports are rejected rather than silently truncated.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New(errors.ErrValidation, "amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrValidation, "invalid amount")
	}
	if d.IsNegative() {
		return nil, errors.New(errors.ErrValidation, "amount must be positive")
	}
	scaled := d.Shift(TokenDecimals)
	if !scaled.IsInteger() {
		return nil, errors.Newf(errors.ErrValidation, "amount supports at most %d decimal places", TokenDecimals)
	}
	return scaled.BigInt(), nil
}

// FormatAmount renders base units as a human-readable token amount with
// trailing zeros trimmed. A nil value formats as "0".
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -TokenDecimals).String()
}

// MulBy returns v scaled by an integer factor. Used for the allowance
// headroom applied ahead of a bet.
func MulBy(v *big.Int, factor int64) *big.Int {
	return new(big.Int).Mul(v, big.NewInt(factor))
}

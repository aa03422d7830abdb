package slippage

import (
	"math/big"

	"github.com/pkg/errors"

	"psp-ffi/pkg/types"
)

const (
	// MaxPercent caps SELL slippage; a BUY may pay any premium
	MaxPercent = 100
	base10     = 10
	// MaxBits is the width of an ABI uint256
	MaxBits = 256
)

var (
	// ErrInvalidSlippage is returned for a negative tolerance, or above MaxPercent on SELL
	ErrInvalidSlippage = errors.New("invalid slippage percent")
	// ErrInvalidAmount is returned when an amount is not an integer in uint256 range
	ErrInvalidAmount = errors.New("invalid route amount")
)

var hundred = big.NewInt(100)

// Adjust applies the slippage tolerance to the non-fixed side of a route.
// SELL lowers the destination amount, BUY raises the source amount; both truncate.
func Adjust(route *types.PricedRoute, side types.Side, percent int64) (src, dest *big.Int, err error) {
	if err := ValidatePercent(side, percent); err != nil {
		return nil, nil, err
	}

	src, err = ParseAmount(route.SrcAmount)
	if err != nil {
		return nil, nil, errors.Wrap(err, "srcAmount")
	}
	dest, err = ParseAmount(route.DestAmount)
	if err != nil {
		return nil, nil, errors.Wrap(err, "destAmount")
	}

	switch side {
	case types.SideSell:
		dest = scale(dest, big.NewInt(MaxPercent-percent))
	case types.SideBuy:
		src = scale(src, new(big.Int).Add(hundred, big.NewInt(percent)))
		if src.BitLen() > MaxBits {
			return nil, nil, errors.Wrapf(ErrInvalidAmount, "adjusted srcAmount %s overflows uint256", src)
		}
	default:
		return nil, nil, errors.Errorf("unknown side %q", side)
	}

	return src, dest, nil
}

// ParseAmount parses a base-10 token amount that fits a uint256
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, base10)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is not an integer", s)
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is negative", s)
	}
	if v.BitLen() > MaxBits {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q overflows uint256", s)
	}
	return v, nil
}

// ValidatePercent checks a tolerance for side. SELL cannot drop below zero output.
func ValidatePercent(side types.Side, percent int64) error {
	if percent < 0 {
		return errors.Wrapf(ErrInvalidSlippage, "got %d", percent)
	}
	if side == types.SideSell && percent > MaxPercent {
		return errors.Wrapf(ErrInvalidSlippage, "SELL slippage above %d%%: got %d", MaxPercent, percent)
	}
	return nil
}

// amount * pct / 100, truncated toward zero
func scale(amount, pct *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, pct)
	return out.Quo(out, hundred)
}

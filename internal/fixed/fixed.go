package fixed

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Dec is an 18-fractional-digit fixed-point number. All monetary arithmetic
// in the core runs on this type; the rounding direction is always chosen at
// the call site, never implied.
type Dec = sdkmath.LegacyDec

// RoundingMode selects the rounding direction for multiply/divide.
// Floor for amounts the protocol can later be claimed against, Ceil for
// amounts a counterparty must pay in.
type RoundingMode int

const (
	RoundFloor RoundingMode = iota
	RoundCeil
	RoundHalfEven // Banker's rounding at the 18th digit
)

var (
	ErrDivisionByZero = fmt.Errorf("fixed: division by zero")
	ErrOverflow       = fmt.Errorf("fixed: overflow")
)

// Zero returns 0.
func Zero() Dec { return sdkmath.LegacyZeroDec() }

// One returns 1.
func One() Dec { return sdkmath.LegacyOneDec() }

// New returns the Dec representation of an integer.
func New(i int64) Dec { return sdkmath.LegacyNewDec(i) }

// NewWithPrec returns i * 10^-prec, e.g. NewWithPrec(5, 1) == 0.5.
func NewWithPrec(i, prec int64) Dec { return sdkmath.LegacyNewDecWithPrec(i, prec) }

// FromString parses a decimal string with up to 18 fractional digits.
func FromString(s string) (Dec, error) { return sdkmath.LegacyNewDecFromStr(s) }

// MustFromString parses a decimal string, panicking on malformed input.
// For constants and test fixtures only.
func MustFromString(s string) Dec { return sdkmath.LegacyMustNewDecFromStr(s) }

// Mul multiplies with an explicit rounding direction on the 18th digit.
func Mul(a, b Dec, mode RoundingMode) Dec {
	switch mode {
	case RoundFloor:
		return a.MulTruncate(b)
	case RoundCeil:
		return a.MulRoundUp(b)
	default:
		return a.Mul(b)
	}
}

// Div divides with an explicit rounding direction, rejecting division by zero.
func Div(a, b Dec, mode RoundingMode) (Dec, error) {
	if b.IsZero() {
		return Dec{}, ErrDivisionByZero
	}
	switch mode {
	case RoundFloor:
		return a.QuoTruncate(b), nil
	case RoundCeil:
		return a.QuoRoundUp(b), nil
	default:
		return a.Quo(b), nil
	}
}

// MulFloor is Mul with RoundFloor.
func MulFloor(a, b Dec) Dec { return a.MulTruncate(b) }

// MulCeil is Mul with RoundCeil.
func MulCeil(a, b Dec) Dec { return a.MulRoundUp(b) }

// DivFloor divides rounding toward zero. Panics on division by zero; callers
// that cannot rule it out use Div.
func DivFloor(a, b Dec) Dec { return a.QuoTruncate(b) }

// DivCeil divides rounding away from zero.
func DivCeil(a, b Dec) Dec { return a.QuoRoundUp(b) }

// SafeMul multiplies, converting the underlying overflow panic into an error.
// The backing store is 256-bit; overflow is a structural failure, never a
// silent wrap.
func SafeMul(a, b Dec, mode RoundingMode) (d Dec, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrOverflow
		}
	}()
	return Mul(a, b, mode), nil
}

// SafeDiv divides, converting overflow panics into errors.
func SafeDiv(a, b Dec, mode RoundingMode) (d Dec, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrOverflow
		}
	}()
	return Div(a, b, mode)
}

// Compound returns 1 - (1-ratio)^periods, the cumulative fraction released
// after the given number of whole periods at a per-period ratio.
func Compound(ratio Dec, periods uint64) Dec {
	if periods == 0 {
		return Zero()
	}
	keep := One().Sub(ratio)
	if keep.IsNegative() {
		return One()
	}
	return One().Sub(keep.Power(periods))
}

// Min returns the smaller of a and b.
func Min(a, b Dec) Dec { return sdkmath.LegacyMinDec(a, b) }

// Max returns the larger of a and b.
func Max(a, b Dec) Dec { return sdkmath.LegacyMaxDec(a, b) }

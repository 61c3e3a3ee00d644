package domain

import (
	"math"
	"math/bits"
	"strconv"

	dErrors "catalog/pkg/domain-errors"
)

// Amount is a quantity of value in indivisible base units. All monetary
// arithmetic goes through the checked helpers so an overflow can never
// silently mint or destroy value.
type Amount uint64

func (a Amount) IsZero() bool   { return a == 0 }
func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }

// ParseAmount constructs an Amount from external input.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount")
	}
	return Amount(v), nil
}

// Mul returns a*n, failing rather than wrapping around.
func (a Amount) Mul(n uint64) (Amount, error) {
	if a == 0 || n == 0 {
		return 0, nil
	}
	if uint64(a) > math.MaxUint64/n {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount overflow")
	}
	return a * Amount(n), nil
}

// Add returns a+b, failing rather than wrapping around.
func (a Amount) Add(b Amount) (Amount, error) {
	if uint64(a) > math.MaxUint64-uint64(b) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount overflow")
	}
	return a + b, nil
}

// Sub returns a-b, failing if b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount underflow")
	}
	return a - b, nil
}

// BasisPoints applies a bps fraction to the amount, rounding down. bps must
// be at most 10000; callers validate that at configuration time.
func (a Amount) BasisPoints(bps uint16) Amount {
	hi, lo := bits.Mul64(uint64(a), uint64(bps))
	q, _ := bits.Div64(hi, lo, 10000)
	return Amount(q)
}

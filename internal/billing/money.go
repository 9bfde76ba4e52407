package billing

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// validationError communicates rule violations back to HTTP handlers.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func NewValidationError(msg string) error {
	return validationError{message: msg}
}

// IsValidation distinguishes rejected input from backend failures.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts user input, mapping NaN and infinities to zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// NormalizeQty clamps negative, non-finite or out of range quantities to
// zero and floors fractional ones.
func NormalizeQty(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(math.Floor(f))
}

// NormalizePrice clamps negative or non-finite prices to zero.
func NormalizePrice(f float64) decimal.Decimal {
	d := FromFloat(f)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp limits d to [lo, hi]. An empty range (hi < lo) yields lo.
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) || hi.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// ShortID keeps ids of up to 8 characters and abbreviates longer ones as
// first four, an ellipsis, last four.
func ShortID(id string) string {
	r := []rune(id)
	if len(r) <= 8 {
		return id
	}
	return string(r[:4]) + "…" + string(r[len(r)-4:])
}

// NullIfBlank trims s and returns nil when nothing is left.
func NullIfBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

package billing

import "github.com/shopspring/decimal"

// EstimateLine prices one order line from its desired price or, failing
// that, the item's sell price. ok is false when neither is known.
func EstimateLine(qty int64, desired, sell decimal.NullDecimal) (unit, total decimal.Decimal, ok bool) {
	switch {
	case desired.Valid:
		unit = desired.Decimal
	case sell.Valid:
		unit = sell.Decimal
	default:
		return decimal.Zero, decimal.Zero, false
	}
	return unit, unit.Mul(decimal.NewFromInt(qty)), true
}

// OrderEstimate is the informational total of an order; unpriced lines
// count as zero.
func OrderEstimate(totals []decimal.NullDecimal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		if t.Valid {
			sum = sum.Add(t.Decimal)
		}
	}
	return Round2(sum)
}

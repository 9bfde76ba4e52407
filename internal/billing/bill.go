package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DraftLine is a bill line as typed by the user, before clamping.
type DraftLine struct {
	ItemID    string  `json:"item_id"`
	Qty       float64 `json:"qty"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
}

// BillLine is the normalised line sent to the procurement procedures.
type BillLine struct {
	ItemID    string          `json:"item_id"`
	Qty       int64           `json:"qty"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

func (l BillLine) Subtotal() decimal.Decimal {
	return l.BuyPrice.Mul(decimal.NewFromInt(l.Qty))
}

type BillTotals struct {
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

func NormalizeLine(d DraftLine) BillLine {
	return BillLine{
		ItemID:    strings.TrimSpace(d.ItemID),
		Qty:       NormalizeQty(d.Qty),
		BuyPrice:  NormalizePrice(d.BuyPrice),
		SellPrice: NormalizePrice(d.SellPrice),
	}
}

func NormalizeLines(drafts []DraftLine) []BillLine {
	out := make([]BillLine, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, NormalizeLine(d))
	}
	return out
}

// Totals sums line subtotals and clamps paid into [0, total]. Remaining is
// never negative.
func Totals(lines []BillLine, paid float64) BillTotals {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	p := Clamp(FromFloat(paid), decimal.Zero, total)
	remaining := total.Sub(p)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return BillTotals{
		Total:     Round2(total),
		Paid:      Round2(p),
		Remaining: Round2(remaining),
	}
}

// ValidateBill checks a draft before it is submitted.
func ValidateBill(drafts []DraftLine) error {
	if len(drafts) == 0 {
		return NewValidationError("add at least one item to the bill")
	}
	for _, d := range drafts {
		if strings.TrimSpace(d.ItemID) == "" {
			return NewValidationError("every bill line needs an item")
		}
		if NormalizeQty(d.Qty) <= 0 {
			return NewValidationError("quantity must be greater than zero")
		}
		if FromFloat(d.BuyPrice).IsNegative() {
			return NewValidationError("buy price is not valid")
		}
	}
	return nil
}

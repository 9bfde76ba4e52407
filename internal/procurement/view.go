package procurement

import (
	"strings"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/models"

	"github.com/shopspring/decimal"
)

type BillLineView struct {
	ItemID    string          `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Qty       int64           `json:"qty"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type BillView struct {
	ID            string          `json:"id"`
	ShortID       string          `json:"short_id"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	Paid          decimal.Decimal `json:"paid"`
	Total         decimal.Decimal `json:"total"`
	Remaining     decimal.Decimal `json:"remaining"`
	Items         []BillLineView  `json:"items"`
}

const noName = "—"

func lineView(itemID, name string, qty int64, buy, sell decimal.Decimal) BillLineView {
	if strings.TrimSpace(name) == "" {
		name = noName
	}
	return BillLineView{
		ItemID:    itemID,
		ItemName:  name,
		Qty:       qty,
		BuyPrice:  buy,
		SellPrice: sell,
		Subtotal:  billing.Round2(buy.Mul(decimal.NewFromInt(qty))),
	}
}

func paymentOrCash(pm *string) string {
	if pm == nil || strings.TrimSpace(*pm) == "" {
		return string(models.PaymentCash)
	}
	return *pm
}

// rawBill accepts the field spellings returned by the different versions of
// last_bills.
type rawBill struct {
	ID             string              `json:"id"`
	CreatedAt      *string             `json:"created_at"`
	Date           *string             `json:"date"`
	PaymentMethod  *string             `json:"payment_method"`
	PaymentMethod2 *string             `json:"paymentMethod"`
	Paid           decimal.NullDecimal `json:"paid"`
	Total          decimal.NullDecimal `json:"total"`
	Remaining      decimal.NullDecimal `json:"remaining"`
	Items          []rawBillLine       `json:"items"`
	BillItems      []rawBillLine       `json:"bill_items"`
}

type rawBillLine struct {
	ItemID     *string             `json:"item_id"`
	ItemID2    *string             `json:"itemId"`
	ItemName   *string             `json:"item_name"`
	ItemName2  *string             `json:"itemName"`
	Name       *string             `json:"name"`
	Qty        decimal.NullDecimal `json:"qty"`
	BuyPrice   decimal.NullDecimal `json:"buy_price"`
	BuyPrice2  decimal.NullDecimal `json:"buyPrice"`
	SellPrice  decimal.NullDecimal `json:"sell_price"`
	SellPrice2 decimal.NullDecimal `json:"sellPrice"`
}

func firstString(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func firstDecimal(vals ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range vals {
		if v.Valid {
			return v.Decimal
		}
	}
	return decimal.Zero
}

func (r rawBill) view() BillView {
	pm := r.PaymentMethod
	if pm == nil || *pm == "" {
		pm = r.PaymentMethod2
	}
	v := BillView{
		ID:            r.ID,
		ShortID:       billing.ShortID(r.ID),
		Date:          firstString(r.CreatedAt, r.Date),
		PaymentMethod: paymentOrCash(pm),
		Paid:          firstDecimal(r.Paid),
		Total:         firstDecimal(r.Total),
		Remaining:     firstDecimal(r.Remaining),
		Items:         []BillLineView{},
	}
	if v.Date == "" {
		v.Date = time.Now().UTC().Format(time.RFC3339)
	}
	lines := r.Items
	if len(lines) == 0 {
		lines = r.BillItems
	}
	for _, l := range lines {
		v.Items = append(v.Items, lineView(
			firstString(l.ItemID, l.ItemID2),
			firstString(l.ItemName, l.ItemName2, l.Name),
			firstDecimal(l.Qty).IntPart(),
			firstDecimal(l.BuyPrice, l.BuyPrice2),
			firstDecimal(l.SellPrice, l.SellPrice2),
		))
	}
	return v
}

func modelView(b *models.Bill) BillView {
	v := BillView{
		ID:            b.ID,
		ShortID:       billing.ShortID(b.ID),
		Date:          b.CreatedAt.UTC().Format(time.RFC3339),
		PaymentMethod: paymentOrCash(b.PaymentMethod),
		Paid:          b.Paid,
		Total:         b.Total,
		Remaining:     b.Remaining,
		Items:         make([]BillLineView, 0, len(b.Items)),
	}
	for _, it := range b.Items {
		name := ""
		if it.Item != nil {
			name = it.Item.Name
		}
		v.Items = append(v.Items, lineView(it.ItemID, name, it.Qty, it.BuyPrice, it.SellPrice))
	}
	return v
}

// searchBills keeps bills whose id contains q, at most ten of them, as the
// bill search box does. Without q the first limit bills are returned.
func searchBills(bills []BillView, q string, limit int) []BillView {
	q = strings.TrimSpace(q)
	keep := limit
	if q != "" {
		keep = 10
	}
	out := make([]BillView, 0, min(len(bills), keep))
	for _, b := range bills {
		if len(out) == keep {
			break
		}
		if q == "" || strings.Contains(b.ID, q) {
			out = append(out, b)
		}
	}
	return out
}

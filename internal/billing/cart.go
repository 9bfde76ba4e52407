package billing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoSellPrice = NewValidationError("item has no sell price, set one on the inventory page")
	ErrEmptyCart   = NewValidationError("cart is empty")
	ErrNotInCart   = errors.New("item is not in the cart")
)

type CartLine struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Qty       int64           `json:"qty"`
}

// Cart holds sale lines keyed by item id, in the order items were first added.
// The zero value is an empty cart.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

func (c *Cart) index(itemID string) int {
	for i, l := range c.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Add puts qty more of an item into the cart, at least one, and refreshes
// the line's price and name.
func (c *Cart) Add(itemID, name string, sellPrice decimal.Decimal, qty int64) error {
	if !sellPrice.IsPositive() {
		return ErrNoSellPrice
	}
	if name == "" {
		name = "—"
	}
	if qty <= 0 {
		qty = 1
	}
	i := c.index(itemID)
	if i < 0 {
		c.Lines = append(c.Lines, CartLine{ItemID: itemID, Name: name, SellPrice: sellPrice, Qty: qty})
		return nil
	}
	c.Lines[i].Qty = max(1, c.Lines[i].Qty+qty)
	c.Lines[i].SellPrice = sellPrice
	c.Lines[i].Name = name
	return nil
}

// SetQty overwrites a line's quantity; anything below one becomes one.
func (c *Cart) SetQty(itemID string, qty int64) error {
	i := c.index(itemID)
	if i < 0 {
		return ErrNotInCart
	}
	c.Lines[i].Qty = max(1, qty)
	return nil
}

func (c *Cart) Remove(itemID string) {
	if i := c.index(itemID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

func (c *Cart) Clear() { c.Lines = nil }

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

// Count is the total number of units in the cart.
func (c *Cart) Count() int64 {
	var n int64
	for _, l := range c.Lines {
		n += l.Qty
	}
	return n
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.SellPrice.Mul(decimal.NewFromInt(l.Qty)))
	}
	return Round2(total)
}

// CartSummary is the JSON view of a cart.
type CartSummary struct {
	Lines []CartLine      `json:"lines"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func (c *Cart) Summary() CartSummary {
	lines := c.Lines
	if lines == nil {
		lines = []CartLine{}
	}
	return CartSummary{Lines: lines, Count: c.Count(), Total: c.Total()}
}

package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/events"
	"vienna-backend/internal/rpc"

	"github.com/shopspring/decimal"
)

type DraftLine struct {
	ItemID    string  `json:"item_id"`
	Qty       float64 `json:"qty"`
	SellPrice float64 `json:"sell_price"`
	Discount  float64 `json:"discount"`
}

type Line struct {
	ItemID    string          `json:"item_id"`
	Qty       int64           `json:"qty"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// Total is the line amount after discount, never negative.
func (l Line) Total() decimal.Decimal {
	t := l.SellPrice.Mul(decimal.NewFromInt(l.Qty)).Sub(l.Discount)
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}

type SaleRequest struct {
	CustomerID    string      `json:"customer_id"`
	PaymentMethod string      `json:"payment_method"`
	Paid          float64     `json:"paid"`
	Items         []DraftLine `json:"items"`
}

type prepared struct {
	customer      *string
	paymentMethod *string
	paid          decimal.Decimal
	itemsJSON     string
	total         decimal.Decimal
}

func prepare(req SaleRequest) (prepared, error) {
	if len(req.Items) == 0 {
		return prepared{}, billing.ErrEmptyCart
	}
	lines := make([]Line, 0, len(req.Items))
	total := decimal.Zero
	for _, d := range req.Items {
		l := Line{
			ItemID:    strings.TrimSpace(d.ItemID),
			Qty:       billing.NormalizeQty(d.Qty),
			SellPrice: billing.NormalizePrice(d.SellPrice),
			Discount:  billing.NormalizePrice(d.Discount),
		}
		if l.ItemID == "" || l.Qty <= 0 {
			return prepared{}, billing.NewValidationError("every sale line needs an item and a quantity above zero")
		}
		lines = append(lines, l)
		total = total.Add(l.Total())
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return prepared{}, fmt.Errorf("encode sale lines: %w", err)
	}
	return prepared{
		customer:      billing.NullIfBlank(req.CustomerID),
		paymentMethod: billing.NullIfBlank(req.PaymentMethod),
		paid:          billing.Round2(billing.NormalizePrice(req.Paid)),
		itemsJSON:     string(b),
		total:         billing.Round2(total),
	}, nil
}

type Service struct {
	caller *rpc.Caller
	events events.Publisher
}

func NewService(caller *rpc.Caller, pub events.Publisher) *Service {
	return &Service{caller: caller, events: pub}
}

type Result struct {
	ID    any             `json:"id"`
	Total decimal.Decimal `json:"total"`
	// SaleID is ID reduced to the sale's id, for audit rows and events.
	SaleID string `json:"-"`
}

func (s *Service) Create(ctx context.Context, req SaleRequest) (Result, error) {
	p, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	res, err := s.caller.Call(ctx, "create_sale", rpc.Variant{
		{Name: "customer", Value: p.customer},
		{Name: "payment_method", Value: p.paymentMethod},
		{Name: "paid_arg", Value: p.paid},
		{Name: "items_arg", Value: p.itemsJSON, Cast: "text"},
	})
	if err != nil {
		return Result{}, err
	}
	saleID := res.ID()
	events.Emit(ctx, s.events, events.New(events.SaleCreated, saleID, p.total))
	return Result{ID: res.Value(), Total: p.total, SaleID: saleID}, nil
}

func (s *Service) Update(ctx context.Context, saleID string, req SaleRequest) (Result, error) {
	p, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	res, err := s.caller.Call(ctx, "update_sale", rpc.Variant{
		{Name: "sale_uuid", Value: saleID},
		{Name: "new_customer", Value: p.customer},
		{Name: "new_payment_method", Value: p.paymentMethod},
		{Name: "new_paid", Value: p.paid},
		{Name: "new_items", Value: p.itemsJSON, Cast: "text"},
	})
	if err != nil {
		return Result{}, err
	}
	events.Emit(ctx, s.events, events.New(events.SaleUpdated, saleID, p.total))
	id := res.Value()
	if id == nil {
		id = saleID
	}
	return Result{ID: id, Total: p.total, SaleID: saleID}, nil
}

func (s *Service) Delete(ctx context.Context, saleID string) error {
	if _, err := s.caller.Call(ctx, "delete_sale", rpc.Variant{{Name: "sale_uuid", Value: saleID}}); err != nil {
		return err
	}
	events.Emit(ctx, s.events, events.New(events.SaleDeleted, saleID, nil))
	return nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	err := s.caller.Rows(ctx, "last_sales", &rows, rpc.Variant{{Name: "limit_rows", Value: limit}})
	return rows, err
}

package procurement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/database"
	"vienna-backend/internal/events"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/models"
	"vienna-backend/internal/rpc"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillRequest struct {
	PaymentMethod string              `json:"payment_method"`
	Paid          float64             `json:"paid"`
	Items         []billing.DraftLine `json:"items"`
}

// prepared is a validated request ready for the procurement procedures.
type prepared struct {
	paymentMethod *string
	paid          decimal.Decimal
	itemsJSON     string
	lines         []billing.BillLine
	totals        billing.BillTotals
}

func prepare(req BillRequest) (prepared, error) {
	if err := billing.ValidateBill(req.Items); err != nil {
		return prepared{}, err
	}
	lines := billing.NormalizeLines(req.Items)
	totals := billing.Totals(lines, req.Paid)
	b, err := json.Marshal(lines)
	if err != nil {
		return prepared{}, fmt.Errorf("encode bill lines: %w", err)
	}
	return prepared{
		paymentMethod: billing.NullIfBlank(req.PaymentMethod),
		paid:          totals.Paid,
		itemsJSON:     string(b),
		lines:         lines,
		totals:        totals,
	}, nil
}

func createVariants(p prepared) []rpc.Variant {
	return []rpc.Variant{
		{{Name: "payment_method", Value: p.paymentMethod}, {Name: "paid_arg", Value: p.paid}, {Name: "items_arg", Value: p.itemsJSON, Cast: "jsonb"}},
		{{Name: "payment_method", Value: p.paymentMethod}, {Name: "paid_arg", Value: p.paid}, {Name: "items_arg", Value: p.itemsJSON, Cast: "text"}},
		{{Name: "payment_method", Value: p.paymentMethod}, {Name: "paid", Value: p.paid}, {Name: "items", Value: p.itemsJSON, Cast: "jsonb"}},
		{{Name: "payment_method_arg", Value: p.paymentMethod}, {Name: "paid_arg", Value: p.paid}, {Name: "items_arg", Value: p.itemsJSON, Cast: "jsonb"}},
		{{Name: "payment_method_arg", Value: p.paymentMethod}, {Name: "paid", Value: p.paid}, {Name: "items", Value: p.itemsJSON, Cast: "jsonb"}},
	}
}

func updateVariants(billID string, p prepared) []rpc.Variant {
	return []rpc.Variant{
		{{Name: "bill_uuid", Value: billID}, {Name: "new_payment_method", Value: p.paymentMethod}, {Name: "new_paid", Value: p.paid}, {Name: "new_items", Value: p.itemsJSON, Cast: "jsonb"}},
		{{Name: "bill_uuid", Value: billID}, {Name: "new_payment_method", Value: p.paymentMethod}, {Name: "new_paid", Value: p.paid}, {Name: "new_items", Value: p.itemsJSON, Cast: "text"}},
		{{Name: "bill_id", Value: billID}, {Name: "new_payment_method", Value: p.paymentMethod}, {Name: "new_paid", Value: p.paid}, {Name: "new_items", Value: p.itemsJSON, Cast: "jsonb"}},
		{{Name: "bill_uuid", Value: billID}, {Name: "payment_method", Value: p.paymentMethod}, {Name: "paid_arg", Value: p.paid}, {Name: "items_arg", Value: p.itemsJSON, Cast: "jsonb"}},
		{{Name: "bill_uuid", Value: billID}, {Name: "payment_method", Value: p.paymentMethod}, {Name: "paid", Value: p.paid}, {Name: "items", Value: p.itemsJSON, Cast: "jsonb"}},
	}
}

// BillTable reads bills straight from the tables, used when last_bills is
// not installed and for bill detail.
type BillTable interface {
	Recent(ctx context.Context, limit int) ([]models.Bill, error)
	Get(ctx context.Context, id string) (*models.Bill, error)
}

type GormBills struct{}

func (GormBills) Recent(ctx context.Context, limit int) ([]models.Bill, error) {
	var bills []models.Bill
	err := database.DB.WithContext(ctx).
		Preload("Items").
		Preload("Items.Item", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Order("created_at DESC").
		Limit(limit).
		Find(&bills).Error
	return bills, err
}

func (GormBills) Get(ctx context.Context, id string) (*models.Bill, error) {
	var bill models.Bill
	err := database.DB.WithContext(ctx).
		Preload("Items").
		Preload("Items.Item", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		First(&bill, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

type Service struct {
	caller *rpc.Caller
	table  BillTable
	events events.Publisher
}

func NewService(caller *rpc.Caller, table BillTable, pub events.Publisher) *Service {
	return &Service{caller: caller, table: table, events: pub}
}

// Result is what create and update report back to the client.
type Result struct {
	ID     any                `json:"id"`
	Totals billing.BillTotals `json:"totals"`
	// BillID is ID reduced to the bill's id, for audit rows and events.
	BillID string `json:"-"`
}

func (s *Service) Create(ctx context.Context, req BillRequest) (Result, error) {
	p, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	res, err := s.caller.Call(ctx, "create_procurement", createVariants(p)...)
	if err != nil {
		return Result{}, err
	}
	billID := res.ID()
	events.Emit(ctx, s.events, events.New(events.ProcurementCreated, billID, p.totals))
	return Result{ID: res.Value(), Totals: p.totals, BillID: billID}, nil
}

func (s *Service) Update(ctx context.Context, billID string, req BillRequest) (Result, error) {
	billID = strings.TrimSpace(billID)
	p, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	res, err := s.caller.Call(ctx, "update_procurement", updateVariants(billID, p)...)
	if err != nil {
		return Result{}, err
	}
	events.Emit(ctx, s.events, events.New(events.ProcurementUpdated, billID, p.totals))
	v := res.Value()
	if v == nil {
		v = billID
	}
	return Result{ID: v, Totals: p.totals, BillID: billID}, nil
}

func (s *Service) Delete(ctx context.Context, billID string) error {
	if _, err := s.caller.Call(ctx, "delete_procurement", rpc.Variant{{Name: "bill_uuid", Value: billID}}); err != nil {
		return err
	}
	events.Emit(ctx, s.events, events.New(events.ProcurementDeleted, billID, nil))
	return nil
}

// Recent lists the newest bills through last_bills, falling back to the
// tables when the procedure fails.
func (s *Service) Recent(ctx context.Context, q string, limit int) ([]BillView, error) {
	var raw []rawBill
	err := s.caller.Rows(ctx, "last_bills", &raw, rpc.Variant{{Name: "limit_rows", Value: limit}})
	if err == nil {
		views := make([]BillView, 0, len(raw))
		for _, b := range raw {
			views = append(views, b.view())
		}
		return searchBills(views, q, limit), nil
	}
	logging.GetLogger().WithError(err).Warn("last_bills failed, reading bills from tables")

	bills, err := s.table.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]BillView, 0, len(bills))
	for i := range bills {
		views = append(views, modelView(&bills[i]))
	}
	return searchBills(views, q, limit), nil
}

func (s *Service) Detail(ctx context.Context, billID string) (BillView, error) {
	b, err := s.table.Get(ctx, billID)
	if err != nil {
		return BillView{}, err
	}
	return modelView(b), nil
}

type PreviewResponse struct {
	Lines  []billing.BillLine `json:"lines"`
	Totals billing.BillTotals `json:"totals"`
}

// Preview prices a draft without validating or saving it, so the form can
// show totals while it is being filled in.
func Preview(req BillRequest) PreviewResponse {
	lines := billing.NormalizeLines(req.Items)
	return PreviewResponse{Lines: lines, Totals: billing.Totals(lines, req.Paid)}
}

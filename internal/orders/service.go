package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/events"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/models"
	"vienna-backend/internal/rpc"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidStatus       = billing.NewValidationError("unknown order status")
	ErrDriverColumnMissing = errors.New("driver column missing, run the v2 migration")
	ErrReasonRequired      = billing.NewValidationError("a cancellation reason is required")
)

const fulfilLockTTL = 30 * time.Second

// Locker serialises work on a key. Release must be called once.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type LineInput struct {
	ItemID       string   `json:"item_id"`
	Name         string   `json:"name"`
	Qty          float64  `json:"qty"`
	DesiredPrice *float64 `json:"desired_price"`
}

type CreateRequest struct {
	CustomerID         *string     `json:"customer_id"`
	CustomerName       string      `json:"customer_name"`
	CustomerPhone      string      `json:"customer_phone"`
	CustomerPhoneExtra string      `json:"customer_phone_extra"`
	CustomerAddress    string      `json:"customer_address"`
	DriverName         string      `json:"driver_name"`
	Notes              string      `json:"notes"`
	Items              []LineInput `json:"items"`
}

type Service struct {
	caller *rpc.Caller
	table  Table
	locker Locker
	events events.Publisher
	now    func() time.Time
}

func NewService(caller *rpc.Caller, table Table, locker Locker, pub events.Publisher) *Service {
	return &Service{caller: caller, table: table, locker: locker, events: pub, now: time.Now}
}

// normalizeLines validates lines and merges repeats of the same item so the
// (order_id, item_id) upsert never touches a row twice.
func normalizeLines(in []LineInput) ([]LineInput, error) {
	out := make([]LineInput, 0, len(in))
	seen := map[string]int{}
	for _, l := range in {
		l.ItemID = strings.TrimSpace(l.ItemID)
		if l.ItemID == "" {
			return nil, billing.NewValidationError("every order line needs an item")
		}
		qty := billing.NormalizeQty(l.Qty)
		if qty <= 0 {
			return nil, billing.NewValidationError("quantity must be greater than zero")
		}
		l.Qty = float64(qty)
		if l.DesiredPrice != nil && *l.DesiredPrice < 0 {
			return nil, billing.NewValidationError("desired price is not valid")
		}
		if i, ok := seen[l.ItemID]; ok {
			out[i].Qty += l.Qty
			if l.DesiredPrice != nil {
				out[i].DesiredPrice = l.DesiredPrice
			}
			continue
		}
		seen[l.ItemID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func desired(l LineInput) decimal.NullDecimal {
	if l.DesiredPrice == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(billing.NormalizePrice(*l.DesiredPrice))
}

type rpcLine struct {
	ItemID       string              `json:"item_id"`
	Qty          int64               `json:"qty"`
	DesiredPrice decimal.NullDecimal `json:"desired_price"`
}

func rpcItems(lines []LineInput) (string, error) {
	payload := make([]rpcLine, 0, len(lines))
	for _, l := range lines {
		payload = append(payload, rpcLine{ItemID: l.ItemID, Qty: int64(l.Qty), DesiredPrice: desired(l)})
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode order lines: %w", err)
	}
	return string(b), nil
}

func (s *Service) legacyNotesJSON(req CreateRequest, lines []LineInput) (string, error) {
	ln := legacyNotes{
		Customer: legacyCustomer{
			Name:       billing.NullIfBlank(req.CustomerName),
			Phone:      billing.NullIfBlank(req.CustomerPhone),
			PhoneExtra: billing.NullIfBlank(req.CustomerPhoneExtra),
			Address:    billing.NullIfBlank(req.CustomerAddress),
		},
		Lines:           make([]legacyLine, 0, len(lines)),
		Note:            billing.NullIfBlank(req.Notes),
		CreatedAtClient: s.now().UTC().Format(time.RFC3339),
	}
	for _, l := range lines {
		ln.Lines = append(ln.Lines, legacyLine{
			ItemID:       l.ItemID,
			Name:         strings.TrimSpace(l.Name),
			Qty:          int64(l.Qty),
			DesiredPrice: desired(l).Decimal,
		})
	}
	b, err := json.Marshal(ln)
	if err != nil {
		return "", fmt.Errorf("encode legacy notes: %w", err)
	}
	return string(b), nil
}

// Create stores a new order and returns its id. The create_order procedure
// is preferred; without it the order is written to the tables directly.
func (s *Service) Create(ctx context.Context, req CreateRequest) (string, error) {
	lines, err := normalizeLines(req.Items)
	if err != nil {
		return "", err
	}
	itemsJSON, err := rpcItems(lines)
	if err != nil {
		return "", err
	}
	notes := billing.NullIfBlank(req.Notes)

	res, err := s.caller.Call(ctx, "create_order",
		rpc.Variant{{Name: "customer", Value: req.CustomerID}, {Name: "items_arg", Value: itemsJSON, Cast: "jsonb"}, {Name: "notes_arg", Value: notes}},
		rpc.Variant{{Name: "customer", Value: req.CustomerID}, {Name: "items_arg", Value: itemsJSON, Cast: "text"}, {Name: "notes_arg", Value: notes}},
	)
	var id string
	switch {
	case err == nil:
		id = res.ID()
		s.fillColumns(ctx, id, req)
	case errors.Is(err, rpc.ErrAllVariantsRejected):
		id, err = s.insert(ctx, req, lines)
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	events.Emit(ctx, s.events, events.New(events.OrderCreated, id, map[string]any{"lines": len(lines)}))
	return id, nil
}

func (s *Service) v2Columns(req CreateRequest) map[string]any {
	cols := map[string]any{}
	set := func(name, val string) {
		if p := billing.NullIfBlank(val); p != nil {
			cols[name] = *p
		}
	}
	set("customer_name", req.CustomerName)
	set("customer_phone", req.CustomerPhone)
	set("customer_phone_extra", req.CustomerPhoneExtra)
	set("customer_address", req.CustomerAddress)
	set("driver_name", req.DriverName)
	return cols
}

// fillColumns writes the customer and driver columns the procedure does not
// take. Older schemas without them are left alone.
func (s *Service) fillColumns(ctx context.Context, id string, req CreateRequest) {
	cols := s.v2Columns(req)
	if id == "" || len(cols) == 0 {
		return
	}
	if err := s.table.Update(ctx, id, cols); err != nil && !rpc.IsUndefinedColumn(err) {
		logging.LogError("orders", "fillColumns", "set customer columns", map[string]any{"order_id": id}, err)
	}
}

func (s *Service) insert(ctx context.Context, req CreateRequest, lines []LineInput) (string, error) {
	o := &models.Order{
		ID:                 uuid.NewString(),
		CustomerID:         req.CustomerID,
		Date:               s.now().UTC(),
		Status:             string(models.OrderStatusNew),
		Notes:              billing.NullIfBlank(req.Notes),
		CustomerName:       billing.NullIfBlank(req.CustomerName),
		CustomerPhone:      billing.NullIfBlank(req.CustomerPhone),
		CustomerPhoneExtra: billing.NullIfBlank(req.CustomerPhoneExtra),
		CustomerAddress:    billing.NullIfBlank(req.CustomerAddress),
		DriverName:         billing.NullIfBlank(req.DriverName),
	}
	err := s.table.Insert(ctx, o)
	if rpc.IsUndefinedColumn(err) {
		legacy, lerr := s.legacyNotesJSON(req, lines)
		if lerr != nil {
			return "", lerr
		}
		o.Notes = &legacy
		err = s.table.InsertLegacy(ctx, o)
	}
	if err != nil {
		return "", err
	}

	if len(lines) == 0 {
		return o.ID, nil
	}
	rows := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, models.OrderItem{OrderID: o.ID, ItemID: l.ItemID, Qty: int64(l.Qty), DesiredPrice: desired(l)})
	}
	if err := s.table.UpsertLines(ctx, rows); err != nil {
		// schemas without unique(order_id, item_id)
		if err := s.table.InsertLines(ctx, rows); err != nil {
			return "", err
		}
	}
	return o.ID, nil
}

// List returns the newest orders with estimated totals.
func (s *Service) List(ctx context.Context, limit int) ([]View, error) {
	list, err := s.table.List(ctx, limit)
	if rpc.IsUndefinedColumn(err) {
		list, err = s.table.ListLegacy(ctx, limit)
	}
	if err != nil {
		return nil, err
	}
	return toViews(list), nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := s.caller.Rows(ctx, "last_orders", &rows, rpc.Variant{{Name: "limit_rows", Value: limit}}); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}
	return rows, nil
}

// WithDriver lists orders that have a driver assigned.
func (s *Service) WithDriver(ctx context.Context) ([]View, error) {
	list, err := s.table.ListWithDriver(ctx)
	if rpc.IsUndefinedColumn(err) {
		return nil, ErrDriverColumnMissing
	}
	if err != nil {
		return nil, err
	}
	return toViews(list), nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status models.OrderStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if err := s.table.Update(ctx, id, map[string]any{"status": string(status)}); err != nil {
		return err
	}
	events.Emit(ctx, s.events, events.New(events.OrderStatusChanged, id, map[string]any{"status": status}))
	return nil
}

// SetDriver assigns a driver; a blank name clears it.
func (s *Service) SetDriver(ctx context.Context, id, driver string) error {
	var val any
	if p := billing.NullIfBlank(driver); p != nil {
		val = *p
	}
	err := s.table.Update(ctx, id, map[string]any{"driver_name": val})
	if rpc.IsUndefinedColumn(err) {
		return ErrDriverColumnMissing
	}
	return err
}

// Cancel marks the order cancelled and appends the reason to its notes.
func (s *Service) Cancel(ctx context.Context, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	o, err := s.table.Get(ctx, id)
	if err != nil {
		return err
	}
	line := "cancelled: " + reason
	notes, ok := appendLegacyNote(o.Notes, line)
	if !ok {
		notes = line
		if o.Notes != nil && strings.TrimSpace(*o.Notes) != "" {
			notes = *o.Notes + "\n" + line
		}
	}
	status := string(models.OrderStatusCancelled)
	if err := s.table.Update(ctx, id, map[string]any{"status": status, "notes": notes}); err != nil {
		return err
	}
	events.Emit(ctx, s.events, events.New(events.OrderStatusChanged, id, map[string]any{"status": status, "reason": reason}))
	return nil
}

// Fulfill runs fulfill_order, at most once at a time per order.
func (s *Service) Fulfill(ctx context.Context, id string, createSale bool) (any, error) {
	id = strings.TrimSpace(id)
	release, err := s.locker.Lock(ctx, "order:"+id, fulfilLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.caller.Call(ctx, "fulfill_order",
		rpc.Variant{{Name: "order_uuid", Value: id}, {Name: "create_sale_flag", Value: createSale}},
	)
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.New(events.OrderFulfilled, id, map[string]any{"create_sale": createSale}))
	v := res.Value()
	if v == nil {
		v = id
	}
	return v, nil
}

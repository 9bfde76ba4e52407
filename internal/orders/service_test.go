package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/cache"
	"vienna-backend/internal/events"
	"vienna-backend/internal/models"
	"vienna-backend/internal/rpc"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type reply struct {
	text string
	err  error
}

type fakeRunner struct {
	queries []string
	replies []reply
}

func (f *fakeRunner) QueryText(ctx context.Context, query string, params map[string]any) (string, bool, error) {
	f.queries = append(f.queries, query)
	if len(f.replies) == 0 {
		return "", false, errors.New("unexpected query")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err == nil, r.err
}

func undefinedFunction() error {
	return &pgconn.PgError{Code: "42883", Message: "function create_order does not exist"}
}

func undefinedColumn() error {
	return &pgconn.PgError{Code: "42703", Message: `column "customer_name" of relation "orders" does not exist`}
}

type fakeTable struct {
	insertErr  error
	upsertErr  error
	listErr    error
	updateErr  error
	inserted   []models.Order
	legacy     []models.Order
	upserted   []models.OrderItem
	plainLines []models.OrderItem
	orders     []models.Order
	updates    []map[string]any
}

func (f *fakeTable) Insert(ctx context.Context, o *models.Order) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *o)
	return nil
}

func (f *fakeTable) InsertLegacy(ctx context.Context, o *models.Order) error {
	f.legacy = append(f.legacy, *o)
	return nil
}

func (f *fakeTable) UpsertLines(ctx context.Context, lines []models.OrderItem) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, lines...)
	return nil
}

func (f *fakeTable) InsertLines(ctx context.Context, lines []models.OrderItem) error {
	f.plainLines = append(f.plainLines, lines...)
	return nil
}

func (f *fakeTable) List(ctx context.Context, limit int) ([]models.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.orders, nil
}

func (f *fakeTable) ListLegacy(ctx context.Context, limit int) ([]models.Order, error) {
	return f.orders, nil
}

func (f *fakeTable) ListWithDriver(ctx context.Context) ([]models.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Order
	for _, o := range f.orders {
		if o.DriverName != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeTable) Get(ctx context.Context, id string) (*models.Order, error) {
	for i := range f.orders {
		if f.orders[i].ID == id {
			return &f.orders[i], nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeTable) Update(ctx context.Context, id string, cols map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, cols)
	return nil
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.held {
		return nil, cache.ErrLockHeld
	}
	return func() { l.released++ }, nil
}

type recorder struct{ got []events.Event }

func (r *recorder) Publish(ctx context.Context, e events.Event) error {
	r.got = append(r.got, e)
	return nil
}

func newService(runner *fakeRunner, table *fakeTable, locker *fakeLocker, pub *recorder) *Service {
	s := NewService(rpc.NewCallerWithRunner(runner, time.Second), table, locker, pub)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return s
}

func price(f float64) *float64 { return &f }

func TestCreateUsesProcedure(t *testing.T) {
	runner := &fakeRunner{replies: []reply{{text: "ord-1"}}}
	table := &fakeTable{}
	pub := &recorder{}
	svc := newService(runner, table, &fakeLocker{}, pub)

	id, err := svc.Create(context.Background(), CreateRequest{
		CustomerName: "  Rami ",
		DriverName:   "Ali",
		Items:        []LineInput{{ItemID: "a", Qty: 2, DesiredPrice: price(5)}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "ord-1" {
		t.Fatalf("id = %q", id)
	}
	if !strings.Contains(runner.queries[0], "create_order(customer => @customer, items_arg => @items_arg::jsonb, notes_arg => @notes_arg)") {
		t.Fatalf("unexpected query %s", runner.queries[0])
	}
	if len(table.inserted) != 0 {
		t.Fatal("procedure path must not insert rows")
	}
	if len(table.updates) != 1 || table.updates[0]["customer_name"] != "Rami" || table.updates[0]["driver_name"] != "Ali" {
		t.Fatalf("customer columns not filled: %v", table.updates)
	}
	if len(pub.got) != 1 || pub.got[0].Type != events.OrderCreated {
		t.Fatalf("expected order.created, got %v", pub.got)
	}
}

func TestCreateFallsBackToLegacyInsert(t *testing.T) {
	runner := &fakeRunner{replies: []reply{{err: undefinedFunction()}, {err: undefinedFunction()}}}
	table := &fakeTable{insertErr: undefinedColumn(), upsertErr: errors.New("no unique constraint")}
	svc := newService(runner, table, &fakeLocker{}, &recorder{})

	id, err := svc.Create(context.Background(), CreateRequest{
		CustomerName:  "Rami",
		CustomerPhone: "0770",
		Notes:         "ring twice",
		Items: []LineInput{
			{ItemID: "a", Name: "Tea", Qty: 1, DesiredPrice: price(2)},
			{ItemID: "a", Name: "Tea", Qty: 2},
			{ItemID: "b", Name: "Sugar", Qty: 1.7},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(table.legacy) != 1 || table.legacy[0].ID != id {
		t.Fatalf("expected one legacy insert for %s, got %v", id, table.legacy)
	}

	var notes legacyNotes
	if err := json.Unmarshal([]byte(*table.legacy[0].Notes), &notes); err != nil {
		t.Fatalf("legacy notes are not json: %v", err)
	}
	if *notes.Customer.Name != "Rami" || *notes.Note != "ring twice" || notes.CreatedAtClient != "2026-03-04T10:00:00Z" {
		t.Fatalf("unexpected legacy notes %+v", notes)
	}
	if len(notes.Lines) != 2 || notes.Lines[0].Qty != 3 {
		t.Fatalf("repeated items should merge, got %+v", notes.Lines)
	}

	if len(table.plainLines) != 2 {
		t.Fatalf("expected plain insert fallback with 2 lines, got %d", len(table.plainLines))
	}
	if table.plainLines[1].Qty != 1 || table.plainLines[1].DesiredPrice.Valid {
		t.Fatalf("unexpected second line %+v", table.plainLines[1])
	}
}

func TestCreateRejectsBadLines(t *testing.T) {
	svc := newService(&fakeRunner{}, &fakeTable{}, &fakeLocker{}, &recorder{})
	cases := []struct {
		name  string
		lines []LineInput
	}{
		{"missing item", []LineInput{{Qty: 1}}},
		{"zero qty", []LineInput{{ItemID: "a", Qty: 0.4}}},
		{"negative price", []LineInput{{ItemID: "a", Qty: 1, DesiredPrice: price(-1)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), CreateRequest{Items: tc.lines})
			if !billing.IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestListFallsBackToLegacyAndEstimates(t *testing.T) {
	notes := `{"customer":{"name":"Huda","phone":"0771"},"lines":[],"note":"after 5pm"}`
	table := &fakeTable{
		listErr: undefinedColumn(),
		orders: []models.Order{{
			ID:    "o1",
			Notes: &notes,
			Items: []models.OrderItem{
				{ItemID: "a", Qty: 2, DesiredPrice: decimal.NewNullDecimal(decimal.RequireFromString("1.25")),
					Item: &models.Item{Name: "Tea"}},
				{ItemID: "b", Qty: 3, Item: &models.Item{Name: "Rice", SellPrice: decimal.NewNullDecimal(decimal.NewFromInt(4))}},
				{ItemID: "c", Qty: 1},
			},
		}},
	}
	svc := newService(&fakeRunner{}, table, &fakeLocker{}, &recorder{})

	list, err := svc.List(context.Background(), 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	v := list[0]
	if v.CustomerName == nil || *v.CustomerName != "Huda" || *v.Note != "after 5pm" {
		t.Fatalf("customer should come from legacy notes: %+v", v)
	}
	if !v.Total.Equal(decimal.RequireFromString("14.5")) {
		t.Fatalf("total = %s, want 14.5", v.Total)
	}
	if v.Lines[2].Name != "—" || v.Lines[2].Total.Valid {
		t.Fatalf("unpriced line should have no total: %+v", v.Lines[2])
	}
}

func TestViewPrefersColumnsOverLegacyNotes(t *testing.T) {
	notes := `{"customer":{"name":"Old"}}`
	name := "New"
	v := toView(models.Order{ID: "o", Notes: &notes, CustomerName: &name})
	if *v.CustomerName != "New" {
		t.Fatalf("customer_name = %s", *v.CustomerName)
	}
	plain := "just text"
	if v := toView(models.Order{Notes: &plain}); v.Note != nil || v.CustomerName != nil {
		t.Fatalf("plain notes must not be parsed: %+v", v)
	}
}

func TestSetStatusValidates(t *testing.T) {
	table := &fakeTable{}
	pub := &recorder{}
	svc := newService(&fakeRunner{}, table, &fakeLocker{}, pub)

	if err := svc.SetStatus(context.Background(), "o1", "shipped"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := svc.SetStatus(context.Background(), "o1", models.OrderStatusDelivered); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if table.updates[0]["status"] != string(models.OrderStatusDelivered) {
		t.Fatalf("unexpected update %v", table.updates)
	}
	if len(pub.got) != 1 || pub.got[0].Type != events.OrderStatusChanged {
		t.Fatalf("expected status event, got %v", pub.got)
	}
}

func TestSetDriver(t *testing.T) {
	table := &fakeTable{}
	svc := newService(&fakeRunner{}, table, &fakeLocker{}, &recorder{})
	if err := svc.SetDriver(context.Background(), "o1", "   "); err != nil {
		t.Fatalf("SetDriver: %v", err)
	}
	if v, ok := table.updates[0]["driver_name"]; !ok || v != nil {
		t.Fatalf("blank driver should clear the column, got %v", table.updates[0])
	}

	table.updateErr = undefinedColumn()
	if err := svc.SetDriver(context.Background(), "o1", "Ali"); !errors.Is(err, ErrDriverColumnMissing) {
		t.Fatalf("expected ErrDriverColumnMissing, got %v", err)
	}
}

func TestCancelAppendsReason(t *testing.T) {
	notes := "leave at door"
	table := &fakeTable{orders: []models.Order{{ID: "o1", Notes: &notes}}}
	svc := newService(&fakeRunner{}, table, &fakeLocker{}, &recorder{})

	if err := svc.Cancel(context.Background(), "o1", "  "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if err := svc.Cancel(context.Background(), "o1", " customer left "); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got := table.updates[0]
	if got["status"] != string(models.OrderStatusCancelled) || got["notes"] != "leave at door\ncancelled: customer left" {
		t.Fatalf("unexpected update %v", got)
	}
}

func TestCancelKeepsLegacyCustomer(t *testing.T) {
	notes := `{"customer":{"name":"Ali","phone":"0770","address":"Karrada"},"lines":[{"itemId":"i1","name":"Tea","qty":2,"desiredPrice":1.5}],"note":"ring twice","createdAtClient":"2024-03-01T10:00:00Z","source":"web"}`
	table := &fakeTable{orders: []models.Order{{ID: "o1", Notes: &notes}}}
	svc := newService(&fakeRunner{}, table, &fakeLocker{}, &recorder{})

	if err := svc.Cancel(context.Background(), "o1", "no answer"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	saved, ok := table.updates[0]["notes"].(string)
	if !ok {
		t.Fatalf("notes not saved as text: %v", table.updates[0])
	}
	v := toView(models.Order{ID: "o1", Notes: &saved})
	if v.CustomerName == nil || *v.CustomerName != "Ali" {
		t.Fatalf("customer lost after cancel: %v", v.CustomerName)
	}
	if v.CustomerAddress == nil || *v.CustomerAddress != "Karrada" {
		t.Fatalf("address lost after cancel: %v", v.CustomerAddress)
	}
	if v.Note == nil || *v.Note != "ring twice\ncancelled: no answer" {
		t.Fatalf("note = %v", v.Note)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(saved), &raw); err != nil {
		t.Fatalf("notes are no longer json: %v", err)
	}
	if raw["source"] != "web" {
		t.Fatalf("unknown keys should survive, got %v", raw)
	}
}

func TestFulfill(t *testing.T) {
	runner := &fakeRunner{replies: []reply{{text: ""}}}
	locker := &fakeLocker{}
	pub := &recorder{}
	svc := newService(runner, &fakeTable{}, locker, pub)

	res, err := svc.Fulfill(context.Background(), "o1", true)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if res != "o1" {
		t.Fatalf("void result should echo the order id, got %v", res)
	}
	if locker.released != 1 {
		t.Fatal("lock was not released")
	}
	if !strings.Contains(runner.queries[0], "fulfill_order(order_uuid => @order_uuid, create_sale_flag => @create_sale_flag)") {
		t.Fatalf("unexpected query %s", runner.queries[0])
	}
	if len(pub.got) != 1 || pub.got[0].Type != events.OrderFulfilled {
		t.Fatalf("expected fulfilled event, got %v", pub.got)
	}

	locker.held = true
	if _, err := svc.Fulfill(context.Background(), "o1", false); !errors.Is(err, cache.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	if len(runner.queries) != 1 {
		t.Fatal("no procedure call while the lock is held")
	}
}

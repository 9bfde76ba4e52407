package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"vienna-backend/internal/inventory"

	"github.com/shopspring/decimal"
)

func bill(t string, total string) BillAmount {
	ts, err := time.Parse(time.RFC3339, t)
	if err != nil {
		panic(err)
	}
	return BillAmount{CreatedAt: ts, Total: decimal.RequireFromString(total)}
}

func TestWindowStart(t *testing.T) {
	cases := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC), "2026-05-01"},
		{time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), "2025-10-01"},
		{time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "2026-01-01"},
	}
	for _, tc := range cases {
		if got := WindowStart(tc.now, 6).Format("2006-01-02"); got != tc.want {
			t.Errorf("WindowStart(%s) = %s, want %s", tc.now.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestMonthlyRevenue(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	points := MonthlyRevenue(now, 6, []BillAmount{
		bill("2025-09-01T00:00:00Z", "10"),
		bill("2025-12-31T23:59:59Z", "1.005"),
		bill("2025-12-01T08:00:00Z", "2"),
		bill("2026-02-09T10:00:00Z", "7.5"),
		bill("2024-02-09T10:00:00Z", "1000"),
	})

	want := []struct {
		month   string
		revenue string
	}{
		{"2025-09", "10"},
		{"2025-10", "0"},
		{"2025-11", "0"},
		{"2025-12", "3.01"},
		{"2026-01", "0"},
		{"2026-02", "7.5"},
	}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d", len(points), len(want))
	}
	for i, w := range want {
		if points[i].Month != w.month || !points[i].Revenue.Equal(decimal.RequireFromString(w.revenue)) {
			t.Errorf("point %d = %s %s, want %s %s", i, points[i].Month, points[i].Revenue, w.month, w.revenue)
		}
	}
}

type fakeSource struct {
	since  time.Time
	limit  int
	bills  []BillAmount
	err    error
	called int
}

func (f *fakeSource) CountItems(ctx context.Context) (int64, error) { return 12, nil }
func (f *fakeSource) CountBills(ctx context.Context) (int64, error) { return 40, f.err }

func (f *fakeSource) BillsSince(ctx context.Context, since time.Time, limit int) ([]BillAmount, error) {
	f.called++
	f.since, f.limit = since, limit
	return f.bills, nil
}

func (f *fakeSource) TopInventory(ctx context.Context, n int) ([]inventory.Row, error) {
	return []inventory.Row{{ItemID: "a", Quantity: 9}}, nil
}

func TestSummary(t *testing.T) {
	src := &fakeSource{bills: []BillAmount{
		bill("2026-10-01T09:00:00Z", "100.10"),
		bill("2026-06-15T09:00:00Z", "20"),
	}}
	svc := NewService(src, nil, time.Minute)
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	sum, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.ItemsCount != 12 || sum.BillsCount != 40 || len(sum.TopInventory) != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if !sum.Revenue.Equal(decimal.RequireFromString("120.1")) {
		t.Fatalf("revenue = %s", sum.Revenue)
	}
	if src.limit != 2000 || src.since.Format("2006-01-02") != "2026-05-01" {
		t.Fatalf("bills queried since %s limit %d", src.since, src.limit)
	}
	if len(sum.Monthly) != 6 || sum.Monthly[5].Month != "2026-10" {
		t.Fatalf("unexpected monthly points %+v", sum.Monthly)
	}
}

func TestSummaryPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeSource{err: boom}, nil, time.Minute)
	if _, err := svc.Summary(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

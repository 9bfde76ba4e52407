package dashboard

import (
	"context"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/cache"
	"vienna-backend/internal/database"
	"vienna-backend/internal/inventory"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const (
	revenueMonths = 6
	revenueBills  = 2000
	topItems      = 8
	cacheKey      = "dashboard:summary"
)

type BillAmount struct {
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
}

type MonthPoint struct {
	Month   string          `json:"month"` // YYYY-MM
	Revenue decimal.Decimal `json:"revenue"`
}

type Summary struct {
	ItemsCount   int64           `json:"items_count"`
	BillsCount   int64           `json:"bills_count"`
	Revenue      decimal.Decimal `json:"revenue"`
	Monthly      []MonthPoint    `json:"monthly"`
	TopInventory []inventory.Row `json:"top_inventory"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Source reads the figures the summary is built from.
type Source interface {
	CountItems(ctx context.Context) (int64, error)
	CountBills(ctx context.Context) (int64, error)
	BillsSince(ctx context.Context, since time.Time, limit int) ([]BillAmount, error)
	TopInventory(ctx context.Context, n int) ([]inventory.Row, error)
}

type GormSource struct{}

func (GormSource) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := database.DB.WithContext(ctx).Model(&models.Item{}).Count(&n).Error
	return n, err
}

func (GormSource) CountBills(ctx context.Context) (int64, error) {
	var n int64
	err := database.DB.WithContext(ctx).Model(&models.Bill{}).Count(&n).Error
	return n, err
}

func (GormSource) BillsSince(ctx context.Context, since time.Time, limit int) ([]BillAmount, error) {
	var out []BillAmount
	err := database.DB.WithContext(ctx).
		Model(&models.Bill{}).
		Select("created_at", "total").
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (GormSource) TopInventory(ctx context.Context, n int) ([]inventory.Row, error) {
	return inventory.Top(ctx, database.DB, n)
}

// WindowStart is the first day of the month n-1 months before now.
func WindowStart(now time.Time, n int) time.Time {
	return time.Date(now.Year(), now.Month()-time.Month(n-1), 1, 0, 0, 0, 0, now.Location())
}

// MonthlyRevenue buckets bill totals into the n calendar months ending with
// now's month. Empty months are zero and bills outside the window are ignored.
func MonthlyRevenue(now time.Time, n int, bills []BillAmount) []MonthPoint {
	start := WindowStart(now, n)
	points := make([]MonthPoint, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		points[i] = MonthPoint{Month: key, Revenue: decimal.Zero}
		index[key] = i
	}
	for _, b := range bills {
		if i, ok := index[b.CreatedAt.In(now.Location()).Format("2006-01")]; ok {
			points[i].Revenue = points[i].Revenue.Add(b.Total)
		}
	}
	for i := range points {
		points[i].Revenue = billing.Round2(points[i].Revenue)
	}
	return points
}

type Service struct {
	src   Source
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewService(src Source, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{src: src, cache: c, ttl: ttl, now: time.Now}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var cached Summary
	if hit, err := s.cache.GetObject(ctx, cacheKey, &cached); err != nil {
		logging.LogError("dashboard", "Summary", "read cache", nil, err)
	} else if hit {
		return &cached, nil
	}

	sum, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetObject(ctx, cacheKey, sum, s.ttl); err != nil {
		logging.LogError("dashboard", "Summary", "write cache", nil, err)
	}
	return sum, nil
}

func (s *Service) build(ctx context.Context) (*Summary, error) {
	now := s.now()
	items, err := s.src.CountItems(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := s.src.CountBills(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.src.BillsSince(ctx, WindowStart(now, revenueMonths), revenueBills)
	if err != nil {
		return nil, err
	}
	top, err := s.src.TopInventory(ctx, topItems)
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	for _, b := range recent {
		revenue = revenue.Add(b.Total)
	}
	if top == nil {
		top = []inventory.Row{}
	}
	return &Summary{
		ItemsCount:   items,
		BillsCount:   bills,
		Revenue:      billing.Round2(revenue),
		Monthly:      MonthlyRevenue(now, revenueMonths, recent),
		TopInventory: top,
		GeneratedAt:  now,
	}, nil
}

// GET /api/dashboard/summary
func SummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Summary(c.UserContext())
		if err != nil {
			logging.LogError("dashboard", "SummaryHandler", "build summary", nil, err)
			return fiber.NewError(fiber.StatusInternalServerError, "could not build the dashboard")
		}
		return c.JSON(sum)
	}
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/orders"
	"vienna-backend/internal/sales"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrUnknownItem = billing.NewValidationError("item not found")

const (
	// checkout holds the lock across a sale or order procedure call
	cartLockTTL  = 30 * time.Second
	cartLockWait = 3 * time.Second
)

// Locker serialises cart changes across instances. *cache.Cache implements
// it and is a no-op without Redis.
type Locker interface {
	LockWait(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}

// PriceLookup returns an item's name and current sell price.
type PriceLookup func(ctx context.Context, itemID string) (string, decimal.NullDecimal, error)

type SaleCreator interface {
	Create(ctx context.Context, req sales.SaleRequest) (sales.Result, error)
}

type OrderCreator interface {
	Create(ctx context.Context, req orders.CreateRequest) (string, error)
}

type Service struct {
	store  Store
	prices PriceLookup
	sales  SaleCreator
	orders OrderCreator
	locker Locker
	local  sync.Map // user id -> *sync.Mutex
}

// NewService builds the cart service. locker may be nil, in which case
// changes are only serialised within this process.
func NewService(store Store, prices PriceLookup, s SaleCreator, o OrderCreator, locker Locker) *Service {
	return &Service{store: store, prices: prices, sales: s, orders: o, locker: locker}
}

// lock serialises read-modify-write cycles on one user's cart.
func (s *Service) lock(ctx context.Context, userID uint) (func(), error) {
	m, _ := s.local.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	if s.locker == nil {
		return mu.Unlock, nil
	}
	release, err := s.locker.LockWait(ctx, cartKey(userID), cartLockTTL, cartLockWait)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		mu.Unlock()
	}, nil
}

// clearAfterCheckout empties the cart once the sale or order exists. A
// failure is logged only: the checkout itself succeeded.
func (s *Service) clearAfterCheckout(ctx context.Context, funcName string, userID uint, createdID string) {
	if err := s.store.Clear(ctx, userID); err != nil {
		logging.LogError("cart", funcName, fmt.Sprintf("clear cart of user %d after creating %s", userID, createdID), nil, err)
	}
}

func (s *Service) Get(ctx context.Context, userID uint) (billing.CartSummary, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return billing.CartSummary{}, err
	}
	return c.Summary(), nil
}

// update loads the cart, applies fn and saves the result, holding the
// user's cart lock throughout.
func (s *Service) update(ctx context.Context, userID uint, fn func(*billing.Cart) error) (billing.CartSummary, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return billing.CartSummary{}, err
	}
	defer release()

	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return billing.CartSummary{}, err
	}
	if err := fn(c); err != nil {
		return billing.CartSummary{}, err
	}
	if err := s.store.Save(ctx, userID, c); err != nil {
		return billing.CartSummary{}, err
	}
	return c.Summary(), nil
}

// Add prices the item from inventory and adds it to the cart.
func (s *Service) Add(ctx context.Context, userID uint, itemID string, qty int64) (billing.CartSummary, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return billing.CartSummary{}, billing.NewValidationError("item_id is required")
	}
	name, price, err := s.prices(ctx, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.CartSummary{}, ErrUnknownItem
	}
	if err != nil {
		return billing.CartSummary{}, err
	}
	if !price.Valid {
		return billing.CartSummary{}, billing.ErrNoSellPrice
	}
	return s.update(ctx, userID, func(c *billing.Cart) error {
		return c.Add(itemID, name, price.Decimal, qty)
	})
}

func (s *Service) SetQty(ctx context.Context, userID uint, itemID string, qty int64) (billing.CartSummary, error) {
	return s.update(ctx, userID, func(c *billing.Cart) error { return c.SetQty(itemID, qty) })
}

func (s *Service) Remove(ctx context.Context, userID uint, itemID string) (billing.CartSummary, error) {
	return s.update(ctx, userID, func(c *billing.Cart) error {
		c.Remove(itemID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID uint) error {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return s.store.Clear(ctx, userID)
}

type SaleCheckout struct {
	CustomerID    string  `json:"customer_id"`
	PaymentMethod string  `json:"payment_method"`
	Paid          float64 `json:"paid"`
}

// CheckoutSale records the cart as a sale and empties it.
func (s *Service) CheckoutSale(ctx context.Context, userID uint, req SaleCheckout) (sales.Result, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return sales.Result{}, err
	}
	defer release()

	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return sales.Result{}, err
	}
	if c.Empty() {
		return sales.Result{}, billing.ErrEmptyCart
	}
	items := make([]sales.DraftLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, sales.DraftLine{ItemID: l.ItemID, Qty: float64(l.Qty), SellPrice: l.SellPrice.InexactFloat64()})
	}
	res, err := s.sales.Create(ctx, sales.SaleRequest{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Paid:          req.Paid,
		Items:         items,
	})
	if err != nil {
		return sales.Result{}, err
	}
	s.clearAfterCheckout(ctx, "CheckoutSale", userID, "sale "+res.SaleID)
	return res, nil
}

// CheckoutOrder turns the cart into an order at the cart prices and empties it.
// Any items already on req are replaced.
func (s *Service) CheckoutOrder(ctx context.Context, userID uint, req orders.CreateRequest) (string, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return "", err
	}
	defer release()

	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if c.Empty() {
		return "", billing.ErrEmptyCart
	}
	req.Items = make([]orders.LineInput, 0, len(c.Lines))
	for _, l := range c.Lines {
		price := l.SellPrice.InexactFloat64()
		req.Items = append(req.Items, orders.LineInput{ItemID: l.ItemID, Name: l.Name, Qty: float64(l.Qty), DesiredPrice: &price})
	}
	id, err := s.orders.Create(ctx, req)
	if err != nil {
		return "", err
	}
	s.clearAfterCheckout(ctx, "CheckoutOrder", userID, "order "+id)
	return id, nil
}

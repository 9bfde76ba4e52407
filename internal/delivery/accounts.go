package delivery

import (
	"sort"
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/models"
	"vienna-backend/internal/orders"

	"github.com/shopspring/decimal"
)

// Account is what one driver holds and has handed over.
type Account struct {
	Driver  string          `json:"driver"`
	Counts  map[string]int  `json:"counts"`
	Pending decimal.Decimal `json:"pending"`
	Settled decimal.Decimal `json:"settled"`
	Orders  []orders.View   `json:"orders"`
}

func pending(status string) bool {
	switch models.OrderStatus(status) {
	case models.OrderStatusWithDriver, models.OrderStatusDelivered, models.OrderStatusAwaitingSettlement:
		return true
	}
	return false
}

// Summarize groups orders by driver, sorted by driver name.
func Summarize(list []orders.View) []Account {
	byDriver := map[string]*Account{}
	for _, o := range list {
		if o.DriverName == nil {
			continue
		}
		name := strings.TrimSpace(*o.DriverName)
		if name == "" {
			continue
		}
		acc, ok := byDriver[name]
		if !ok {
			acc = &Account{Driver: name, Counts: map[string]int{}, Pending: decimal.Zero, Settled: decimal.Zero}
			byDriver[name] = acc
		}
		acc.Counts[o.Status]++
		acc.Orders = append(acc.Orders, o)
		switch {
		case pending(o.Status):
			acc.Pending = acc.Pending.Add(o.Total)
		case models.OrderStatus(o.Status) == models.OrderStatusSettled:
			acc.Settled = acc.Settled.Add(o.Total)
		}
	}

	out := make([]Account, 0, len(byDriver))
	for _, acc := range byDriver {
		acc.Pending = billing.Round2(acc.Pending)
		acc.Settled = billing.Round2(acc.Settled)
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Driver < out[j].Driver })
	return out
}

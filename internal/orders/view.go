package orders

import (
	"encoding/json"
	"strings"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/models"

	"github.com/shopspring/decimal"
)

// legacyCustomer and legacyNotes are the JSON shape older clients stored in
// orders.notes before the customer columns existed.
type legacyCustomer struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	PhoneExtra *string `json:"phoneExtra"`
	Address    *string `json:"address"`
}

type legacyLine struct {
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	Qty          int64           `json:"qty"`
	DesiredPrice decimal.Decimal `json:"desiredPrice"`
}

type legacyNotes struct {
	Customer        legacyCustomer `json:"customer"`
	Lines           []legacyLine   `json:"lines"`
	Note            *string        `json:"note"`
	Notes           *string        `json:"notes,omitempty"`
	CreatedAtClient string         `json:"createdAtClient"`
}

// parseLegacyNotes returns nil when notes is not a JSON object.
func parseLegacyNotes(notes *string) *legacyNotes {
	if notes == nil || !strings.HasPrefix(strings.TrimSpace(*notes), "{") {
		return nil
	}
	var ln legacyNotes
	if err := json.Unmarshal([]byte(*notes), &ln); err != nil {
		return nil
	}
	return &ln
}

// appendLegacyNote adds line to the note of a legacy notes object and
// re-encodes it, keeping every other key as stored. ok is false when notes
// is not a legacy object.
func appendLegacyNote(notes *string, line string) (string, bool) {
	legacy := parseLegacyNotes(notes)
	if legacy == nil {
		return "", false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*notes), &raw); err != nil {
		return "", false
	}
	note := line
	if prev := firstSet(legacy.Note, legacy.Notes); prev != nil {
		note = *prev + "\n" + line
	}
	enc, err := json.Marshal(note)
	if err != nil {
		return "", false
	}
	raw["note"] = enc
	out, err := json.Marshal(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

type LineView struct {
	ItemID string              `json:"item_id"`
	Name   string              `json:"name"`
	Qty    int64               `json:"qty"`
	Unit   decimal.NullDecimal `json:"unit"`
	Total  decimal.NullDecimal `json:"total"`
}

type View struct {
	ID                 string          `json:"id"`
	CustomerID         *string         `json:"customer_id"`
	Date               time.Time       `json:"date"`
	Status             string          `json:"status"`
	Notes              *string         `json:"notes"`
	Note               *string         `json:"note"`
	CustomerName       *string         `json:"customer_name"`
	CustomerPhone      *string         `json:"customer_phone"`
	CustomerPhoneExtra *string         `json:"customer_phone_extra"`
	CustomerAddress    *string         `json:"customer_address"`
	DriverName         *string         `json:"driver_name"`
	Lines              []LineView      `json:"lines"`
	Total              decimal.Decimal `json:"total"`
	CreatedAt          time.Time       `json:"created_at"`
}

func firstSet(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}

func toView(o models.Order) View {
	v := View{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Date:       o.Date,
		Status:     o.Status,
		Notes:      o.Notes,
		DriverName: firstSet(o.DriverName),
		CreatedAt:  o.CreatedAt,
		Lines:      make([]LineView, 0, len(o.Items)),
	}
	legacy := parseLegacyNotes(o.Notes)
	var lc legacyCustomer
	if legacy != nil {
		lc = legacy.Customer
		v.Note = firstSet(legacy.Note, legacy.Notes)
	}
	v.CustomerName = firstSet(o.CustomerName, lc.Name)
	v.CustomerPhone = firstSet(o.CustomerPhone, lc.Phone)
	v.CustomerPhoneExtra = firstSet(o.CustomerPhoneExtra, lc.PhoneExtra)
	v.CustomerAddress = firstSet(o.CustomerAddress, lc.Address)

	totals := make([]decimal.NullDecimal, 0, len(o.Items))
	for _, it := range o.Items {
		lv := LineView{ItemID: it.ItemID, Name: "—", Qty: it.Qty}
		var sell decimal.NullDecimal
		if it.Item != nil {
			if it.Item.Name != "" {
				lv.Name = it.Item.Name
			}
			sell = it.Item.SellPrice
		}
		if unit, total, ok := billing.EstimateLine(it.Qty, it.DesiredPrice, sell); ok {
			lv.Unit = decimal.NewNullDecimal(unit)
			lv.Total = decimal.NewNullDecimal(total)
		}
		totals = append(totals, lv.Total)
		v.Lines = append(v.Lines, lv)
	}
	v.Total = billing.OrderEstimate(totals)
	return v
}

func toViews(list []models.Order) []View {
	out := make([]View, 0, len(list))
	for _, o := range list {
		out = append(out, toView(o))
	}
	return out
}

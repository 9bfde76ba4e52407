package inventory

import (
	"context"
	"math"
	"sort"
	"strings"

	"vienna-backend/internal/httpx"
	"vienna-backend/internal/rpc"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemSummary is the item part of an inventory row.
type ItemSummary struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  *string             `json:"description"`
	ImageURL     *string             `json:"image_url"`
	QRCode       *string             `json:"qrcode"`
	SellPrice    decimal.NullDecimal `json:"sell_price"`
	LastBuyPrice decimal.NullDecimal `json:"last_buy_price"`
}

type Row struct {
	ItemID   string       `json:"item_id"`
	Quantity int64        `json:"quantity"`
	Item     *ItemSummary `json:"item"`
}

type flatRow struct {
	ItemID       string
	Quantity     int64
	RefID        *string
	Name         *string
	Description  *string
	ImageURL     *string
	QRCode       *string
	SellPrice    decimal.NullDecimal
	LastBuyPrice decimal.NullDecimal
}

func (f flatRow) row() Row {
	r := Row{ItemID: f.ItemID, Quantity: f.Quantity}
	if f.RefID != nil {
		r.Item = &ItemSummary{
			ID:           *f.RefID,
			Description:  f.Description,
			ImageURL:     f.ImageURL,
			QRCode:       f.QRCode,
			SellPrice:    f.SellPrice,
			LastBuyPrice: f.LastBuyPrice,
		}
		if f.Name != nil {
			r.Item.Name = *f.Name
		}
	}
	return r
}

const selectWithImage = `SELECT inv.item_id, inv.quantity, i.id AS ref_id, i.name, i.description,
	i.image_url, i.qrcode, i.sell_price, i.last_buy_price
	FROM inventory inv LEFT JOIN items i ON i.id = inv.item_id`

// Older item tables have no image_url column.
const selectWithoutImage = `SELECT inv.item_id, inv.quantity, i.id AS ref_id, i.name, i.description,
	NULL::text AS image_url, i.qrcode, i.sell_price, i.last_buy_price
	FROM inventory inv LEFT JOIN items i ON i.id = inv.item_id`

func query(ctx context.Context, db *gorm.DB, suffix string, args ...any) ([]Row, error) {
	var flat []flatRow
	err := db.WithContext(ctx).Raw(selectWithImage+suffix, args...).Scan(&flat).Error
	if rpc.IsUndefinedColumn(err) {
		flat = nil
		err = db.WithContext(ctx).Raw(selectWithoutImage+suffix, args...).Scan(&flat).Error
	}
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(flat))
	for _, f := range flat {
		rows = append(rows, f.row())
	}
	return rows, nil
}

// List returns every inventory row with its item, filtered by q over item
// name, description and qrcode.
func List(ctx context.Context, db *gorm.DB, q string) ([]Row, error) {
	rows, err := query(ctx, db, " ORDER BY i.name")
	if err != nil {
		return nil, err
	}
	return Filter(rows, q), nil
}

func Filter(rows []Row, q string) []Row {
	if strings.TrimSpace(q) == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Item != nil && httpx.MatchQuery(q, &r.Item.Name, r.Item.Description, r.Item.QRCode) {
			out = append(out, r)
		}
	}
	return out
}

// Top returns the limit rows with the highest quantity.
func Top(ctx context.Context, db *gorm.DB, limit int) ([]Row, error) {
	return query(ctx, db, " ORDER BY inv.quantity DESC LIMIT ?", limit)
}

// TopN sorts rows by quantity, highest first, and keeps n. Ties keep their
// original order.
func TopN(rows []Row, n int) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ClampQuantity floors a counted quantity and keeps it at zero or above.
func ClampQuantity(q float64) int64 {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return 0
	}
	return int64(math.Floor(q))
}

// SetQuantity writes a stock count for an item, creating the row if needed.
func SetQuantity(ctx context.Context, db *gorm.DB, itemID string, qty int64) error {
	row := map[string]any{"item_id": itemID, "quantity": qty}
	return db.WithContext(ctx).Table("inventory").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(row).Error
}

// SellPrice returns the current sell price and name of an item.
func SellPrice(ctx context.Context, db *gorm.DB, itemID string) (string, decimal.NullDecimal, error) {
	var r struct {
		Name      string
		SellPrice decimal.NullDecimal
	}
	err := db.WithContext(ctx).Table("items").Select("name, sell_price").Where("id = ?", itemID).Take(&r).Error
	return r.Name, r.SellPrice, err
}

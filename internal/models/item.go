package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The hosted API and the old front-end exchange money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Item struct {
	ID           string              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string              `gorm:"not null" json:"name"`
	Description  *string             `json:"description"`
	ImageURL     *string             `gorm:"column:image_url" json:"image_url"`
	ThumbnailURL *string             `gorm:"column:thumbnail_url" json:"thumbnail_url"`
	QRCode       *string             `gorm:"column:qrcode" json:"qrcode"`
	SellPrice    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"sell_price"`
	LastBuyPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"last_buy_price"`
	CreatedAt    time.Time           `json:"created_at"`
}

// InventoryRow is the on-hand quantity of one item.
type InventoryRow struct {
	ItemID   string `gorm:"type:uuid;primaryKey" json:"item_id"`
	Quantity int64  `gorm:"not null;default:0" json:"quantity"`
	Item     *Item  `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

func (InventoryRow) TableName() string { return "inventory" }

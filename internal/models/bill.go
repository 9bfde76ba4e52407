package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Bill is a procurement bill: stock bought from a supplier.
type Bill struct {
	ID            string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PaymentMethod *string         `json:"payment_method"`
	Paid          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"paid"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	Remaining     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"remaining"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []BillItem      `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE" json:"bill_items,omitempty"`
}

type BillItem struct {
	ID        string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BillID    string          `gorm:"type:uuid;index;not null" json:"bill_id"`
	ItemID    string          `gorm:"type:uuid;index;not null" json:"item_id"`
	Qty       int64           `gorm:"not null" json:"qty"`
	BuyPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"buy_price"`
	SellPrice decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"sell_price"`
	Item      *Item           `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

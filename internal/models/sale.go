package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID            string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CustomerID    *string         `gorm:"type:uuid;index" json:"customer_id"`
	PaymentMethod *string         `json:"payment_method"`
	Paid          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"paid"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	Remaining     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"remaining"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"sale_items,omitempty"`
}

type SaleItem struct {
	ID        string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SaleID    string          `gorm:"type:uuid;index;not null" json:"sale_id"`
	ItemID    string          `gorm:"type:uuid;index;not null" json:"item_id"`
	Qty       int64           `gorm:"not null" json:"qty"`
	SellPrice decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"sell_price"`
	Discount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
}

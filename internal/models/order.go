package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Status values are stored verbatim by the hosted schema.
const (
	OrderStatusNew                OrderStatus = "جديد"
	OrderStatusWithDriver         OrderStatus = "مع المندوب"
	OrderStatusDelivered          OrderStatus = "تمت التوصيل"
	OrderStatusAwaitingSettlement OrderStatus = "في انتظار التسوية"
	OrderStatusSettled            OrderStatus = "تمت التسوية"
	OrderStatusCancelled          OrderStatus = "ملغي"
)

var OrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusWithDriver,
	OrderStatusDelivered,
	OrderStatusAwaitingSettlement,
	OrderStatusSettled,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Order columns from customer_name down to driver_name were added by the v2
// schema migration and may be absent on older databases.
type Order struct {
	ID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CustomerID *string   `gorm:"type:uuid;index" json:"customer_id"`
	Date       time.Time `gorm:"index" json:"date"`
	Status     string    `gorm:"size:40" json:"status"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`

	CustomerName       *string `json:"customer_name"`
	CustomerPhone      *string `json:"customer_phone"`
	CustomerPhoneExtra *string `json:"customer_phone_extra"`
	CustomerAddress    *string `json:"customer_address"`
	DriverName         *string `json:"driver_name"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"`
}

type OrderItem struct {
	OrderID      string              `gorm:"type:uuid;primaryKey" json:"order_id"`
	ItemID       string              `gorm:"type:uuid;primaryKey" json:"item_id"`
	Qty          int64               `gorm:"not null" json:"qty"`
	DesiredPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"desired_price"`
	Item         *Item               `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

package models

import "time"

type Customer struct {
	ID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name       *string   `json:"name"`
	Phone      *string   `gorm:"index" json:"phone"`
	PhoneExtra *string   `gorm:"column:phone_extra" json:"phone_extra"`
	Address    *string   `json:"address"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

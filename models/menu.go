package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Menu is the authoritative price source for order items.
type Menu struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RestaurantID string          `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Available    bool            `gorm:"not null" json:"available"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

package models

import "time"

// PaymentConfig holds provider credentials. BranchID NULL means restaurant-wide.
type PaymentConfig struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RestaurantID  string    `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	BranchID      *string   `gorm:"type:varchar(64);index" json:"branch_id,omitempty"`
	Provider      string    `gorm:"type:varchar(32);not null;default:'mercadopago'" json:"provider"`
	AccessToken   string    `gorm:"type:varchar(255);not null" json:"-"`
	PublicKey     string    `gorm:"type:varchar(255)" json:"public_key,omitempty"`
	WebhookSecret string    `gorm:"type:varchar(255)" json:"-"`
	Enabled       bool      `gorm:"not null" json:"enabled"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

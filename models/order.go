package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID                 string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	RestaurantID       string          `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	BranchID           string          `gorm:"type:varchar(64);not null;index:idx_order_table,priority:1" json:"branch_id"`
	MesaID             string          `gorm:"type:varchar(64);not null;index:idx_order_table,priority:2" json:"mesa_id"`
	Status             OrderStatus     `gorm:"type:varchar(32);not null;default:'PAYMENT_PENDING'" json:"status"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	PaymentMethod      *PaymentMethod  `gorm:"type:varchar(16)" json:"payment_method,omitempty"`
	PaymentStatus      string          `gorm:"type:varchar(16);not null;default:'pending'" json:"payment_status"`
	PaymentID          *string         `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	PrebillPrintedAt   *time.Time      `json:"prebill_printed_at,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CancellationReason *string         `gorm:"type:text" json:"cancellation_reason,omitempty"`
	Items              []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt          time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// ComputeTotal menghitung total dari semua item
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

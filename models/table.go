package models

import "time"

// TableSession adalah satu meja fisik beserta token QR yang sedang aktif.
type TableSession struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	MesaID         string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_mesa_branch,priority:1" json:"mesa_id"`
	BranchID       string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_mesa_branch,priority:2" json:"branch_id"`
	RestaurantID   string     `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Label          string     `gorm:"type:varchar(100)" json:"label"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	Token          string     `gorm:"type:varchar(128)" json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (TableSession) TableName() string {
	return "mesas"
}

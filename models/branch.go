package models

import "time"

type Branch struct {
	ID           string `gorm:"type:varchar(64);primaryKey" json:"id"`
	RestaurantID string `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Name         string `gorm:"type:varchar(255)" json:"name"`
	// MPConfigSourceBranchID points at another branch whose provider credentials this branch reuses.
	MPConfigSourceBranchID *string   `gorm:"type:varchar(64)" json:"mp_config_source_branch_id,omitempty"`
	CreatedAt              time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time `gorm:"not null" json:"updated_at"`
}

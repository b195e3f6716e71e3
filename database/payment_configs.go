package database

import (
	"context"

	"github.com/yeremiapane/mesa-qr-orders/models"
	"gorm.io/gorm"
)

type PaymentConfigs struct {
	DB *gorm.DB
}

func NewPaymentConfigs(db *gorm.DB) *PaymentConfigs {
	return &PaymentConfigs{DB: db}
}

func (s *PaymentConfigs) BranchConfigSource(ctx context.Context, branchID string) (*string, error) {
	var branch models.Branch
	if err := s.DB.WithContext(ctx).First(&branch, "id = ?", branchID).Error; err != nil {
		return nil, notFound(err, "branch "+branchID)
	}
	return branch.MPConfigSourceBranchID, nil
}

func (s *PaymentConfigs) FindConfig(ctx context.Context, restaurantID string, branchID *string) (*models.PaymentConfig, error) {
	q := s.DB.WithContext(ctx).
		Where("restaurant_id = ? AND provider = ? AND enabled = ?", restaurantID, "mercadopago", true)
	if branchID == nil {
		q = q.Where("branch_id IS NULL")
	} else {
		q = q.Where("branch_id = ?", *branchID)
	}
	var cfg models.PaymentConfig
	if err := q.Order("id DESC").First(&cfg).Error; err != nil {
		return nil, notFound(err, "payment config")
	}
	return &cfg, nil
}

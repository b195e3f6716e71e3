package database

import (
	"context"
	"time"

	"github.com/yeremiapane/mesa-qr-orders/models"
	"gorm.io/gorm"
)

type TableSessions struct {
	DB *gorm.DB
}

func NewTableSessions(db *gorm.DB) *TableSessions {
	return &TableSessions{DB: db}
}

func (s *TableSessions) Find(ctx context.Context, mesaID, branchID string) (*models.TableSession, error) {
	var row models.TableSession
	err := s.DB.WithContext(ctx).
		Where("mesa_id = ? AND branch_id = ?", mesaID, branchID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "mesa")
	}
	return &row, nil
}

func (s *TableSessions) UpdateToken(ctx context.Context, mesaID, branchID, token string, expiresAt time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.TableSession{}).
		Where("mesa_id = ? AND branch_id = ?", mesaID, branchID).
		Updates(map[string]interface{}{
			"token":            token,
			"token_expires_at": expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *TableSessions) ExpireToken(ctx context.Context, mesaID, branchID, token string, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.TableSession{}).
		Where("mesa_id = ? AND branch_id = ? AND token = ? AND token_expires_at <= ?", mesaID, branchID, token, at).
		Update("token_expires_at", at).Error
}

// ExpireStale menandai token yang sudah lewat masa berlakunya; kembalikan jumlah baris.
func (s *TableSessions) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.TableSession{}).
		Where("token <> '' AND token_expires_at IS NOT NULL AND token_expires_at < ?", now).
		Updates(map[string]interface{}{
			"token":            "",
			"token_expires_at": now,
		})
	return res.RowsAffected, res.Error
}

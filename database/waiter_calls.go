package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"gorm.io/gorm"
)

// WaiterCalls keeps at most one PENDING call per table through the unique pending_key column.
type WaiterCalls struct {
	DB *gorm.DB
}

func NewWaiterCalls(db *gorm.DB) *WaiterCalls {
	return &WaiterCalls{DB: db}
}

func (s *WaiterCalls) FindPending(ctx context.Context, mesaID, branchID string) (*models.WaiterCall, error) {
	var call models.WaiterCall
	err := s.DB.WithContext(ctx).
		Where("mesa_id = ? AND branch_id = ? AND status = ?", mesaID, branchID, models.WaiterCallPending).
		First(&call).Error
	if err != nil {
		return nil, notFound(err, "pending waiter call")
	}
	return &call, nil
}

func (s *WaiterCalls) Insert(ctx context.Context, call *models.WaiterCall) error {
	if call.Status == "" {
		call.Status = models.WaiterCallPending
	}
	if call.Status == models.WaiterCallPending {
		key := models.TableKey(call.MesaID, call.BranchID)
		call.PendingKey = &key
	}
	if err := s.DB.WithContext(ctx).Create(call).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return services.ErrPendingExists
		}
		return fmt.Errorf("insert waiter call: %w", err)
	}
	return nil
}

func (s *WaiterCalls) Get(ctx context.Context, id string) (*models.WaiterCall, error) {
	var call models.WaiterCall
	if err := s.DB.WithContext(ctx).First(&call, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "waiter call "+id)
	}
	return &call, nil
}

func (s *WaiterCalls) CompareAndSetStatus(ctx context.Context, id string, from, to models.WaiterCallStatus) (bool, error) {
	cols := map[string]interface{}{"status": to}
	if to.Terminal() {
		cols["pending_key"] = gorm.Expr("NULL")
	}
	res := s.DB.WithContext(ctx).Model(&models.WaiterCall{}).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("update waiter call: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *WaiterCalls) List(ctx context.Context, filter services.WaiterCallFilter) ([]models.WaiterCall, error) {
	q := s.DB.WithContext(ctx).Model(&models.WaiterCall{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.BranchID != "" {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.MesaID != "" {
		q = q.Where("mesa_id = ?", filter.MesaID)
	}
	var calls []models.WaiterCall
	err := q.Order("created_at DESC").Find(&calls).Error
	return calls, err
}

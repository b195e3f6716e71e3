package database

import (
	"context"
	"fmt"
	"time"

	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Orders struct {
	DB *gorm.DB
}

func NewOrders(db *gorm.DB) *Orders {
	return &Orders{DB: db}
}

func (r *Orders) Create(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Items ikut tersimpan lewat association
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
}

func (r *Orders) Get(ctx context.Context, id string) (*models.Order, error) {
	return r.get(r.DB.WithContext(ctx), id)
}

func (r *Orders) get(tx *gorm.DB, id string) (*models.Order, error) {
	var order models.Order
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "order "+id)
	}
	return &order, nil
}

func (r *Orders) LatestForTable(ctx context.Context, mesaID, branchID string) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("mesa_id = ? AND branch_id = ?", mesaID, branchID).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, notFound(err, "order for mesa "+mesaID)
	}
	return &order, nil
}

func (r *Orders) ListForTable(ctx context.Context, mesaID, branchID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("mesa_id = ? AND branch_id = ?", mesaID, branchID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func statusColumns(update services.StatusUpdate) map[string]interface{} {
	cols := map[string]interface{}{
		"status":         update.Status,
		"payment_status": update.PaymentStatus,
	}
	if update.PaymentMethod != nil {
		cols["payment_method"] = *update.PaymentMethod
	}
	if update.PaidAt != nil {
		cols["paid_at"] = *update.PaidAt
	}
	if update.CancellationReason != nil {
		cols["cancellation_reason"] = *update.CancellationReason
	}
	return cols
}

func (r *Orders) CompareAndSetStatus(ctx context.Context, id string, from models.OrderStatus, update services.StatusUpdate) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(statusColumns(update))
	if res.Error != nil {
		return false, fmt.Errorf("update order status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ForceStatus overwrites the status without consulting the graph.
func (r *Orders) ForceStatus(ctx context.Context, id string, update services.StatusUpdate) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(statusColumns(update))
	if res.Error != nil {
		return fmt.Errorf("force order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s", services.ErrNotFound, id)
	}
	return nil
}

func (r *Orders) AppendItems(ctx context.Context, id string, items []models.OrderItem) (*models.Order, error) {
	var result *models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", id).Error; err != nil {
			return notFound(err, "order "+id)
		}
		if order.Status != models.OrderPaymentPending {
			return fmt.Errorf("%w: order %s is %s, items can only be added while payment is pending",
				services.ErrInvalidState, id, order.Status)
		}

		for i := range items {
			items[i].ID = 0
			items[i].OrderID = id
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("append items: %w", err)
		}

		var all []models.OrderItem
		if err := tx.Where("order_id = ?", id).Find(&all).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, models.OrderPaymentPending).
			Update("total_amount", models.ComputeTotal(all))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %s changed status while adding items", services.ErrInvalidState, id)
		}

		updated, err := r.get(tx, id)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPrebillPrinted hanya menulis sekali; pemanggil lain membaca timestamp yang sudah ada.
func (r *Orders) MarkPrebillPrinted(ctx context.Context, id string, at time.Time) (bool, *models.Order, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND prebill_printed_at IS NULL", id).
		Update("prebill_printed_at", at)
	if res.Error != nil {
		return false, nil, fmt.Errorf("mark prebill printed: %w", res.Error)
	}
	order, err := r.Get(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.RowsAffected > 0, order, nil
}

func (r *Orders) SetPaymentID(ctx context.Context, id, paymentID string) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_id", paymentID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s", services.ErrNotFound, id)
	}
	return nil
}

func (r *Orders) SetPaymentMethod(ctx context.Context, id string, method models.PaymentMethod) error {
	return r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_method", method).Error
}

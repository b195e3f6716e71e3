package database

import (
	"errors"
	"fmt"

	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
	"gorm.io/gorm"
)

// AutoMigrate membuat / memperbarui semua tabel yang dipakai service.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.TableSession{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.WaiterCall{},
		&models.Branch{},
		&models.PaymentConfig{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", services.ErrNotFound, what)
	}
	return err
}

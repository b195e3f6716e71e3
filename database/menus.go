package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"gorm.io/gorm"
)

type Menus struct {
	DB *gorm.DB
}

func NewMenus(db *gorm.DB) *Menus {
	return &Menus{DB: db}
}

func (m *Menus) GetItemByID(ctx context.Context, productRef string) (*services.MenuItem, error) {
	id, err := strconv.ParseUint(productRef, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: menu item %q", services.ErrNotFound, productRef)
	}
	var menu models.Menu
	if err := m.DB.WithContext(ctx).First(&menu, id).Error; err != nil {
		return nil, notFound(err, "menu item "+productRef)
	}
	return &services.MenuItem{
		ID:        productRef,
		Name:      menu.Name,
		Price:     menu.Price,
		Available: menu.Available,
	}, nil
}

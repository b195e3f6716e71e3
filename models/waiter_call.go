package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WaiterCall struct {
	ID            string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	MesaID        string           `gorm:"type:varchar(64);not null;index:idx_call_table,priority:2" json:"mesa_id"`
	BranchID      string           `gorm:"type:varchar(64);not null;index:idx_call_table,priority:1" json:"branch_id"`
	Status        WaiterCallStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	PaymentMethod PaymentMethod    `gorm:"type:varchar(16);not null" json:"payment_method"`
	Motivo        string           `gorm:"type:varchar(32)" json:"motivo,omitempty"`
	Message       string           `gorm:"type:text" json:"message,omitempty"`
	UsuarioID     *string          `gorm:"type:varchar(64)" json:"usuario_id,omitempty"`
	// PendingKey terisi "mesa|branch" hanya saat PENDING; NULL tidak bentrok di unique index.
	PendingKey *string   `gorm:"type:varchar(160);uniqueIndex" json:"-"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (w *WaiterCall) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

func TableKey(mesaID, branchID string) string {
	return mesaID + "|" + branchID
}

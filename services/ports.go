package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/mesa-qr-orders/models"
)

// TableSessionStore is the row store behind table tokens. Implementations return ErrNotFound for missing rows.
type TableSessionStore interface {
	Find(ctx context.Context, mesaID, branchID string) (*models.TableSession, error)
	// UpdateToken reports false when no row matched (mesa_id, branch_id).
	UpdateToken(ctx context.Context, mesaID, branchID, token string, expiresAt time.Time) (bool, error)
	// ExpireToken only touches the row while it still carries token and that token is already past at.
	ExpireToken(ctx context.Context, mesaID, branchID, token string, at time.Time) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	LatestForTable(ctx context.Context, mesaID, branchID string) (*models.Order, error)
	ListForTable(ctx context.Context, mesaID, branchID string) ([]models.Order, error)
	// CompareAndSetStatus applies the update only while the row still has status from.
	CompareAndSetStatus(ctx context.Context, id string, from models.OrderStatus, update StatusUpdate) (bool, error)
	ForceStatus(ctx context.Context, id string, update StatusUpdate) error
	AppendItems(ctx context.Context, id string, items []models.OrderItem) (*models.Order, error)
	MarkPrebillPrinted(ctx context.Context, id string, at time.Time) (bool, *models.Order, error)
	SetPaymentID(ctx context.Context, id, paymentID string) error
	SetPaymentMethod(ctx context.Context, id string, method models.PaymentMethod) error
}

// StatusUpdate is the set of columns written together with a status change.
type StatusUpdate struct {
	Status             models.OrderStatus
	PaymentStatus      string
	PaymentMethod      *models.PaymentMethod
	PaidAt             *time.Time
	CancellationReason *string
}

type WaiterCallFilter struct {
	Status   *models.WaiterCallStatus
	BranchID string
	MesaID   string
}

type WaiterCallStore interface {
	FindPending(ctx context.Context, mesaID, branchID string) (*models.WaiterCall, error)
	// Insert returns ErrPendingExists when a PENDING call already exists for the table.
	Insert(ctx context.Context, call *models.WaiterCall) error
	Get(ctx context.Context, id string) (*models.WaiterCall, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to models.WaiterCallStatus) (bool, error)
	List(ctx context.Context, filter WaiterCallFilter) ([]models.WaiterCall, error)
}

// MenuCatalog returns ErrNotFound for unknown product references.
type MenuCatalog interface {
	GetItemByID(ctx context.Context, productRef string) (*MenuItem, error)
}

type MenuItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Available bool
}

type PaymentConfigStore interface {
	// BranchConfigSource returns the branch's MPConfigSourceBranchID, ErrNotFound when the branch is unknown.
	BranchConfigSource(ctx context.Context, branchID string) (*string, error)
	// FindConfig returns the enabled config for the exact (restaurant, branch) scope; branchID nil means restaurant-wide.
	FindConfig(ctx context.Context, restaurantID string, branchID *string) (*models.PaymentConfig, error)
}

// EventPublisher fans out real-time notifications to dashboards.
type EventPublisher interface {
	PublishOrdersUpdated(ctx context.Context, branchID, mesaID string) error
}

// Principal is the verified identity attached to staff requests.
type Principal struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	OrgID    string `json:"org_id"`
	BranchID string `json:"branch_id"`
}

var staffRoles = map[string]bool{
	"desarrollador": true,
	"admin":         true,
	"caja":          true,
	"mozo":          true,
}

func StaffRoles() []string {
	return []string{"desarrollador", "admin", "caja", "mozo"}
}

func (p *Principal) IsStaff() bool {
	return p != nil && staffRoles[p.Role]
}

// TableTokens is the subset of TokenManager the order and waiter services depend on.
type TableTokens interface {
	Validate(ctx context.Context, mesaID, branchID, token string) bool
	Invalidate(ctx context.Context, mesaID, branchID string) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

// maxStatusAttempts bounds the re-read loop when a concurrent writer wins the compare-and-set.
const maxStatusAttempts = 3

type ItemInput struct {
	ID       string `json:"id" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=999"`
	Notes    string `json:"notes,omitempty" validate:"max=500"`
}

type CustomerOrderInput struct {
	MesaID   string      `json:"mesa_id" validate:"required"`
	BranchID string      `json:"branch_id" validate:"required"`
	Token    string      `json:"token"`
	Items    []ItemInput `json:"items" validate:"required,min=1,dive"`
}

type StaffOrderInput struct {
	MesaID       string      `json:"mesa_id" validate:"required"`
	BranchID     string      `json:"branch_id" validate:"required"`
	RestaurantID string      `json:"restaurant_id" validate:"required"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
}

type PrebillMark struct {
	Updated   bool          `json:"updated"`
	PrintedAt time.Time     `json:"prebill_printed_at"`
	Order     *models.Order `json:"order"`
}

type OrderService struct {
	repo          OrderRepository
	tables        TableSessionStore
	tokens        TableTokens
	menu          MenuCatalog
	events        EventPublisher
	validate      *validator.Validate
	lookupTimeout time.Duration
	now           func() time.Time
}

func NewOrderService(repo OrderRepository, tables TableSessionStore, tokens TableTokens, menu MenuCatalog, events EventPublisher, lookupTimeout time.Duration) *OrderService {
	if lookupTimeout <= 0 {
		lookupTimeout = 3 * time.Second
	}
	return &OrderService{
		repo:          repo,
		tables:        tables,
		tokens:        tokens,
		menu:          menu,
		events:        events,
		validate:      validator.New(),
		lookupTimeout: lookupTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

func (s *OrderService) checkInput(in interface{}) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *OrderService) CreateForCustomer(ctx context.Context, in CustomerOrderInput) (*models.Order, error) {
	if !s.tokens.Validate(ctx, in.MesaID, in.BranchID, in.Token) {
		return nil, fmt.Errorf("%w: token inválido o expirado", ErrUnauthorized)
	}
	if err := s.checkInput(in); err != nil {
		return nil, err
	}

	table, err := s.tables.Find(ctx, in.MesaID, in.BranchID)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, table.RestaurantID, in.BranchID, in.MesaID, in.Items)
}

func (s *OrderService) CreateForStaff(ctx context.Context, principal *Principal, in StaffOrderInput) (*models.Order, error) {
	if !principal.IsStaff() {
		return nil, fmt.Errorf("%w: staff principal required", ErrUnauthorized)
	}
	if principal.BranchID != "" && principal.BranchID != in.BranchID {
		return nil, fmt.Errorf("%w: principal is not scoped to branch %s", ErrUnauthorized, in.BranchID)
	}
	if err := s.checkInput(in); err != nil {
		return nil, err
	}

	table, err := s.tables.Find(ctx, in.MesaID, in.BranchID)
	if err != nil {
		return nil, err
	}
	if table.RestaurantID != in.RestaurantID {
		// Sama persis dengan meja yang tidak ada, supaya tenant lain tidak bocor.
		return nil, fmt.Errorf("%w: mesa", ErrNotFound)
	}
	return s.create(ctx, in.RestaurantID, in.BranchID, in.MesaID, in.Items)
}

func (s *OrderService) create(ctx context.Context, restaurantID, branchID, mesaID string, in []ItemInput) (*models.Order, error) {
	items, err := s.priceItems(ctx, in)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		RestaurantID:  restaurantID,
		BranchID:      branchID,
		MesaID:        mesaID,
		Status:        models.OrderPaymentPending,
		PaymentStatus: models.OrderPaymentPending.PaymentStatus(""),
		Items:         items,
		TotalAmount:   models.ComputeTotal(items),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"mesa_id":   mesaID,
		"branch_id": branchID,
		"total":     order.TotalAmount.StringFixed(2),
	}).Info("order created")
	s.notify(ctx, branchID, mesaID)
	return order, nil
}

// priceItems mengambil harga dari menu, bukan dari input klien.
func (s *OrderService) priceItems(ctx context.Context, in []ItemInput) ([]models.OrderItem, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	items := make([]models.OrderItem, 0, len(in))
	for _, it := range in {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for item %s must be positive", ErrInvalidInput, it.ID)
		}
		menuItem, err := s.menu.GetItemByID(lookupCtx, it.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: menu item %s not found", ErrInvalidInput, it.ID)
			}
			return nil, fmt.Errorf("menu lookup %s: %w", it.ID, err)
		}
		if !menuItem.Available {
			return nil, fmt.Errorf("%w: menu item %s is not available", ErrInvalidInput, it.ID)
		}
		items = append(items, models.OrderItem{
			ProductRef: it.ID,
			Name:       menuItem.Name,
			Quantity:   it.Quantity,
			UnitPrice:  menuItem.Price,
			Notes:      it.Notes,
		})
	}
	return items, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *OrderService) ListForTable(ctx context.Context, mesaID, branchID string) ([]models.Order, error) {
	return s.repo.ListForTable(ctx, mesaID, branchID)
}

func (s *OrderService) Transition(ctx context.Context, orderID string, to models.OrderStatus, method *models.PaymentMethod) (*models.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, to)
	}
	if method != nil && !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, *method)
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		order, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if order.Status == to {
			if method != nil && (order.PaymentMethod == nil || *order.PaymentMethod != *method) {
				if err := s.repo.SetPaymentMethod(ctx, orderID, *method); err != nil {
					return nil, err
				}
				order.PaymentMethod = method
				s.notify(ctx, order.BranchID, order.MesaID)
			}
			return order, nil
		}
		if !order.Status.CanTransitionTo(to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
		}

		update := StatusUpdate{
			Status:        to,
			PaymentStatus: to.PaymentStatus(order.PaymentStatus),
			PaymentMethod: method,
		}
		if to == models.OrderPaid {
			paidAt := s.now()
			update.PaidAt = &paidAt
		}

		ok, err := s.repo.CompareAndSetStatus(ctx, orderID, order.Status, update)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     order.Status,
			"to":       to,
		}).Info("order status changed")

		if to == models.OrderPaid {
			s.invalidateToken(ctx, order.MesaID, order.BranchID)
		}
		s.notify(ctx, order.BranchID, order.MesaID)
		return s.repo.Get(ctx, orderID)
	}
	return nil, fmt.Errorf("%w: order %s changed concurrently, retry", ErrInvalidState, orderID)
}

func (s *OrderService) AddItems(ctx context.Context, orderID string, in []ItemInput) (*models.Order, error) {
	if err := s.checkInput(struct {
		Items []ItemInput `validate:"required,min=1,dive"`
	}{in}); err != nil {
		return nil, err
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPaymentPending {
		return nil, fmt.Errorf("%w: order %s is %s, items can only be added while payment is pending",
			ErrInvalidState, orderID, order.Status)
	}

	items, err := s.priceItems(ctx, in)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.AppendItems(ctx, orderID, items)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated.BranchID, updated.MesaID)
	return updated, nil
}

// Cancel rejects the order from any state except DELIVERED.
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string) (*models.Order, error) {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		order, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		switch order.Status {
		case models.OrderPaymentRejected:
			return order, nil
		case models.OrderDelivered:
			return nil, fmt.Errorf("%w: order %s was already delivered", ErrInvalidState, orderID)
		}

		update := StatusUpdate{
			Status:        models.OrderPaymentRejected,
			PaymentStatus: models.OrderPaymentRejected.PaymentStatus(order.PaymentStatus),
		}
		if reason != "" {
			update.CancellationReason = &reason
		}
		ok, err := s.repo.CompareAndSetStatus(ctx, orderID, order.Status, update)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     order.Status,
			"reason":   reason,
		}).Info("order cancelled")
		s.invalidateToken(ctx, order.MesaID, order.BranchID)
		s.notify(ctx, order.BranchID, order.MesaID)
		return s.repo.Get(ctx, orderID)
	}
	return nil, fmt.Errorf("%w: order %s changed concurrently, retry", ErrInvalidState, orderID)
}

func (s *OrderService) MarkPrebillPrinted(ctx context.Context, orderID string) (*PrebillMark, error) {
	updated, order, err := s.repo.MarkPrebillPrinted(ctx, orderID, s.now())
	if err != nil {
		return nil, err
	}
	if order.PrebillPrintedAt == nil {
		return nil, fmt.Errorf("prebill timestamp missing after update for order %s", orderID)
	}
	if updated {
		s.notify(ctx, order.BranchID, order.MesaID)
	}
	return &PrebillMark{
		Updated:   updated,
		PrintedAt: *order.PrebillPrintedAt,
		Order:     order,
	}, nil
}

// SettleLatestForTable marks the table's most recent order PAID, overwriting the status
// when the graph does not allow it.
func (s *OrderService) SettleLatestForTable(ctx context.Context, mesaID, branchID string) (*models.Order, error) {
	order, err := s.repo.LatestForTable(ctx, mesaID, branchID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderPaid {
		return order, nil
	}

	settled, err := s.Transition(ctx, order.ID, models.OrderPaid, nil)
	if err == nil {
		return settled, nil
	}
	if !errors.Is(err, ErrInvalidTransition) {
		return nil, err
	}

	utils.ErrorLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     order.Status,
	}).Warn("settlement outside transition graph, forcing PAID")

	paidAt := s.now()
	update := StatusUpdate{
		Status:        models.OrderPaid,
		PaymentStatus: models.OrderPaid.PaymentStatus(order.PaymentStatus),
		PaidAt:        &paidAt,
	}
	if err := s.repo.ForceStatus(ctx, order.ID, update); err != nil {
		return nil, err
	}
	s.invalidateToken(ctx, mesaID, branchID)
	s.notify(ctx, branchID, mesaID)
	return s.repo.Get(ctx, order.ID)
}

func (s *OrderService) SetPaymentMethodForLatest(ctx context.Context, mesaID, branchID string, method models.PaymentMethod) error {
	if !method.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}
	order, err := s.repo.LatestForTable(ctx, mesaID, branchID)
	if err != nil {
		return err
	}
	if err := s.repo.SetPaymentMethod(ctx, order.ID, method); err != nil {
		return err
	}
	s.notify(ctx, branchID, mesaID)
	return nil
}

func (s *OrderService) invalidateToken(ctx context.Context, mesaID, branchID string) {
	if err := s.tokens.Invalidate(context.WithoutCancel(ctx), mesaID, branchID); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"mesa_id":   mesaID,
			"branch_id": branchID,
		}).Errorf("token invalidation failed: %v", err)
	}
}

func (s *OrderService) notify(ctx context.Context, branchID, mesaID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrdersUpdated(context.WithoutCancel(ctx), branchID, mesaID); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"mesa_id":   mesaID,
			"branch_id": branchID,
		}).Warnf("orders:updated publish failed: %v", err)
	}
}

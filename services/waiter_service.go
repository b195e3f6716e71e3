package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

type CreateCallInput struct {
	MesaID        string `json:"mesa_id" binding:"required"`
	BranchID      string `json:"branch_id" binding:"required"`
	PaymentMethod string `json:"payment_method"`
	Motivo        string `json:"motivo"`
	Message       string `json:"message"`
	Token         string `json:"token"`
}

// TableSettler is the slice of OrderService the dispatcher needs.
type TableSettler interface {
	SettleLatestForTable(ctx context.Context, mesaID, branchID string) (*models.Order, error)
	SetPaymentMethodForLatest(ctx context.Context, mesaID, branchID string, method models.PaymentMethod) error
}

type WaiterService struct {
	store   WaiterCallStore
	tokens  TableTokens
	orders  TableSettler
	events  EventPublisher
	tableMu *keyedMutex
}

func NewWaiterService(store WaiterCallStore, tokens TableTokens, orders TableSettler, events EventPublisher) *WaiterService {
	return &WaiterService{
		store:   store,
		tokens:  tokens,
		orders:  orders,
		events:  events,
		tableMu: newKeyedMutex(),
	}
}

// payment_method explisit menang; motivo hanya dipakai kalau payment_method kosong.
func resolvePaymentMethod(in CreateCallInput) (models.PaymentMethod, error) {
	if in.PaymentMethod == "" && in.Motivo != "" {
		m, ok := models.PaymentMethodFromMotivo(in.Motivo)
		if !ok {
			return "", fmt.Errorf("%w: unknown motivo %q", ErrInvalidInput, in.Motivo)
		}
		return m, nil
	}
	m, err := models.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return m, nil
}

// Create returns the existing PENDING call with alreadyPending=true instead of inserting a second one.
func (s *WaiterService) Create(ctx context.Context, principal *Principal, in CreateCallInput) (*models.WaiterCall, bool, error) {
	if in.MesaID == "" || in.BranchID == "" {
		return nil, false, fmt.Errorf("%w: mesa_id and branch_id are required", ErrInvalidInput)
	}
	staff := principal.IsStaff()
	if staff && principal.BranchID != "" && principal.BranchID != in.BranchID {
		// Meja cabang lain terlihat seperti tidak ada.
		return nil, false, fmt.Errorf("%w: mesa", ErrNotFound)
	}
	if !staff && !s.tokens.Validate(ctx, in.MesaID, in.BranchID, in.Token) {
		return nil, false, fmt.Errorf("%w: token inválido o expirado", ErrUnauthorized)
	}
	method, err := resolvePaymentMethod(in)
	if err != nil {
		return nil, false, err
	}

	unlock := s.tableMu.Lock(models.TableKey(in.MesaID, in.BranchID))
	defer unlock()

	existing, err := s.store.FindPending(ctx, in.MesaID, in.BranchID)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	call := &models.WaiterCall{
		MesaID:        in.MesaID,
		BranchID:      in.BranchID,
		Status:        models.WaiterCallPending,
		PaymentMethod: method,
		Motivo:        in.Motivo,
		Message:       in.Message,
	}
	if staff {
		call.UsuarioID = &principal.UserID
	}

	if err := s.store.Insert(ctx, call); err != nil {
		// Instance lain menang duluan; kembalikan panggilan yang sudah ada.
		if existing, findErr := s.store.FindPending(ctx, in.MesaID, in.BranchID); findErr == nil {
			return existing, true, nil
		}
		return nil, false, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"call_id":        call.ID,
		"mesa_id":        call.MesaID,
		"branch_id":      call.BranchID,
		"payment_method": call.PaymentMethod,
	}).Info("waiter call created")

	if err := s.orders.SetPaymentMethodForLatest(context.WithoutCancel(ctx), in.MesaID, in.BranchID, method); err != nil && !errors.Is(err, ErrNotFound) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"mesa_id":   in.MesaID,
			"branch_id": in.BranchID,
		}).Warnf("could not tag latest order with payment method: %v", err)
	}
	s.notify(ctx, call)
	return call, false, nil
}

func (s *WaiterService) Get(ctx context.Context, id string) (*models.WaiterCall, error) {
	return s.store.Get(ctx, id)
}

func (s *WaiterService) List(ctx context.Context, filter WaiterCallFilter) ([]models.WaiterCall, error) {
	return s.store.List(ctx, filter)
}

// Complete closes the call and settles the table's latest order. Settlement failure does not undo the completion.
func (s *WaiterService) Complete(ctx context.Context, id string) (*models.WaiterCall, error) {
	call, changed, err := s.moveTo(ctx, id, models.WaiterCallCompleted)
	if err != nil || !changed {
		return call, err
	}

	if _, err := s.orders.SettleLatestForTable(context.WithoutCancel(ctx), call.MesaID, call.BranchID); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"call_id":   call.ID,
			"mesa_id":   call.MesaID,
			"branch_id": call.BranchID,
		}).Errorf("settle after waiter call failed: %v", err)
	}
	return call, nil
}

// Cancel is a soft delete; terminal calls are returned unchanged.
func (s *WaiterService) Cancel(ctx context.Context, id string) (*models.WaiterCall, error) {
	call, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if call.Status.Terminal() {
		return call, nil
	}
	call, _, err = s.moveTo(ctx, id, models.WaiterCallCancelled)
	if errors.Is(err, ErrInvalidTransition) {
		// Selesai duluan oleh staff lain.
		return s.store.Get(ctx, id)
	}
	return call, err
}

func (s *WaiterService) UpdateStatus(ctx context.Context, id string, status models.WaiterCallStatus) (*models.WaiterCall, error) {
	switch status {
	case models.WaiterCallCompleted:
		return s.Complete(ctx, id)
	case models.WaiterCallCancelled:
		return s.Cancel(ctx, id)
	case models.WaiterCallPending:
		call, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if call.Status != models.WaiterCallPending {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, call.Status, status)
		}
		return call, nil
	}
	return nil, fmt.Errorf("%w: unknown waiter call status %q", ErrInvalidInput, status)
}

// moveTo reports changed=false when the call already had the target status.
func (s *WaiterService) moveTo(ctx context.Context, id string, to models.WaiterCallStatus) (*models.WaiterCall, bool, error) {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		call, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if call.Status == to {
			return call, false, nil
		}
		if !call.Status.CanTransitionTo(to) {
			return nil, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, call.Status, to)
		}
		ok, err := s.store.CompareAndSetStatus(ctx, id, call.Status, to)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}

		utils.InfoLogger.WithFields(logrus.Fields{
			"call_id": id,
			"from":    call.Status,
			"to":      to,
		}).Info("waiter call status changed")

		updated, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		s.notify(ctx, updated)
		return updated, true, nil
	}
	return nil, false, fmt.Errorf("%w: waiter call %s changed concurrently, retry", ErrInvalidState, id)
}

func (s *WaiterService) notify(ctx context.Context, call *models.WaiterCall) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrdersUpdated(context.WithoutCancel(ctx), call.BranchID, call.MesaID); err != nil {
		utils.ErrorLogger.WithField("call_id", call.ID).Warnf("orders:updated publish failed: %v", err)
	}
}

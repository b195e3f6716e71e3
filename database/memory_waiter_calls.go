package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
)

// MemoryWaiterCalls is a process-local WaiterCallStore with the same pending-key contract as WaiterCalls.
type MemoryWaiterCalls struct {
	mu      sync.Mutex
	calls   map[string]models.WaiterCall
	pending map[string]string // table key -> call id
	now     func() time.Time
}

func NewMemoryWaiterCalls() *MemoryWaiterCalls {
	return &MemoryWaiterCalls{
		calls:   make(map[string]models.WaiterCall),
		pending: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryWaiterCalls) FindPending(ctx context.Context, mesaID, branchID string) (*models.WaiterCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.pending[models.TableKey(mesaID, branchID)]
	if !ok {
		return nil, fmt.Errorf("%w: pending waiter call", services.ErrNotFound)
	}
	call := s.calls[id]
	return &call, nil
}

func (s *MemoryWaiterCalls) Insert(ctx context.Context, call *models.WaiterCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.Status == "" {
		call.Status = models.WaiterCallPending
	}
	key := models.TableKey(call.MesaID, call.BranchID)
	if call.Status == models.WaiterCallPending {
		if _, exists := s.pending[key]; exists {
			return services.ErrPendingExists
		}
		call.PendingKey = &key
		s.pending[key] = call.ID
	}
	now := s.now()
	call.CreatedAt = now
	call.UpdatedAt = now
	s.calls[call.ID] = *call
	return nil
}

func (s *MemoryWaiterCalls) Get(ctx context.Context, id string) (*models.WaiterCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, fmt.Errorf("%w: waiter call %s", services.ErrNotFound, id)
	}
	return &call, nil
}

func (s *MemoryWaiterCalls) CompareAndSetStatus(ctx context.Context, id string, from, to models.WaiterCallStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok || call.Status != from {
		return false, nil
	}
	call.Status = to
	call.UpdatedAt = s.now()
	if to.Terminal() && call.PendingKey != nil {
		delete(s.pending, *call.PendingKey)
		call.PendingKey = nil
	}
	s.calls[id] = call
	return true, nil
}

func (s *MemoryWaiterCalls) List(ctx context.Context, filter services.WaiterCallFilter) ([]models.WaiterCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := make([]models.WaiterCall, 0, len(s.calls))
	for _, call := range s.calls {
		if filter.Status != nil && call.Status != *filter.Status {
			continue
		}
		if filter.BranchID != "" && call.BranchID != filter.BranchID {
			continue
		}
		if filter.MesaID != "" && call.MesaID != filter.MesaID {
			continue
		}
		calls = append(calls, call)
	}
	sort.Slice(calls, func(i, j int) bool {
		return calls[i].CreatedAt.After(calls[j].CreatedAt)
	})
	return calls, nil
}

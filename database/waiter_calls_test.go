package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
)

// both stores must honour the same pending-key contract
func waiterCallStores(t *testing.T) map[string]services.WaiterCallStore {
	return map[string]services.WaiterCallStore{
		"gorm":   NewWaiterCalls(setupTestDB(t)),
		"memory": NewMemoryWaiterCalls(),
	}
}

func newCall(mesa, branch string) *models.WaiterCall {
	return &models.WaiterCall{
		MesaID:        mesa,
		BranchID:      branch,
		PaymentMethod: models.PaymentCash,
		Motivo:        "pago_efectivo",
	}
}

func TestWaiterCallStoreSinglePending(t *testing.T) {
	for name, store := range waiterCallStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := newCall("m1", "b1")
			require.NoError(t, store.Insert(ctx, first))
			assert.NotEmpty(t, first.ID)
			assert.Equal(t, models.WaiterCallPending, first.Status)

			err := store.Insert(ctx, newCall("m1", "b1"))
			assert.ErrorIs(t, err, services.ErrPendingExists)

			// other table is unaffected
			require.NoError(t, store.Insert(ctx, newCall("m2", "b1")))

			pending, err := store.FindPending(ctx, "m1", "b1")
			require.NoError(t, err)
			assert.Equal(t, first.ID, pending.ID)

			ok, err := store.CompareAndSetStatus(ctx, first.ID, models.WaiterCallPending, models.WaiterCallCompleted)
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = store.FindPending(ctx, "m1", "b1")
			assert.ErrorIs(t, err, services.ErrNotFound)

			// terminal call frees the slot
			require.NoError(t, store.Insert(ctx, newCall("m1", "b1")))
		})
	}
}

func TestWaiterCallStoreCompareAndSet(t *testing.T) {
	for name, store := range waiterCallStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			call := newCall("m1", "b1")
			require.NoError(t, store.Insert(ctx, call))

			ok, err := store.CompareAndSetStatus(ctx, call.ID, models.WaiterCallPending, models.WaiterCallCancelled)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.CompareAndSetStatus(ctx, call.ID, models.WaiterCallPending, models.WaiterCallCompleted)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := store.Get(ctx, call.ID)
			require.NoError(t, err)
			assert.Equal(t, models.WaiterCallCancelled, got.Status)
			assert.Nil(t, got.PendingKey)

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, services.ErrNotFound)
		})
	}
}

func TestWaiterCallStoreList(t *testing.T) {
	for name, store := range waiterCallStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newCall("m1", "b1")
			require.NoError(t, store.Insert(ctx, a))
			require.NoError(t, store.Insert(ctx, newCall("m2", "b1")))
			require.NoError(t, store.Insert(ctx, newCall("m1", "b2")))
			_, err := store.CompareAndSetStatus(ctx, a.ID, models.WaiterCallPending, models.WaiterCallCompleted)
			require.NoError(t, err)

			all, err := store.List(ctx, services.WaiterCallFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 3)

			byBranch, err := store.List(ctx, services.WaiterCallFilter{BranchID: "b1"})
			require.NoError(t, err)
			assert.Len(t, byBranch, 2)

			pending := models.WaiterCallPending
			open, err := store.List(ctx, services.WaiterCallFilter{Status: &pending, BranchID: "b1"})
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, "m2", open[0].MesaID)
		})
	}
}

func TestWaiterCallStoreConcurrentInsert(t *testing.T) {
	for name, store := range waiterCallStores(t) {
		t.Run(name, func(t *testing.T) {
			const callers = 20
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				inserted int
				rejected int
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := store.Insert(context.Background(), newCall("m1", "b1"))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						inserted++
					case errors.Is(err, services.ErrPendingExists):
						rejected++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, inserted)
			assert.Equal(t, callers-1, rejected)

			pending := models.WaiterCallPending
			calls, err := store.List(context.Background(), services.WaiterCallFilter{Status: &pending, MesaID: "m1"})
			require.NoError(t, err)
			assert.Len(t, calls, 1)
		})
	}
}

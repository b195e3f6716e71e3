package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitionGraph(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderPaymentPending:  {OrderPaymentApproved, OrderPaymentRejected, OrderPaid},
		OrderPaymentApproved: {OrderInPreparation, OrderReady, OrderDelivered},
		OrderPaid:            {OrderInPreparation, OrderReady, OrderDelivered},
		OrderInPreparation:   {OrderReady},
		OrderReady:           {OrderDelivered},
	}

	for _, from := range AllOrderStatuses {
		for _, to := range AllOrderStatuses {
			want := from == to
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderTerminalStates(t *testing.T) {
	assert.True(t, OrderPaymentRejected.Terminal())
	assert.True(t, OrderDelivered.Terminal())
	assert.False(t, OrderPaid.Terminal())
	assert.False(t, OrderStatus("BOGUS").Terminal())
	assert.False(t, OrderStatus("BOGUS").CanTransitionTo(OrderPaid))
	assert.False(t, OrderPaymentPending.CanTransitionTo("BOGUS"))
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, s)

	_, err = ParseOrderStatus("paid")
	assert.Error(t, err, "status vocabulary is case-sensitive")
	_, err = ParseOrderStatus("SHIPPED")
	assert.Error(t, err)
}

func TestPaymentStatusDerivation(t *testing.T) {
	assert.Equal(t, "pending", OrderPaymentPending.PaymentStatus(""))
	assert.Equal(t, "approved", OrderPaymentApproved.PaymentStatus("pending"))
	assert.Equal(t, "rejected", OrderPaymentRejected.PaymentStatus("approved"))
	assert.Equal(t, "paid", OrderPaid.PaymentStatus("pending"))
	assert.Equal(t, "approved", OrderInPreparation.PaymentStatus("approved"))
	assert.Equal(t, "paid", OrderDelivered.PaymentStatus("paid"))
}

func TestWaiterCallTransitions(t *testing.T) {
	tests := []struct {
		from, to WaiterCallStatus
		want     bool
	}{
		{WaiterCallPending, WaiterCallCompleted, true},
		{WaiterCallPending, WaiterCallCancelled, true},
		{WaiterCallPending, WaiterCallPending, true},
		{WaiterCallCompleted, WaiterCallCompleted, true},
		{WaiterCallCompleted, WaiterCallCancelled, false},
		{WaiterCallCancelled, WaiterCallCompleted, false},
		{WaiterCallCancelled, WaiterCallPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPaymentMethodFromMotivo(t *testing.T) {
	tests := []struct {
		motivo string
		want   PaymentMethod
		ok     bool
	}{
		{"pago_efectivo", PaymentCash, true},
		{"pago_tarjeta", PaymentCard, true},
		{"PAGO_QR", PaymentQR, true},
		{"propina", "", false},
	}
	for _, tt := range tests {
		got, ok := PaymentMethodFromMotivo(tt.motivo)
		assert.Equal(t, tt.ok, ok, tt.motivo)
		assert.Equal(t, tt.want, got, tt.motivo)
	}

	m, err := ParsePaymentMethod("card")
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, m)
	_, err = ParsePaymentMethod("BITCOIN")
	assert.Error(t, err)
}

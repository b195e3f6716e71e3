package models

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderPaymentPending  OrderStatus = "PAYMENT_PENDING"
	OrderPaymentApproved OrderStatus = "PAYMENT_APPROVED"
	OrderPaymentRejected OrderStatus = "PAYMENT_REJECTED"
	OrderPaid            OrderStatus = "PAID"
	OrderInPreparation   OrderStatus = "IN_PREPARATION"
	OrderReady           OrderStatus = "READY"
	OrderDelivered       OrderStatus = "DELIVERED"
)

// AllOrderStatuses dipakai untuk validasi dan test graph
var AllOrderStatuses = []OrderStatus{
	OrderPaymentPending,
	OrderPaymentApproved,
	OrderPaymentRejected,
	OrderPaid,
	OrderInPreparation,
	OrderReady,
	OrderDelivered,
}

// orderTransitions is the only place the order graph is defined.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPaymentPending:  {OrderPaymentApproved, OrderPaymentRejected, OrderPaid},
	OrderPaymentApproved: {OrderInPreparation, OrderReady, OrderDelivered},
	OrderPaid:            {OrderInPreparation, OrderReady, OrderDelivered},
	OrderInPreparation:   {OrderReady},
	OrderReady:           {OrderDelivered},
	OrderPaymentRejected: {},
	OrderDelivered:       {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether the graph allows from -> to. Same status is always allowed.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if s == to {
		return true
	}
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentStatus derives the payment_status column from the order status.
// Kitchen states keep whatever payment status the order already had.
func (s OrderStatus) PaymentStatus(current string) string {
	switch s {
	case OrderPaymentPending:
		return "pending"
	case OrderPaymentApproved:
		return "approved"
	case OrderPaymentRejected:
		return "rejected"
	case OrderPaid:
		return "paid"
	}
	return current
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

type WaiterCallStatus string

const (
	WaiterCallPending   WaiterCallStatus = "PENDING"
	WaiterCallCompleted WaiterCallStatus = "COMPLETED"
	WaiterCallCancelled WaiterCallStatus = "CANCELLED"
)

func (s WaiterCallStatus) Valid() bool {
	switch s {
	case WaiterCallPending, WaiterCallCompleted, WaiterCallCancelled:
		return true
	}
	return false
}

func (s WaiterCallStatus) Terminal() bool {
	return s == WaiterCallCompleted || s == WaiterCallCancelled
}

// CanTransitionTo: PENDING -> {COMPLETED, CANCELLED}, same status is a no-op.
func (s WaiterCallStatus) CanTransitionTo(to WaiterCallStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if s == to {
		return true
	}
	return s == WaiterCallPending
}

func ParseWaiterCallStatus(raw string) (WaiterCallStatus, error) {
	s := WaiterCallStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("unknown waiter call status %q", raw)
	}
	return s, nil
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "CARD"
	PaymentCash PaymentMethod = "CASH"
	PaymentQR   PaymentMethod = "QR"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCash, PaymentQR:
		return true
	}
	return false
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
	return m, nil
}

// motivo yang dikirim dari menu QR
var motivoPaymentMethods = map[string]PaymentMethod{
	"pago_efectivo": PaymentCash,
	"pago_tarjeta":  PaymentCard,
	"pago_qr":       PaymentQR,
}

// PaymentMethodFromMotivo maps a waiter-call reason to the payment method it announces.
func PaymentMethodFromMotivo(motivo string) (PaymentMethod, bool) {
	m, ok := motivoPaymentMethods[strings.ToLower(strings.TrimSpace(motivo))]
	return m, ok
}

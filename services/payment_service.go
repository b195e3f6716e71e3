package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

// PaymentURLs are the public addresses handed to the provider.
type PaymentURLs struct {
	PublicBaseURL string
	PreferenceTTL time.Duration
}

// Notification is the subset of a MercadoPago webhook body the adapter reads.
type Notification struct {
	Type    string
	Action  string
	DataID  string
	OrderID string
}

type RejectResult struct {
	Order       *models.Order `json:"order"`
	Refunded    bool          `json:"refunded"`
	RefundID    string        `json:"refund_id,omitempty"`
	RefundError string        `json:"refund_error,omitempty"`
}

// PaymentService translates provider callbacks and webhooks into order transitions.
type PaymentService struct {
	orders   *OrderService
	repo     OrderRepository
	provider PaymentProvider
	creds    *CredentialResolver
	urls     PaymentURLs
	now      func() time.Time
}

func NewPaymentService(orders *OrderService, repo OrderRepository, provider PaymentProvider, creds *CredentialResolver, urls PaymentURLs) *PaymentService {
	return &PaymentService{
		orders:   orders,
		repo:     repo,
		provider: provider,
		creds:    creds,
		urls:     urls,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MapProviderStatus maps a MercadoPago payment status to the order status it implies.
func MapProviderStatus(status string) (models.OrderStatus, bool) {
	switch strings.ToLower(status) {
	case "approved":
		return models.OrderPaymentApproved, true
	case "rejected", "cancelled":
		return models.OrderPaymentRejected, true
	case "pending", "in_process":
		return models.OrderPaymentPending, true
	}
	return "", false
}

// lookupOrder reports ok=false for references that do not match an order; those are logged and dropped.
func (s *PaymentService) lookupOrder(ctx context.Context, externalReference, source string) (*models.Order, bool, error) {
	if externalReference == "" {
		utils.ErrorLogger.WithField("source", source).Warn("payment callback without external_reference")
		return nil, false, nil
	}
	order, err := s.repo.Get(ctx, externalReference)
	if errors.Is(err, ErrNotFound) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"source":             source,
			"external_reference": externalReference,
		}).Warn("payment callback for unknown order")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (s *PaymentService) HandleSuccess(ctx context.Context, paymentID, externalReference string) error {
	order, ok, err := s.lookupOrder(ctx, externalReference, "success")
	if err != nil || !ok {
		return err
	}
	if paymentID == "" {
		utils.ErrorLogger.WithField("order_id", order.ID).Warn("success callback without payment id, waiting for webhook")
		return nil
	}

	cred, err := s.creds.Resolve(ctx, order.RestaurantID, order.BranchID)
	if err != nil {
		return err
	}
	info, err := s.provider.GetPaymentInfo(ctx, cred, paymentID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	return s.applyPayment(ctx, order, info)
}

func (s *PaymentService) HandleFailure(ctx context.Context, paymentID, externalReference string) error {
	return s.applyCallback(ctx, paymentID, externalReference, models.OrderPaymentRejected, "failure")
}

func (s *PaymentService) HandlePending(ctx context.Context, paymentID, externalReference string) error {
	return s.applyCallback(ctx, paymentID, externalReference, models.OrderPaymentPending, "pending")
}

// applyCallback only moves the status; the payment id is recorded from provider data, never from the redirect query.
func (s *PaymentService) applyCallback(ctx context.Context, paymentID, externalReference string, to models.OrderStatus, source string) error {
	order, ok, err := s.lookupOrder(ctx, externalReference, source)
	if err != nil || !ok {
		return err
	}
	if paymentID != "" {
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"payment_id": paymentID,
			"source":     source,
		}).Info("payment callback received")
	}
	return s.transition(ctx, order.ID, to)
}

// HandleWebhook processes a "payment" notification; other topics are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, n Notification) error {
	if n.Type != "payment" && !strings.HasPrefix(n.Action, "payment.") {
		utils.InfoLogger.WithField("type", n.Type).Info("ignoring non-payment webhook")
		return nil
	}
	if n.DataID == "" {
		return fmt.Errorf("%w: webhook without data.id", ErrInvalidInput)
	}

	cred := s.creds.Fallback()
	var order *models.Order
	if n.OrderID != "" {
		o, ok, err := s.lookupOrder(ctx, n.OrderID, "webhook")
		if err != nil || !ok {
			return err
		}
		order = o
		if cred, err = s.creds.Resolve(ctx, order.RestaurantID, order.BranchID); err != nil {
			return err
		}
	}

	info, err := s.provider.GetPaymentInfo(ctx, cred, n.DataID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", n.DataID, err)
	}
	if order == nil {
		o, ok, err := s.lookupOrder(ctx, info.ExternalReference, "webhook")
		if err != nil || !ok {
			return err
		}
		order = o
	}
	return s.applyPayment(ctx, order, info)
}

func (s *PaymentService) applyPayment(ctx context.Context, order *models.Order, info *PaymentInfo) error {
	if info.ExternalReference != "" && info.ExternalReference != order.ID {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order_id":           order.ID,
			"payment_id":         info.ID,
			"external_reference": info.ExternalReference,
		}).Warn("payment belongs to a different order, ignoring")
		return nil
	}
	if info.ID != "" {
		if err := s.repo.SetPaymentID(ctx, order.ID, info.ID); err != nil {
			return err
		}
	}
	to, ok := MapProviderStatus(info.Status)
	if !ok {
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"status":   info.Status,
		}).Info("provider status has no order mapping")
		return nil
	}
	return s.transition(ctx, order.ID, to)
}

// transition drops late or duplicate deliveries the graph no longer allows.
func (s *PaymentService) transition(ctx context.Context, orderID string, to models.OrderStatus) error {
	_, err := s.orders.Transition(ctx, orderID, to, nil)
	if errors.Is(err, ErrInvalidTransition) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order_id": orderID,
			"to":       to,
		}).Warnf("ignoring payment update: %v", err)
		return nil
	}
	return err
}

func (s *PaymentService) Order(ctx context.Context, orderID string) (*models.Order, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *PaymentService) CreatePreference(ctx context.Context, orderID string) (*Preference, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPaymentPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidState, order.ID, order.Status)
	}
	cred, err := s.creds.Resolve(ctx, order.RestaurantID, order.BranchID)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(s.urls.PublicBaseURL, "/")
	req := PreferenceRequest{
		ExternalReference: order.ID,
		NotificationURL:   base + "/payment/webhooks/mercadopago?order_id=" + url.QueryEscape(order.ID),
		BackURLs: BackURLs{
			Success: base + "/payment/success",
			Failure: base + "/payment/failure",
			Pending: base + "/payment/pending",
		},
	}
	if s.urls.PreferenceTTL > 0 {
		expires := s.now().Add(s.urls.PreferenceTTL)
		req.ExpiresAt = &expires
	}
	for _, it := range order.Items {
		req.Items = append(req.Items, PreferenceItem{
			ID:        it.ProductRef,
			Title:     it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	pref, err := s.provider.CreatePreference(ctx, cred, req)
	if err != nil {
		return nil, fmt.Errorf("create preference for order %s: %w", order.ID, err)
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"preference_id": pref.ID,
		"credentials":   cred.Source,
	}).Info("payment preference created")
	return pref, nil
}

// RejectOrder cancels the order and refunds the recorded payment. A failed refund is reported, the cancel stands.
func (s *PaymentService) RejectOrder(ctx context.Context, orderID, reason string) (*RejectResult, error) {
	order, err := s.orders.Cancel(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	result := &RejectResult{Order: order}
	if order.PaymentID == nil || *order.PaymentID == "" {
		return result, nil
	}

	cred, err := s.creds.Resolve(ctx, order.RestaurantID, order.BranchID)
	if err == nil {
		var refund *Refund
		refund, err = s.provider.RefundPayment(ctx, cred, *order.PaymentID, nil)
		if err == nil {
			result.Refunded = true
			result.RefundID = refund.ID
		}
	}
	if err != nil {
		result.RefundError = err.Error()
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"payment_id": *order.PaymentID,
		}).Errorf("refund after reject failed: %v", err)
	}
	return result, nil
}

// WebhookSecret returns the secret to check a webhook with: the order tenant's when known, else the global one.
func (s *PaymentService) WebhookSecret(ctx context.Context, orderID string) string {
	if orderID != "" {
		if order, err := s.repo.Get(ctx, orderID); err == nil {
			if cred, err := s.creds.Resolve(ctx, order.RestaurantID, order.BranchID); err == nil && cred.WebhookSecret != "" {
				return cred.WebhookSecret
			}
		}
	}
	return s.creds.Fallback().WebhookSecret
}

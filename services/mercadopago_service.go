package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

const defaultMercadoPagoURL = "https://api.mercadopago.com"

// MercadoPagoConfig holds client settings shared by every tenant.
type MercadoPagoConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	CurrencyID      string
}

// PaymentProvider is the external payment gateway. Credentials are resolved per tenant by the caller.
type PaymentProvider interface {
	CreatePreference(ctx context.Context, cred Credential, req PreferenceRequest) (*Preference, error)
	GetPaymentInfo(ctx context.Context, cred Credential, paymentID string) (*PaymentInfo, error)
	RefundPayment(ctx context.Context, cred Credential, paymentID string, amount *decimal.Decimal) (*Refund, error)
}

type PreferenceItem struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceRequest struct {
	Items             []PreferenceItem
	ExternalReference string
	NotificationURL   string
	BackURLs          BackURLs
	ExpiresAt         *time.Time
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

type PaymentInfo struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string          `json:"payment_method_id"`
}

type Refund struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// MercadoPagoService handles MercadoPago REST API interactions
type MercadoPagoService struct {
	config     MercadoPagoConfig
	httpClient *http.Client
}

func NewMercadoPagoService(cfg MercadoPagoConfig) *MercadoPagoService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMercadoPagoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 150 * time.Millisecond
	}
	if cfg.CurrencyID == "" {
		cfg.CurrencyID = "ARS"
	}
	return &MercadoPagoService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ValidateConfig validates MercadoPago configuration
func (ms *MercadoPagoService) ValidateConfig() error {
	if !strings.HasPrefix(ms.config.BaseURL, "http") {
		return fmt.Errorf("mercadopago base url %q is not an http url", ms.config.BaseURL)
	}
	if ms.config.Timeout <= 0 {
		return errors.New("mercadopago timeout must be positive")
	}
	return nil
}

type wirePreferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type wirePreference struct {
	Items             []wirePreferenceItem `json:"items"`
	ExternalReference string               `json:"external_reference"`
	NotificationURL   string               `json:"notification_url,omitempty"`
	BackURLs          BackURLs             `json:"back_urls"`
	AutoReturn        string               `json:"auto_return,omitempty"`
	Expires           bool                 `json:"expires"`
	ExpirationDateTo  string               `json:"expiration_date_to,omitempty"`
}

func (ms *MercadoPagoService) CreatePreference(ctx context.Context, cred Credential, req PreferenceRequest) (*Preference, error) {
	body := wirePreference{
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
		BackURLs:          req.BackURLs,
	}
	if req.BackURLs.Success != "" {
		body.AutoReturn = "approved"
	}
	if req.ExpiresAt != nil {
		body.Expires = true
		body.ExpirationDateTo = req.ExpiresAt.Format("2006-01-02T15:04:05.000-07:00")
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, wirePreferenceItem{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.InexactFloat64(),
			CurrencyID: ms.config.CurrencyID,
		})
	}

	var pref Preference
	if err := ms.do(ctx, cred, http.MethodPost, "/checkout/preferences", body, &pref); err != nil {
		return nil, err
	}
	return &pref, nil
}

type wirePayment struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string          `json:"payment_method_id"`
}

func (ms *MercadoPagoService) GetPaymentInfo(ctx context.Context, cred Credential, paymentID string) (*PaymentInfo, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidInput)
	}
	var p wirePayment
	if err := ms.do(ctx, cred, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return nil, err
	}
	return &PaymentInfo{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		TransactionAmount: p.TransactionAmount,
		PaymentMethodID:   p.PaymentMethodID,
	}, nil
}

type wireRefund struct {
	ID        json.Number     `json:"id"`
	PaymentID json.Number     `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// RefundPayment refunds the whole payment when amount is nil.
func (ms *MercadoPagoService) RefundPayment(ctx context.Context, cred Credential, paymentID string, amount *decimal.Decimal) (*Refund, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidInput)
	}
	body := map[string]interface{}{}
	if amount != nil {
		body["amount"] = amount.InexactFloat64()
	}
	var r wireRefund
	if err := ms.do(ctx, cred, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/refunds", body, &r); err != nil {
		return nil, err
	}
	return &Refund{
		ID:        r.ID.String(),
		PaymentID: r.PaymentID.String(),
		Amount:    r.Amount,
		Status:    r.Status,
	}, nil
}

func (ms *MercadoPagoService) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ms.config.InitialInterval
	b.Multiplier = 2
	b.MaxElapsedTime = 2 * ms.config.Timeout
	return backoff.WithContext(backoff.WithMaxRetries(b, ms.config.MaxRetries), ctx)
}

// do sends one request, retrying only transport failures and 502/503/504.
func (ms *MercadoPagoService) do(ctx context.Context, cred Credential, method, path string, in, out interface{}) error {
	if cred.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrProviderAuth)
	}

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}
	// Key yang sama untuk semua retry agar provider tidak membuat resource dobel.
	idempotencyKey := uuid.NewString()
	endpoint := strings.TrimRight(ms.config.BaseURL, "/") + path
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if method == http.MethodPost {
			req.Header.Set("X-Idempotency-Key", idempotencyKey)
		}

		resp, err := ms.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrProviderFailure, ctx.Err()))
			}
			utils.ErrorLogger.WithFields(logrus.Fields{
				"method":  method,
				"path":    path,
				"attempt": attempt,
			}).Warnf("mercadopago transport error: %v", err)
			return fmt.Errorf("%w: %v", ErrProviderFailure, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: read body: %v", ErrProviderFailure, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %s %s returned %d", ErrProviderAuth, method, path, resp.StatusCode))
		case resp.StatusCode == http.StatusBadGateway ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout:
			utils.ErrorLogger.WithFields(logrus.Fields{
				"method":  method,
				"path":    path,
				"attempt": attempt,
				"status":  resp.StatusCode,
			}).Warn("mercadopago temporarily unavailable")
			return fmt.Errorf("%w: %s %s returned %d", ErrProviderFailure, method, path, resp.StatusCode)
		case resp.StatusCode >= 500:
			return backoff.Permanent(fmt.Errorf("%w: %s %s returned %d", ErrProviderFailure, method, path, resp.StatusCode))
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: %s %s returned %d: %s", ErrProviderRejected, method, path, resp.StatusCode, truncate(body, 300)))
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: decode response: %v", ErrProviderFailure, err))
			}
		}
		return nil
	}

	return backoff.Retry(op, ms.newBackOff(ctx))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ValidateWebhookSignature checks the x-signature header ("ts=...,v1=...") against
// the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func ValidateWebhookSignature(secret, xSignature, xRequestID, dataID string) bool {
	if secret == "" {
		return true
	}
	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), xRequestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1))
}

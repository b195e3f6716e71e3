package services_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mesa-qr-orders/services"
)

func newTestMercadoPago(t *testing.T, handler http.HandlerFunc) *services.MercadoPagoService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return services.NewMercadoPagoService(services.MercadoPagoConfig{
		BaseURL:         srv.URL,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	})
}

var testCred = services.Credential{AccessToken: "TEST-123"}

func TestGetPaymentInfo(t *testing.T) {
	mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/123456", r.URL.Path)
		assert.Equal(t, "Bearer TEST-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":123456,"status":"approved","external_reference":"order-1","transaction_amount":12.5}`))
	})

	info, err := mp.GetPaymentInfo(context.Background(), testCred, "123456")
	require.NoError(t, err)
	assert.Equal(t, "123456", info.ID)
	assert.Equal(t, "approved", info.Status)
	assert.Equal(t, "order-1", info.ExternalReference)
	assert.True(t, info.TransactionAmount.Equal(decimal.RequireFromString("12.5")))
}

func TestGetPaymentInfoEscapesPaymentID(t *testing.T) {
	mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/1%2Frefunds%3Fx=1", r.URL.EscapedPath())
		assert.Empty(t, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"status":"pending"}`))
	})

	_, err := mp.GetPaymentInfo(context.Background(), testCred, "1/refunds?x=1")
	require.NoError(t, err)
}

func TestRetriesOnServiceUnavailable(t *testing.T) {
	var calls int32
	keys := make(chan string, 3)
	mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-Idempotency-Key")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.test/init"}`))
	})

	pref, err := mp.CreatePreference(context.Background(), testCred, services.PreferenceRequest{
		ExternalReference: "order-1",
		Items:             []services.PreferenceItem{{ID: "1", Title: "Empanada", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	close(keys)
	var seen []string
	for k := range keys {
		seen = append(seen, k)
	}
	require.Len(t, seen, 3)
	assert.NotEmpty(t, seen[0])
	assert.Equal(t, seen[0], seen[1], "retries reuse the idempotency key")
	assert.Equal(t, seen[0], seen[2])
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := mp.GetPaymentInfo(context.Background(), testCred, "1")
	assert.ErrorIs(t, err, services.ErrProviderFailure)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "one attempt plus two retries")
}

func TestNoRetryOnClientErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:        services.ErrProviderAuth,
		http.StatusForbidden:           services.ErrProviderAuth,
		http.StatusBadRequest:          services.ErrProviderRejected,
		http.StatusNotFound:            services.ErrProviderRejected,
		http.StatusInternalServerError: services.ErrProviderFailure,
	}
	for code, want := range cases {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls int32
			mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(code)
				w.Write([]byte(`{"message":"nope"}`))
			})

			_, err := mp.GetPaymentInfo(context.Background(), testCred, "1")
			assert.ErrorIs(t, err, want)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestEmptyAccessToken(t *testing.T) {
	mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := mp.GetPaymentInfo(context.Background(), services.Credential{}, "1")
	assert.ErrorIs(t, err, services.ErrProviderAuth)
}

func TestRefundPayment(t *testing.T) {
	mp := newTestMercadoPago(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments/77/refunds", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Empty(t, body, "nil amount refunds everything")
		w.Write([]byte(`{"id":9001,"payment_id":77,"amount":7,"status":"approved"}`))
	})

	refund, err := mp.RefundPayment(context.Background(), testCred, "77", nil)
	require.NoError(t, err)
	assert.Equal(t, "9001", refund.ID)
	assert.Equal(t, "77", refund.PaymentID)
}

func sign(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhookSignature(t *testing.T) {
	secret := "whsec"
	v1 := sign(secret, "id:abc123;request-id:req-1;ts:1700000000;")
	header := "ts=1700000000,v1=" + v1

	assert.True(t, services.ValidateWebhookSignature(secret, header, "req-1", "ABC123"))
	assert.False(t, services.ValidateWebhookSignature(secret, header, "req-2", "ABC123"))
	assert.False(t, services.ValidateWebhookSignature("other", header, "req-1", "ABC123"))
	assert.False(t, services.ValidateWebhookSignature(secret, "ts=1700000000", "req-1", "ABC123"))
	assert.False(t, services.ValidateWebhookSignature(secret, "", "req-1", "ABC123"))
	assert.True(t, services.ValidateWebhookSignature("", "", "", ""), "no secret configured")
}

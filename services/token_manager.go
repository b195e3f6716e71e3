package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

const tokenBytes = 32

// TokenManager issues and checks the per-table QR session tokens.
type TokenManager struct {
	store      TableSessionStore
	defaultTTL time.Duration
	now        func() time.Time
}

type Session struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type TokenInfo struct {
	HasToken  bool       `json:"has_token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsExpired bool       `json:"is_expired"`
}

func NewTokenManager(store TableSessionStore, defaultTTL time.Duration) *TokenManager {
	return &TokenManager{
		store:      store,
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock mengganti sumber waktu, dipakai di test.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

func newRandomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (m *TokenManager) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return m.defaultTTL
	}
	return ttl
}

// Issue replaces whatever token the table had with a fresh one.
func (m *TokenManager) Issue(ctx context.Context, mesaID, branchID string, ttl time.Duration) (string, error) {
	token, err := newRandomToken()
	if err != nil {
		return "", err
	}
	expiresAt := m.now().Add(m.ttlOrDefault(ttl))

	ok, err := m.store.UpdateToken(ctx, mesaID, branchID, token, expiresAt)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: mesa %s in branch %s", ErrNotFound, mesaID, branchID)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"mesa_id":    mesaID,
		"branch_id":  branchID,
		"expires_at": expiresAt,
	}).Info("table token issued")
	return token, nil
}

func (m *TokenManager) Renew(ctx context.Context, mesaID, branchID string, ttl time.Duration) (string, error) {
	return m.Issue(ctx, mesaID, branchID, ttl)
}

// Validate never returns an error: any failure to prove validity is false.
func (m *TokenManager) Validate(ctx context.Context, mesaID, branchID, token string) bool {
	if token == "" {
		return false
	}
	row, err := m.store.Find(ctx, mesaID, branchID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"mesa_id":   mesaID,
				"branch_id": branchID,
			}).Warnf("token lookup failed: %v", err)
		}
		return false
	}
	if !row.IsActive || row.Token == "" || row.TokenExpiresAt == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(row.Token), []byte(token)) != 1 {
		return false
	}

	now := m.now()
	if !now.Before(*row.TokenExpiresAt) {
		if err := m.store.ExpireToken(ctx, mesaID, branchID, token, now); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"mesa_id":   mesaID,
				"branch_id": branchID,
			}).Warnf("failed to clear expired token: %v", err)
		}
		return false
	}
	return true
}

// Invalidate overwrites the token so any copy held by a customer stops working.
func (m *TokenManager) Invalidate(ctx context.Context, mesaID, branchID string) error {
	token, err := newRandomToken()
	if err != nil {
		return err
	}
	ok, err := m.store.UpdateToken(ctx, mesaID, branchID, token, m.now())
	if err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: mesa %s in branch %s", ErrNotFound, mesaID, branchID)
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"mesa_id":   mesaID,
		"branch_id": branchID,
	}).Info("table token invalidated")
	return nil
}

func (m *TokenManager) GetOrCreateSession(ctx context.Context, mesaID, branchID string, ttl time.Duration) (*Session, error) {
	row, err := m.store.Find(ctx, mesaID, branchID)
	if err != nil {
		return nil, err
	}
	if !row.IsActive {
		return nil, fmt.Errorf("%w: mesa %s is not active", ErrInvalidState, mesaID)
	}

	now := m.now()
	if row.Token != "" && row.TokenExpiresAt != nil && now.Before(*row.TokenExpiresAt) {
		return &Session{
			Token:     row.Token,
			ExpiresIn: int64(row.TokenExpiresAt.Sub(now).Seconds()),
		}, nil
	}

	ttl = m.ttlOrDefault(ttl)
	token, err := m.Issue(ctx, mesaID, branchID, ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresIn: int64(ttl.Seconds())}, nil
}

func (m *TokenManager) TokenInfo(ctx context.Context, mesaID, branchID string) (*TokenInfo, error) {
	row, err := m.store.Find(ctx, mesaID, branchID)
	if err != nil {
		return nil, err
	}
	info := &TokenInfo{
		HasToken:  row.Token != "",
		ExpiresAt: row.TokenExpiresAt,
		IsExpired: true,
	}
	if row.TokenExpiresAt != nil {
		info.IsExpired = !m.now().Before(*row.TokenExpiresAt)
	}
	return info, nil
}

// CleanupExpired clears every token past its expiry and returns how many rows changed.
func (m *TokenManager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.ExpireStale(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired tokens: %w", err)
	}
	if n > 0 {
		utils.InfoLogger.Infof("cleared %d expired table tokens", n)
	}
	return n, nil
}

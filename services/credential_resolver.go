package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

const DefaultMaxConfigHops = 5

type Credential struct {
	AccessToken   string
	WebhookSecret string
	Source        string
}

// CredentialResolver finds the provider credentials that apply to a (restaurant, branch).
type CredentialResolver struct {
	store    PaymentConfigStore
	fallback Credential
	maxHops  int
}

func NewCredentialResolver(store PaymentConfigStore, fallback Credential, maxHops int) *CredentialResolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxConfigHops
	}
	fallback.Source = "global"
	return &CredentialResolver{store: store, fallback: fallback, maxHops: maxHops}
}

func (r *CredentialResolver) Fallback() Credential {
	return r.fallback
}

// EffectiveBranch follows mp_config_source_branch_id links. A revisit or more than maxHops links is ErrCycleDetected.
func (r *CredentialResolver) EffectiveBranch(ctx context.Context, branchID string) (string, error) {
	visited := map[string]bool{}
	current := branchID
	for hops := 0; ; hops++ {
		if visited[current] {
			return "", fmt.Errorf("%w: branch %s revisited from %s", ErrCycleDetected, current, branchID)
		}
		visited[current] = true

		source, err := r.store.BranchConfigSource(ctx, current)
		if errors.Is(err, ErrNotFound) {
			return current, nil
		}
		if err != nil {
			return "", err
		}
		if source == nil || *source == "" || *source == current {
			return current, nil
		}
		if hops >= r.maxHops {
			return "", fmt.Errorf("%w: more than %d hops from branch %s", ErrCycleDetected, r.maxHops, branchID)
		}
		current = *source
	}
}

// Resolve: branch config, then restaurant-wide config, then the global credential.
func (r *CredentialResolver) Resolve(ctx context.Context, restaurantID, branchID string) (Credential, error) {
	if branchID != "" {
		effective, err := r.EffectiveBranch(ctx, branchID)
		if err != nil {
			return Credential{}, err
		}
		cfg, err := r.store.FindConfig(ctx, restaurantID, &effective)
		if err == nil {
			return Credential{
				AccessToken:   cfg.AccessToken,
				WebhookSecret: cfg.WebhookSecret,
				Source:        "branch:" + effective,
			}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Credential{}, err
		}
	}

	cfg, err := r.store.FindConfig(ctx, restaurantID, nil)
	if err == nil {
		return Credential{
			AccessToken:   cfg.AccessToken,
			WebhookSecret: cfg.WebhookSecret,
			Source:        "restaurant:" + restaurantID,
		}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Credential{}, err
	}

	if r.fallback.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: no credentials for restaurant %s", ErrProviderAuth, restaurantID)
	}
	utils.ErrorLogger.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"branch_id":     branchID,
	}).Warn("no tenant payment config, using global MercadoPago credentials")
	return r.fallback, nil
}

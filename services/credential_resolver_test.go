package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mesa-qr-orders/database"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"gorm.io/gorm"
)

func seedBranch(t *testing.T, db *gorm.DB, id, source string) {
	t.Helper()
	branch := models.Branch{ID: id, RestaurantID: "r1", Name: id}
	if source != "" {
		branch.MPConfigSourceBranchID = &source
	}
	require.NoError(t, db.Create(&branch).Error)
}

func seedConfig(t *testing.T, db *gorm.DB, restaurant, branch, token string) {
	t.Helper()
	cfg := models.PaymentConfig{RestaurantID: restaurant, AccessToken: token, WebhookSecret: token + "-secret", Enabled: true}
	if branch != "" {
		cfg.BranchID = &branch
	}
	require.NoError(t, db.Create(&cfg).Error)
}

func TestEffectiveBranch(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "centro", "")
	seedBranch(t, db, "norte", "centro")
	seedBranch(t, db, "sur", "norte")
	seedBranch(t, db, "self", "self")
	r := services.NewCredentialResolver(database.NewPaymentConfigs(db), services.Credential{}, 0)
	ctx := context.Background()

	got, err := r.EffectiveBranch(ctx, "sur")
	require.NoError(t, err)
	assert.Equal(t, "centro", got)

	got, err = r.EffectiveBranch(ctx, "self")
	require.NoError(t, err)
	assert.Equal(t, "self", got)

	got, err = r.EffectiveBranch(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "unknown", got)
}

func TestEffectiveBranchCycle(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "a", "b")
	seedBranch(t, db, "b", "c")
	seedBranch(t, db, "c", "a")
	r := services.NewCredentialResolver(database.NewPaymentConfigs(db), services.Credential{}, 0)

	_, err := r.EffectiveBranch(context.Background(), "a")
	assert.ErrorIs(t, err, services.ErrCycleDetected)
}

func TestEffectiveBranchHopLimit(t *testing.T) {
	db := setupTestDB(t)
	chain := []string{"b0", "b1", "b2", "b3", "b4", "b5", "b6"}
	for i, id := range chain {
		source := ""
		if i+1 < len(chain) {
			source = chain[i+1]
		}
		seedBranch(t, db, id, source)
	}
	store := database.NewPaymentConfigs(db)

	_, err := services.NewCredentialResolver(store, services.Credential{}, 0).EffectiveBranch(context.Background(), "b0")
	assert.ErrorIs(t, err, services.ErrCycleDetected)

	got, err := services.NewCredentialResolver(store, services.Credential{}, 10).EffectiveBranch(context.Background(), "b0")
	require.NoError(t, err)
	assert.Equal(t, "b6", got)
}

func TestResolveOrder(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "centro", "")
	seedBranch(t, db, "norte", "centro")
	seedBranch(t, db, "sur", "")
	seedConfig(t, db, "r1", "centro", "centro-token")
	seedConfig(t, db, "r1", "", "r1-token")
	ctx := context.Background()

	r := services.NewCredentialResolver(database.NewPaymentConfigs(db), services.Credential{AccessToken: "global-token"}, 0)

	cred, err := r.Resolve(ctx, "r1", "norte")
	require.NoError(t, err)
	assert.Equal(t, "centro-token", cred.AccessToken)
	assert.Equal(t, "centro-token-secret", cred.WebhookSecret)
	assert.Equal(t, "branch:centro", cred.Source)

	cred, err = r.Resolve(ctx, "r1", "sur")
	require.NoError(t, err)
	assert.Equal(t, "r1-token", cred.AccessToken)

	cred, err = r.Resolve(ctx, "r2", "sur")
	require.NoError(t, err)
	assert.Equal(t, "global-token", cred.AccessToken)
	assert.Equal(t, "global", cred.Source)

	empty := services.NewCredentialResolver(database.NewPaymentConfigs(db), services.Credential{}, 0)
	_, err = empty.Resolve(ctx, "r2", "sur")
	assert.ErrorIs(t, err, services.ErrProviderAuth)
}

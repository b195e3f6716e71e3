package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mesa-qr-orders/services"
)

func TestTokenSweeperClearsExpired(t *testing.T) {
	tm, store, clock := newTokenManager(t)
	ctx := context.Background()

	_, err := tm.Issue(ctx, "m1", "b1", time.Minute)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	sweeper := services.NewTokenSweeper(tm, 20*time.Millisecond)
	require.NoError(t, sweeper.Start())
	defer sweeper.Stop()

	assert.Eventually(t, func() bool {
		row, err := store.Find(ctx, "m1", "b1")
		return err == nil && row.Token == ""
	}, 2*time.Second, 20*time.Millisecond)
}

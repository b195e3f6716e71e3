package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

// TokenSweeper clears expired table tokens on a fixed interval.
type TokenSweeper struct {
	tokens    *TokenManager
	interval  time.Duration
	scheduler gocron.Scheduler
}

func NewTokenSweeper(tokens *TokenManager, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TokenSweeper{tokens: tokens, interval: interval}
}

func (ts *TokenSweeper) Start() error {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create token sweeper scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(ts.interval),
		gocron.NewTask(ts.sweep),
		gocron.WithName("expired-table-tokens"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule token sweep: %w", err)
	}

	ts.scheduler = s
	s.Start()
	utils.InfoLogger.Printf("Token sweeper started (every %s)", ts.interval)
	return nil
}

func (ts *TokenSweeper) Stop() {
	if ts.scheduler == nil {
		return
	}
	if err := ts.scheduler.Shutdown(); err != nil {
		utils.ErrorLogger.Errorf("token sweeper shutdown: %v", err)
	}
}

func (ts *TokenSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.interval)
	defer cancel()
	if _, err := ts.tokens.CleanupExpired(ctx); err != nil {
		utils.ErrorLogger.Errorf("token sweep failed: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/mesa-qr-orders/config"
	"github.com/yeremiapane/mesa-qr-orders/database"
	"github.com/yeremiapane/mesa-qr-orders/kds"
	"github.com/yeremiapane/mesa-qr-orders/router"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
	"gorm.io/gorm"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			return database.AutoMigrate(db)
		},
	}
}

func sweepTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-tokens",
		Short: "Clear every expired table token once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			tokens := services.NewTokenManager(database.NewTableSessions(db), cfg.TableTokenTTL)
			n, err := tokens.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			utils.InfoLogger.Printf("Cleared %d expired tokens", n)
			return nil
		},
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	utils.SetLevel(cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := kds.NewHub()
	var events services.EventPublisher = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		relay := kds.NewRedisRelay(rdb, cfg.RedisChannel, hub)
		go func() {
			if err := relay.Run(ctx); err != nil {
				utils.ErrorLogger.Errorf("redis relay stopped: %v", err)
			}
		}()
		events = relay
	}

	tableStore := database.NewTableSessions(db)
	orderRepo := database.NewOrders(db)

	tokens := services.NewTokenManager(tableStore, cfg.TableTokenTTL)
	orders := services.NewOrderService(orderRepo, tableStore, tokens, database.NewMenus(db), events, cfg.MenuLookupTimeout)
	waiter := services.NewWaiterService(database.NewWaiterCalls(db), tokens, orders, events)

	mp := services.NewMercadoPagoService(services.MercadoPagoConfig{
		BaseURL:    cfg.MPBaseURL,
		Timeout:    cfg.MPTimeout,
		MaxRetries: uint64(cfg.MPMaxRetries),
		CurrencyID: cfg.MPCurrencyID,
	})
	if err := mp.ValidateConfig(); err != nil {
		return err
	}
	creds := services.NewCredentialResolver(database.NewPaymentConfigs(db), services.Credential{
		AccessToken:   cfg.MPAccessToken,
		WebhookSecret: cfg.MPWebhookSecret,
	}, cfg.MPMaxConfigHops)
	payments := services.NewPaymentService(orders, orderRepo, mp, creds, services.PaymentURLs{
		PublicBaseURL: cfg.PublicBaseURL,
		PreferenceTTL: cfg.MPPreferenceTTL,
	})

	sweeper := services.NewTokenSweeper(tokens, cfg.TokenSweepInterval)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	r := router.SetupRouter(router.Dependencies{
		Tokens:      tokens,
		Orders:      orders,
		Waiter:      waiter,
		Payments:    payments,
		Hub:         hub,
		JWT:         utils.NewJWTManager(cfg.JWTSecret, 24*time.Hour),
		FrontendURL: cfg.FrontendURL,
		CORSOrigin:  cfg.CORSOrigin,
		Release:     cfg.GinMode == "release",
		RateLimit:   50,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.ErrorLogger.Errorf("shutdown: %v", err)
		}
	}()

	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

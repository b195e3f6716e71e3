package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	JWTSecret  string
	CORSOrigin string

	TableTokenTTL      time.Duration
	TokenSweepInterval time.Duration
	MenuLookupTimeout  time.Duration

	PublicBaseURL string
	FrontendURL   string

	MPAccessToken   string
	MPWebhookSecret string
	MPBaseURL       string
	MPTimeout       time.Duration
	MPMaxRetries    int
	MPCurrencyID    string
	MPPreferenceTTL time.Duration
	MPMaxConfigHops int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CHANNEL", "mesa-qr:orders-updated")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("TABLE_TOKEN_TTL", "30m")
	v.SetDefault("TOKEN_SWEEP_INTERVAL", "5m")
	v.SetDefault("MENU_LOOKUP_TIMEOUT", "3s")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("MP_ACCESS_TOKEN", "")
	v.SetDefault("MP_WEBHOOK_SECRET", "")
	v.SetDefault("MP_BASE_URL", "https://api.mercadopago.com")
	v.SetDefault("MP_TIMEOUT", "10s")
	v.SetDefault("MP_MAX_RETRIES", 2)
	v.SetDefault("MP_CURRENCY_ID", "ARS")
	v.SetDefault("MP_PREFERENCE_TTL", "30m")
	v.SetDefault("MP_MAX_CONFIG_HOPS", 5)
}

// Load membaca .env (jika ada) lalu environment variable.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found, using environment only")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:               v.GetString("PORT"),
		GinMode:            v.GetString("GIN_MODE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:              v.GetString("DB_DSN"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisChannel:       v.GetString("REDIS_CHANNEL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSOrigin:         v.GetString("CORS_ORIGIN"),
		TableTokenTTL:      v.GetDuration("TABLE_TOKEN_TTL"),
		TokenSweepInterval: v.GetDuration("TOKEN_SWEEP_INTERVAL"),
		MenuLookupTimeout:  v.GetDuration("MENU_LOOKUP_TIMEOUT"),
		PublicBaseURL:      v.GetString("PUBLIC_BASE_URL"),
		FrontendURL:        v.GetString("FRONTEND_URL"),
		MPAccessToken:      v.GetString("MP_ACCESS_TOKEN"),
		MPWebhookSecret:    v.GetString("MP_WEBHOOK_SECRET"),
		MPBaseURL:          v.GetString("MP_BASE_URL"),
		MPTimeout:          v.GetDuration("MP_TIMEOUT"),
		MPMaxRetries:       v.GetInt("MP_MAX_RETRIES"),
		MPCurrencyID:       v.GetString("MP_CURRENCY_ID"),
		MPPreferenceTTL:    v.GetDuration("MP_PREFERENCE_TTL"),
		MPMaxConfigHops:    v.GetInt("MP_MAX_CONFIG_HOPS"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (mysql, postgres, sqlite)", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.TableTokenTTL <= 0 {
		return fmt.Errorf("TABLE_TOKEN_TTL must be positive")
	}
	if c.MPMaxRetries < 0 {
		return fmt.Errorf("MP_MAX_RETRIES must not be negative")
	}
	if c.MPAccessToken == "" {
		utils.ErrorLogger.Warn("MP_ACCESS_TOKEN is empty; only tenants with their own payment config can take payments")
	}
	return nil
}

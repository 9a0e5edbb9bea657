package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Config carries all runtime configuration. Values come from the environment,
// with a .env file loaded first when present.
type Config struct {
	Env          string
	Port         string
	DatabasePath string

	JWTSecret   string
	SweepSecret string

	GatewayURL           string
	GatewayAPIKey        string
	GatewayWebhookSecret string
	GatewayTimeout       time.Duration

	// DepositAmount is the fixed pay-to-bid fee charged per (user, auction).
	DepositAmount   decimal.Decimal
	DepositCurrency string

	// DepositBypass marks deposits PAID without a gateway charge. Refused in
	// production regardless of the flag.
	DepositBypass bool

	// DepositRequiredSince is the cutover instant of the deposit requirement.
	// Users who bid on an auction before it are exempt from the gate. Zero
	// means no one is grandfathered.
	DepositRequiredSince time.Time

	SweepInterval time.Duration
}

// Load reads configuration from the environment. Missing optional values get
// development defaults; secrets are only defaulted outside production.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := &Config{
		Env:                  getEnv("ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		DatabasePath:         getEnv("DATABASE_PATH", "auction.db"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		SweepSecret:          os.Getenv("SWEEP_SECRET"),
		GatewayURL:           getEnv("GATEWAY_URL", "http://localhost:9090"),
		GatewayAPIKey:        os.Getenv("GATEWAY_API_KEY"),
		GatewayWebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		DepositCurrency:      getEnv("DEPOSIT_CURRENCY", "USD"),
	}

	if cfg.IsProduction() {
		if cfg.JWTSecret == "" || cfg.SweepSecret == "" || cfg.GatewayWebhookSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET, SWEEP_SECRET and GATEWAY_WEBHOOK_SECRET are required in production")
		}
	} else {
		cfg.JWTSecret = defaultString(cfg.JWTSecret, "auction-dev-secret")
		cfg.SweepSecret = defaultString(cfg.SweepSecret, "sweep-dev-secret")
		cfg.GatewayWebhookSecret = defaultString(cfg.GatewayWebhookSecret, "webhook-dev-secret")
	}

	amount, err := decimal.NewFromString(getEnv("DEPOSIT_AMOUNT", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEPOSIT_AMOUNT: %w", err)
	}
	cfg.DepositAmount = amount

	cfg.GatewayTimeout, err = parseDuration("GATEWAY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.SweepInterval, err = parseDuration("SWEEP_INTERVAL", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	if raw := os.Getenv("DEPOSIT_REQUIRED_SINCE"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DEPOSIT_REQUIRED_SINCE: %w", err)
		}
		cfg.DepositRequiredSince = since
	}

	if raw := os.Getenv("DEPOSIT_BYPASS"); raw != "" {
		bypass, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DEPOSIT_BYPASS: %w", err)
		}
		cfg.DepositBypass = bypass
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production configuration.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

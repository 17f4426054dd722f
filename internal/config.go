package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL of the web app (for Stripe return links)
	BaseURL string

	// Usage record storage
	UsageStore   string // "postgres", "redis" or "memory"
	RedisURL     string
	StoreTimeout time.Duration

	// Expired session cleanup
	SessionCleanupInterval time.Duration

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Per-user limit on generation requests, independent of plan quotas
	GenerateRateLimit  int
	GenerateRateWindow time.Duration

	// Stripe Billing Configuration
	// In development, billing endpoints answer 501 if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for the paid plans
	StripeProMonthlyPriceID      string
	StripeProYearlyPriceID       string
	StripeBusinessMonthlyPriceID string
	StripeBusinessYearlyPriceID  string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsProduction reports whether secure cookies and HSTS should be used.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// BillingEnabled reports whether Stripe is configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:3000"),

		UsageStore:   getEnv("USAGE_STORE", "postgres"),
		RedisURL:     getEnv("REDIS_URL", ""),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 2*time.Second),

		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		GenerateRateLimit:  getEnvInt("GENERATE_RATE_LIMIT", 20),
		GenerateRateWindow: getEnvDuration("GENERATE_RATE_WINDOW", time.Minute),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeProMonthlyPriceID:      getEnv("STRIPE_PRO_MONTHLY_PRICE_ID", ""),
		StripeProYearlyPriceID:       getEnv("STRIPE_PRO_YEARLY_PRICE_ID", ""),
		StripeBusinessMonthlyPriceID: getEnv("STRIPE_BUSINESS_MONTHLY_PRICE_ID", ""),
		StripeBusinessYearlyPriceID:  getEnv("STRIPE_BUSINESS_YEARLY_PRICE_ID", ""),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required: sessions and users live in Postgres whatever the usage store.
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.UsageStore {
	case "postgres", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when USAGE_STORE is 'redis'")
		}
	default:
		return fmt.Errorf("USAGE_STORE must be one of 'postgres', 'redis' or 'memory', got: %s", c.UsageStore)
	}
	if c.UsageStore == "memory" && c.IsProduction() {
		return fmt.Errorf("USAGE_STORE 'memory' is not allowed in production")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got: %s", c.StoreTimeout)
	}

	if c.AIProvider == "anthropic" {
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	} else if c.AIProvider != "mock" {
		return fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", c.AIProvider)
	}

	if c.GenerateRateLimit < 1 || c.GenerateRateWindow <= 0 {
		return fmt.Errorf("GENERATE_RATE_LIMIT and GENERATE_RATE_WINDOW must be positive")
	}

	if c.BillingEnabled() && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

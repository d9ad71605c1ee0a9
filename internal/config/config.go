package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port    string
	BaseURL string

	StripeSecretKey string
	StripePublicKey string

	ExpirationWindow time.Duration
	SweepInterval    time.Duration
	GatewayTimeout   time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	AllowedOrigins []string
}

// Load reads configuration from the environment (a .env file is picked up
// by the godotenv autoload import). Stripe keys are the only hard
// requirement; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             envOr("PORT", "8000"),
		BaseURL:          strings.TrimRight(envOr("PAYLINK_BASE_URL", "http://localhost:8000"), "/"),
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		StripePublicKey:  os.Getenv("STRIPE_PUBLIC_KEY"),
		ExpirationWindow: time.Duration(envIntOr("PAYLINK_EXPIRATION_MINUTES", 5)) * time.Minute,
		SweepInterval:    time.Duration(envIntOr("PAYLINK_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		GatewayTimeout:   time.Duration(envIntOr("PAYLINK_GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,
		RateLimitWindow:  time.Duration(envIntOr("PAYLINK_RATE_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitMax:     envIntOr("PAYLINK_RATE_MAX", 60),
		AllowedOrigins:   splitList(envOr("PAYLINK_CORS_ORIGINS", "*")),
	}

	if cfg.StripeSecretKey == "" || cfg.StripePublicKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY and STRIPE_PUBLIC_KEY must be set")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port       int    `yaml:"port"`
	SuccessURL string `yaml:"success_url"` // card checkout return URLs
	CancelURL  string `yaml:"cancel_url"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

type MobileMoneyProviderConfig struct {
	MerchantID   string `yaml:"merchant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`
	Currency     string `yaml:"currency"`
	Country      string `yaml:"country"` // Airtel only
}

type MobileMoneyConfig struct {
	DefaultProvider string                    `yaml:"default_provider"` // orange_money|airtel_money
	WebhookToken    string                    `yaml:"webhook_token"`    // optional shared secret checked on inbound webhooks
	Orange          MobileMoneyProviderConfig `yaml:"orange"`
	Airtel          MobileMoneyProviderConfig `yaml:"airtel"`
}

type PaymentConfig struct {
	Currency    string            `yaml:"currency"` // billing currency for new subscriptions
	Stripe      StripeConfig      `yaml:"stripe"`
	MobileMoney MobileMoneyConfig `yaml:"mobile_money"`
}

type SecurityConfig struct {
	AdminAPIKey string        `yaml:"admin_api_key"`
	JWTSecret   string        `yaml:"jwt_secret"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Security   SecurityConfig   `yaml:"security"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML config and applies env-var overrides for secrets
// so credentials never have to live in the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// env overrides
	overrideEnv(&cfg.Payment.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	overrideEnv(&cfg.Payment.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	overrideEnv(&cfg.Payment.MobileMoney.Orange.ClientSecret, "ORANGE_CLIENT_SECRET")
	overrideEnv(&cfg.Payment.MobileMoney.Airtel.ClientSecret, "AIRTEL_CLIENT_SECRET")
	overrideEnv(&cfg.Payment.MobileMoney.WebhookToken, "MOBILE_MONEY_WEBHOOK_TOKEN")
	overrideEnv(&cfg.Security.AdminAPIKey, "ADMIN_API_KEY")
	overrideEnv(&cfg.Security.JWTSecret, "JWT_SECRET")

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "USD"
	}
	if cfg.Payment.MobileMoney.DefaultProvider == "" {
		cfg.Payment.MobileMoney.DefaultProvider = "orange_money"
	}
	if cfg.Security.SessionTTL <= 0 {
		cfg.Security.SessionTTL = 30 * time.Minute
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func overrideEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public origin used in provider redirect URLs
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir"`
	OutputDir      string `yaml:"output_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type ConverterConfig struct {
	Binary  string        `yaml:"binary"` // unoconv/soffice path; empty selects the noop renderer in dev
	Timeout time.Duration `yaml:"timeout"`
}

type PricingConfig struct {
	PricePerPage  string `yaml:"price_per_page"` // decimal string, e.g. "0.10"
	FreePageLimit int    `yaml:"free_page_limit"`
	Currency      string `yaml:"currency"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

type CoinbaseConfig struct {
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type ReconcileConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	Batch      int           `yaml:"batch"`
}

type PaymentsConfig struct {
	IntentTTL   time.Duration   `yaml:"intent_ttl"`
	PollTimeout time.Duration   `yaml:"poll_timeout"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	Stripe      StripeConfig    `yaml:"stripe"`
	Coinbase    CoinbaseConfig  `yaml:"coinbase"`
}

type RateLimitConfig struct {
	UploadPerMinute int `yaml:"upload_per_minute"`
}

type WorkerConfig struct {
	MetricWorkers int `yaml:"metric_workers"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Converter ConverterConfig `yaml:"converter"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Payments  PaymentsConfig  `yaml:"payments"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults, and validates
// the handful of settings the service cannot run without. Flags stay in
// cmd; this package only sees their results.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "uploads"
	}
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "pdfs"
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		cfg.Storage.MaxUploadBytes = 10 << 20
	}
	if cfg.Converter.Timeout <= 0 {
		cfg.Converter.Timeout = 2 * time.Minute
	}
	if cfg.Pricing.PricePerPage == "" {
		cfg.Pricing.PricePerPage = "0.10"
	}
	if cfg.Pricing.FreePageLimit <= 0 {
		cfg.Pricing.FreePageLimit = 50
	}
	if cfg.Pricing.Currency == "" {
		cfg.Pricing.Currency = "USD"
	}
	if cfg.Payments.IntentTTL <= 0 {
		cfg.Payments.IntentTTL = 24 * time.Hour
	}
	if cfg.Payments.PollTimeout <= 0 {
		cfg.Payments.PollTimeout = 15 * time.Second
	}
	if cfg.Payments.Reconcile.Interval <= 0 {
		cfg.Payments.Reconcile.Interval = time.Minute
	}
	if cfg.Payments.Reconcile.StaleAfter <= 0 {
		cfg.Payments.Reconcile.StaleAfter = 10 * time.Minute
	}
	if cfg.Payments.Reconcile.Batch <= 0 {
		cfg.Payments.Reconcile.Batch = 200
	}
	if cfg.RateLimit.UploadPerMinute <= 0 {
		cfg.RateLimit.UploadPerMinute = 10
	}
	if cfg.Worker.MetricWorkers <= 0 {
		cfg.Worker.MetricWorkers = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required outside dev mode")
	}
	if _, err := decimal.NewFromString(cfg.Pricing.PricePerPage); err != nil {
		return nil, fmt.Errorf("pricing.price_per_page: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

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

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServerConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"` // HMAC secret for admin tokens
	JWTTTL    time.Duration `yaml:"jwt_ttl"`
}

type PhonePeConfig struct {
	MerchantID      string `yaml:"merchant_id"`
	SaltKey         string `yaml:"salt_key"`
	SaltIndex       string `yaml:"salt_index"`
	RedirectURL     string `yaml:"redirect_url"`
	WebhookUsername string `yaml:"webhook_username"`
	WebhookPassword string `yaml:"webhook_password"`
	Sandbox         bool   `yaml:"sandbox"`
}

type PaymentConfig struct {
	PhonePe PhonePeConfig `yaml:"phonepe"`
}

type CheckoutConfig struct {
	RenewalWindowDays   int           `yaml:"renewal_window_days"`   // re-purchase allowed this close to expiry
	OrderTTL            time.Duration `yaml:"order_ttl"`             // how long an initiated order stays reusable
	Stacking            *bool         `yaml:"stacking"`              // append new terms after the latest active term; on unless set to false
	LifetimeDaysCeiling int           `yaml:"lifetime_days_ceiling"` // duration at/above which a plan counts as lifetime
}

type PollConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	MinAge    time.Duration `yaml:"min_age"` // how old an order must be before polling it
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Poll     PollConfig     `yaml:"poll"`

	Runtime RuntimeConfig `yaml:"-"`
}

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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.JWTTTL <= 0 {
		cfg.Server.JWTTTL = 30 * time.Minute
	}
	if cfg.Checkout.RenewalWindowDays <= 0 {
		cfg.Checkout.RenewalWindowDays = 7
	}
	if cfg.Checkout.OrderTTL <= 0 {
		cfg.Checkout.OrderTTL = 30 * time.Minute
	}
	if cfg.Checkout.LifetimeDaysCeiling <= 0 {
		cfg.Checkout.LifetimeDaysCeiling = 36500
	}
	if cfg.Checkout.Stacking == nil {
		on := true
		cfg.Checkout.Stacking = &on
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = time.Minute
	}
	if cfg.Poll.BatchSize <= 0 {
		cfg.Poll.BatchSize = 100
	}
	if cfg.Poll.MinAge <= 0 {
		cfg.Poll.MinAge = 2 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	// Webhook credentials must be set together or not at all; a half-set
	// pair silently disabling signature checks is a config error.
	pp := cfg.Payment.PhonePe
	if (pp.WebhookUsername == "") != (pp.WebhookPassword == "") {
		return nil, errors.New("payment.phonepe.webhook_username and webhook_password must both be set or both be empty")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

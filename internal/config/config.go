package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PHARMACY_PORT" default:"8080"`
	Env           string `envconfig:"PHARMACY_ENV" default:"dev"`
	LogLevel      string `envconfig:"PHARMACY_LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"PHARMACY_LOG_FORMAT" default:"json"`
	AllowedOrigin string `envconfig:"PHARMACY_ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	DatabaseURL   string `envconfig:"PHARMACY_DATABASE_URL"`
	RedisAddr     string `envconfig:"PHARMACY_REDIS_ADDR"`
	RedisPassword string `envconfig:"PHARMACY_REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"PHARMACY_REDIS_DB" default:"0"`

	UpstreamURL        string        `envconfig:"PHARMACY_UPSTREAM_URL" required:"true"`
	UpstreamTimeout    time.Duration `envconfig:"PHARMACY_UPSTREAM_TIMEOUT" default:"10s"`
	ServiceTokenSecret string        `envconfig:"PHARMACY_SERVICE_TOKEN_SECRET" required:"true"`
	ServiceTokenTTL    time.Duration `envconfig:"PHARMACY_SERVICE_TOKEN_TTL" default:"5m"`

	PaymentStatusTTL   time.Duration `envconfig:"PHARMACY_PAYMENT_STATUS_TTL" default:"30m"`
	FifoReportTTL      time.Duration `envconfig:"PHARMACY_FIFO_REPORT_TTL" default:"2m"`
	RateLimitPerMinute int           `envconfig:"PHARMACY_RATE_LIMIT_PER_MINUTE" default:"300"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.ServiceTokenSecret = strings.TrimSpace(cfg.ServiceTokenSecret)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if len(c.ServiceTokenSecret) < 32 {
		problems = append(problems, "PHARMACY_SERVICE_TOKEN_SECRET must be at least 32 characters")
	}
	if u, err := url.Parse(c.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "PHARMACY_UPSTREAM_URL must be an absolute URL")
	}
	if c.UpstreamTimeout <= 0 {
		problems = append(problems, "PHARMACY_UPSTREAM_TIMEOUT must be positive")
	}
	if c.PaymentStatusTTL <= 0 {
		problems = append(problems, "PHARMACY_PAYMENT_STATUS_TTL must be positive")
	}
	if c.FifoReportTTL < 0 {
		problems = append(problems, "PHARMACY_FIFO_REPORT_TTL must not be negative")
	}
	if c.RateLimitPerMinute < 1 {
		problems = append(problems, "PHARMACY_RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

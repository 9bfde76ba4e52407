package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=vienna port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=vienna port=5432 sslmode=disable"`
	JWTSecret   string `env:"JWT_SECRET"`
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Retail tables belong to the hosted database; only local setups migrate them.
	MigrateRetailSchema bool          `env:"MIGRATE_RETAIL_SCHEMA" envDefault:"false"`
	RPCTimeout          time.Duration `env:"RPC_TIMEOUT" envDefault:"10s"`

	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	DashboardCacheTTL time.Duration `env:"DASHBOARD_CACHE_TTL" envDefault:"60s"`
	CartTTL           time.Duration `env:"CART_TTL" envDefault:"12h"`

	PubSubProjectID string `env:"PUBSUB_PROJECT_ID"`
	PubSubTopic     string `env:"PUBSUB_TOPIC"`

	GCSBucket          string `env:"GCS_BUCKET"`
	GCSCredentialsJSON string `env:"GCS_CREDENTIALS_JSON"`
	ImageDir           string `env:"IMAGE_DIR" envDefault:"./item-images"`
	ImageBaseURL       string `env:"IMAGE_BASE_URL" envDefault:"/images"`

	PhoneRegion string `env:"PHONE_REGION" envDefault:"IQ"`

	DetectorURL     string        `env:"DETECTOR_URL" envDefault:"http://127.0.0.1:5000/detect"`
	DetectorTimeout time.Duration `env:"DETECTOR_TIMEOUT" envDefault:"15s"`
	FrameMaxWidth   int           `env:"FRAME_MAX_WIDTH" envDefault:"960"`
	NMSIoUThreshold float64       `env:"NMS_IOU_THRESHOLD" envDefault:"0.35"`
}

// Load reads an optional .env file and then the process environment.
// Warnings are returned for settings that still hold development defaults.
func Load() (*Config, []string, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Warnings(), nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.FrameMaxWidth <= 0 {
		return fmt.Errorf("FRAME_MAX_WIDTH must be positive, got %d", c.FrameMaxWidth)
	}
	if c.NMSIoUThreshold <= 0 || c.NMSIoUThreshold > 1 {
		return fmt.Errorf("NMS_IOU_THRESHOLD must be in (0,1], got %v", c.NMSIoUThreshold)
	}
	return nil
}

func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN uses the development default, set the hosted database connection string for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the development default, set your own domain for production")
	}
	return out
}

// AllowedOrigins returns the comma separated CORS origins trimmed and re-joined.
func (c *Config) AllowedOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

func (c *Config) RedisEnabled() bool  { return strings.TrimSpace(c.RedisAddr) != "" }
func (c *Config) PubSubEnabled() bool { return c.PubSubProjectID != "" && c.PubSubTopic != "" }

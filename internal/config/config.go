// Package config loads process configuration from the environment.
// An optional .env file in the working directory is read first; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	Env      string
	HTTPAddr string
	Storage  string

	Database Database
	Log      Log
	Orders   Orders
	Kafka    Kafka
	Outbox   Outbox
	Jobs     Jobs
	HTTP     HTTP

	TracingStdout bool
}

// Database configures the pgx pool.
type Database struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Log configures pkg/logger.
type Log struct {
	Level       string
	Development bool
}

// Orders holds the settlement and scheduling settings of the order service.
type Orders struct {
	Markup           decimal.Decimal
	AllocationPolicy string
	ScheduleOpening  string
	ScheduleClosing  string
}

// Kafka configures the notification publisher.
type Kafka struct {
	Brokers     string
	TopicOrders string
}

// Outbox configures the relay.
type Outbox struct {
	RelayInterval time.Duration
	RelayBatch    int
}

// Jobs configures background jobs.
type Jobs struct {
	// AutoCloseSpec is a cron spec with seconds, e.g. "0 */5 * * * *".
	AutoCloseSpec string
}

// HTTP configures the API surface.
type HTTP struct {
	RateLimitRPS       float64
	RateLimitBurst     int
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Missing keys take defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	l := loader{getenv: getenv}

	cfg := &Config{
		Env:      l.getEnv("APP_ENV", "development"),
		HTTPAddr: l.getEnv("HTTP_ADDR", ":8080"),
		Storage:  l.getEnv("STORAGE", StoragePostgres),
		Database: Database{
			URL:             l.getEnv("DATABASE_URL", ""),
			MaxConns:        int32(l.mustInt("DB_MAX_CONNS", 20)),
			MinConns:        int32(l.mustInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime: l.mustDur("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: l.mustDur("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Log: Log{
			Level:       l.getEnv("LOG_LEVEL", "info"),
			Development: l.mustBool("LOG_DEVELOPMENT", false),
		},
		Orders: Orders{
			Markup:           l.mustDecimal("PRICE_MARKUP", decimal.Zero),
			AllocationPolicy: l.getEnv("ALLOCATION_POLICY", "fcfs"),
			ScheduleOpening:  l.getEnv("SCHEDULE_OPENING", ""),
			ScheduleClosing:  l.getEnv("SCHEDULE_CLOSING", ""),
		},
		Kafka: Kafka{
			Brokers:     l.getEnv("KAFKA_BROKERS", ""),
			TopicOrders: l.getEnv("KAFKA_TOPIC_ORDERS", "foodcoop.orders"),
		},
		Outbox: Outbox{
			RelayInterval: l.mustDur("OUTBOX_RELAY_INTERVAL", time.Second),
			RelayBatch:    l.mustInt("OUTBOX_RELAY_BATCH", 100),
		},
		Jobs: Jobs{
			AutoCloseSpec: l.getEnv("AUTO_CLOSE_SPEC", "0 * * * * *"),
		},
		HTTP: HTTP{
			RateLimitRPS:       l.mustFloat("RATE_LIMIT_RPS", 50),
			RateLimitBurst:     l.mustInt("RATE_LIMIT_BURST", 100),
			IdempotencyEnabled: l.mustBool("IDEMPOTENCY_ENABLED", true),
			IdempotencyTTL:     l.mustDur("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		TracingStdout: l.mustBool("TRACING_STDOUT", false),
	}

	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required when STORAGE=postgres")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if c.Orders.Markup.IsNegative() {
		return errors.New("PRICE_MARKUP must not be negative")
	}
	return nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// loader collects the first parse error so Load reports it once.
type loader struct {
	getenv func(string) string
	err    error
}

func (l *loader) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(l.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) fail(key, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (l *loader) mustInt(key string, defaultValue int) int {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (l *loader) mustFloat(key string, defaultValue float64) float64 {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return f
}

func (l *loader) mustBool(key string, defaultValue bool) bool {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (l *loader) mustDur(key string, defaultValue time.Duration) time.Duration {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (l *loader) mustDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return d
}

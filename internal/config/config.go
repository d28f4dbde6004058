package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the whole-app configuration.
type Config struct {
	Port string // server port (8080)

	Store string // postgres | memory

	DatabaseURL      string // wins over the POSTGRES_* parts when set
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	DBMaxOpenConns   int

	JWTSecret     string // bearer token signing secret
	WebhookSecret string // shared secret of the payment callback

	GoEnv    string // dev/prod
	LogLevel string

	ReservationTTL    time.Duration
	MaxReservationTTL time.Duration // longest hold a buyer may ask for
	SweepInterval     time.Duration
	LowStockThreshold int64

	RedisAddr            string // empty disables the availability cache
	AvailabilityCacheTTL time.Duration

	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string
}

// Load reads and validates the environment.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse reads the environment without the required checks, so callers can
// override fields (CLI flags) before Validate. Missing optional values fall
// back to defaults; malformed values are errors.
func Parse() (Config, error) {
	cfg := Config{
		Port:  getenv("PORT", "8080"),
		Store: getenv("STORE", StorePostgres),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:  os.Getenv("REDIS_ADDR"),
		KafkaTopic: getenv("KAFKA_TOPIC", "inventory.events"),
	}

	var err error
	if cfg.PostgresPort, err = atoi("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = atoi("DB_MAX_OPEN_CONNS", 20); err != nil {
		return Config{}, err
	}
	if cfg.ReservationTTL, err = duration("RESERVATION_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxReservationTTL, err = duration("MAX_RESERVATION_TTL", 2*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = duration("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AvailabilityCacheTTL, err = duration("AVAILABILITY_CACHE_TTL", 10*time.Second); err != nil {
		return Config{}, err
	}
	threshold, err := atoi("LOW_STOCK_THRESHOLD", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.LowStockThreshold = int64(threshold)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg, nil
}

// Validate runs the required checks.
func (c Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q", StorePostgres, StoreMemory)
	}
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("RESERVATION_TTL must be positive")
	}
	if c.MaxReservationTTL < c.ReservationTTL {
		return fmt.Errorf("MAX_RESERVATION_TTL must not be shorter than RESERVATION_TTL")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative")
	}

	return nil
}

// ValidateAPI checks what only the HTTP service needs.
func (c Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}
	return nil
}

func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort,
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

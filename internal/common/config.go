package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Ledger    LedgerConfig
	Rates     RatesConfig
	Distance  DistanceConfig
	Runs      RunsConfig
	Server    ServerConfig
	Extract   ExtractConfig
	Analytics AnalyticsConfig
	LogLevel  string
}

// LedgerConfig holds the order ledger (Postgres) configuration
type LedgerConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	QueryRetries     int
	RetryDelay       time.Duration
}

// RatesConfig points at the partner rate tables
type RatesConfig struct {
	Dir string
}

// DistanceConfig holds the Google geocoding / distance settings
type DistanceConfig struct {
	GeocodeAPIKey   string
	DistanceAPIKey  string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// RunsConfig holds run history, export and evaluation settings
type RunsConfig struct {
	DBPath      string
	ExportDir   string
	InboxDir    string
	Workers     int
	Threshold   decimal.Decimal
	Timeout     time.Duration
	SinkTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// ExtractConfig holds PDF text extraction settings
type ExtractConfig struct {
	Pdftotext string
	Timeout   time.Duration
}

// AnalyticsConfig holds the run-event publisher settings
type AnalyticsConfig struct {
	Brokers []string
	Topic   string
}

// LoadDotEnv loads variables from the given .env files when present.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("config.dotenv.failed", "file", f, "error", err)
		}
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			DSN:              getEnv("LEDGER_DB_URL", ""),
			MaxConns:         getEnvAsInt32("LEDGER_DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("LEDGER_DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("LEDGER_DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("LEDGER_DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("LEDGER_DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("LEDGER_DB_STATEMENT_TIMEOUT", 0),
			QueryRetries:     getEnvAsInt("LEDGER_QUERY_RETRIES", 5),
			RetryDelay:       getEnvAsDuration("LEDGER_RETRY_DELAY", 15*time.Second),
		},
		Rates: RatesConfig{
			Dir: getEnv("RATES_DIR", "./data/pricing"),
		},
		Distance: DistanceConfig{
			GeocodeAPIKey:   getEnv("GOOGLE_GEOCODE_API_KEY", ""),
			DistanceAPIKey:  getEnv("GOOGLE_DISTANCE_API_KEY", ""),
			Timeout:         getEnvAsDuration("DISTANCE_TIMEOUT", 10*time.Second),
			BreakerFailures: uint32(getEnvAsInt("DISTANCE_BREAKER_FAILURES", 5)),
			BreakerCooldown: getEnvAsDuration("DISTANCE_BREAKER_COOLDOWN", time.Minute),
		},
		Runs: RunsConfig{
			DBPath:      getEnv("RUNS_DB_PATH", "./tmp/runs.db"),
			ExportDir:   getEnv("EXPORT_DIR", "./tmp/exports"),
			InboxDir:    getEnv("INBOX_DIR", ""),
			Workers:     getEnvAsInt("WORKERS", 4),
			Threshold:   getEnvAsDecimal("DELTA_THRESHOLD", decimal.NewFromInt(20)),
			Timeout:     getEnvAsDuration("RUN_TIMEOUT", 3*time.Minute),
			SinkTimeout: getEnvAsDuration("SINK_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Extract: ExtractConfig{
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Timeout:   getEnvAsDuration("PDFTOTEXT_TIMEOUT", 30*time.Second),
		},
		Analytics: AnalyticsConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "invoice-runs"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks what the daemon needs to start.
func (c *Config) Validate() error {
	if c.Ledger.DSN == "" {
		return NewAppError("CONFIG_ERROR", "LEDGER_DB_URL is required", ErrInvalidInput)
	}
	if c.Rates.Dir == "" {
		return NewAppError("CONFIG_ERROR", "RATES_DIR is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Runs.Threshold.IsNegative() {
		return NewAppError("CONFIG_ERROR", "DELTA_THRESHOLD must not be negative", ErrInvalidInput)
	}
	if c.Ledger.QueryRetries < 1 {
		return NewAppError("CONFIG_ERROR", "LEDGER_QUERY_RETRIES must be at least 1", ErrInvalidInput)
	}
	return nil
}

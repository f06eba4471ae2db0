package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradeJournal/internal/adapters/logger" // Import the logger package for LogLevel
)

// Supported store backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Bybit API
	APIKey       string
	SecretKey    string
	BaseURL      string
	Category     string // Product category, "linear" for USDT perpetuals
	SettleCoin   string
	RecvWindowMs int

	// Reconciliation
	PageSize     int           // Closed positions fetched per poll, also the order-history page size
	PollInterval time.Duration // Sleep between the end of one cycle and the start of the next
	MakerFeeRate float64       // Flat rate applied when any fill was a maker fill
	TakerFeeRate float64

	// Exchange calls
	HTTPTimeout      time.Duration
	RateLimitRetries int

	// Database
	DBDriver    string
	DBPath      string // sqlite
	DatabaseURL string // postgres DSN

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFile  string          // Rotated JSON log file, empty for console only

	// Status API listen address, empty disables it
	StatusAddr string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Bybit API
	cfg.APIKey = getEnv("BYBIT_API_KEY", "")
	cfg.SecretKey = getEnv("BYBIT_SECRET", "")
	if cfg.APIKey == "" {
		errs = append(errs, "BYBIT_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BYBIT_SECRET must be set")
	}
	cfg.BaseURL = strings.TrimRight(getEnv("BYBIT_BASE_URL", "https://api.bybit.com"), "/")
	cfg.Category = getEnv("BYBIT_CATEGORY", "linear")
	cfg.SettleCoin = getEnv("BYBIT_SETTLE_COIN", "USDT")

	cfg.RecvWindowMs, err = getEnvAsIntRequired("BYBIT_RECV_WINDOW_MS", 5000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BYBIT_RECV_WINDOW_MS: %v", err))
	} else if cfg.RecvWindowMs <= 0 {
		errs = append(errs, "BYBIT_RECV_WINDOW_MS must be positive")
	}

	// Reconciliation
	cfg.PageSize, err = getEnvAsIntRequired("PAGE_SIZE", 50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAGE_SIZE: %v", err))
	} else if cfg.PageSize < 1 || cfg.PageSize > 100 {
		errs = append(errs, "PAGE_SIZE must be between 1 and 100")
	}

	pollSeconds, err := getEnvAsIntRequired("POLL_INTERVAL_SECONDS", 3600)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POLL_INTERVAL_SECONDS: %v", err))
	} else if pollSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	cfg.MakerFeeRate, err = getEnvAsFloatRequired("MAKER_FEE_RATE", 0.0001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAKER_FEE_RATE: %v", err))
	} else if cfg.MakerFeeRate < 0 {
		errs = append(errs, "MAKER_FEE_RATE cannot be negative")
	}

	cfg.TakerFeeRate, err = getEnvAsFloatRequired("TAKER_FEE_RATE", 0.0006)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKER_FEE_RATE: %v", err))
	} else if cfg.TakerFeeRate < 0 {
		errs = append(errs, "TAKER_FEE_RATE cannot be negative")
	}

	if cfg.MakerFeeRate > cfg.TakerFeeRate {
		errs = append(errs, "MAKER_FEE_RATE must not exceed TAKER_FEE_RATE")
	}

	// Exchange calls
	timeoutSeconds := getEnvAsInt("HTTP_TIMEOUT_SECONDS", 15)
	if timeoutSeconds <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}
	cfg.HTTPTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.RateLimitRetries = getEnvAsInt("RATE_LIMIT_RETRIES", 3)
	if cfg.RateLimitRetries < 0 {
		errs = append(errs, "RATE_LIMIT_RETRIES cannot be negative")
	}

	errs = append(errs, loadStoreSettings(cfg)...)

	cfg.StatusAddr = getEnv("STATUS_ADDR", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// LoadStoreConfig loads only the store and logging settings. Read-only tools use it
// so they work without exchange credentials.
func LoadStoreConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if errs := loadStoreSettings(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadStoreSettings fills the database and logging fields and returns validation problems.
func loadStoreSettings(cfg *Config) []string {
	var errs []string

	// Database
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	cfg.DBPath = getEnv("DB_PATH", "./data/account_trades.db")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, "DB_PATH must be set")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported DB_DRIVER '%s' (want sqlite or postgres)", cfg.DBDriver))
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFile = getEnv("LOG_FILE", "")

	return errs
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := getEnvAsIntRequired(key, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

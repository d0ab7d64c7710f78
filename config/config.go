package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"quantbt/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// HTTP API
	ServerAddr string

	// Bar feed
	BinanceAPIKey    string // optional, public kline endpoints work without keys
	BinanceSecretKey string
	DataDir          string        // CSV bar store used by the offline feed and fetch tool
	FeedCacheTTL     time.Duration // in-memory bar cache lifetime, 0 disables caching

	// Default run parameters (overridable per request)
	Symbol             string
	Period             string
	InitialCash        float64
	ContractMultiplier float64
	CommissionRate     float64
	MarginRate         float64

	// Optimization
	OptimizeMaxTrials    int
	OptimizeTargetReturn float64 // percent of initial cash

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "json" (zerolog) or "text" (std logger)
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// HTTP API
	cfg.ServerAddr = getEnv("SERVER_ADDR", ":8080")

	// Bar feed
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.DataDir = getEnv("DATA_DIR", "./data/bars")
	if cfg.DataDir == "" {
		errs = append(errs, "DATA_DIR must be set")
	}

	cacheTTLSeconds := getEnvAsInt("FEED_CACHE_TTL_SECONDS", 600)
	if cacheTTLSeconds < 0 {
		errs = append(errs, "FEED_CACHE_TTL_SECONDS cannot be negative")
	}
	cfg.FeedCacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	// Default run parameters
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.Period = getEnv("PERIOD", "daily")

	cfg.InitialCash, err = getEnvAsFloatRequired("INITIAL_CASH", 1_000_000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CASH: %v", err))
	} else if cfg.InitialCash <= 0 {
		errs = append(errs, "INITIAL_CASH must be positive")
	}

	cfg.ContractMultiplier, err = getEnvAsFloatRequired("CONTRACT_MULTIPLIER", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONTRACT_MULTIPLIER: %v", err))
	} else if cfg.ContractMultiplier <= 0 {
		errs = append(errs, "CONTRACT_MULTIPLIER must be positive")
	}

	cfg.CommissionRate, err = getEnvAsFloatRequired("COMMISSION_RATE", 0.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_RATE: %v", err))
	} else if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1.0 {
		errs = append(errs, "COMMISSION_RATE must be in [0.0, 1.0)")
	}

	cfg.MarginRate, err = getEnvAsFloatRequired("MARGIN_RATE", 0.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MARGIN_RATE: %v", err))
	} else if cfg.MarginRate < 0 || cfg.MarginRate > 1.0 {
		errs = append(errs, "MARGIN_RATE must be in [0.0, 1.0]")
	}

	// Optimization
	cfg.OptimizeMaxTrials = getEnvAsInt("OPTIMIZE_MAX_TRIALS", 10)
	if cfg.OptimizeMaxTrials <= 0 {
		errs = append(errs, "OPTIMIZE_MAX_TRIALS must be positive")
	}
	cfg.OptimizeTargetReturn = getEnvAsFloat("OPTIMIZE_TARGET_RETURN", 100.0)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/quantbt.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, "LOG_FORMAT must be 'json' or 'text'")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

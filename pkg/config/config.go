// Package config reads environment-driven settings, optionally from a
// .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the coordinator.
type Config struct {
	Port string

	// Binance
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string
	UseMockFeed      bool

	// Strategy/risk configuration file
	StrategiesPath string

	// Journal
	DBPath string

	// Paper trading
	PaperBalance float64
	QuoteAsset   string

	// Stream supervision
	StreamMaxRetries int
	StreamBackoffMin time.Duration
	StreamBackoffMax time.Duration

	// Balance refresh
	BalanceSyncInterval time.Duration
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		BinanceTestnet:      getEnv("BINANCE_TESTNET", "false") == "true",
		BinanceAPIKey:       os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:    os.Getenv("BINANCE_API_SECRET"),
		UseMockFeed:         getEnv("USE_MOCK_FEED", "true") == "true",
		StrategiesPath:      getEnv("STRATEGIES_PATH", "./strategies.yaml"),
		DBPath:              getEnv("DB_PATH", "./data/quantcore.db"),
		PaperBalance:        getEnvFloat("PAPER_BALANCE", 10000.0),
		QuoteAsset:          getEnv("QUOTE_ASSET", "USDT"),
		StreamMaxRetries:    getEnvInt("STREAM_MAX_RETRIES", 5),
		StreamBackoffMin:    getEnvDuration("STREAM_BACKOFF_MIN", time.Second),
		StreamBackoffMax:    getEnvDuration("STREAM_BACKOFF_MAX", 30*time.Second),
		BalanceSyncInterval: getEnvDuration("BALANCE_SYNC_INTERVAL", time.Minute),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

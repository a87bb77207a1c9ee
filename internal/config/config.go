package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL string
	HTTPPort    string
	AdminAPIKey string

	Owner         string
	EngineAccount string
	Rebalancer    string

	DepositCooldown   time.Duration
	RedeemCooldown    time.Duration
	RebalanceCooldown time.Duration

	DriftThresholdBps     int64
	SlippageBps           int64
	ForceRespectsCooldown bool
	PriceMaxAge           time.Duration

	PriceAPIURL        string
	PriceAPIDelay      time.Duration
	PriceAPIRetryMax   int
	RebalanceInterval  time.Duration
	ReportInterval     time.Duration
	ReportXLSXPath     string
	SheetsSpreadsheet  string
	SheetsCredentials  string
	AggregatorFeeBps   int64
	BasketFile         string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL: envOrDefaultWarn("DATABASE_URL", ""),
		HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey: envOrDefault("ADMIN_API_KEY", ""),

		Owner:         envOrDefault("TREASURY_OWNER", "owner"),
		EngineAccount: envOrDefault("TREASURY_ACCOUNT", "treasury"),
		Rebalancer:    envOrDefault("TREASURY_REBALANCER", ""),

		DepositCooldown:   envOrDefaultDuration("DEPOSIT_COOLDOWN", 24*time.Hour),
		RedeemCooldown:    envOrDefaultDuration("REDEEM_COOLDOWN", 24*time.Hour),
		RebalanceCooldown: envOrDefaultDuration("REBALANCE_COOLDOWN", time.Hour),

		DriftThresholdBps:     envOrDefaultInt64("DRIFT_THRESHOLD_BPS", 500),
		SlippageBps:           envOrDefaultInt64("SLIPPAGE_BPS", 100),
		ForceRespectsCooldown: envOrDefaultBool("FORCE_REBALANCE_RESPECTS_COOLDOWN", false),
		PriceMaxAge:           envOrDefaultDuration("PRICE_MAX_AGE", time.Hour),

		PriceAPIURL:       envOrDefault("PRICE_API_URL", ""),
		PriceAPIDelay:     envOrDefaultDuration("PRICE_API_DELAY", 6*time.Second),
		PriceAPIRetryMax:  int(envOrDefaultInt64("PRICE_API_RETRY_MAX", 5)),
		RebalanceInterval: envOrDefaultDuration("REBALANCE_WATCH_INTERVAL", 15*time.Minute),
		ReportInterval:    envOrDefaultDuration("REPORT_WORKER_INTERVAL", 24*time.Hour),
		ReportXLSXPath:    envOrDefault("REPORT_XLSX_PATH", "treasury_report.xlsx"),
		SheetsSpreadsheet: envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentials: envOrDefault("SHEETS_CREDENTIALS_JSON", ""),
		AggregatorFeeBps:  envOrDefaultInt64("AGGREGATOR_FEE_BPS", 30),
		BasketFile:        envOrDefault("BASKET_FILE", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/airdrop/internal/domain"
)

const (
	defaultAssets     = "DBR:debridge,SOL:solana,USDC:usd-coin"
	defaultTargetTime = "2025-04-17T08:00:00Z"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	CoinGeckoURL        string
	CoinGeckoAPIKey     string
	CoinGeckoTimeout    time.Duration
	Assets              []domain.Asset
	PrimaryAsset        domain.AssetID
	SecondaryAsset      domain.AssetID
	DefaultAmount       decimal.Decimal
	DefaultCurrency     domain.Currency
	PriceWorkerInterval time.Duration
	TargetTime          time.Time
	HTTPPort            string
	AdminAPIKey         string
	LogLevel            slog.Level
	GoogleSheetsID      string
	GoogleCredentials   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		CoinGeckoURL:        envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey:     envOrDefaultWarn("COINGECKO_API_KEY", ""),
		CoinGeckoTimeout:    envOrDefaultDuration("COINGECKO_TIMEOUT", 10*time.Second),
		Assets:              envOrDefaultAssets("ASSETS", defaultAssets),
		PrimaryAsset:        domain.AssetID(envOrDefault("PRIMARY_ASSET", "debridge")),
		SecondaryAsset:      domain.AssetID(envOrDefault("SECONDARY_ASSET", "solana")),
		DefaultAmount:       envOrDefaultDecimal("DEFAULT_AMOUNT", decimal.RequireFromString("14233.97")),
		DefaultCurrency:     envOrDefaultCurrency("DEFAULT_CURRENCY", domain.DefaultCurrency),
		PriceWorkerInterval: envOrDefaultDuration("PRICE_WORKER_INTERVAL", 60*time.Second),
		TargetTime:          envOrDefaultTime("TARGET_TIME", defaultTargetTime),
		HTTPPort:            envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:         os.Getenv("ADMIN_API_KEY"),
		LogLevel:            envOrDefaultLevel("LOG_LEVEL", slog.LevelInfo),
		GoogleSheetsID:      os.Getenv("GOOGLE_SHEETS_ID"),
		GoogleCredentials:   os.Getenv("GOOGLE_CREDENTIALS_JSON"),
	}
}

// Validate checks cross-field constraints that Load cannot repair with a default.
func (c Config) Validate() error {
	var errs []error

	if len(c.Assets) == 0 {
		errs = append(errs, domain.ErrNoAssets)
	}
	if _, ok := domain.FindAsset(c.Assets, c.PrimaryAsset); !ok {
		errs = append(errs, fmt.Errorf("PRIMARY_ASSET %q is not in ASSETS", c.PrimaryAsset))
	}
	if _, ok := domain.FindAsset(c.Assets, c.SecondaryAsset); !ok {
		errs = append(errs, fmt.Errorf("SECONDARY_ASSET %q is not in ASSETS", c.SecondaryAsset))
	}
	if !c.DefaultAmount.IsPositive() {
		errs = append(errs, fmt.Errorf("DEFAULT_AMOUNT must be positive, got %s", c.DefaultAmount))
	}
	if c.PriceWorkerInterval <= 0 {
		errs = append(errs, fmt.Errorf("PRICE_WORKER_INTERVAL must be positive, got %s", c.PriceWorkerInterval))
	}
	if c.CoinGeckoTimeout <= 0 {
		errs = append(errs, fmt.Errorf("COINGECKO_TIMEOUT must be positive, got %s", c.CoinGeckoTimeout))
	}
	if (c.GoogleSheetsID == "") != (c.GoogleCredentials == "") {
		errs = append(errs, errors.New("GOOGLE_SHEETS_ID and GOOGLE_CREDENTIALS_JSON must be set together"))
	}

	return errors.Join(errs...)
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentials != ""
}

// LogLevel reads LOG_LEVEL without logging, so the logger can be set up before Load.
func LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return lvl
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
		slog.Warn("env var not set", "key", key)
	}
	return v
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

func envOrDefaultDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			slog.Warn("invalid decimal env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultCurrency(key string, defaultVal domain.Currency) domain.Currency {
	if v := os.Getenv(key); v != "" {
		c, err := domain.ParseCurrency(v)
		if err != nil {
			slog.Warn("invalid currency env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return c
	}
	return defaultVal
}

func envOrDefaultAssets(key, defaultVal string) []domain.Asset {
	fallback, _ := domain.ParseAssets(defaultVal)
	if v := os.Getenv(key); v != "" {
		assets, err := domain.ParseAssets(v)
		if err != nil {
			slog.Warn("invalid asset list env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return assets
	}
	return fallback
}

func envOrDefaultTime(key, defaultVal string) time.Time {
	fallback, _ := time.Parse(time.RFC3339, defaultVal)
	if v := os.Getenv(key); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			slog.Warn("invalid RFC3339 time env var, using default", "key", key, "value", v, "default", defaultVal)
			return fallback
		}
		return t
	}
	return fallback
}

func envOrDefaultLevel(key string, defaultVal slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			slog.Warn("invalid log level env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return lvl
	}
	return defaultVal
}

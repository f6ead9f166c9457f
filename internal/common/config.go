// Package common provides shared utilities for chaintax
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for chaintax
type Config struct {
	Environment  string             `toml:"environment"`
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Matching     MatchingConfig     `toml:"matching"`
	Jurisdiction JurisdictionConfig `toml:"jurisdiction"`
	Variance     VarianceConfig     `toml:"variance"`
	Clients      ClientsConfig      `toml:"clients"`
	Logging      LoggingConfig      `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	Backend string `toml:"backend"` // "badger" or "memory"
	Path    string `toml:"path"`
}

// MatchingConfig holds the transfer-matching thresholds. All ratio values
// are in [0,1]; the timing window is in hours.
type MatchingConfig struct {
	MaxTimingWindowHours float64 `toml:"max_timing_window_hours"`
	MinAmountSimilarity  float64 `toml:"min_amount_similarity"`
	MinConfidenceScore   float64 `toml:"min_confidence_score"`
	AutoConfirmThreshold float64 `toml:"auto_confirm_threshold"`
}

// JurisdictionConfig holds tax-jurisdiction behavior switches.
type JurisdictionConfig struct {
	// SameAssetTransferFeePolicy is "disposal" (fee is disposed at zero
	// proceeds) or "add-to-basis" (fee cost folds into remaining basis).
	SameAssetTransferFeePolicy string `toml:"same_asset_transfer_fee_policy"`
	AccountingMethod           string `toml:"accounting_method"` // fifo, lifo, average-cost, specific-id
}

// VarianceConfig holds per-source transfer variance tolerances in percent.
// Source names are matched case-insensitively.
type VarianceConfig struct {
	Default VarianceTolerance            `toml:"default"`
	Sources map[string]VarianceTolerance `toml:"sources"`
}

// VarianceTolerance is a warn/error percentage pair.
type VarianceTolerance struct {
	WarnPct  float64 `toml:"warn_pct"`
	ErrorPct float64 `toml:"error_pct"`
}

// ForSource returns the tolerance configured for a source, falling back to
// the default. Lookup is case-insensitive.
func (v *VarianceConfig) ForSource(source string) VarianceTolerance {
	if v.Sources != nil {
		if tol, ok := v.Sources[strings.ToLower(source)]; ok {
			return tol
		}
	}
	return v.Default
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	MarketData MarketDataConfig `toml:"marketdata"`
}

// MarketDataConfig holds the historical-price provider configuration
type MarketDataConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *MarketDataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "data/chaintax",
		},
		Matching: MatchingConfig{
			MaxTimingWindowHours: 48,
			MinAmountSimilarity:  0.95,
			MinConfidenceScore:   0.7,
			AutoConfirmThreshold: 0.95,
		},
		Jurisdiction: JurisdictionConfig{
			SameAssetTransferFeePolicy: "add-to-basis",
			AccountingMethod:           "fifo",
		},
		Variance: VarianceConfig{
			Default: VarianceTolerance{WarnPct: 1.0, ErrorPct: 10.0},
			Sources: map[string]VarianceTolerance{
				"binance": {WarnPct: 2.0, ErrorPct: 10.0},
				"kraken":  {WarnPct: 0.5, ErrorPct: 5.0},
			},
		},
		Clients: ClientsConfig{
			MarketData: MarketDataConfig{
				BaseURL:   "https://min-api.cryptocompare.com",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Missing files are skipped; later files override earlier ones.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalizeVarianceSources(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ResolveConfigPath finds the config file: explicit path, CHAINTAX_CONFIG
// env, binary directory, then the development fallback.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv("CHAINTAX_CONFIG"); path != "" {
		return path
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "chaintax.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "config/chaintax.toml"
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CHAINTAX_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("CHAINTAX_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("CHAINTAX_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("CHAINTAX_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("CHAINTAX_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}
	if key := os.Getenv("CHAINTAX_MARKETDATA_API_KEY"); key != "" {
		config.Clients.MarketData.APIKey = key
	}
}

// normalizeVarianceSources lowercases source keys so lookups are
// case-insensitive regardless of how the TOML was written.
func normalizeVarianceSources(config *Config) {
	if len(config.Variance.Sources) == 0 {
		return
	}
	normalized := make(map[string]VarianceTolerance, len(config.Variance.Sources))
	for name, tol := range config.Variance.Sources {
		normalized[strings.ToLower(name)] = tol
	}
	config.Variance.Sources = normalized
}

func validate(config *Config) error {
	switch config.Jurisdiction.SameAssetTransferFeePolicy {
	case "disposal", "add-to-basis":
	default:
		return fmt.Errorf("invalid same_asset_transfer_fee_policy: %q", config.Jurisdiction.SameAssetTransferFeePolicy)
	}
	for name, value := range map[string]float64{
		"min_amount_similarity":  config.Matching.MinAmountSimilarity,
		"min_confidence_score":   config.Matching.MinConfidenceScore,
		"auto_confirm_threshold": config.Matching.AutoConfirmThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("matching.%s must be in [0,1], got %v", name, value)
		}
	}
	if config.Matching.MaxTimingWindowHours <= 0 {
		return fmt.Errorf("matching.max_timing_window_hours must be positive, got %v", config.Matching.MaxTimingWindowHours)
	}
	return nil
}

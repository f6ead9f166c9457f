package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Matching.MaxTimingWindowHours != 48 {
		t.Errorf("MaxTimingWindowHours default = %v, want 48", cfg.Matching.MaxTimingWindowHours)
	}
	if cfg.Matching.MinAmountSimilarity != 0.95 {
		t.Errorf("MinAmountSimilarity default = %v, want 0.95", cfg.Matching.MinAmountSimilarity)
	}
	if cfg.Matching.AutoConfirmThreshold != 0.95 {
		t.Errorf("AutoConfirmThreshold default = %v, want 0.95", cfg.Matching.AutoConfirmThreshold)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("CHAINTAX_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chaintax.toml")
	content := `
[matching]
max_timing_window_hours = 24.0
min_confidence_score = 0.8

[jurisdiction]
same_asset_transfer_fee_policy = "disposal"

[variance.sources.CoinBase]
warn_pct = 3.0
error_pct = 12.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Matching.MaxTimingWindowHours != 24 {
		t.Errorf("MaxTimingWindowHours = %v, want 24", cfg.Matching.MaxTimingWindowHours)
	}
	if cfg.Matching.MinAmountSimilarity != 0.95 {
		t.Errorf("MinAmountSimilarity = %v, want default 0.95 preserved", cfg.Matching.MinAmountSimilarity)
	}
	if cfg.Jurisdiction.SameAssetTransferFeePolicy != "disposal" {
		t.Errorf("fee policy = %q, want disposal", cfg.Jurisdiction.SameAssetTransferFeePolicy)
	}

	tol := cfg.Variance.ForSource("coinbase")
	if tol.WarnPct != 3.0 || tol.ErrorPct != 12.0 {
		t.Errorf("ForSource(coinbase) = %+v, want warn 3 error 12", tol)
	}
}

func TestConfig_VarianceLookupCaseInsensitive(t *testing.T) {
	cfg := NewDefaultConfig()

	for _, name := range []string{"binance", "Binance", "BINANCE"} {
		tol := cfg.Variance.ForSource(name)
		if tol.WarnPct != 2.0 {
			t.Errorf("ForSource(%q).WarnPct = %v, want 2.0", name, tol.WarnPct)
		}
	}

	tol := cfg.Variance.ForSource("unknown-exchange")
	if tol.WarnPct != 1.0 || tol.ErrorPct != 10.0 {
		t.Errorf("ForSource(unknown) = %+v, want default", tol)
	}
}

func TestConfig_InvalidFeePolicyRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chaintax.toml")
	content := `
[jurisdiction]
same_asset_transfer_fee_policy = "ignore"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid fee policy")
	}
}

func TestConfig_ThresholdRangeValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chaintax.toml")
	content := `
[matching]
min_confidence_score = 1.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}

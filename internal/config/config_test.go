package config

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadRequiresMasterSecret(t *testing.T) {
	t.Setenv("KEY_VAULT_MASTER_SECRET", "")

	_, err := Load()
	if !errors.Is(err, ErrMissingMasterSecret) {
		t.Fatalf("expected ErrMissingMasterSecret, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KEY_VAULT_MASTER_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Watcher.ConfirmationTimeout != 2*time.Minute {
		t.Errorf("expected 2m confirmation timeout, got %v", cfg.Watcher.ConfirmationTimeout)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected sqlite3 driver, got %q", cfg.Database.Driver)
	}
	if !cfg.Pricing.PlatformFeeRate.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("expected 0.05 fee rate, got %s", cfg.Pricing.PlatformFeeRate)
	}
	if cfg.Pricing.DonationGasUnits != 100000 {
		t.Errorf("expected 100000 gas units, got %d", cfg.Pricing.DonationGasUnits)
	}
	if cfg.Chain.ChainId != 0 {
		t.Errorf("expected chain id to default to 0, got %d", cfg.Chain.ChainId)
	}
	if cfg.Ledger.Backend != "sql" {
		t.Errorf("expected sql ledger, got %q", cfg.Ledger.Backend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KEY_VAULT_MASTER_SECRET", "secret")
	t.Setenv("WATCHER_CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("PLATFORM_FEE_RATE", "0.025")
	t.Setenv("CHAIN_ID", "11155111")
	t.Setenv("WATCHER_WORKERS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Watcher.ConfirmationTimeout != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.Watcher.ConfirmationTimeout)
	}
	if !cfg.Pricing.PlatformFeeRate.Equal(decimal.RequireFromString("0.025")) {
		t.Errorf("expected 0.025, got %s", cfg.Pricing.PlatformFeeRate)
	}
	if cfg.Chain.ChainId != 11155111 {
		t.Errorf("expected chain id 11155111, got %d", cfg.Chain.ChainId)
	}
	if cfg.Watcher.Workers != 4 {
		t.Errorf("expected unparsable worker count to fall back to 4, got %d", cfg.Watcher.Workers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"WATCHER_POLL_INTERVAL":    "soon",
		"PENDING_RETENTION":        "-1h",
		"PRICE_FALLBACK_USD":       "cheap",
		"TREASURY_MINIMUM_BALANCE": "1e",
		"CHAIN_ID":                 "mainnet",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("KEY_VAULT_MASTER_SECRET", "secret")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might affect defaults
	for _, key := range []string{
		"DATABASE_URL", "HTTP_PORT", "DRIFT_THRESHOLD_BPS", "DEPOSIT_COOLDOWN",
		"FORCE_REBALANCE_RESPECTS_COOLDOWN", "TREASURY_OWNER",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.Owner != "owner" {
		t.Errorf("Owner = %q, want owner", cfg.Owner)
	}
	if cfg.DriftThresholdBps != 500 {
		t.Errorf("DriftThresholdBps = %d, want 500", cfg.DriftThresholdBps)
	}
	if cfg.SlippageBps != 100 {
		t.Errorf("SlippageBps = %d, want 100", cfg.SlippageBps)
	}
	if cfg.DepositCooldown != 24*time.Hour {
		t.Errorf("DepositCooldown = %v, want 24h", cfg.DepositCooldown)
	}
	if cfg.RebalanceCooldown != time.Hour {
		t.Errorf("RebalanceCooldown = %v, want 1h", cfg.RebalanceCooldown)
	}
	if cfg.ForceRespectsCooldown {
		t.Error("ForceRespectsCooldown = true, want false by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/testdb")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DRIFT_THRESHOLD_BPS", "250")
	t.Setenv("DEPOSIT_COOLDOWN", "12h")
	t.Setenv("FORCE_REBALANCE_RESPECTS_COOLDOWN", "true")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/testdb" {
		t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.DriftThresholdBps != 250 {
		t.Errorf("DriftThresholdBps = %d, want 250", cfg.DriftThresholdBps)
	}
	if cfg.DepositCooldown != 12*time.Hour {
		t.Errorf("DepositCooldown = %v, want 12h", cfg.DepositCooldown)
	}
	if !cfg.ForceRespectsCooldown {
		t.Error("ForceRespectsCooldown = false, want true")
	}
}

func TestLoadInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("DRIFT_THRESHOLD_BPS", "not-a-number")
	t.Setenv("DEPOSIT_COOLDOWN", "invalid-duration")
	t.Setenv("FORCE_REBALANCE_RESPECTS_COOLDOWN", "maybe")

	cfg := Load()

	if cfg.DriftThresholdBps != 500 {
		t.Errorf("DriftThresholdBps = %d, want default 500 on invalid input", cfg.DriftThresholdBps)
	}
	if cfg.DepositCooldown != 24*time.Hour {
		t.Errorf("DepositCooldown = %v, want default 24h on invalid input", cfg.DepositCooldown)
	}
	if cfg.ForceRespectsCooldown {
		t.Error("ForceRespectsCooldown = true, want default false on invalid input")
	}
}

func TestLoadBasketDefault(t *testing.T) {
	b, err := LoadBasket("")
	if err != nil {
		t.Fatalf("LoadBasket: %v", err)
	}
	if b.Stable != "USDC" || b.Rose != "ROSE" {
		t.Errorf("basket keys = (%s, %s), want (USDC, ROSE)", b.Stable, b.Rose)
	}

	var sum int64
	for _, a := range b.Assets {
		sum += a.TargetBps
	}
	if sum != 10000 {
		t.Errorf("default basket targets sum to %d bps, want 10000", sum)
	}
}

func TestLoadBasketFromFile(t *testing.T) {
	path := t.TempDir() + "/basket.json"
	content := `{
		"stable": "USDT",
		"rose": "ROSE",
		"assets": [
			{"key": "USDT", "token": "Tether", "decimals": 6, "targetBps": 10000, "pegged": true},
			{"key": "ROSE", "token": "Rose", "decimals": 18, "targetBps": 0}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing basket file: %v", err)
	}

	b, err := LoadBasket(path)
	if err != nil {
		t.Fatalf("LoadBasket: %v", err)
	}
	if b.Stable != "USDT" {
		t.Errorf("stable = %s, want USDT", b.Stable)
	}
	if len(b.Assets) != 2 {
		t.Errorf("len(assets) = %d, want 2", len(b.Assets))
	}
}

func TestLoadBasketMissingKeys(t *testing.T) {
	path := t.TempDir() + "/basket.json"
	if err := os.WriteFile(path, []byte(`{"assets": []}`), 0o600); err != nil {
		t.Fatalf("writing basket file: %v", err)
	}
	if _, err := LoadBasket(path); err == nil {
		t.Fatal("expected error for basket without stable/rose keys")
	}
}

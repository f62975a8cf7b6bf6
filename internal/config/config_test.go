package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultUniverse(t *testing.T) {
	cfg := Default()

	aapl, ok := cfg.Symbols["AAPL"]
	if !ok {
		t.Fatal("default config missing AAPL")
	}
	if aapl.BasePrice != 175.50 {
		t.Errorf("AAPL base price = %v, want 175.50", aapl.BasePrice)
	}
	if aapl.CostBasis != 165.00 {
		t.Errorf("AAPL cost basis = %v, want 165.00", aapl.CostBasis)
	}

	if cfg.Account.Balance != 500000 {
		t.Errorf("account balance = %v, want 500000", cfg.Account.Balance)
	}
	if cfg.Account.GlobalOrderCap != 10000 {
		t.Errorf("global order cap = %v, want 10000", cfg.Account.GlobalOrderCap)
	}
	if cfg.Risk.EscalationThreshold != 75 {
		t.Errorf("escalation threshold = %v, want 75", cfg.Risk.EscalationThreshold)
	}
	if cfg.Faults.LegacyBulkDiscount || cfg.Faults.SkipCostBasisGuard {
		t.Error("fault flags must default to off")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradeflow.yaml")

	yaml := `
server:
  port: 9100
risk:
  escalation_threshold: 60
symbols:
  XYZ:
    exchange: NASDAQ
    sector: Technology
    base_price: 42.0
    lot_size: 1
    max_order: 1000
    tradeable: true
    volatility: low
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Risk.EscalationThreshold != 60 {
		t.Errorf("escalation threshold = %v, want 60", cfg.Risk.EscalationThreshold)
	}
	// Untouched fields keep their defaults.
	if cfg.Account.Balance != 500000 {
		t.Errorf("account balance = %v, want default 500000", cfg.Account.Balance)
	}

	xyz, ok := cfg.Symbols["XYZ"]
	if !ok {
		t.Fatal("merged config missing XYZ")
	}
	if xyz.CostBasis != 0 {
		t.Errorf("XYZ cost basis = %v, want 0 (no basis on record)", xyz.CostBasis)
	}
	if _, ok := cfg.Symbols["AAPL"]; !ok {
		t.Error("merged config lost default AAPL entry")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/tradeflow.yaml"); err == nil {
		t.Error("Load() with missing file: expected error, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/tfdata")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRADEFLOW_PORT", "9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.DataDir != "/tmp/tfdata" {
		t.Errorf("data dir = %q, want /tmp/tfdata", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
}

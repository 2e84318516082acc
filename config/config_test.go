package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default HTTP addr, got %s", cfg.HTTPAddr)
	}
	ec := cfg.EngineConfig()
	if ec.PeriodSeconds != 300 || ec.LeadSeconds != 60 {
		t.Errorf("unexpected engine defaults: %+v", ec)
	}
	if !ec.GlobalSingleOp {
		t.Error("global single-operation policy must default on")
	}
	if ec.Indicator.MinCandles != 25 {
		t.Errorf("expected min_candles=25, got %d", ec.Indicator.MinCandles)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("http_addr: \":9999\"\nengine:\n  period_seconds: 60\n  block_periods: 5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PERIOD_SECONDS", "120")
	t.Setenv("GLOBAL_SINGLE_OP", "false")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("file value for http_addr not applied: %s", cfg.HTTPAddr)
	}
	ec := cfg.EngineConfig()
	if ec.PeriodSeconds != 120 {
		t.Errorf("env must override file: got period=%d", ec.PeriodSeconds)
	}
	if ec.BlockPeriods != 5 {
		t.Errorf("file value for block_periods not applied: %d", ec.BlockPeriods)
	}
	if ec.GlobalSingleOp {
		t.Error("env GLOBAL_SINGLE_OP=false not applied")
	}
}

func TestParseInstruments(t *testing.T) {
	cfg := &Config{Instruments: " EURUSD, GBPUSD ,,AUDUSD "}
	got := cfg.ParseInstruments()
	want := []string{"EURUSD", "GBPUSD", "AUDUSD"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

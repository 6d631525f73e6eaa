package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
[kis]
app_key = "PSxxxx"
app_secret = "secret"
account_no = "12345678-01"

[symbols]
list = ["005930", "000660"]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.App.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.App.LogLevel)
	}
	if cfg.Trading.MaxPositionRatio != 0.25 {
		t.Errorf("max position ratio = %f, want 0.25", cfg.Trading.MaxPositionRatio)
	}
	if cfg.Trading.MinInvestment != 100_000 {
		t.Errorf("min investment = %f, want 100000", cfg.Trading.MinInvestment)
	}
	if cfg.CheckInterval() != 30*time.Minute {
		t.Errorf("check interval = %v, want 30m", cfg.CheckInterval())
	}
	if len(cfg.Sizing.Thresholds) != 5 || cfg.Sizing.Fractions[4] != 1.0 {
		t.Errorf("default sizing table wrong: %v / %v", cfg.Sizing.Thresholds, cfg.Sizing.Fractions)
	}
	if cfg.Position.PurchaseCooldownHours != 48 {
		t.Errorf("cooldown = %d, want 48", cfg.Position.PurchaseCooldownHours)
	}
	if cfg.Tracker.MaxErrorChecks != 5 || cfg.Tracker.HardCapChecks != 10 {
		t.Errorf("tracker caps = %d/%d, want 5/10", cfg.Tracker.MaxErrorChecks, cfg.Tracker.HardCapChecks)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
[kis]
account_no = "12345678-01"
`))
	if err == nil {
		t.Fatal("missing credentials must fail validation")
	}
}

func TestLoadRequiresAccountFormat(t *testing.T) {
	_, err := Load(writeConfig(t, `
[kis]
app_key = "k"
app_secret = "s"
account_no = "1234567801"
`))
	if err == nil {
		t.Fatal("account number without a dash must fail validation")
	}
}

func TestLoadRejectsBadSizingTable(t *testing.T) {
	_, err := Load(writeConfig(t, minimal+`
[sizing]
thresholds = [1.0, 2.0]
fractions = [0.5]
`))
	if err == nil {
		t.Fatal("mismatched sizing table must fail validation")
	}

	_, err = Load(writeConfig(t, minimal+`
[sizing]
thresholds = [2.0, 1.0]
fractions = [0.5, 0.8]
`))
	if err == nil {
		t.Fatal("non-ascending thresholds must fail validation")
	}
}

func TestLoadNormalizesSymbols(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[kis]
app_key = "k"
app_secret = "s"
account_no = "12345678-01"

[symbols]
list = ["005930", " 005930", "", "000660"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Symbols.List) != 2 {
		t.Fatalf("symbols = %v, want deduped pair", cfg.Symbols.List)
	}
}

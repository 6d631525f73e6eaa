package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		LogLevel    string `toml:"log_level"`
		MetricsAddr string `toml:"metrics_addr"` // empty disables the /metrics listener
	} `toml:"app"`

	KIS struct {
		AppKey    string `toml:"app_key"`
		AppSecret string `toml:"app_secret"`
		BaseURL   string `toml:"base_url"` // vts host selects the mock-trading tr_ids
		AccountNo string `toml:"account_no"`
		TokenFile string `toml:"token_file"`
	} `toml:"kis"`

	Symbols struct {
		List         []string `toml:"list"`          // fallback candidate list
		ScreenerFile string   `toml:"screener_file"` // reloaded when its mtime changes
	} `toml:"symbols"`

	Trading struct {
		MaxPositionRatio        float64 `toml:"max_position_ratio"`
		MinInvestment           float64 `toml:"min_investment"`
		MinSignalStrength       float64 `toml:"min_signal_strength"`
		SellSignalStrength      float64 `toml:"sell_signal_strength"`
		StopLossPct             float64 `toml:"stop_loss_pct"`
		TakeProfitPct           float64 `toml:"take_profit_pct"`
		RapidDropPct            float64 `toml:"rapid_drop_pct"`
		RapidDropHighPct        float64 `toml:"rapid_drop_high_pct"`
		CheckIntervalMinutes    int     `toml:"check_interval_minutes"`
		OffHoursIntervalMinutes int     `toml:"off_hours_interval_minutes"`
		SymbolPauseMillis       int     `toml:"symbol_pause_millis"`
	} `toml:"trading"`

	Sizing struct {
		// Strength thresholds and the position fraction granted at each.
		// Both slices must have equal length and ascending thresholds.
		Thresholds []float64 `toml:"thresholds"`
		Fractions  []float64 `toml:"fractions"`
	} `toml:"sizing"`

	Position struct {
		MaxPurchasesPerSymbol int `toml:"max_purchases_per_symbol"`
		MaxQuantityPerSymbol  int `toml:"max_quantity_per_symbol"`
		MinHoldingPeriodHours int `toml:"min_holding_period_hours"`
		PurchaseCooldownHours int `toml:"purchase_cooldown_hours"`
	} `toml:"position"`

	Tracker struct {
		StaleHours     int `toml:"stale_hours"`
		MaxErrorChecks int `toml:"max_error_checks"`
		HardCapChecks  int `toml:"hard_cap_checks"`
		PollPauseMs    int `toml:"poll_pause_ms"`
	} `toml:"tracker"`

	State struct {
		LedgerFile  string `toml:"ledger_file"`
		PendingFile string `toml:"pending_file"`
		JournalFile string `toml:"journal_file"` // sqlite
	} `toml:"state"`

	Notify struct {
		Console        bool   `toml:"console"`
		DiscordWebhook string `toml:"discord_webhook"`
	} `toml:"notify"`

	System struct {
		AutoShutdownEnabled bool `toml:"auto_shutdown_enabled"`
		ShutdownDelayHours  int  `toml:"shutdown_delay_hours"`
	} `toml:"system"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.KIS.BaseURL == "" {
		cfg.KIS.BaseURL = "https://openapivts.koreainvestment.com:29443"
	}
	if cfg.KIS.TokenFile == "" {
		cfg.KIS.TokenFile = "token.json"
	}
	if cfg.Trading.MaxPositionRatio <= 0 {
		cfg.Trading.MaxPositionRatio = 0.25
	}
	if cfg.Trading.MinInvestment <= 0 {
		cfg.Trading.MinInvestment = 100_000
	}
	if cfg.Trading.MinSignalStrength <= 0 {
		cfg.Trading.MinSignalStrength = 0.5
	}
	if cfg.Trading.SellSignalStrength <= 0 {
		cfg.Trading.SellSignalStrength = 4.0
	}
	if cfg.Trading.StopLossPct <= 0 {
		cfg.Trading.StopLossPct = 0.06
	}
	if cfg.Trading.TakeProfitPct <= 0 {
		cfg.Trading.TakeProfitPct = 0.20
	}
	if cfg.Trading.RapidDropPct <= 0 {
		cfg.Trading.RapidDropPct = 0.05
	}
	if cfg.Trading.RapidDropHighPct <= 0 {
		cfg.Trading.RapidDropHighPct = 0.08
	}
	if cfg.Trading.CheckIntervalMinutes <= 0 {
		cfg.Trading.CheckIntervalMinutes = 30
	}
	if cfg.Trading.OffHoursIntervalMinutes <= 0 {
		cfg.Trading.OffHoursIntervalMinutes = 60
	}
	if cfg.Trading.SymbolPauseMillis <= 0 {
		cfg.Trading.SymbolPauseMillis = 500
	}
	if len(cfg.Sizing.Thresholds) == 0 {
		cfg.Sizing.Thresholds = []float64{0.5, 1.0, 2.0, 3.0, 4.0}
		cfg.Sizing.Fractions = []float64{0.2, 0.4, 0.6, 0.8, 1.0}
	}
	if cfg.Position.MaxPurchasesPerSymbol <= 0 {
		cfg.Position.MaxPurchasesPerSymbol = 2
	}
	if cfg.Position.MaxQuantityPerSymbol <= 0 {
		cfg.Position.MaxQuantityPerSymbol = 200
	}
	if cfg.Position.MinHoldingPeriodHours <= 0 {
		cfg.Position.MinHoldingPeriodHours = 72
	}
	if cfg.Position.PurchaseCooldownHours <= 0 {
		cfg.Position.PurchaseCooldownHours = 48
	}
	if cfg.Tracker.StaleHours <= 0 {
		cfg.Tracker.StaleHours = 24
	}
	if cfg.Tracker.MaxErrorChecks <= 0 {
		cfg.Tracker.MaxErrorChecks = 5
	}
	if cfg.Tracker.HardCapChecks <= 0 {
		cfg.Tracker.HardCapChecks = 10
	}
	if cfg.Tracker.PollPauseMs <= 0 {
		cfg.Tracker.PollPauseMs = 200
	}
	if cfg.State.LedgerFile == "" {
		cfg.State.LedgerFile = "state/position_ledger.json"
	}
	if cfg.State.PendingFile == "" {
		cfg.State.PendingFile = "state/pending_orders.json"
	}
	if cfg.State.JournalFile == "" {
		cfg.State.JournalFile = "state/journal.db"
	}
	if cfg.System.ShutdownDelayHours <= 0 {
		cfg.System.ShutdownDelayHours = 1
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.KIS.AppKey) == "" || strings.TrimSpace(cfg.KIS.AppSecret) == "" {
		return errors.New("kis.app_key and kis.app_secret are required")
	}
	if !strings.Contains(cfg.KIS.AccountNo, "-") {
		return errors.New("kis.account_no must be CANO-PRDT, e.g. 12345678-01")
	}
	if len(cfg.Sizing.Thresholds) != len(cfg.Sizing.Fractions) {
		return fmt.Errorf("sizing: %d thresholds vs %d fractions",
			len(cfg.Sizing.Thresholds), len(cfg.Sizing.Fractions))
	}
	for i := 1; i < len(cfg.Sizing.Thresholds); i++ {
		if cfg.Sizing.Thresholds[i] <= cfg.Sizing.Thresholds[i-1] {
			return errors.New("sizing.thresholds must be strictly ascending")
		}
	}
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.TrimSpace(s)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// CheckInterval returns the in-session cycle interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Trading.CheckIntervalMinutes) * time.Minute
}

// OffHoursInterval returns the out-of-session cycle interval.
func (c *Config) OffHoursInterval() time.Duration {
	return time.Duration(c.Trading.OffHoursIntervalMinutes) * time.Minute
}

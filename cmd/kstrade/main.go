package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kstrade/internal/application/port"
	"kstrade/internal/application/service"
	domsvc "kstrade/internal/domain/service"
	"kstrade/internal/infrastructure/broker/kis"
	"kstrade/internal/infrastructure/config"
	"kstrade/internal/infrastructure/logger"
	"kstrade/internal/infrastructure/metrics"
	"kstrade/internal/infrastructure/notify"
	"kstrade/internal/infrastructure/storage/sqlite"
	"kstrade/internal/infrastructure/storage/statefile"
	"kstrade/internal/signal"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "kstrade",
		Short:         "KRX swing trader on the KIS open API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.toml", "path to config file")

	root.AddCommand(tradeCmd(), holdingsCmd(), reportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	logger.Setup(cfg.App.LogLevel)
	return cfg, nil
}

func newBroker(cfg *config.Config) (*kis.Client, error) {
	return kis.New(cfg.KIS.AppKey, cfg.KIS.AppSecret, cfg.KIS.BaseURL, cfg.KIS.AccountNo,
		kis.Options{TokenFile: cfg.KIS.TokenFile})
}

func tradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trade",
		Short: "Run the trading loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			broker, err := newBroker(cfg)
			if err != nil {
				return err
			}

			journal, err := sqlite.NewJournal(cfg.State.JournalFile)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer journal.Close()

			var sinks []port.Notifier
			if cfg.Notify.Console {
				sinks = append(sinks, notify.NewConsole())
			}
			if cfg.Notify.DiscordWebhook != "" {
				sinks = append(sinks, notify.NewDiscord(cfg.Notify.DiscordWebhook))
			}
			notifier := notify.NewMulti(sinks...)

			ledger, err := service.NewPositionLedger(service.LedgerLimits{
				MaxPurchasesPerSymbol: cfg.Position.MaxPurchasesPerSymbol,
				MaxQuantityPerSymbol:  int64(cfg.Position.MaxQuantityPerSymbol),
				MinHoldingPeriod:      time.Duration(cfg.Position.MinHoldingPeriodHours) * time.Hour,
				PurchaseCooldown:      time.Duration(cfg.Position.PurchaseCooldownHours) * time.Hour,
			}, statefile.New(cfg.State.LedgerFile))
			if err != nil {
				return err
			}

			tracker, err := service.NewOrderTracker(broker, ledger, journal, notifier,
				service.TrackerConfig{
					StaleAfter:     time.Duration(cfg.Tracker.StaleHours) * time.Hour,
					MaxErrorChecks: cfg.Tracker.MaxErrorChecks,
					HardCapChecks:  cfg.Tracker.HardCapChecks,
					PollPause:      time.Duration(cfg.Tracker.PollPauseMs) * time.Millisecond,
				}, statefile.New(cfg.State.PendingFile))
			if err != nil {
				return err
			}

			manager := service.NewOrderManager(broker, tracker, ledger, journal, notifier,
				service.SizingTable{
					Thresholds: cfg.Sizing.Thresholds,
					Fractions:  cfg.Sizing.Fractions,
				},
				cfg.Trading.MaxPositionRatio, cfg.Trading.MinInvestment)

			trader := service.NewTrader(broker, signal.NewEngine(), tracker, manager, ledger, journal, notifier,
				service.TraderConfig{
					Symbols:           cfg.Symbols.List,
					ScreenerFile:      cfg.Symbols.ScreenerFile,
					CheckInterval:     cfg.CheckInterval(),
					OffHoursInterval:  cfg.OffHoursInterval(),
					SymbolPause:       time.Duration(cfg.Trading.SymbolPauseMillis) * time.Millisecond,
					MinSignalStrength: cfg.Trading.MinSignalStrength,
					ExitRules: domsvc.ExitRules{
						StopLossPct:      cfg.Trading.StopLossPct,
						TakeProfitPct:    cfg.Trading.TakeProfitPct,
						RapidDropPct:     cfg.Trading.RapidDropPct,
						RapidDropHighPct: cfg.Trading.RapidDropHighPct,
						SellStrength:     cfg.Trading.SellSignalStrength,
					},
					AutoShutdown:  cfg.System.AutoShutdownEnabled,
					ShutdownDelay: time.Duration(cfg.System.ShutdownDelayHours) * time.Hour,
				})

			metrics.Serve(cfg.App.MetricsAddr)

			ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("base_url", cfg.KIS.BaseURL).
				Int("candidates", len(cfg.Symbols.List)).Msg("starting")

			if err := trader.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}

func holdingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Print account cash and positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			broker, err := newBroker(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			cash, err := broker.AvailableCash(ctx)
			if err != nil {
				return err
			}
			holdings, err := broker.Holdings(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("available cash: %.0f KRW\n", cash)
			if len(holdings) == 0 {
				fmt.Println("no open positions")
				return nil
			}
			fmt.Printf("%-8s %-20s %8s %12s %12s %8s\n",
				"symbol", "name", "qty", "avg", "current", "pnl%")
			for _, h := range holdings {
				fmt.Printf("%-8s %-20s %8d %12.0f %12.0f %7.2f%%\n",
					h.Symbol, h.Name, h.Quantity, h.AvgPrice, h.CurrentPrice, h.PnLPct)
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the per-day trading summary from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			journal, err := sqlite.NewJournal(cfg.State.JournalFile)
			if err != nil {
				return err
			}
			defer journal.Close()

			rows, err := journal.DailyReport(cmd.Context(), days)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("no fills recorded")
				return nil
			}
			fmt.Printf("%-12s %6s %6s %14s %14s\n", "day", "buys", "sells", "buy_krw", "sell_krw")
			for _, r := range rows {
				fmt.Printf("%-12s %6d %6d %14.0f %14.0f\n",
					r.Day, r.Buys, r.Sells, r.BuyVolume, r.SellVolume)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "trailing window in days")
	return cmd
}

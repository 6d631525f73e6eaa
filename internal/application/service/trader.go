package service

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
	domsvc "kstrade/internal/domain/service"
	"kstrade/internal/infrastructure/metrics"
)

// TraderConfig tunes the orchestrator loop.
type TraderConfig struct {
	Symbols           []string // fallback candidates when no screener file
	ScreenerFile      string   // optional, reloaded when its mtime changes
	CheckInterval     time.Duration
	OffHoursInterval  time.Duration
	SymbolPause       time.Duration
	MinSignalStrength float64
	ExitRules         domsvc.ExitRules
	HoldingsTTL       time.Duration
	AutoShutdown      bool
	ShutdownDelay     time.Duration
}

// Trader is the single-threaded polling orchestrator. Each cycle it settles
// pending orders, evaluates exits for everything held and then scans the
// candidate list for entries. Sells always run before buys so freed cash is
// available in the same cycle.
type Trader struct {
	broker   port.Broker
	signals  port.SignalEngine
	tracker  *OrderTracker
	manager  *OrderManager
	ledger   *PositionLedger
	journal  port.Journal
	notifier port.Notifier
	cfg      TraderConfig

	holdings      map[string]model.Holding
	holdingsAt    time.Time
	screenerMtime time.Time
	candidates    []string

	now func() time.Time
}

func NewTrader(
	broker port.Broker,
	signals port.SignalEngine,
	tracker *OrderTracker,
	manager *OrderManager,
	ledger *PositionLedger,
	journal port.Journal,
	notifier port.Notifier,
	cfg TraderConfig,
) *Trader {
	if notifier == nil {
		notifier = port.NopNotifier{}
	}
	if cfg.HoldingsTTL <= 0 {
		cfg.HoldingsTTL = 10 * time.Minute
	}
	return &Trader{
		broker:     broker,
		signals:    signals,
		tracker:    tracker,
		manager:    manager,
		ledger:     ledger,
		journal:    journal,
		notifier:   notifier,
		cfg:        cfg,
		candidates: cfg.Symbols,
		now:        time.Now,
	}
}

// Run drives the loop until ctx is cancelled or auto-shutdown fires.
func (t *Trader) Run(ctx context.Context) error {
	t.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventSystemStart,
		Message: "trading loop started", At: t.now(),
	})
	defer t.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventSystemStop,
		Message: "trading loop stopped", At: t.now(),
	})

	// Settle anything left over from the previous run before trading.
	if t.tracker.PendingCount() > 0 {
		log.Info().Int("pending", t.tracker.PendingCount()).Msg("reconciling pending orders from previous run")
		t.tracker.CheckAll(ctx)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status := domsvc.Status(t.now())
		if status.Open {
			t.runCycle(ctx)
		} else {
			log.Info().Str("status", status.Message).Msg("market closed, idle")
			if t.shouldShutdown() {
				log.Info().Msg("past close plus shutdown delay, exiting")
				return nil
			}
		}

		interval := t.cfg.CheckInterval
		if !status.Open {
			interval = t.cfg.OffHoursInterval
		}
		if err := t.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// sleep waits in one-minute slices so cancellation is honored promptly.
func (t *Trader) sleep(ctx context.Context, d time.Duration) error {
	deadline := t.now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		slice := time.Minute
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(slice):
		}
	}
}

func (t *Trader) shouldShutdown() bool {
	if !t.cfg.AutoShutdown {
		return false
	}
	now := t.now()
	cutoff := domsvc.TodayClose(now).Add(t.cfg.ShutdownDelay)
	return now.After(cutoff) && now.Weekday() != time.Saturday && now.Weekday() != time.Sunday
}

// runCycle is one full pass. Errors are counted, logged and contained; the
// cycle always completes.
func (t *Trader) runCycle(ctx context.Context) {
	started := t.now()
	var buys, sells, errs int

	t.reloadScreener()
	t.tracker.CheckAll(ctx)

	if err := t.refreshHoldings(ctx); err != nil {
		log.Error().Err(err).Msg("holdings refresh failed, skipping cycle")
		return
	}

	sells, serrs := t.sellPass(ctx)
	errs += serrs
	buys, berrs := t.buyPass(ctx)
	errs += berrs

	t.ledger.Prune()

	dur := t.now().Sub(started)
	metrics.CycleDuration.Observe(dur.Seconds())
	metrics.HoldingsCount.Set(float64(len(t.holdings)))

	summary := port.CycleSummary{
		StartedAt: started, Duration: dur,
		Holdings: len(t.holdings), Candidates: len(t.candidates),
		Buys: buys, Sells: sells, Errors: errs,
	}
	if t.journal != nil {
		if err := t.journal.RecordCycle(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("cycle not journaled")
		}
	}
	log.Info().Dur("took", dur).Int("holdings", len(t.holdings)).
		Int("buys", buys).Int("sells", sells).Int("errors", errs).
		Msg("cycle complete")
}

// refreshHoldings fetches account positions, reusing a recent snapshot.
func (t *Trader) refreshHoldings(ctx context.Context) error {
	if t.holdings != nil && t.now().Sub(t.holdingsAt) < t.cfg.HoldingsTTL {
		return nil
	}
	h, err := t.broker.Holdings(ctx)
	if err != nil {
		metrics.APIErrors.Inc()
		return err
	}
	t.holdings = h
	t.holdingsAt = t.now()
	return nil
}

// sellPass evaluates the exit rules for every held symbol.
func (t *Trader) sellPass(ctx context.Context) (sells, errs int) {
	for sym, h := range t.holdings {
		if ctx.Err() != nil {
			return
		}
		if t.tracker.PendingFor(sym) {
			continue
		}

		sold, err := t.evaluateExit(ctx, sym, h)
		if err != nil {
			errs++
			log.Error().Err(err).Str("symbol", sym).Msg("exit evaluation failed")
		} else if sold {
			sells++
			// Holdings are now stale; force a refresh next cycle.
			t.holdingsAt = time.Time{}
		}
		t.pause(ctx)
	}
	return
}

func (t *Trader) evaluateExit(ctx context.Context, sym string, h model.Holding) (bool, error) {
	pnl := h.PnLPct / 100

	minuteBars, err := t.broker.MinuteBars(ctx, sym)
	if err != nil {
		metrics.APIErrors.Inc()
		log.Warn().Err(err).Str("symbol", sym).Msg("minute bars unavailable, intraday rules skipped")
		minuteBars = nil
	}

	var sig *model.Signal
	if daily, err := t.broker.DailyBars(ctx, sym, 100); err == nil {
		if s, err := t.signals.Analyze(ctx, sym, daily); err == nil {
			sig = s
		}
	}

	dec := t.cfg.ExitRules.Evaluate(pnl, minuteBars, sig, t.now())
	if !dec.Sell {
		return false, nil
	}

	if ok, why := t.ledger.CanSell(sym, dec.Urgent); !ok {
		log.Info().Str("symbol", sym).Str("reason", dec.Reason).Str("blocked", why).Msg("exit blocked")
		return false, nil
	}

	metrics.Exits.WithLabelValues(dec.Reason).Inc()
	t.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventExitTriggered,
		Symbol: sym, Side: model.SideSell, Quantity: h.Quantity,
		Price: h.CurrentPrice, Reason: dec.Reason, Message: dec.Detail, At: t.now(),
	})

	if _, err := t.manager.Place(ctx, sym, h.Name, model.SideSell, h.Quantity, dec.Strategy); err != nil {
		return false, err
	}
	return true, nil
}

// buyPass scans candidates not already held and without an in-flight order.
func (t *Trader) buyPass(ctx context.Context) (buys, errs int) {
	cash, err := t.broker.AvailableCash(ctx)
	if err != nil {
		metrics.APIErrors.Inc()
		log.Error().Err(err).Msg("cash balance unavailable, buy pass skipped")
		return 0, 1
	}
	metrics.AvailableCash.Set(cash)

	for _, sym := range t.candidates {
		if ctx.Err() != nil {
			return
		}
		if _, held := t.holdings[sym]; held {
			continue
		}
		if t.tracker.PendingFor(sym) {
			continue
		}

		bought, spent, err := t.evaluateEntry(ctx, sym, cash)
		if err != nil {
			errs++
			log.Error().Err(err).Str("symbol", sym).Msg("entry evaluation failed")
		} else if bought {
			buys++
			cash -= spent
		}
		t.pause(ctx)
	}
	return
}

func (t *Trader) evaluateEntry(ctx context.Context, sym string, cash float64) (bool, float64, error) {
	daily, err := t.broker.DailyBars(ctx, sym, 100)
	if err != nil {
		metrics.APIErrors.Inc()
		return false, 0, err
	}
	sig, err := t.signals.Analyze(ctx, sym, daily)
	if err != nil {
		return false, 0, err
	}
	if sig.Action != model.ActionBuy || sig.Strength < t.cfg.MinSignalStrength {
		return false, 0, nil
	}

	if ok, why := t.ledger.CanBuy(sym); !ok {
		log.Debug().Str("symbol", sym).Str("blocked", why).Msg("buy blocked")
		return false, 0, nil
	}

	quote, err := t.broker.Quote(ctx, sym)
	if err != nil {
		metrics.APIErrors.Inc()
		return false, 0, err
	}

	qty, why := t.manager.PositionSize(cash, sig.Strength, quote.Price)
	if qty == 0 {
		log.Debug().Str("symbol", sym).Str("reason", why).Msg("buy sized to zero")
		return false, 0, nil
	}

	// Strong conviction pays up for immediacy; the rest works the spread.
	strategy := StrategyBalanced
	if sig.Strength >= 4.0 {
		strategy = StrategyAggressive
	}

	log.Info().Str("symbol", sym).Float64("strength", sig.Strength).
		Int64("qty", qty).Int64("price", quote.Price).
		Strs("reasons", sig.Reasons).Msg("entry signal")

	if _, err := t.manager.Place(ctx, sym, "", model.SideBuy, qty, strategy); err != nil {
		return false, 0, err
	}
	return true, float64(qty) * float64(quote.Price), nil
}

func (t *Trader) pause(ctx context.Context) {
	if t.cfg.SymbolPause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(t.cfg.SymbolPause):
	}
}

// reloadScreener re-reads the candidate file when its mtime moves. The file
// holds one symbol per line; # starts a comment.
func (t *Trader) reloadScreener() {
	if t.cfg.ScreenerFile == "" {
		return
	}
	info, err := os.Stat(t.cfg.ScreenerFile)
	if err != nil {
		return
	}
	if !info.ModTime().After(t.screenerMtime) {
		return
	}
	data, err := os.ReadFile(t.cfg.ScreenerFile)
	if err != nil {
		log.Warn().Err(err).Str("path", t.cfg.ScreenerFile).Msg("screener file unreadable")
		return
	}

	var syms []string
	seen := map[string]struct{}{}
	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		syms = append(syms, s)
	}
	if len(syms) == 0 {
		log.Warn().Str("path", t.cfg.ScreenerFile).Msg("screener file empty, keeping current candidates")
		t.screenerMtime = info.ModTime()
		return
	}

	t.candidates = syms
	t.screenerMtime = info.ModTime()
	t.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventSymbolsChange,
		Message: strings.Join(syms, ","), At: t.now(),
	})
	log.Info().Int("count", len(syms)).Msg("candidate list reloaded")
}

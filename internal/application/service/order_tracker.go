package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
	"kstrade/internal/infrastructure/metrics"
	"kstrade/internal/infrastructure/storage/statefile"
)

// TrackerConfig tunes the pending-order lifecycle.
type TrackerConfig struct {
	StaleAfter     time.Duration // cancel at the broker past this age
	MaxErrorChecks int           // consecutive failed status polls before giving up
	HardCapChecks  int           // total failed status polls before giving up
	PollPause      time.Duration // pause between per-order polls
}

// DefaultTrackerConfig mirrors the production defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		StaleAfter:     24 * time.Hour,
		MaxErrorChecks: 5,
		HardCapChecks:  10,
		PollPause:      200 * time.Millisecond,
	}
}

// OrderTracker owns the set of in-flight limit orders. Each cycle it polls
// the broker's execution report per order, books fills into the ledger and
// drops orders that go stale or keep erroring. The pending set is persisted
// after every mutation so a restart resumes polling.
type OrderTracker struct {
	broker   port.Broker
	ledger   *PositionLedger
	journal  port.Journal
	notifier port.Notifier
	cfg      TrackerConfig

	store   *statefile.Store
	pending map[string]*model.PendingOrder
	now     func() time.Time
}

func NewOrderTracker(
	broker port.Broker,
	ledger *PositionLedger,
	journal port.Journal,
	notifier port.Notifier,
	cfg TrackerConfig,
	store *statefile.Store,
) (*OrderTracker, error) {
	if notifier == nil {
		notifier = port.NopNotifier{}
	}
	t := &OrderTracker{
		broker:   broker,
		ledger:   ledger,
		journal:  journal,
		notifier: notifier,
		cfg:      cfg,
		store:    store,
		pending:  map[string]*model.PendingOrder{},
		now:      time.Now,
	}
	if store != nil {
		if _, err := store.Load(&t.pending); err != nil {
			return nil, fmt.Errorf("pending orders: %w", err)
		}
		for id, po := range t.pending {
			if po == nil || !model.ValidOrderID(id) {
				delete(t.pending, id)
			}
		}
	}
	metrics.PendingOrders.Set(float64(len(t.pending)))
	return t, nil
}

// Register adds an order to the pending set. Untrackable ids are rejected so
// a garbage id can never wedge the poll loop.
func (t *OrderTracker) Register(po model.PendingOrder) error {
	if !model.ValidOrderID(po.OrderID) {
		return fmt.Errorf("untrackable order id %q", po.OrderID)
	}
	if _, exists := t.pending[po.OrderID]; exists {
		return fmt.Errorf("order %s already tracked", po.OrderID)
	}
	if po.SubmittedAt.IsZero() {
		po.SubmittedAt = t.now()
	}
	t.pending[po.OrderID] = &po
	t.persist()
	metrics.PendingOrders.Set(float64(len(t.pending)))
	return nil
}

// PendingCount returns the number of orders awaiting execution.
func (t *OrderTracker) PendingCount() int { return len(t.pending) }

// PendingFor reports whether any order for symbol is in flight.
func (t *OrderTracker) PendingFor(symbol string) bool {
	for _, po := range t.pending {
		if po.Symbol == symbol {
			return true
		}
	}
	return false
}

// CheckAll polls every pending order once. Per-order failures are isolated;
// one broken order never blocks the rest.
func (t *OrderTracker) CheckAll(ctx context.Context) {
	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && t.cfg.PollPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.cfg.PollPause):
			}
		}
		t.checkOne(ctx, id)
	}
	metrics.PendingOrders.Set(float64(len(t.pending)))
}

func (t *OrderTracker) checkOne(ctx context.Context, id string) {
	po, ok := t.pending[id]
	if !ok {
		return
	}
	now := t.now()

	// Stale orders are cancelled at the broker before being dropped, so
	// the remaining quantity cannot fill unobserved tomorrow.
	if t.cfg.StaleAfter > 0 && now.Sub(po.SubmittedAt) >= t.cfg.StaleAfter {
		if err := t.broker.CancelOrder(ctx, id); err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("stale order cancel failed")
		}
		t.drop(po, "stale")
		return
	}

	rep, err := t.broker.OrderExecution(ctx, id)
	if err != nil {
		metrics.APIErrors.Inc()
		po.FailCount++
		po.CheckCount++
		po.LastChecked = now
		log.Warn().Err(err).Str("order_id", id).Int("fails", po.FailCount).Msg("execution poll failed")
		if po.FailCount >= t.cfg.MaxErrorChecks || po.CheckCount >= t.cfg.HardCapChecks {
			// The order may still be live at the broker even though we
			// cannot see it; cancel best effort before giving up.
			if cerr := t.broker.CancelOrder(ctx, id); cerr != nil {
				log.Warn().Err(cerr).Str("order_id", id).Msg("exhausted order cancel failed")
			}
			t.drop(po, "error_exhausted")
			return
		}
		t.persist()
		return
	}

	t.apply(ctx, po, rep)
}

// apply folds one execution report into the tracked order. Quantities in the
// report are cumulative, so replaying the same report is a no-op. The failure
// counters track the status-check call itself: FailCount is the consecutive
// streak, reset by any successful poll, while CheckCount accumulates failed
// polls over the order's lifetime.
func (t *OrderTracker) apply(ctx context.Context, po *model.PendingOrder, rep *model.ExecutionReport) {
	po.LastChecked = t.now()

	switch rep.Status {
	case model.ExecFilled:
		t.book(ctx, po, rep)
		delete(t.pending, po.OrderID)
		t.persist()
		metrics.Fills.WithLabelValues(string(po.Side)).Inc()
		t.notifier.Notify(model.Event{
			ID: uuid.NewString(), Kind: model.EventOrderFilled,
			Symbol: po.Symbol, Side: po.Side, Quantity: rep.ExecutedQty,
			Price: rep.AvgPrice, OrderID: po.OrderID, At: t.now(),
		})
		return

	case model.ExecPartial:
		po.FailCount = 0
		booked := t.book(ctx, po, rep)
		if booked > 0 {
			t.notifier.Notify(model.Event{
				ID: uuid.NewString(), Kind: model.EventOrderPartial,
				Symbol: po.Symbol, Side: po.Side, Quantity: booked,
				Price: rep.AvgPrice, OrderID: po.OrderID, At: t.now(),
			})
		}
		t.persist()

	case model.ExecPending:
		po.FailCount = 0
		t.persist()

	case model.ExecNotFound:
		// The broker answered and does not know the order: it was
		// rejected or purged. Nothing will ever fill; stop polling now.
		log.Warn().Str("order_id", po.OrderID).Str("symbol", po.Symbol).
			Int("checks", po.CheckCount).Msg("order not in execution report")
		t.drop(po, "not_found")
	}
}

// book records any newly executed quantity into the ledger and journal.
// Returns the delta booked.
func (t *OrderTracker) book(ctx context.Context, po *model.PendingOrder, rep *model.ExecutionReport) int64 {
	delta := rep.ExecutedQty - po.BookedQty
	if delta <= 0 {
		return 0
	}
	price := rep.AvgPrice
	if price <= 0 {
		price = float64(po.LimitPrice)
	}

	if t.ledger != nil {
		var err error
		if po.Side == model.SideBuy {
			err = t.ledger.RecordPurchase(po.Symbol, delta, price, po.Strategy)
		} else {
			_, err = t.ledger.RecordSale(po.Symbol, delta, price, po.Strategy)
		}
		if err != nil {
			log.Error().Err(err).Str("order_id", po.OrderID).Msg("fill not booked")
		}
	}
	if t.journal != nil {
		if err := t.journal.RecordFill(ctx, port.JournalFill{
			OrderID: po.OrderID, Symbol: po.Symbol, Side: po.Side,
			Quantity: delta, Price: price, Reason: po.Strategy, At: t.now(),
		}); err != nil {
			log.Warn().Err(err).Msg("fill not journaled")
		}
	}

	po.BookedQty = rep.ExecutedQty
	return delta
}

// drop removes an order from the pending set without booking anything
// further. Partially booked quantity stays booked.
func (t *OrderTracker) drop(po *model.PendingOrder, cause string) {
	delete(t.pending, po.OrderID)
	t.persist()
	metrics.OrdersDropped.WithLabelValues(cause).Inc()
	log.Warn().Str("order_id", po.OrderID).Str("symbol", po.Symbol).
		Str("cause", cause).Int64("booked", po.BookedQty).Int64("ordered", po.Quantity).
		Msg("pending order dropped")
	t.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventOrderDropped,
		Symbol: po.Symbol, Side: po.Side, Quantity: po.Quantity - po.BookedQty,
		OrderID: po.OrderID, Reason: cause, At: t.now(),
	})
}

func (t *OrderTracker) persist() {
	if t.store == nil {
		return
	}
	err := t.store.Save(t.pending)
	if err != nil {
		err = t.store.Save(t.pending)
	}
	if err != nil {
		log.Error().Err(err).Str("path", t.store.Path()).Msg("pending set write failed")
	}
}

package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
	domsvc "kstrade/internal/domain/service"
	"kstrade/internal/infrastructure/metrics"
)

// Order pricing strategies, from most to least impatient.
const (
	StrategyUrgent     = "urgent"
	StrategyAggressive = "aggressive_limit"
	StrategyBalanced   = "balanced_limit"
	StrategyPatient    = "patient_limit"
	StrategyMarket     = "market"
)

// SizingTable maps signal strength to the fraction of the position budget to
// deploy. Thresholds ascend; a strength below the first threshold buys
// nothing.
type SizingTable struct {
	Thresholds []float64
	Fractions  []float64
}

// Fraction returns the budget fraction for the given strength.
func (t SizingTable) Fraction(strength float64) float64 {
	frac := 0.0
	for i, th := range t.Thresholds {
		if strength >= th {
			frac = t.Fractions[i]
		}
	}
	return frac
}

// OrderManager sizes and prices orders and routes them to the broker. Limit
// orders are handed to the tracker; market fallbacks are booked into the
// ledger immediately since they fill on arrival.
type OrderManager struct {
	broker   port.Broker
	tracker  *OrderTracker
	ledger   *PositionLedger
	journal  port.Journal
	notifier port.Notifier

	sizing           SizingTable
	maxPositionRatio float64
	minInvestment    float64
}

func NewOrderManager(
	broker port.Broker,
	tracker *OrderTracker,
	ledger *PositionLedger,
	journal port.Journal,
	notifier port.Notifier,
	sizing SizingTable,
	maxPositionRatio, minInvestment float64,
) *OrderManager {
	if notifier == nil {
		notifier = port.NopNotifier{}
	}
	return &OrderManager{
		broker:           broker,
		tracker:          tracker,
		ledger:           ledger,
		journal:          journal,
		notifier:         notifier,
		sizing:           sizing,
		maxPositionRatio: maxPositionRatio,
		minInvestment:    minInvestment,
	}
}

// PositionSize computes how many shares to buy: available cash capped by the
// per-position ratio, scaled by the strength fraction, floored to whole
// shares. A zero quantity comes with the reason it is zero.
func (m *OrderManager) PositionSize(cash, strength float64, price int64) (int64, string) {
	if price <= 0 {
		return 0, "no price"
	}
	budget := cash * m.maxPositionRatio
	frac := m.sizing.Fraction(strength)
	if frac == 0 {
		return 0, fmt.Sprintf("strength %.1f below sizing floor", strength)
	}
	investment := budget * frac
	if investment < m.minInvestment {
		// Small allocations are bumped up to the floor rather than
		// skipped, as long as cash can actually cover it.
		if cash < m.minInvestment {
			return 0, fmt.Sprintf("cash %.0f below minimum %.0f", cash, m.minInvestment)
		}
		investment = m.minInvestment
	}
	qty := int64(math.Floor(investment / float64(price)))
	if qty <= 0 {
		return 0, fmt.Sprintf("price %d above budget %.0f", price, investment)
	}
	return qty, ""
}

// LimitPrice computes the limit price for side and strategy from the current
// book, aligned to the tick grid. Urgent and aggressive orders cross the
// spread beyond the touch to fill immediately; the rest take the touch when
// the spread is tight and split the difference with the last trade when it
// is wide. A malformed book falls back to the last trade plus a small
// concession, and any result more than 30% away from the last trade is
// clamped to a 1% concession.
func (m *OrderManager) LimitPrice(side model.Side, strategy string, book *model.OrderBook) int64 {
	ref := float64(book.Price)

	var raw float64
	if book.Inverted() || book.Bid <= 0 || book.Ask <= 0 {
		// Book is stale or crossed. Concede 0.3% off the last trade.
		if side == model.SideBuy {
			raw = ref * 1.003
		} else {
			raw = ref * 0.997
		}
	} else {
		spread := book.Ask - book.Bid
		switch strategy {
		case StrategyUrgent, StrategyAggressive:
			// Pay past the touch by a quarter spread, at least one tick,
			// so queue position cannot delay the fill.
			if side == model.SideBuy {
				cross := spread / 4
				if t := domsvc.MinTickUnit(book.Ask); cross < t {
					cross = t
				}
				raw = float64(book.Ask + cross)
			} else {
				cross := spread / 4
				if t := domsvc.MinTickUnit(book.Bid); cross < t {
					cross = t
				}
				raw = float64(book.Bid - cross)
			}
		default: // balanced, patient
			if spread <= 5*domsvc.MinTickUnit(book.Price) {
				// Tight market: the touch fills soon enough.
				if side == model.SideBuy {
					raw = float64(book.Ask)
				} else {
					raw = float64(book.Bid)
				}
			} else {
				// Wide market: meet the touch halfway from the last trade.
				if side == model.SideBuy {
					raw = (ref + float64(book.Ask)) / 2
				} else {
					raw = (ref + float64(book.Bid)) / 2
				}
			}
		}
	}

	// Daily price band sanity clamp.
	if ref > 0 && math.Abs(raw-ref)/ref > 0.30 {
		if side == model.SideBuy {
			raw = ref * 1.01
		} else {
			raw = ref * 0.99
		}
	}
	return domsvc.AlignToTick(raw)
}

// Place submits a smart limit order, degrading to a market order when the
// book cannot be read or the limit submission is rejected. Limit orders
// enter the tracker; market orders are booked as filled at the reference
// price immediately.
func (m *OrderManager) Place(ctx context.Context, symbol, name string, side model.Side, qty int64, strategy string) (*model.OrderResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("place %s %s: non-positive quantity %d", side, symbol, qty)
	}

	if strategy == StrategyMarket {
		return m.placeMarket(ctx, symbol, name, side, qty, strategy, m.quoteRef(ctx, symbol))
	}

	book, err := m.broker.OrderBook(ctx, symbol)
	if err != nil {
		// A price we cannot determine must not kill the trading decision.
		metrics.APIErrors.Inc()
		log.Warn().Err(err).Str("symbol", symbol).Msg("book unavailable, degrading to market")
		return m.placeMarket(ctx, symbol, name, side, qty, strategy, m.quoteRef(ctx, symbol))
	}

	limit := m.LimitPrice(side, strategy, book)
	res, err := m.broker.PlaceOrder(ctx, symbol, side, qty, limit)
	if err != nil || !res.Success {
		if err != nil {
			metrics.APIErrors.Inc()
			log.Warn().Err(err).Str("symbol", symbol).Msg("limit order failed, trying market")
		} else {
			log.Warn().Str("symbol", symbol).Str("msg", res.Message).Msg("limit order rejected, trying market")
		}
		// Book the estimated fill at the side we would hit.
		ref := float64(book.Price)
		if side == model.SideBuy && book.Ask > 0 {
			ref = float64(book.Ask)
		} else if side == model.SideSell && book.Bid > 0 {
			ref = float64(book.Bid)
		}
		return m.placeMarket(ctx, symbol, name, side, qty, strategy, ref)
	}

	metrics.OrdersPlaced.WithLabelValues(string(side), strategy).Inc()
	m.journalOrder(ctx, res.OrderID, symbol, side, qty, limit, strategy)
	m.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventOrderPlaced,
		Symbol: symbol, Side: side, Quantity: qty, Price: float64(limit),
		OrderID: res.OrderID, At: time.Now(),
	})

	if m.tracker != nil {
		if err := m.tracker.Register(model.PendingOrder{
			OrderID: res.OrderID, Symbol: symbol, StockName: name,
			Side: side, Quantity: qty, LimitPrice: limit,
			Strategy: strategy, SubmittedAt: time.Now(),
		}); err != nil {
			log.Error().Err(err).Str("order_id", res.OrderID).Msg("order accepted but not trackable")
		}
	}
	return res, nil
}

// quoteRef fetches a reference price for booking a market fill. Zero when
// even the quote is unavailable.
func (m *OrderManager) quoteRef(ctx context.Context, symbol string) float64 {
	q, err := m.broker.Quote(ctx, symbol)
	if err != nil {
		metrics.APIErrors.Inc()
		return 0
	}
	return float64(q.Price)
}

// placeMarket is the degradation path. A market order fills at once, so the
// ledger is updated here at the reference price rather than via the tracker.
func (m *OrderManager) placeMarket(ctx context.Context, symbol, name string, side model.Side, qty int64, strategy string, ref float64) (*model.OrderResult, error) {
	res, err := m.broker.PlaceOrder(ctx, symbol, side, qty, 0)
	if err != nil {
		metrics.APIErrors.Inc()
		return nil, fmt.Errorf("market fallback %s %s: %w", side, symbol, err)
	}
	if !res.Success {
		m.notifier.Notify(model.Event{
			ID: uuid.NewString(), Kind: model.EventOrderFailed,
			Symbol: symbol, Side: side, Quantity: qty,
			Message: res.Message, At: time.Now(),
		})
		return res, nil
	}

	metrics.OrdersPlaced.WithLabelValues(string(side), "market").Inc()
	metrics.Fills.WithLabelValues(string(side)).Inc()
	m.journalOrder(ctx, res.OrderID, symbol, side, qty, 0, "market")

	if ref <= 0 {
		// No usable price to book against; the next holdings refresh
		// reconciles the broker-side position.
		log.Warn().Str("symbol", symbol).Str("order_id", res.OrderID).
			Msg("market fill price unknown, not booked")
		return res, nil
	}

	if m.ledger != nil {
		if side == model.SideBuy {
			if err := m.ledger.RecordPurchase(symbol, qty, ref, strategy); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("market buy not booked")
			}
		} else {
			if _, err := m.ledger.RecordSale(symbol, qty, ref, strategy); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("market sell not booked")
			}
		}
	}
	if m.journal != nil {
		if err := m.journal.RecordFill(ctx, port.JournalFill{
			OrderID: res.OrderID, Symbol: symbol, Side: side,
			Quantity: qty, Price: ref, Reason: strategy, At: time.Now(),
		}); err != nil {
			log.Warn().Err(err).Msg("fill not journaled")
		}
	}
	m.notifier.Notify(model.Event{
		ID: uuid.NewString(), Kind: model.EventOrderFilled,
		Symbol: symbol, Side: side, Quantity: qty, Price: ref,
		OrderID: res.OrderID, Reason: "market_fallback", At: time.Now(),
	})
	return res, nil
}

func (m *OrderManager) journalOrder(ctx context.Context, orderID, symbol string, side model.Side, qty, limit int64, strategy string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.RecordOrder(ctx, port.JournalOrder{
		OrderID: orderID, Symbol: symbol, Side: side,
		Quantity: qty, LimitPrice: limit, Strategy: strategy, At: time.Now(),
	}); err != nil {
		log.Warn().Err(err).Msg("order not journaled")
	}
}

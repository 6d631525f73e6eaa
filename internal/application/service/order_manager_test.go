package service

import (
	"context"
	"errors"
	"testing"

	"kstrade/internal/domain/model"
)

func defaultSizing() SizingTable {
	return SizingTable{
		Thresholds: []float64{0.5, 1.0, 2.0, 3.0, 4.0},
		Fractions:  []float64{0.2, 0.4, 0.6, 0.8, 1.0},
	}
}

func newManager(b *fakeBroker, tr *OrderTracker, l *PositionLedger) *OrderManager {
	return NewOrderManager(b, tr, l, nil, nil, defaultSizing(), 0.25, 100_000)
}

func TestPositionSizeFullStrength(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)

	// 1,000,000 cash, 25% cap, strength 4.5 deploys the full budget:
	// 250,000 / 50,000 = 5 shares.
	qty, why := m.PositionSize(1_000_000, 4.5, 50_000)
	if qty != 5 {
		t.Fatalf("qty = %d (%s), want 5", qty, why)
	}
}

func TestPositionSizeStepFunction(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)

	// 250k budget scaled by the fraction for each strength band; 0.4 sits
	// below the lowest threshold and buys nothing.
	cases := []struct {
		strength float64
		wantQty  int64
	}{
		{4.0, 5},
		{3.5, 4},
		{2.9, 3},
		{0.4, 0},
	}
	for _, c := range cases {
		qty, _ := m.PositionSize(1_000_000, c.strength, 50_000)
		if qty != c.wantQty {
			t.Errorf("strength %.1f: qty = %d, want %d", c.strength, qty, c.wantQty)
		}
	}
}

func TestPositionSizeBumpsToMinInvestment(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)

	// 0.2 fraction of 25% of 1,000,000 is 50,000, under the 100,000 floor.
	// Cash covers the floor, so the allocation is bumped up to it.
	qty, why := m.PositionSize(1_000_000, 0.6, 10_000)
	if qty != 10 {
		t.Fatalf("qty = %d (%s), want 10", qty, why)
	}
}

func TestPositionSizeCashBelowFloor(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)

	// The allocation is under the floor and cash cannot cover the floor
	// either: no order.
	qty, why := m.PositionSize(80_000, 0.6, 10_000)
	if qty != 0 {
		t.Fatalf("qty = %d, want 0", qty)
	}
	if why == "" {
		t.Fatal("zero quantity must carry a reason")
	}
}

func TestPositionSizePriceAboveBudget(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)
	qty, why := m.PositionSize(1_000_000, 4.5, 900_000)
	if qty != 0 || why == "" {
		t.Fatalf("qty = %d (%q), want 0 with reason", qty, why)
	}
}

func TestLimitPriceCrossesSpread(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)
	book := &model.OrderBook{Symbol: "005930", Price: 9_990, Bid: 9_980, Ask: 10_000}

	// Quarter spread is 5, under one tick, so the concession is a full
	// tick past the touch: 10,000 + 50 buying, 9,980 - 10 selling.
	if got := m.LimitPrice(model.SideBuy, StrategyUrgent, book); got != 10_050 {
		t.Fatalf("urgent buy = %d, want 10050", got)
	}
	if got := m.LimitPrice(model.SideSell, StrategyUrgent, book); got != 9_970 {
		t.Fatalf("urgent sell = %d, want 9970", got)
	}
	// Aggressive prices the same way as urgent.
	if got := m.LimitPrice(model.SideBuy, StrategyAggressive, book); got != 10_050 {
		t.Fatalf("aggressive buy = %d, want 10050", got)
	}
}

func TestLimitPriceTightSpreadTakesTouch(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)
	// Spread 100 on a 100-tick symbol: within five ticks, so balanced and
	// patient orders sit at the touch.
	book := &model.OrderBook{Symbol: "005930", Price: 50_000, Bid: 50_000, Ask: 50_100}

	if got := m.LimitPrice(model.SideBuy, StrategyBalanced, book); got != 50_100 {
		t.Fatalf("balanced buy = %d, want ask 50100", got)
	}
	if got := m.LimitPrice(model.SideSell, StrategyPatient, book); got != 50_000 {
		t.Fatalf("patient sell = %d, want bid 50000", got)
	}
	// Urgent still pays past the touch on the same book.
	if got := m.LimitPrice(model.SideBuy, StrategyUrgent, book); got != 50_200 {
		t.Fatalf("urgent buy = %d, want 50200", got)
	}
}

func TestLimitPriceWideSpreadMidpoint(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)
	// Spread 1,300 is more than five ticks: meet the touch halfway from
	// the last trade. Buy (50,000+50,800)/2, sell (50,000+49,500)/2.
	book := &model.OrderBook{Symbol: "005930", Price: 50_000, Bid: 49_500, Ask: 50_800}

	if got := m.LimitPrice(model.SideBuy, StrategyBalanced, book); got != 50_400 {
		t.Fatalf("balanced buy = %d, want 50400", got)
	}
	if got := m.LimitPrice(model.SideSell, StrategyPatient, book); got != 49_750 {
		t.Fatalf("patient sell = %d, want 49750", got)
	}
}

func TestLimitPriceInvertedBookFallback(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)
	book := &model.OrderBook{Symbol: "005930", Price: 10_000, Bid: 10_050, Ask: 10_000}

	// Crossed book: concede 0.3% off the last trade, on the grid.
	if got := m.LimitPrice(model.SideBuy, StrategyBalanced, book); got != 10_000 {
		t.Fatalf("inverted-book buy = %d, want 10000", got)
	}
	if got := m.LimitPrice(model.SideSell, StrategyBalanced, book); got != 9_970 {
		t.Fatalf("inverted-book sell = %d, want 9970", got)
	}
}

func TestLimitPriceBandClamp(t *testing.T) {
	m := newManager(newFakeBroker(), nil, nil)
	// Garbage ask 40% above the last trade: crossing it would land 50%
	// out, so clamp to a 1% concession.
	book := &model.OrderBook{Symbol: "005930", Price: 10_000, Bid: 9_990, Ask: 14_000}

	got := m.LimitPrice(model.SideBuy, StrategyUrgent, book)
	if got != 10_100 {
		t.Fatalf("clamped buy = %d, want 10100", got)
	}
}

func TestPlaceRegistersWithTracker(t *testing.T) {
	b := newFakeBroker()
	b.books["005930"] = &model.OrderBook{Symbol: "005930", Price: 50_000, Bid: 50_000, Ask: 50_100}
	b.placeSeq = []*model.OrderResult{{Success: true, OrderID: "0001112223"}}

	ledger, _ := newTestLedger(t)
	tracker, err := NewOrderTracker(b, ledger, nil, nil, DefaultTrackerConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m := newManager(b, tracker, ledger)

	res, err := m.Place(context.Background(), "005930", "", model.SideBuy, 5, StrategyBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("place failed: %s", res.Message)
	}
	if tracker.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", tracker.PendingCount())
	}
	if len(b.placed) != 1 || b.placed[0].price == 0 {
		t.Fatalf("expected one limit order, got %+v", b.placed)
	}
}

func TestPlaceFallsBackToMarket(t *testing.T) {
	b := newFakeBroker()
	b.books["005930"] = &model.OrderBook{Symbol: "005930", Price: 50_000, Bid: 50_000, Ask: 50_100}
	b.placeErr = []error{errors.New("limit rejected")}
	b.placeSeq = []*model.OrderResult{nil, {Success: true, OrderID: "0001112224"}}

	ledger, _ := newTestLedger(t)
	tracker, err := NewOrderTracker(b, ledger, nil, nil, DefaultTrackerConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m := newManager(b, tracker, ledger)

	res, err := m.Place(context.Background(), "005930", "", model.SideBuy, 5, StrategyBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("market fallback failed: %s", res.Message)
	}
	if len(b.placed) != 2 {
		t.Fatalf("placed %d orders, want 2", len(b.placed))
	}
	if b.placed[1].price != 0 {
		t.Fatalf("fallback price = %d, want 0 (market)", b.placed[1].price)
	}
	// Market fills are booked immediately at the ask.
	p := ledger.Position("005930")
	if p == nil || p.Quantity != 5 {
		t.Fatalf("market buy not booked: %+v", p)
	}
	if p.AvgPrice != 50_100 {
		t.Fatalf("booked at %f, want ask 50100", p.AvgPrice)
	}
	// Nothing to track for a market order.
	if tracker.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", tracker.PendingCount())
	}
}

func TestPlaceDegradesToMarketOnBookFailure(t *testing.T) {
	b := newFakeBroker() // no book scripted: the book fetch errors
	b.quotes["005930"] = &model.Quote{Symbol: "005930", Price: 50_000}
	b.placeSeq = []*model.OrderResult{{Success: true, OrderID: "0001112225"}}

	ledger, _ := newTestLedger(t)
	tracker, err := NewOrderTracker(b, ledger, nil, nil, DefaultTrackerConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m := newManager(b, tracker, ledger)

	res, err := m.Place(context.Background(), "005930", "", model.SideBuy, 5, StrategyBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("degraded order failed: %s", res.Message)
	}
	if len(b.placed) != 1 || b.placed[0].price != 0 {
		t.Fatalf("expected one market order, got %+v", b.placed)
	}
	// Booked at the quote since no book was available.
	p := ledger.Position("005930")
	if p == nil || p.Quantity != 5 || p.AvgPrice != 50_000 {
		t.Fatalf("degraded fill not booked at the quote: %+v", p)
	}
	if tracker.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", tracker.PendingCount())
	}
}

func TestPlaceMarketStrategyDirect(t *testing.T) {
	b := newFakeBroker()
	b.quotes["005930"] = &model.Quote{Symbol: "005930", Price: 50_000}
	b.placeSeq = []*model.OrderResult{{Success: true, OrderID: "0001112226"}}

	ledger, _ := newTestLedger(t)
	m := newManager(b, nil, ledger)

	res, err := m.Place(context.Background(), "005930", "", model.SideSell, 3, StrategyMarket)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("market order failed: %s", res.Message)
	}
	if len(b.placed) != 1 || b.placed[0].price != 0 {
		t.Fatalf("expected one market order, got %+v", b.placed)
	}
}

func TestPlaceMarketUnpricedFillNotBooked(t *testing.T) {
	b := newFakeBroker() // neither book nor quote scripted
	b.placeSeq = []*model.OrderResult{{Success: true, OrderID: "0001112227"}}

	ledger, _ := newTestLedger(t)
	m := newManager(b, nil, ledger)

	res, err := m.Place(context.Background(), "005930", "", model.SideBuy, 5, StrategyBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("degraded order failed: %s", res.Message)
	}
	// No usable reference price: the order goes out but nothing is
	// booked; the holdings refresh reconciles later.
	if p := ledger.Position("005930"); p != nil {
		t.Fatalf("unpriced fill must not be booked: %+v", p)
	}
}

package model

import (
	"fmt"
	"time"
)

// TradeRecord is one executed purchase or sale attributed to a symbol.
// Records are append-only; cooldown and purchase-cap checks walk this list.
type TradeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Side      Side      `json:"side"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Strategy  string    `json:"strategy"` // strategy tag on buys, exit reason on sells
}

// Position is the strategy's own record of ownership for one symbol,
// independent of the broker's bookkeeping.
type Position struct {
	Symbol        string        `json:"symbol"`
	Quantity      int64         `json:"quantity"`
	AvgPrice      float64       `json:"avg_price"`
	PurchaseCount int           `json:"purchase_count"`
	History       []TradeRecord `json:"history"`
	FirstBuyAt    time.Time     `json:"first_buy_at,omitempty"`
	LastBuyAt     time.Time     `json:"last_buy_at,omitempty"`
	LastSaleAt    time.Time     `json:"last_sale_at,omitempty"`
	ClosedAt      time.Time     `json:"closed_at,omitempty"`
}

// NewPosition creates an empty position for symbol.
func NewPosition(symbol string) *Position {
	return &Position{Symbol: symbol}
}

// ApplyPurchase appends a buy record and recomputes the running
// volume-weighted average price.
func (p *Position) ApplyPurchase(ts time.Time, qty int64, price float64, strategy string) error {
	if qty <= 0 {
		return fmt.Errorf("purchase quantity must be positive, got %d", qty)
	}
	if price <= 0 {
		return fmt.Errorf("purchase price must be positive, got %f", price)
	}
	total := float64(p.Quantity)*p.AvgPrice + float64(qty)*price
	p.Quantity += qty
	p.AvgPrice = total / float64(p.Quantity)
	p.PurchaseCount++
	p.History = append(p.History, TradeRecord{
		Timestamp: ts, Side: SideBuy, Quantity: qty, Price: price, Strategy: strategy,
	})
	if p.FirstBuyAt.IsZero() {
		p.FirstBuyAt = ts
	}
	p.LastBuyAt = ts
	p.ClosedAt = time.Time{}
	return nil
}

// ApplySale appends a sell record and decrements quantity. The requested
// quantity is capped at the held quantity; the caller logs the drift when
// capped reports true.
func (p *Position) ApplySale(ts time.Time, qty int64, price float64, reason string) (applied int64, capped bool, err error) {
	if qty <= 0 {
		return 0, false, fmt.Errorf("sale quantity must be positive, got %d", qty)
	}
	applied = qty
	if applied > p.Quantity {
		applied = p.Quantity
		capped = true
	}
	p.Quantity -= applied
	p.History = append(p.History, TradeRecord{
		Timestamp: ts, Side: SideSell, Quantity: applied, Price: price, Strategy: reason,
	})
	p.LastSaleAt = ts
	if p.Quantity == 0 {
		p.ClosedAt = ts
	}
	return applied, capped, nil
}

// Closed reports whether the position has been fully disposed.
func (p *Position) Closed() bool { return p.Quantity == 0 && !p.ClosedAt.IsZero() }

// HoldingDuration is the time since the earliest purchase of the current
// holding cycle.
func (p *Position) HoldingDuration(now time.Time) time.Duration {
	if p.FirstBuyAt.IsZero() {
		return 0
	}
	return now.Sub(p.FirstBuyAt)
}

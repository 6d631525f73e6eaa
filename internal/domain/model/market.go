package model

import "time"

// Quote is the last-trade snapshot for one symbol.
type Quote struct {
	Symbol    string
	Price     int64
	ChangePct float64
	Volume    int64
	Timestamp time.Time
}

// OrderBook carries the best bid/ask level used by smart limit pricing.
type OrderBook struct {
	Symbol string
	Price  int64 // last trade
	Bid    int64
	Ask    int64
	BidQty int64
	AskQty int64
	Spread int64
}

// Inverted reports a malformed or stale book (ask at or below bid).
func (b *OrderBook) Inverted() bool { return b.Ask <= b.Bid }

// Bar is one OHLCV candle, daily or intraday.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Holding is one broker-reported account position.
type Holding struct {
	Symbol       string
	Name         string
	Quantity     int64
	AvgPrice     float64
	CurrentPrice float64
	PnLPct       float64 // percentage as reported, e.g. -6.8
	TotalValue   float64
}

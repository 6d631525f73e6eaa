package port

import (
	"context"
	"time"

	"kstrade/internal/domain/model"
)

// JournalFill is one recorded execution.
type JournalFill struct {
	OrderID  string
	Symbol   string
	Side     model.Side
	Quantity int64
	Price    float64
	Reason   string
	At       time.Time
}

// JournalOrder is one recorded submission.
type JournalOrder struct {
	OrderID    string
	Symbol     string
	Side       model.Side
	Quantity   int64
	LimitPrice int64
	Strategy   string
	At         time.Time
}

// CycleSummary aggregates one orchestrator pass.
type CycleSummary struct {
	StartedAt  time.Time
	Duration   time.Duration
	Holdings   int
	Candidates int
	Buys       int
	Sells      int
	Errors     int
}

// DayReport is the per-day aggregate served by the report command.
type DayReport struct {
	Day        string // YYYY-MM-DD
	Buys       int
	Sells      int
	BuyVolume  float64
	SellVolume float64
}

// Journal is the durable audit trail of orders, fills and cycles.
type Journal interface {
	RecordOrder(ctx context.Context, o JournalOrder) error
	RecordFill(ctx context.Context, f JournalFill) error
	RecordCycle(ctx context.Context, c CycleSummary) error
	DailyReport(ctx context.Context, days int) ([]DayReport, error)
	Close() error
}

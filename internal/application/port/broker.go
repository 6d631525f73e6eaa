package port

import (
	"context"

	"kstrade/internal/domain/model"
)

// Broker is the brokerage REST surface the trading core depends on. Every
// call is a synchronous network round-trip; implementations own retry and
// rate-limit policy.
type Broker interface {
	// Quote returns the last-trade snapshot.
	Quote(ctx context.Context, symbol string) (*model.Quote, error)

	// OrderBook returns the best bid/ask level.
	OrderBook(ctx context.Context, symbol string) (*model.OrderBook, error)

	// AvailableCash returns the orderable cash balance.
	AvailableCash(ctx context.Context) (float64, error)

	// Holdings returns all account positions keyed by symbol.
	Holdings(ctx context.Context) (map[string]model.Holding, error)

	// PlaceOrder submits an order. price 0 means market.
	PlaceOrder(ctx context.Context, symbol string, side model.Side, qty int64, price int64) (*model.OrderResult, error)

	// OrderExecution polls today's execution report for one order id.
	OrderExecution(ctx context.Context, orderID string) (*model.ExecutionReport, error)

	// CancelOrder cancels the full remaining quantity of an order.
	CancelOrder(ctx context.Context, orderID string) error

	// DailyBars returns up to days of daily candles, oldest first.
	DailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error)

	// MinuteBars returns the recent intraday candles, oldest first.
	MinuteBars(ctx context.Context, symbol string) ([]model.Bar, error)
}

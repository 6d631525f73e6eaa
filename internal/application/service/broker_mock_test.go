package service

import (
	"context"
	"errors"

	"kstrade/internal/domain/model"
)

// fakeBroker is a scriptable port.Broker for tests.
type fakeBroker struct {
	quotes map[string]*model.Quote
	books  map[string]*model.OrderBook
	cash   float64
	holds  map[string]model.Holding

	execs    map[string]*model.ExecutionReport
	execErr  error
	placeSeq []*model.OrderResult
	placeErr []error
	placed   []placedOrder
	canceled []string
}

type placedOrder struct {
	symbol string
	side   model.Side
	qty    int64
	price  int64
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		quotes: map[string]*model.Quote{},
		books:  map[string]*model.OrderBook{},
		holds:  map[string]model.Holding{},
		execs:  map[string]*model.ExecutionReport{},
	}
}

func (f *fakeBroker) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, errors.New("no quote scripted")
	}
	return q, nil
}

func (f *fakeBroker) OrderBook(_ context.Context, symbol string) (*model.OrderBook, error) {
	b, ok := f.books[symbol]
	if !ok {
		return nil, errors.New("no book scripted")
	}
	return b, nil
}

func (f *fakeBroker) AvailableCash(context.Context) (float64, error) { return f.cash, nil }

func (f *fakeBroker) Holdings(context.Context) (map[string]model.Holding, error) {
	return f.holds, nil
}

func (f *fakeBroker) PlaceOrder(_ context.Context, symbol string, side model.Side, qty, price int64) (*model.OrderResult, error) {
	f.placed = append(f.placed, placedOrder{symbol, side, qty, price})
	i := len(f.placed) - 1
	if i < len(f.placeErr) && f.placeErr[i] != nil {
		return nil, f.placeErr[i]
	}
	if i < len(f.placeSeq) {
		return f.placeSeq[i], nil
	}
	return &model.OrderResult{Success: true, OrderID: "0000000001", LimitPrice: price}, nil
}

func (f *fakeBroker) OrderExecution(_ context.Context, orderID string) (*model.ExecutionReport, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	rep, ok := f.execs[orderID]
	if !ok {
		return &model.ExecutionReport{Status: model.ExecNotFound}, nil
	}
	return rep, nil
}

func (f *fakeBroker) CancelOrder(_ context.Context, orderID string) error {
	f.canceled = append(f.canceled, orderID)
	return nil
}

func (f *fakeBroker) DailyBars(context.Context, string, int) ([]model.Bar, error) {
	return nil, nil
}

func (f *fakeBroker) MinuteBars(context.Context, string) ([]model.Bar, error) {
	return nil, nil
}

// Package signal scores symbols from daily candles using standard technical
// indicators. The output is a BUY/SELL/HOLD verdict with a 0-5 strength plus
// a longer-horizon potential score.
package signal

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"

	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
)

const minBars = 35 // slow MACD leg plus signal line warm-up

// Engine is a stateless technical scorer.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

var _ port.SignalEngine = (*Engine)(nil)

// Analyze scores one symbol. Too little history yields a HOLD rather than an
// error so a freshly listed symbol never aborts a cycle.
func (e *Engine) Analyze(_ context.Context, symbol string, daily []model.Bar) (*model.Signal, error) {
	if len(daily) < minBars {
		return &model.Signal{Symbol: symbol, Action: model.ActionHold,
			Reasons: []string{fmt.Sprintf("only %d bars of history", len(daily))}}, nil
	}

	closes := make([]float64, len(daily))
	volumes := make([]float64, len(daily))
	for i, b := range daily {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}
	last := len(closes) - 1
	price := closes[last]

	rsi := talib.Rsi(closes, 14)
	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)
	upper, _, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	sma5 := talib.Sma(closes, 5)
	sma20 := talib.Sma(closes, 20)

	var buy, sell float64
	var reasons []string

	switch r := rsi[last]; {
	case r <= 30:
		buy += 1.5
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", r))
	case r <= 40:
		buy += 0.5
		reasons = append(reasons, fmt.Sprintf("RSI low (%.1f)", r))
	case r >= 70:
		sell += 1.5
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", r))
	case r >= 60:
		sell += 0.5
		reasons = append(reasons, fmt.Sprintf("RSI high (%.1f)", r))
	}

	// MACD line crossing its signal line.
	if macd[last] > macdSignal[last] && macd[last-1] <= macdSignal[last-1] {
		buy += 1.0
		reasons = append(reasons, "MACD bullish cross")
	} else if macd[last] < macdSignal[last] && macd[last-1] >= macdSignal[last-1] {
		sell += 1.0
		reasons = append(reasons, "MACD bearish cross")
	} else if macd[last] > macdSignal[last] {
		buy += 0.5
	} else {
		sell += 0.5
	}

	if lower[last] > 0 && price <= lower[last] {
		buy += 1.0
		reasons = append(reasons, "below lower Bollinger band")
	} else if upper[last] > 0 && price >= upper[last] {
		sell += 1.0
		reasons = append(reasons, "above upper Bollinger band")
	}

	if sma5[last] > sma20[last] && sma5[last-1] <= sma20[last-1] {
		buy += 1.0
		reasons = append(reasons, "5/20 golden cross")
	} else if sma5[last] < sma20[last] && sma5[last-1] >= sma20[last-1] {
		sell += 1.0
		reasons = append(reasons, "5/20 dead cross")
	} else if sma5[last] > sma20[last] {
		buy += 0.5
	} else {
		sell += 0.5
	}

	// Five-day momentum.
	if ref := closes[last-5]; ref > 0 {
		mom := (price - ref) / ref
		if mom >= 0.03 {
			buy += 0.5
			reasons = append(reasons, fmt.Sprintf("momentum +%.1f%% over 5d", mom*100))
		} else if mom <= -0.03 {
			sell += 0.5
			reasons = append(reasons, fmt.Sprintf("momentum %.1f%% over 5d", mom*100))
		}
	}

	sig := &model.Signal{Symbol: symbol, Reasons: reasons}
	switch {
	case buy > sell && buy >= 1.0:
		sig.Action = model.ActionBuy
		sig.Strength = clamp(buy, 0, 5)
	case sell > buy && sell >= 1.0:
		sig.Action = model.ActionSell
		sig.Strength = clamp(sell, 0, 5)
	default:
		sig.Action = model.ActionHold
	}
	sig.Potential = scorePotential(closes, volumes, rsi[last], macd[last], macdSignal[last])
	return sig, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

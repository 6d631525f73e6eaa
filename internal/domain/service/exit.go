package service

import (
	"fmt"
	"time"

	"kstrade/internal/domain/model"
)

// ExitRules evaluates the sell-side rules for one held position. Rules are
// checked in strict priority order and the first match wins.
type ExitRules struct {
	StopLossPct      float64 // e.g. 0.06: exit when unrealized loss reaches -6%
	TakeProfitPct    float64 // e.g. 0.20
	RapidDropPct     float64 // fall over the trailing hour, e.g. 0.05
	RapidDropHighPct float64 // fall from the trailing 30-minute high, e.g. 0.08
	SellStrength     float64 // technical SELL threshold, e.g. 4.0
}

// DefaultExitRules mirrors the production defaults.
func DefaultExitRules() ExitRules {
	return ExitRules{
		StopLossPct:      0.06,
		TakeProfitPct:    0.20,
		RapidDropPct:     0.05,
		RapidDropHighPct: 0.08,
		SellStrength:     4.0,
	}
}

// ExitDecision is the outcome of one evaluation.
type ExitDecision struct {
	Sell     bool
	Urgent   bool   // urgent exits bypass the minimum holding period
	Reason   string // stop_loss / rapid_drop / take_profit / sell_signal
	Strategy string // order pricing strategy to use for the sell
	Detail   string
}

// Evaluate runs the rule chain for a position with the given unrealized PnL
// (fraction, -0.07 for -7%), recent intraday bars and the latest technical
// signal. minuteBars may be empty and sig may be nil; the corresponding rules
// are then skipped.
func (r ExitRules) Evaluate(pnl float64, minuteBars []model.Bar, sig *model.Signal, now time.Time) ExitDecision {
	// 1. Hard stop-loss. Capital preservation overrides the anti-churn rules.
	if pnl <= -r.StopLossPct {
		return ExitDecision{
			Sell: true, Urgent: true, Reason: "stop_loss", Strategy: "urgent",
			Detail: fmt.Sprintf("unrealized %.2f%% <= -%.1f%%", pnl*100, r.StopLossPct*100),
		}
	}

	// 2. Rapid intraday drop. Catches a reversal before the stop-loss
	// threshold from the original entry price is reached.
	if hit, detail := r.rapidDrop(minuteBars, now); hit {
		return ExitDecision{Sell: true, Urgent: true, Reason: "rapid_drop", Strategy: "urgent", Detail: detail}
	}

	// 3. Take-profit. Not urgent: the holding-period lock still applies.
	if pnl >= r.TakeProfitPct {
		return ExitDecision{
			Sell: true, Reason: "take_profit", Strategy: "patient_limit",
			Detail: fmt.Sprintf("unrealized %.2f%% >= +%.1f%%", pnl*100, r.TakeProfitPct*100),
		}
	}

	// 4. Technical sell signal.
	if sig != nil && sig.Action == model.ActionSell && sig.Strength >= r.SellStrength {
		return ExitDecision{
			Sell: true, Reason: "sell_signal", Strategy: "aggressive_limit",
			Detail: fmt.Sprintf("SELL strength %.1f >= %.1f", sig.Strength, r.SellStrength),
		}
	}

	return ExitDecision{}
}

// rapidDrop checks the intraday micro-trend: a fall of RapidDropPct over the
// trailing hour, or RapidDropHighPct from the trailing 30-minute high.
func (r ExitRules) rapidDrop(bars []model.Bar, now time.Time) (bool, string) {
	if len(bars) == 0 {
		return false, ""
	}
	last := bars[len(bars)-1]
	current := last.Close
	if current <= 0 {
		return false, ""
	}

	hourAgo := now.Add(-time.Hour)
	halfHourAgo := now.Add(-30 * time.Minute)

	var hourRef float64
	highest := 0.0
	for _, b := range bars {
		if b.Time.Before(hourAgo) {
			continue
		}
		if hourRef == 0 {
			hourRef = b.Close
		}
		if !b.Time.Before(halfHourAgo) && b.High > highest {
			highest = b.High
		}
	}

	if hourRef > 0 {
		change := (current - hourRef) / hourRef
		if change <= -r.RapidDropPct {
			return true, fmt.Sprintf("%.2f%% drop over trailing hour", change*100)
		}
	}
	if highest > 0 {
		fromHigh := (current - highest) / highest
		if fromHigh <= -r.RapidDropHighPct {
			return true, fmt.Sprintf("%.2f%% below trailing 30m high", fromHigh*100)
		}
	}
	return false, ""
}

package signal

import "kstrade/internal/domain/model"

// scorePotential builds the 0-100 longer-horizon composite:
// technical 30, price position 20, momentum 20, volume 15, market 15.
// Without an index feed the market factor sits at its neutral midpoint.
func scorePotential(closes, volumes []float64, rsi, macd, macdSignal float64) *model.FuturePotential {
	last := len(closes) - 1
	price := closes[last]

	p := &model.FuturePotential{Market: 7.5}

	// Technical: RSI sweet spot plus MACD posture.
	switch {
	case rsi >= 40 && rsi <= 60:
		p.Technical += 15
	case rsi < 40:
		p.Technical += 20 // room to recover
	default:
		p.Technical += 5
	}
	if macd > macdSignal {
		p.Technical += 10
	}
	if p.Technical > 30 {
		p.Technical = 30
	}

	// Price position within the available range: lower is more headroom.
	lo, hi := closes[0], closes[0]
	for _, c := range closes {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if hi > lo {
		pos := (price - lo) / (hi - lo)
		p.PricePosition = (1 - pos) * 20
	} else {
		p.PricePosition = 10
	}

	// Momentum: 5-day and 20-day returns.
	if last >= 20 {
		r5 := ret(closes, last, 5)
		r20 := ret(closes, last, 20)
		if r5 > 0 {
			p.Momentum += 10
		} else if r5 > -0.02 {
			p.Momentum += 5
		}
		if r20 > 0 {
			p.Momentum += 10
		} else if r20 > -0.05 {
			p.Momentum += 5
		}
	}

	// Volume: recent activity versus the 20-day average.
	if last >= 20 {
		var avg float64
		for i := last - 20; i < last; i++ {
			avg += volumes[i]
		}
		avg /= 20
		if avg > 0 {
			switch ratio := volumes[last] / avg; {
			case ratio >= 2:
				p.Volume = 15
			case ratio >= 1.2:
				p.Volume = 10
			case ratio >= 0.8:
				p.Volume = 7
			default:
				p.Volume = 3
			}
		}
	}

	p.Total = p.Technical + p.PricePosition + p.Momentum + p.Volume + p.Market
	if p.Total > 100 {
		p.Total = 100
	}
	if p.Total < 0 {
		p.Total = 0
	}

	p.Grade = gradeFor(p.Total)
	return p
}

func gradeFor(total float64) string {
	switch {
	case total >= 80:
		return "STRONG_BUY"
	case total >= 70:
		return "BUY"
	case total >= 60:
		return "WATCH"
	case total >= 40:
		return "NEUTRAL"
	default:
		return "AVOID"
	}
}

func ret(closes []float64, last, n int) float64 {
	ref := closes[last-n]
	if ref == 0 {
		return 0
	}
	return (closes[last] - ref) / ref
}

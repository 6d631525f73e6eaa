package service

// KRX price-unit (tick) grid. Orders must be quoted on this grid or the
// exchange rejects them.

// MinTickUnit returns the minimum price increment for the given price band.
func MinTickUnit(price int64) int64 {
	switch {
	case price < 1_000:
		return 1
	case price < 5_000:
		return 5
	case price < 10_000:
		return 10
	case price < 50_000:
		return 50
	case price < 100_000:
		return 100
	case price < 500_000:
		return 500
	default:
		return 1_000
	}
}

// AlignToTick floors a raw price onto the legal tick grid. Alignment is
// idempotent: aligning an already-aligned price returns it unchanged.
func AlignToTick(price float64) int64 {
	if price <= 0 {
		return 1
	}
	p := int64(price)
	unit := MinTickUnit(p)
	aligned := p / unit * unit
	if aligned < 1 {
		return 1
	}
	return aligned
}

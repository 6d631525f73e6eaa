package service

import "testing"

func TestMinTickUnit(t *testing.T) {
	cases := []struct {
		price int64
		want  int64
	}{
		{500, 1},
		{999, 1},
		{1_000, 5},
		{4_999, 5},
		{5_000, 10},
		{9_990, 10},
		{10_000, 50},
		{49_950, 50},
		{50_000, 100},
		{99_900, 100},
		{100_000, 500},
		{499_500, 500},
		{500_000, 1_000},
		{1_234_000, 1_000},
	}
	for _, c := range cases {
		if got := MinTickUnit(c.price); got != c.want {
			t.Errorf("MinTickUnit(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestAlignToTick(t *testing.T) {
	cases := []struct {
		raw  float64
		want int64
	}{
		{10_037, 10_000},
		{10_050, 10_050},
		{1_003, 1_000},
		{999.9, 999},
		{52_345, 52_300},
		{0, 1},
		{-5, 1},
	}
	for _, c := range cases {
		if got := AlignToTick(c.raw); got != c.want {
			t.Errorf("AlignToTick(%v) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestAlignToTickIdempotent(t *testing.T) {
	for _, raw := range []float64{777, 3_333, 8_888, 44_444, 87_654, 345_678, 1_234_567} {
		once := AlignToTick(raw)
		twice := AlignToTick(float64(once))
		if once != twice {
			t.Errorf("align not idempotent for %v: %d then %d", raw, once, twice)
		}
	}
}

package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"kstrade/internal/domain/model"
)

func bars(closes []float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	start := time.Now().AddDate(0, 0, -len(closes))
	for i, c := range closes {
		out[i] = model.Bar{
			Time: start.AddDate(0, 0, i),
			Open: c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 100_000,
		}
	}
	return out
}

func TestAnalyzeShortHistoryHolds(t *testing.T) {
	e := NewEngine()
	sig, err := e.Analyze(context.Background(), "005930", bars([]float64{100, 101, 102}))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Action != model.ActionHold {
		t.Fatalf("short history must hold, got %s", sig.Action)
	}
}

func TestAnalyzeStrengthInRange(t *testing.T) {
	e := NewEngine()

	// A noisy but bounded series.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 10_000 + 500*math.Sin(float64(i)/5)
	}
	sig, err := e.Analyze(context.Background(), "005930", bars(closes))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Strength < 0 || sig.Strength > 5 {
		t.Fatalf("strength %f outside [0,5]", sig.Strength)
	}
	if sig.Potential == nil {
		t.Fatal("potential score missing")
	}
	if sig.Potential.Total < 0 || sig.Potential.Total > 100 {
		t.Fatalf("potential %f outside [0,100]", sig.Potential.Total)
	}
	if sig.Potential.Grade == "" {
		t.Fatal("potential grade missing")
	}
}

func TestAnalyzeSteadyDeclineLeansBuyOnOversold(t *testing.T) {
	e := NewEngine()

	// A long monotone decline pushes RSI deep into oversold and price
	// under the lower band: mean-reversion entry territory.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 20_000 - 150*float64(i)
	}
	sig, err := e.Analyze(context.Background(), "005930", bars(closes))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Action == model.ActionSell {
		t.Fatalf("deep oversold must not read as SELL, got %+v", sig)
	}
	if len(sig.Reasons) == 0 {
		t.Fatal("a non-trivial series must carry reasons")
	}
}

func TestPotentialGradeBands(t *testing.T) {
	cases := []struct {
		total float64
		want  string
	}{
		{85, "STRONG_BUY"},
		{72, "BUY"},
		{65, "WATCH"},
		{50, "NEUTRAL"},
		{20, "AVOID"},
	}
	for _, c := range cases {
		p := &model.FuturePotential{Total: c.total}
		got := gradeFor(p.Total)
		if got != c.want {
			t.Errorf("grade(%v) = %s, want %s", c.total, got, c.want)
		}
	}
}

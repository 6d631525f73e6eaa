package service

import (
	"path/filepath"
	"testing"
	"time"

	"kstrade/internal/infrastructure/storage/statefile"
)

func testLimits() LedgerLimits {
	return LedgerLimits{
		MaxPurchasesPerSymbol: 2,
		MaxQuantityPerSymbol:  100,
		MinHoldingPeriod:      72 * time.Hour,
		PurchaseCooldown:      48 * time.Hour,
	}
}

func newTestLedger(t *testing.T) (*PositionLedger, *time.Time) {
	t.Helper()
	l, err := NewPositionLedger(testLimits(), nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCanBuyUnknownSymbol(t *testing.T) {
	l, _ := newTestLedger(t)
	if ok, why := l.CanBuy("005930"); !ok {
		t.Fatalf("fresh symbol must be buyable: %s", why)
	}
}

func TestCanBuyCooldown(t *testing.T) {
	l, now := newTestLedger(t)
	if err := l.RecordPurchase("005930", 10, 50_000, "balanced_limit"); err != nil {
		t.Fatal(err)
	}

	if ok, _ := l.CanBuy("005930"); ok {
		t.Fatal("cooldown must block an immediate re-buy")
	}
	*now = now.Add(49 * time.Hour)
	if ok, why := l.CanBuy("005930"); !ok {
		t.Fatalf("cooldown expired, buy should pass: %s", why)
	}
}

func TestCanBuyPurchaseCap(t *testing.T) {
	l, now := newTestLedger(t)
	for i := 0; i < 2; i++ {
		if err := l.RecordPurchase("005930", 5, 50_000, "x"); err != nil {
			t.Fatal(err)
		}
		*now = now.Add(49 * time.Hour)
	}
	if ok, _ := l.CanBuy("005930"); ok {
		t.Fatal("third purchase must be blocked by the cap")
	}
}

func TestCanBuyQuantityCap(t *testing.T) {
	l, now := newTestLedger(t)
	limits := testLimits()
	limits.MaxPurchasesPerSymbol = 10
	l.limits = limits

	if err := l.RecordPurchase("005930", 100, 1_000, "x"); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(49 * time.Hour)
	if ok, _ := l.CanBuy("005930"); ok {
		t.Fatal("quantity cap must block the buy")
	}
}

func TestCanSellHoldingPeriod(t *testing.T) {
	l, now := newTestLedger(t)
	if err := l.RecordPurchase("005930", 10, 50_000, "x"); err != nil {
		t.Fatal(err)
	}

	if ok, _ := l.CanSell("005930", false); ok {
		t.Fatal("holding period must block a same-day sell")
	}
	if ok, _ := l.CanSell("005930", true); !ok {
		t.Fatal("urgent exit must bypass the holding period")
	}

	*now = now.Add(73 * time.Hour)
	if ok, why := l.CanSell("005930", false); !ok {
		t.Fatalf("holding period served, sell should pass: %s", why)
	}
}

func TestCanSellUntrackedSymbol(t *testing.T) {
	l, _ := newTestLedger(t)
	if ok, _ := l.CanSell("999999", false); !ok {
		t.Fatal("untracked symbol must be sellable")
	}
}

func TestCooldownSurvivesFullExit(t *testing.T) {
	l, now := newTestLedger(t)
	if err := l.RecordPurchase("005930", 10, 50_000, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordSale("005930", 10, 48_000, "stop_loss"); err != nil {
		t.Fatal(err)
	}

	// Closed, but the cooldown has not expired: the buy gate still holds
	// and pruning keeps the entry.
	if ok, _ := l.CanBuy("005930"); ok {
		t.Fatal("cooldown must survive a full exit")
	}
	l.Prune()
	if l.Position("005930") == nil {
		t.Fatal("prune must keep a closed position inside its cooldown")
	}

	*now = now.Add(49 * time.Hour)
	l.Prune()
	if l.Position("005930") != nil {
		t.Fatal("prune must drop a closed position past its cooldown")
	}
	if ok, why := l.CanBuy("005930"); !ok {
		t.Fatalf("pruned symbol must be buyable again: %s", why)
	}
}

func TestLedgerPersistRoundTrip(t *testing.T) {
	store := statefile.New(filepath.Join(t.TempDir(), "ledger.json"))

	l, err := NewPositionLedger(testLimits(), store)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.RecordPurchase("005930", 10, 50_000, "balanced_limit"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewPositionLedger(testLimits(), store)
	if err != nil {
		t.Fatal(err)
	}
	p := reloaded.Position("005930")
	if p == nil {
		t.Fatal("position lost across reload")
	}
	if p.Quantity != 10 || p.AvgPrice != 50_000 {
		t.Fatalf("reloaded %d @ %f, want 10 @ 50000", p.Quantity, p.AvgPrice)
	}
	if ok, _ := reloaded.CanBuy("005930"); ok {
		t.Fatal("cooldown must survive a restart")
	}
}

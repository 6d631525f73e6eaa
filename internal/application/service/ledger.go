package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"kstrade/internal/domain/model"
	"kstrade/internal/infrastructure/storage/statefile"
)

// LedgerLimits are the position risk caps enforced before every buy and sell.
type LedgerLimits struct {
	MaxPurchasesPerSymbol int
	MaxQuantityPerSymbol  int64
	MinHoldingPeriod      time.Duration
	PurchaseCooldown      time.Duration
}

// PositionLedger is the strategy's own record of what it bought, when and at
// what price. It gates purchases (caps, cooldown) and sales (minimum holding
// period) and persists after every mutation. Single-writer; the orchestrator
// is the only caller.
type PositionLedger struct {
	limits    LedgerLimits
	store     *statefile.Store
	positions map[string]*model.Position
	now       func() time.Time
}

// NewPositionLedger loads any persisted state from store. A missing file
// starts an empty ledger; a corrupt file is an error so the operator decides,
// rather than silently double-buying.
func NewPositionLedger(limits LedgerLimits, store *statefile.Store) (*PositionLedger, error) {
	l := &PositionLedger{
		limits:    limits,
		store:     store,
		positions: map[string]*model.Position{},
		now:       time.Now,
	}
	if store != nil {
		if _, err := store.Load(&l.positions); err != nil {
			return nil, fmt.Errorf("position ledger: %w", err)
		}
		for sym, p := range l.positions {
			if p == nil {
				delete(l.positions, sym)
			}
		}
	}
	return l, nil
}

// Position returns the tracked position for symbol, or nil.
func (l *PositionLedger) Position(symbol string) *model.Position {
	return l.positions[symbol]
}

// OpenSymbols returns the symbols with a non-zero tracked quantity.
func (l *PositionLedger) OpenSymbols() []string {
	out := make([]string, 0, len(l.positions))
	for sym, p := range l.positions {
		if p.Quantity > 0 {
			out = append(out, sym)
		}
	}
	return out
}

// CanBuy reports whether a new purchase of symbol is currently allowed, and
// if not, why.
func (l *PositionLedger) CanBuy(symbol string) (bool, string) {
	p, ok := l.positions[symbol]
	if !ok {
		return true, ""
	}
	if l.limits.MaxPurchasesPerSymbol > 0 && p.PurchaseCount >= l.limits.MaxPurchasesPerSymbol {
		return false, fmt.Sprintf("purchase cap reached (%d)", p.PurchaseCount)
	}
	if l.limits.MaxQuantityPerSymbol > 0 && p.Quantity >= l.limits.MaxQuantityPerSymbol {
		return false, fmt.Sprintf("quantity cap reached (%d)", p.Quantity)
	}
	if l.limits.PurchaseCooldown > 0 && !p.LastBuyAt.IsZero() {
		since := l.now().Sub(p.LastBuyAt)
		if since < l.limits.PurchaseCooldown {
			return false, fmt.Sprintf("cooldown, %s since last buy", since.Round(time.Minute))
		}
	}
	return true, ""
}

// CanSell reports whether selling symbol is allowed. Urgent exits bypass the
// minimum holding period; a position the ledger does not know about is
// always sellable (broker truth wins).
func (l *PositionLedger) CanSell(symbol string, urgent bool) (bool, string) {
	if urgent {
		return true, ""
	}
	p, ok := l.positions[symbol]
	if !ok || p.Quantity == 0 {
		return true, ""
	}
	if l.limits.MinHoldingPeriod > 0 {
		held := p.HoldingDuration(l.now())
		if held < l.limits.MinHoldingPeriod {
			return false, fmt.Sprintf("held %s of %s minimum", held.Round(time.Minute), l.limits.MinHoldingPeriod)
		}
	}
	return true, ""
}

// RecordPurchase books an executed buy and persists the ledger.
func (l *PositionLedger) RecordPurchase(symbol string, qty int64, price float64, strategy string) error {
	p, ok := l.positions[symbol]
	if !ok {
		p = model.NewPosition(symbol)
		l.positions[symbol] = p
	}
	if err := p.ApplyPurchase(l.now(), qty, price, strategy); err != nil {
		return err
	}
	l.persist()
	return nil
}

// RecordSale books an executed sell, capping at the tracked quantity, and
// persists. Returns the quantity actually applied.
func (l *PositionLedger) RecordSale(symbol string, qty int64, price float64, reason string) (int64, error) {
	p, ok := l.positions[symbol]
	if !ok {
		// Sold something the ledger never saw, e.g. a manual buy in the
		// broker app. Nothing to book.
		log.Warn().Str("symbol", symbol).Int64("qty", qty).Msg("sale for untracked position")
		return 0, nil
	}
	applied, capped, err := p.ApplySale(l.now(), qty, price, reason)
	if err != nil {
		return 0, err
	}
	if capped {
		log.Warn().Str("symbol", symbol).
			Int64("requested", qty).Int64("applied", applied).
			Msg("sale capped at tracked quantity")
	}
	l.persist()
	return applied, nil
}

// Prune drops closed positions once their purchase cooldown has expired.
// Until then the empty entry stays so the cooldown gate keeps working after
// a full exit.
func (l *PositionLedger) Prune() {
	now := l.now()
	changed := false
	for sym, p := range l.positions {
		if !p.Closed() {
			continue
		}
		ref := p.LastBuyAt
		if ref.IsZero() || now.Sub(ref) >= l.limits.PurchaseCooldown {
			delete(l.positions, sym)
			changed = true
		}
	}
	if changed {
		l.persist()
	}
}

// persist writes the ledger, retrying once. A failed write is logged and
// trading continues on the in-memory state.
func (l *PositionLedger) persist() {
	if l.store == nil {
		return
	}
	err := l.store.Save(l.positions)
	if err != nil {
		err = l.store.Save(l.positions)
	}
	if err != nil {
		log.Error().Err(err).Str("path", l.store.Path()).Msg("position ledger write failed")
	}
}

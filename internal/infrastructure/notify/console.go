package notify

import (
	"fmt"
	"time"

	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
)

// Console prints one timestamped line per event to stdout, next to the
// structured log but readable at a glance.
type Console struct{}

func NewConsole() *Console { return &Console{} }

func (c *Console) Notify(e model.Event) {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Printf("%s %s\n", ts.Format("2006-01-02 15:04:05"), renderLine(e))
}

func renderLine(e model.Event) string {
	switch e.Kind {
	case model.EventOrderPlaced:
		return fmt.Sprintf("[ORDER] %s %s x%d @ %.0f (%s)", e.Side, e.Symbol, e.Quantity, e.Price, e.OrderID)
	case model.EventOrderFilled:
		return fmt.Sprintf("[FILL] %s %s x%d @ %.0f", e.Side, e.Symbol, e.Quantity, e.Price)
	case model.EventOrderPartial:
		return fmt.Sprintf("[PARTIAL] %s %s x%d @ %.0f (%s)", e.Side, e.Symbol, e.Quantity, e.Price, e.OrderID)
	case model.EventOrderDropped:
		return fmt.Sprintf("[DROP] %s %s (%s): %s", e.Side, e.Symbol, e.OrderID, e.Reason)
	case model.EventOrderFailed:
		return fmt.Sprintf("[FAIL] %s %s: %s", e.Side, e.Symbol, e.Message)
	case model.EventExitTriggered:
		return fmt.Sprintf("[EXIT] %s %s: %s", e.Symbol, e.Reason, e.Message)
	case model.EventSymbolsChange:
		return fmt.Sprintf("[SYMBOLS] %s", e.Message)
	case model.EventCycleSummary:
		return fmt.Sprintf("[CYCLE] %s", e.Message)
	default:
		return fmt.Sprintf("[%s] %s %s", e.Kind, e.Symbol, e.Message)
	}
}

var _ port.Notifier = (*Console)(nil)

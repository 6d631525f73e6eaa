package port

import "kstrade/internal/domain/model"

// Notifier receives structured trading events. Implementations render and
// deliver them; delivery failures must not propagate into the trading loop.
type Notifier interface {
	Notify(e model.Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(model.Event) {}

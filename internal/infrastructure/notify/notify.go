// Package notify renders trading events for humans. Delivery is best effort;
// a dead webhook must never stall the trading loop.
package notify

import (
	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
)

// Multi fans one event out to several notifiers.
type Multi struct {
	sinks []port.Notifier
}

func NewMulti(sinks ...port.Notifier) *Multi {
	out := make([]port.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Multi{sinks: out}
}

func (m *Multi) Notify(e model.Event) {
	for _, s := range m.sinks {
		s.Notify(e)
	}
}

var _ port.Notifier = (*Multi)(nil)

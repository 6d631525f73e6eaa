package model

import "time"

// EventKind classifies notifier events.
type EventKind string

const (
	EventSystemStart   EventKind = "system_start"
	EventSystemStop    EventKind = "system_stop"
	EventOrderPlaced   EventKind = "order_placed"
	EventOrderFilled   EventKind = "order_filled"
	EventOrderPartial  EventKind = "order_partial"
	EventOrderDropped  EventKind = "order_dropped"
	EventOrderFailed   EventKind = "order_failed"
	EventExitTriggered EventKind = "exit_triggered"
	EventCycleSummary  EventKind = "cycle_summary"
	EventSymbolsChange EventKind = "symbols_changed"
)

// Event is the structured record the core emits on every fill, failure and
// cycle boundary. Rendering is the notifier's problem.
type Event struct {
	ID       string
	Kind     EventKind
	Symbol   string
	Side     Side
	Quantity int64
	Price    float64
	OrderID  string
	Reason   string
	Message  string
	At       time.Time
}

package model

import (
	"strings"
	"time"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PendingOrder is one in-flight limit order submitted by the strategy.
// The set of pending orders is persisted so a restart resumes polling.
type PendingOrder struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	StockName   string    `json:"stock_name,omitempty"`
	Side        Side      `json:"side"`
	Quantity    int64     `json:"quantity"`
	LimitPrice  int64     `json:"limit_price"`
	Strategy    string    `json:"strategy"`
	SubmittedAt time.Time `json:"submitted_at"`
	BookedQty   int64     `json:"booked_qty,omitempty"` // cumulative quantity already booked from partial fills
	CheckCount  int       `json:"check_count"`          // failed status polls over the order's lifetime
	FailCount   int       `json:"fail_count"`           // consecutive failed status polls
	LastChecked time.Time `json:"last_checked,omitempty"`
}

// ValidOrderID reports whether id can be tracked. The broker has been
// observed to return "Unknown" on ambiguous responses; such ids must never
// enter the pending set.
func ValidOrderID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && !strings.EqualFold(id, "unknown")
}

// OrderResult is the outcome of a single order submission.
type OrderResult struct {
	Success    bool
	OrderID    string
	LimitPrice int64 // 0 for market orders
	Message    string
}

// ExecStatus classifies one poll of the broker's execution report.
type ExecStatus int

const (
	ExecPending ExecStatus = iota
	ExecPartial
	ExecFilled
	ExecNotFound
)

func (s ExecStatus) String() string {
	switch s {
	case ExecPending:
		return "PENDING"
	case ExecPartial:
		return "PARTIAL"
	case ExecFilled:
		return "FILLED"
	case ExecNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// ExecutionReport is a point-in-time snapshot of one order's fill state,
// as reported by the broker's daily execution endpoint. Quantities are
// cumulative.
type ExecutionReport struct {
	Status       ExecStatus
	ExecutedQty  int64
	RemainingQty int64
	AvgPrice     float64 // volume-weighted fill price; may differ from the limit
}

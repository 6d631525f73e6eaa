package model

// Action is the signal engine's verdict for a symbol.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// FuturePotential is the 0-100 composite score with its factor breakdown.
type FuturePotential struct {
	Total         float64 // clamped to [0,100]
	Technical     float64 // max 30
	PricePosition float64 // max 20
	Momentum      float64 // max 20
	Volume        float64 // max 15
	Market        float64 // max 15
	Grade         string  // STRONG_BUY / BUY / WATCH / NEUTRAL / AVOID
}

// Signal is the engine output the core consumes. Strength is roughly 0-5.
type Signal struct {
	Symbol    string
	Action    Action
	Strength  float64
	Reasons   []string
	Potential *FuturePotential
}

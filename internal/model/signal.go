package model

import "time"

// Action is the directional decision of a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is emitted once per bar after warm-up.
type Signal struct {
	Date       time.Time `json:"date"`
	Action     Action    `json:"action"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"` // 0 ~ 1
	Reasoning  string    `json:"reasoning"`
	Phase      Phase     `json:"phase"`
	PhaseScore float64   `json:"phase_score"`
}

// FactorCheck records a single confirmation factor evaluated for a signal.
type FactorCheck struct {
	Name       string
	Bullish    bool
	Bearish    bool
	Commentary string
}

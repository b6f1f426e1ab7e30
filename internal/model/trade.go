package model

import "time"

// ExitReason tags why a position was closed.
type ExitReason string

const (
	ExitSignal       ExitReason = "SIGNAL"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitMaxDuration  ExitReason = "MAX_DURATION"
)

// Trade is a long position. Exit fields stay nil while the trade is open.
type Trade struct {
	EntryDate      time.Time   `json:"entry_date"`
	EntryPrice     float64     `json:"entry_price"`
	Shares         int         `json:"shares"`
	EntryPhase     Phase       `json:"entry_phase"`
	EntryReasoning string      `json:"entry_reasoning"`
	ExitDate       *time.Time  `json:"exit_date"`
	ExitPrice      *float64    `json:"exit_price"`
	ExitReason     *ExitReason `json:"exit_reason"`
	ExitReasoning  *string     `json:"exit_reasoning"`
	PnL            *float64    `json:"pnl"`
	PnLPercent     *float64    `json:"pnl_percent"`
	DurationDays   *int        `json:"duration_days"`
}

// Open reports whether the trade has not been exited.
func (t *Trade) Open() bool { return t.ExitDate == nil }

// Close fills the exit fields and computes realized P&L.
func (t *Trade) Close(date time.Time, price float64, reason ExitReason, reasoning string) {
	pnl := (price - t.EntryPrice) * float64(t.Shares)
	pnlPct := 0.0
	if cost := t.EntryPrice * float64(t.Shares); cost > 0 {
		pnlPct = pnl / cost * 100
	}
	days := DaysBetween(t.EntryDate, date)
	t.ExitDate = &date
	t.ExitPrice = &price
	t.ExitReason = &reason
	t.ExitReasoning = &reasoning
	t.PnL = &pnl
	t.PnLPercent = &pnlPct
	t.DurationDays = &days
}

// EquityPoint is the marked-to-market account value at the close of one bar.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

package simulator

import (
	"fmt"
	"math"

	"WyckoffBacktester/internal/model"
)

// SizingMode selects how many shares an entry buys.
type SizingMode string

const (
	SizingFixedFraction SizingMode = "fixed_fraction"
	SizingFullInvest    SizingMode = "full_invest"
	SizingATRRisk       SizingMode = "atr_risk"
)

// SizingConfig holds the mode and its parameters.
type SizingConfig struct {
	Mode         SizingMode `yaml:"mode"`
	Fraction     float64    `yaml:"fraction"`      // fixed_fraction: share of cash committed
	RiskFraction float64    `yaml:"risk_fraction"` // atr_risk: share of cash lost if the ATR stop is hit
}

// Account tracks cash and the single open position of one run.
type Account struct {
	cash     float64
	position *model.Trade
	highest  float64 // highest close since entry
	sizing   SizingConfig
	atrMult  float64
}

// NewAccount starts flat with the given capital.
func NewAccount(capital float64, sizing SizingConfig, atrMultiplier float64) *Account {
	return &Account{cash: capital, sizing: sizing, atrMult: atrMultiplier}
}

// Cash returns the uncommitted cash.
func (a *Account) Cash() float64 { return a.cash }

// Position returns the open trade, or nil when flat.
func (a *Account) Position() *model.Trade { return a.position }

// Equity marks the account to market at price.
func (a *Account) Equity(price float64) float64 {
	if a.position == nil {
		return a.cash
	}
	return a.cash + float64(a.position.Shares)*price
}

// Shares computes the whole-share size for an entry at price. atr is ignored unless
// sizing by ATR risk, where a missing ATR yields zero.
func (a *Account) Shares(price float64, atr float64, atrOK bool) int {
	if price <= 0 || a.cash <= 0 {
		return 0
	}
	affordable := math.Floor(a.cash / price)
	var shares float64
	switch a.sizing.Mode {
	case SizingFullInvest:
		shares = affordable
	case SizingATRRisk:
		stopDistance := a.atrMult * atr
		if !atrOK || stopDistance <= 0 {
			return 0
		}
		shares = math.Min(math.Floor(a.cash*a.sizing.RiskFraction/stopDistance), affordable)
	default:
		shares = math.Floor(a.cash * a.sizing.Fraction / price)
	}
	if shares <= 0 {
		return 0
	}
	return int(shares)
}

// Enter opens a position. Callers check Shares first.
func (a *Account) Enter(sig model.Signal, shares int) error {
	if a.position != nil {
		return fmt.Errorf("position already open since %s", a.position.EntryDate.Format("2006-01-02"))
	}
	if shares <= 0 {
		return fmt.Errorf("non-positive share count %d", shares)
	}
	a.cash -= float64(shares) * sig.Price
	a.position = &model.Trade{
		EntryDate:      sig.Date,
		EntryPrice:     sig.Price,
		Shares:         shares,
		EntryPhase:     sig.Phase,
		EntryReasoning: sig.Reasoning,
	}
	a.highest = sig.Price
	return nil
}

// Exit closes the open position at price and returns the closed trade.
func (a *Account) Exit(bar model.OHLCV, price float64, reason model.ExitReason, reasoning string) model.Trade {
	t := *a.position
	t.Close(bar.Time, price, reason, reasoning)
	a.cash += float64(t.Shares) * price
	a.position = nil
	a.highest = 0
	return t
}

// TrailingStop is the ratchet level: highest close since entry less atrMult x ATR.
func (a *Account) TrailingStop(atr float64) float64 {
	return a.highest - a.atrMult*atr
}

// Observe ratchets the highest close.
func (a *Account) Observe(close float64) {
	if a.position != nil && close > a.highest {
		a.highest = close
	}
}

// Highest returns the highest close since entry.
func (a *Account) Highest() float64 { return a.highest }

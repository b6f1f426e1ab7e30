// Package performance turns a trade list and an equity curve into aggregate statistics.
package performance

import (
	"math"

	"WyckoffBacktester/internal/model"
)

// TradingDaysPerYear annualizes per-bar Sharpe ratios.
const TradingDaysPerYear = 252

// ProfitFactorNoLosses is reported when there are winners and no losers.
const ProfitFactorNoLosses = math.MaxFloat64

const flatVariance = 1e-12

// Analyze computes metrics over closed trades and the full equity curve. Open trades only
// count through the final equity mark.
func Analyze(trades []model.Trade, equity []model.EquityPoint, initialCapital float64) model.PerformanceMetrics {
	m := model.PerformanceMetrics{FinalValue: initialCapital}
	if n := len(equity); n > 0 {
		m.FinalValue = equity[n-1].Equity
	}
	if initialCapital > 0 {
		m.TotalReturnPercent = (m.FinalValue - initialCapital) / initialCapital * 100
	}

	var days int
	for _, t := range trades {
		if t.Open() || t.PnL == nil {
			continue
		}
		m.TotalTrades++
		pnl := *t.PnL
		m.TotalPnL += pnl
		switch {
		case pnl > 0:
			m.WinningTrades++
			m.GrossProfit += pnl
		case pnl < 0:
			m.LosingTrades++
			m.GrossLoss += -pnl
		}
		if t.DurationDays != nil {
			days += *t.DurationDays
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.AvgTradeDuration = float64(days) / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AvgWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = -m.GrossLoss / float64(m.LosingTrades)
	}
	m.ProfitFactor = ProfitFactor(m.GrossProfit, m.GrossLoss)
	m.MaxDrawdownPercent = MaxDrawdown(equity)
	m.SharpeRatio = Sharpe(equity)
	return m
}

// ProfitFactor divides gross profit by gross loss (both non-negative).
func ProfitFactor(grossProfit, grossLoss float64) float64 {
	switch {
	case grossProfit <= 0:
		return 0
	case grossLoss <= 0:
		return ProfitFactorNoLosses
	}
	return grossProfit / grossLoss
}

// MaxDrawdown is the largest peak-to-trough decline as a positive percentage, in one forward scan.
func MaxDrawdown(equity []model.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0].Equity
	var worst float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// Returns gives the per-bar simple returns, skipping bars that follow a non-positive mark.
func Returns(equity []model.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		out = append(out, equity[i].Equity/prev-1)
	}
	return out
}

// Sharpe annualizes mean/stddev of per-bar returns by sqrt(252). Zero-variance series give 0.
func Sharpe(equity []model.EquityPoint) float64 {
	r := Returns(equity)
	if len(r) == 0 {
		return 0
	}
	var mean float64
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))

	var variance float64
	for _, v := range r {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(r))
	if variance < flatVariance*flatVariance {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear)
}

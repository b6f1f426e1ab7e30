package simulator

import (
	"fmt"

	"WyckoffBacktester/internal/model"
)

// Config holds account and risk-control settings. Zero TakeProfitPercent or
// MaxHoldingDays disables that exit; zero ATRMultiplier disables the trailing stop.
type Config struct {
	InitialCapital    float64      `yaml:"initial_capital"`
	Sizing            SizingConfig `yaml:"sizing"`
	StopLossPercent   float64      `yaml:"stop_loss_percent"`
	ATRMultiplier     float64      `yaml:"atr_multiplier"`
	ATRPeriod         int          `yaml:"atr_period"`
	TakeProfitPercent float64      `yaml:"take_profit_percent"`
	MaxHoldingDays    int          `yaml:"max_holding_days"`
}

// DefaultConfig commits 95% of cash per trade with an 8% stop and a 2 ATR trailing stop.
func DefaultConfig() Config {
	return Config{
		InitialCapital:  100000,
		Sizing:          SizingConfig{Mode: SizingFixedFraction, Fraction: 0.95, RiskFraction: 0.01},
		StopLossPercent: 0.08,
		ATRMultiplier:   2.0,
		ATRPeriod:       14,
	}
}

// ATRName is the indicator consulted for trailing stops and ATR sizing.
func (c Config) ATRName() string { return fmt.Sprintf("ATR_%d", c.ATRPeriod) }

// Validate rejects settings before any computation starts.
func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return fmt.Errorf("%w: initial_capital must be positive", model.ErrInvalidConfiguration)
	case c.StopLossPercent <= 0 || c.StopLossPercent >= 1:
		return fmt.Errorf("%w: stop_loss_percent must be in (0,1), got %v", model.ErrInvalidConfiguration, c.StopLossPercent)
	case c.ATRMultiplier < 0:
		return fmt.Errorf("%w: atr_multiplier must not be negative", model.ErrInvalidConfiguration)
	case c.ATRPeriod <= 0:
		return fmt.Errorf("%w: atr_period must be positive", model.ErrInvalidConfiguration)
	case c.TakeProfitPercent < 0 || c.MaxHoldingDays < 0:
		return fmt.Errorf("%w: take_profit_percent and max_holding_days must not be negative", model.ErrInvalidConfiguration)
	}
	switch c.Sizing.Mode {
	case SizingFullInvest:
	case SizingFixedFraction:
		if c.Sizing.Fraction <= 0 || c.Sizing.Fraction > 1 {
			return fmt.Errorf("%w: sizing.fraction must be in (0,1]", model.ErrInvalidConfiguration)
		}
	case SizingATRRisk:
		if c.Sizing.RiskFraction <= 0 || c.Sizing.RiskFraction > 1 {
			return fmt.Errorf("%w: sizing.risk_fraction must be in (0,1]", model.ErrInvalidConfiguration)
		}
		if c.ATRMultiplier <= 0 {
			return fmt.Errorf("%w: atr_risk sizing needs a positive atr_multiplier", model.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown sizing mode %q", model.ErrInvalidConfiguration, c.Sizing.Mode)
	}
	return nil
}

// Result is the trade list and one equity point per bar.
type Result struct {
	Trades      []model.Trade
	EquityCurve []model.EquityPoint
	FinalCash   float64
}

// OpenTrade returns the still-open trade, if any.
func (r Result) OpenTrade() *model.Trade {
	if n := len(r.Trades); n > 0 && r.Trades[n-1].Open() {
		return &r.Trades[n-1]
	}
	return nil
}

// Run walks the bars in order as a Flat / In-Position state machine. signals[i] is nil for
// bars without a signal. A position still open at the end stays open.
func Run(bars []model.OHLCV, indicators []model.IndicatorSet, signals []*model.Signal, cfg Config) (Result, error) {
	if len(bars) == 0 {
		return Result{}, model.ErrEmptySeries
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if len(indicators) != len(bars) || len(signals) != len(bars) {
		return Result{}, fmt.Errorf("series length mismatch: %d bars, %d indicator sets, %d signals",
			len(bars), len(indicators), len(signals))
	}

	acct := NewAccount(cfg.InitialCapital, cfg.Sizing, cfg.ATRMultiplier)
	atrName := cfg.ATRName()
	res := Result{EquityCurve: make([]model.EquityPoint, 0, len(bars))}

	for i, bar := range bars {
		sig := signals[i]
		atr, atrOK := indicators[i].Get(atrName)
		exited := false

		if pos := acct.Position(); pos != nil {
			if reason, reasoning, ok := exitCheck(acct, pos, bar, atr, atrOK, sig, cfg); ok {
				res.Trades = append(res.Trades, acct.Exit(bar, bar.Close, reason, reasoning))
				exited = true
			} else {
				acct.Observe(bar.Close)
			}
		}

		if !exited && acct.Position() == nil && sig != nil && sig.Action == model.ActionBuy {
			if shares := acct.Shares(sig.Price, atr, atrOK); shares > 0 {
				if err := acct.Enter(*sig, shares); err != nil {
					return Result{}, err
				}
			}
		}

		res.EquityCurve = append(res.EquityCurve, model.EquityPoint{Date: bar.Time, Equity: acct.Equity(bar.Close)})
	}

	if pos := acct.Position(); pos != nil {
		res.Trades = append(res.Trades, *pos)
	}
	res.FinalCash = acct.Cash()
	return res, nil
}

// exitCheck applies exits in precedence order: trailing stop, stop loss, take profit,
// max holding period, then an opposing signal.
func exitCheck(acct *Account, pos *model.Trade, bar model.OHLCV, atr float64, atrOK bool, sig *model.Signal, cfg Config) (model.ExitReason, string, bool) {
	c := bar.Close
	if cfg.ATRMultiplier > 0 && atrOK {
		if stop := acct.TrailingStop(atr); c < stop {
			return model.ExitTrailingStop, fmt.Sprintf("Close %.2f below trailing stop %.2f (high %.2f - %.1f x ATR %.2f)",
				c, stop, acct.Highest(), cfg.ATRMultiplier, atr), true
		}
	}
	if stop := pos.EntryPrice * (1 - cfg.StopLossPercent); c <= stop {
		return model.ExitStopLoss, fmt.Sprintf("Close %.2f hit %.1f%% stop loss %.2f",
			c, cfg.StopLossPercent*100, stop), true
	}
	if cfg.TakeProfitPercent > 0 {
		if target := pos.EntryPrice * (1 + cfg.TakeProfitPercent); c >= target {
			return model.ExitTakeProfit, fmt.Sprintf("Close %.2f reached %.1f%% take profit %.2f",
				c, cfg.TakeProfitPercent*100, target), true
		}
	}
	if cfg.MaxHoldingDays > 0 {
		if held := model.DaysBetween(pos.EntryDate, bar.Time); held >= cfg.MaxHoldingDays {
			return model.ExitMaxDuration, fmt.Sprintf("Held %d days, limit %d", held, cfg.MaxHoldingDays), true
		}
	}
	if sig != nil && sig.Action == model.ActionSell {
		return model.ExitSignal, sig.Reasoning, true
	}
	return "", "", false
}

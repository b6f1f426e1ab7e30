package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/strategy"
)

var day0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func barsFrom(closes []float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.005,
			Low:    c * 0.995,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func rising(n int) []model.OHLCV {
	closes := make([]float64, n)
	p := 100.0
	for i := range closes {
		closes[i] = p
		p *= 1.004
	}
	return barsFrom(closes)
}

func alternating(n int) []model.OHLCV {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 110
		}
	}
	return barsFrom(closes)
}

func wave(n int) []model.OHLCV {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/15) + 0.05*float64(i)
	}
	return barsFrom(closes)
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(DefaultConfig())
	require.NoError(t, err)
	return r
}

func TestRun_StrictlyRisingSeries(t *testing.T) {
	r := newRunner(t)
	rep, err := r.Run(context.Background(), "UP", rising(300))
	require.NoError(t, err)

	for _, s := range rep.Signals {
		assert.False(t, s.Phase.Bearish(), "%s classified %s", s.Date.Format("2006-01-02"), s.Phase)
	}
	require.Len(t, rep.Trades, 1)
	assert.True(t, rep.Trades[0].Open())
	assert.InDelta(t, 0.0, rep.Performance.MaxDrawdownPercent, 1e-9)
	assert.Zero(t, rep.Performance.TotalTrades)
	assert.Greater(t, rep.Performance.FinalValue, rep.InitialCapital)
	assert.Len(t, rep.EquityCurve, 300)
	assert.Len(t, rep.Signals, 300-r.WarmUp())
}

func TestRun_AlternatingSeriesHasZeroSharpe(t *testing.T) {
	rep, err := newRunner(t).Run(context.Background(), "CHOP", alternating(200))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(rep.Performance.SharpeRatio))
	assert.InDelta(t, 0.0, rep.Performance.SharpeRatio, 1e-9)
}

func TestRun_Deterministic(t *testing.T) {
	r := newRunner(t)
	bars := wave(400)

	a, err := r.Run(context.Background(), "WAVE", bars)
	require.NoError(t, err)
	b, err := r.Run(context.Background(), "WAVE", bars)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
}

func TestRun_Invariants(t *testing.T) {
	rep, err := newRunner(t).Run(context.Background(), "WAVE", wave(400))
	require.NoError(t, err)

	open := 0
	for i, tr := range rep.Trades {
		if tr.Open() {
			open++
			assert.Equal(t, len(rep.Trades)-1, i, "only the last trade may be open")
			continue
		}
		assert.True(t, tr.ExitDate.After(tr.EntryDate))
		if i > 0 {
			assert.False(t, tr.EntryDate.Before(*rep.Trades[i-1].ExitDate))
		}
	}
	assert.LessOrEqual(t, open, 1)

	require.Len(t, rep.EquityCurve, 400)
	for _, p := range rep.EquityCurve {
		assert.GreaterOrEqual(t, p.Equity, 0.0)
	}
	assert.GreaterOrEqual(t, rep.Performance.MaxDrawdownPercent, 0.0)
	assert.LessOrEqual(t, rep.Performance.MaxDrawdownPercent, 100.0)
	assert.Equal(t, len(rep.Signals), rep.PhaseAnalysis.TotalSignals)
}

func TestRun_Errors(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()

	_, err := r.Run(ctx, "EMPTY", nil)
	assert.True(t, errors.Is(err, model.ErrEmptySeries))

	_, err = r.Run(ctx, "SHORT", rising(10))
	assert.True(t, errors.Is(err, model.ErrInsufficientHistory))

	bars := rising(100)
	bars[50].Time = bars[49].Time
	_, err = r.Run(ctx, "DUP", bars)
	assert.True(t, errors.Is(err, model.ErrInvalidSeries))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Run(cancelled, "UP", rising(100))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewRunner_Configuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy.Name = strategy.NameEMACrossover
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	assert.Equal(t, 50, r.WarmUp())
	assert.Equal(t, strategy.NameEMACrossover, r.StrategyName())

	rep, err := r.Run(context.Background(), "WAVE", wave(200))
	require.NoError(t, err)
	assert.Equal(t, rep.EquityCurve[50].Date, rep.Signals[0].Date)

	bad := []func(*Config){
		func(c *Config) { c.Strategy.Name = "martingale" },
		func(c *Config) { c.Strategy.Name = strategy.NameEMACrossover; c.Strategy.LongEMA = 30 },
		func(c *Config) { c.Simulator.InitialCapital = -1 },
		func(c *Config) { c.Simulator.StopLossPercent = 1.5 },
		func(c *Config) { c.Indicators.RSI = []int{0} },
		func(c *Config) { c.Concurrency = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := NewRunner(cfg)
		assert.True(t, errors.Is(err, model.ErrInvalidConfiguration), "case %d: %v", i, err)
	}
}

func TestNewRunner_PhaseIndicatorsMustBeConfigured(t *testing.T) {
	r := newRunner(t)
	assert.Equal(t, 34, r.WarmUp(), "MACD histogram is the longest phase-strategy input")

	bad := []func(*Config){
		func(c *Config) { c.Indicators.MACD = nil },
		func(c *Config) { c.Indicators.Stochastic = nil },
		func(c *Config) { c.Indicators.VolumeSMA = nil },
		func(c *Config) { c.Strategy.TrendEMA = 34 },
		func(c *Config) { c.Indicators.RSI = []int{21}; c.Strategy.RSIPeriod = 21 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := NewRunner(cfg)
		assert.True(t, errors.Is(err, model.ErrInvalidConfiguration), "case %d: %v", i, err)
	}
}

func TestRunner_Optimize(t *testing.T) {
	rep, err := newRunner(t).Optimize(context.Background(), "WAVE", wave(400))
	require.NoError(t, err)
	assert.Equal(t, "WAVE", rep.Symbol)
	assert.Equal(t, strategy.NamePhase, rep.Strategy)
	assert.NotEmpty(t, rep.MonthlyResults)
	assert.Len(t, rep.YearlyResults, 2)
	assert.False(t, rep.Partial)
}

func TestRunBatch_PartialFailure(t *testing.T) {
	r := newRunner(t)
	out := r.RunBatch(context.Background(), []model.Series{
		{Symbol: "UP", Bars: rising(300)},
		{Symbol: "SHORT", Bars: rising(10)},
		{Symbol: "WAVE", Bars: wave(300)},
		{Symbol: "EMPTY"},
	})

	assert.Len(t, out.Results, 2)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, "EMPTY", out.Errors[0].Symbol)
	assert.Equal(t, "SHORT", out.Errors[1].Symbol)

	s := out.Summary
	assert.Equal(t, 4, s.TotalSymbols)
	assert.Equal(t, 2, s.SuccessfulBacktests)
	assert.Equal(t, 2, s.FailedBacktests)
	assert.InDelta(t, 200000.0, s.TotalInitialCapital, 1e-6)
	final := out.Results["UP"].Performance.FinalValue + out.Results["WAVE"].Performance.FinalValue
	assert.InDelta(t, final, s.TotalFinalValue, 0.01)
	assert.InDelta(t, (final-200000)/200000*100, s.OverallReturnPercent, 1e-3)
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := newRunner(t).RunBatch(ctx, []model.Series{{Symbol: "A", Bars: rising(100)}, {Symbol: "B", Bars: rising(100)}})
	assert.Empty(t, out.Results)
	assert.Len(t, out.Errors, 2)
	assert.Zero(t, out.Summary.OverallReturnPercent)
}

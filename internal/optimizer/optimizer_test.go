package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/simulator"
)

// threeYears builds daily bars for 2021-2023 with a buy every 20 bars and a sell 10 bars later.
func threeYears() Input {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var in Input
	for d, i := start, 0; d.Before(end); d, i = d.AddDate(0, 0, 1), i+1 {
		c := 100 + 10*math.Sin(float64(i)/7) + 0.02*float64(i)
		bar := model.OHLCV{Time: d, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
		in.Bars = append(in.Bars, bar)
		in.Indicators = append(in.Indicators, model.IndicatorSet{})

		var sig *model.Signal
		switch i % 20 {
		case 0:
			sig = &model.Signal{Date: d, Action: model.ActionBuy, Price: c}
		case 10:
			sig = &model.Signal{Date: d, Action: model.ActionSell, Price: c}
		}
		in.Signals = append(in.Signals, sig)
	}
	in.Simulator = simulator.DefaultConfig()
	return in
}

func TestWindows_Calendar(t *testing.T) {
	in := threeYears()

	months := Windows(in.Bars, Monthly)
	require.Len(t, months, 36)
	assert.Equal(t, 31, months[0].Len())
	assert.Equal(t, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC), months[1].End)

	quarters := Windows(in.Bars, Quarterly)
	require.Len(t, quarters, 12)
	assert.Equal(t, time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC), quarters[1].Start)

	years := Windows(in.Bars, Yearly)
	require.Len(t, years, 3)
	assert.Equal(t, len(in.Bars), years[0].Len()+years[1].Len()+years[2].Len())
	assert.Equal(t, in.Bars[len(in.Bars)-1].Time, years[2].End)
}

func TestWindows_ClampedToData(t *testing.T) {
	bars := []model.OHLCV{
		{Time: time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{Time: time.Date(2022, 3, 16, 0, 0, 0, 0, time.UTC)},
		{Time: time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC)},
	}
	ws := Windows(bars, Monthly)
	require.Len(t, ws, 2) // April has no bars
	assert.Equal(t, bars[0].Time, ws[0].Start)
	assert.Equal(t, bars[2].Time, ws[1].End)
	assert.Equal(t, 2, ws[1].From)
}

func TestOptimize_ThreeYearsMonthlyLimit(t *testing.T) {
	in := threeYears()
	cfg := DefaultConfig()
	cfg.MonthlyLimit = 12

	rep, err := Optimize(context.Background(), in, cfg)
	require.NoError(t, err)
	assert.False(t, rep.Partial)

	assert.Len(t, rep.MonthlyResults, 12)
	assert.Len(t, rep.QuarterlyResults, 12)
	assert.Len(t, rep.YearlyResults, 3)
	assert.Len(t, rep.GridResults, len(DefaultStopLosses))
	assert.Equal(t, [2]float64{0.02, 0.20}, rep.StopLossRange)

	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), rep.MonthlyResults[0].PeriodStart)
	for _, results := range [][]model.OptimizationResult{rep.MonthlyResults, rep.QuarterlyResults, rep.YearlyResults} {
		for _, r := range results {
			assert.Contains(t, DefaultStopLosses, r.OptimalStopLoss)
			assert.GreaterOrEqual(t, r.OptimalStopLoss, 0.02)
			assert.LessOrEqual(t, r.OptimalStopLoss, 0.20)
		}
	}
	assert.Contains(t, DefaultStopLosses, rep.OverallOptimal)
	assert.Equal(t, 12, rep.Statistics["monthly"].Count)

	rec := rep.Recommendations
	assert.LessOrEqual(t, rec.Conservative, rec.Moderate)
	assert.LessOrEqual(t, rec.Moderate, rec.Aggressive)
}

func TestOptimize_ShortTrailingMonthDoesNotUseLimit(t *testing.T) {
	in := threeYears()
	for _, d := range []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	} {
		in.Bars = append(in.Bars, model.OHLCV{Time: d, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000})
		in.Indicators = append(in.Indicators, model.IndicatorSet{})
		in.Signals = append(in.Signals, nil)
	}
	cfg := DefaultConfig()
	cfg.MonthlyLimit = 12

	rep, err := Optimize(context.Background(), in, cfg)
	require.NoError(t, err)
	require.Len(t, rep.MonthlyResults, 12)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), rep.MonthlyResults[0].PeriodStart)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), rep.MonthlyResults[11].PeriodStart)
	assert.Len(t, rep.YearlyResults, 3)
}

func TestOptimize_DeterministicAcrossConcurrency(t *testing.T) {
	in := threeYears()
	serial := DefaultConfig()
	serial.Concurrency = 1
	parallel := DefaultConfig()
	parallel.Concurrency = 8

	a, err := Optimize(context.Background(), in, serial)
	require.NoError(t, err)
	b, err := Optimize(context.Background(), in, parallel)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOptimize_TiesKeepGridOrder(t *testing.T) {
	in := threeYears()
	for i := range in.Signals {
		in.Signals[i] = nil
	}
	rep, err := Optimize(context.Background(), in, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.02, rep.OverallOptimal)
	for _, r := range rep.YearlyResults {
		assert.Equal(t, 0.02, r.OptimalStopLoss)
		assert.Zero(t, r.TotalTrades)
	}
}

func TestOptimize_OverallOptimalIsBestFullHistoryRun(t *testing.T) {
	rep, err := Optimize(context.Background(), threeYears(), DefaultConfig())
	require.NoError(t, err)

	var chosen *model.GridResult
	for i := range rep.GridResults {
		if rep.GridResults[i].StopLoss == rep.OverallOptimal {
			chosen = &rep.GridResults[i]
		}
	}
	require.NotNil(t, chosen)
	for _, g := range rep.GridResults {
		assert.LessOrEqual(t, g.TotalReturnPercent, chosen.TotalReturnPercent+tieEpsilon, "stop %v", g.StopLoss)
	}
}

func TestOptimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := Optimize(ctx, threeYears(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, rep)
	assert.True(t, rep.Partial)
	for _, r := range rep.MonthlyResults {
		assert.Contains(t, DefaultStopLosses, r.OptimalStopLoss)
	}
}

func TestOptimize_Errors(t *testing.T) {
	_, err := Optimize(context.Background(), Input{Simulator: simulator.DefaultConfig()}, DefaultConfig())
	assert.True(t, errors.Is(err, model.ErrEmptySeries))

	in := threeYears()
	bad := []func(*Config){
		func(c *Config) { c.StopLosses = []float64{0.05, 1.2} },
		func(c *Config) { c.Concurrency = 0 },
		func(c *Config) { c.MonthlyLimit = -1 },
		func(c *Config) { c.StopLosses = nil; c.Range = &RangeConfig{Min: 0.1, Max: 0.05, Step: 0.01} },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := Optimize(context.Background(), in, cfg)
		assert.True(t, errors.Is(err, model.ErrInvalidConfiguration), "case %d", i)
	}
}

func TestConfig_GridFromRange(t *testing.T) {
	cfg := Config{Range: &RangeConfig{Min: 0.02, Max: 0.05, Step: 0.01}}
	assert.Equal(t, []float64{0.02, 0.03, 0.04, 0.05}, cfg.Grid())
	assert.Equal(t, DefaultStopLosses, Config{}.Grid())
}

func TestStats(t *testing.T) {
	s := Summarize([]float64{0.08, 0.02, 0.05, 0.03})
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 0.02, s.Min)
	assert.Equal(t, 0.08, s.Max)
	assert.InDelta(t, 0.045, s.Avg, 1e-12)
	assert.InDelta(t, 0.04, s.Median, 1e-12)

	assert.InDelta(t, 1.75, Percentile([]float64{1, 2, 3, 4}, 0.25), 1e-12)
	assert.InDelta(t, 3.25, Percentile([]float64{1, 2, 3, 4}, 0.75), 1e-12)

	rec := Recommend(nil, 0.07)
	assert.Equal(t, model.Recommendations{Conservative: 0.07, Moderate: 0.07, Aggressive: 0.07}, rec)
}

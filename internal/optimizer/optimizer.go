// Package optimizer grid-searches the stop-loss parameter across the full history and
// across calendar windows, holding indicators, phases and signals fixed.
package optimizer

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/performance"
	"WyckoffBacktester/internal/simulator"
)

// RangeConfig expands to Min, Min+Step, ... Max.
type RangeConfig struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// Config controls the candidate grid, the windows evaluated and the worker limit.
type Config struct {
	StopLosses     []float64    `yaml:"stop_losses"`
	Range          *RangeConfig `yaml:"range"`
	MonthlyLimit   int          `yaml:"monthly_limit"`
	QuarterlyLimit int          `yaml:"quarterly_limit"`
	YearlyLimit    int          `yaml:"yearly_limit"`
	MinWindowBars  int          `yaml:"min_window_bars"`
	Concurrency    int          `yaml:"concurrency"`
}

// DefaultStopLosses is the candidate grid when none is configured.
var DefaultStopLosses = []float64{0.02, 0.03, 0.04, 0.05, 0.06, 0.07, 0.08, 0.09, 0.10, 0.12, 0.15, 0.18, 0.20}

func DefaultConfig() Config {
	return Config{
		MinWindowBars: 5,
		Concurrency:   4,
	}
}

// Grid returns the candidate stop-losses in evaluation order.
func (c Config) Grid() []float64 {
	if len(c.StopLosses) > 0 {
		return c.StopLosses
	}
	if r := c.Range; r != nil && r.Step > 0 && r.Max >= r.Min {
		n := int(math.Round((r.Max - r.Min) / r.Step))
		out := make([]float64, 0, n+1)
		for i := 0; i <= n; i++ {
			out = append(out, round(r.Min+float64(i)*r.Step))
		}
		return out
	}
	return DefaultStopLosses
}

func (c Config) limit(k Kind) int {
	switch k {
	case Monthly:
		return c.MonthlyLimit
	case Quarterly:
		return c.QuarterlyLimit
	}
	return c.YearlyLimit
}

func (c Config) Validate() error {
	if r := c.Range; r != nil && len(c.StopLosses) == 0 && (r.Step <= 0 || r.Max < r.Min) {
		return fmt.Errorf("%w: stop-loss range needs step > 0 and max >= min", model.ErrInvalidConfiguration)
	}
	for _, sl := range c.Grid() {
		if sl <= 0 || sl >= 1 {
			return fmt.Errorf("%w: stop-loss candidate %v outside (0,1)", model.ErrInvalidConfiguration, sl)
		}
	}
	if c.MonthlyLimit < 0 || c.QuarterlyLimit < 0 || c.YearlyLimit < 0 {
		return fmt.Errorf("%w: window limits must not be negative", model.ErrInvalidConfiguration)
	}
	if c.MinWindowBars < 1 {
		return fmt.Errorf("%w: min_window_bars must be at least 1", model.ErrInvalidConfiguration)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", model.ErrInvalidConfiguration)
	}
	return nil
}

// Input is the fixed pipeline output that every grid cell replays. Signals align with Bars.
type Input struct {
	Bars       []model.OHLCV
	Indicators []model.IndicatorSet
	Signals    []*model.Signal
	Simulator  simulator.Config
}

type cell struct {
	done    bool
	trades  []model.Trade
	metrics model.PerformanceMetrics
}

// Optimize evaluates every (window, stop-loss) cell with fresh capital. On cancellation it
// returns the report built from windows whose whole grid finished, marked Partial, together
// with the context error.
func Optimize(ctx context.Context, in Input, cfg Config) (*model.OptimizationReport, error) {
	n := len(in.Bars)
	if n == 0 {
		return nil, model.ErrEmptySeries
	}
	if len(in.Indicators) != n || len(in.Signals) != n {
		return nil, fmt.Errorf("series length mismatch: %d bars, %d indicator sets, %d signals",
			n, len(in.Indicators), len(in.Signals))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid := cfg.Grid()
	for _, sl := range grid {
		sc := in.Simulator
		sc.StopLossPercent = sl
		if err := sc.Validate(); err != nil {
			return nil, err
		}
	}

	// windows[0] is the full history
	windows := []Window{{Start: in.Bars[0].Time, End: in.Bars[n-1].Time, From: 0, To: n}}
	for _, k := range Kinds {
		var usable []Window
		for _, w := range Windows(in.Bars, k) {
			if w.Len() >= cfg.MinWindowBars {
				usable = append(usable, w)
			}
		}
		// short windows are dropped before the limit so they never take a slot
		windows = append(windows, mostRecent(usable, cfg.limit(k))...)
	}

	cells := make([][]cell, len(windows))
	for i := range cells {
		cells[i] = make([]cell, len(grid))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
schedule:
	for wi, w := range windows {
		for gi, sl := range grid {
			if gctx.Err() != nil {
				break schedule
			}
			wi, w, gi, sl := wi, w, gi, sl
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sc := in.Simulator
				sc.StopLossPercent = sl
				res, err := simulator.Run(in.Bars[w.From:w.To], in.Indicators[w.From:w.To], in.Signals[w.From:w.To], sc)
				if err != nil {
					return err
				}
				cells[wi][gi] = cell{
					done:    true,
					trades:  res.Trades,
					metrics: performance.Analyze(res.Trades, res.EquityCurve, sc.InitialCapital),
				}
				return nil
			})
		}
	}
	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return nil, err
	}

	rep := assemble(in.Bars, windows, grid, cells)
	if rep.Partial {
		return rep, ctx.Err()
	}
	return rep, nil
}

func assemble(bars []model.OHLCV, windows []Window, grid []float64, cells [][]cell) *model.OptimizationReport {
	lo, hi := grid[0], grid[0]
	for _, sl := range grid {
		lo, hi = math.Min(lo, sl), math.Max(hi, sl)
	}
	rep := &model.OptimizationReport{
		StartDate:        bars[0].Time,
		EndDate:          bars[len(bars)-1].Time,
		StopLossRange:    [2]float64{lo, hi},
		TestIntervals:    append([]float64(nil), grid...),
		GridResults:      []model.GridResult{},
		MonthlyResults:   []model.OptimizationResult{},
		QuarterlyResults: []model.OptimizationResult{},
		YearlyResults:    []model.OptimizationResult{},
		Statistics:       map[string]model.WindowStatistics{},
	}

	full := cells[0]
	for gi, c := range full {
		if c.done {
			rep.GridResults = append(rep.GridResults, model.GridResult{StopLoss: grid[gi], PerformanceMetrics: c.metrics})
		} else {
			rep.Partial = true
		}
	}
	if best := pick(full); best >= 0 {
		rep.OverallOptimal = grid[best]
	}

	optima := map[Kind][]float64{}
	var all []float64
	for wi := 1; wi < len(windows); wi++ {
		w := windows[wi]
		if !complete(cells[wi]) {
			rep.Partial = true
			continue
		}
		best := pick(cells[wi])
		c := cells[wi][best]
		r := model.OptimizationResult{
			PeriodStart:        w.Start,
			PeriodEnd:          w.End,
			Bars:               w.Len(),
			OptimalStopLoss:    grid[best],
			PerformanceMetrics: c.metrics,
			Trades:             c.trades,
		}
		switch w.Kind {
		case Monthly:
			rep.MonthlyResults = append(rep.MonthlyResults, r)
		case Quarterly:
			rep.QuarterlyResults = append(rep.QuarterlyResults, r)
		case Yearly:
			rep.YearlyResults = append(rep.YearlyResults, r)
		}
		optima[w.Kind] = append(optima[w.Kind], grid[best])
		all = append(all, grid[best])
	}

	for _, k := range Kinds {
		if len(optima[k]) > 0 {
			rep.Statistics[string(k)] = Summarize(optima[k])
		}
	}
	rep.Recommendations = Recommend(all, rep.OverallOptimal)
	return rep
}

func complete(cs []cell) bool {
	for _, c := range cs {
		if !c.done {
			return false
		}
	}
	return true
}

// pick returns the index of the best finished cell, or -1. Higher return wins, then higher
// Sharpe, then lower drawdown; exact ties keep the earlier candidate.
func pick(cs []cell) int {
	best := -1
	for i, c := range cs {
		if !c.done {
			continue
		}
		if best < 0 || better(c.metrics, cs[best].metrics) {
			best = i
		}
	}
	return best
}

const tieEpsilon = 1e-9

func better(a, b model.PerformanceMetrics) bool {
	if d := a.TotalReturnPercent - b.TotalReturnPercent; math.Abs(d) > tieEpsilon {
		return d > 0
	}
	if d := a.SharpeRatio - b.SharpeRatio; math.Abs(d) > tieEpsilon {
		return d > 0
	}
	if d := a.MaxDrawdownPercent - b.MaxDrawdownPercent; math.Abs(d) > tieEpsilon {
		return d < 0
	}
	return false
}

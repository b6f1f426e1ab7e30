// Package backtest wires the indicator, phase, signal, simulation and performance stages
// into one per-symbol pipeline.
package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"WyckoffBacktester/internal/calculator"
	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/optimizer"
	"WyckoffBacktester/internal/performance"
	"WyckoffBacktester/internal/phase"
	"WyckoffBacktester/internal/simulator"
	"WyckoffBacktester/internal/strategy"
)

// Config is the full engine configuration threaded through every stage.
type Config struct {
	WarmupBars  int               `yaml:"warmup_bars"`
	Concurrency int               `yaml:"concurrency"`
	Indicators  calculator.Config `yaml:"indicators"`
	Phase       phase.Config      `yaml:"phase"`
	Strategy    strategy.Config   `yaml:"strategy"`
	Simulator   simulator.Config  `yaml:"simulator"`
	Optimizer   optimizer.Config  `yaml:"optimizer"`
}

func DefaultConfig() Config {
	return Config{
		WarmupBars:  30,
		Concurrency: 4,
		Indicators:  calculator.DefaultConfig(),
		Phase:       phase.DefaultConfig(),
		Strategy:    strategy.DefaultConfig(),
		Simulator:   simulator.DefaultConfig(),
		Optimizer:   optimizer.DefaultConfig(),
	}
}

// Validate checks every stage's configuration and their cross references.
func (c Config) Validate() error {
	if c.WarmupBars < 0 {
		return fmt.Errorf("%w: warmup_bars must not be negative", model.ErrInvalidConfiguration)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", model.ErrInvalidConfiguration)
	}
	for _, v := range []interface{ Validate() error }{c.Indicators, c.Phase, c.Strategy, c.Simulator, c.Optimizer} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Runner executes backtests. It holds only immutable configuration and is safe for
// concurrent use across symbols.
type Runner struct {
	cfg      Config
	strategy strategy.Strategy
	warmup   int
}

// NewRunner validates cfg and resolves the strategy and the warm-up length.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	periods := cfg.Indicators.Periods()
	warmup := max(cfg.WarmupBars, cfg.Phase.Lookback)
	for _, name := range strat.Required() {
		p, ok := periods[name]
		if !ok {
			return nil, fmt.Errorf("%w: strategy %s needs indicator %s which is not configured",
				model.ErrInvalidConfiguration, strat.Name(), name)
		}
		warmup = max(warmup, p)
	}
	for _, name := range cfg.Phase.Indicators() {
		if _, ok := periods[name]; !ok {
			return nil, fmt.Errorf("%w: phase rules reference indicator %s which is not configured",
				model.ErrInvalidConfiguration, name)
		}
	}
	if cfg.Simulator.Sizing.Mode == simulator.SizingATRRisk {
		if _, ok := periods[cfg.Simulator.ATRName()]; !ok {
			return nil, fmt.Errorf("%w: atr_risk sizing needs indicator %s", model.ErrInvalidConfiguration, cfg.Simulator.ATRName())
		}
	}
	return &Runner{cfg: cfg, strategy: strat, warmup: warmup}, nil
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config { return r.cfg }

// WarmUp is the number of leading bars that never carry a signal.
func (r *Runner) WarmUp() int { return r.warmup }

// StrategyName names the configured signal generator.
func (r *Runner) StrategyName() string { return r.strategy.Name() }

// pipeline is the fixed output of the indicator, phase and signal stages.
type pipeline struct {
	indicators []model.IndicatorSet
	aligned    []*model.Signal // nil inside warm-up
	signals    []model.Signal
}

func (r *Runner) prepare(ctx context.Context, bars []model.OHLCV) (*pipeline, error) {
	if len(bars) == 0 {
		return nil, model.ErrEmptySeries
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%w: bar %d (%s) is not after bar %d", model.ErrInvalidSeries,
				i, bars[i].Time.Format("2006-01-02"), i-1)
		}
	}
	if len(bars) <= r.warmup {
		return nil, fmt.Errorf("%w: %d bars, need more than %d", model.ErrInsufficientHistory, len(bars), r.warmup)
	}

	ind, err := calculator.Compute(bars, r.cfg.Indicators)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	readings, err := phase.Classify(bars, ind, r.cfg.Phase)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &pipeline{
		indicators: ind,
		aligned:    make([]*model.Signal, len(bars)),
		signals:    make([]model.Signal, 0, len(bars)-r.warmup),
	}
	for i := r.warmup; i < len(bars); i++ {
		reading, _ := readings.At(i)
		sig := r.strategy.Generate(strategy.Input{
			Bar:        bars[i],
			Indicators: ind[i],
			Prev:       ind[i-1],
			Phase:      reading,
		})
		p.signals = append(p.signals, sig)
	}
	for j := range p.signals {
		p.aligned[r.warmup+j] = &p.signals[j]
	}
	return p, nil
}

// Run backtests one symbol. The report is either complete or an error is returned.
func (r *Runner) Run(ctx context.Context, symbol string, bars []model.OHLCV) (*model.SymbolReport, error) {
	p, err := r.prepare(ctx, bars)
	if err != nil {
		return nil, err
	}
	res, err := simulator.Run(bars, p.indicators, p.aligned, r.cfg.Simulator)
	if err != nil {
		return nil, err
	}

	rep := &model.SymbolReport{
		Symbol:         symbol,
		Strategy:       r.strategy.Name(),
		StartDate:      bars[0].Time,
		EndDate:        bars[len(bars)-1].Time,
		TotalBars:      len(bars),
		InitialCapital: r.cfg.Simulator.InitialCapital,
		Trades:         res.Trades,
		Signals:        p.signals,
		EquityCurve:    res.EquityCurve,
		PhaseAnalysis:  phase.Analyze(p.signals),
		Performance:    performance.Analyze(res.Trades, res.EquityCurve, r.cfg.Simulator.InitialCapital),
	}
	if rep.Trades == nil {
		rep.Trades = []model.Trade{}
	}

	log.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("trades", rep.Performance.TotalTrades).
		Float64("return_pct", rep.Performance.TotalReturnPercent).
		Msg("backtest complete")
	return rep, nil
}

// Optimize grid-searches the stop-loss for one symbol over fixed signals.
func (r *Runner) Optimize(ctx context.Context, symbol string, bars []model.OHLCV) (*model.OptimizationReport, error) {
	p, err := r.prepare(ctx, bars)
	if err != nil {
		return nil, err
	}
	rep, err := optimizer.Optimize(ctx, optimizer.Input{
		Bars:       bars,
		Indicators: p.indicators,
		Signals:    p.aligned,
		Simulator:  r.cfg.Simulator,
	}, r.cfg.Optimizer)
	if rep != nil {
		rep.Symbol = symbol
		rep.Strategy = r.strategy.Name()
	}
	if err != nil {
		return rep, err
	}

	log.Debug().
		Str("symbol", symbol).
		Float64("overall_optimal", rep.OverallOptimal).
		Int("monthly", len(rep.MonthlyResults)).
		Msg("optimization complete")
	return rep, nil
}

package model

import "time"

// SymbolReport is the complete output of one symbol's backtest.
type SymbolReport struct {
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	TotalBars      int                `json:"total_bars"`
	InitialCapital float64            `json:"initial_capital"`
	Trades         []Trade            `json:"trades"`
	Signals        []Signal           `json:"signals"`
	EquityCurve    []EquityPoint      `json:"equity_curve"`
	PhaseAnalysis  PhaseAnalysis      `json:"phase_analysis"`
	Performance    PerformanceMetrics `json:"performance_metrics"`
}

// BatchSummary aggregates a multi-symbol run.
type BatchSummary struct {
	TotalSymbols         int     `json:"total_symbols"`
	SuccessfulBacktests  int     `json:"successful_backtests"`
	FailedBacktests      int     `json:"failed_backtests"`
	TotalInitialCapital  float64 `json:"total_initial_capital"`
	TotalFinalValue      float64 `json:"total_final_value"`
	OverallReturnPercent float64 `json:"overall_return_percent"`
}

// BatchReport holds per-symbol reports, per-symbol failures and the summary.
type BatchReport struct {
	Results map[string]*SymbolReport `json:"results"`
	Errors  []SymbolError            `json:"errors"`
	Summary BatchSummary             `json:"summary"`
}

// OptimizationResult is the best stop-loss found for one window.
type OptimizationResult struct {
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Bars            int       `json:"bars"`
	OptimalStopLoss float64   `json:"optimal_stop_loss"`
	PerformanceMetrics
	Trades []Trade `json:"trades"`
}

// GridResult is the full-history outcome for one candidate stop-loss.
type GridResult struct {
	StopLoss float64 `json:"stop_loss"`
	PerformanceMetrics
}

// WindowStatistics summarises the per-window optima of one window type.
type WindowStatistics struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// Recommendations are percentile cuts over all per-window optima.
type Recommendations struct {
	Conservative float64 `json:"conservative"`
	Moderate     float64 `json:"moderate"`
	Aggressive   float64 `json:"aggressive"`
}

// OptimizationReport is the output of a stop-loss grid search.
type OptimizationReport struct {
	Symbol           string                      `json:"symbol"`
	Strategy         string                      `json:"strategy"`
	StartDate        time.Time                   `json:"start_date"`
	EndDate          time.Time                   `json:"end_date"`
	StopLossRange    [2]float64                  `json:"stop_loss_range"`
	TestIntervals    []float64                   `json:"test_intervals"`
	OverallOptimal   float64                     `json:"overall_optimal"`
	GridResults      []GridResult                `json:"grid_results"`
	MonthlyResults   []OptimizationResult        `json:"monthly_results"`
	QuarterlyResults []OptimizationResult        `json:"quarterly_results"`
	YearlyResults    []OptimizationResult        `json:"yearly_results"`
	Statistics       map[string]WindowStatistics `json:"statistics"`
	Recommendations  Recommendations             `json:"recommendations"`
	Partial          bool                        `json:"partial"`
}

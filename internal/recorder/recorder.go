package recorder

import (
	"context"

	"WyckoffBacktester/internal/model"
)

// Run kinds stored in the runs table.
const (
	KindBacktest = "backtest"
	KindOptimize = "optimize"
)

// RunRecord is the summary row of one persisted backtest or optimization. Report holds
// the full JSON document.
type RunRecord struct {
	ID            string  `db:"id" json:"id"`
	Kind          string  `db:"kind" json:"kind"`
	Symbol        string  `db:"symbol" json:"symbol"`
	Strategy      string  `db:"strategy" json:"strategy"`
	CreatedAt     int64   `db:"created_at" json:"created_at"`
	StartDate     string  `db:"start_date" json:"start_date"`
	EndDate       string  `db:"end_date" json:"end_date"`
	Bars          int     `db:"bars" json:"bars"`
	TotalTrades   int     `db:"total_trades" json:"total_trades"`
	WinRate       float64 `db:"win_rate" json:"win_rate"`
	ReturnPercent float64 `db:"return_percent" json:"return_percent"`
	MaxDrawdown   float64 `db:"max_drawdown" json:"max_drawdown"`
	SharpeRatio   float64 `db:"sharpe_ratio" json:"sharpe_ratio"`
	FinalValue    float64 `db:"final_value" json:"final_value"`
	StopLoss      float64 `db:"stop_loss" json:"stop_loss"`
	Report        string  `db:"report" json:"report"`
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordBacktest(ctx context.Context, runID string, rep *model.SymbolReport, stopLoss float64) error
	RecordOptimization(ctx context.Context, runID string, rep *model.OptimizationReport) error
	// LatestRuns returns the newest runs for symbol, newest first.
	LatestRuns(ctx context.Context, symbol string, limit int) ([]RunRecord, error)
	Close() error
}

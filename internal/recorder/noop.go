package recorder

import (
	"context"

	"WyckoffBacktester/internal/model"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordBacktest(context.Context, string, *model.SymbolReport, float64) error {
	return nil
}
func (n *NoopRecorder) RecordOptimization(context.Context, string, *model.OptimizationReport) error {
	return nil
}
func (n *NoopRecorder) LatestRuns(context.Context, string, int) ([]RunRecord, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                                 { return nil }

package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"WyckoffBacktester/internal/model"
)

// RunBatch backtests each series concurrently, bounded by the configured concurrency.
// A failing symbol is recorded in Errors and never aborts its siblings.
func (r *Runner) RunBatch(ctx context.Context, series []model.Series) *model.BatchReport {
	out := &model.BatchReport{
		Results: make(map[string]*model.SymbolReport, len(series)),
		Errors:  []model.SymbolError{},
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.cfg.Concurrency)
	)
	fail := func(symbol string, err error) {
		mu.Lock()
		out.Errors = append(out.Errors, model.SymbolError{Symbol: symbol, Error: err.Error()})
		mu.Unlock()
		log.Warn().Str("symbol", symbol).Err(err).Msg("backtest failed")
	}

	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if seen[s.Symbol] {
			fail(s.Symbol, fmt.Errorf("duplicate symbol in batch"))
			continue
		}
		seen[s.Symbol] = true

		wg.Add(1)
		go func(s model.Series) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				fail(s.Symbol, ctx.Err())
				return
			}
			if err := ctx.Err(); err != nil {
				fail(s.Symbol, err)
				return
			}

			rep, err := r.Run(ctx, s.Symbol, s.Bars)
			if err != nil {
				fail(s.Symbol, err)
				return
			}
			mu.Lock()
			out.Results[s.Symbol] = rep
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Symbol < out.Errors[j].Symbol })
	out.Summary = Summarize(out.Results, len(series))
	return out
}

// Summarize totals capital and final value over successful reports.
func Summarize(results map[string]*model.SymbolReport, total int) model.BatchSummary {
	initial, final := decimal.Zero, decimal.Zero
	for _, rep := range results {
		initial = initial.Add(decimal.NewFromFloat(rep.InitialCapital))
		final = final.Add(decimal.NewFromFloat(rep.Performance.FinalValue))
	}

	s := model.BatchSummary{
		TotalSymbols:        total,
		SuccessfulBacktests: len(results),
		FailedBacktests:     total - len(results),
	}
	s.TotalInitialCapital, _ = initial.Round(2).Float64()
	s.TotalFinalValue, _ = final.Round(2).Float64()
	if initial.IsPositive() {
		s.OverallReturnPercent, _ = final.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	}
	return s
}

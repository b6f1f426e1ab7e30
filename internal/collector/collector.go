package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"WyckoffBacktester/internal/model"
)

// Collector gathers bar series for a list of symbols from one Fetcher.
type Collector struct {
	Fetcher Fetcher
	Days    int
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, days int) *Collector {
	return &Collector{Fetcher: fetcher, Days: days}
}

// Collect fetches one symbol's history.
func (c *Collector) Collect(ctx context.Context, symbol string) (model.Series, error) {
	start := time.Now()
	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, c.Days)
	if err != nil {
		return model.Series{}, fmt.Errorf("fetch daily bars: %w", err)
	}
	if len(bars) == 0 {
		return model.Series{}, fmt.Errorf("fetch daily bars: %w", model.ErrEmptySeries)
	}
	log.Debug().
		Str("fetcher", c.Fetcher.Name()).
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Dur("took", time.Since(start)).
		Msg("fetched bars")
	return model.Series{Symbol: symbol, Bars: bars}, nil
}

// CollectAll fetches symbols in order. Failed symbols are reported and skipped.
func (c *Collector) CollectAll(ctx context.Context, symbols []string) ([]model.Series, []model.SymbolError) {
	var (
		series []model.Series
		failed []model.SymbolError
	)
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			failed = append(failed, model.SymbolError{Symbol: sym, Error: err.Error()})
			continue
		}
		s, err := c.Collect(ctx, sym)
		if err != nil {
			log.Warn().Str("symbol", sym).Err(err).Msg("collect failed")
			failed = append(failed, model.SymbolError{Symbol: sym, Error: err.Error()})
			continue
		}
		series = append(series, s)
	}
	return series, failed
}

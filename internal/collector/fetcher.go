package collector

import (
	"context"
	"sort"

	"WyckoffBacktester/internal/model"
)

// Fetcher defines the interface for fetching daily bar history.
type Fetcher interface {
	// FetchDailyBars returns at most days bars, oldest first.
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error)
	Name() string
}

// normalize sorts bars by date, keeps the last bar of any repeated date and drops bars
// without a positive close, so the result is strictly ascending.
func normalize(bars []model.OHLCV) []model.OHLCV {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		if n := len(out); n > 0 && !b.Time.After(out[n-1].Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// lastN trims bars to the most recent n.
func lastN(bars []model.OHLCV, n int) []model.OHLCV {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}

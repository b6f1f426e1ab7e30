package collector

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"WyckoffBacktester/internal/model"
)

// SyntheticFetcher generates a reproducible random-walk series per symbol, for demos and
// tests without network access.
type SyntheticFetcher struct {
	Price      float64
	Drift      float64 // mean daily log return
	Volatility float64 // daily log return stddev
	Seed       int64
	End        time.Time // last bar date; zero means today (UTC)
}

func NewSyntheticFetcher(seed int64) *SyntheticFetcher {
	return &SyntheticFetcher{Price: 100, Drift: 0.0003, Volatility: 0.015, Seed: seed}
}

func (f *SyntheticFetcher) Name() string { return "synthetic" }

// FetchDailyBars returns days weekday bars ending at End.
func (f *SyntheticFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, model.ErrEmptySeries
	}
	end := f.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	y, m, d := end.Date()
	end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	dates := make([]time.Time, 0, days)
	for t := end; len(dates) < days; t = t.AddDate(0, 0, -1) {
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, t)
		}
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(f.Seed ^ int64(h.Sum64())))

	bars := make([]model.OHLCV, days)
	p := f.Price
	for i := range bars {
		open := p
		p *= math.Exp(f.Drift + f.Volatility*rng.NormFloat64())
		spread := math.Abs(rng.NormFloat64()) * f.Volatility / 2
		bars[i] = model.OHLCV{
			Time:   dates[days-1-i],
			Open:   open,
			High:   math.Max(open, p) * (1 + spread),
			Low:    math.Min(open, p) * (1 - spread),
			Close:  p,
			Volume: math.Round(1_000_000 * (1 + 0.5*math.Abs(rng.NormFloat64()))),
		}
	}
	return bars, nil
}

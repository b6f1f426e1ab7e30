package phase

import (
	"math"

	"WyckoffBacktester/internal/model"
)

type pivot struct {
	index int
	price float64
}

// LevelTracker maintains support/resistance from confirmed pivot lows/highs.
// A pivot at bar j is confirmed once `wing` bars on both sides are known, so
// levels never depend on future bars.
type LevelTracker struct {
	wing     int
	lookback int
	lows     []pivot
	highs    []pivot
}

// NewLevelTracker creates a tracker using wing bars on each side and keeping pivots for lookback bars.
func NewLevelTracker(wing, lookback int) *LevelTracker {
	return &LevelTracker{wing: wing, lookback: lookback}
}

// Update confirms any pivot that became visible at bar i and drops expired ones.
func (t *LevelTracker) Update(bars []model.OHLCV, i int) {
	j := i - t.wing
	if j >= t.wing {
		isLow, isHigh := true, true
		for k := j - t.wing; k <= j+t.wing; k++ {
			if k == j {
				continue
			}
			if bars[k].Low <= bars[j].Low {
				isLow = false
			}
			if bars[k].High >= bars[j].High {
				isHigh = false
			}
		}
		if isLow {
			t.lows = append(t.lows, pivot{index: j, price: bars[j].Low})
		}
		if isHigh {
			t.highs = append(t.highs, pivot{index: j, price: bars[j].High})
		}
	}
	t.lows = expire(t.lows, i-t.lookback)
	t.highs = expire(t.highs, i-t.lookback)
}

func expire(ps []pivot, oldest int) []pivot {
	n := 0
	for n < len(ps) && ps[n].index <= oldest {
		n++
	}
	return ps[n:]
}

// Levels returns the nearest support below and resistance above price.
func (t *LevelTracker) Levels(price float64) (support, resistance *float64) {
	best := math.Inf(-1)
	for _, p := range t.lows {
		if p.price < price && p.price > best {
			best = p.price
		}
	}
	if !math.IsInf(best, -1) {
		v := best
		support = &v
	}
	best = math.Inf(1)
	for _, p := range t.highs {
		if p.price > price && p.price < best {
			best = p.price
		}
	}
	if !math.IsInf(best, 1) {
		v := best
		resistance = &v
	}
	return support, resistance
}

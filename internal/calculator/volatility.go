package calculator

import (
	"math"

	"WyckoffBacktester/internal/model"
)

// TrueRange returns max(high-low, |high-prev close|, |low-prev close|); the first bar uses high-low.
func TrueRange(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR computes the Wilder-smoothed average true range, seeded by the mean of the first period ranges.
func ATR(bars []model.OHLCV, period int) ([]float64, error) {
	if err := checkPeriod("ATR", len(bars), period); err != nil {
		return nil, err
	}
	tr := TrueRange(bars)
	out := nanSeries(len(bars))
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev
	for i := period; i < len(bars); i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out, nil
}

// Bollinger computes the middle band (SMA) and upper/lower bands at k standard deviations.
func Bollinger(values []float64, period int, k float64) (upper, middle, lower []float64, err error) {
	middle, err = SMA(values, period)
	if err != nil {
		return nil, nil, nil, err
	}
	sd, err := StdDev(values, period)
	if err != nil {
		return nil, nil, nil, err
	}
	upper = nanSeries(len(values))
	lower = nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		upper[i] = middle[i] + k*sd[i]
		lower[i] = middle[i] - k*sd[i]
	}
	return upper, middle, lower, nil
}

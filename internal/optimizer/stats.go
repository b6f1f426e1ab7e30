package optimizer

import (
	"math"
	"sort"

	"WyckoffBacktester/internal/model"
)

// Summarize reports count, min, max, mean and median of values.
func Summarize(values []float64) model.WindowStatistics {
	if len(values) == 0 {
		return model.WindowStatistics{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return model.WindowStatistics{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Avg:    sum / float64(len(sorted)),
		Median: Percentile(sorted, 0.5),
	}
}

// Percentile interpolates linearly between closest ranks of an ascending slice; p is in [0,1].
func Percentile(sorted []float64, p float64) float64 {
	switch n := len(sorted); {
	case n == 0:
		return 0
	case n == 1:
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Recommend cuts the 25th, 50th and 75th percentiles of all per-window optima.
// fallback is used for every tier when there are no windows.
func Recommend(optima []float64, fallback float64) model.Recommendations {
	if len(optima) == 0 {
		return model.Recommendations{Conservative: fallback, Moderate: fallback, Aggressive: fallback}
	}
	sorted := append([]float64(nil), optima...)
	sort.Float64s(sorted)
	return model.Recommendations{
		Conservative: round(Percentile(sorted, 0.25)),
		Moderate:     round(Percentile(sorted, 0.50)),
		Aggressive:   round(Percentile(sorted, 0.75)),
	}
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

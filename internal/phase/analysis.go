package phase

import "WyckoffBacktester/internal/model"

// Analyze counts signals per phase and averages the calendar length of contiguous phase runs.
// Only runs closed by a phase change are averaged.
func Analyze(signals []model.Signal) model.PhaseAnalysis {
	out := model.PhaseAnalysis{
		PhaseCounts:  make(map[model.Phase]int),
		AvgDurations: make(map[model.Phase]float64),
		TotalSignals: len(signals),
	}
	if len(signals) == 0 {
		return out
	}

	durations := make(map[model.Phase][]int)
	current := signals[0].Phase
	start := signals[0].Date
	for _, s := range signals {
		if s.Phase != current {
			durations[current] = append(durations[current], model.DaysBetween(start, s.Date))
			current, start = s.Phase, s.Date
		}
		out.PhaseCounts[s.Phase]++
	}

	for p, ds := range durations {
		sum := 0
		for _, d := range ds {
			sum += d
		}
		out.AvgDurations[p] = float64(sum) / float64(len(ds))
	}
	return out
}

package calculator

import "WyckoffBacktester/internal/model"

// RSI computes the Wilder-smoothed relative strength index.
// The first bar has no prior close and counts as an unchanged bar, so the series is
// defined from index period-1 onward.
func RSI(bars []model.OHLCV, period int) ([]float64, error) {
	if err := checkPeriod("RSI", len(bars), period); err != nil {
		return nil, err
	}
	out := nanSeries(len(bars))

	// Initial average gain/loss over the first `period` bars
	var avgGain, avgLoss float64
	for i := 1; i < period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period-1] = rsiValue(avgGain, avgLoss)

	// Wilder smoothing for remaining bars
	for i := period; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

package calculator

import (
	"fmt"
	"math"

	"WyckoffBacktester/internal/model"
)

// highLow scans bars[from..to] inclusive.
func highLow(bars []model.OHLCV, from, to int) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := from; i <= to; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low
}

// Stochastic computes the fast %K over period bars and %D as the SMA(d) of %K.
func Stochastic(bars []model.OHLCV, period, d int) (k, dLine []float64, err error) {
	if err := checkPeriod("Stoch_K", len(bars), period); err != nil {
		return nil, nil, err
	}
	if d <= 0 {
		return nil, nil, fmt.Errorf("%w: Stoch_D period must be positive, got %d", model.ErrInvalidConfiguration, d)
	}
	k = nanSeries(len(bars))
	for i := period - 1; i < len(bars); i++ {
		high, low := highLow(bars, i-period+1, i)
		if high == low {
			k[i] = 50
			continue
		}
		k[i] = (bars[i].Close - low) / (high - low) * 100
	}
	dLine = nanSeries(len(bars))
	for i := period - 1 + d - 1; i < len(bars); i++ {
		sum := 0.0
		for j := i - d + 1; j <= i; j++ {
			sum += k[j]
		}
		dLine[i] = sum / float64(d)
	}
	return k, dLine, nil
}

// WilliamsR computes Williams %R in the range -100 ~ 0.
func WilliamsR(bars []model.OHLCV, period int) ([]float64, error) {
	if err := checkPeriod("Williams_R", len(bars), period); err != nil {
		return nil, err
	}
	out := nanSeries(len(bars))
	for i := period - 1; i < len(bars); i++ {
		high, low := highLow(bars, i-period+1, i)
		if high == low {
			out[i] = -50
			continue
		}
		out[i] = (high - bars[i].Close) / (high - low) * -100
	}
	return out, nil
}

func typicalPrice(b model.OHLCV) float64 { return (b.High + b.Low + b.Close) / 3 }

// CCI computes the commodity channel index with Lambert's 0.015 constant.
func CCI(bars []model.OHLCV, period int) ([]float64, error) {
	if err := checkPeriod("CCI", len(bars), period); err != nil {
		return nil, err
	}
	tp := make([]float64, len(bars))
	for i, b := range bars {
		tp[i] = typicalPrice(b)
	}
	out := nanSeries(len(bars))
	for i := period - 1; i < len(bars); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += tp[j]
		}
		mean /= float64(period)
		dev := 0.0
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - mean)
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean) / (0.015 * dev)
	}
	return out, nil
}

// MFI computes the money flow index. The first bar has no prior typical price and is neutral.
func MFI(bars []model.OHLCV, period int) ([]float64, error) {
	if err := checkPeriod("MFI", len(bars), period); err != nil {
		return nil, err
	}
	pos := make([]float64, len(bars))
	neg := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		tp := typicalPrice(bars[i])
		prev := typicalPrice(bars[i-1])
		flow := tp * bars[i].Volume
		switch {
		case tp > prev:
			pos[i] = flow
		case tp < prev:
			neg[i] = flow
		}
	}
	out := nanSeries(len(bars))
	var sumPos, sumNeg float64
	for i := range bars {
		sumPos += pos[i]
		sumNeg += neg[i]
		if i >= period {
			sumPos -= pos[i-period]
			sumNeg -= neg[i-period]
		}
		if i < period-1 {
			continue
		}
		switch {
		case sumNeg == 0 && sumPos == 0:
			out[i] = 50
		case sumNeg == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+sumPos/sumNeg)
		}
	}
	return out, nil
}

// MACD computes the MACD line, its signal line and the histogram.
func MACD(values []float64, fast, slow, signal int) (line, sig, hist []float64, err error) {
	if fast >= slow {
		return nil, nil, nil, fmt.Errorf("%w: MACD fast period %d must be below slow period %d", model.ErrInvalidConfiguration, fast, slow)
	}
	fastEMA, err := EMA(values, fast)
	if err != nil {
		return nil, nil, nil, err
	}
	slowEMA, err := EMA(values, slow)
	if err != nil {
		return nil, nil, nil, err
	}
	if signal <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: MACD signal period must be positive, got %d", model.ErrInvalidConfiguration, signal)
	}
	line = nanSeries(len(values))
	for i := slow - 1; i < len(values); i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = emaFrom(line, slow-1, signal)
	hist = nanSeries(len(values))
	for i := range values {
		if !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist, nil
}

package calculator

import (
	"fmt"
	"math"

	"WyckoffBacktester/internal/model"
)

// checkPeriod validates a window length against the series length.
func checkPeriod(name string, n, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s period must be positive, got %d", model.ErrInvalidConfiguration, name, period)
	}
	if n < period {
		return fmt.Errorf("%w: %s needs %d bars, have %d", model.ErrInsufficientHistory, name, period, n)
	}
	return nil
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes the simple moving average series. The first period-1 values are NaN.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("SMA", len(values), period); err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA computes the exponential moving average seeded by the SMA of the first period values,
// then recursed with smoothing factor 2/(period+1).
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", len(values), period); err != nil {
		return nil, err
	}
	return emaFrom(values, 0, period), nil
}

// emaFrom computes an EMA over values[start:], leaving earlier entries NaN.
// Callers guarantee len(values)-start >= period.
func emaFrom(values []float64, start, period int) []float64 {
	out := nanSeries(len(values))
	if len(values)-start < period {
		return out
	}
	seed := 0.0
	for i := start; i < start+period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[start+period-1] = prev
	k := 2.0 / float64(period+1)
	for i := start + period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// StdDev computes the rolling sample standard deviation.
func StdDev(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("StdDev", len(values), period); err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	if period < 2 {
		for i := range out {
			out[i] = 0
		}
		return out, nil
	}
	for i := period - 1; i < len(values); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += values[j]
		}
		mean /= float64(period)
		ss := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out, nil
}

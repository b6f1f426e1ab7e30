package calculator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WyckoffBacktester/internal/model"
)

func makeBars(closes ...float64) []model.OHLCV {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000 + float64(i%7)*100,
		}
	}
	return bars
}

func wave(n int) []model.OHLCV {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/6) + float64(i)*0.05
	}
	return makeBars(closes...)
}

func TestSMA(t *testing.T) {
	out, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMA_SeedsFromSMA(t *testing.T) {
	out, err := EMA([]float64{2, 4, 6, 8}, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 4.0, out[2], 1e-12)
	// k = 0.5: 8*0.5 + 4*0.5
	assert.InDelta(t, 6.0, out[3], 1e-12)
}

func TestRSI_Extremes(t *testing.T) {
	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	out, err := RSI(makeBars(rising...), 14)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[12]))
	assert.InDelta(t, 100.0, out[29], 1e-9)

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 50
	}
	out, err = RSI(makeBars(flat...), 14)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, out[19], 1e-9)
}

func TestATR_ConstantRange(t *testing.T) {
	bars := make([]model.OHLCV, 20)
	for i := range bars {
		bars[i] = model.OHLCV{High: 102, Low: 98, Close: 100}
	}
	out, err := ATR(bars, 5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[3]))
	assert.InDelta(t, 4.0, out[4], 1e-12)
	assert.InDelta(t, 4.0, out[19], 1e-12)
}

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	bars := []model.OHLCV{
		{High: 10, Low: 9, Close: 9.5},
		{High: 12, Low: 11, Close: 11.5}, // gap up: |12 - 9.5| = 2.5
	}
	tr := TrueRange(bars)
	assert.InDelta(t, 1.0, tr[0], 1e-12)
	assert.InDelta(t, 2.5, tr[1], 1e-12)
}

func TestWilliamsRAndStochastic_Bounds(t *testing.T) {
	bars := wave(80)
	wr, err := WilliamsR(bars, 14)
	require.NoError(t, err)
	k, d, err := Stochastic(bars, 14, 3)
	require.NoError(t, err)
	for i := 15; i < len(bars); i++ {
		assert.GreaterOrEqual(t, wr[i], -100.0)
		assert.LessOrEqual(t, wr[i], 0.0)
		assert.GreaterOrEqual(t, k[i], 0.0)
		assert.LessOrEqual(t, k[i], 100.0)
		assert.False(t, math.IsNaN(d[i]))
	}
}

func TestCompute_WarmUpInvariant(t *testing.T) {
	bars := wave(260)
	cfg := DefaultConfig()
	sets, err := Compute(bars, cfg)
	require.NoError(t, err)
	require.Len(t, sets, len(bars))

	for name, period := range cfg.Periods() {
		for i := 0; i < period-1; i++ {
			_, ok := sets[i].Get(name)
			assert.False(t, ok, "%s should be undefined at bar %d", name, i)
		}
		for i := period - 1; i < len(bars); i++ {
			_, ok := sets[i].Get(name)
			require.True(t, ok, "%s should be defined at bar %d", name, i)
		}
	}
}

func TestCompute_PrefixStable(t *testing.T) {
	bars := wave(240)
	cfg := DefaultConfig()
	full, err := Compute(bars, cfg)
	require.NoError(t, err)
	prefix, err := Compute(bars[:220], cfg)
	require.NoError(t, err)
	for i := range prefix {
		assert.Equal(t, prefix[i], full[i], "bar %d differs between prefix and full run", i)
	}
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name string
		bars []model.OHLCV
		cfg  Config
		want error
	}{
		{"empty series", nil, DefaultConfig(), model.ErrEmptySeries},
		{"period longer than series", wave(10), Config{RSI: []int{14}}, model.ErrInsufficientHistory},
		{"non-positive period", wave(30), Config{EMA: []int{0}}, model.ErrInvalidConfiguration},
		{"macd signal longer than series", wave(30), Config{MACD: &MACDConfig{Fast: 12, Slow: 26, Signal: 9}}, model.ErrInsufficientHistory},
		{"stochastic %D longer than series", wave(15), Config{Stochastic: &StochasticConfig{K: 14, D: 3}}, model.ErrInsufficientHistory},
		{"bad macd", wave(60), Config{MACD: &MACDConfig{Fast: 26, Slow: 12, Signal: 9}}, model.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.bars, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompute_WarmUpIsNotAnError(t *testing.T) {
	// 14 bars satisfy RSI_14 even though only the last value is defined.
	sets, err := Compute(wave(14), Config{RSI: []int{14}})
	require.NoError(t, err)
	_, ok := sets[13].Get("RSI_14")
	assert.True(t, ok)
}

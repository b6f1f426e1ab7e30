package calculator

import (
	"fmt"
	"math"
	"sort"

	"WyckoffBacktester/internal/model"
)

// MACDConfig holds the three MACD periods.
type MACDConfig struct {
	Fast   int `yaml:"fast"`
	Slow   int `yaml:"slow"`
	Signal int `yaml:"signal"`
}

// BollingerConfig holds the band period and width.
type BollingerConfig struct {
	Period int     `yaml:"period"`
	StdDev float64 `yaml:"std_dev"`
}

// StochasticConfig holds the %K window and %D smoothing.
type StochasticConfig struct {
	K int `yaml:"k"`
	D int `yaml:"d"`
}

// Config lists the indicators to compute. An empty family is skipped.
type Config struct {
	SMA        []int             `yaml:"sma"`
	EMA        []int             `yaml:"ema"`
	RSI        []int             `yaml:"rsi"`
	ATR        []int             `yaml:"atr"`
	WilliamsR  []int             `yaml:"williams_r"`
	CCI        []int             `yaml:"cci"`
	MFI        []int             `yaml:"mfi"`
	VolumeSMA  []int             `yaml:"volume_sma"`
	MACD       *MACDConfig       `yaml:"macd"`
	Bollinger  *BollingerConfig  `yaml:"bollinger"`
	Stochastic *StochasticConfig `yaml:"stochastic"`
}

// DefaultConfig mirrors the indicator set used by the phase and crossover strategies.
func DefaultConfig() Config {
	return Config{
		SMA:        []int{20, 50, 200},
		EMA:        []int{11, 21, 50},
		RSI:        []int{14},
		ATR:        []int{14},
		WilliamsR:  []int{14},
		CCI:        []int{20},
		MFI:        []int{14},
		VolumeSMA:  []int{20},
		MACD:       &MACDConfig{Fast: 12, Slow: 26, Signal: 9},
		Bollinger:  &BollingerConfig{Period: 20, StdDev: 2},
		Stochastic: &StochasticConfig{K: 14, D: 3},
	}
}

// Periods flattens the config into an indicator name -> period mapping.
func (c Config) Periods() map[string]int {
	out := make(map[string]int)
	add := func(prefix string, periods []int) {
		for _, p := range periods {
			out[fmt.Sprintf("%s_%d", prefix, p)] = p
		}
	}
	add("SMA", c.SMA)
	add("EMA", c.EMA)
	add("RSI", c.RSI)
	add("ATR", c.ATR)
	add("Williams_R", c.WilliamsR)
	add("CCI", c.CCI)
	add("MFI", c.MFI)
	add("Volume_SMA", c.VolumeSMA)
	if c.MACD != nil {
		out["MACD"] = c.MACD.Slow
		out["MACD_Signal"] = c.MACD.Slow + c.MACD.Signal - 1
		out["MACD_Histogram"] = c.MACD.Slow + c.MACD.Signal - 1
	}
	if c.Bollinger != nil {
		out["BB_Upper"] = c.Bollinger.Period
		out["BB_Middle"] = c.Bollinger.Period
		out["BB_Lower"] = c.Bollinger.Period
	}
	if c.Stochastic != nil {
		out["Stoch_K"] = c.Stochastic.K
		out["Stoch_D"] = c.Stochastic.K + c.Stochastic.D - 1
	}
	return out
}

// Validate rejects non-positive periods before any computation starts.
func (c Config) Validate() error {
	for name, p := range c.Periods() {
		if p <= 0 {
			return fmt.Errorf("%w: indicator %s period must be positive, got %d", model.ErrInvalidConfiguration, name, p)
		}
	}
	if c.MACD != nil && (c.MACD.Fast <= 0 || c.MACD.Signal <= 0 || c.MACD.Fast >= c.MACD.Slow) {
		return fmt.Errorf("%w: macd requires 0 < fast < slow and signal > 0", model.ErrInvalidConfiguration)
	}
	if c.Bollinger != nil && c.Bollinger.StdDev <= 0 {
		return fmt.Errorf("%w: bollinger.std_dev must be positive", model.ErrInvalidConfiguration)
	}
	if c.Stochastic != nil && c.Stochastic.D <= 0 {
		return fmt.Errorf("%w: stochastic.d must be positive", model.ErrInvalidConfiguration)
	}
	return nil
}

// Compute derives one IndicatorSet per bar, in bar order. Values inside an indicator's
// warm-up are left out of the set. It fails with ErrInsufficientHistory only when a
// configured period exceeds the whole series.
func Compute(bars []model.OHLCV, cfg Config) ([]model.IndicatorSet, error) {
	if len(bars) == 0 {
		return nil, model.ErrEmptySeries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// derived lines (MACD signal, %D) need more bars than their base windows
	for name, p := range cfg.Periods() {
		if p > len(bars) {
			return nil, fmt.Errorf("%w: %s needs %d bars, have %d", model.ErrInsufficientHistory, name, p, len(bars))
		}
	}

	closes := model.Closes(bars)
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}

	series := make(map[string][]float64)
	type job struct {
		prefix string
		fn     func(int) ([]float64, error)
		list   []int
	}
	jobs := []job{
		{"SMA", func(p int) ([]float64, error) { return SMA(closes, p) }, uniquePeriods(cfg.SMA)},
		{"EMA", func(p int) ([]float64, error) { return EMA(closes, p) }, uniquePeriods(cfg.EMA)},
		{"RSI", func(p int) ([]float64, error) { return RSI(bars, p) }, uniquePeriods(cfg.RSI)},
		{"ATR", func(p int) ([]float64, error) { return ATR(bars, p) }, uniquePeriods(cfg.ATR)},
		{"Williams_R", func(p int) ([]float64, error) { return WilliamsR(bars, p) }, uniquePeriods(cfg.WilliamsR)},
		{"CCI", func(p int) ([]float64, error) { return CCI(bars, p) }, uniquePeriods(cfg.CCI)},
		{"MFI", func(p int) ([]float64, error) { return MFI(bars, p) }, uniquePeriods(cfg.MFI)},
		{"Volume_SMA", func(p int) ([]float64, error) { return SMA(volumes, p) }, uniquePeriods(cfg.VolumeSMA)},
	}
	for _, j := range jobs {
		for _, p := range j.list {
			s, err := j.fn(p)
			if err != nil {
				return nil, err
			}
			series[fmt.Sprintf("%s_%d", j.prefix, p)] = s
		}
	}

	if m := cfg.MACD; m != nil {
		line, sig, hist, err := MACD(closes, m.Fast, m.Slow, m.Signal)
		if err != nil {
			return nil, err
		}
		series["MACD"], series["MACD_Signal"], series["MACD_Histogram"] = line, sig, hist
	}
	if b := cfg.Bollinger; b != nil {
		upper, middle, lower, err := Bollinger(closes, b.Period, b.StdDev)
		if err != nil {
			return nil, err
		}
		series["BB_Upper"], series["BB_Middle"], series["BB_Lower"] = upper, middle, lower
	}
	if s := cfg.Stochastic; s != nil {
		k, d, err := Stochastic(bars, s.K, s.D)
		if err != nil {
			return nil, err
		}
		series["Stoch_K"], series["Stoch_D"] = k, d
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.IndicatorSet, len(bars))
	for i := range bars {
		set := make(model.IndicatorSet, len(names))
		for _, name := range names {
			if v := series[name][i]; !math.IsNaN(v) {
				set[name] = v
			}
		}
		out[i] = set
	}
	return out, nil
}

// uniquePeriods returns a sorted, de-duplicated copy of periods.
func uniquePeriods(periods []int) []int {
	seen := make(map[int]bool, len(periods))
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

package phase

import (
	"fmt"
	"math"

	"WyckoffBacktester/internal/model"
)

// Weights combine the three score components. They need not sum to 1.
type Weights struct {
	Consistency float64 `yaml:"consistency"`
	Volume      float64 `yaml:"volume"`
	Proximity   float64 `yaml:"proximity"`
}

// Config drives the classifier. Rules are evaluated in order.
type Config struct {
	Lookback         int     `yaml:"lookback"`
	VolumeWindow     int     `yaml:"volume_window"`
	HysteresisBars   int     `yaml:"hysteresis_bars"`
	PivotWing        int     `yaml:"pivot_wing"`
	LevelLookback    int     `yaml:"level_lookback"`
	LevelTolerance   float64 `yaml:"level_tolerance"`
	ProximityBand    float64 `yaml:"proximity_band"`
	ConsistencyBars  int     `yaml:"consistency_bars"`
	VolumeSaturation float64 `yaml:"volume_saturation"`
	Weights          Weights `yaml:"score_weights"`
	Rules            []Rule  `yaml:"rules"`
}

// DefaultConfig requires 3 confirming bars before a phase change.
func DefaultConfig() Config {
	return Config{
		Lookback:         20,
		VolumeWindow:     5,
		HysteresisBars:   3,
		PivotWing:        5,
		LevelLookback:    50,
		LevelTolerance:   0.01,
		ProximityBand:    0.05,
		ConsistencyBars:  20,
		VolumeSaturation: 1.5,
		Weights:          Weights{Consistency: 0.40, Volume: 0.35, Proximity: 0.25},
		Rules:            DefaultRules(),
	}
}

// Validate rejects out-of-range settings.
func (c Config) Validate() error {
	switch {
	case c.Lookback < 2:
		return fmt.Errorf("%w: phase.lookback must be at least 2", model.ErrInvalidConfiguration)
	case c.VolumeWindow <= 0 || c.VolumeWindow > c.Lookback:
		return fmt.Errorf("%w: phase.volume_window must be in [1, lookback]", model.ErrInvalidConfiguration)
	case c.HysteresisBars < 1:
		return fmt.Errorf("%w: phase.hysteresis_bars must be at least 1", model.ErrInvalidConfiguration)
	case c.PivotWing < 1 || c.LevelLookback <= 2*c.PivotWing:
		return fmt.Errorf("%w: phase.level_lookback must exceed twice pivot_wing", model.ErrInvalidConfiguration)
	case c.LevelTolerance < 0 || c.ProximityBand <= 0:
		return fmt.Errorf("%w: phase.level_tolerance and proximity_band out of range", model.ErrInvalidConfiguration)
	case c.ConsistencyBars < 1 || c.VolumeSaturation <= 0:
		return fmt.Errorf("%w: phase.consistency_bars and volume_saturation must be positive", model.ErrInvalidConfiguration)
	}
	w := c.Weights
	if w.Consistency < 0 || w.Volume < 0 || w.Proximity < 0 || w.Consistency+w.Volume+w.Proximity == 0 {
		return fmt.Errorf("%w: phase.score_weights must be non-negative with a positive sum", model.ErrInvalidConfiguration)
	}
	for _, r := range c.Rules {
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Indicators lists the indicator names referenced by the rules, in first-use order.
func (c Config) Indicators() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range c.Rules {
		for _, e := range r.Require {
			if e.Indicator != "" && !seen[e.Indicator] {
				seen[e.Indicator] = true
				out = append(out, e.Indicator)
			}
		}
	}
	return out
}

// Classifier is a hysteresis state machine fed one bar at a time, in date order.
type Classifier struct {
	cfg    Config
	levels *LevelTracker

	current     model.Phase
	barsInPhase int
	candidate   model.Phase
	confirming  int
}

// NewClassifier starts in the Transitional phase.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:     cfg,
		levels:  NewLevelTracker(cfg.PivotWing, cfg.LevelLookback),
		current: model.PhaseTransitional,
	}
}

// WarmUp is the number of bars needed before the first reading.
func (c *Classifier) WarmUp() int { return c.cfg.Lookback }

// Step advances the state machine to bar i. It must be called for every bar in order;
// ok is false while i is inside warm-up.
func (c *Classifier) Step(bars []model.OHLCV, i int, ind model.IndicatorSet) (model.PhaseReading, bool) {
	c.levels.Update(bars, i)
	if i < c.cfg.Lookback-1 {
		return model.PhaseReading{}, false
	}

	obs := c.observe(bars, i, ind)
	raw, rule := model.PhaseTransitional, ""
	for _, r := range c.cfg.Rules {
		if r.Matches(obs) {
			raw, rule = r.Phase, r.Name
			break
		}
	}
	c.transition(raw)

	support, resistance := c.levels.Levels(bars[i].Close)
	reading := model.PhaseReading{
		Phase:             c.current,
		BarsInPhase:       c.barsInPhase,
		Rule:              rule,
		Support:           support,
		Resistance:        resistance,
		TestingSupport:    obs.NearSupport,
		TestingResistance: obs.NearResistance,
		VolumeRatio:       obs.VolumeRatio,
	}
	reading.Score = c.score(bars[i].Close, obs.VolumeRatio, support, resistance)
	return reading, true
}

// transition applies hysteresis: a new phase needs HysteresisBars consecutive raw readings.
func (c *Classifier) transition(raw model.Phase) {
	if raw == c.current {
		c.barsInPhase++
		c.candidate, c.confirming = "", 0
		return
	}
	if raw == c.candidate {
		c.confirming++
	} else {
		c.candidate, c.confirming = raw, 1
	}
	if c.confirming >= c.cfg.HysteresisBars {
		c.current = c.candidate
		c.barsInPhase = c.confirming
		c.candidate, c.confirming = "", 0
		return
	}
	c.barsInPhase++
}

func (c *Classifier) observe(bars []model.OHLCV, i int, ind model.IndicatorSet) Observation {
	start := i - c.cfg.Lookback + 1
	window := bars[start : i+1]
	first := window[0].Close
	last := window[len(window)-1].Close

	high, low := math.Inf(-1), math.Inf(1)
	priorHigh, priorLow := math.Inf(-1), math.Inf(1)
	var closeSum, volSum float64
	for k, b := range window {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
		closeSum += b.Close
		volSum += b.Volume
		if k < len(window)-1 {
			priorHigh = math.Max(priorHigh, b.Close)
			priorLow = math.Min(priorLow, b.Close)
		}
	}
	sma := closeSum / float64(len(window))
	volMean := volSum / float64(len(window))

	var recent float64
	for _, b := range window[len(window)-c.cfg.VolumeWindow:] {
		recent += b.Volume
	}
	recent /= float64(c.cfg.VolumeWindow)

	mid := len(window) / 2
	var firstHalf, secondHalf float64
	for k, b := range window {
		if k < mid {
			firstHalf += b.Volume
		} else {
			secondHalf += b.Volume
		}
	}
	firstHalf /= float64(mid)
	secondHalf /= float64(len(window) - mid)

	obs := Observation{
		PriceChange:    safeRatio(last-first, first),
		PriceRange:     safeRatio(high-low, first),
		VolumeRatio:    ratioOrOne(recent, volMean),
		VolumeTrend:    ratioOrOne(secondHalf, firstHalf),
		PriceVsSMA:     safeRatio(last-sma, sma),
		BelowPriorHigh: last < priorHigh,
		AbovePriorLow:  last > priorLow,
		Indicators:     ind,
	}
	support, resistance := c.levels.Levels(last)
	obs.NearSupport = support != nil && math.Abs(last-*support) <= c.cfg.LevelTolerance*last
	obs.NearResistance = resistance != nil && math.Abs(*resistance-last) <= c.cfg.LevelTolerance*last
	return obs
}

// score blends phase persistence, volume confirmation and level proximity into 0 ~ 100.
func (c *Classifier) score(price, volumeRatio float64, support, resistance *float64) float64 {
	consistency := math.Min(float64(c.barsInPhase)/float64(c.cfg.ConsistencyBars), 1)
	volume := clamp(volumeRatio/c.cfg.VolumeSaturation, 0, 1)

	proximity := 0.0
	if price > 0 {
		for _, lvl := range []*float64{support, resistance} {
			if lvl == nil {
				continue
			}
			d := math.Abs(price-*lvl) / price
			proximity = math.Max(proximity, 1-d/c.cfg.ProximityBand)
		}
	}
	proximity = clamp(proximity, 0, 1)

	w := c.cfg.Weights
	total := w.Consistency + w.Volume + w.Proximity
	s := (w.Consistency*consistency + w.Volume*volume + w.Proximity*proximity) / total * 100
	return clamp(s, 0, 100)
}

// Readings is the classifier output aligned with the bar series.
type Readings struct {
	Start    int
	Readings []model.PhaseReading
}

// At returns the reading of bar i, if it is past warm-up.
func (r Readings) At(i int) (model.PhaseReading, bool) {
	if i < r.Start || i >= len(r.Readings) {
		return model.PhaseReading{}, false
	}
	return r.Readings[i], true
}

// Classify runs a fresh classifier over the whole series.
func Classify(bars []model.OHLCV, indicators []model.IndicatorSet, cfg Config) (Readings, error) {
	if len(bars) == 0 {
		return Readings{}, model.ErrEmptySeries
	}
	if err := cfg.Validate(); err != nil {
		return Readings{}, err
	}
	if len(indicators) != len(bars) {
		return Readings{}, fmt.Errorf("indicator series length %d does not match %d bars", len(indicators), len(bars))
	}
	if cfg.Lookback > len(bars) {
		return Readings{}, fmt.Errorf("%w: phase lookback %d exceeds %d bars", model.ErrInsufficientHistory, cfg.Lookback, len(bars))
	}

	c := NewClassifier(cfg)
	out := Readings{Start: cfg.Lookback - 1, Readings: make([]model.PhaseReading, len(bars))}
	for i := range bars {
		if r, ok := c.Step(bars, i, indicators[i]); ok {
			out.Readings[i] = r
		}
	}
	return out, nil
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func ratioOrOne(num, den float64) float64 {
	if den <= 0 {
		return 1
	}
	return num / den
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

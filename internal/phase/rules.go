package phase

import (
	"fmt"
	"math"

	"WyckoffBacktester/internal/model"
)

// EvidenceKind tags one kind of confirming evidence.
type EvidenceKind string

const (
	PriceChangeAbove    EvidenceKind = "price_change_above"
	PriceChangeBelow    EvidenceKind = "price_change_below"
	AbsPriceChangeBelow EvidenceKind = "abs_price_change_below"
	RangeBelow          EvidenceKind = "range_below"
	PriceVsSMAAbove     EvidenceKind = "price_vs_sma_above"
	PriceVsSMABelow     EvidenceKind = "price_vs_sma_below"
	VolumeRatioAbove    EvidenceKind = "volume_ratio_above"
	VolumeTrendAbove    EvidenceKind = "volume_trend_above"
	VolumeTrendBelow    EvidenceKind = "volume_trend_below"
	BelowPriorHigh      EvidenceKind = "below_prior_high"
	AbovePriorLow       EvidenceKind = "above_prior_low"
	NearSupport         EvidenceKind = "near_support"
	NearResistance      EvidenceKind = "near_resistance"
	IndicatorAbove      EvidenceKind = "indicator_above"
	IndicatorBelow      EvidenceKind = "indicator_below"
)

// Evidence is a single condition a rule requires. Threshold is a fraction for price
// measures (0.08 = 8%) and a plain ratio or level otherwise.
type Evidence struct {
	Kind      EvidenceKind `yaml:"kind"`
	Threshold float64      `yaml:"threshold"`
	Indicator string       `yaml:"indicator,omitempty"`
}

// Rule maps a conjunction of evidence to a phase.
type Rule struct {
	Name    string      `yaml:"name"`
	Phase   model.Phase `yaml:"phase"`
	Require []Evidence  `yaml:"require"`
}

// Observation is the evidence measured on one bar.
type Observation struct {
	PriceChange    float64 // window close-to-close change
	PriceRange     float64 // (window high - window low) / first close
	VolumeRatio    float64 // recent mean volume / window mean volume
	VolumeTrend    float64 // second-half mean volume / first-half mean volume
	PriceVsSMA     float64 // close / SMA(lookback) - 1
	BelowPriorHigh bool
	AbovePriorLow  bool
	NearSupport    bool
	NearResistance bool
	Indicators     model.IndicatorSet
}

// Holds reports whether the evidence is present in the observation.
func (e Evidence) Holds(o Observation) bool {
	switch e.Kind {
	case PriceChangeAbove:
		return o.PriceChange > e.Threshold
	case PriceChangeBelow:
		return o.PriceChange < e.Threshold
	case AbsPriceChangeBelow:
		return math.Abs(o.PriceChange) < e.Threshold
	case RangeBelow:
		return o.PriceRange < e.Threshold
	case PriceVsSMAAbove:
		return o.PriceVsSMA > e.Threshold
	case PriceVsSMABelow:
		return o.PriceVsSMA < e.Threshold
	case VolumeRatioAbove:
		return o.VolumeRatio > e.Threshold
	case VolumeTrendAbove:
		return o.VolumeTrend > e.Threshold
	case VolumeTrendBelow:
		return o.VolumeTrend < e.Threshold
	case BelowPriorHigh:
		return o.BelowPriorHigh
	case AbovePriorLow:
		return o.AbovePriorLow
	case NearSupport:
		return o.NearSupport
	case NearResistance:
		return o.NearResistance
	case IndicatorAbove:
		v, ok := o.Indicators.Get(e.Indicator)
		return ok && v > e.Threshold
	case IndicatorBelow:
		v, ok := o.Indicators.Get(e.Indicator)
		return ok && v < e.Threshold
	}
	return false
}

// Matches reports whether every required piece of evidence holds.
func (r Rule) Matches(o Observation) bool {
	for _, e := range r.Require {
		if !e.Holds(o) {
			return false
		}
	}
	return true
}

func (r Rule) validate() error {
	switch r.Phase {
	case model.PhaseAccumulation, model.PhaseMarkup, model.PhaseDistribution, model.PhaseMarkdown, model.PhaseTransitional:
	default:
		return fmt.Errorf("%w: rule %q has unknown phase %q", model.ErrInvalidConfiguration, r.Name, r.Phase)
	}
	if len(r.Require) == 0 {
		return fmt.Errorf("%w: rule %q requires no evidence", model.ErrInvalidConfiguration, r.Name)
	}
	for _, e := range r.Require {
		switch e.Kind {
		case PriceChangeAbove, PriceChangeBelow, AbsPriceChangeBelow, RangeBelow,
			PriceVsSMAAbove, PriceVsSMABelow, VolumeRatioAbove, VolumeTrendAbove, VolumeTrendBelow,
			BelowPriorHigh, AbovePriorLow, NearSupport, NearResistance:
		case IndicatorAbove, IndicatorBelow:
			if e.Indicator == "" {
				return fmt.Errorf("%w: rule %q evidence %s needs an indicator", model.ErrInvalidConfiguration, r.Name, e.Kind)
			}
		default:
			return fmt.Errorf("%w: rule %q has unknown evidence %q", model.ErrInvalidConfiguration, r.Name, e.Kind)
		}
	}
	return nil
}

// DefaultRules is evaluated top to bottom; the first matching rule wins.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "markup", Phase: model.PhaseMarkup, Require: []Evidence{
			{Kind: PriceChangeAbove, Threshold: 0.08},
			{Kind: PriceVsSMAAbove, Threshold: 0.02},
			{Kind: VolumeRatioAbove, Threshold: 1.1},
		}},
		{Name: "markdown", Phase: model.PhaseMarkdown, Require: []Evidence{
			{Kind: PriceChangeBelow, Threshold: -0.08},
			{Kind: PriceVsSMABelow, Threshold: -0.02},
		}},
		{Name: "accumulation", Phase: model.PhaseAccumulation, Require: []Evidence{
			{Kind: AbsPriceChangeBelow, Threshold: 0.05},
			{Kind: RangeBelow, Threshold: 0.15},
			{Kind: VolumeRatioAbove, Threshold: 1.0},
			{Kind: VolumeTrendAbove, Threshold: 1.05},
			{Kind: AbovePriorLow},
			{Kind: IndicatorBelow, Indicator: "RSI_14", Threshold: 60},
		}},
		{Name: "distribution", Phase: model.PhaseDistribution, Require: []Evidence{
			{Kind: AbsPriceChangeBelow, Threshold: 0.05},
			{Kind: RangeBelow, Threshold: 0.15},
			{Kind: VolumeRatioAbove, Threshold: 1.0},
			{Kind: VolumeTrendBelow, Threshold: 0.95},
			{Kind: BelowPriorHigh},
			{Kind: IndicatorAbove, Indicator: "RSI_14", Threshold: 40},
		}},
		{Name: "weak_markup", Phase: model.PhaseMarkup, Require: []Evidence{
			{Kind: PriceChangeAbove, Threshold: 0.03},
			{Kind: PriceVsSMAAbove, Threshold: 0.01},
		}},
		{Name: "weak_markdown", Phase: model.PhaseMarkdown, Require: []Evidence{
			{Kind: PriceChangeBelow, Threshold: -0.03},
			{Kind: PriceVsSMABelow, Threshold: -0.01},
		}},
	}
}

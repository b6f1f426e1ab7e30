package model

// Phase is a classified market regime.
type Phase string

const (
	PhaseAccumulation Phase = "Accumulation"
	PhaseMarkup       Phase = "Markup"
	PhaseDistribution Phase = "Distribution"
	PhaseMarkdown     Phase = "Markdown"
	PhaseTransitional Phase = "Transitional"
)

// Phases lists every phase in reporting order.
var Phases = []Phase{PhaseAccumulation, PhaseMarkup, PhaseDistribution, PhaseMarkdown, PhaseTransitional}

// Bullish reports whether long entries are allowed in this phase.
func (p Phase) Bullish() bool { return p == PhaseAccumulation || p == PhaseMarkup }

// Bearish reports whether long exits are favoured in this phase.
func (p Phase) Bearish() bool { return p == PhaseDistribution || p == PhaseMarkdown }

// PhaseReading is the classifier's output for one bar.
type PhaseReading struct {
	Phase             Phase    `json:"phase"`
	Score             float64  `json:"score"` // 0 ~ 100
	BarsInPhase       int      `json:"bars_in_phase"`
	Rule              string   `json:"rule,omitempty"`
	Support           *float64 `json:"support_level,omitempty"`
	Resistance        *float64 `json:"resistance_level,omitempty"`
	TestingSupport    bool     `json:"testing_support,omitempty"`
	TestingResistance bool     `json:"testing_resistance,omitempty"`
	VolumeRatio       float64  `json:"volume_ratio"`
}

// PhaseAnalysis summarises phase occupancy over a run.
type PhaseAnalysis struct {
	PhaseCounts  map[Phase]int     `json:"phase_counts"`
	AvgDurations map[Phase]float64 `json:"avg_durations"`
	TotalSignals int               `json:"total_signals"`
}

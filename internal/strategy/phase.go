package strategy

import (
	"fmt"
	"strings"

	"WyckoffBacktester/internal/model"
)

// PhaseStrategy buys bullish phases and sells bearish phases once enough indicators agree.
type PhaseStrategy struct {
	cfg Config
}

func (s *PhaseStrategy) Name() string { return NamePhase }

// Required lists every indicator the confirmation table reads.
func (s *PhaseStrategy) Required() []string {
	return []string{s.cfg.rsiName(), s.cfg.trendName(), "MACD_Histogram", s.cfg.volumeName(), "Stoch_K", "Stoch_D"}
}

// Generate evaluates the confirmation table against the bar's phase.
func (s *PhaseStrategy) Generate(in Input) model.Signal {
	checks := make([]model.FactorCheck, 0, len(confirmations))
	var bullish, bearish []string
	for _, check := range confirmations {
		fc := check(in, s.cfg)
		checks = append(checks, fc)
		if fc.Bullish {
			bullish = append(bullish, fc.Commentary)
		}
		if fc.Bearish {
			bearish = append(bearish, fc.Commentary)
		}
	}

	p := in.Phase
	head := fmt.Sprintf("%s phase (score %.0f)", p.Phase, p.Score)
	if p.TestingSupport && p.Support != nil {
		head += fmt.Sprintf(", testing support %.2f", *p.Support)
	}
	if p.TestingResistance && p.Resistance != nil {
		head += fmt.Sprintf(", testing resistance %.2f", *p.Resistance)
	}

	confidence := func(agree int) float64 {
		return 0.5*p.Score/100 + 0.5*float64(agree)/float64(len(checks))
	}
	need := s.cfg.MinConfirmations

	switch {
	case p.Phase.Bullish() && len(bullish) >= need:
		return newSignal(in, model.ActionBuy, confidence(len(bullish)),
			head+": "+strings.Join(bullish, "; "))
	case p.Phase.Bearish() && len(bearish) >= need:
		return newSignal(in, model.ActionSell, confidence(len(bearish)),
			head+": "+strings.Join(bearish, "; "))
	case p.Phase.Bullish():
		return newSignal(in, model.ActionHold, confidence(len(bullish)),
			fmt.Sprintf("%s: %d/%d bullish confirmations, need %d", head, len(bullish), len(checks), need))
	case p.Phase.Bearish():
		return newSignal(in, model.ActionHold, confidence(len(bearish)),
			fmt.Sprintf("%s: %d/%d bearish confirmations, need %d", head, len(bearish), len(checks), need))
	}
	agree := max(len(bullish), len(bearish))
	return newSignal(in, model.ActionHold, confidence(agree), head+": no directional regime")
}

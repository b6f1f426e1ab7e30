package strategy

import (
	"fmt"
	"math"

	"WyckoffBacktester/internal/model"
)

// EMACrossover enters when the close is above the long EMA and exits when it falls below the short EMA.
type EMACrossover struct {
	ShortEMA int
	LongEMA  int
}

func (s *EMACrossover) Name() string { return NameEMACrossover }

func (s *EMACrossover) Required() []string {
	return []string{s.shortName(), s.longName()}
}

func (s *EMACrossover) shortName() string { return fmt.Sprintf("EMA_%d", s.ShortEMA) }
func (s *EMACrossover) longName() string  { return fmt.Sprintf("EMA_%d", s.LongEMA) }

// Generate gives the exit rule precedence over the entry rule.
func (s *EMACrossover) Generate(in Input) model.Signal {
	short, okS := in.Indicators.Get(s.shortName())
	long, okL := in.Indicators.Get(s.longName())
	if !okS || !okL {
		return newSignal(in, model.ActionHold, 0, "EMA values unavailable")
	}
	c := in.Bar.Close
	switch {
	case c < short:
		return newSignal(in, model.ActionSell, distanceConfidence(c, short),
			fmt.Sprintf("Close %.2f below %d EMA %.2f", c, s.ShortEMA, short))
	case c > long:
		return newSignal(in, model.ActionBuy, distanceConfidence(c, long),
			fmt.Sprintf("Close %.2f above %d EMA %.2f", c, s.LongEMA, long))
	}
	return newSignal(in, model.ActionHold, 0,
		fmt.Sprintf("Close %.2f between %d EMA %.2f and %d EMA %.2f", c, s.ShortEMA, short, s.LongEMA, long))
}

func distanceConfidence(price, ema float64) float64 {
	if ema == 0 {
		return 0
	}
	return math.Min(0.9, math.Abs(price-ema)/ema*10)
}

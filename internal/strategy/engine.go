package strategy

import (
	"fmt"

	"WyckoffBacktester/internal/model"
)

const (
	NamePhase        = "phase"
	NameEMACrossover = "ema_crossover"
)

// Input is everything a strategy may look at for one bar.
type Input struct {
	Bar        model.OHLCV
	Indicators model.IndicatorSet
	Prev       model.IndicatorSet // previous bar's indicators, nil on the first bar
	Phase      model.PhaseReading
}

// Strategy turns one bar's context into a signal. Implementations hold no per-run state.
type Strategy interface {
	Name() string
	// Required lists indicators without which the strategy cannot run.
	Required() []string
	Generate(in Input) model.Signal
}

// Config selects and tunes a strategy.
type Config struct {
	Name             string  `yaml:"name"`
	MinConfirmations int     `yaml:"min_confirmations"`
	RSIPeriod        int     `yaml:"rsi_period"`
	RSIOverbought    float64 `yaml:"rsi_overbought"`
	RSIOversold      float64 `yaml:"rsi_oversold"`
	TrendEMA         int     `yaml:"trend_ema"`
	VolumeSMA        int     `yaml:"volume_sma"`
	ShortEMA         int     `yaml:"short_ema"`
	LongEMA          int     `yaml:"long_ema"`
}

// DefaultConfig uses the phase strategy.
func DefaultConfig() Config {
	return Config{
		Name:             NamePhase,
		MinConfirmations: 2,
		RSIPeriod:        14,
		RSIOverbought:    70,
		RSIOversold:      30,
		TrendEMA:         21,
		VolumeSMA:        20,
		ShortEMA:         21,
		LongEMA:          50,
	}
}

// Validate rejects unknown strategy names and nonsensical thresholds.
func (c Config) Validate() error {
	switch c.Name {
	case NamePhase:
		if c.MinConfirmations < 1 || c.MinConfirmations > len(confirmations) {
			return fmt.Errorf("%w: strategy.min_confirmations must be in [1, %d]", model.ErrInvalidConfiguration, len(confirmations))
		}
		if c.RSIOversold >= c.RSIOverbought {
			return fmt.Errorf("%w: strategy.rsi_oversold must be below rsi_overbought", model.ErrInvalidConfiguration)
		}
	case NameEMACrossover:
		if c.ShortEMA <= 0 || c.LongEMA <= 0 {
			return fmt.Errorf("%w: strategy EMA periods must be positive", model.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", model.ErrInvalidConfiguration, c.Name)
	}
	return nil
}

func (c Config) rsiName() string    { return fmt.Sprintf("RSI_%d", c.RSIPeriod) }
func (c Config) trendName() string  { return fmt.Sprintf("EMA_%d", c.TrendEMA) }
func (c Config) volumeName() string { return fmt.Sprintf("Volume_SMA_%d", c.VolumeSMA) }

// New builds the configured strategy.
func New(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == NameEMACrossover {
		return &EMACrossover{ShortEMA: cfg.ShortEMA, LongEMA: cfg.LongEMA}, nil
	}
	return &PhaseStrategy{cfg: cfg}, nil
}

func newSignal(in Input, action model.Action, confidence float64, reasoning string) model.Signal {
	return model.Signal{
		Date:       in.Bar.Time,
		Action:     action,
		Price:      in.Bar.Close,
		Confidence: clamp01(confidence),
		Reasoning:  reasoning,
		Phase:      in.Phase.Phase,
		PhaseScore: in.Phase.Score,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

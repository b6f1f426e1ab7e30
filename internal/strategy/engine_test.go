package strategy

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WyckoffBacktester/internal/model"
)

func bullishInput(phase model.Phase) Input {
	return Input{
		Bar: model.OHLCV{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 103, Low: 99, Close: 102, Volume: 2000},
		Indicators: model.IndicatorSet{
			"RSI_14":         45,
			"EMA_21":         100,
			"MACD_Histogram": 0.4,
			"Volume_SMA_20":  1000,
			"Stoch_K":        60,
			"Stoch_D":        50,
		},
		Prev:  model.IndicatorSet{"RSI_14": 28},
		Phase: model.PhaseReading{Phase: phase, Score: 80},
	}
}

func TestPhaseStrategy_BuyInBullishPhase(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	sig := s.Generate(bullishInput(model.PhaseAccumulation))
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.Equal(t, 102.0, sig.Price)
	assert.Equal(t, model.PhaseAccumulation, sig.Phase)
	// 0.5*0.8 + 0.5*5/5
	assert.InDelta(t, 0.9, sig.Confidence, 1e-9)
	assert.Contains(t, sig.Reasoning, "from oversold")
	assert.Contains(t, sig.Reasoning, "above EMA_21")
}

func TestPhaseStrategy_NoBuyOutsideBullishPhase(t *testing.T) {
	s, _ := New(DefaultConfig())
	for _, p := range []model.Phase{model.PhaseTransitional, model.PhaseDistribution, model.PhaseMarkdown} {
		sig := s.Generate(bullishInput(p))
		assert.Equal(t, model.ActionHold, sig.Action, "phase %s", p)
	}
}

func TestPhaseStrategy_SellInBearishPhase(t *testing.T) {
	s, _ := New(DefaultConfig())
	in := Input{
		Bar: model.OHLCV{Open: 100, Close: 97, Volume: 500},
		Indicators: model.IndicatorSet{
			"RSI_14":         55,
			"EMA_21":         100,
			"MACD_Histogram": -0.3,
			"Volume_SMA_20":  1000,
		},
		Prev:  model.IndicatorSet{"RSI_14": 72},
		Phase: model.PhaseReading{Phase: model.PhaseDistribution, Score: 40},
	}
	sig := s.Generate(in)
	assert.Equal(t, model.ActionSell, sig.Action)
	assert.True(t, strings.HasPrefix(sig.Reasoning, "Distribution phase (score 40)"))
	assert.GreaterOrEqual(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestPhaseStrategy_HoldWithoutConfirmation(t *testing.T) {
	s, _ := New(DefaultConfig())
	in := Input{
		Bar:        model.OHLCV{Open: 100, Close: 99},
		Indicators: model.IndicatorSet{"EMA_21": 100},
		Phase:      model.PhaseReading{Phase: model.PhaseMarkup, Score: 50},
	}
	sig := s.Generate(in)
	assert.Equal(t, model.ActionHold, sig.Action)
	assert.Contains(t, sig.Reasoning, "0/5 bullish confirmations, need 2")
}

func TestPhaseStrategy_Deterministic(t *testing.T) {
	s, _ := New(DefaultConfig())
	a := s.Generate(bullishInput(model.PhaseMarkup))
	b := s.Generate(bullishInput(model.PhaseMarkup))
	assert.Equal(t, a, b)
}

func TestPhaseStrategy_Required(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 9
	s, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"RSI_9", "EMA_21", "MACD_Histogram", "Volume_SMA_20", "Stoch_K", "Stoch_D"}, s.Required())
}

func TestEMACrossover(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = NameEMACrossover
	s, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"EMA_21", "EMA_50"}, s.Required())

	tests := []struct {
		name  string
		close float64
		want  model.Action
	}{
		{"above both", 110, model.ActionBuy},
		{"below short", 98, model.ActionSell},
		{"between", 101, model.ActionHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{
				Bar:        model.OHLCV{Close: tt.close},
				Indicators: model.IndicatorSet{"EMA_21": 100, "EMA_50": 105},
			}
			sig := s.Generate(in)
			assert.Equal(t, tt.want, sig.Action)
			assert.LessOrEqual(t, sig.Confidence, 0.9)
		})
	}

	sig := s.Generate(Input{Bar: model.OHLCV{Close: 100}, Indicators: model.IndicatorSet{}})
	assert.Equal(t, model.ActionHold, sig.Action)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown", func(c *Config) { c.Name = "martingale" }},
		{"zero confirmations", func(c *Config) { c.MinConfirmations = 0 }},
		{"inverted rsi", func(c *Config) { c.RSIOversold = 80 }},
		{"crossover periods", func(c *Config) { c.Name = NameEMACrossover; c.LongEMA = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if _, err := New(cfg); !errors.Is(err, model.ErrInvalidConfiguration) {
				t.Errorf("expected invalid configuration, got %v", err)
			}
		})
	}
}

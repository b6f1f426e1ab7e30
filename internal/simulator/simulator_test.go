package simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WyckoffBacktester/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fixture builds daily bars from closes with an optional constant ATR_14.
func fixture(closes []float64, atr float64) ([]model.OHLCV, []model.IndicatorSet, []*model.Signal) {
	bars := make([]model.OHLCV, len(closes))
	ind := make([]model.IndicatorSet, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
		ind[i] = model.IndicatorSet{}
		if atr > 0 {
			ind[i]["ATR_14"] = atr
		}
	}
	return bars, ind, make([]*model.Signal, len(closes))
}

func signal(bars []model.OHLCV, i int, a model.Action) *model.Signal {
	return &model.Signal{Date: bars[i].Time, Action: a, Price: bars[i].Close, Reasoning: string(a) + " test", Phase: model.PhaseMarkup}
}

func noTrailing() Config {
	cfg := DefaultConfig()
	cfg.ATRMultiplier = 0
	return cfg
}

func TestRun_BuyThenSellSignal(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 101, 105, 110, 108}, 0)
	sigs[1] = signal(bars, 1, model.ActionBuy)
	sigs[3] = signal(bars, 3, model.ActionSell)

	res, err := Run(bars, ind, sigs, noTrailing())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, 940, tr.Shares) // floor(100000*0.95/101)
	require.False(t, tr.Open())
	assert.Equal(t, model.ExitSignal, *tr.ExitReason)
	assert.InDelta(t, 8460.0, *tr.PnL, 1e-6)
	assert.Equal(t, 2, *tr.DurationDays)

	require.Len(t, res.EquityCurve, len(bars))
	assert.InDelta(t, 100000.0, res.EquityCurve[0].Equity, 1e-6)
	assert.InDelta(t, 5060+940*105.0, res.EquityCurve[2].Equity, 1e-6)
	assert.InDelta(t, 108460.0, res.EquityCurve[4].Equity, 1e-6)
	assert.InDelta(t, 108460.0, res.FinalCash, 1e-6)
	assert.Nil(t, res.OpenTrade())
}

func TestRun_TrailingStopTakesPrecedence(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 110, 90}, 2)
	sigs[0] = signal(bars, 0, model.ActionBuy)
	sigs[2] = signal(bars, 2, model.ActionSell)

	res, err := Run(bars, ind, sigs, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	// trailing stop 110-2*2=106 and the 8% stop at 92 both trigger at 90
	assert.Equal(t, model.ExitTrailingStop, *res.Trades[0].ExitReason)
	assert.Equal(t, 90.0, *res.Trades[0].ExitPrice)
}

func TestRun_TrailingStopRatchets(t *testing.T) {
	// the 120 close lifts the stop from 99 to 116
	bars, ind, sigs := fixture([]float64{100, 103, 120, 115}, 2)
	sigs[0] = signal(bars, 0, model.ActionBuy)

	res, err := Run(bars, ind, sigs, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.ExitTrailingStop, *res.Trades[0].ExitReason)
	assert.Equal(t, bars[3].Time, *res.Trades[0].ExitDate)
}

func TestRun_ExitReasons(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		mutate func(*Config)
		want   model.ExitReason
	}{
		{"stop loss", []float64{100, 95, 91}, nil, model.ExitStopLoss},
		{"take profit", []float64{100, 105, 111}, func(c *Config) { c.TakeProfitPercent = 0.10 }, model.ExitTakeProfit},
		{"max duration", []float64{100, 101, 102}, func(c *Config) { c.MaxHoldingDays = 2 }, model.ExitMaxDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, ind, sigs := fixture(tt.closes, 0)
			sigs[0] = signal(bars, 0, model.ActionBuy)
			cfg := noTrailing()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			res, err := Run(bars, ind, sigs, cfg)
			require.NoError(t, err)
			require.Len(t, res.Trades, 1)
			require.False(t, res.Trades[0].Open())
			assert.Equal(t, tt.want, *res.Trades[0].ExitReason)
			assert.Equal(t, bars[2].Time, *res.Trades[0].ExitDate)
		})
	}
}

func TestRun_NoSameBarReentry(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 90, 95}, 0)
	sigs[0] = signal(bars, 0, model.ActionBuy)
	sigs[1] = signal(bars, 1, model.ActionBuy)

	res, err := Run(bars, ind, sigs, noTrailing())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.ExitStopLoss, *res.Trades[0].ExitReason)
	assert.InDelta(t, res.FinalCash, res.EquityCurve[1].Equity, 1e-6)
}

func TestRun_SinglePositionAndOpenAtEnd(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 101, 102, 103}, 0)
	for i := range bars {
		sigs[i] = signal(bars, i, model.ActionBuy)
	}

	res, err := Run(bars, ind, sigs, noTrailing())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	open := res.OpenTrade()
	require.NotNil(t, open)
	assert.Equal(t, bars[0].Time, open.EntryDate)
	assert.Nil(t, open.PnL)

	last := res.EquityCurve[len(res.EquityCurve)-1].Equity
	assert.InDelta(t, res.FinalCash+float64(open.Shares)*103, last, 1e-6)
}

func TestRun_SkipsEntryWithoutShares(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 101}, 0)
	sigs[0] = signal(bars, 0, model.ActionBuy)
	cfg := noTrailing()
	cfg.InitialCapital = 50

	res, err := Run(bars, ind, sigs, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	for _, p := range res.EquityCurve {
		assert.Equal(t, 50.0, p.Equity)
	}
}

func TestRun_EquityNeverNegative(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 60, 20, 5, 1}, 0)
	sigs[0] = signal(bars, 0, model.ActionBuy)
	cfg := noTrailing()
	cfg.Sizing.Mode = SizingFullInvest
	cfg.StopLossPercent = 0.99

	res, err := Run(bars, ind, sigs, cfg)
	require.NoError(t, err)
	for _, p := range res.EquityCurve {
		assert.GreaterOrEqual(t, p.Equity, 0.0)
	}
}

func TestAccount_Shares(t *testing.T) {
	fixed := NewAccount(100000, SizingConfig{Mode: SizingFixedFraction, Fraction: 0.95}, 2)
	assert.Equal(t, 950, fixed.Shares(100, 0, false))

	full := NewAccount(1000, SizingConfig{Mode: SizingFullInvest}, 2)
	assert.Equal(t, 3, full.Shares(300, 0, false))

	risk := NewAccount(100000, SizingConfig{Mode: SizingATRRisk, RiskFraction: 0.01}, 2)
	assert.Equal(t, 250, risk.Shares(100, 2, true)) // 1000 / (2*2)
	assert.Equal(t, 0, risk.Shares(100, 0, false))

	capped := NewAccount(1000, SizingConfig{Mode: SizingATRRisk, RiskFraction: 1}, 2)
	assert.Equal(t, 10, capped.Shares(100, 0.01, true))
}

func TestAccount_EnterTwice(t *testing.T) {
	a := NewAccount(1000, SizingConfig{Mode: SizingFullInvest}, 0)
	sig := model.Signal{Date: day0, Action: model.ActionBuy, Price: 10}
	require.NoError(t, a.Enter(sig, 5))
	assert.Error(t, a.Enter(sig, 5))
	assert.Equal(t, 950.0, a.Cash())
}

func TestRun_Errors(t *testing.T) {
	bars, ind, sigs := fixture([]float64{100, 101}, 0)

	_, err := Run(nil, nil, nil, DefaultConfig())
	assert.True(t, errors.Is(err, model.ErrEmptySeries))

	_, err = Run(bars, ind[:1], sigs, DefaultConfig())
	assert.Error(t, err)

	bad := []func(*Config){
		func(c *Config) { c.InitialCapital = 0 },
		func(c *Config) { c.StopLossPercent = 0 },
		func(c *Config) { c.StopLossPercent = 1 },
		func(c *Config) { c.ATRMultiplier = -1 },
		func(c *Config) { c.TakeProfitPercent = -0.1 },
		func(c *Config) { c.Sizing.Mode = "martingale" },
		func(c *Config) { c.Sizing.Fraction = 1.5 },
		func(c *Config) { c.Sizing.Mode = SizingATRRisk; c.ATRMultiplier = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := Run(bars, ind, sigs, cfg)
		assert.True(t, errors.Is(err, model.ErrInvalidConfiguration), "case %d", i)
	}
}

package strategy

import (
	"fmt"

	"WyckoffBacktester/internal/model"
)

// confirmations is the indicator agreement table consulted by the phase strategy.
var confirmations = []func(in Input, cfg Config) model.FactorCheck{
	checkRSIMomentum,
	checkTrendEMA,
	checkMACDHistogram,
	checkVolume,
	checkStochastic,
}

func unavailable(name string) model.FactorCheck {
	return model.FactorCheck{Name: name, Commentary: name + " unavailable"}
}

// checkRSIMomentum: rising RSI below overbought is bullish, falling RSI above oversold is bearish.
func checkRSIMomentum(in Input, cfg Config) model.FactorCheck {
	name := cfg.rsiName()
	rsi, ok := in.Indicators.Get(name)
	prev, okPrev := in.Prev.Get(name)
	if !ok || !okPrev {
		return unavailable(name)
	}
	fc := model.FactorCheck{Name: name}
	switch {
	case rsi > prev && rsi < cfg.RSIOverbought:
		fc.Bullish = true
		fc.Commentary = fmt.Sprintf("RSI turning up %.1f -> %.1f", prev, rsi)
		if prev <= cfg.RSIOversold {
			fc.Commentary += " from oversold"
		}
	case rsi < prev && rsi > cfg.RSIOversold:
		fc.Bearish = true
		fc.Commentary = fmt.Sprintf("RSI turning down %.1f -> %.1f", prev, rsi)
		if prev >= cfg.RSIOverbought {
			fc.Commentary += " from overbought"
		}
	default:
		fc.Commentary = fmt.Sprintf("RSI=%.1f", rsi)
	}
	return fc
}

// checkTrendEMA: close above the short-term EMA is bullish.
func checkTrendEMA(in Input, cfg Config) model.FactorCheck {
	name := cfg.trendName()
	ema, ok := in.Indicators.Get(name)
	if !ok {
		return unavailable(name)
	}
	c := in.Bar.Close
	fc := model.FactorCheck{Name: name}
	switch {
	case c > ema:
		fc.Bullish = true
		fc.Commentary = fmt.Sprintf("close %.2f above %s %.2f", c, name, ema)
	case c < ema:
		fc.Bearish = true
		fc.Commentary = fmt.Sprintf("close %.2f below %s %.2f", c, name, ema)
	default:
		fc.Commentary = fmt.Sprintf("close at %s", name)
	}
	return fc
}

func checkMACDHistogram(in Input, _ Config) model.FactorCheck {
	h, ok := in.Indicators.Get("MACD_Histogram")
	if !ok {
		return unavailable("MACD_Histogram")
	}
	fc := model.FactorCheck{Name: "MACD_Histogram", Commentary: fmt.Sprintf("MACD histogram %+.3f", h)}
	fc.Bullish = h > 0
	fc.Bearish = h < 0
	return fc
}

// checkVolume: above-average volume confirms whichever way the bar closed.
func checkVolume(in Input, cfg Config) model.FactorCheck {
	name := cfg.volumeName()
	avg, ok := in.Indicators.Get(name)
	if !ok || avg <= 0 {
		return unavailable(name)
	}
	ratio := in.Bar.Volume / avg
	fc := model.FactorCheck{Name: name, Commentary: fmt.Sprintf("volume %.2fx average", ratio)}
	if ratio > 1 {
		fc.Bullish = in.Bar.Close >= in.Bar.Open
		fc.Bearish = in.Bar.Close < in.Bar.Open
	}
	return fc
}

func checkStochastic(in Input, _ Config) model.FactorCheck {
	k, okK := in.Indicators.Get("Stoch_K")
	d, okD := in.Indicators.Get("Stoch_D")
	if !okK || !okD {
		return unavailable("Stoch")
	}
	fc := model.FactorCheck{Name: "Stoch", Commentary: fmt.Sprintf("%%K %.1f vs %%D %.1f", k, d)}
	fc.Bullish = k > d
	fc.Bearish = k < d
	return fc
}

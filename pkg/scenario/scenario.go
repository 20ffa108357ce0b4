// Package scenario derives technical indicators and trading-scenario cards
// from a canonical series. It is a pure consumer: it never touches providers
// or the cache.
package scenario

import (
	"math"

	"github.com/qaliblog/tradology/dataprovider"
)

// Scenario is one trading-scenario card shown on the dashboard.
type Scenario struct {
	Name       string  `json:"name"`
	Bias       string  `json:"bias"` // "long" or "short"
	Entry      float64 `json:"entry"`
	Target     float64 `json:"target"`
	StopLoss   float64 `json:"stop_loss"`
	Confidence float64 `json:"confidence"` // 0..1
}

// Snapshot bundles the indicator readings the narrative layer reports.
type Snapshot struct {
	RSI14      float64    `json:"rsi_14"`
	SMA20      float64    `json:"sma_20"`
	ATR14      float64    `json:"atr_14"`
	Support    float64    `json:"support"`
	Resistance float64    `json:"resistance"`
	Scenarios  []Scenario `json:"scenarios"`
}

// Analyze computes the indicator snapshot and scenario cards for a series.
// Thin series yield neutral readings rather than errors; the dashboard always
// has something to render.
func Analyze(series dataprovider.Series) Snapshot {
	candles := series.Candles
	snap := Snapshot{
		RSI14: RSI(candles, 14),
		SMA20: SMA(candles, 20),
		ATR14: ATR(candles, 14),
	}
	if len(candles) == 0 {
		return snap
	}

	snap.Support, snap.Resistance = recentRange(candles, 20)
	price := series.Quote.Price
	if price <= 0 {
		price = candles[len(candles)-1].Close
	}

	atr := snap.ATR14
	if atr <= 0 {
		atr = price * 0.02
	}

	longConfidence := 0.5
	shortConfidence := 0.5
	switch {
	case snap.RSI14 < 30:
		longConfidence, shortConfidence = 0.7, 0.3
	case snap.RSI14 > 70:
		longConfidence, shortConfidence = 0.3, 0.7
	}
	if series.Synthetic {
		// Illustrative data gets illustrative conviction.
		longConfidence = math.Min(longConfidence, 0.4)
		shortConfidence = math.Min(shortConfidence, 0.4)
	}

	snap.Scenarios = []Scenario{
		{
			Name:       "Breakout continuation",
			Bias:       "long",
			Entry:      snap.Resistance,
			Target:     snap.Resistance + 2*atr,
			StopLoss:   snap.Resistance - atr,
			Confidence: longConfidence,
		},
		{
			Name:       "Support bounce",
			Bias:       "long",
			Entry:      snap.Support,
			Target:     snap.Support + 2*atr,
			StopLoss:   snap.Support - atr,
			Confidence: longConfidence,
		},
		{
			Name:       "Resistance rejection",
			Bias:       "short",
			Entry:      snap.Resistance,
			Target:     snap.Resistance - 2*atr,
			StopLoss:   snap.Resistance + atr,
			Confidence: shortConfidence,
		},
	}
	return snap
}

// recentRange returns the lowest low and highest high over the trailing
// window, the coarse support/resistance levels the cards anchor to.
func recentRange(candles []dataprovider.Candle, window int) (support, resistance float64) {
	start := len(candles) - window
	if start < 0 {
		start = 0
	}
	support = candles[start].Low
	resistance = candles[start].High
	for _, c := range candles[start:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}

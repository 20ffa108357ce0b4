package scenario

import (
	"testing"
	"time"

	"github.com/qaliblog/tradology/dataprovider"
)

func trendingCandles(days int, start, step float64) []dataprovider.Candle {
	first := time.Now().UTC().AddDate(0, 0, -(days - 1))
	out := make([]dataprovider.Candle, days)
	for i := range out {
		c := start + float64(i)*step
		out[i] = dataprovider.Candle{
			Date:  first.AddDate(0, 0, i).Format("2006-01-02"),
			Open:  c - step,
			High:  c + 1,
			Low:   c - step - 1,
			Close: c,
		}
	}
	return out
}

func TestRSIBounds(t *testing.T) {
	rising := trendingCandles(30, 100, 1)
	if got := RSI(rising, 14); got != 100 {
		t.Errorf("RSI of monotone rise = %v, want 100", got)
	}

	falling := trendingCandles(30, 100, -1)
	if got := RSI(falling, 14); got != 0 {
		t.Errorf("RSI of monotone fall = %v, want 0", got)
	}

	if got := RSI(trendingCandles(5, 100, 1), 14); got != 50 {
		t.Errorf("RSI on a thin series = %v, want neutral 50", got)
	}
}

func TestSMA(t *testing.T) {
	candles := trendingCandles(10, 1, 1) // closes 1..10
	if got := SMA(candles, 5); got != 8 {
		t.Errorf("SMA(5) = %v, want mean of 6..10 = 8", got)
	}
	if got := SMA(candles, 20); got != 0 {
		t.Errorf("SMA beyond series length = %v, want 0", got)
	}
}

func TestATRPositiveOnRangedData(t *testing.T) {
	candles := trendingCandles(30, 100, 1)
	if got := ATR(candles, 14); got <= 0 {
		t.Errorf("ATR = %v, want positive on ranged candles", got)
	}
	if got := ATR(candles[:5], 14); got != 0 {
		t.Errorf("ATR on thin series = %v, want 0", got)
	}
}

func TestEMASeries(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	ema := EMASeries(values, 3)
	if len(ema) != len(values) {
		t.Fatalf("len = %d, want %d", len(ema), len(values))
	}
	if ema[0] != 1 {
		t.Errorf("ema[0] = %v, want seeded with first value", ema[0])
	}
	for i := 1; i < len(ema); i++ {
		if ema[i] <= ema[i-1] {
			t.Errorf("EMA of a rising series must rise: ema[%d]=%v <= ema[%d]=%v", i, ema[i], i-1, ema[i-1])
		}
	}
}

func TestAnalyzeProducesThreeScenarios(t *testing.T) {
	series := dataprovider.Series{
		Symbol:  "BTC",
		Candles: trendingCandles(60, 60000, 10),
		Quote:   dataprovider.Quote{Price: 60590},
	}
	snap := Analyze(series)

	if len(snap.Scenarios) != 3 {
		t.Fatalf("got %d scenarios, want 3", len(snap.Scenarios))
	}
	if snap.Support <= 0 || snap.Resistance <= snap.Support {
		t.Errorf("support/resistance = %v/%v", snap.Support, snap.Resistance)
	}
	for _, s := range snap.Scenarios {
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("scenario %q confidence %v out of [0,1]", s.Name, s.Confidence)
		}
		switch s.Bias {
		case "long":
			if s.Target <= s.Entry || s.StopLoss >= s.Entry {
				t.Errorf("long scenario %q levels inconsistent: %+v", s.Name, s)
			}
		case "short":
			if s.Target >= s.Entry || s.StopLoss <= s.Entry {
				t.Errorf("short scenario %q levels inconsistent: %+v", s.Name, s)
			}
		default:
			t.Errorf("scenario %q has unknown bias %q", s.Name, s.Bias)
		}
	}
}

func TestAnalyzeCapsSyntheticConfidence(t *testing.T) {
	series := dataprovider.Series{
		Symbol:    "ZZZ",
		Candles:   trendingCandles(60, 100, 0.5),
		Quote:     dataprovider.Quote{Price: 130},
		Synthetic: true,
	}
	snap := Analyze(series)
	for _, s := range snap.Scenarios {
		if s.Confidence > 0.4 {
			t.Errorf("synthetic scenario %q confidence %v, want capped at 0.4", s.Name, s.Confidence)
		}
	}
}

func TestAnalyzeEmptySeries(t *testing.T) {
	snap := Analyze(dataprovider.Series{Symbol: "BTC"})
	if len(snap.Scenarios) != 0 {
		t.Errorf("empty series yielded %d scenarios, want none", len(snap.Scenarios))
	}
	if snap.RSI14 != 50 {
		t.Errorf("RSI on empty series = %v, want neutral 50", snap.RSI14)
	}
}

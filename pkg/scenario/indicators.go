package scenario

import "github.com/qaliblog/tradology/dataprovider"

// RSI calculates the Relative Strength Index over the trailing period.
func RSI(candles []dataprovider.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50.0 // neutral
	}
	gains, losses := 0.0, 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// SMA returns the simple moving average of closes over the trailing period.
func SMA(candles []dataprovider.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMASeries computes an exponential moving average over all closes.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || period <= 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1.0-k)
	}
	return out
}

// ATR calculates the Average True Range over the trailing period.
func ATR(candles []dataprovider.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		tr := candles[i].High - candles[i].Low
		if hc := abs(candles[i].High - candles[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := abs(candles[i].Low - candles[i-1].Close); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

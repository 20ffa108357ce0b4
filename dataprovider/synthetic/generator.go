// Package synthetic produces a plausible placeholder OHLCV series when no
// provider has usable data. Output is explicitly illustrative; callers flag
// its origin so the UI can say so.
package synthetic

import (
	"math"
	"math/rand"
	"time"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/utilities"
)

// Generator runs a bounded random walk backwards from an anchor price. The
// volatility and trend knobs are deliberately configuration, not constants:
// this data is a placeholder, so nothing about its shape is normative.
type Generator struct {
	cfg utilities.SyntheticConfig
	rng *rand.Rand
}

func NewGenerator(cfg utilities.SyntheticConfig) *Generator {
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewGeneratorWithSeed pins the random source, for tests.
func NewGeneratorWithSeed(cfg utilities.SyntheticConfig, seed int64) *Generator {
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Generate returns days daily candles ending today. Guarantees: the final
// candle's close equals anchorPrice exactly (no drift on the anchor day), and
// every candle satisfies low <= open,close <= high.
func (g *Generator) Generate(anchorPrice float64, days int) []dataprovider.Candle {
	if days <= 0 {
		days = 1
	}
	if anchorPrice <= 0 {
		anchorPrice = 100
	}

	vol := g.cfg.DailyVolatilityPct / 100
	if vol <= 0 {
		vol = 0.025
	}
	bias := g.cfg.TrendBiasPct / 100
	baseVolume := g.cfg.BaseVolume
	if baseVolume <= 0 {
		baseVolume = 1200000
	}

	// Walk closes backwards from the anchor so the final day is exact.
	closes := make([]float64, days)
	closes[days-1] = anchorPrice
	for i := days - 2; i >= 0; i-- {
		step := (g.rng.Float64()*2-1)*vol + bias
		prev := closes[i+1] / (1 + step)
		if prev <= 0 {
			prev = closes[i+1]
		}
		closes[i] = prev
	}

	today := time.Now().UTC()
	start := today.AddDate(0, 0, -(days - 1))

	candles := make([]dataprovider.Candle, days)
	for i := 0; i < days; i++ {
		closePrice := closes[i]
		open := closePrice
		if i > 0 {
			open = closes[i-1]
		} else {
			open = closePrice * (1 + (g.rng.Float64()*2-1)*vol/2)
		}
		high := math.Max(open, closePrice) * (1 + g.rng.Float64()*vol/2)
		low := math.Min(open, closePrice) * (1 - g.rng.Float64()*vol/2)
		volume := baseVolume * (0.5 + g.rng.Float64())

		candles[i] = dataprovider.RepairEnvelope(dataprovider.Candle{
			Date:        start.AddDate(0, 0, i).Format("2006-01-02"),
			Open:        open,
			High:        high,
			Low:         low,
			Close:       closePrice,
			Volume:      volume,
			VolumeLabel: utilities.FormatVolume(volume),
		})
	}
	return candles
}

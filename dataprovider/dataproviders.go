package dataprovider

import (
	"context"
	"sort"
	"time"
)

// Provider is the uniform contract every upstream price source implements.
// Adapters absorb provider-specific parsing and validation; they report
// failure through the error return and never panic. The reconciliation
// pipeline treats any error as "no data" and moves to the next source.
type Provider interface {
	Name() string

	// FetchQuote performs a single round trip to the provider's 24h
	// ticker / simple-price endpoint. Every required numeric field is
	// parsed strictly; if any fails, the whole quote is rejected.
	FetchQuote(ctx context.Context, id string) (*Quote, error)

	// FetchDailyHistory performs a single round trip for up to days daily
	// candles (capped at the provider's own limit). Candles whose numeric
	// fields fail to parse are discarded, and each surviving candle has
	// its high/low envelope repaired before it is returned.
	FetchDailyHistory(ctx context.Context, id string, days int) ([]Candle, error)
}

// Quote is a point-in-time snapshot from one provider. Price is always
// positive on a non-nil quote. MarketCap is nil when the provider does not
// report it; it is never fabricated.
type Quote struct {
	Price            float64  `json:"price"`
	Change24h        float64  `json:"change_24h"`
	ChangePercent24h float64  `json:"change_percent_24h"`
	Volume24h        float64  `json:"volume_24h"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
}

// Candle is one daily OHLCV bar. Date is a calendar day ("2006-01-02"),
// one candle per day, and low <= min(open, close) <= max(open, close) <= high
// holds for every candle handed out by this package's adapters.
type Candle struct {
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	VolumeLabel string  `json:"volume_label"`
}

// Series is the canonical result of a reconciliation run: ordered daily
// candles plus the live quote that was merged into the final candle.
// Synthetic is the side channel letting the UI show a "data unavailable,
// showing illustrative chart" notice.
type Series struct {
	Symbol    string    `json:"symbol"`
	Candles   []Candle  `json:"candles"`
	Quote     Quote     `json:"quote"`
	Source    string    `json:"source"`
	Synthetic bool      `json:"synthetic"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SessionRecord is one row of reconciliation history kept in the store.
type SessionRecord struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	LookbackDays int       `json:"lookback_days"`
	Source       string    `json:"source"`
	Synthetic    bool      `json:"synthetic"`
	CurrentPrice float64   `json:"current_price"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// RepairEnvelope widens a candle's high/low so the OHLC envelope invariant
// holds even when the upstream numbers violate it.
func RepairEnvelope(c Candle) Candle {
	hi := c.Open
	lo := c.Open
	for _, v := range []float64{c.High, c.Low, c.Close} {
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	c.High = hi
	c.Low = lo
	return c
}

// SortCandlesByDate orders candles ascending by calendar day. ISO dates sort
// lexicographically, so plain string comparison is enough.
func SortCandlesByDate(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Date < candles[j].Date
	})
}

// DedupeByDate keeps the last candle seen for each calendar day, preserving
// ascending order. Daily endpoints occasionally return a second, partial
// candle for the current day; last-write-wins matches the providers' own
// "most recent snapshot" semantics.
func DedupeByDate(candles []Candle) []Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Date == c.Date {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

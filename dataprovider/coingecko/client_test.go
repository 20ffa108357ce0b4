package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/utilities"
)

func testConfig(baseURL string) *utilities.CoingeckoConfig {
	return &utilities.CoingeckoConfig{
		BaseURL:           baseURL,
		RateLimitPerSec:   100,
		RateLimitBurst:    100,
		IntradaySpreadPct: 2.0,
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(testConfig(server.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFetchQuote(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids param = %q, want bitcoin", got)
		}
		fmt.Fprint(w, `{
			"bitcoin": {
				"usd": 64000,
				"usd_24h_change": 2.0,
				"usd_24h_vol": 35000000000,
				"usd_market_cap": 1260000000000,
				"last_updated_at": 1717286400
			}
		}`)
	}))

	quote, err := client.FetchQuote(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if quote.Price != 64000 {
		t.Errorf("Price = %v, want 64000", quote.Price)
	}
	if quote.ChangePercent24h != 2.0 {
		t.Errorf("ChangePercent24h = %v, want 2.0", quote.ChangePercent24h)
	}
	// Absolute change is derived from the percentage: 64000 - 64000/1.02.
	wantChange := 64000 - 64000/1.02
	if diff := quote.Change24h - wantChange; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Change24h = %v, want %v", quote.Change24h, wantChange)
	}
	if quote.MarketCap == nil || *quote.MarketCap != 1.26e12 {
		t.Errorf("MarketCap = %v, want 1.26e12", quote.MarketCap)
	}
}

func TestFetchQuoteNullFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"obscurecoin": {"usd": 0.0042, "usd_24h_change": null, "usd_24h_vol": null, "usd_market_cap": null}}`)
	}))

	quote, err := client.FetchQuote(context.Background(), "obscurecoin")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if quote.Price != 0.0042 {
		t.Errorf("Price = %v", quote.Price)
	}
	if quote.MarketCap != nil {
		t.Error("null market cap must stay absent, not become zero")
	}
	if quote.Change24h != 0 || quote.Volume24h != 0 {
		t.Error("null optional fields should read as zero values")
	}
}

func TestFetchQuoteRejectsMissingEntryOrPrice(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"bitcoin": {"usd": null}}`,
		`{"bitcoin": {"usd": 0}}`,
		`{"bitcoin": {"usd": -3}}`,
	}
	for _, payload := range payloads {
		payload := payload
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, payload)
		}))
		if _, err := client.FetchQuote(context.Background(), "bitcoin"); err == nil {
			t.Errorf("payload %s: want error, got nil", payload)
		}
	}
}

func TestFetchDailyHistory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "daily" {
			t.Errorf("interval = %q, want daily", got)
		}
		fmt.Fprint(w, `{
			"prices": [
				[1717200000000, 63000],
				[1717286400000, 63500],
				[1717372800000, 64000]
			],
			"total_volumes": [
				[1717200000000, 30000000000],
				[1717286400000, 31000000000],
				[1717372800000, 32000000000]
			]
		}`)
	}))

	candles, err := client.FetchDailyHistory(context.Background(), "bitcoin", 30)
	if err != nil {
		t.Fatalf("FetchDailyHistory: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3", len(candles))
	}

	wantDates := []string{"2024-06-01", "2024-06-02", "2024-06-03"}
	wantCloses := []float64{63000, 63500, 64000}
	for i, c := range candles {
		if c.Date != wantDates[i] {
			t.Errorf("candle %d date = %q, want %q", i, c.Date, wantDates[i])
		}
		// Closes are provider ground truth and must never be adjusted by
		// the intraday approximation.
		if c.Close != wantCloses[i] {
			t.Errorf("candle %d close = %v, want %v", i, c.Close, wantCloses[i])
		}
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
			t.Errorf("candle %d violates envelope: %+v", i, c)
		}
	}

	// From the second candle on, open continues from the previous close.
	if candles[1].Open != 63000 || candles[2].Open != 63500 {
		t.Errorf("opens = %v, %v; want continuation from previous closes", candles[1].Open, candles[2].Open)
	}
	if candles[2].Volume != 32000000000 {
		t.Errorf("volume = %v, want matched by date", candles[2].Volume)
	}
}

func TestFetchDailyHistorySkipsBadPoints(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"prices": [
				[1717200000000, 63000],
				[1717286400000, 0],
				[1717372800000, -5],
				[1717459200000, 64000]
			],
			"total_volumes": []
		}`)
	}))

	candles, err := client.FetchDailyHistory(context.Background(), "bitcoin", 30)
	if err != nil {
		t.Fatalf("FetchDailyHistory: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want non-positive closes skipped", len(candles))
	}
}

func TestFetchDailyHistoryErrorSurfaces(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "coin not found"}`, http.StatusNotFound)
	}))
	if _, err := client.FetchDailyHistory(context.Background(), "nope", 30); err == nil {
		t.Fatal("want error for unknown id, got nil")
	}
}

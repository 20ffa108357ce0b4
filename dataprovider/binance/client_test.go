package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/utilities"
)

func testConfig(baseURL string) *utilities.BinanceConfig {
	return &utilities.BinanceConfig{
		BaseURL:         baseURL,
		RateLimitPerSec: 100,
		RateLimitBurst:  100,
		MaxKlineLimit:   1000,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(testConfig(server.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func TestFetchQuote(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ticker/24hr" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol param = %q, want BTCUSDT", got)
		}
		fmt.Fprint(w, `{
			"symbol": "BTCUSDT",
			"lastPrice": "64231.50",
			"priceChange": "1200.10",
			"priceChangePercent": "1.90",
			"volume": "23456.7",
			"quoteVolume": "1500000000"
		}`)
	}))

	quote, err := client.FetchQuote(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if quote.Price != 64231.50 {
		t.Errorf("Price = %v, want 64231.50", quote.Price)
	}
	if quote.Change24h != 1200.10 || quote.ChangePercent24h != 1.90 {
		t.Errorf("change fields = %v / %v", quote.Change24h, quote.ChangePercent24h)
	}
	if quote.Volume24h != 23456.7 {
		t.Errorf("Volume24h = %v", quote.Volume24h)
	}
	if quote.MarketCap != nil {
		t.Error("exchange ticker must not fabricate a market cap")
	}
}

func TestFetchQuoteRejectsMalformedFields(t *testing.T) {
	payloads := []string{
		`{"lastPrice": "not-a-number", "priceChange": "1", "priceChangePercent": "1", "volume": "1"}`,
		`{"lastPrice": "0", "priceChange": "1", "priceChangePercent": "1", "volume": "1"}`,
		`{"lastPrice": "-5", "priceChange": "1", "priceChangePercent": "1", "volume": "1"}`,
		`{"lastPrice": "100", "priceChange": "", "priceChangePercent": "1", "volume": "1"}`,
		`{"lastPrice": "100", "priceChange": "1", "priceChangePercent": "1", "volume": "NaN"}`,
	}
	for _, payload := range payloads {
		payload := payload
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, payload)
		}))
		if _, err := client.FetchQuote(context.Background(), "BTCUSDT"); err == nil {
			t.Errorf("payload %s: want whole-quote rejection, got nil error", payload)
		}
	}
}

func TestFetchDailyHistory(t *testing.T) {
	// Three daily klines, out of order and with one duplicated day; the
	// second 2024-06-02 row must win.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/klines" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q, want 1d", got)
		}
		fmt.Fprint(w, `[
			[1717372800000, "101", "103", "100", "102", "9000", 0],
			[1717286400000, "100", "102", "99", "101", "8000", 0],
			[1717372800000, "101", "104", "100", "103", "9500", 0]
		]`)
	}))

	candles, err := client.FetchDailyHistory(context.Background(), "BTCUSDT", 30)
	if err != nil {
		t.Fatalf("FetchDailyHistory: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 after dedupe", len(candles))
	}
	if candles[0].Date != "2024-06-02" || candles[1].Date != "2024-06-03" {
		t.Errorf("dates = %q, %q", candles[0].Date, candles[1].Date)
	}
	if candles[1].Close != 103 {
		t.Errorf("duplicate day close = %v, want last-wins 103", candles[1].Close)
	}
	if candles[0].VolumeLabel != "8.0K" {
		t.Errorf("VolumeLabel = %q, want 8.0K", candles[0].VolumeLabel)
	}
}

func TestFetchDailyHistoryDiscardsMalformedRows(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			[1717286400000, "100", "102", "99", "101", "8000", 0],
			[1717372800000, "bogus", "103", "100", "102", "9000", 0],
			["not-a-timestamp", "101", "103", "100", "102", "9000", 0],
			[1717459200000]
		]`)
	}))

	candles, err := client.FetchDailyHistory(context.Background(), "BTCUSDT", 30)
	if err != nil {
		t.Fatalf("FetchDailyHistory: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want only the well-formed row", len(candles))
	}
	if candles[0].Date != "2024-06-02" {
		t.Errorf("Date = %q", candles[0].Date)
	}
}

func TestFetchDailyHistoryRepairsEnvelope(t *testing.T) {
	// Upstream high below the close; the candle must come back repaired,
	// not dropped.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[1717286400000, "100", "100.5", "99", "104", "8000", 0]]`)
	}))

	candles, err := client.FetchDailyHistory(context.Background(), "BTCUSDT", 30)
	if err != nil {
		t.Fatalf("FetchDailyHistory: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	c := candles[0]
	if c.High != 104 {
		t.Errorf("High = %v, want widened to 104", c.High)
	}
	if c.Close != 104 || c.Open != 100 {
		t.Error("repair must not move open or close")
	}
}

func TestFetchDailyHistoryErrorSurfaces(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": -1121, "msg": "Invalid symbol."}`, http.StatusBadRequest)
	}))
	if _, err := client.FetchDailyHistory(context.Background(), "NOPEUSDT", 30); err == nil {
		t.Fatal("want error for unknown symbol, got nil")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(nil, zerolog.Nop()); err == nil {
		t.Error("nil config accepted")
	}
	if _, err := NewClient(&utilities.BinanceConfig{}, zerolog.Nop()); err == nil {
		t.Error("empty base_url accepted")
	}
}

package utilities

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseStrictFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"64231.5", 64231.5, false},
		{"-0.0001", -0.0001, false},
		{"0", 0, false},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"-Inf", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"1,234", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStrictFloat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrictFloat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseStrictFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFloatFromInterface(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    float64
		wantErr bool
	}{
		{"42.5", 42.5, false},
		{float64(7), 7, false},
		{int(3), 3, false},
		{int64(9), 9, false},
		{json.Number("1.25"), 1.25, false},
		{nil, 0, true},
		{true, 0, true},
		{[]string{"x"}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFloatFromInterface(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFloatFromInterface(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFloatFromInterface(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{950000, "950.0K"},
		{1234567, "1.2M"},
		{2500000000, "2.5B"},
		{1.3e12, "1.3T"},
	}
	for _, tt := range tests {
		if got := FormatVolume(tt.in); got != tt.want {
			t.Errorf("FormatVolume(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeNumericText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$64,231.50", "64231.50"},
		{"64 231.50", "64231.50"},
		{"+2.35", "+2.35"},
		{"-1.2", "-1.2"},
		{"64231.50 USD", "64231.50"},
		{" 1,000", "1000"},
	}
	for _, tt := range tests {
		if got := NormalizeNumericText(tt.in); got != tt.want {
			t.Errorf("NormalizeNumericText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDoJSONRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"value": 7}`)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Value int `json:"value"`
	}
	if err := DoJSONRequest(server.Client(), req, 2, 10*time.Millisecond, &out); err != nil {
		t.Fatalf("DoJSONRequest failed: %v", err)
	}
	if out.Value != 7 {
		t.Errorf("decoded value = %d, want 7", out.Value)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestDoJSONRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such symbol", http.StatusBadRequest)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]interface{}
	if err := DoJSONRequest(server.Client(), req, 3, 10*time.Millisecond, &out); err == nil {
		t.Fatal("expected error on 400")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server called %d times for a 400, want 1", got)
	}
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()

	if cfg.Binance == nil || cfg.Binance.BaseURL == "" {
		t.Error("exchange defaults not applied")
	}
	if cfg.Coingecko == nil || cfg.Coingecko.BaseURL == "" {
		t.Error("aggregator defaults not applied")
	}
	if cfg.Cache.QuoteTTLSec <= 0 || cfg.Cache.HistoryTTLSec <= cfg.Cache.QuoteTTLSec {
		t.Errorf("cache TTL defaults wrong: quote=%d history=%d", cfg.Cache.QuoteTTLSec, cfg.Cache.HistoryTTLSec)
	}
	if cfg.Pipeline.DefaultLookbackDays <= 0 || cfg.Pipeline.DefaultAnchorPrice <= 0 {
		t.Error("pipeline defaults not applied")
	}
	if cfg.Server.Addr == "" {
		t.Error("server defaults not applied")
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &AppConfig{
		Cache:  CacheConfig{QuoteTTLSec: 15, HistoryTTLSec: 600},
		Server: ServerConfig{Addr: ":9999"},
	}
	cfg.ApplyDefaults()

	if cfg.Cache.QuoteTTLSec != 15 || cfg.Cache.HistoryTTLSec != 600 {
		t.Error("explicit cache TTLs overwritten")
	}
	if cfg.Server.Addr != ":9999" {
		t.Error("explicit server addr overwritten")
	}
}

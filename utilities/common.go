package utilities

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// --- Configuration ---

// AppConfig is the root configuration structure, holding all other config sections.
type AppConfig struct {
	AppName       string              `mapstructure:"app_name"`
	Version       string              `mapstructure:"version"`
	Environment   string              `mapstructure:"environment"`
	Binance       *BinanceConfig      `mapstructure:"binance"`
	Coingecko     *CoingeckoConfig    `mapstructure:"coingecko"`
	Cache         CacheConfig         `mapstructure:"cache"`
	DB            DatabaseConfig      `mapstructure:"database"`
	LLM           *LLMConfig          `mapstructure:"llm"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Sentiment     *SentimentConfig    `mapstructure:"sentiment"`
	Server        ServerConfig        `mapstructure:"server"`
	Synthetic     SyntheticConfig     `mapstructure:"synthetic"`
}

// BinanceConfig holds settings for the primary exchange data provider.
type BinanceConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySec     int    `mapstructure:"retry_delay_sec"`
	RateLimitPerSec   int    `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int    `mapstructure:"rate_limit_burst"`
	MaxKlineLimit     int    `mapstructure:"max_kline_limit"`
}

// CoingeckoConfig holds settings for the aggregator data provider.
type CoingeckoConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryDelaySec     int     `mapstructure:"retry_delay_sec"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
	IntradaySpreadPct float64 `mapstructure:"intraday_spread_pct"`
}

// CacheConfig controls the in-memory response cache TTLs.
type CacheConfig struct {
	QuoteTTLSec   int `mapstructure:"quote_ttl_sec"`
	HistoryTTLSec int `mapstructure:"history_ttl_sec"`
}

// DatabaseConfig holds settings for the SQLite archive and session store.
type DatabaseConfig struct {
	DBPath string `mapstructure:"database_path"`
}

// LLMConfig holds settings for the narrative analysis provider.
// APIKey may be overridden by the TRADOLOGY_LLM_API_KEY environment variable.
type LLMConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	Model             string `mapstructure:"model"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	MaxTokens         int    `mapstructure:"max_tokens"`
}

// LoggingConfig holds settings related to logging.
type LoggingConfig struct {
	Level           string `mapstructure:"level"`
	Console         bool   `mapstructure:"console"`
	LogToFile       bool   `mapstructure:"log_to_file"`
	LogFilePath     string `mapstructure:"log_file_path"`
	MaxSizeMB       int    `mapstructure:"max_size_mb"`
	MaxBackups      int    `mapstructure:"max_backups"`
	MaxAgeDays      int    `mapstructure:"max_age_days"`
	CompressBackups bool   `mapstructure:"compress_backups"`
}

// NotificationsConfig holds settings for the degradation webhook.
type NotificationsConfig struct {
	WebhookURL        string `mapstructure:"webhook_url"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

// PipelineConfig holds reconciliation pipeline parameters.
type PipelineConfig struct {
	DefaultLookbackDays int                `mapstructure:"default_lookback_days"`
	MaxLookbackDays     int                `mapstructure:"max_lookback_days"`
	AnchorPrices        map[string]float64 `mapstructure:"anchor_prices"`
	DefaultAnchorPrice  float64            `mapstructure:"default_anchor_price"`
}

// SentimentConfig holds settings for the Fear & Greed index source.
type SentimentConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

// ServerConfig holds the local HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SyntheticConfig holds tunables for the synthetic series generator.
// These are placeholders for illustrative data, not normative market-model
// parameters, so they live in config rather than code.
type SyntheticConfig struct {
	DailyVolatilityPct float64 `mapstructure:"daily_volatility_pct"`
	TrendBiasPct       float64 `mapstructure:"trend_bias_pct"`
	BaseVolume         float64 `mapstructure:"base_volume"`
}

// ApplyDefaults fills zero-valued sections with workable defaults so a partial
// config file still yields a runnable app.
func (c *AppConfig) ApplyDefaults() {
	if c.Binance == nil {
		c.Binance = &BinanceConfig{}
	}
	if c.Binance.BaseURL == "" {
		c.Binance.BaseURL = "https://api.binance.com/api/v3"
	}
	if c.Binance.RequestTimeoutSec <= 0 {
		c.Binance.RequestTimeoutSec = 10
	}
	if c.Binance.RateLimitPerSec <= 0 {
		c.Binance.RateLimitPerSec = 5
	}
	if c.Binance.RateLimitBurst <= 0 {
		c.Binance.RateLimitBurst = 5
	}
	if c.Binance.MaxKlineLimit <= 0 {
		c.Binance.MaxKlineLimit = 1000
	}
	if c.Coingecko == nil {
		c.Coingecko = &CoingeckoConfig{}
	}
	if c.Coingecko.BaseURL == "" {
		c.Coingecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Coingecko.RequestTimeoutSec <= 0 {
		c.Coingecko.RequestTimeoutSec = 25
	}
	if c.Coingecko.RateLimitPerSec <= 0 {
		c.Coingecko.RateLimitPerSec = 1.0
	}
	if c.Coingecko.RateLimitBurst <= 0 {
		c.Coingecko.RateLimitBurst = 1
	}
	if c.Coingecko.IntradaySpreadPct <= 0 {
		c.Coingecko.IntradaySpreadPct = 2.0
	}
	if c.Cache.QuoteTTLSec <= 0 {
		c.Cache.QuoteTTLSec = 120
	}
	if c.Cache.HistoryTTLSec <= 0 {
		c.Cache.HistoryTTLSec = 1800
	}
	if c.Pipeline.DefaultLookbackDays <= 0 {
		c.Pipeline.DefaultLookbackDays = 30
	}
	if c.Pipeline.MaxLookbackDays <= 0 {
		c.Pipeline.MaxLookbackDays = 365
	}
	if c.Pipeline.DefaultAnchorPrice <= 0 {
		c.Pipeline.DefaultAnchorPrice = 100.0
	}
	if c.Synthetic.DailyVolatilityPct <= 0 {
		c.Synthetic.DailyVolatilityPct = 2.5
	}
	if c.Synthetic.BaseVolume <= 0 {
		c.Synthetic.BaseVolume = 1200000
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// --- HTTP plumbing ---

// DoJSONRequest performs an HTTP request, retries on transient errors, and
// unmarshals a JSON response.
func DoJSONRequest(client *http.Client, req *http.Request, maxRetries int, retryDelay time.Duration, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			bodyReader, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("retry %d: could not reset request body: %w", attempt, err)
			}
			r = req.Clone(req.Context())
			r.Body = bodyReader
		}

		resp, err := client.Do(r)
		if err != nil {
			lastErr = err
			time.Sleep(retryDelay)
			continue
		}

		if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error %d %s", resp.StatusCode, resp.Status)
			time.Sleep(retryDelay)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(snippet))
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode JSON response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("all retries failed: %w", lastErr)
}

// --- Parsing and formatting helpers ---

// ParseStrictFloat parses a string into a finite float64. Unlike
// strconv.ParseFloat alone, it rejects NaN and infinities so adapters never
// hand partially-valid numbers downstream.
func ParseStrictFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value: %s", s)
	}
	return v, nil
}

// ParseFloatFromInterface parses a float64 from the loosely-typed values JSON
// APIs return (numbers, numeric strings, json.Number).
func ParseFloatFromInterface(val interface{}) (float64, error) {
	switch v := val.(type) {
	case string:
		return ParseStrictFloat(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite value: %v", v)
		}
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return ParseStrictFloat(v.String())
	default:
		return 0, fmt.Errorf("unsupported type for float conversion: %T", v)
	}
}

// FormatVolume renders a raw volume as the compact magnitude label the
// dashboard shows, e.g. 1234567 -> "1.2M", 950000 -> "950.0K".
func FormatVolume(v float64) string {
	av := math.Abs(v)
	switch {
	case av >= 1e12:
		return fmt.Sprintf("%.1fT", v/1e12)
	case av >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case av >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case av >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// NormalizeNumericText strips thousands separators and currency clutter from
// scraped price text, e.g. "$64,231.50" -> "64231.50".
func NormalizeNumericText(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			out = append(out, r)
		case r == ',', r == ' ', r == '\u00a0', r == '$':
			// separator or currency clutter, drop it
		default:
			// any other rune ends the numeric run once digits were seen
			if len(out) > 0 {
				return string(out)
			}
		}
	}
	return string(out)
}

// MinInt returns the minimum of two integers.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Package coingecko implements the aggregator provider adapter against a
// CoinGecko-shaped simple-price / market-chart REST API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/utilities"
)

const ProviderName = "coingecko"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	cfg        *utilities.CoingeckoConfig
	rng        *rand.Rand
}

// simplePriceEntry mirrors one value of GET /simple/price. Fields the
// aggregator has no data for arrive as null and stay nil here.
type simplePriceEntry struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
	USD24hVol    *float64 `json:"usd_24h_vol"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	LastUpdated  int64    `json:"last_updated_at"`
}

// marketChartResponse mirrors GET /coins/{id}/market_chart. The aggregator
// exposes no true OHLC at daily granularity, only [ts, close] and [ts, vol].
type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

func NewClient(cfg *utilities.CoingeckoConfig, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("coingecko client: config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("coingecko client: base_url is required")
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		logger:     logger.With().Str("provider", ProviderName).Logger(),
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) request(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request for %s: %w", endpoint, err)
	}
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("x_cg_pro_api_key", c.apiKey)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")

	retryDelay := 2 * time.Second
	if c.cfg.RetryDelaySec > 0 {
		retryDelay = time.Duration(c.cfg.RetryDelaySec) * time.Second
	}
	c.logger.Debug().Str("url", req.URL.String()).Msg("aggregator request")
	return utilities.DoJSONRequest(c.httpClient, req, c.cfg.MaxRetries, retryDelay, result)
}

// FetchQuote implements dataprovider.Provider via GET /simple/price.
func (c *Client) FetchQuote(ctx context.Context, id string) (*dataprovider.Quote, error) {
	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")
	params.Set("include_24hr_vol", "true")
	params.Set("include_market_cap", "true")
	params.Set("include_last_updated_at", "true")

	var raw map[string]simplePriceEntry
	if err := c.request(ctx, "/simple/price", params, &raw); err != nil {
		return nil, fmt.Errorf("simple price request for %s: %w", id, err)
	}

	entry, ok := raw[id]
	if !ok {
		return nil, fmt.Errorf("simple price: no entry for id %s", id)
	}
	if entry.USD == nil || *entry.USD <= 0 || math.IsNaN(*entry.USD) {
		return nil, fmt.Errorf("simple price %s: missing or invalid usd price", id)
	}

	quote := &dataprovider.Quote{
		Price:     *entry.USD,
		MarketCap: entry.USDMarketCap,
	}
	if entry.USD24hChange != nil && !math.IsNaN(*entry.USD24hChange) {
		quote.ChangePercent24h = *entry.USD24hChange
		// The aggregator reports the 24h move as a percentage only;
		// derive the absolute change from it.
		if denom := 1 + *entry.USD24hChange/100; denom != 0 {
			quote.Change24h = quote.Price - quote.Price/denom
		}
	}
	if entry.USD24hVol != nil && !math.IsNaN(*entry.USD24hVol) {
		quote.Volume24h = *entry.USD24hVol
	}
	return quote, nil
}

// FetchDailyHistory implements dataprovider.Provider via GET /market_chart.
// The endpoint yields only a daily close and volume, so the open/high/low are
// approximated with a small bounded spread around the provider-sourced close.
// This is distinct from last-resort synthetic generation: here every close is
// ground truth.
func (c *Client) FetchDailyHistory(ctx context.Context, id string, days int) ([]dataprovider.Candle, error) {
	if days <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))
	params.Set("interval", "daily")

	var raw marketChartResponse
	endpoint := fmt.Sprintf("/coins/%s/market_chart", url.PathEscape(id))
	if err := c.request(ctx, endpoint, params, &raw); err != nil {
		return nil, fmt.Errorf("market chart request for %s: %w", id, err)
	}

	volumeByDate := make(map[string]float64, len(raw.TotalVolumes))
	for _, point := range raw.TotalVolumes {
		date := time.UnixMilli(int64(point[0])).UTC().Format("2006-01-02")
		volumeByDate[date] = point[1]
	}

	spread := c.cfg.IntradaySpreadPct / 100
	candles := make([]dataprovider.Candle, 0, len(raw.Prices))
	var prevClose float64
	for _, point := range raw.Prices {
		closePrice := point[1]
		if closePrice <= 0 || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
			continue
		}
		date := time.UnixMilli(int64(point[0])).UTC().Format("2006-01-02")

		open := prevClose
		if open <= 0 {
			open = closePrice * (1 + (c.rng.Float64()-0.5)*spread)
		}
		high := math.Max(open, closePrice) * (1 + c.rng.Float64()*spread/2)
		low := math.Min(open, closePrice) * (1 - c.rng.Float64()*spread/2)
		volume := volumeByDate[date]

		candles = append(candles, dataprovider.RepairEnvelope(dataprovider.Candle{
			Date:        date,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       closePrice,
			Volume:      volume,
			VolumeLabel: utilities.FormatVolume(volume),
		}))
		prevClose = closePrice
	}

	dataprovider.SortCandlesByDate(candles)
	return dataprovider.DedupeByDate(candles), nil
}

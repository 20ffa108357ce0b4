// Package binance implements the primary exchange provider adapter against a
// Binance-shaped klines / 24hr-ticker REST API.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/utilities"
)

const ProviderName = "binance"

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	cfg        *utilities.BinanceConfig
}

// ticker24hResponse mirrors GET /ticker/24hr. All numeric fields arrive as
// strings and are parsed strictly.
type ticker24hResponse struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

// klineRow mirrors one entry of GET /klines: a fixed-position array
// [openTime, open, high, low, close, volume, closeTime, ...] where the price
// and volume fields are strings.
type klineRow = []interface{}

func NewClient(cfg *utilities.BinanceConfig, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("binance client: config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("binance client: base_url is required")
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		logger:     logger.With().Str("provider", ProviderName).Logger(),
		cfg:        cfg,
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
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Accept", "application/json")

	retryDelay := 2 * time.Second
	if c.cfg.RetryDelaySec > 0 {
		retryDelay = time.Duration(c.cfg.RetryDelaySec) * time.Second
	}
	c.logger.Debug().Str("url", req.URL.String()).Msg("exchange request")
	return utilities.DoJSONRequest(c.httpClient, req, c.cfg.MaxRetries, retryDelay, result)
}

// FetchQuote implements dataprovider.Provider. The whole quote is rejected if
// any required field fails strict parsing.
func (c *Client) FetchQuote(ctx context.Context, pair string) (*dataprovider.Quote, error) {
	params := url.Values{}
	params.Set("symbol", pair)

	var raw ticker24hResponse
	if err := c.request(ctx, "/ticker/24hr", params, &raw); err != nil {
		return nil, fmt.Errorf("ticker request for %s: %w", pair, err)
	}

	price, err := utilities.ParseStrictFloat(raw.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: bad lastPrice %q: %w", pair, raw.LastPrice, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("ticker %s: non-positive lastPrice %q", pair, raw.LastPrice)
	}
	change, err := utilities.ParseStrictFloat(raw.PriceChange)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: bad priceChange %q: %w", pair, raw.PriceChange, err)
	}
	changePct, err := utilities.ParseStrictFloat(raw.PriceChangePercent)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: bad priceChangePercent %q: %w", pair, raw.PriceChangePercent, err)
	}
	volume, err := utilities.ParseStrictFloat(raw.Volume)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: bad volume %q: %w", pair, raw.Volume, err)
	}

	return &dataprovider.Quote{
		Price:            price,
		Change24h:        change,
		ChangePercent24h: changePct,
		Volume24h:        volume,
		// The exchange ticker carries no market cap; leave it absent.
	}, nil
}

// FetchDailyHistory implements dataprovider.Provider. Candles with
// unparseable fields are discarded, not nulled.
func (c *Client) FetchDailyHistory(ctx context.Context, pair string, days int) ([]dataprovider.Candle, error) {
	if days <= 0 {
		return nil, nil
	}
	limit := utilities.MinInt(days, c.cfg.MaxKlineLimit)

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", "1d")
	params.Set("limit", strconv.Itoa(limit))

	var rows []klineRow
	if err := c.request(ctx, "/klines", params, &rows); err != nil {
		return nil, fmt.Errorf("klines request for %s: %w", pair, err)
	}

	candles := make([]dataprovider.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			c.logger.Debug().Err(err).Str("pair", pair).Msg("discarding malformed kline")
			continue
		}
		candles = append(candles, dataprovider.RepairEnvelope(candle))
	}

	dataprovider.SortCandlesByDate(candles)
	return dataprovider.DedupeByDate(candles), nil
}

func parseKline(row klineRow) (dataprovider.Candle, error) {
	if len(row) < 6 {
		return dataprovider.Candle{}, fmt.Errorf("kline row has %d fields, want >= 6", len(row))
	}

	openTime, err := utilities.ParseFloatFromInterface(row[0])
	if err != nil {
		return dataprovider.Candle{}, fmt.Errorf("openTime: %w", err)
	}

	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		v, err := utilities.ParseFloatFromInterface(row[i])
		if err != nil {
			return dataprovider.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = v
	}

	return dataprovider.Candle{
		Date:        time.UnixMilli(int64(openTime)).UTC().Format("2006-01-02"),
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
		VolumeLabel: utilities.FormatVolume(vals[4]),
	}, nil
}

package dataprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/utilities"
)

// SentimentIndex is the market-wide Fear & Greed reading the narrative layer
// folds into its prompt. Data is sourced from an alternative.me-shaped API.
type SentimentIndex struct {
	Value     int    `json:"value"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
}

type SentimentProvider interface {
	GetSentimentIndex(ctx context.Context) (SentimentIndex, error)
}

type fngDataPoint struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
}

type fngResponse struct {
	Data     []fngDataPoint `json:"data"`
	Metadata struct {
		Error *string `json:"error,omitempty"`
	} `json:"metadata"`
}

// SentimentClient fetches the Fear & Greed index.
type SentimentClient struct {
	httpClient *http.Client
	logger     zerolog.Logger
	apiURL     string
}

func NewSentimentClient(cfg *utilities.SentimentConfig, logger zerolog.Logger) (*SentimentClient, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("sentiment client: base_url is required")
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SentimentClient{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("provider", "sentiment").Logger(),
		apiURL:     cfg.BaseURL + "/fng/?limit=1&format=json",
	}, nil
}

func (c *SentimentClient) GetSentimentIndex(ctx context.Context) (SentimentIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return SentimentIndex{}, fmt.Errorf("sentiment: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var raw fngResponse
	if err := utilities.DoJSONRequest(c.httpClient, req, 1, 2*time.Second, &raw); err != nil {
		return SentimentIndex{}, fmt.Errorf("sentiment: request failed: %w", err)
	}
	if raw.Metadata.Error != nil {
		return SentimentIndex{}, fmt.Errorf("sentiment: API error: %s", *raw.Metadata.Error)
	}
	if len(raw.Data) == 0 {
		return SentimentIndex{}, errors.New("sentiment: no data returned")
	}

	dp := raw.Data[0]
	value, err := strconv.Atoi(dp.Value)
	if err != nil {
		return SentimentIndex{}, fmt.Errorf("sentiment: invalid value %q: %w", dp.Value, err)
	}
	ts, err := strconv.ParseInt(dp.Timestamp, 10, 64)
	if err != nil {
		return SentimentIndex{}, fmt.Errorf("sentiment: invalid timestamp %q: %w", dp.Timestamp, err)
	}
	return SentimentIndex{Value: value, Level: dp.ValueClassification, Timestamp: ts}, nil
}

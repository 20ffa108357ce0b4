// Package narrative asks an LLM for a prose read of a canonical series. It
// is a downstream consumer of the pipeline: its failures surface here, at its
// own boundary, and never affect the data path.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/pkg/scenario"
	"github.com/qaliblog/tradology/utilities"
)

// APIKeyEnv overrides the configured key, so a user-entered key never has to
// live in the config file.
const APIKeyEnv = "TRADOLOGY_LLM_API_KEY"

const systemPrompt = "You are a market analyst. Given daily OHLCV data, " +
	"technical indicator readings, and candidate trading scenarios, write a " +
	"concise narrative analysis: trend, momentum, key levels, and which " +
	"scenario looks most credible. Plain prose, no financial advice disclaimers."

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	maxTok  int
	logger  zerolog.Logger
}

func NewClient(cfg *utilities.LLMConfig, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("narrative client: config cannot be nil")
	}
	apiKey := cfg.APIKey
	if env := os.Getenv(APIKeyEnv); env != "" {
		apiKey = env
	}
	if apiKey == "" {
		return nil, errors.New("narrative client: no API key configured")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTok := cfg.MaxTokens
	if maxTok <= 0 {
		maxTok = 1024
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
		maxTok:  maxTok,
		logger:  logger.With().Str("component", "narrative").Logger(),
	}, nil
}

// Analyze requests a narrative for the series. Synthetic-origin data is
// disclosed to the model so the analysis is framed as illustrative.
func (c *Client) Analyze(ctx context.Context, series dataprovider.Series, snap scenario.Snapshot, sentiment *dataprovider.SentimentIndex) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(series, snap, sentiment)
	c.logger.Debug().Str("symbol", series.Symbol).Int("prompt_len", len(prompt)).Msg("requesting narrative analysis")

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTok,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative analysis for %s: %w", series.Symbol, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("narrative analysis for %s: empty response", series.Symbol)
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(series dataprovider.Series, snap scenario.Snapshot, sentiment *dataprovider.SentimentIndex) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Symbol: %s\n", series.Symbol)
	fmt.Fprintf(&b, "Current price: %.4f (24h change %.2f%%)\n", series.Quote.Price, series.Quote.ChangePercent24h)
	if series.Synthetic {
		b.WriteString("NOTE: no real market data was available; the series below is synthetic and illustrative only.\n")
	}
	fmt.Fprintf(&b, "Indicators: RSI14=%.1f SMA20=%.4f ATR14=%.4f support=%.4f resistance=%.4f\n",
		snap.RSI14, snap.SMA20, snap.ATR14, snap.Support, snap.Resistance)
	if sentiment != nil {
		fmt.Fprintf(&b, "Market sentiment (Fear & Greed): %d (%s)\n", sentiment.Value, sentiment.Level)
	}

	b.WriteString("Scenarios under consideration:\n")
	for _, s := range snap.Scenarios {
		fmt.Fprintf(&b, "- %s (%s): entry %.4f, target %.4f, stop %.4f, confidence %.0f%%\n",
			s.Name, s.Bias, s.Entry, s.Target, s.StopLoss, s.Confidence*100)
	}

	// Tail of the series is what matters for the read; cap the rows so the
	// prompt stays small.
	candles := series.Candles
	if len(candles) > 30 {
		candles = candles[len(candles)-30:]
	}
	b.WriteString("Recent daily candles (date open high low close volume):\n")
	for _, c := range candles {
		fmt.Fprintf(&b, "%s %.4f %.4f %.4f %.4f %s\n", c.Date, c.Open, c.High, c.Low, c.Close, c.VolumeLabel)
	}
	return b.String()
}

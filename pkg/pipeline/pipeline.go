// Package pipeline reconciles price data from multiple upstream providers
// into a single canonical series. It is the only component that decides which
// source to trust, and its public contract is total: every request yields a
// well-formed series, degrading through fallbacks rather than failing.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/dataprovider/scraper"
	"github.com/qaliblog/tradology/dataprovider/synthetic"
	"github.com/qaliblog/tradology/pkg/mapper"
	"github.com/qaliblog/tradology/utilities"
)

// Request is one reconciliation ask. PageHTML, when non-empty, enables the
// scraper as a last networked-provider slot.
type Request struct {
	Symbol       string
	LookbackDays int
	PageHTML     string
}

// Notifier is the optional side channel told when a request degrades to
// synthetic data.
type Notifier interface {
	NotifyDegraded(ctx context.Context, symbol, reason string)
}

// Archive is the optional persistent candle store consulted before synthetic
// fallback and written through after real fetches.
type Archive interface {
	SaveCandles(provider, symbol string, candles []dataprovider.Candle) error
	GetCandles(symbol string, limit int) ([]dataprovider.Candle, error)
	RecordSession(rec dataprovider.SessionRecord) error
}

// slot binds a provider to the function choosing its native id from the
// mapped identifiers. Priority is the order of the slice: data, not control
// flow.
type slot struct {
	provider dataprovider.Provider
	pickID   func(ids *mapper.ProviderIDs) string
}

type Pipeline struct {
	cfg       utilities.PipelineConfig
	logger    zerolog.Logger
	cache     *ResponseCache
	mapper    *mapper.SymbolMapper
	generator *synthetic.Generator
	slots     []slot
	archive   Archive
	notifier  Notifier
	group     singleflight.Group
	now       func() time.Time
}

// Option configures optional collaborators.
type Option func(*Pipeline)

func WithArchive(a Archive) Option   { return func(p *Pipeline) { p.archive = a } }
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// New builds a pipeline over an explicit provider priority order:
// exchange first, then aggregator. The scraper slot is appended per-request
// when HTML is supplied. All lookup structures are injected; nothing here is
// ambient package state.
func New(
	cfg utilities.PipelineConfig,
	logger zerolog.Logger,
	cache *ResponseCache,
	symbolMapper *mapper.SymbolMapper,
	generator *synthetic.Generator,
	exchange dataprovider.Provider,
	aggregator dataprovider.Provider,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		cache:     cache,
		mapper:    symbolMapper,
		generator: generator,
		now:       time.Now,
	}
	if exchange != nil {
		p.slots = append(p.slots, slot{
			provider: exchange,
			pickID:   func(ids *mapper.ProviderIDs) string { return ids.ExchangePair },
		})
	}
	if aggregator != nil {
		p.slots = append(p.slots, slot{
			provider: aggregator,
			pickID:   func(ids *mapper.ProviderIDs) string { return ids.AggregatorID },
		})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetCanonicalSeries returns a usable series for any input. It never returns
// an error: provider failures are absorbed, and the result degrades through
// archived candles and finally synthetic generation. Concurrent calls for the
// same (symbol, lookback) share one upstream fetch chain.
func (p *Pipeline) GetCanonicalSeries(ctx context.Context, req Request) dataprovider.Series {
	symbol := strings.TrimSpace(req.Symbol)
	days := req.LookbackDays
	if days <= 0 {
		days = p.cfg.DefaultLookbackDays
	}
	if p.cfg.MaxLookbackDays > 0 && days > p.cfg.MaxLookbackDays {
		days = p.cfg.MaxLookbackDays
	}

	key := CacheKey(symbol, days)
	if series, ok := p.cache.Get(key); ok {
		p.logger.Debug().Str("symbol", symbol).Int("days", days).Msg("cache hit")
		return series
	}

	// singleflight guarantees at most one in-flight fetch chain per key;
	// a rapid double submission from the UI rides along on the first.
	result, _, _ := p.group.Do(key, func() (interface{}, error) {
		if series, ok := p.cache.Get(key); ok {
			return series, nil
		}
		series := p.fetch(ctx, symbol, days, req.PageHTML)
		p.cache.Set(key, series)
		p.recordSession(series, days)
		return series, nil
	})
	return result.(dataprovider.Series)
}

// fetch runs the provider priority chain and the fallback ladder.
func (p *Pipeline) fetch(ctx context.Context, symbol string, days int, pageHTML string) dataprovider.Series {
	slots := p.slots
	if pageHTML != "" {
		if sc, err := scraper.New(pageHTML, p.logger); err == nil {
			slots = append(append([]slot{}, slots...), slot{
				provider: sc,
				pickID:   func(*mapper.ProviderIDs) string { return "" },
			})
		} else {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("supplied HTML not parseable, skipping scraper slot")
		}
	}

	ids := p.mapper.Map(symbol)
	var bestQuote *dataprovider.Quote
	bestQuoteSource := ""

	if ids != nil {
		for _, s := range slots {
			id := s.pickID(ids)
			if id == "" && s.provider.Name() != scraper.ProviderName {
				continue
			}

			quote, history := p.fetchConcurrently(ctx, s.provider, id, days)
			if quote != nil && bestQuote == nil {
				bestQuote = quote
				bestQuoteSource = s.provider.Name()
			}
			if len(history) == 0 {
				p.logger.Debug().Str("symbol", symbol).Str("provider", s.provider.Name()).Msg("no history from provider, falling through")
				continue
			}

			// First provider with history wins outright; no series
			// merging across providers, only the quote overwrite at
			// the tail.
			series := dataprovider.Series{
				Symbol:    symbol,
				Candles:   trimToLookback(history, days),
				Source:    s.provider.Name(),
				FetchedAt: p.now().UTC(),
			}
			if bestQuote != nil {
				series.Quote = *bestQuote
				series.Candles = mergeLiveQuote(series.Candles, bestQuote.Price)
			} else if n := len(series.Candles); n > 0 {
				series.Quote = dataprovider.Quote{Price: series.Candles[n-1].Close}
			}
			p.archiveCandles(series)
			p.logger.Info().
				Str("symbol", symbol).
				Str("source", series.Source).
				Str("quote_source", bestQuoteSource).
				Int("candles", len(series.Candles)).
				Msg("reconciled series")
			return series
		}
	} else {
		p.logger.Warn().Str("symbol", symbol).Msg("symbol mapping failed, no provider can be queried")
	}

	return p.degrade(ctx, symbol, days, bestQuote)
}

// fetchConcurrently issues the quote and history calls for one provider at
// the same time; they are independent round trips and neither completion
// order is assumed. Errors are absorbed here, at the adapter boundary.
func (p *Pipeline) fetchConcurrently(ctx context.Context, provider dataprovider.Provider, id string, days int) (*dataprovider.Quote, []dataprovider.Candle) {
	var (
		quote   *dataprovider.Quote
		history []dataprovider.Candle
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		q, err := provider.FetchQuote(ctx, id)
		if err != nil {
			p.logger.Debug().Err(err).Str("provider", provider.Name()).Msg("quote fetch failed")
			return
		}
		quote = q
	}()

	h, err := provider.FetchDailyHistory(ctx, id, days)
	if err != nil {
		p.logger.Debug().Err(err).Str("provider", provider.Name()).Msg("history fetch failed")
	} else {
		history = h
	}
	<-done
	return quote, history
}

// degrade is the no-live-history ladder: archived candles first, then
// synthetic generation anchored at the best quote we saw, else at the
// heuristic default. The synthetic generator always succeeds given a finite
// anchor, so this path is total.
func (p *Pipeline) degrade(ctx context.Context, symbol string, days int, bestQuote *dataprovider.Quote) dataprovider.Series {
	if p.archive != nil {
		archived, err := p.archive.GetCandles(symbol, days)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("archive lookup failed")
		}
		if len(archived) > 0 {
			series := dataprovider.Series{
				Symbol:    symbol,
				Candles:   archived,
				Source:    "archive",
				FetchedAt: p.now().UTC(),
			}
			if bestQuote != nil {
				series.Quote = *bestQuote
				series.Candles = mergeLiveQuote(series.Candles, bestQuote.Price)
			} else if n := len(archived); n > 0 {
				series.Quote = dataprovider.Quote{Price: archived[n-1].Close}
			}
			p.logger.Info().Str("symbol", symbol).Int("candles", len(archived)).Msg("serving archived candles, live providers unavailable")
			return series
		}
	}

	anchor := p.anchorPrice(symbol, bestQuote)
	candles := p.generator.Generate(anchor, days)
	series := dataprovider.Series{
		Symbol:    symbol,
		Candles:   candles,
		Quote:     dataprovider.Quote{Price: anchor},
		Source:    "synthetic",
		Synthetic: true,
		FetchedAt: p.now().UTC(),
	}
	if bestQuote != nil {
		series.Quote = *bestQuote
	}
	p.logger.Warn().Str("symbol", symbol).Float64("anchor", anchor).Msg("all providers exhausted, generating synthetic series")
	if p.notifier != nil {
		p.notifier.NotifyDegraded(ctx, symbol, "no provider returned history; serving synthetic data")
	}
	return series
}

// anchorPrice picks the seed for synthetic generation: a live quote if any
// provider produced one, a coarse per-ticker hint otherwise, and finally the
// hard-coded default, which keeps total exhaustion unreachable.
func (p *Pipeline) anchorPrice(symbol string, bestQuote *dataprovider.Quote) float64 {
	if bestQuote != nil && bestQuote.Price > 0 {
		return bestQuote.Price
	}
	if hinted, ok := mapper.AnchorPriceHint(symbol); ok {
		return hinted
	}
	if override, ok := p.cfg.AnchorPrices[strings.ToUpper(strings.TrimSpace(symbol))]; ok && override > 0 {
		return override
	}
	return p.cfg.DefaultAnchorPrice
}

func (p *Pipeline) archiveCandles(series dataprovider.Series) {
	if p.archive == nil || series.Synthetic {
		return
	}
	if err := p.archive.SaveCandles(series.Source, series.Symbol, series.Candles); err != nil {
		p.logger.Warn().Err(err).Str("symbol", series.Symbol).Msg("failed to archive candles")
	}
}

func (p *Pipeline) recordSession(series dataprovider.Series, days int) {
	if p.archive == nil {
		return
	}
	err := p.archive.RecordSession(dataprovider.SessionRecord{
		Symbol:       series.Symbol,
		LookbackDays: days,
		Source:       series.Source,
		Synthetic:    series.Synthetic,
		CurrentPrice: series.Quote.Price,
		FetchedAt:    series.FetchedAt,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("symbol", series.Symbol).Msg("failed to record session")
	}
}

// mergeLiveQuote overwrites the final candle with the live price: close
// becomes the price and the high/low envelope widens to keep it inside. This
// is the single point where live and historical data meet.
func mergeLiveQuote(candles []dataprovider.Candle, price float64) []dataprovider.Candle {
	if len(candles) == 0 || price <= 0 {
		return candles
	}
	last := candles[len(candles)-1]
	last.Close = price
	if price > last.High {
		last.High = price
	}
	if price < last.Low {
		last.Low = price
	}
	candles[len(candles)-1] = last
	return candles
}

func trimToLookback(candles []dataprovider.Candle, days int) []dataprovider.Candle {
	if days > 0 && len(candles) > days {
		return candles[len(candles)-days:]
	}
	return candles
}

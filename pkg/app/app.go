// Package app wires configuration, providers, the reconciliation pipeline,
// and the HTTP API into a running application.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/dataprovider/binance"
	"github.com/qaliblog/tradology/dataprovider/coingecko"
	"github.com/qaliblog/tradology/dataprovider/synthetic"
	"github.com/qaliblog/tradology/notification/webhook"
	"github.com/qaliblog/tradology/pkg/mapper"
	"github.com/qaliblog/tradology/pkg/narrative"
	"github.com/qaliblog/tradology/pkg/pipeline"
	"github.com/qaliblog/tradology/pkg/scenario"
	"github.com/qaliblog/tradology/utilities"
	"github.com/qaliblog/tradology/web"
)

// sentimentRefreshInterval is how often the background updater re-reads the
// Fear & Greed index. The index itself only changes daily.
const sentimentRefreshInterval = time.Hour

// App owns every long-lived component and is the controller behind the HTTP
// handlers.
type App struct {
	cfg       *utilities.AppConfig
	logger    zerolog.Logger
	store     *dataprovider.SQLiteStore
	pipe      *pipeline.Pipeline
	narrator  *narrative.Client
	sentiment dataprovider.SentimentProvider

	sentimentMu sync.RWMutex
	lastReading *dataprovider.SentimentIndex
}

// Run builds the application from config and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *utilities.AppConfig, logger zerolog.Logger) error {
	cfg.ApplyDefaults()

	a := &App{cfg: cfg, logger: logger}

	var pipelineOpts []pipeline.Option

	if cfg.DB.DBPath != "" {
		store, err := dataprovider.NewSQLiteStore(cfg.DB)
		if err != nil {
			return fmt.Errorf("app: open archive store: %w", err)
		}
		defer store.Close()
		a.store = store
		pipelineOpts = append(pipelineOpts, pipeline.WithArchive(store))
	} else {
		logger.Warn().Msg("no database_path configured; archive fallback disabled")
	}

	if notifier := webhook.NewClient(cfg.Notifications, logger); notifier != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithNotifier(notifier))
	}

	exchange, err := binance.NewClient(cfg.Binance, logger)
	if err != nil {
		return fmt.Errorf("app: init exchange provider: %w", err)
	}
	aggregator, err := coingecko.NewClient(cfg.Coingecko, logger)
	if err != nil {
		return fmt.Errorf("app: init aggregator provider: %w", err)
	}

	cache := pipeline.NewResponseCache(
		time.Duration(cfg.Cache.QuoteTTLSec)*time.Second,
		time.Duration(cfg.Cache.HistoryTTLSec)*time.Second,
	)

	a.pipe = pipeline.New(
		cfg.Pipeline,
		logger,
		cache,
		mapper.NewSymbolMapper(),
		synthetic.NewGenerator(cfg.Synthetic),
		exchange,
		aggregator,
		pipelineOpts...,
	)

	if cfg.LLM != nil {
		narrator, err := narrative.NewClient(cfg.LLM, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("narrative layer disabled")
		} else {
			a.narrator = narrator
		}
	}

	if cfg.Sentiment != nil {
		client, err := dataprovider.NewSentimentClient(cfg.Sentiment, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("sentiment source disabled")
		} else {
			a.sentiment = client
			go a.runSentimentUpdater(ctx)
		}
	}

	web.StartServer(ctx, a)

	logger.Info().Str("version", cfg.Version).Msg("application started")
	<-ctx.Done()
	logger.Info().Msg("application stopping")
	return nil
}

// runSentimentUpdater keeps the cached Fear & Greed reading fresh. The
// reading is advisory context for the narrative layer, so fetch failures are
// logged and the stale value kept.
func (a *App) runSentimentUpdater(ctx context.Context) {
	fetch := func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		reading, err := a.sentiment.GetSentimentIndex(fetchCtx)
		if err != nil {
			a.logger.Warn().Err(err).Msg("sentiment refresh failed")
			return
		}
		a.sentimentMu.Lock()
		a.lastReading = &reading
		a.sentimentMu.Unlock()
		a.logger.Debug().Int("value", reading.Value).Str("level", reading.Level).Msg("sentiment updated")
	}

	fetch()
	ticker := time.NewTicker(sentimentRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetch()
		}
	}
}

func (a *App) currentSentiment() *dataprovider.SentimentIndex {
	a.sentimentMu.RLock()
	defer a.sentimentMu.RUnlock()
	return a.lastReading
}

// --- web.AppController ---

func (a *App) GetSeries(ctx context.Context, req pipeline.Request) dataprovider.Series {
	return a.pipe.GetCanonicalSeries(ctx, req)
}

func (a *App) AnalyzeSeries(_ context.Context, series dataprovider.Series) scenario.Snapshot {
	return scenario.Analyze(series)
}

// Narrate returns the LLM read of the series, or "" when no narrative layer
// is configured.
func (a *App) Narrate(ctx context.Context, series dataprovider.Series, snap scenario.Snapshot) (string, error) {
	if a.narrator == nil {
		return "", nil
	}
	return a.narrator.Analyze(ctx, series, snap, a.currentSentiment())
}

func (a *App) RecentSessions(limit int) ([]dataprovider.SessionRecord, error) {
	if a.store == nil {
		return []dataprovider.SessionRecord{}, nil
	}
	return a.store.RecentSessions(limit)
}

func (a *App) Logger() zerolog.Logger { return a.logger }

func (a *App) GetConfig() *utilities.AppConfig { return a.cfg }

package web

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/pkg/pipeline"
	"github.com/qaliblog/tradology/pkg/scenario"
	"github.com/qaliblog/tradology/utilities"
)

// AppController is the surface the HTTP handlers need from the application.
// Keeping it an interface lets handler tests run against a stub instead of a
// fully wired app.
type AppController interface {
	GetSeries(ctx context.Context, req pipeline.Request) dataprovider.Series
	AnalyzeSeries(ctx context.Context, series dataprovider.Series) scenario.Snapshot
	Narrate(ctx context.Context, series dataprovider.Series, snap scenario.Snapshot) (string, error)
	RecentSessions(limit int) ([]dataprovider.SessionRecord, error)
	Logger() zerolog.Logger
	GetConfig() *utilities.AppConfig
}

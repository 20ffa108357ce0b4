package web

import (
	"context"
	"net/http"
	"time"
)

// StartServer brings up the local API in a goroutine and wires graceful
// shutdown to the supplied context.
func StartServer(ctx context.Context, controller AppController) {
	addr := controller.GetConfig().Server.Addr

	mux := http.NewServeMux()
	mux.HandleFunc("/api/series", seriesHandler(controller))
	mux.HandleFunc("/api/scrape", scrapeHandler(controller))
	mux.HandleFunc("/api/analysis", analysisHandler(controller))
	mux.HandleFunc("/api/sessions", sessionsHandler(controller))
	mux.HandleFunc("/healthz", healthHandler(controller))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger := controller.Logger()

	go func() {
		logger.Info().Str("addr", addr).Msg("starting API server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server graceful shutdown failed")
		}
	}()
}

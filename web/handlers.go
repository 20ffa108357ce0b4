package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/qaliblog/tradology/pkg/pipeline"
)

// maxScrapeBodyBytes bounds the pasted-HTML upload size.
const maxScrapeBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseSeriesParams(r *http.Request) (symbol string, days int, ok bool) {
	symbol = r.URL.Query().Get("symbol")
	if symbol == "" {
		return "", 0, false
	}
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}
	return symbol, days, true
}

// seriesHandler serves GET /api/series?symbol=&days=. The pipeline contract
// is total, so this handler has no data-error path, only bad-request.
func seriesHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol, days, ok := parseSeriesParams(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol query parameter is required"})
			return
		}
		series := controller.GetSeries(r.Context(), pipeline.Request{Symbol: symbol, LookbackDays: days})
		writeJSON(w, http.StatusOK, series)
	}
}

// scrapeHandler serves POST /api/scrape?symbol=&days= with the chart page's
// HTML as the request body, enabling the scraper provider slot.
func scrapeHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
			return
		}
		symbol, days, ok := parseSeriesParams(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol query parameter is required"})
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxScrapeBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
			return
		}
		series := controller.GetSeries(r.Context(), pipeline.Request{
			Symbol:       symbol,
			LookbackDays: days,
			PageHTML:     string(body),
		})
		writeJSON(w, http.StatusOK, series)
	}
}

// analysisHandler serves GET /api/analysis?symbol=&days=: the canonical
// series plus indicator snapshot, scenario cards, and the LLM's prose read
// when the narrative layer is configured. Narrative failure degrades to an
// empty field, not an error: the series itself is always served.
func analysisHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol, days, ok := parseSeriesParams(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol query parameter is required"})
			return
		}
		series := controller.GetSeries(r.Context(), pipeline.Request{Symbol: symbol, LookbackDays: days})
		snap := controller.AnalyzeSeries(r.Context(), series)

		narrativeText, err := controller.Narrate(r.Context(), series, snap)
		if err != nil {
			logger := controller.Logger()
			logger.Warn().Err(err).Str("symbol", symbol).Msg("narrative unavailable")
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"series":    series,
			"analysis":  snap,
			"narrative": narrativeText,
		})
	}
}

// sessionsHandler serves GET /api/sessions.
func sessionsHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		records, err := controller.RecentSessions(limit)
		if err != nil {
			logger := controller.Logger()
			logger.Error().Err(err).Msg("session history lookup failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session history unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func healthHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": controller.GetConfig().Version,
		})
	}
}

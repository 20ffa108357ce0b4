// Package scraper implements the provider adapter for user-supplied chart-page
// HTML. There is no network call: both operations are pure parsing over the
// document handed in at construction time.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/dataprovider"
	"github.com/qaliblog/tradology/utilities"
)

const ProviderName = "scraper"

// priceSelectors are tried in order; chart sites mark the headline price with
// one of a handful of well-known attributes or classes.
var priceSelectors = []string{
	`[data-testid="instrument-price-last"]`,
	`[data-role="price"]`,
	`.instrument-price`,
	`.price-value`,
	`.last-price`,
	`span.price`,
}

var changeSelectors = []string{
	`[data-testid="instrument-price-change-percent"]`,
	`[data-role="change-percent"]`,
	`.price-change-percent`,
	`.change-percent`,
}

var volumeSelectors = []string{
	`[data-testid="instrument-volume"]`,
	`[data-role="volume"]`,
	`.volume-value`,
	`.volume`,
}

// Regex fallbacks for pages where no selector strategy matches. Patterns run
// against the visible text in order; the first parseable hit wins.
var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:last|current)\s*price[:\s]*\$?\s*([\d][\d,]*\.?\d*)`),
		regexp.MustCompile(`(?i)price[:\s]*\$\s*([\d][\d,]*\.?\d*)`),
		regexp.MustCompile(`\$\s*([\d][\d,]*\.\d+)`),
	}
	changePattern = regexp.MustCompile(`([+-]?\d+\.?\d*)\s*%`)
	volumePattern = regexp.MustCompile(`(?i)vol(?:ume)?[:\s]*\$?\s*([\d][\d,]*\.?\d*\s*[KMBT]?)`)
	// Chart pages often embed the plotted series as JSON pairs in a script
	// tag: [[1700000000000, 64231.5], ...]
	seriesPattern = regexp.MustCompile(`\[\s*\[\s*\d{12,13}\s*,\s*[\d.]+\s*\](?:\s*,\s*\[\s*\d{12,13}\s*,\s*[\d.]+\s*\])+\s*\]`)
)

// Scraper parses one saved HTML document. It satisfies dataprovider.Provider
// so the pipeline can slot it into the same priority chain as the network
// adapters; the id argument is ignored since the document is fixed.
type Scraper struct {
	doc     *goquery.Document
	rawText string
	logger  zerolog.Logger
}

// New parses the supplied HTML. A document that fails to parse at all yields
// an error here so the pipeline can skip the scraper slot entirely.
func New(html string, logger zerolog.Logger) (*Scraper, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("scraper: empty document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse document: %w", err)
	}
	return &Scraper{
		doc:     doc,
		rawText: html,
		logger:  logger.With().Str("provider", ProviderName).Logger(),
	}, nil
}

func (s *Scraper) Name() string { return ProviderName }

// FetchQuote extracts price, 24h change, and volume from the document,
// attempting selector strategies first and regex patterns second. If no
// strategy locates a price anywhere, the quote is rejected outright; the
// scraper never invents a base price.
func (s *Scraper) FetchQuote(_ context.Context, _ string) (*dataprovider.Quote, error) {
	price, ok := s.extractPrice()
	if !ok {
		return nil, fmt.Errorf("scraper: no price found in document")
	}

	quote := &dataprovider.Quote{Price: price}

	if pct, ok := s.extractBySelectorsOrPattern(changeSelectors, changePattern); ok {
		quote.ChangePercent24h = pct
		if denom := 1 + pct/100; denom != 0 {
			quote.Change24h = price - price/denom
		}
	}
	if vol, ok := s.extractVolume(); ok {
		quote.Volume24h = vol
	}
	return quote, nil
}

// FetchDailyHistory scans script tags for an embedded [timestamp, price]
// series and folds it into daily candles, approximating the intraday range
// around each close. Pages without embedded data yield an empty slice.
func (s *Scraper) FetchDailyHistory(_ context.Context, _ string, days int) ([]dataprovider.Candle, error) {
	if days <= 0 {
		return nil, nil
	}

	var pairs [][2]float64
	s.doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		match := seriesPattern.FindString(sel.Text())
		if match == "" {
			return true
		}
		if err := json.Unmarshal([]byte(match), &pairs); err != nil {
			pairs = nil
			return true
		}
		return false
	})
	if len(pairs) == 0 {
		return nil, nil
	}

	candles := make([]dataprovider.Candle, 0, len(pairs))
	var prevClose float64
	for _, p := range pairs {
		closePrice := p[1]
		if closePrice <= 0 || math.IsNaN(closePrice) {
			continue
		}
		open := prevClose
		if open <= 0 {
			open = closePrice
		}
		candles = append(candles, dataprovider.RepairEnvelope(dataprovider.Candle{
			Date:        time.UnixMilli(int64(p[0])).UTC().Format("2006-01-02"),
			Open:        open,
			High:        math.Max(open, closePrice),
			Low:         math.Min(open, closePrice),
			Close:       closePrice,
			VolumeLabel: utilities.FormatVolume(0),
		}))
		prevClose = closePrice
	}

	dataprovider.SortCandlesByDate(candles)
	candles = dataprovider.DedupeByDate(candles)
	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	return candles, nil
}

func (s *Scraper) extractPrice() (float64, bool) {
	for _, selector := range priceSelectors {
		text := strings.TrimSpace(s.doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if v, err := utilities.ParseStrictFloat(utilities.NormalizeNumericText(text)); err == nil && v > 0 {
			return v, true
		}
		s.logger.Debug().Str("selector", selector).Str("text", text).Msg("selector hit did not parse, trying next strategy")
	}

	bodyText := s.doc.Find("body").Text()
	for _, pattern := range pricePatterns {
		for _, m := range pattern.FindAllStringSubmatch(bodyText, 5) {
			if v, err := utilities.ParseStrictFloat(utilities.NormalizeNumericText(m[1])); err == nil && v > 0 {
				return v, true
			}
		}
	}
	return 0, false
}

func (s *Scraper) extractBySelectorsOrPattern(selectors []string, pattern *regexp.Regexp) (float64, bool) {
	for _, selector := range selectors {
		text := strings.TrimSpace(s.doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			if v, err := utilities.ParseStrictFloat(utilities.NormalizeNumericText(m[1])); err == nil {
				return v, true
			}
		}
		if v, err := utilities.ParseStrictFloat(utilities.NormalizeNumericText(text)); err == nil {
			return v, true
		}
	}
	if m := pattern.FindStringSubmatch(s.doc.Find("body").Text()); len(m) > 1 {
		if v, err := utilities.ParseStrictFloat(utilities.NormalizeNumericText(m[1])); err == nil {
			return v, true
		}
	}
	return 0, false
}

func (s *Scraper) extractVolume() (float64, bool) {
	for _, selector := range volumeSelectors {
		text := strings.TrimSpace(s.doc.Find(selector).First().Text())
		if v, ok := parseMagnitude(text); ok {
			return v, true
		}
	}
	if m := volumePattern.FindStringSubmatch(s.doc.Find("body").Text()); len(m) > 1 {
		return parseMagnitude(m[1])
	}
	return 0, false
}

// parseMagnitude reads "1.2M"-style volume text back into a raw number.
func parseMagnitude(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(text, "T"):
		mult, text = 1e12, strings.TrimSuffix(text, "T")
	case strings.HasSuffix(text, "B"):
		mult, text = 1e9, strings.TrimSuffix(text, "B")
	case strings.HasSuffix(text, "M"):
		mult, text = 1e6, strings.TrimSuffix(text, "M")
	case strings.HasSuffix(text, "K"):
		mult, text = 1e3, strings.TrimSuffix(text, "K")
	}
	v, err := utilities.ParseStrictFloat(utilities.NormalizeNumericText(text))
	if err != nil || v < 0 {
		return 0, false
	}
	return v * mult, true
}

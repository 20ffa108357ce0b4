// Package mapper translates loosely-formatted instrument identifiers into the
// ids each upstream provider understands.
package mapper

import "strings"

// ProviderIDs carries one instrument's native id per provider.
type ProviderIDs struct {
	// ExchangePair is the exchange trading pair, e.g. "BTCUSDT".
	ExchangePair string
	// AggregatorID is the aggregator catalog id, e.g. "bitcoin".
	AggregatorID string
}

const exchangeQuote = "USDT"

// SymbolMapper resolves symbols against one authoritative table, falling back
// to heuristic decomposition. It is pure and deterministic: no I/O, no state
// mutation, safe to call repeatedly.
type SymbolMapper struct {
	table map[string]ProviderIDs
}

// NewSymbolMapper builds a mapper over the default symbol table.
func NewSymbolMapper() *SymbolMapper {
	return NewSymbolMapperWithTable(defaultSymbolTable)
}

// NewSymbolMapperWithTable builds a mapper over an injected table, so tests
// can substitute a fixture without touching package state.
func NewSymbolMapperWithTable(table map[string]ProviderIDs) *SymbolMapper {
	return &SymbolMapper{table: table}
}

// Map resolves a raw symbol string. Accepted surface forms:
//
//	EXCHANGE:BASEQUOTE   "BITSTAMP:BTCUSD"
//	BASE/QUOTE           "BTC/USD"
//	bare                 "BTC", "BTCUSD"
//
// Returns nil only when the input decomposes to an empty base token.
func (m *SymbolMapper) Map(raw string) *ProviderIDs {
	normalized := normalize(raw)
	if normalized == "" {
		return nil
	}

	if ids, ok := m.table[normalized]; ok {
		return &ids
	}

	base := stripQuoteSuffix(normalized)
	if base == "" {
		return nil
	}
	if ids, ok := m.table[base]; ok {
		return &ids
	}

	// Heuristic guess. Do not double-suffix an input that already carries
	// the exchange quote asset.
	pair := base
	if !strings.HasSuffix(pair, exchangeQuote) {
		pair += exchangeQuote
	}
	return &ProviderIDs{
		ExchangePair: pair,
		AggregatorID: strings.ToLower(base),
	}
}

// normalize uppercases, trims, drops an EXCHANGE: prefix, and removes pair
// separators, reducing every surface form to BASE or BASEQUOTE.
func normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// stripQuoteSuffix removes a trailing USDT/USD quote. USDT is checked first so
// "BTCUSDT" strips to "BTC" rather than "BTCUSDT" minus "USD".
func stripQuoteSuffix(s string) string {
	for _, q := range []string{"USDT", "USD"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}

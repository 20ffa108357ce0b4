package mapper

import "strings"

// defaultSymbolTable is the single authoritative mapping from canonical base
// symbols (and their common BASEQUOTE forms) to provider-native ids. Earlier
// revisions of the dashboard grew several near-duplicate tables; divergence
// between them was a bug, so they were consolidated here.
var defaultSymbolTable = map[string]ProviderIDs{
	"BTC":  {ExchangePair: "BTCUSDT", AggregatorID: "bitcoin"},
	"ETH":  {ExchangePair: "ETHUSDT", AggregatorID: "ethereum"},
	"SOL":  {ExchangePair: "SOLUSDT", AggregatorID: "solana"},
	"XRP":  {ExchangePair: "XRPUSDT", AggregatorID: "ripple"},
	"ADA":  {ExchangePair: "ADAUSDT", AggregatorID: "cardano"},
	"DOGE": {ExchangePair: "DOGEUSDT", AggregatorID: "dogecoin"},
	"DOT":  {ExchangePair: "DOTUSDT", AggregatorID: "polkadot"},
	"LTC":  {ExchangePair: "LTCUSDT", AggregatorID: "litecoin"},
	"LINK": {ExchangePair: "LINKUSDT", AggregatorID: "chainlink"},
	"AVAX": {ExchangePair: "AVAXUSDT", AggregatorID: "avalanche-2"},
	"MATIC": {
		ExchangePair: "MATICUSDT", AggregatorID: "matic-network",
	},
	"BNB":  {ExchangePair: "BNBUSDT", AggregatorID: "binancecoin"},
	"TRX":  {ExchangePair: "TRXUSDT", AggregatorID: "tron"},
	"SHIB": {ExchangePair: "SHIBUSDT", AggregatorID: "shiba-inu"},
	"ATOM": {ExchangePair: "ATOMUSDT", AggregatorID: "cosmos"},
	"UNI":  {ExchangePair: "UNIUSDT", AggregatorID: "uniswap"},
	"XLM":  {ExchangePair: "XLMUSDT", AggregatorID: "stellar"},
	"NEAR": {ExchangePair: "NEARUSDT", AggregatorID: "near"},
	"APT":  {ExchangePair: "APTUSDT", AggregatorID: "aptos"},
	"ARB":  {ExchangePair: "ARBUSDT", AggregatorID: "arbitrum"},
	"OP":   {ExchangePair: "OPUSDT", AggregatorID: "optimism"},
	"PEPE": {ExchangePair: "PEPEUSDT", AggregatorID: "pepe"},
	"TON":  {ExchangePair: "TONUSDT", AggregatorID: "the-open-network"},
	// Kraken-style alias.
	"XBT": {ExchangePair: "BTCUSDT", AggregatorID: "bitcoin"},
}

// defaultAnchorTable maps well-known base symbols to a coarse default price
// used to seed synthetic data when no provider can be queried at all. These
// are intentionally rough; the synthetic series is illustrative only.
var defaultAnchorTable = map[string]float64{
	"BTC":  65000,
	"ETH":  3200,
	"SOL":  150,
	"BNB":  580,
	"XRP":  0.55,
	"ADA":  0.45,
	"DOGE": 0.12,
	"LTC":  80,
	"DOT":  6.5,
	"LINK": 14,
}

// AnchorPriceHint returns a coarse default price for a raw symbol by substring
// match on well-known tickers, and ok=false when nothing matches.
func AnchorPriceHint(raw string) (float64, bool) {
	upper := normalize(raw)
	if upper == "" {
		return 0, false
	}
	if price, ok := defaultAnchorTable[stripQuoteSuffix(upper)]; ok {
		return price, true
	}
	// Fixed scan order keeps the hint deterministic for odd inputs.
	for _, sym := range anchorScanOrder {
		if strings.Contains(upper, sym) {
			return defaultAnchorTable[sym], true
		}
	}
	return 0, false
}

var anchorScanOrder = []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA", "DOGE", "LTC", "DOT", "LINK"}

package exchange

import (
	"fmt"
	"strings"
)

// VenueProfile holds the static, venue-specific knobs the generic REST
// connector is shaped by.
type VenueProfile struct {
	Slug      string
	BaseURL   string
	Separator string // joins base and quote in the wire symbol
	Lowercase bool
	MakerFee  float64 // static fallback, tier 3 of fee resolution
	TakerFee  float64
	RateLimit float64 // requests per second against the venue

	SupportedOrderTypes []string
}

const (
	// Global fee fallback for venues missing from the profile table.
	DefaultMakerFee = 0.001
	DefaultTakerFee = 0.001
)

var profiles = map[string]VenueProfile{
	"binance": {
		Slug:                "binance",
		BaseURL:             "https://api.binance.com",
		Separator:           "",
		MakerFee:            0.001,
		TakerFee:            0.001,
		RateLimit:           10,
		SupportedOrderTypes: []string{"MARKET", "LIMIT", "STOP_LOSS", "STOP_LIMIT", "TRAILING_STOP", "TAKE_PROFIT", "OCO"},
	},
	"kucoin": {
		Slug:                "kucoin",
		BaseURL:             "https://api.kucoin.com",
		Separator:           "-",
		MakerFee:            0.001,
		TakerFee:            0.001,
		RateLimit:           10,
		SupportedOrderTypes: []string{"MARKET", "LIMIT", "STOP_LOSS", "STOP_LIMIT"},
	},
	"nobitex": {
		Slug:                "nobitex",
		BaseURL:             "https://api.nobitex.ir",
		Separator:           "",
		Lowercase:           true,
		MakerFee:            0.001,
		TakerFee:            0.0013,
		RateLimit:           5,
		SupportedOrderTypes: []string{"MARKET", "LIMIT", "STOP_LOSS", "STOP_LIMIT", "OCO"},
	},
	"wallex": {
		Slug:                "wallex",
		BaseURL:             "https://api.wallex.ir",
		Separator:           "",
		MakerFee:            0.002,
		TakerFee:            0.002,
		RateLimit:           5,
		SupportedOrderTypes: []string{"MARKET", "LIMIT"},
	},
}

// Profile returns the venue profile for slug. Unknown venues get a generic
// profile carrying the global default fees, so fee estimation and symbol
// formatting still work.
func Profile(slug string) VenueProfile {
	if p, ok := profiles[slug]; ok {
		return p
	}
	return VenueProfile{
		Slug:                slug,
		Separator:           "",
		MakerFee:            DefaultMakerFee,
		TakerFee:            DefaultTakerFee,
		RateLimit:           5,
		SupportedOrderTypes: []string{"MARKET", "LIMIT"},
	}
}

// DefaultFees returns the static per-venue maker/taker fallback rates.
func DefaultFees(slug string) TradingFees {
	p := Profile(slug)
	return TradingFees{Maker: p.MakerFee, Taker: p.TakerFee}
}

// knownQuotes is checked longest-first when splitting a joined pair token.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "TMN", "IRT", "USD", "EUR", "BTC", "ETH", "BNB"}

// SplitPair splits a canonical "BASE/QUOTE" pair or a joined "BASEQUOTE"
// token into base and quote. Joined tokens are resolved against the known
// quote currencies.
func SplitPair(raw string) (base, quote string, err error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.IndexAny(raw, "/-_"); i > 0 {
		return raw[:i], raw[i+1:], nil
	}
	for _, q := range knownQuotes {
		if strings.HasSuffix(raw, q) && len(raw) > len(q) {
			return raw[:len(raw)-len(q)], q, nil
		}
	}
	return "", "", fmt.Errorf("cannot split symbol %q into base/quote", raw)
}

// FormatSymbol translates an internal pair token into the venue's wire
// symbol, e.g. "BTCUSDT" -> "BTC-USDT" on kucoin, "btcusdt" on nobitex.
func FormatSymbol(venue, raw string) (string, error) {
	base, quote, err := SplitPair(raw)
	if err != nil {
		return "", err
	}
	p := Profile(venue)
	sym := base + p.Separator + quote
	if p.Lowercase {
		sym = strings.ToLower(sym)
	}
	return sym, nil
}

// CanonicalSymbol normalizes any accepted pair spelling to "BASE/QUOTE".
func CanonicalSymbol(raw string) (string, error) {
	base, quote, err := SplitPair(raw)
	if err != nil {
		return "", err
	}
	return base + "/" + quote, nil
}

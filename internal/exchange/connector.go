// Package exchange abstracts third-party trading venues behind one connector
// interface. The engine only ever talks to Connector; everything
// venue-specific (wire symbol formats, endpoint paths, default fee schedules)
// lives in the venue profiles.
package exchange

import (
	"context"
	"time"
)

// Market is a venue's live definition of one tradable pair.
type Market struct {
	Symbol      string
	Base        string
	Quote       string
	Active      bool
	MakerFee    float64
	TakerFee    float64
	MinAmount   float64
	MaxAmount   float64
	MinPrice    float64
	MaxPrice    float64
	MinNotional float64
	AmountStep  float64
}

// Ticker carries the venue's current quote for a symbol.
type Ticker struct {
	Symbol    string
	Last      float64
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price    float64
	Quantity float64
}

type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}

// AssetBalance is a user's balance in one currency on the venue.
type AssetBalance struct {
	Free   float64
	Locked float64
}

func (b AssetBalance) Total() float64 {
	return b.Free + b.Locked
}

// TradingFees is the venue-wide maker/taker schedule for the acting account.
type TradingFees struct {
	Maker float64
	Taker float64
}

// OrderAck is the venue's acknowledgement of a submission. Fields the venue
// omits are zero; callers fall back to the requested values.
type OrderAck struct {
	VenueOrderID     string
	ClientOrderID    string
	Status           string
	Price            float64
	ExecutedQuantity float64
	Cost             float64
	FeeAmount        float64
	FeeCurrency      string
	TransactTime     time.Time
}

// Connector is a capability-bearing client bound to one venue and one acting
// user. Submissions and cancels are never retried by implementations; only
// read-only fetches may retry internally.
type Connector interface {
	Venue() string
	FetchMarkets(ctx context.Context) (map[string]Market, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	FetchBalance(ctx context.Context) (map[string]AssetBalance, error)
	FetchTradingFees(ctx context.Context) (*TradingFees, error)
	SubmitOrder(ctx context.Context, symbol string, orderType, side string, quantity float64, price *float64, params map[string]any) (*OrderAck, error)
	CancelOrder(ctx context.Context, venueOrderID, symbol string) error
}

// Registry resolves a connector for a (venue, user) pair.
type Registry interface {
	Resolve(ctx context.Context, venue string, userID uint) (Connector, error)
}

package service

import (
	"context"
	"math"

	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/model"
	"github.com/sirupsen/logrus"
)

// Estimator computes fee rates and order-book slippage.
type Estimator struct {
	logger *logrus.Logger
}

func NewEstimator(logger *logrus.Logger) *Estimator {
	return &Estimator{logger: logger}
}

// ResolveFeeRate resolves the applicable fee rate with a three-tier fallback:
// the venue's live fee endpoint, then the rate embedded in the loaded market
// metadata, then the static per-venue default table. Limit orders pay the
// maker rate; everything else executes as a taker.
func (e *Estimator) ResolveFeeRate(ctx context.Context, conn exchange.Connector, market *exchange.Market, orderType model.OrderType) float64 {
	maker := orderType == model.TypeLimit

	if fees, err := conn.FetchTradingFees(ctx); err == nil && fees != nil {
		if maker {
			return fees.Maker
		}
		return fees.Taker
	} else if err != nil {
		e.logger.WithError(err).WithField("venue", conn.Venue()).
			Warn("trading fee endpoint unavailable, falling back to market metadata")
	}

	if market != nil {
		if maker && market.MakerFee > 0 {
			return market.MakerFee
		}
		if !maker && market.TakerFee > 0 {
			return market.TakerFee
		}
	}

	defaults := exchange.DefaultFees(conn.Venue())
	if maker {
		return defaults.Maker
	}
	return defaults.Taker
}

// EstimateFee returns the fee amount for an order of the given notional value.
func (e *Estimator) EstimateFee(notional, rate float64) float64 {
	return notional * rate
}

// EstimateSlippage walks the relevant book side consuming depth until the
// requested quantity fills and returns the percentage gap between the
// quantity-weighted average price and the best price, rounded to 2 decimals.
// Insufficient depth is not an error: the estimate covers the fillable
// portion. An empty side or zero best price yields 0.
func (e *Estimator) EstimateSlippage(book *exchange.OrderBook, side model.OrderSide, quantity float64) float64 {
	if book == nil || quantity <= 0 {
		return 0
	}

	levels := book.Asks
	if side == model.SideSell {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return 0
	}

	best := levels[0].Price
	if best == 0 {
		return 0
	}

	remaining := quantity
	var filled, cost float64
	for _, lvl := range levels {
		take := math.Min(remaining, lvl.Quantity)
		cost += take * lvl.Price
		filled += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	if filled == 0 {
		return 0
	}

	weighted := cost / filled
	slippage := math.Abs(weighted-best) / best * 100
	return math.Round(slippage*100) / 100
}

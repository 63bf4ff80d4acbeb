package service

import (
	"context"
	"math"

	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/model"
	"github.com/sirupsen/logrus"
)

// Validator checks a candidate order against the venue's live market
// constraints. It performs no side effects and is safe to call repeatedly.
type Validator struct {
	logger *logrus.Logger
}

func NewValidator(logger *logrus.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate fetches the venue's market definition for the request's symbol and
// verifies tradability, quantity bounds, price bounds and minimum notional.
// The returned quantity is the request quantity rounded down to the venue's
// step size; rounding that pushes the quantity outside bounds is a validation
// failure, not silent truncation.
func (v *Validator) Validate(ctx context.Context, conn exchange.Connector, req *model.OrderRequest) (*exchange.Market, float64, error) {
	symbol, err := exchange.CanonicalSymbol(req.Symbol)
	if err != nil {
		return nil, 0, model.NewValidationError("invalid symbol %q: %v", req.Symbol, err)
	}

	markets, err := conn.FetchMarkets(ctx)
	if err != nil {
		return nil, 0, &model.ExecutionError{Op: "fetch markets", Err: err}
	}

	market, ok := markets[symbol]
	if !ok {
		return nil, 0, model.NewValidationError("symbol %s is not listed on %s", symbol, conn.Venue())
	}
	if !market.Active {
		return nil, 0, model.NewValidationError("symbol %s is not currently tradable on %s", symbol, conn.Venue())
	}

	quantity := roundToStep(req.Quantity, market.AmountStep)
	if quantity <= 0 {
		return nil, 0, model.NewValidationError("quantity %v rounds to zero at step size %v", req.Quantity, market.AmountStep)
	}
	if market.MinAmount > 0 && quantity < market.MinAmount {
		return nil, 0, model.NewValidationError("quantity %v below minimum %v", quantity, market.MinAmount)
	}
	if market.MaxAmount > 0 && quantity > market.MaxAmount {
		return nil, 0, model.NewValidationError("quantity %v above maximum %v", quantity, market.MaxAmount)
	}

	if req.Price != nil {
		price := *req.Price
		if market.MinPrice > 0 && price < market.MinPrice {
			return nil, 0, model.NewValidationError("price %v below minimum %v", price, market.MinPrice)
		}
		if market.MaxPrice > 0 && price > market.MaxPrice {
			return nil, 0, model.NewValidationError("price %v above maximum %v", price, market.MaxPrice)
		}
		if notional := quantity * price; market.MinNotional > 0 && notional < market.MinNotional {
			return nil, 0, model.NewValidationError("order value %v below minimum notional %v", notional, market.MinNotional)
		}
	}

	if quantity != req.Quantity {
		v.logger.WithFields(logrus.Fields{
			"symbol":    symbol,
			"requested": req.Quantity,
			"adjusted":  quantity,
		}).Debug("quantity adjusted to venue step size")
	}
	return &market, quantity, nil
}

// roundToStep rounds quantity down to the nearest step multiple. A zero step
// means the venue reported no step constraint.
func roundToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	steps := math.Floor(quantity/step + 1e-9)
	return steps * step
}

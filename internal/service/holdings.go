package service

import (
	"context"
	"sort"
	"time"

	"github.com/aminsb/tradedesk/internal/model"
	"github.com/aminsb/tradedesk/internal/repository"
	"github.com/sirupsen/logrus"
)

// HoldingsService reduces a user's filled-order history into net position,
// weighted cost basis and a per-venue breakdown. Purely a fold over the
// persisted store; it never talks to venues.
type HoldingsService struct {
	orders repository.OrderRepository
	coins  repository.CoinRepository
	logger *logrus.Logger
}

func NewHoldingsService(orders repository.OrderRepository, coins repository.CoinRepository, logger *logrus.Logger) *HoldingsService {
	return &HoldingsService{orders: orders, coins: coins, logger: logger}
}

// GetHoldingsByCoin folds all FILLED orders for (user, coin) in execution
// order. Sells reduce position but never the buy cost basis. Venues whose net
// amount settles to zero or below drop out of the breakdown. Zero orders
// yields an all-zero snapshot, not an error.
func (s *HoldingsService) GetHoldingsByCoin(ctx context.Context, userID, coinID uint) (*model.HoldingsSnapshot, error) {
	coin, err := s.coins.GetByID(ctx, coinID)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.ListFilledByCoin(ctx, userID, coinID)
	if err != nil {
		return nil, err
	}

	type venuePosition struct {
		amount float64
		last   time.Time
	}

	var totalBought, totalSold, costBasis float64
	venues := make(map[string]*venuePosition)

	for _, o := range orders {
		vp := venues[o.Exchange]
		if vp == nil {
			vp = &venuePosition{}
			venues[o.Exchange] = vp
		}

		switch o.Side {
		case model.SideBuy:
			totalBought += o.ExecutedQuantity
			costBasis += o.Cost
			vp.amount += o.ExecutedQuantity
		case model.SideSell:
			totalSold += o.ExecutedQuantity
			vp.amount -= o.ExecutedQuantity
		}
		if o.TransactTime.After(vp.last) {
			vp.last = o.TransactTime
		}
	}

	var averageBuyPrice float64
	if totalBought > 0 {
		averageBuyPrice = costBasis / totalBought
	}
	netAmount := totalBought - totalSold
	currentValue := netAmount * coin.CurrentPrice
	invested := netAmount * averageBuyPrice
	profitLoss := currentValue - invested

	var profitLossPct float64
	if invested > 0 {
		profitLossPct = profitLoss / invested * 100
	}

	breakdown := make([]model.ExchangeHolding, 0, len(venues))
	for name, vp := range venues {
		if vp.amount <= 0 {
			continue
		}
		breakdown = append(breakdown, model.ExchangeHolding{
			Exchange:        name,
			Amount:          vp.amount,
			LastTransaction: vp.last,
		})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Exchange < breakdown[j].Exchange
	})

	return &model.HoldingsSnapshot{
		CoinID:            coin.ID,
		Symbol:            coin.Symbol,
		TotalAmount:       netAmount,
		AverageBuyPrice:   averageBuyPrice,
		CurrentValue:      currentValue,
		ProfitLoss:        profitLoss,
		ProfitLossPercent: profitLossPct,
		Exchanges:         breakdown,
	}, nil
}

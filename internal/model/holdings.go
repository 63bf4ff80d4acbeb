package model

import "time"

// ExchangeHolding is one venue's share of a position.
type ExchangeHolding struct {
	Exchange        string    `json:"exchange"`
	Amount          float64   `json:"amount"`
	LastTransaction time.Time `json:"last_transaction"`
}

// HoldingsSnapshot is the derived per-(user, coin) position. Computed on
// demand from the filled-order history, never persisted.
type HoldingsSnapshot struct {
	CoinID            uint              `json:"coin_id"`
	Symbol            string            `json:"symbol"`
	TotalAmount       float64           `json:"total_amount"`
	AverageBuyPrice   float64           `json:"average_buy_price"`
	CurrentValue      float64           `json:"current_value"`
	ProfitLoss        float64           `json:"profit_loss"`
	ProfitLossPercent float64           `json:"profit_loss_percent"`
	Exchanges         []ExchangeHolding `json:"exchanges"`
}

// OrderPreview projects an order's economics before submission.
type OrderPreview struct {
	Exchange            string      `json:"exchange"`
	Symbol              string      `json:"symbol"`
	Side                OrderSide   `json:"side"`
	Type                OrderType   `json:"type"`
	Quantity            float64     `json:"quantity"`
	Price               *float64    `json:"price,omitempty"`
	MarketPrice         float64     `json:"market_price"`
	EstimatedCost       float64     `json:"estimated_cost"`
	FeeRate             float64     `json:"fee_rate"`
	FeeAmount           float64     `json:"fee_amount"`
	EstimatedSlippage   float64     `json:"estimated_slippage"`
	AvailableBalance    float64     `json:"available_balance"`
	RequiredBalance     float64     `json:"required_balance"`
	SufficientBalance   bool        `json:"sufficient_balance"`
	Warnings            []string    `json:"warnings"`
	SupportedOrderTypes []OrderType `json:"supported_order_types"`
}

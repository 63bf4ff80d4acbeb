package model

// OrderRequest is the normalized order submission a caller hands the engine.
// Symbol is the canonical "BASE/QUOTE" pair; per-venue wire formats are
// resolved by the exchange layer.
type OrderRequest struct {
	Exchange string    `json:"exchange" binding:"required"`
	Symbol   string    `json:"symbol" binding:"required"`
	Side     OrderSide `json:"side" binding:"required,oneof=BUY SELL"`
	Type     OrderType `json:"type" binding:"required,oneof=MARKET LIMIT STOP_LOSS STOP_LIMIT TRAILING_STOP TAKE_PROFIT OCO"`
	Quantity float64   `json:"quantity" binding:"required,gt=0"`
	Price    *float64  `json:"price,omitempty" binding:"omitempty,gt=0"`

	StopPrice       *float64      `json:"stop_price,omitempty" binding:"omitempty,gt=0"`
	TrailingDelta   *float64      `json:"trailing_delta,omitempty" binding:"omitempty,gt=0"`
	TrailingType    *TrailingType `json:"trailing_type,omitempty" binding:"omitempty,oneof=AMOUNT PERCENTAGE"`
	TakeProfitPrice *float64      `json:"take_profit_price,omitempty" binding:"omitempty,gt=0"`
	StopLossPrice   *float64      `json:"stop_loss_price,omitempty" binding:"omitempty,gt=0"`
	TimeInForce     string        `json:"time_in_force,omitempty" binding:"omitempty,oneof=GTC IOC FOK"`

	IsManual           bool `json:"is_manual"`
	IsAlgorithmicTrade bool `json:"is_algorithmic_trade"`
}

// OrderFilters narrows an order listing. Status, Side and Type accept a
// single value or a comma-separated set.
type OrderFilters struct {
	Status   string `form:"status"`
	Side     string `form:"side"`
	Type     string `form:"type"`
	IsManual *bool  `form:"is_manual"`
	Limit    int    `form:"limit"`
}

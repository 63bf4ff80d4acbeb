package model

import "time"

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	TypeMarket       OrderType = "MARKET"
	TypeLimit        OrderType = "LIMIT"
	TypeStopLoss     OrderType = "STOP_LOSS"
	TypeStopLimit    OrderType = "STOP_LIMIT"
	TypeTrailingStop OrderType = "TRAILING_STOP"
	TypeTakeProfit   OrderType = "TAKE_PROFIT"
	TypeOCO          OrderType = "OCO"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusPendingCancel   OrderStatus = "PENDING_CANCEL"
)

// Terminal reports whether the status can never change again.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// venueStatusMap translates the status strings venues report into our enum.
var venueStatusMap = map[string]OrderStatus{
	"open":             StatusNew,
	"new":              StatusNew,
	"closed":           StatusFilled,
	"filled":           StatusFilled,
	"canceled":         StatusCanceled,
	"cancelled":        StatusCanceled,
	"expired":          StatusExpired,
	"rejected":         StatusRejected,
	"partial":          StatusPartiallyFilled,
	"partially_filled": StatusPartiallyFilled,
}

// StatusFromVenue maps a venue-reported status string onto OrderStatus.
// Unrecognized strings default to NEW.
func StatusFromVenue(s string) OrderStatus {
	if mapped, ok := venueStatusMap[normalizeStatus(s)]; ok {
		return mapped
	}
	return StatusNew
}

func normalizeStatus(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

type TrailingType string

const (
	TrailingAmount     TrailingType = "AMOUNT"
	TrailingPercentage TrailingType = "PERCENTAGE"
)

// Order is the durable record of one submission against a venue.
type Order struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"column:user_id;index:idx_orders_user_status;index:idx_orders_user_created" json:"user_id"`

	Exchange    string `gorm:"column:exchange;size:50" json:"exchange"`
	BaseCoinID  uint   `gorm:"column:base_coin_id" json:"base_coin_id"`
	QuoteCoinID uint   `gorm:"column:quote_coin_id" json:"quote_coin_id"`
	Symbol      string `gorm:"column:symbol;size:50" json:"symbol"`

	Side   OrderSide   `gorm:"column:side;size:10" json:"side"`
	Type   OrderType   `gorm:"column:type;size:20" json:"type"`
	Status OrderStatus `gorm:"column:status;size:20;index:idx_orders_user_status" json:"status"`

	Quantity         float64  `gorm:"column:quantity" json:"quantity"`
	Price            *float64 `gorm:"column:price" json:"price,omitempty"`
	ExecutedQuantity float64  `gorm:"column:executed_quantity" json:"executed_quantity"`
	Cost             float64  `gorm:"column:cost" json:"cost"`
	FeeAmount        float64  `gorm:"column:fee_amount" json:"fee_amount"`
	FeeCurrency      string   `gorm:"column:fee_currency;size:20" json:"fee_currency"`

	StopPrice       *float64      `gorm:"column:stop_price" json:"stop_price,omitempty"`
	TrailingDelta   *float64      `gorm:"column:trailing_delta" json:"trailing_delta,omitempty"`
	TrailingType    *TrailingType `gorm:"column:trailing_type;size:20" json:"trailing_type,omitempty"`
	TakeProfitPrice *float64      `gorm:"column:take_profit_price" json:"take_profit_price,omitempty"`
	StopLossPrice   *float64      `gorm:"column:stop_loss_price" json:"stop_loss_price,omitempty"`
	TimeInForce     string        `gorm:"column:time_in_force;size:10" json:"time_in_force,omitempty"`

	VenueOrderID     string `gorm:"column:venue_order_id;size:100" json:"venue_order_id"`
	ClientOrderID    string `gorm:"column:client_order_id;size:100" json:"client_order_id"`
	OCOLinkedOrderID *uint  `gorm:"column:oco_linked_order_id;index" json:"oco_linked_order_id,omitempty"`

	IsManual           bool `gorm:"column:is_manual" json:"is_manual"`
	IsAlgorithmicTrade bool `gorm:"column:is_algorithmic_trade" json:"is_algorithmic_trade"`

	TransactTime time.Time `gorm:"column:transact_time" json:"transact_time"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_orders_user_created,sort:desc" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

package model

import "time"

// Coin is a catalog entry with its current reference price.
type Coin struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Symbol       string    `gorm:"column:symbol;size:20;uniqueIndex" json:"symbol"`
	Name         string    `gorm:"column:name;size:100" json:"name"`
	CurrentPrice float64   `gorm:"column:current_price" json:"current_price"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Coin) TableName() string {
	return "coins"
}

// ExchangeConnection is a user's credential record for one venue.
type ExchangeConnection struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"column:user_id;index" json:"user_id"`
	Exchange    string    `gorm:"column:exchange;size:50" json:"exchange"`
	VenueUserID string    `gorm:"column:venue_user_id;size:100" json:"venue_user_id"`
	APIKey      string    `gorm:"column:api_key;size:200" json:"-"`
	APISecret   string    `gorm:"column:api_secret;size:200" json:"-"`
	Active      bool      `gorm:"column:active" json:"active"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ExchangeConnection) TableName() string {
	return "exchange_connections"
}

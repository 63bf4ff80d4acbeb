package repository

import (
	"context"
	"errors"

	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/model"
	"gorm.io/gorm"
)

// ConnectionRepository resolves a user's venue credential records. It also
// satisfies exchange.CredentialSource so the connector registry can read
// credentials straight from the store.
type ConnectionRepository interface {
	exchange.CredentialSource
	GetActive(ctx context.Context, venue string, userID uint) (*model.ExchangeConnection, error)
}

type gormConnectionRepository struct {
	db *gorm.DB
}

func NewGormConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &gormConnectionRepository{db: db}
}

func (r *gormConnectionRepository) GetActive(ctx context.Context, venue string, userID uint) (*model.ExchangeConnection, error) {
	var conn model.ExchangeConnection
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND exchange = ? AND active = ?", userID, venue, true).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *gormConnectionRepository) CredentialsFor(ctx context.Context, venue string, userID uint) (exchange.Credentials, error) {
	conn, err := r.GetActive(ctx, venue, userID)
	if err != nil {
		return exchange.Credentials{}, err
	}
	return exchange.Credentials{APIKey: conn.APIKey, APISecret: conn.APISecret}, nil
}

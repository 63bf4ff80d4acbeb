package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aminsb/tradedesk/internal/model"
	"gorm.io/gorm"
)

// CoinRepository resolves catalog coins by id or ticker symbol.
type CoinRepository interface {
	GetByID(ctx context.Context, id uint) (*model.Coin, error)
	GetBySymbol(ctx context.Context, symbol string) (*model.Coin, error)
	GetBySymbols(ctx context.Context, symbols []string) (map[string]model.Coin, error)
}

type gormCoinRepository struct {
	db *gorm.DB
}

func NewGormCoinRepository(db *gorm.DB) CoinRepository {
	return &gormCoinRepository{db: db}
}

func (r *gormCoinRepository) GetByID(ctx context.Context, id uint) (*model.Coin, error) {
	var coin model.Coin
	err := r.db.WithContext(ctx).First(&coin, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("coin %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &coin, nil
}

func (r *gormCoinRepository) GetBySymbol(ctx context.Context, symbol string) (*model.Coin, error) {
	var coin model.Coin
	err := r.db.WithContext(ctx).Where("symbol = ?", strings.ToUpper(symbol)).First(&coin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("coin %s not found", symbol)
	}
	if err != nil {
		return nil, err
	}
	return &coin, nil
}

func (r *gormCoinRepository) GetBySymbols(ctx context.Context, symbols []string) (map[string]model.Coin, error) {
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	var coins []model.Coin
	if err := r.db.WithContext(ctx).Where("symbol IN ?", upper).Find(&coins).Error; err != nil {
		return nil, err
	}

	result := make(map[string]model.Coin, len(coins))
	for _, c := range coins {
		result[c.Symbol] = c
	}
	return result, nil
}

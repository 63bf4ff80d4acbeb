package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/aminsb/tradedesk/internal/model"
	"gorm.io/gorm"
)

// OrderRepository persists and queries orders. Transaction runs the given
// function against a transaction-bound copy of the repository; any error
// rolls the whole transaction back.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	Update(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, userID, orderID uint) (*model.Order, error)
	List(ctx context.Context, userID uint, filters model.OrderFilters) ([]model.Order, error)
	ListFilledByCoin(ctx context.Context, userID, coinID uint) ([]model.Order, error)
	Transaction(ctx context.Context, fn func(repo OrderRepository) error) error
}

type gormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepository{db: db}
}

func (r *gormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormOrderRepository) Update(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *gormOrderRepository) GetByID(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepository) List(ctx context.Context, userID uint, filters model.OrderFilters) ([]model.Order, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if values := splitFilter(filters.Status); len(values) > 0 {
		query = query.Where("status IN ?", values)
	}
	if values := splitFilter(filters.Side); len(values) > 0 {
		query = query.Where("side IN ?", values)
	}
	if values := splitFilter(filters.Type); len(values) > 0 {
		query = query.Where("type IN ?", values)
	}
	if filters.IsManual != nil {
		query = query.Where("is_manual = ?", *filters.IsManual)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var orders []model.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *gormOrderRepository) ListFilledByCoin(ctx context.Context, userID, coinID uint) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND base_coin_id = ? AND status = ?", userID, coinID, model.StatusFilled).
		Order("transact_time ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *gormOrderRepository) Transaction(ctx context.Context, fn func(repo OrderRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormOrderRepository{db: tx})
	})
}

// splitFilter turns a single value or comma-separated set into a clean slice.
func splitFilter(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			values = append(values, strings.ToUpper(v))
		}
	}
	return values
}

package sqlite

import (
	"context"
	"errors"

	"daybot/internal/store/model"
	"daybot/internal/types"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Insert(ctx context.Context, o *types.Order) error {
	if o == nil {
		return errors.New("order cannot be nil")
	}
	if o.ID == "" {
		return errors.New("order id cannot be empty")
	}
	m := model.FromOrder(*o)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]types.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.OrderModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, order_id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Order())
	}
	return out, nil
}

package sqlite

import (
	"context"
	"errors"

	"daybot/internal/store/model"
	"daybot/internal/types"

	"gorm.io/gorm"
)

type snapshotRepo struct {
	db *gorm.DB
}

func (r *snapshotRepo) Insert(ctx context.Context, s *types.MarketSnapshot) error {
	if s == nil {
		return errors.New("snapshot cannot be nil")
	}
	m := model.FromSnapshot(*s)
	m.ID = 0
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	s.ID = m.ID
	return nil
}

func (r *snapshotRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]types.MarketSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []model.SnapshotModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.MarketSnapshot, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Snapshot())
	}
	return out, nil
}

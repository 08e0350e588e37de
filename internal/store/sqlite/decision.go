package sqlite

import (
	"context"
	"errors"

	"daybot/internal/store"
	"daybot/internal/store/model"
	"daybot/internal/types"

	"gorm.io/gorm"
)

type decisionRepo struct {
	db *gorm.DB
}

func (r *decisionRepo) Insert(ctx context.Context, d *types.Decision) error {
	if d == nil {
		return errors.New("decision cannot be nil")
	}
	m := model.FromDecision(*d)
	m.ID = 0
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	d.ID = m.ID
	return nil
}

func (r *decisionRepo) Get(ctx context.Context, id int64) (types.Decision, error) {
	var m model.DecisionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Decision{}, store.ErrNotFound
	}
	if err != nil {
		return types.Decision{}, err
	}
	return m.Decision(), nil
}

func (r *decisionRepo) UpdateHITLStatus(ctx context.Context, id int64, status types.HITLStatus) error {
	res := r.db.WithContext(ctx).Model(&model.DecisionModel{}).Where("id = ?", id).Update("hitl_status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *decisionRepo) ListPendingHITL(ctx context.Context) ([]types.Decision, error) {
	var rows []model.DecisionModel
	if err := r.db.WithContext(ctx).
		Where("hitl_status = ?", string(types.HITLPending)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return decisionsFromRows(rows), nil
}

func (r *decisionRepo) ListRecent(ctx context.Context, limit int) ([]types.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.DecisionModel
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return decisionsFromRows(rows), nil
}

func decisionsFromRows(rows []model.DecisionModel) []types.Decision {
	out := make([]types.Decision, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Decision())
	}
	return out
}

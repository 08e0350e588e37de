package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daybot/internal/store"
	"daybot/internal/store/model"
	"daybot/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type positionRepo struct {
	db *gorm.DB
}

// Upsert writes pos keyed by symbol. A zero quantity is rejected; callers
// delete flat positions instead.
func (r *positionRepo) Upsert(ctx context.Context, pos types.Position) error {
	if strings.TrimSpace(pos.Symbol) == "" {
		return errors.New("position symbol cannot be empty")
	}
	if pos.Quantity == 0 {
		return fmt.Errorf("refusing to store flat position for %s", pos.Symbol)
	}
	m := model.FromPosition(pos)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (r *positionRepo) Get(ctx context.Context, symbol string) (types.Position, error) {
	var m model.PositionModel
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Position{}, store.ErrNotFound
	}
	if err != nil {
		return types.Position{}, err
	}
	return m.Position(), nil
}

func (r *positionRepo) List(ctx context.Context) ([]types.Position, error) {
	var rows []model.PositionModel
	if err := r.db.WithContext(ctx).Order("symbol ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Position())
	}
	return out, nil
}

func (r *positionRepo) Delete(ctx context.Context, symbol string) error {
	return r.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&model.PositionModel{}).Error
}

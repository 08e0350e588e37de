package sqlite

import (
	"context"
	"errors"

	"daybot/internal/store"
	"daybot/internal/store/model"
	"daybot/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepo struct {
	db *gorm.DB
}

func (r *ledgerRepo) Get(ctx context.Context, date string) (types.Ledger, error) {
	var m model.LedgerModel
	err := r.db.WithContext(ctx).Where("date = ?", date).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Ledger{}, store.ErrNotFound
	}
	if err != nil {
		return types.Ledger{}, err
	}
	return m.Ledger(), nil
}

func (r *ledgerRepo) GetOrCreate(ctx context.Context, seed types.Ledger) (types.Ledger, error) {
	l, err := r.Get(ctx, seed.Date)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Ledger{}, err
	}
	m := model.FromLedger(seed)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return types.Ledger{}, err
	}
	return seed, nil
}

func (r *ledgerRepo) Save(ctx context.Context, ledger types.Ledger) error {
	if ledger.Date == "" {
		return errors.New("ledger date cannot be empty")
	}
	m := model.FromLedger(ledger)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		UpdateAll: true,
	}).Create(&m).Error
}

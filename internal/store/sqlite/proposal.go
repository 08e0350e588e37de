package sqlite

import (
	"context"
	"errors"

	"daybot/internal/store"
	"daybot/internal/store/model"
	"daybot/internal/types"

	"gorm.io/gorm"
)

type proposalRepo struct {
	db *gorm.DB
}

// Insert appends p and writes the assigned id back.
func (r *proposalRepo) Insert(ctx context.Context, p *types.Proposal) error {
	if p == nil {
		return errors.New("proposal cannot be nil")
	}
	m := model.FromProposal(*p)
	m.ID = 0
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	p.ID = m.ID
	return nil
}

func (r *proposalRepo) Get(ctx context.Context, id int64) (types.Proposal, error) {
	var m model.ProposalModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Proposal{}, store.ErrNotFound
	}
	if err != nil {
		return types.Proposal{}, err
	}
	return m.Proposal(), nil
}

func (r *proposalRepo) UpdateStatus(ctx context.Context, id int64, status types.ProposalStatus) error {
	res := r.db.WithContext(ctx).Model(&model.ProposalModel{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *proposalRepo) ListRecent(ctx context.Context, limit int) ([]types.Proposal, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.ProposalModel
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Proposal, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Proposal())
	}
	return out, nil
}

package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type ExperimentRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Experiment, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.Experiment, error)
	Save(ctx context.Context, tx *gorm.DB, experiment *types.Experiment) error
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type experimentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperimentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentRepo {
	return &experimentRepo{db: db, log: baseLog.With("repo", "ExperimentRepo")}
}

func (r *experimentRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Experiment
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *experimentRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Experiment
	if err := transaction.WithContext(ctx).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *experimentRepo) Save(ctx context.Context, tx *gorm.DB, experiment *types.Experiment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(experiment).Error
}

func (r *experimentRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.Experiment{}).Error
}

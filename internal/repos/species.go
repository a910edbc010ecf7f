package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type SpeciesRepo interface {
	GetByIndex(ctx context.Context, tx *gorm.DB, index int) (*types.Species, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.Species, error)
	Rename(ctx context.Context, tx *gorm.DB, index int, name string) error
	CreateAll(ctx context.Context, tx *gorm.DB, species []*types.Species) error
}

type speciesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpeciesRepo(db *gorm.DB, baseLog *logger.Logger) SpeciesRepo {
	return &speciesRepo{db: db, log: baseLog.With("repo", "SpeciesRepo")}
}

func (r *speciesRepo) GetByIndex(ctx context.Context, tx *gorm.DB, index int) (*types.Species, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Species
	if err := transaction.WithContext(ctx).
		Where(`"index" = ?`, index).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *speciesRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.Species, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Species
	if err := transaction.WithContext(ctx).
		Order(`"index"`).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *speciesRepo) Rename(ctx context.Context, tx *gorm.DB, index int, name string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Species{}).
		Where(`"index" = ?`, index).
		Update("name", name).Error
}

func (r *speciesRepo) CreateAll(ctx context.Context, tx *gorm.DB, species []*types.Species) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(species) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Save(&species).Error
}

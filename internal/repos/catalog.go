package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

// EcosystemRepo and HabitatRepo cover the two remaining seeded configuration
// tables. Lookups that miss return nil, nil: an unresolvable reference is
// non-fatal for the merge engine.

type EcosystemRepo interface {
	GetByIndex(ctx context.Context, tx *gorm.DB, index int) (*types.Ecosystem, error)
	CreateAll(ctx context.Context, tx *gorm.DB, ecosystems []*types.Ecosystem) error
}

type ecosystemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEcosystemRepo(db *gorm.DB, baseLog *logger.Logger) EcosystemRepo {
	return &ecosystemRepo{db: db, log: baseLog.With("repo", "EcosystemRepo")}
}

func (r *ecosystemRepo) GetByIndex(ctx context.Context, tx *gorm.DB, index int) (*types.Ecosystem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Ecosystem
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

func (r *ecosystemRepo) CreateAll(ctx context.Context, tx *gorm.DB, ecosystems []*types.Ecosystem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ecosystems) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Save(&ecosystems).Error
}

type HabitatRepo interface {
	GetByIndex(ctx context.Context, tx *gorm.DB, index int) (*types.Habitat, error)
	CreateAll(ctx context.Context, tx *gorm.DB, habitats []*types.Habitat) error
}

type habitatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHabitatRepo(db *gorm.DB, baseLog *logger.Logger) HabitatRepo {
	return &habitatRepo{db: db, log: baseLog.With("repo", "HabitatRepo")}
}

func (r *habitatRepo) GetByIndex(ctx context.Context, tx *gorm.DB, index int) (*types.Habitat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Habitat
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

func (r *habitatRepo) CreateAll(ctx context.Context, tx *gorm.DB, habitats []*types.Habitat) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(habitats) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Save(&habitats).Error
}

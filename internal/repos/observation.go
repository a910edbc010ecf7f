package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type ObservationRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.SpeciesObservation, error)
	// GetBySlot resolves the uniqueness slot (section, group, fromSpecies).
	GetBySlot(ctx context.Context, tx *gorm.DB, sectionName string, groupIndex, fromSpeciesIndex int) (*types.SpeciesObservation, error)
	AllForSectionGroup(ctx context.Context, tx *gorm.DB, sectionName string, groupIndex int) ([]*types.SpeciesObservation, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.SpeciesObservation, error)
	Save(ctx context.Context, tx *gorm.DB, observation *types.SpeciesObservation) error
	// DeleteWithChildren removes the observation and its owned children in
	// dependency order: relationships, preferences, then the observation.
	DeleteWithChildren(ctx context.Context, tx *gorm.DB, id string) error
	DeleteAll(ctx context.Context, tx *gorm.DB) error
	Preload(ctx context.Context, tx *gorm.DB, observation *types.SpeciesObservation) error
}

type observationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewObservationRepo(db *gorm.DB, baseLog *logger.Logger) ObservationRepo {
	return &observationRepo{db: db, log: baseLog.With("repo", "ObservationRepo")}
}

func (r *observationRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.SpeciesObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SpeciesObservation
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

func (r *observationRepo) GetBySlot(ctx context.Context, tx *gorm.DB, sectionName string, groupIndex, fromSpeciesIndex int) (*types.SpeciesObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SpeciesObservation
	if err := transaction.WithContext(ctx).
		Where("section_name = ? AND group_index = ? AND from_species_index = ?", sectionName, groupIndex, fromSpeciesIndex).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *observationRepo) AllForSectionGroup(ctx context.Context, tx *gorm.DB, sectionName string, groupIndex int) ([]*types.SpeciesObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SpeciesObservation
	if err := transaction.WithContext(ctx).
		Where("section_name = ? AND group_index = ?", sectionName, groupIndex).
		Order("last_modified").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *observationRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.SpeciesObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SpeciesObservation
	if err := transaction.WithContext(ctx).
		Order("last_modified").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *observationRepo) Save(ctx context.Context, tx *gorm.DB, observation *types.SpeciesObservation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(observation).Error
}

func (r *observationRepo) DeleteWithChildren(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("observation_id = ?", id).
		Delete(&types.Relationship{}).Error; err != nil {
		return err
	}
	if err := transaction.WithContext(ctx).
		Where("observation_id = ?", id).
		Delete(&types.SpeciesPreference{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.SpeciesObservation{}).Error
}

func (r *observationRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.Relationship{}).Error; err != nil {
		return err
	}
	if err := transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.SpeciesPreference{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.SpeciesObservation{}).Error
}

func (r *observationRepo) Preload(ctx context.Context, tx *gorm.DB, observation *types.SpeciesObservation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("observation_id = ?", observation.ID).
		Order("last_modified").
		Find(&observation.Relationships).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("observation_id = ?", observation.ID).
		Order("last_modified").
		Find(&observation.Preferences).Error
}

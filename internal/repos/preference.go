package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type PreferenceRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.SpeciesPreference, error)
	// GetByHabitat finds the preference on an observation pointing at a
	// given habitat, the slot used when re-recording a habitat preference.
	GetByHabitat(ctx context.Context, tx *gorm.DB, observationID string, habitatIndex int) (*types.SpeciesPreference, error)
	ForObservation(ctx context.Context, tx *gorm.DB, observationID string) ([]*types.SpeciesPreference, error)
	Save(ctx context.Context, tx *gorm.DB, preference *types.SpeciesPreference) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	DeleteForObservation(ctx context.Context, tx *gorm.DB, observationID string) error
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return &preferenceRepo{db: db, log: baseLog.With("repo", "PreferenceRepo")}
}

func (r *preferenceRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.SpeciesPreference, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SpeciesPreference
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

func (r *preferenceRepo) GetByHabitat(ctx context.Context, tx *gorm.DB, observationID string, habitatIndex int) (*types.SpeciesPreference, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SpeciesPreference
	if err := transaction.WithContext(ctx).
		Where("observation_id = ? AND habitat_index = ?", observationID, habitatIndex).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *preferenceRepo) ForObservation(ctx context.Context, tx *gorm.DB, observationID string) ([]*types.SpeciesPreference, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SpeciesPreference
	if err := transaction.WithContext(ctx).
		Where("observation_id = ?", observationID).
		Order("last_modified").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *preferenceRepo) Save(ctx context.Context, tx *gorm.DB, preference *types.SpeciesPreference) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(preference).Error
}

func (r *preferenceRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.SpeciesPreference{}).Error
}

func (r *preferenceRepo) DeleteForObservation(ctx context.Context, tx *gorm.DB, observationID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("observation_id = ?", observationID).
		Delete(&types.SpeciesPreference{}).Error
}

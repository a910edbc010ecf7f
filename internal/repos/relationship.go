package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type RelationshipRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Relationship, error)
	// GetBySlot finds an existing relationship occupying the same logical
	// slot on an observation: same type, same target species.
	GetBySlot(ctx context.Context, tx *gorm.DB, observationID, relationshipType string, toSpeciesIndex int) (*types.Relationship, error)
	ForObservation(ctx context.Context, tx *gorm.DB, observationID string) ([]*types.Relationship, error)
	Save(ctx context.Context, tx *gorm.DB, relationship *types.Relationship) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	DeleteForObservation(ctx context.Context, tx *gorm.DB, observationID string) error
}

type relationshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	return &relationshipRepo{db: db, log: baseLog.With("repo", "RelationshipRepo")}
}

func (r *relationshipRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Relationship, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Relationship
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

func (r *relationshipRepo) GetBySlot(ctx context.Context, tx *gorm.DB, observationID, relationshipType string, toSpeciesIndex int) (*types.Relationship, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Relationship
	if err := transaction.WithContext(ctx).
		Where("observation_id = ? AND relationship_type = ? AND to_species_index = ?", observationID, relationshipType, toSpeciesIndex).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *relationshipRepo) ForObservation(ctx context.Context, tx *gorm.DB, observationID string) ([]*types.Relationship, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Relationship
	if err := transaction.WithContext(ctx).
		Where("observation_id = ?", observationID).
		Order("last_modified").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *relationshipRepo) Save(ctx context.Context, tx *gorm.DB, relationship *types.Relationship) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(relationship).Error
}

func (r *relationshipRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Relationship{}).Error
}

func (r *relationshipRepo) DeleteForObservation(ctx context.Context, tx *gorm.DB, observationID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("observation_id = ?", observationID).
		Delete(&types.Relationship{}).Error
}

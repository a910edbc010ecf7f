package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type GroupRepo interface {
	Get(ctx context.Context, tx *gorm.DB, sectionName string, index int) (*types.Group, error)
	CreateSection(ctx context.Context, tx *gorm.DB, section *types.Section) error
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return &groupRepo{db: db, log: baseLog.With("repo", "GroupRepo")}
}

func (r *groupRepo) Get(ctx context.Context, tx *gorm.DB, sectionName string, index int) (*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Group
	if err := transaction.WithContext(ctx).
		Where(`section_name = ? AND "index" = ?`, sectionName, index).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *groupRepo) CreateSection(ctx context.Context, tx *gorm.DB, section *types.Section) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(section).Error
}

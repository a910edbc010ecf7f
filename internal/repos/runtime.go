package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type RuntimeRepo interface {
	// Get returns the singleton runtime row, or nil if never written.
	Get(ctx context.Context, tx *gorm.DB) (*types.Runtime, error)
	Save(ctx context.Context, tx *gorm.DB, rt *types.Runtime) error
}

type runtimeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuntimeRepo(db *gorm.DB, baseLog *logger.Logger) RuntimeRepo {
	return &runtimeRepo{db: db, log: baseLog.With("repo", "RuntimeRepo")}
}

func (r *runtimeRepo) Get(ctx context.Context, tx *gorm.DB) (*types.Runtime, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Runtime
	if err := transaction.WithContext(ctx).
		Where("id = ?", types.RuntimeID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *runtimeRepo) Save(ctx context.Context, tx *gorm.DB, rt *types.Runtime) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	rt.ID = types.RuntimeID
	return transaction.WithContext(ctx).Save(rt).Error
}

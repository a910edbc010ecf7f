package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type ChannelRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Channel, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.Channel, error)
	// Upsert writes the channel keyed by id, merging only non-empty fields
	// into an existing row.
	Upsert(ctx context.Context, tx *gorm.DB, channel *types.Channel) error
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type channelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChannelRepo(db *gorm.DB, baseLog *logger.Logger) ChannelRepo {
	return &channelRepo{db: db, log: baseLog.With("repo", "ChannelRepo")}
}

func (r *channelRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Channel, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Channel
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

func (r *channelRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.Channel, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Channel
	if err := transaction.WithContext(ctx).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *channelRepo) Upsert(ctx context.Context, tx *gorm.DB, channel *types.Channel) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	existing, err := r.GetByID(ctx, transaction, channel.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		if channel.Name != "" {
			existing.Name = channel.Name
		}
		if channel.URL != "" {
			existing.URL = channel.URL
		}
		return transaction.WithContext(ctx).Save(existing).Error
	}
	return transaction.WithContext(ctx).Create(channel).Error
}

func (r *channelRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.Channel{}).Error
}

package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/db"
	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/prefs"
	"github.com/ltg-uic/beaconsync/internal/types"
)

// RuntimeUpdate carries the fields to write into a store's runtime pointer.
// Nil fields are left untouched.
type RuntimeUpdate struct {
	SectionName  *string
	GroupIndex   *int
	SpeciesIndex *int
	Action       *types.ActionType
}

// RuntimeService maintains the singleton runtime pointer per store. Group
// selection on the main store is mirrored into the preference store, where
// the channel-list URL synthesis reads it back.
type RuntimeService struct {
	log   *logger.Logger
	prefs *prefs.Store
}

func NewRuntimeService(baseLog *logger.Logger, preferences *prefs.Store) *RuntimeService {
	return &RuntimeService{
		log:   baseLog.With("service", "RuntimeService"),
		prefs: preferences,
	}
}

// Update writes each provided field independently, one transaction per
// field, creating the singleton row on first use. Matches the contract that
// a partial update never blocks the other fields.
func (s *RuntimeService) Update(ctx context.Context, t Target, upd RuntimeUpdate) error {
	type fieldWrite struct {
		provided bool
		apply    func(rt *types.Runtime)
	}

	writes := []fieldWrite{
		{upd.SectionName != nil, func(rt *types.Runtime) { rt.CurrentSectionName = upd.SectionName }},
		{upd.GroupIndex != nil, func(rt *types.Runtime) { rt.CurrentGroupIndex = upd.GroupIndex }},
		{upd.SpeciesIndex != nil, func(rt *types.Runtime) { rt.CurrentSpeciesIndex = upd.SpeciesIndex }},
		{upd.Action != nil, func(rt *types.Runtime) { rt.CurrentAction = string(*upd.Action) }},
	}

	for _, w := range writes {
		if !w.provided {
			continue
		}
		err := t.Store.Transaction(ctx, func(tx *gorm.DB) error {
			rt, err := t.Repos.Runtime.Get(ctx, tx)
			if err != nil {
				return err
			}
			if rt == nil {
				rt = &types.Runtime{ID: types.RuntimeID}
			}
			w.apply(rt)
			return t.Repos.Runtime.Save(ctx, tx, rt)
		})
		if err != nil {
			s.log.Error("runtime update failed", "store", t.Store.Role(), "error", err)
			return err
		}
	}

	if upd.GroupIndex != nil && s.prefs != nil && t.Store.Role() == db.RoleMain {
		s.prefs.Set(prefs.KeyGroupIndex, *upd.GroupIndex)
	}
	return nil
}

// Current returns the runtime pointer, or nil when never written.
func (s *RuntimeService) Current(ctx context.Context, t Target) (*types.Runtime, error) {
	return t.Repos.Runtime.Get(ctx, nil)
}

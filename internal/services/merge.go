package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

// MergeService reconciles inbound note payloads against a store:
// create-or-update keyed by identity, with child collections replaced
// wholesale on every merge. Full-replace loses concurrent child edits made
// between fetch and merge; that is the inherited reconciliation policy, kept
// for parity with the rest of the deployment.
type MergeService struct {
	log *logger.Logger
}

func NewMergeService(baseLog *logger.Logger) *MergeService {
	return &MergeService{log: baseLog.With("service", "MergeService")}
}

// ImportObservations merges every note in the payload into the target
// store. Each note gets its own transaction, mirroring per-record write
// scopes: a bad record rolls back alone without poisoning its neighbors.
func (s *MergeService) ImportObservations(ctx context.Context, t Target, sectionName string, notes []types.NotePayload) error {
	for i := range notes {
		note := notes[i]
		err := t.Store.Transaction(ctx, func(tx *gorm.DB) error {
			return s.mergeNote(ctx, tx, t, sectionName, note)
		})
		if err != nil {
			s.log.Error("observation merge failed", "store", t.Store.Role(), "id", note.ID, "error", err)
		}
	}
	return nil
}

func (s *MergeService) mergeNote(ctx context.Context, tx *gorm.DB, t Target, sectionName string, note types.NotePayload) error {
	id := note.ID
	if id == "" {
		if note.FromSpecies != nil && note.FromSpecies.Index != nil {
			id = types.ObservationID(note.GroupIndex, *note.FromSpecies.Index)
		} else {
			id = uuid.NewString()
		}
	}

	existing, err := t.Repos.Observations.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	if existing != nil {
		s.applyNoteFields(ctx, tx, t, existing, note)

		// Full-replace: drop every currently-owned child, then re-import
		// whatever the payload carries.
		if err := t.Repos.Relationships.DeleteForObservation(ctx, tx, existing.ID); err != nil {
			return err
		}
		if err := t.Repos.Preferences.DeleteForObservation(ctx, tx, existing.ID); err != nil {
			return err
		}
		if err := s.importRelationships(ctx, tx, t, existing, note.Relationships); err != nil {
			return err
		}
		if err := s.importPreferences(ctx, tx, t, existing, note.SpeciesPreferences); err != nil {
			return err
		}
		if err := t.Repos.Observations.Save(ctx, tx, existing); err != nil {
			return err
		}
		// An update can move the record onto a species another observation
		// already occupies; the slot holds one record either way.
		return s.enforceSlot(ctx, tx, t, sectionName, existing)
	}

	observation := &types.SpeciesObservation{
		ID:          id,
		SectionName: sectionName,
		GroupIndex:  note.GroupIndex,
	}
	s.applyNoteFields(ctx, tx, t, observation, note)
	if err := t.Repos.Observations.Save(ctx, tx, observation); err != nil {
		return err
	}
	if err := s.importRelationships(ctx, tx, t, observation, note.Relationships); err != nil {
		return err
	}
	if err := s.importPreferences(ctx, tx, t, observation, note.SpeciesPreferences); err != nil {
		return err
	}

	return s.enforceSlot(ctx, tx, t, sectionName, observation)
}

// enforceSlot keeps at most one observation per (section, group,
// fromSpecies): a stale occupant with a different identity is removed,
// children first.
func (s *MergeService) enforceSlot(ctx context.Context, tx *gorm.DB, t Target, sectionName string, observation *types.SpeciesObservation) error {
	if observation.FromSpeciesIndex == nil {
		return nil
	}
	group, err := t.Repos.Groups.Get(ctx, tx, sectionName, observation.GroupIndex)
	if err != nil {
		return err
	}
	if group == nil {
		return nil
	}

	occupants, err := t.Repos.Observations.AllForSectionGroup(ctx, tx, sectionName, group.Index)
	if err != nil {
		return err
	}
	for _, occupant := range occupants {
		if occupant.ID == observation.ID {
			continue
		}
		if occupant.FromSpeciesIndex == nil || *occupant.FromSpeciesIndex != *observation.FromSpeciesIndex {
			continue
		}
		s.log.Debug("evicting stale observation",
			"store", t.Store.Role(),
			"stale_id", occupant.ID,
			"replacement_id", observation.ID,
		)
		if err := t.Repos.Observations.DeleteWithChildren(ctx, tx, occupant.ID); err != nil {
			return err
		}
	}
	return nil
}

// applyNoteFields copies payload fields onto the record. Reference lookups
// that miss leave the field unset; a dangling index is not an error.
func (s *MergeService) applyNoteFields(ctx context.Context, tx *gorm.DB, t Target, observation *types.SpeciesObservation, note types.NotePayload) {
	observation.GroupIndex = note.GroupIndex
	observation.LastModified = time.Now()

	if note.IsSynced != nil {
		observation.IsSynced = note.IsSynced
	}
	if idx := resolveSpecies(ctx, tx, t, note.FromSpecies); idx != nil {
		observation.FromSpeciesIndex = idx
	}
	if idx := resolveEcosystem(ctx, tx, t, note.Ecosystem); idx != nil {
		observation.EcosystemIndex = idx
	}
}

func (s *MergeService) importRelationships(ctx context.Context, tx *gorm.DB, t Target, observation *types.SpeciesObservation, payloads []types.RelationshipPayload) error {
	for _, p := range payloads {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}

		relationship := &types.Relationship{
			ID:               id,
			ObservationID:    observation.ID,
			RelationshipType: p.RelationshipType,
			Note:             p.Note,
			LastModified:     time.Now(),
		}
		if idx := resolveSpecies(ctx, tx, t, p.ToSpecies); idx != nil {
			relationship.ToSpeciesIndex = idx
		}
		if idx := resolveEcosystem(ctx, tx, t, p.Ecosystem); idx != nil {
			relationship.EcosystemIndex = idx
		}
		if len(p.Attachments) > 0 {
			raw, err := json.Marshal(p.Attachments)
			if err != nil {
				return err
			}
			relationship.Attachments = datatypes.JSON(raw)
		}
		if err := t.Repos.Relationships.Save(ctx, tx, relationship); err != nil {
			return err
		}
	}
	return nil
}

func (s *MergeService) importPreferences(ctx context.Context, tx *gorm.DB, t Target, observation *types.SpeciesObservation, payloads []types.PreferencePayload) error {
	for _, p := range payloads {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}

		preference := &types.SpeciesPreference{
			ID:            id,
			ObservationID: observation.ID,
			Type:          p.Type,
			Value:         p.Value,
			LastModified:  time.Now(),
		}
		if p.Habitat != nil && p.Habitat.Index != nil {
			habitat, err := t.Repos.Habitats.GetByIndex(ctx, tx, *p.Habitat.Index)
			if err == nil && habitat != nil {
				preference.HabitatIndex = &habitat.Index
			}
		}
		if err := t.Repos.Preferences.Save(ctx, tx, preference); err != nil {
			return err
		}
	}
	return nil
}

// ApplySyncFlags performs the sync-flag-only update for a note-changed
// message. The observation is located by id when the payload carries one,
// otherwise by the (current section, current group, species) slot. The
// runtime pointer is read inside the same transaction as the write so the
// pointer cannot move between check and apply.
func (s *MergeService) ApplySyncFlags(ctx context.Context, t Target, speciesIndex int, notes []types.NotePayload) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		for _, note := range notes {
			if note.IsSynced == nil {
				continue
			}

			var observation *types.SpeciesObservation
			var err error
			if note.ID != "" {
				observation, err = t.Repos.Observations.GetByID(ctx, tx, note.ID)
			} else {
				rt, rtErr := t.Repos.Runtime.Get(ctx, tx)
				if rtErr != nil {
					return rtErr
				}
				if rt == nil || rt.CurrentSectionName == nil || rt.CurrentGroupIndex == nil {
					continue
				}
				observation, err = t.Repos.Observations.GetBySlot(ctx, tx, *rt.CurrentSectionName, *rt.CurrentGroupIndex, speciesIndex)
			}
			if err != nil {
				return err
			}
			if observation == nil {
				continue
			}

			observation.IsSynced = note.IsSynced
			if err := t.Repos.Observations.Save(ctx, tx, observation); err != nil {
				return err
			}
		}
		return nil
	})
}

func resolveSpecies(ctx context.Context, tx *gorm.DB, t Target, ref *types.IndexRef) *int {
	if ref == nil || ref.Index == nil {
		return nil
	}
	species, err := t.Repos.Species.GetByIndex(ctx, tx, *ref.Index)
	if err != nil || species == nil {
		return nil
	}
	return &species.Index
}

func resolveEcosystem(ctx context.Context, tx *gorm.DB, t Target, ref *types.IndexRef) *int {
	if ref == nil || ref.Index == nil {
		return nil
	}
	ecosystem, err := t.Repos.Ecosystems.GetByIndex(ctx, tx, *ref.Index)
	if err != nil || ecosystem == nil {
		return nil
	}
	return &ecosystem.Index
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

var (
	ErrNoRuntime     = errors.New("runtime pointer not set")
	ErrNoObservation = errors.New("no observation for current slot")
)

// RelationshipInput is one locally-authored relationship edit.
type RelationshipInput struct {
	RelationshipType string
	ToSpeciesIndex   int
	EcosystemIndex   *int
	Note             string
	Attachments      []string
}

// PreferenceInput is one locally-authored preference edit.
type PreferenceInput struct {
	Type         string
	Value        string
	HabitatIndex int
}

// ObservationService applies local edits. Every mutation resolves the
// observation through the store's runtime pointer, reuses the identity of
// an existing child occupying the same slot, clears the observation's
// synced flag, and bumps lastModified. The flag is set back only by a
// server echo on the note-changed channel.
type ObservationService struct {
	log      *logger.Logger
	runtime  *RuntimeService
	dispatch *Dispatcher
}

func NewObservationService(baseLog *logger.Logger, runtime *RuntimeService, dispatch *Dispatcher) *ObservationService {
	return &ObservationService{
		log:      baseLog.With("service", "ObservationService"),
		runtime:  runtime,
		dispatch: dispatch,
	}
}

func (s *ObservationService) AddRelationship(ctx context.Context, t Target, speciesIndex int, input RelationshipInput) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		observation, err := s.currentObservation(ctx, tx, t, speciesIndex)
		if err != nil {
			return err
		}

		existing, err := t.Repos.Relationships.GetBySlot(ctx, tx, observation.ID, input.RelationshipType, input.ToSpeciesIndex)
		if err != nil {
			return err
		}

		relationship := &types.Relationship{
			ID:               uuid.NewString(),
			ObservationID:    observation.ID,
			ToSpeciesIndex:   &input.ToSpeciesIndex,
			EcosystemIndex:   input.EcosystemIndex,
			RelationshipType: input.RelationshipType,
			Note:             input.Note,
			LastModified:     time.Now(),
		}
		if existing != nil {
			relationship.ID = existing.ID
		}
		if len(input.Attachments) > 0 {
			raw, err := json.Marshal(input.Attachments)
			if err != nil {
				return err
			}
			relationship.Attachments = datatypes.JSON(raw)
		}
		if err := t.Repos.Relationships.Save(ctx, tx, relationship); err != nil {
			return err
		}
		return s.touch(ctx, tx, t, observation)
	})
}

func (s *ObservationService) DeleteRelationship(ctx context.Context, t Target, speciesIndex int, relationshipType string, toSpeciesIndex int) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		observation, err := s.currentObservation(ctx, tx, t, speciesIndex)
		if err != nil {
			return err
		}

		existing, err := t.Repos.Relationships.GetBySlot(ctx, tx, observation.ID, relationshipType, toSpeciesIndex)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		if err := t.Repos.Relationships.Delete(ctx, tx, existing.ID); err != nil {
			return err
		}
		return s.touch(ctx, tx, t, observation)
	})
}

func (s *ObservationService) AddPreference(ctx context.Context, t Target, speciesIndex int, input PreferenceInput) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		observation, err := s.currentObservation(ctx, tx, t, speciesIndex)
		if err != nil {
			return err
		}

		existing, err := t.Repos.Preferences.GetByHabitat(ctx, tx, observation.ID, input.HabitatIndex)
		if err != nil {
			return err
		}

		preference := &types.SpeciesPreference{
			ID:            uuid.NewString(),
			ObservationID: observation.ID,
			Type:          input.Type,
			Value:         input.Value,
			HabitatIndex:  &input.HabitatIndex,
			LastModified:  time.Now(),
		}
		if existing != nil {
			preference.ID = existing.ID
		}
		if err := t.Repos.Preferences.Save(ctx, tx, preference); err != nil {
			return err
		}
		return s.touch(ctx, tx, t, observation)
	})
}

func (s *ObservationService) DeletePreference(ctx context.Context, t Target, speciesIndex, habitatIndex int) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		observation, err := s.currentObservation(ctx, tx, t, speciesIndex)
		if err != nil {
			return err
		}

		existing, err := t.Repos.Preferences.GetByHabitat(ctx, tx, observation.ID, habitatIndex)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		if err := t.Repos.Preferences.Delete(ctx, tx, existing.ID); err != nil {
			return err
		}
		return s.touch(ctx, tx, t, observation)
	})
}

// Sync pushes the current observation to the server when it carries unsent
// edits, then reports the presence condition either way. Fire-and-forget:
// the synced flag stays false until the server echoes the save.
func (s *ObservationService) Sync(ctx context.Context, t Target, main Target, speciesIndex int, condition string, action types.ActionType, place string) error {
	mainRT, err := s.runtime.Current(ctx, main)
	if err != nil {
		return err
	}
	if mainRT == nil || mainRT.CurrentGroupIndex == nil {
		return ErrNoRuntime
	}
	groupIndex := *mainRT.CurrentGroupIndex

	var observation *types.SpeciesObservation
	err = t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		observation, err = s.currentObservation(ctx, tx, t, speciesIndex)
		if err != nil {
			return err
		}
		return t.Repos.Observations.Preload(ctx, tx, observation)
	})
	if err != nil {
		return err
	}

	if observation.IsSynced != nil && !*observation.IsSynced {
		s.dispatch.ScheduleSave(speciesIndex, groupIndex, notePayloadFromObservation(observation))
	}
	s.dispatch.ScheduleCondition(condition, action, place, groupIndex, speciesIndex)
	return nil
}

// EnterTerminal points the terminal store at a species and reports the
// presence change against the main store's current group.
func (s *ObservationService) EnterTerminal(ctx context.Context, main, terminal Target, speciesIndex int, condition, place string) error {
	action := types.ActionEntered
	err := s.runtime.Update(ctx, terminal, RuntimeUpdate{
		SpeciesIndex: &speciesIndex,
		Action:       &action,
	})
	if err != nil {
		return err
	}

	mainRT, err := s.runtime.Current(ctx, main)
	if err != nil {
		return err
	}
	if mainRT == nil || mainRT.CurrentGroupIndex == nil {
		return ErrNoRuntime
	}
	s.dispatch.ScheduleCondition(condition, action, place, *mainRT.CurrentGroupIndex, speciesIndex)
	return nil
}

// ClearTerminal reports the exit for whichever species was in view, wipes
// the terminal store's observations, and records the exit on its runtime.
func (s *ObservationService) ClearTerminal(ctx context.Context, main, terminal Target, condition string) error {
	terminalRT, err := s.runtime.Current(ctx, terminal)
	if err != nil {
		return err
	}
	if terminalRT == nil || terminalRT.CurrentSpeciesIndex == nil {
		return ErrNoRuntime
	}
	oldSpeciesIndex := *terminalRT.CurrentSpeciesIndex

	mainRT, err := s.runtime.Current(ctx, main)
	if err != nil {
		return err
	}
	if mainRT != nil && mainRT.CurrentGroupIndex != nil {
		s.dispatch.ScheduleCondition(condition, types.ActionExited, "", *mainRT.CurrentGroupIndex, oldSpeciesIndex)
	}

	err = terminal.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return terminal.Repos.Observations.DeleteAll(ctx, tx)
	})
	if err != nil {
		return err
	}

	action := types.ActionExited
	return s.runtime.Update(ctx, terminal, RuntimeUpdate{
		SpeciesIndex: &oldSpeciesIndex,
		Action:       &action,
	})
}

// SaveExperiment upserts the edited experiment and pushes it to the server
// when its ecosystem reference resolves.
func (s *ObservationService) SaveExperiment(ctx context.Context, t Target, payload types.ExperimentPayload) error {
	if payload.Ecosystem == nil || payload.Question == "" {
		return errors.New("experiment needs ecosystem and question")
	}

	experiment := &types.Experiment{
		ID:             types.ExperimentID(*payload.Ecosystem, payload.Question),
		EcosystemIndex: payload.Ecosystem,
		Question:       payload.Question,
		Manipulations:  payload.Manipulations,
		Reasoning:      payload.Reasoning,
		Results:        payload.Results,
		Conclusions:    payload.Conclusions,
	}
	if len(payload.Figures) > 0 {
		raw, err := json.Marshal(payload.Figures)
		if err != nil {
			return err
		}
		experiment.Attachments = datatypes.JSON(raw)
	}

	err := t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return t.Repos.Experiments.Save(ctx, tx, experiment)
	})
	if err != nil {
		return err
	}

	rt, err := s.runtime.Current(ctx, t)
	if err != nil {
		return err
	}
	groupIndex := -1
	if rt != nil && rt.CurrentGroupIndex != nil {
		groupIndex = *rt.CurrentGroupIndex
	}
	s.dispatch.ScheduleExperiment(groupIndex, payload)
	return nil
}

// RequestGroupNotes asks the server for the full note state of the store's
// current group.
func (s *ObservationService) RequestGroupNotes(ctx context.Context, t Target) error {
	rt, err := s.runtime.Current(ctx, t)
	if err != nil {
		return err
	}
	if rt == nil || rt.CurrentGroupIndex == nil {
		return ErrNoRuntime
	}
	s.dispatch.QueryAllNotesForGroup(*rt.CurrentGroupIndex)
	return nil
}

// RequestSpeciesNotes asks the server for the full note state of the
// store's current species.
func (s *ObservationService) RequestSpeciesNotes(ctx context.Context, t Target) error {
	rt, err := s.runtime.Current(ctx, t)
	if err != nil {
		return err
	}
	if rt == nil || rt.CurrentSpeciesIndex == nil {
		return ErrNoRuntime
	}
	s.dispatch.QueryAllNotesForSpecies(*rt.CurrentSpeciesIndex)
	return nil
}

// DeleteAllObservations wipes the store's observations and children.
func (s *ObservationService) DeleteAllObservations(ctx context.Context, t Target) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return t.Repos.Observations.DeleteAll(ctx, tx)
	})
}

// DeleteExperiments wipes the store's experiments.
func (s *ObservationService) DeleteExperiments(ctx context.Context, t Target) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return t.Repos.Experiments.DeleteAll(ctx, tx)
	})
}

// DeleteChannels wipes the store's channel mirror.
func (s *ObservationService) DeleteChannels(ctx context.Context, t Target) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return t.Repos.Channels.DeleteAll(ctx, tx)
	})
}

// DeleteAllUserData wipes observations, experiments, and channels in one
// transaction, keeping the seeded catalog intact.
func (s *ObservationService) DeleteAllUserData(ctx context.Context, t Target) error {
	return t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := t.Repos.Observations.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := t.Repos.Experiments.DeleteAll(ctx, tx); err != nil {
			return err
		}
		return t.Repos.Channels.DeleteAll(ctx, tx)
	})
}

// currentObservation resolves the edit target from the runtime pointer and
// the slot index, inside the caller's transaction.
func (s *ObservationService) currentObservation(ctx context.Context, tx *gorm.DB, t Target, speciesIndex int) (*types.SpeciesObservation, error) {
	rt, err := t.Repos.Runtime.Get(ctx, tx)
	if err != nil {
		return nil, err
	}
	if rt == nil || rt.CurrentSectionName == nil || rt.CurrentGroupIndex == nil {
		return nil, ErrNoRuntime
	}
	observation, err := t.Repos.Observations.GetBySlot(ctx, tx, *rt.CurrentSectionName, *rt.CurrentGroupIndex, speciesIndex)
	if err != nil {
		return nil, err
	}
	if observation == nil {
		return nil, ErrNoObservation
	}
	return observation, nil
}

// touch marks the observation dirty after a local edit.
func (s *ObservationService) touch(ctx context.Context, tx *gorm.DB, t Target, observation *types.SpeciesObservation) error {
	synced := false
	observation.IsSynced = &synced
	observation.LastModified = time.Now()
	observation.Relationships = nil
	observation.Preferences = nil
	return t.Repos.Observations.Save(ctx, tx, observation)
}

// notePayloadFromObservation converts a preloaded observation into the wire
// shape used by save-note requests.
func notePayloadFromObservation(observation *types.SpeciesObservation) types.NotePayload {
	note := types.NotePayload{
		ID:         observation.ID,
		GroupIndex: observation.GroupIndex,
		IsSynced:   observation.IsSynced,
	}
	if observation.FromSpeciesIndex != nil {
		note.FromSpecies = &types.IndexRef{Index: observation.FromSpeciesIndex}
	}
	if observation.EcosystemIndex != nil {
		note.Ecosystem = &types.IndexRef{Index: observation.EcosystemIndex}
	}

	for _, relationship := range observation.Relationships {
		p := types.RelationshipPayload{
			ID:               relationship.ID,
			RelationshipType: relationship.RelationshipType,
			Note:             relationship.Note,
		}
		if relationship.ToSpeciesIndex != nil {
			p.ToSpecies = &types.IndexRef{Index: relationship.ToSpeciesIndex}
		}
		if relationship.EcosystemIndex != nil {
			p.Ecosystem = &types.IndexRef{Index: relationship.EcosystemIndex}
		}
		if len(relationship.Attachments) > 0 {
			var attachments []string
			if err := json.Unmarshal(relationship.Attachments, &attachments); err == nil {
				p.Attachments = attachments
			}
		}
		note.Relationships = append(note.Relationships, p)
	}

	for _, preference := range observation.Preferences {
		p := types.PreferencePayload{
			ID:    preference.ID,
			Type:  preference.Type,
			Value: preference.Value,
		}
		if preference.HabitatIndex != nil {
			p.Habitat = &types.IndexRef{Index: preference.HabitatIndex}
		}
		note.SpeciesPreferences = append(note.SpeciesPreferences, p)
	}
	return note
}

package services

import (
	"context"
	"testing"

	"github.com/ltg-uic/beaconsync/internal/db"
	"github.com/ltg-uic/beaconsync/internal/testutil"
	"github.com/ltg-uic/beaconsync/internal/types"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func notePayload(id string, groupIndex, fromSpecies int) types.NotePayload {
	return types.NotePayload{
		ID:          id,
		GroupIndex:  groupIndex,
		FromSpecies: &types.IndexRef{Index: intPtr(fromSpecies)},
	}
}

func TestImportObservationsCreatesWithServerID(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	note := notePayload("srv-1", 1, 2)
	note.Ecosystem = &types.IndexRef{Index: intPtr(0)}
	note.Relationships = []types.RelationshipPayload{
		{RelationshipType: string(types.RelationshipProducer), ToSpecies: &types.IndexRef{Index: intPtr(3)}, Note: "eats"},
	}
	note.SpeciesPreferences = []types.PreferencePayload{
		{Type: string(types.PreferenceHabitat), Value: "likes", Habitat: &types.IndexRef{Index: intPtr(1)}},
	}

	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{note}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	observation, err := target.Repos.Observations.GetByID(ctx, nil, "srv-1")
	if err != nil || observation == nil {
		t.Fatalf("expected observation srv-1, got %v err %v", observation, err)
	}
	if observation.SectionName != "6BM" || observation.GroupIndex != 1 {
		t.Fatalf("unexpected placement: %+v", observation)
	}
	if observation.FromSpeciesIndex == nil || *observation.FromSpeciesIndex != 2 {
		t.Fatalf("fromSpecies not resolved: %+v", observation)
	}
	if observation.EcosystemIndex == nil || *observation.EcosystemIndex != 0 {
		t.Fatalf("ecosystem not resolved: %+v", observation)
	}

	relationships, err := target.Repos.Relationships.ForObservation(ctx, nil, "srv-1")
	if err != nil || len(relationships) != 1 {
		t.Fatalf("expected 1 relationship, got %d err %v", len(relationships), err)
	}
	if relationships[0].ID == "" {
		t.Fatalf("relationship should get a generated id")
	}
	preferences, err := target.Repos.Preferences.ForObservation(ctx, nil, "srv-1")
	if err != nil || len(preferences) != 1 {
		t.Fatalf("expected 1 preference, got %d err %v", len(preferences), err)
	}
	if preferences[0].HabitatIndex == nil || *preferences[0].HabitatIndex != 1 {
		t.Fatalf("habitat not resolved: %+v", preferences[0])
	}
}

func TestImportObservationsSynthesizesIDWhenAbsent(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	note := notePayload("", 2, 4)
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{note}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	observation, err := target.Repos.Observations.GetByID(ctx, nil, types.ObservationID(2, 4))
	if err != nil || observation == nil {
		t.Fatalf("expected synthesized id %q, got %v err %v", types.ObservationID(2, 4), observation, err)
	}
}

func TestImportObservationsFullReplacesChildren(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	first := notePayload("srv-1", 0, 1)
	first.Relationships = []types.RelationshipPayload{
		{ID: "rel-a", RelationshipType: string(types.RelationshipProducer), ToSpecies: &types.IndexRef{Index: intPtr(2)}},
		{ID: "rel-b", RelationshipType: string(types.RelationshipConsumer), ToSpecies: &types.IndexRef{Index: intPtr(3)}},
	}
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{first}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	second := notePayload("srv-1", 0, 1)
	second.Relationships = []types.RelationshipPayload{
		{ID: "rel-c", RelationshipType: string(types.RelationshipMutual), ToSpecies: &types.IndexRef{Index: intPtr(4)}},
	}
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{second}); err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	relationships, err := target.Repos.Relationships.ForObservation(ctx, nil, "srv-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(relationships) != 1 || relationships[0].ID != "rel-c" {
		t.Fatalf("expected only rel-c to survive, got %+v", relationships)
	}
}

func TestImportObservationsEvictsStaleSlotOccupant(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	local := notePayload(types.ObservationID(1, 2), 1, 2)
	local.Relationships = []types.RelationshipPayload{
		{ID: "rel-local", RelationshipType: string(types.RelationshipProducer), ToSpecies: &types.IndexRef{Index: intPtr(0)}},
	}
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{local}); err != nil {
		t.Fatalf("local import failed: %v", err)
	}

	// Server assigns a real id to the same slot; the synthesized record is
	// stale and must go, children included.
	server := notePayload("srv-9", 1, 2)
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{server}); err != nil {
		t.Fatalf("server import failed: %v", err)
	}

	stale, err := target.Repos.Observations.GetByID(ctx, nil, types.ObservationID(1, 2))
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stale != nil {
		t.Fatalf("stale observation should be evicted, got %+v", stale)
	}
	orphans, err := target.Repos.Relationships.ForObservation(ctx, nil, types.ObservationID(1, 2))
	if err != nil {
		t.Fatalf("orphan lookup failed: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("stale children should be removed, got %+v", orphans)
	}

	survivor, err := target.Repos.Observations.GetBySlot(ctx, nil, "6BM", 1, 2)
	if err != nil || survivor == nil {
		t.Fatalf("slot should hold the server record: %v err %v", survivor, err)
	}
	if survivor.ID != "srv-9" {
		t.Fatalf("expected srv-9 in slot, got %q", survivor.ID)
	}
}

func TestImportObservationsEvictsWhenUpdateMovesSpecies(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	first := notePayload("srv-a", 1, 2)
	second := notePayload("srv-b", 1, 3)
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{first, second}); err != nil {
		t.Fatalf("initial import failed: %v", err)
	}

	// srv-b moves onto species 2, the slot srv-a holds. The update path
	// must evict the prior occupant the same way a create does.
	moved := notePayload("srv-b", 1, 2)
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{moved}); err != nil {
		t.Fatalf("moving import failed: %v", err)
	}

	occupants, err := target.Repos.Observations.AllForSectionGroup(ctx, nil, "6BM", 1)
	if err != nil {
		t.Fatalf("group listing failed: %v", err)
	}
	holders := 0
	for _, occupant := range occupants {
		if occupant.FromSpeciesIndex != nil && *occupant.FromSpeciesIndex == 2 {
			holders++
		}
	}
	if holders != 1 {
		t.Fatalf("expected one observation on species 2, got %d", holders)
	}

	evicted, err := target.Repos.Observations.GetByID(ctx, nil, "srv-a")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if evicted != nil {
		t.Fatalf("srv-a should be evicted, got %+v", evicted)
	}
	survivor, err := target.Repos.Observations.GetBySlot(ctx, nil, "6BM", 1, 2)
	if err != nil || survivor == nil || survivor.ID != "srv-b" {
		t.Fatalf("slot should hold srv-b: %v err %v", survivor, err)
	}
}

func TestImportObservationsUnresolvableReferenceIsNonFatal(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	note := notePayload("srv-2", 0, 99)
	note.Ecosystem = &types.IndexRef{Index: intPtr(42)}
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{note}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	observation, err := target.Repos.Observations.GetByID(ctx, nil, "srv-2")
	if err != nil || observation == nil {
		t.Fatalf("observation should exist: %v err %v", observation, err)
	}
	if observation.FromSpeciesIndex != nil {
		t.Fatalf("dangling species reference should stay unset, got %v", *observation.FromSpeciesIndex)
	}
	if observation.EcosystemIndex != nil {
		t.Fatalf("dangling ecosystem reference should stay unset, got %v", *observation.EcosystemIndex)
	}
}

func TestApplySyncFlagsByID(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	note := notePayload("srv-1", 0, 1)
	note.IsSynced = boolPtr(false)
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{note}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	before, _ := target.Repos.Observations.GetByID(ctx, nil, "srv-1")
	echo := types.NotePayload{ID: "srv-1", IsSynced: boolPtr(true)}
	if err := merge.ApplySyncFlags(ctx, target, 1, []types.NotePayload{echo}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	after, err := target.Repos.Observations.GetByID(ctx, nil, "srv-1")
	if err != nil || after == nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if after.IsSynced == nil || !*after.IsSynced {
		t.Fatalf("sync flag should be set")
	}
	if !after.LastModified.Equal(before.LastModified) {
		t.Fatalf("sync flag apply must not touch lastModified")
	}
}

func TestApplySyncFlagsBySlotUsesRuntime(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	testutil.SetRuntime(t, target, "6BM", 1, 2)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	note := notePayload("srv-5", 1, 2)
	note.IsSynced = boolPtr(false)
	if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{note}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	echo := types.NotePayload{IsSynced: boolPtr(true)}
	if err := merge.ApplySyncFlags(ctx, target, 2, []types.NotePayload{echo}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	after, err := target.Repos.Observations.GetByID(ctx, nil, "srv-5")
	if err != nil || after == nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if after.IsSynced == nil || !*after.IsSynced {
		t.Fatalf("sync flag should be set via slot lookup")
	}
}

func TestImportObservationsIsIdempotent(t *testing.T) {
	target := testutil.Target(t, db.RoleMain)
	testutil.SeedCatalog(t, target)
	merge := NewMergeService(testutil.Logger(t))
	ctx := context.Background()

	note := notePayload("srv-1", 0, 3)
	note.Relationships = []types.RelationshipPayload{
		{ID: "rel-1", RelationshipType: string(types.RelationshipCompetes), ToSpecies: &types.IndexRef{Index: intPtr(5)}},
	}

	for i := 0; i < 3; i++ {
		if err := merge.ImportObservations(ctx, target, "6BM", []types.NotePayload{note}); err != nil {
			t.Fatalf("import %d failed: %v", i, err)
		}
	}

	all, err := target.Repos.Observations.All(ctx, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(all))
	}
	relationships, err := target.Repos.Relationships.ForObservation(ctx, nil, "srv-1")
	if err != nil || len(relationships) != 1 {
		t.Fatalf("expected 1 relationship after repeat imports, got %d err %v", len(relationships), err)
	}
}

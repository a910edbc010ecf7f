package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ltg-uic/beaconsync/internal/bus"
	"github.com/ltg-uic/beaconsync/internal/db"
	"github.com/ltg-uic/beaconsync/internal/prefs"
	"github.com/ltg-uic/beaconsync/internal/session"
	"github.com/ltg-uic/beaconsync/internal/testutil"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type routerFixture struct {
	router   *Router
	session  *session.Session
	prefs    *prefs.Store
	runtime  *RuntimeService
	main     Target
	terminal Target
	fake     *fakeBus
	dispatch *Dispatcher
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	log := testutil.Logger(t)

	main := testutil.Target(t, db.RoleMain)
	terminal := testutil.Target(t, db.RoleTerminal)
	testutil.SeedCatalog(t, main)
	testutil.SeedCatalog(t, terminal)

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.yaml"), log)
	if err != nil {
		t.Fatalf("prefs open failed: %v", err)
	}

	fake := newFakeBus()
	dispatch := NewDispatcher(log, fake)
	sess := session.New(log)
	runtime := NewRuntimeService(log, store)
	merge := NewMergeService(log)

	router := NewRouter(RouterConfig{
		Log:      log,
		Session:  sess,
		Prefs:    store,
		BusCfg:   &bus.Config{Broker: "localhost:6379", AppID: "wallcology", RunID: "6BM"},
		Main:     main,
		Terminal: terminal,
		Merge:    merge,
		Runtime:  runtime,
		Dispatch: dispatch,
	})

	return &routerFixture{
		router:   router,
		session:  sess,
		prefs:    store,
		runtime:  runtime,
		main:     main,
		terminal: terminal,
		fake:     fake,
		dispatch: dispatch,
	}
}

func rawMessage(t *testing.T, channel string, payload any) bus.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return bus.Message{Channel: channel, Payload: raw}
}

func noteChannelMessage(t *testing.T, channel string, speciesIndex, groupIndex int, notes []types.NotePayload) bus.Message {
	t.Helper()
	return rawMessage(t, channel, types.NoteMessage{
		Header: &types.Header{SpeciesIndex: &speciesIndex, GroupIndex: &groupIndex},
		Notes:  notes,
	})
}

func TestRouterCurrentRunAdvancesLogin(t *testing.T) {
	f := newRouterFixture(t)
	startDispatcher(t, f.dispatch)
	ctx := context.Background()

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelGetCurrentRun, "6BM"))

	if name, _ := f.prefs.GetString(prefs.KeySectionName); name != "6BM" {
		t.Fatalf("section name not persisted, got %q", name)
	}
	if f.session.Login() != session.LoginSection {
		t.Fatalf("login should advance to section, got %v", f.session.Login())
	}
	call := f.fake.wait(t)
	if call.Topic != bus.ChannelGetRoster {
		t.Fatalf("expected roster query next, got %q", call.Topic)
	}
}

func TestRouterRosterKeepsGroupEntry(t *testing.T) {
	f := newRouterFixture(t)
	startDispatcher(t, f.dispatch)
	ctx := context.Background()

	roster := []types.RosterEntry{
		{Type: "teacher", PrintNames: []string{"ms frizzle"}},
		{Type: "group", PrintNames: []string{"team one", "team two"}},
	}
	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelGetRoster, roster))

	names, ok := f.prefs.GetStrings(prefs.KeyCurrentRoster)
	if !ok || len(names) != 2 || names[0] != "team one" {
		t.Fatalf("group roster not persisted: %v", names)
	}
	if f.session.Login() != session.LoginRoster {
		t.Fatalf("login should advance to roster, got %v", f.session.Login())
	}
	call := f.fake.wait(t)
	if call.Topic != bus.ChannelActivityAndRoom {
		t.Fatalf("expected activity query next, got %q", call.Topic)
	}
}

func TestRouterActivityRequiresBothFields(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelActivityAndRoom, types.ActivityAndRoom{Activity: "observe"}))

	if _, ok := f.prefs.GetString(prefs.KeyActivity); ok {
		t.Fatalf("partial activity payload must not persist")
	}
	if f.session.Login() != session.LoginStart {
		t.Fatalf("login must not advance, got %v", f.session.Login())
	}
}

func TestRouterChannelListFiltersAndUpserts(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.prefs.Set(prefs.KeySectionName, "6BM")
	f.prefs.Set(prefs.KeyGroupIndex, 1)

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelChannelList, []string{"classaccount", "species-notes", "habitat-map"}))

	kept, _ := f.prefs.GetStrings(prefs.KeyChannelList)
	if len(kept) != 2 {
		t.Fatalf("classaccount should be filtered, got %v", kept)
	}
	channels, err := f.main.Repos.Channels.All(ctx, nil)
	if err != nil {
		t.Fatalf("channel list failed: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channel records, got %d", len(channels))
	}
	for _, channel := range channels {
		if channel.ID == "classaccount" {
			t.Fatalf("classaccount must not be upserted")
		}
		if channel.URL == "" {
			t.Fatalf("channel %q should get a synthesized url", channel.ID)
		}
	}
	if f.session.Login() != session.LoginReady {
		t.Fatalf("login should complete, got %v", f.session.Login())
	}
}

func TestRuntimeGroupUpdateFeedsChannelURLs(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.prefs.Set(prefs.KeySectionName, "6BM")

	// Selecting a group on the main store must land in the preference
	// store, where the channel URL synthesis picks it up.
	group := 2
	if err := f.runtime.Update(ctx, f.main, RuntimeUpdate{GroupIndex: &group}); err != nil {
		t.Fatalf("runtime update failed: %v", err)
	}
	stored, ok := f.prefs.GetInt(prefs.KeyGroupIndex)
	if !ok || stored != 2 {
		t.Fatalf("group index should be persisted, got %d ok=%v", stored, ok)
	}

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelChannelList, []string{"species-notes"}))

	channel, err := f.main.Repos.Channels.GetByID(ctx, nil, "species-notes")
	if err != nil || channel == nil {
		t.Fatalf("channel lookup failed: %v", err)
	}
	if !strings.Contains(channel.URL, "INSTANCE=2") {
		t.Fatalf("url should carry the selected group, got %q", channel.URL)
	}
}

func TestRuntimeGroupUpdateOnTerminalStoreLeavesPrefsAlone(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	group := 1
	if err := f.runtime.Update(ctx, f.terminal, RuntimeUpdate{GroupIndex: &group}); err != nil {
		t.Fatalf("runtime update failed: %v", err)
	}
	if _, ok := f.prefs.GetInt(prefs.KeyGroupIndex); ok {
		t.Fatalf("terminal-store updates must not touch the group preference")
	}
}

func TestRouterChannelNamesRenameByID(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	if err := f.main.Repos.Channels.Upsert(ctx, nil, &types.Channel{ID: "species-notes", URL: "http://example"}); err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelChannelNames, []types.ChannelNamePayload{
		{Name: "species-notes", PrintName: "Species Notes"},
	}))

	channel, err := f.main.Repos.Channels.GetByID(ctx, nil, "species-notes")
	if err != nil || channel == nil {
		t.Fatalf("channel lookup failed: %v", err)
	}
	if channel.Name != "Species Notes" {
		t.Fatalf("channel name not updated, got %q", channel.Name)
	}
	if channel.URL != "http://example" {
		t.Fatalf("rename must not clobber url, got %q", channel.URL)
	}
}

func TestRouterSpeciesNamesRenamePositionally(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.session.SetLogin(session.LoginReady)

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelSpeciesNames, []string{"ant", "beetle"}))

	species, err := f.main.Repos.Species.All(ctx, nil)
	if err != nil {
		t.Fatalf("species list failed: %v", err)
	}
	if species[0].Name != "ant" || species[1].Name != "beetle" {
		t.Fatalf("positional rename failed: %q %q", species[0].Name, species[1].Name)
	}
	// Remaining species keep their seeded names.
	if species[2].Name != "species-2" {
		t.Fatalf("unexpected rename of species 2: %q", species[2].Name)
	}
}

func TestRouterSpeciesNamesSkipMainDuringEarlyLogin(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.session.SetLogin(session.LoginSection)

	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelSpeciesNames, []string{"ant"}))

	species, err := f.main.Repos.Species.All(ctx, nil)
	if err != nil {
		t.Fatalf("species list failed: %v", err)
	}
	if species[0].Name != "species-0" {
		t.Fatalf("rename must be skipped before provisioning, got %q", species[0].Name)
	}
	if names, ok := f.prefs.GetStrings(prefs.KeySpeciesNames); !ok || len(names) != 1 {
		t.Fatalf("names should still be persisted, got %v", names)
	}
}

func TestRouterGroupImportRequiresMatchingGroup(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.session.SetMode(session.ModePlaceGroup)
	testutil.SetRuntime(t, f.main, "6BM", 1, 0)

	notes := []types.NotePayload{notePayload("srv-1", 2, 0)}
	f.router.ProcessUpdate(ctx, noteChannelMessage(t, bus.ChannelAllNotesWithGroup, 0, 2, notes))

	all, err := f.main.Repos.Observations.All(ctx, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("mismatched group must import nothing, got %d", len(all))
	}

	f.router.ProcessUpdate(ctx, noteChannelMessage(t, bus.ChannelAllNotesWithGroup, 0, 1, []types.NotePayload{notePayload("srv-2", 1, 0)}))
	observation, err := f.main.Repos.Observations.GetByID(ctx, nil, "srv-2")
	if err != nil || observation == nil {
		t.Fatalf("matching group should import, got %v err %v", observation, err)
	}
	if observation.SectionName != "6BM" {
		t.Fatalf("import should use runtime section, got %q", observation.SectionName)
	}
}

func TestRouterNoteChangesEchoSetsSyncFlag(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.session.SetMode(session.ModePlaceGroup)
	testutil.SetRuntime(t, f.main, "6BM", 1, 0)

	merge := NewMergeService(testutil.Logger(t))
	note := notePayload("srv-1", 1, 3)
	note.IsSynced = boolPtr(false)
	if err := merge.ImportObservations(ctx, f.main, "6BM", []types.NotePayload{note}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	echo := []types.NotePayload{{ID: "srv-1", IsSynced: boolPtr(true)}}
	f.router.ProcessUpdate(ctx, noteChannelMessage(t, bus.ChannelNoteChanges, 3, 1, echo))

	after, err := f.main.Repos.Observations.GetByID(ctx, nil, "srv-1")
	if err != nil || after == nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if after.IsSynced == nil || !*after.IsSynced {
		t.Fatalf("echo should set the sync flag")
	}
}

func TestRouterTerminalModeImportsMatchingSpecies(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.session.SetMode(session.ModePlaceTerminal)
	testutil.SetRuntime(t, f.terminal, "6BM", 0, 2)

	notes := []types.NotePayload{notePayload("srv-7", 0, 2)}
	f.router.ProcessUpdate(ctx, noteChannelMessage(t, bus.ChannelAllNotesWithSpecies, 2, 0, notes))

	observation, err := f.terminal.Repos.Observations.GetByID(ctx, nil, "srv-7")
	if err != nil || observation == nil {
		t.Fatalf("terminal import failed: %v err %v", observation, err)
	}
	mainAll, _ := f.main.Repos.Observations.All(ctx, nil)
	if len(mainAll) != 0 {
		t.Fatalf("terminal message must not touch the main store")
	}

	// Wrong species is dropped.
	f.router.ProcessUpdate(ctx, noteChannelMessage(t, bus.ChannelAllNotesWithSpecies, 4, 0, []types.NotePayload{notePayload("srv-8", 0, 4)}))
	other, _ := f.terminal.Repos.Observations.GetByID(ctx, nil, "srv-8")
	if other != nil {
		t.Fatalf("mismatched species must be dropped")
	}
}

func TestRouterAllExperimentsTakeLastVersion(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	payload := map[string]any{
		"experiments": [][][]types.ExperimentPayload{
			{
				{
					{Ecosystem: intPtr(0), Question: "q1", Results: "draft"},
					{Ecosystem: intPtr(0), Question: "q1", Results: "final"},
				},
			},
		},
	}
	f.router.ProcessUpdate(ctx, rawMessage(t, bus.ChannelGetAllExperiments, payload))

	experiment, err := f.main.Repos.Experiments.GetByID(ctx, nil, types.ExperimentID(0, "q1"))
	if err != nil || experiment == nil {
		t.Fatalf("experiment lookup failed: %v", err)
	}
	if experiment.Results != "final" {
		t.Fatalf("expected last version to win, got %q", experiment.Results)
	}
}

func TestRouterUnknownChannelIsIgnored(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.session.SetMode(session.ModePlaceGroup)

	f.router.ProcessUpdate(ctx, rawMessage(t, "mystery", map[string]any{"x": 1}))

	all, err := f.main.Repos.Observations.All(ctx, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("unknown channel must be a no-op")
	}
}

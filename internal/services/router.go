package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/bus"
	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/prefs"
	"github.com/ltg-uic/beaconsync/internal/session"
	"github.com/ltg-uic/beaconsync/internal/types"
)

// Router maps inbound bus messages to store mutations. Provisioning
// channels are handled regardless of mode; note channels go through the
// mode-specific admission check and are silently dropped when the message
// does not concern the group or species currently in view.
type Router struct {
	log      *logger.Logger
	session  *session.Session
	prefs    *prefs.Store
	busCfg   *bus.Config
	main     Target
	terminal Target
	merge    *MergeService
	runtime  *RuntimeService
	dispatch *Dispatcher
}

type RouterConfig struct {
	Log      *logger.Logger
	Session  *session.Session
	Prefs    *prefs.Store
	BusCfg   *bus.Config
	Main     Target
	Terminal Target
	Merge    *MergeService
	Runtime  *RuntimeService
	Dispatch *Dispatcher
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		log:      cfg.Log.With("service", "Router"),
		session:  cfg.Session,
		prefs:    cfg.Prefs,
		busCfg:   cfg.BusCfg,
		main:     cfg.Main,
		terminal: cfg.Terminal,
		merge:    cfg.Merge,
		runtime:  cfg.Runtime,
		dispatch: cfg.Dispatch,
	}
}

// Handle enqueues the message behind the dispatch queue so inbound
// handling and outbound publishes share one serialized worker.
func (r *Router) Handle(m bus.Message) {
	r.dispatch.Post(func(ctx context.Context) {
		r.ProcessUpdate(ctx, m)
	})
}

// ProcessUpdate applies one inbound message. Never returns an error:
// malformed payloads and mismatched admission checks drop the message,
// store failures are logged, and the stream moves on.
func (r *Router) ProcessUpdate(ctx context.Context, m bus.Message) {
	if r.handleProvisioning(ctx, m) {
		return
	}

	switch r.session.Mode() {
	case session.ModePlaceGroup:
		r.handleGroupView(ctx, m)
	case session.ModeObjectGroup, session.ModeCloudGroup:
		if m.Channel == bus.ChannelAllNotesWithSpecies {
			r.importForTerminalSpecies(ctx, m)
			return
		}
		r.handleGroupView(ctx, m)
	case session.ModePlaceTerminal:
		switch m.Channel {
		case bus.ChannelAllNotesWithSpecies, bus.ChannelNoteChanges:
			r.importForTerminalSpecies(ctx, m)
		}
	}
}

// handleProvisioning processes the mode-independent channels. Returns true
// when the message was consumed.
func (r *Router) handleProvisioning(ctx context.Context, m bus.Message) bool {
	switch m.Channel {
	case bus.ChannelGetCurrentRun:
		var sectionName string
		if err := json.Unmarshal(m.Payload, &sectionName); err != nil || sectionName == "" {
			r.log.Debug("dropping malformed current-run payload")
			return true
		}
		r.prefs.Set(prefs.KeySectionName, sectionName)
		r.session.SetLogin(session.LoginSection)
		r.dispatch.QueryRoster()
		return true

	case bus.ChannelGetRoster:
		var roster []types.RosterEntry
		if err := json.Unmarshal(m.Payload, &roster); err != nil {
			r.log.Debug("dropping malformed roster payload")
			return true
		}
		for _, entry := range roster {
			if entry.Type != "group" {
				continue
			}
			r.prefs.Set(prefs.KeyCurrentRoster, entry.PrintNames)
			r.session.SetLogin(session.LoginRoster)
			r.dispatch.QueryActivityAndRoom()
			break
		}
		return true

	case bus.ChannelActivityAndRoom:
		var current types.ActivityAndRoom
		if err := json.Unmarshal(m.Payload, &current); err != nil {
			r.log.Debug("dropping malformed activity payload")
			return true
		}
		if current.Activity == "" || current.Room == "" {
			return true
		}
		r.prefs.Set(prefs.KeyActivity, current.Activity)
		r.prefs.Set(prefs.KeyRoom, current.Room)
		r.session.SetLogin(session.LoginActivityAndRoom)
		r.dispatch.QueryChannelList(current.Activity)
		return true

	case bus.ChannelChannelList:
		r.handleChannelList(ctx, m.Payload)
		return true

	case bus.ChannelChannelNames:
		r.handleChannelNames(ctx, m.Payload)
		return true

	case bus.ChannelSpeciesNames:
		r.handleSpeciesNames(ctx, m.Payload)
		return true

	case bus.ChannelGetExperiments:
		var payloads []types.ExperimentPayload
		if err := json.Unmarshal(m.Payload, &payloads); err != nil {
			r.log.Debug("dropping malformed experiments payload")
			return true
		}
		r.importExperiments(ctx, payloads)
		return true

	case bus.ChannelGetAllExperiments:
		// Nested by ecosystem, experiment, version; only the last version
		// of each experiment is current.
		var wrapper struct {
			Experiments [][][]types.ExperimentPayload `json:"experiments"`
		}
		if err := json.Unmarshal(m.Payload, &wrapper); err != nil {
			r.log.Debug("dropping malformed all-experiments payload")
			return true
		}
		var latest []types.ExperimentPayload
		for _, ecosystem := range wrapper.Experiments {
			for _, versions := range ecosystem {
				if len(versions) > 0 {
					latest = append(latest, versions[len(versions)-1])
				}
			}
		}
		r.importExperiments(ctx, latest)
		return true
	}
	return false
}

// handleChannelList ingests the channel roster for the activity, filtering
// the shared class account, synthesizing each channel's dashboard URL, and
// completing provisioning.
func (r *Router) handleChannelList(ctx context.Context, payload json.RawMessage) {
	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		r.log.Debug("dropping malformed channel-list payload")
		return
	}

	sectionName, _ := r.prefs.GetString(prefs.KeySectionName)
	groupIndex, _ := r.prefs.GetInt(prefs.KeyGroupIndex)

	var kept []string
	for _, name := range names {
		if name == "" || name == "classaccount" {
			continue
		}
		kept = append(kept, name)

		channel := &types.Channel{ID: name, Name: name}
		if sectionName != "" {
			channel.URL = fmt.Sprintf(
				"http://%s:57880/%s/%s/runs/%s/index.html?broker=%s&app_id=%s&run_id=%s&TYPE=group&INSTANCE=%d",
				r.busCfg.Broker, r.busCfg.AppID, sectionName, name,
				r.busCfg.Broker, r.busCfg.AppID, sectionName, groupIndex,
			)
		}
		if err := r.main.Repos.Channels.Upsert(ctx, nil, channel); err != nil {
			r.log.Error("channel upsert failed", "id", name, "error", err)
		}
	}

	r.prefs.Set(prefs.KeyChannelList, kept)
	r.session.SetLogin(session.LoginReady)
	r.session.Start()
}

func (r *Router) handleChannelNames(ctx context.Context, payload json.RawMessage) {
	var entries []types.ChannelNamePayload
	if err := json.Unmarshal(payload, &entries); err != nil {
		r.log.Debug("dropping malformed channel-names payload")
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		names = append(names, entry.Name)
		channel := &types.Channel{ID: entry.Name, Name: entry.PrintName}
		if err := r.main.Repos.Channels.Upsert(ctx, nil, channel); err != nil {
			r.log.Error("channel rename failed", "id", entry.Name, "error", err)
		}
	}
	r.prefs.Set(prefs.KeyChannelNames, names)
}

// handleSpeciesNames renames the seeded species by positional index. The
// main store is skipped while provisioning has not progressed past the
// section step; terminal-facing modes rename the terminal store too.
func (r *Router) handleSpeciesNames(ctx context.Context, payload json.RawMessage) {
	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		r.log.Debug("dropping malformed species-names payload")
		return
	}

	if r.session.Login() > session.LoginSection {
		r.renameSpecies(ctx, r.main, names)
	}
	r.prefs.Set(prefs.KeySpeciesNames, names)

	switch r.session.Mode() {
	case session.ModeObjectGroup, session.ModeCloudGroup, session.ModePlaceTerminal:
		r.renameSpecies(ctx, r.terminal, names)
	}
}

func (r *Router) renameSpecies(ctx context.Context, t Target, names []string) {
	err := t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		species, err := t.Repos.Species.All(ctx, tx)
		if err != nil {
			return err
		}
		for i, name := range names {
			if i >= len(species) {
				break
			}
			if err := t.Repos.Species.Rename(ctx, tx, species[i].Index, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("species rename failed", "store", t.Store.Role(), "error", err)
	}
}

func (r *Router) importExperiments(ctx context.Context, payloads []types.ExperimentPayload) {
	t := r.main
	err := t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		for _, p := range payloads {
			// Identity needs both parts; a record without them cannot be
			// upserted deterministically.
			if p.Ecosystem == nil || p.Question == "" {
				continue
			}
			ecosystem, err := t.Repos.Ecosystems.GetByIndex(ctx, tx, *p.Ecosystem)
			if err != nil {
				return err
			}

			experiment := &types.Experiment{
				ID:            types.ExperimentID(*p.Ecosystem, p.Question),
				Question:      p.Question,
				Manipulations: p.Manipulations,
				Reasoning:     p.Reasoning,
				Results:       p.Results,
				Conclusions:   p.Conclusions,
			}
			if ecosystem != nil {
				experiment.EcosystemIndex = &ecosystem.Index
			}
			if len(p.Figures) > 0 {
				raw, err := json.Marshal(p.Figures)
				if err != nil {
					return err
				}
				experiment.Attachments = datatypes.JSON(raw)
			}
			if err := t.Repos.Experiments.Save(ctx, tx, experiment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("experiment import failed", "error", err)
	}
}

// handleGroupView applies the group-facing note channels against the main
// store: note-changed messages carry sync-flag echoes, all-notes messages
// carry the full group state.
func (r *Router) handleGroupView(ctx context.Context, m bus.Message) {
	switch m.Channel {
	case bus.ChannelNoteChanges, bus.ChannelAllNotesWithGroup:
	default:
		return
	}

	message, ok := decodeNoteMessage(m.Payload)
	if !ok || message.Header == nil || message.Header.GroupIndex == nil || message.Header.SpeciesIndex == nil {
		r.log.Debug("dropping note message without header", "channel", m.Channel)
		return
	}

	rt, err := r.runtime.Current(ctx, r.main)
	if err != nil {
		r.log.Error("runtime read failed", "error", err)
		return
	}
	if rt == nil || rt.CurrentGroupIndex == nil {
		return
	}
	if *message.Header.GroupIndex != *rt.CurrentGroupIndex {
		return
	}

	switch m.Channel {
	case bus.ChannelNoteChanges:
		if err := r.merge.ApplySyncFlags(ctx, r.main, *message.Header.SpeciesIndex, message.Notes); err != nil {
			r.log.Error("sync flag apply failed", "error", err)
		}
	case bus.ChannelAllNotesWithGroup:
		if rt.CurrentSectionName == nil {
			return
		}
		if err := r.merge.ImportObservations(ctx, r.main, *rt.CurrentSectionName, message.Notes); err != nil {
			r.log.Error("group import failed", "error", err)
		}
	}
}

// importForTerminalSpecies runs the full import into the terminal store for
// messages addressed to the species currently on the terminal.
func (r *Router) importForTerminalSpecies(ctx context.Context, m bus.Message) {
	message, ok := decodeNoteMessage(m.Payload)
	if !ok || message.Header == nil || message.Header.SpeciesIndex == nil || message.Header.GroupIndex == nil {
		r.log.Debug("dropping note message without header", "channel", m.Channel)
		return
	}

	rt, err := r.runtime.Current(ctx, r.terminal)
	if err != nil {
		r.log.Error("runtime read failed", "error", err)
		return
	}
	if rt == nil || rt.CurrentSpeciesIndex == nil || rt.CurrentSectionName == nil {
		return
	}
	if *message.Header.SpeciesIndex != *rt.CurrentSpeciesIndex {
		return
	}

	if err := r.merge.ImportObservations(ctx, r.terminal, *rt.CurrentSectionName, message.Notes); err != nil {
		r.log.Error("terminal import failed", "error", err)
	}
}

func decodeNoteMessage(payload json.RawMessage) (types.NoteMessage, bool) {
	var message types.NoteMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return message, false
	}
	if message.Notes == nil {
		return message, false
	}
	return message, true
}

package services

import (
	"context"
	"time"

	"github.com/ltg-uic/beaconsync/internal/bus"
	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

const dispatchQueueDepth = 256

// Dispatcher serializes every outbound publish and every inbound handler
// behind a single worker goroutine. One queue, one consumer: messages are
// applied in arrival order and no two handlers ever race on a store.
//
// Delivery is fire-and-forget. A publish that fails is logged and dropped;
// the next full-state query or inbound echo repairs whatever was missed.
type Dispatcher struct {
	log   *logger.Logger
	bus   bus.Bus
	queue chan func(ctx context.Context)
}

func NewDispatcher(baseLog *logger.Logger, b bus.Bus) *Dispatcher {
	return &Dispatcher{
		log:   baseLog.With("service", "Dispatcher"),
		bus:   b,
		queue: make(chan func(ctx context.Context), dispatchQueueDepth),
	}
}

// Post enqueues a task for the worker. A full queue drops the task rather
// than blocking the caller; dropped work is recoverable via re-query.
func (d *Dispatcher) Post(task func(ctx context.Context)) {
	select {
	case d.queue <- task:
	default:
		d.log.Warn("dispatch queue full, dropping task")
	}
}

// Run drains the queue until the context is cancelled. Call from exactly
// one goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher running")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return ctx.Err()
		case task := <-d.queue:
			task(ctx)
		}
	}
}

// ScheduleSave publishes one observation to the server as a save-note
// request, wrapped in the header the server routes on.
func (d *Dispatcher) ScheduleSave(speciesIndex, groupIndex int, note types.NotePayload) {
	d.Post(func(ctx context.Context) {
		message := types.NoteMessage{
			Header: &types.Header{
				SpeciesIndex: &speciesIndex,
				GroupIndex:   &groupIndex,
			},
			Notes: []types.NotePayload{note},
		}
		if err := d.bus.AsyncRequest(ctx, bus.TopicSaveNote, message, "save_note"); err != nil {
			d.log.Warn("save_note publish failed", "error", err)
		}
	})
}

// ScheduleCondition reports a presence change (a terminal entered or
// exited) as a save-place request.
func (d *Dispatcher) ScheduleCondition(condition string, action types.ActionType, place string, groupIndex, speciesIndex int) {
	d.Post(func(ctx context.Context) {
		payload := map[string]any{
			"condition":    condition,
			"action":       string(action),
			"place":        place,
			"groupIndex":   groupIndex,
			"speciesIndex": speciesIndex,
			"timestamp":    time.Now().UnixMilli(),
		}
		if err := d.bus.AsyncRequest(ctx, bus.TopicSavePlace, payload, "save_place"); err != nil {
			d.log.Warn("save_place publish failed", "error", err)
		}
	})
}

// ScheduleExperiment pushes edited experiment fields back to the server.
func (d *Dispatcher) ScheduleExperiment(groupIndex int, experiment types.ExperimentPayload) {
	d.Post(func(ctx context.Context) {
		payload := map[string]any{
			"groupIndex": groupIndex,
			"experiment": experiment,
		}
		if err := d.bus.AsyncRequest(ctx, bus.TopicUpdateExperiment, payload, "update_experiment"); err != nil {
			d.log.Warn("update_experiment publish failed", "error", err)
		}
	})
}

// ForceSync asks every peer of the group to re-pull its state.
func (d *Dispatcher) ForceSync(groupIndex int) {
	d.Post(func(ctx context.Context) {
		if err := d.bus.Publish(ctx, bus.TopicForceSync, map[string]any{"groupIndex": groupIndex}); err != nil {
			d.log.Warn("forceSync publish failed", "error", err)
		}
	})
}

// Provisioning and full-state queries. Each publishes a request whose
// response arrives later on the matching subscribed channel.

func (d *Dispatcher) QueryCurrentRun() {
	d.query(bus.ChannelGetCurrentRun, struct{}{})
}

func (d *Dispatcher) QueryRoster() {
	d.query(bus.ChannelGetRoster, struct{}{})
}

func (d *Dispatcher) QueryActivityAndRoom() {
	d.query(bus.ChannelActivityAndRoom, struct{}{})
}

// QueryChannelList requests the channel roster for the current activity.
func (d *Dispatcher) QueryChannelList(activity string) {
	d.query(bus.ChannelChannelList, map[string]any{"activity": activity, "type": "group"})
}

func (d *Dispatcher) QueryChannelNames() {
	d.query(bus.ChannelChannelNames, struct{}{})
}

func (d *Dispatcher) QuerySpeciesNames() {
	d.query(bus.ChannelSpeciesNames, struct{}{})
}

func (d *Dispatcher) QueryExperiments(groupIndex int) {
	d.query(bus.ChannelGetExperiments, []int{groupIndex})
}

func (d *Dispatcher) QueryAllExperiments() {
	d.query(bus.ChannelGetAllExperiments, struct{}{})
}

func (d *Dispatcher) QueryAllNotesForGroup(groupIndex int) {
	d.query(bus.ChannelAllNotesWithGroup, map[string]any{"groupIndex": groupIndex})
}

func (d *Dispatcher) QueryAllNotesForSpecies(speciesIndex int) {
	d.query(bus.ChannelAllNotesWithSpecies, map[string]any{"speciesIndex": speciesIndex})
}

func (d *Dispatcher) query(channel string, payload any) {
	d.Post(func(ctx context.Context) {
		if err := d.bus.AsyncRequest(ctx, channel, payload, channel); err != nil {
			d.log.Warn("query publish failed", "channel", channel, "error", err)
		}
	})
}

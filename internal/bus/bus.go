package bus

import (
	"context"
	"encoding/json"
)

// Channel vocabulary. The router recognizes exactly this closed set; anything
// else is dropped.
const (
	ChannelNoteChanges         = "noteChanges"
	ChannelAllNotesWithGroup   = "allNotesWithGroup"
	ChannelAllNotesWithSpecies = "allNotesWithSpecies"
	ChannelGetCurrentRun       = "getCurrentRun"
	ChannelGetRoster           = "getRoster"
	ChannelActivityAndRoom     = "currentActivityAndRoom"
	ChannelChannelList         = "channelList"
	ChannelChannelNames        = "channelNames"
	ChannelSpeciesNames        = "speciesNames"
	ChannelGetExperiments      = "getExperiments"
	ChannelGetAllExperiments   = "getAllExperiments"
)

// Outbound-only topics.
const (
	TopicSaveNote         = "save_note"
	TopicSavePlace        = "save_place"
	TopicUpdateExperiment = "update_experiment"
	TopicForceSync        = "forceSync"
)

// Message is one inbound bus message. Payload stays raw until the router
// knows, from the channel name, which shape to decode.
type Message struct {
	Channel     string          `json:"channel"`
	Payload     json.RawMessage `json:"payload"`
	ComponentID string          `json:"componentId,omitempty"`
	ResourceID  string          `json:"resourceId,omitempty"`
}

// Bus is the message-bus adapter. AsyncRequest never returns a response
// directly; responses arrive later through the forwarder, correlated by
// request name (which doubles as the response channel).
type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	AsyncRequest(ctx context.Context, topic string, payload any, requestName string) error
	StartForwarder(ctx context.Context, onMsg func(m Message)) error
	Close() error
}

package types

// Wire payloads for note sync messages. These are decoded at the bus
// boundary; a payload that fails to decode is dropped by the router.

type IndexRef struct {
	Index *int `json:"index"`
}

type Header struct {
	SpeciesIndex *int `json:"speciesIndex"`
	GroupIndex   *int `json:"groupIndex"`
}

type NoteMessage struct {
	Header *Header       `json:"header"`
	Notes  []NotePayload `json:"notes"`
}

type NotePayload struct {
	ID                 string                `json:"id,omitempty"`
	FromSpecies        *IndexRef             `json:"fromSpecies,omitempty"`
	Ecosystem          *IndexRef             `json:"ecosystem,omitempty"`
	GroupIndex         int                   `json:"groupIndex"`
	IsSynced           *bool                 `json:"isSynced,omitempty"`
	Relationships      []RelationshipPayload `json:"relationships,omitempty"`
	SpeciesPreferences []PreferencePayload   `json:"speciesPreferences,omitempty"`
}

type RelationshipPayload struct {
	ID               string    `json:"id,omitempty"`
	ToSpecies        *IndexRef `json:"toSpecies,omitempty"`
	Ecosystem        *IndexRef `json:"ecosystem,omitempty"`
	RelationshipType string    `json:"relationshipType"`
	Note             string    `json:"note,omitempty"`
	Attachments      []string  `json:"attachments,omitempty"`
}

type PreferencePayload struct {
	ID      string    `json:"id,omitempty"`
	Type    string    `json:"type"`
	Value   string    `json:"value,omitempty"`
	Habitat *IndexRef `json:"habitat,omitempty"`
}

// ExperimentPayload is the shape of one experiment version as delivered by
// the experiments channels. Ecosystem arrives as a bare index.
type ExperimentPayload struct {
	Ecosystem     *int     `json:"ecosystem"`
	Question      string   `json:"question,omitempty"`
	Manipulations string   `json:"manipulations,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
	Results       string   `json:"results,omitempty"`
	Conclusions   string   `json:"conclusions,omitempty"`
	Figures       []string `json:"figures,omitempty"`
}

// RosterEntry is one entry of a get-roster response; the group roster is the
// entry whose type is "group".
type RosterEntry struct {
	Type       string   `json:"type"`
	PrintNames []string `json:"printNames,omitempty"`
}

// ChannelNamePayload is one entry of a channel-names response.
type ChannelNamePayload struct {
	Name      string `json:"name"`
	PrintName string `json:"printName,omitempty"`
}

// ActivityAndRoom is the current-activity-and-room response body.
type ActivityAndRoom struct {
	Activity string `json:"activity,omitempty"`
	Room     string `json:"room,omitempty"`
}

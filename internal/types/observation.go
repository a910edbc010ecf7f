package types

import (
	"fmt"
	"time"
)

// SpeciesObservation is a student-recorded note about one species within a
// group context. Identity is the server-assigned id, or
// "{groupIndex}-{fromSpeciesIndex}" when the server never assigned one.
//
// Invariant enforced by the merge engine, not by a DB constraint: at most
// one observation per (section, group, fromSpecies) at any quiescent point.
type SpeciesObservation struct {
	ID               string     `gorm:"column:id;primaryKey" json:"id"`
	SectionName      string     `gorm:"column:section_name;index:idx_observation_slot" json:"sectionName"`
	GroupIndex       int        `gorm:"column:group_index;index:idx_observation_slot" json:"groupIndex"`
	FromSpeciesIndex *int       `gorm:"column:from_species_index;index:idx_observation_slot" json:"fromSpeciesIndex,omitempty"`
	EcosystemIndex   *int       `gorm:"column:ecosystem_index" json:"ecosystemIndex,omitempty"`
	IsSynced         *bool      `gorm:"column:is_synced" json:"isSynced,omitempty"`
	LastModified     time.Time  `gorm:"column:last_modified" json:"lastModified"`

	Relationships []*Relationship      `gorm:"foreignKey:ObservationID;references:ID" json:"relationships,omitempty"`
	Preferences   []*SpeciesPreference `gorm:"foreignKey:ObservationID;references:ID" json:"speciesPreferences,omitempty"`
}

func (SpeciesObservation) TableName() string { return "species_observation" }

// ObservationID synthesizes the fallback identity for payloads without an id.
func ObservationID(groupIndex, fromSpeciesIndex int) string {
	return fmt.Sprintf("%d-%d", groupIndex, fromSpeciesIndex)
}

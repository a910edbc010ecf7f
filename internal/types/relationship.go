package types

import (
	"time"

	"gorm.io/datatypes"
)

type RelationshipType string

const (
	RelationshipProducer RelationshipType = "producer"
	RelationshipConsumer RelationshipType = "consumer"
	RelationshipMutual   RelationshipType = "mutual"
	RelationshipCompetes RelationshipType = "competes"
)

// Relationship belongs to exactly one observation. Deleting the parent does
// not cascade here; the merge engine removes stale children explicitly.
type Relationship struct {
	ID               string         `gorm:"column:id;primaryKey" json:"id"`
	ObservationID    string         `gorm:"column:observation_id;index" json:"-"`
	ToSpeciesIndex   *int           `gorm:"column:to_species_index" json:"toSpeciesIndex,omitempty"`
	EcosystemIndex   *int           `gorm:"column:ecosystem_index" json:"ecosystemIndex,omitempty"`
	RelationshipType string         `gorm:"column:relationship_type" json:"relationshipType"`
	Note             string         `gorm:"column:note" json:"note,omitempty"`
	Attachments      datatypes.JSON `gorm:"column:attachments" json:"attachments,omitempty"`
	LastModified     time.Time      `gorm:"column:last_modified" json:"lastModified"`
}

func (Relationship) TableName() string { return "relationship" }

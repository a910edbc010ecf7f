package types

import "time"

type PreferenceType string

const (
	PreferenceTrophicLevel        PreferenceType = "trophicLevel"
	PreferenceBehaviors           PreferenceType = "behaviors"
	PreferencePredationResistance PreferenceType = "predationResistance"
	PreferenceHeatSensitivity     PreferenceType = "heatSensitivity"
	PreferenceHumiditySensitivity PreferenceType = "humiditySensitivity"
	PreferenceHabitat             PreferenceType = "habitatPreference"
)

type SpeciesPreference struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	ObservationID string    `gorm:"column:observation_id;index" json:"-"`
	Type          string    `gorm:"column:type" json:"type"`
	Value         string    `gorm:"column:value" json:"value,omitempty"`
	HabitatIndex  *int      `gorm:"column:habitat_index" json:"habitatIndex,omitempty"`
	LastModified  time.Time `gorm:"column:last_modified" json:"lastModified"`
}

func (SpeciesPreference) TableName() string { return "species_preference" }

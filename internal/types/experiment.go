package types

import (
	"fmt"

	"gorm.io/datatypes"
)

type Experiment struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	EcosystemIndex *int           `gorm:"column:ecosystem_index" json:"ecosystemIndex,omitempty"`
	Question       string         `gorm:"column:question" json:"question,omitempty"`
	Manipulations  string         `gorm:"column:manipulations" json:"manipulations,omitempty"`
	Reasoning      string         `gorm:"column:reasoning" json:"reasoning,omitempty"`
	Results        string         `gorm:"column:results" json:"results,omitempty"`
	Conclusions    string         `gorm:"column:conclusions" json:"conclusions,omitempty"`
	Attachments    datatypes.JSON `gorm:"column:attachments" json:"figures,omitempty"`
}

func (Experiment) TableName() string { return "experiment" }

// ExperimentID derives the natural identity of an experiment.
func ExperimentID(ecosystemIndex int, question string) string {
	return fmt.Sprintf("%d-%s", ecosystemIndex, question)
}

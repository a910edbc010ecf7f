package types

// ActionType describes the latest terminal enter/exit action recorded in the
// runtime pointer.
type ActionType string

const (
	ActionEntered ActionType = "entered"
	ActionExited  ActionType = "exited"
	ActionOther   ActionType = "other"
)

// RuntimeID is the fixed key of the per-store runtime singleton.
const RuntimeID = 1

// Runtime is the per-store pointer describing which section/group/species is
// currently in view. Exactly one row per store; fields are written
// independently and nil means "never set".
type Runtime struct {
	ID                  int     `gorm:"column:id;primaryKey" json:"-"`
	CurrentSectionName  *string `gorm:"column:current_section_name" json:"currentSectionName,omitempty"`
	CurrentGroupIndex   *int    `gorm:"column:current_group_index" json:"currentGroupIndex,omitempty"`
	CurrentSpeciesIndex *int    `gorm:"column:current_species_index" json:"currentSpeciesIndex,omitempty"`
	CurrentAction       string  `gorm:"column:current_action" json:"currentAction,omitempty"`
}

func (Runtime) TableName() string { return "runtime" }

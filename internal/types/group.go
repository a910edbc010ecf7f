package types

// Group identity is its index within a section. Observations reference the
// slot by (section, group index) rather than by a surrogate key.
type Group struct {
	SectionName string `gorm:"column:section_name;primaryKey" json:"sectionName"`
	Index       int    `gorm:"column:index;primaryKey" json:"index"`
	Name        string `gorm:"column:name" json:"name"`
}

func (Group) TableName() string { return "group" }

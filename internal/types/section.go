package types

type Section struct {
	Name    string `gorm:"column:name;primaryKey" json:"name"`
	Teacher string `gorm:"column:teacher" json:"teacher,omitempty"`

	Groups  []*Group  `gorm:"foreignKey:SectionName;references:Name" json:"groups,omitempty"`
	Members []*Member `gorm:"foreignKey:SectionName;references:Name" json:"members,omitempty"`
}

func (Section) TableName() string { return "section" }

type Member struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	SectionName string `gorm:"column:section_name;index" json:"sectionName"`
	Name        string `gorm:"column:name" json:"name"`
}

func (Member) TableName() string { return "member" }

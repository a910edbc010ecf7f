package types

type Habitat struct {
	Index int    `gorm:"column:index;primaryKey" json:"index"`
	Name  string `gorm:"column:name" json:"name"`
}

func (Habitat) TableName() string { return "habitat" }

package types

type Ecosystem struct {
	Index       int    `gorm:"column:index;primaryKey" json:"index"`
	Temperature int    `gorm:"column:temperature" json:"temperature"`
	PipeLength  int    `gorm:"column:pipe_length" json:"pipelength"`
	BrickArea   int    `gorm:"column:brick_area" json:"brickarea"`
	Name        string `gorm:"column:name" json:"name"`
}

func (Ecosystem) TableName() string { return "ecosystem" }

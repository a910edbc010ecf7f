package types

// Species is seeded from the simulation configuration and is immutable
// afterwards except for renames carried by species-names messages.
type Species struct {
	Index    int    `gorm:"column:index;primaryKey" json:"index"`
	Name     string `gorm:"column:name" json:"name"`
	Color    string `gorm:"column:color" json:"color,omitempty"`
	ImageURL string `gorm:"column:image_url" json:"imgUrl,omitempty"`
}

func (Species) TableName() string { return "species" }

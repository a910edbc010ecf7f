package types

// Channel mirrors a named bus topic the device knows about, upserted by id
// from channel-names and channel-list messages.
type Channel struct {
	ID   string `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name" json:"name,omitempty"`
	URL  string `gorm:"column:url" json:"url,omitempty"`
}

func (Channel) TableName() string { return "channel" }

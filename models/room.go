package models

import "time"

// Room is a named collaborative session. RoomID is the public, shareable id;
// ID is only used for references between tables.
type Room struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RoomID    string    `gorm:"column:room_id;size:36;uniqueIndex;not null" json:"roomId"`
	Name      string    `gorm:"column:name;size:100;uniqueIndex;not null" json:"name"`
	CreatorID uint      `gorm:"column:creator_id;not null;index" json:"createdBy"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Members []RoomMember `gorm:"foreignKey:RoomRef" json:"-"`
}

func (Room) TableName() string {
	return "rooms"
}

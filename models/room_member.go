package models

import "time"

// RoomMember is one row of a room's member set. The composite unique index
// makes inserts behave as a set-add.
type RoomMember struct {
	ID       uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RoomRef  uint      `gorm:"column:room_ref;not null;uniqueIndex:idx_room_members_pair" json:"-"`
	UserID   uint      `gorm:"column:user_id;not null;uniqueIndex:idx_room_members_pair;index" json:"userId"`
	JoinedAt time.Time `gorm:"column:joined_at;autoCreateTime" json:"joinedAt"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

package models

import "time"

// User is the identity record. Rooms is the only column this service
// mutates on its own.
type User struct {
	ID        uint        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username  string      `gorm:"column:username;size:100;not null" json:"username"`
	Email     string      `gorm:"column:email;size:100;uniqueIndex;not null" json:"email"`
	Password  string      `gorm:"column:password;size:255;not null" json:"-"` // bcrypt hash
	Rooms     RoomHistory `gorm:"column:rooms;type:text" json:"rooms"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}

// Profile is the public view of a user handed to other room members.
type Profile struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Email: u.Email}
}

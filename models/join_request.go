package models

import "time"

type JoinStatus string

const (
	JoinPending  JoinStatus = "pending"
	JoinAccepted JoinStatus = "accepted"
	JoinRejected JoinStatus = "rejected"
)

// JoinStatuses lists every status a request can be in.
var JoinStatuses = []JoinStatus{JoinPending, JoinAccepted, JoinRejected}

// ActiveStatuses returns the statuses for which Active is true.
func ActiveStatuses() []JoinStatus {
	var out []JoinStatus
	for _, s := range JoinStatuses {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}

// Active reports whether the status still blocks a new request for the
// same room and requester.
func (s JoinStatus) Active() bool {
	return s == JoinPending || s == JoinAccepted
}

// JoinRequest records a non-member's intent to enter a room.
//
// idx_join_requests_active is partial: at most one non-rejected row may exist
// per (room_ref, requester_id). Rejected rows fall out of the index so the
// requester can ask again.
type JoinRequest struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoomRef     uint       `gorm:"column:room_ref;not null;uniqueIndex:idx_join_requests_active,where:status <> 'rejected'" json:"-"`
	RequesterID uint       `gorm:"column:requester_id;not null;uniqueIndex:idx_join_requests_active,where:status <> 'rejected'" json:"requesterId"`
	Status      JoinStatus `gorm:"column:status;size:20;not null;default:'pending';index" json:"status"`
	ReviewerID  *uint      `gorm:"column:reviewer_id" json:"reviewerId,omitempty"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (JoinRequest) TableName() string {
	return "join_requests"
}

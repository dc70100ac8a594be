package access

import (
	"context"

	"github.com/vnkhanh/coderoom-server/models"
)

// RoomRepository is the membership store.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	FindByRoomID(ctx context.Context, roomID string) (*models.Room, error)
	FindByPK(ctx context.Context, id uint) (*models.Room, error)
	FindByRoomIDs(ctx context.Context, roomIDs []string) ([]models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	Delete(ctx context.Context, id uint) error
	AddMember(ctx context.Context, roomRef, userID uint) error
	RemoveMember(ctx context.Context, roomRef, userID uint) (bool, error)
	IsMember(ctx context.Context, roomRef, userID uint) (bool, error)
	MemberIDs(ctx context.Context, roomRef uint) ([]uint, error)
}

// RequestLedger holds join requests. It has no policy of its own.
type RequestLedger interface {
	Create(ctx context.Context, req *models.JoinRequest) error
	FindByID(ctx context.Context, id uint) (*models.JoinRequest, error)
	FindActive(ctx context.Context, roomRef, requesterID uint) (*models.JoinRequest, error)
	ListPending(ctx context.Context, roomRef uint) ([]models.JoinRequest, error)
	Transition(ctx context.Context, id uint, from, to models.JoinStatus, reviewerID uint) error
	DeleteByRoom(ctx context.Context, roomRef uint) error
}

// Directory resolves user profiles and keeps their room history.
type Directory interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	RecordVisit(ctx context.Context, userID uint, roomID string) error
}

// Transactor runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

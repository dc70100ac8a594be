package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/vnkhanh/coderoom-server/models"
	"github.com/vnkhanh/coderoom-server/store"
)

// Capability is what a caller may do in a room. Higher values include the
// lower ones.
type Capability int

const (
	CapStranger Capability = iota
	CapMember
	CapCreator
)

func (c Capability) String() string {
	switch c {
	case CapCreator:
		return "creator"
	case CapMember:
		return "member"
	default:
		return "stranger"
	}
}

// Authorize resolves the room and the caller's capability in it.
func (s *Service) Authorize(ctx context.Context, roomID string, callerID uint) (*models.Room, Capability, error) {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return nil, CapStranger, err
	}
	capability, err := s.capabilityIn(ctx, room, callerID)
	if err != nil {
		return nil, CapStranger, err
	}
	return room, capability, nil
}

// RequireMember returns the room if the caller is its creator or a member.
func (s *Service) RequireMember(ctx context.Context, roomID string, callerID uint) (*models.Room, error) {
	room, capability, err := s.Authorize(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if capability < CapMember {
		return nil, fmt.Errorf("%w: user %d is not a member of room %s", ErrNotAuthorized, callerID, roomID)
	}
	return room, nil
}

func (s *Service) capabilityIn(ctx context.Context, room *models.Room, callerID uint) (Capability, error) {
	if room.CreatorID == callerID {
		return CapCreator, nil
	}
	member, err := s.rooms.IsMember(ctx, room.ID, callerID)
	if err != nil {
		return CapStranger, err
	}
	if member {
		return CapMember, nil
	}
	return CapStranger, nil
}

func (s *Service) room(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.rooms.FindByRoomID(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

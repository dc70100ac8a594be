// Package access owns room access control: who may see, enter and manage a
// room, and the join-request approval workflow.
package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vnkhanh/coderoom-server/models"
	"github.com/vnkhanh/coderoom-server/store"
)

// JoinOutcome tells the requester what to do next.
type JoinOutcome string

const (
	// OutcomeAlreadyMember: go straight to the room.
	OutcomeAlreadyMember JoinOutcome = "already_member"
	// OutcomePending: wait for the creator.
	OutcomePending JoinOutcome = "pending"
	// OutcomeAccepted: the request was approved, call Join.
	OutcomeAccepted JoinOutcome = "accepted"
	// OutcomeCreated: a new pending request was filed.
	OutcomeCreated JoinOutcome = "created"
)

type JoinResult struct {
	Outcome JoinOutcome         `json:"status"`
	Request *models.JoinRequest `json:"request,omitempty"`
}

type PendingRequest struct {
	RequestID uint           `json:"requestId"`
	Requester models.Profile `json:"requester"`
	CreatedAt time.Time      `json:"createdAt"`
}

type RoomDetails struct {
	RoomID    string         `json:"roomId"`
	Name      string         `json:"name"`
	Creator   models.Profile `json:"createdBy"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Service struct {
	rooms    RoomRepository
	requests RequestLedger
	users    Directory
	tx       Transactor
}

func NewService(rooms RoomRepository, requests RequestLedger, users Directory, tx Transactor) *Service {
	return &Service{rooms: rooms, requests: requests, users: users, tx: tx}
}

// NewServiceFromStore wires the service to the gorm-backed stores.
func NewServiceFromStore(s *store.Store) *Service {
	return NewService(s.Rooms, s.Requests, s.Users, s.Tx)
}

func (s *Service) CreateRoom(ctx context.Context, name string, creatorID uint) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}

	room := &models.Room{
		RoomID:    uuid.NewString(),
		Name:      name,
		CreatorID: creatorID,
	}
	err := s.rooms.Create(ctx, room)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: %q", ErrRoomNameTaken, name)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"room_id": room.RoomID, "user_id": creatorID}).Info("Room created")
	return room, nil
}

func (s *Service) RequestJoin(ctx context.Context, roomID string, requesterID uint) (*JoinResult, error) {
	room, capability, err := s.Authorize(ctx, roomID, requesterID)
	if err != nil {
		return nil, err
	}
	if capability >= CapMember {
		return &JoinResult{Outcome: OutcomeAlreadyMember}, nil
	}

	active, err := s.requests.FindActive(ctx, room.ID, requesterID)
	switch {
	case err == nil:
		return activeResult(active), nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	req := &models.JoinRequest{RoomRef: room.ID, RequesterID: requesterID, Status: models.JoinPending}
	err = s.requests.Create(ctx, req)
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent call filed the request first.
		active, findErr := s.requests.FindActive(ctx, room.ID, requesterID)
		if findErr != nil {
			return nil, fmt.Errorf("%w: room %s user %d", ErrDuplicateRequest, roomID, requesterID)
		}
		return activeResult(active), nil
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":    roomID,
		"user_id":    requesterID,
		"request_id": req.ID,
	}).Info("Join request created")
	return &JoinResult{Outcome: OutcomeCreated, Request: req}, nil
}

func activeResult(req *models.JoinRequest) *JoinResult {
	if req.Status == models.JoinAccepted {
		return &JoinResult{Outcome: OutcomeAccepted, Request: req}
	}
	return &JoinResult{Outcome: OutcomePending, Request: req}
}

func (s *Service) ListPending(ctx context.Context, roomID string, callerID uint) ([]PendingRequest, error) {
	room, capability, err := s.Authorize(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if capability != CapCreator {
		return nil, fmt.Errorf("%w: only the creator can view join requests", ErrNotAuthorized)
	}

	reqs, err := s.requests.ListPending(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.RequesterID)
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		p, ok := profiles[r.RequesterID]
		if !ok {
			p = models.Profile{ID: r.RequesterID}
		}
		out = append(out, PendingRequest{RequestID: r.ID, Requester: p, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Service) AcceptRequest(ctx context.Context, requestID, callerID uint) error {
	return s.review(ctx, requestID, callerID, models.JoinAccepted)
}

// RejectRequest closes a pending request. The requester may file a new one.
func (s *Service) RejectRequest(ctx context.Context, requestID, callerID uint) error {
	return s.review(ctx, requestID, callerID, models.JoinRejected)
}

func (s *Service) review(ctx context.Context, requestID, callerID uint, to models.JoinStatus) error {
	req, err := s.requests.FindByID(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: join request %d", ErrNotFound, requestID)
	}
	if err != nil {
		return err
	}
	if req.Status != models.JoinPending {
		return fmt.Errorf("%w: join request %d already %s", ErrNotFound, requestID, req.Status)
	}

	room, err := s.rooms.FindByPK(ctx, req.RoomRef)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: room of join request %d", ErrNotFound, requestID)
	}
	if err != nil {
		return err
	}
	if room.CreatorID != callerID {
		return fmt.Errorf("%w: only the creator can review join requests", ErrNotAuthorized)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		err := s.requests.Transition(ctx, req.ID, models.JoinPending, to, callerID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: join request %d already handled", ErrNotFound, requestID)
		}
		if err != nil {
			return err
		}
		if to != models.JoinAccepted {
			return nil
		}
		if err := s.rooms.AddMember(ctx, room.ID, req.RequesterID); err != nil {
			return err
		}
		err = s.users.RecordVisit(ctx, req.RequesterID, room.RoomID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: requester %d of join request %d no longer exists", ErrNotFound, req.RequesterID, requestID)
		}
		return err
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":    room.RoomID,
		"user_id":    req.RequesterID,
		"request_id": req.ID,
		"status":     to,
	}).Info("Join request reviewed")
	return nil
}

// Join enters the room. The creator may always join; anyone else needs an
// accepted request.
func (s *Service) Join(ctx context.Context, roomID string, callerID uint) (*models.Room, error) {
	room, capability, err := s.Authorize(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if capability != CapCreator {
		active, err := s.requests.FindActive(ctx, room.ID, callerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if active == nil || active.Status != models.JoinAccepted {
			return nil, fmt.Errorf("%w: no accepted join request for room %s", ErrNotAuthorized, roomID)
		}
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.rooms.AddMember(ctx, room.ID, callerID); err != nil {
			return err
		}
		return s.users.RecordVisit(ctx, callerID, room.RoomID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, callerID)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Leave is idempotent.
func (s *Service) Leave(ctx context.Context, roomID string, callerID uint) error {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return err
	}
	removed, err := s.rooms.RemoveMember(ctx, room.ID, callerID)
	if err != nil {
		return err
	}
	if removed {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": callerID}).Info("Member left room")
	}
	return nil
}

// ListMembers is visible to the creator and members only. The caller comes
// first, the rest follow by user id.
func (s *Service) ListMembers(ctx context.Context, roomID string, callerID uint) ([]models.Profile, error) {
	room, capability, err := s.Authorize(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if capability < CapMember {
		return nil, fmt.Errorf("%w: user %d is not a member of room %s", ErrNotAuthorized, callerID, roomID)
	}

	ids, err := s.rooms.MemberIDs(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].ID == callerID) != (out[j].ID == callerID) {
			return out[i].ID == callerID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) GetRoomDetails(ctx context.Context, roomID string) (*RoomDetails, error) {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles(ctx, []uint{room.CreatorID})
	if err != nil {
		return nil, err
	}
	d := details(*room, profiles)
	return &d, nil
}

// ListRooms returns every room, newest first.
func (s *Service) ListRooms(ctx context.Context) ([]RoomDetails, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.withCreators(ctx, rooms)
}

// RecentRooms returns the rooms in the user's history, most recent first.
// Rooms deleted since the visit are skipped.
func (s *Service) RecentRooms(ctx context.Context, userID uint) ([]RoomDetails, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	recent := u.Rooms.Newest()
	if len(recent) == 0 {
		return []RoomDetails{}, nil
	}
	rooms, err := s.rooms.FindByRoomIDs(ctx, recent)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Room, len(rooms))
	for _, r := range rooms {
		byID[r.RoomID] = r
	}
	ordered := make([]models.Room, 0, len(rooms))
	for _, id := range recent {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return s.withCreators(ctx, ordered)
}

// DeleteRoom removes the room with its members and join requests.
func (s *Service) DeleteRoom(ctx context.Context, roomID string, callerID uint) error {
	room, capability, err := s.Authorize(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if capability != CapCreator {
		return fmt.Errorf("%w: only the creator can delete the room", ErrNotAuthorized)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requests.DeleteByRoom(ctx, room.ID); err != nil {
			return err
		}
		return s.rooms.Delete(ctx, room.ID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": callerID}).Info("Room deleted")
	return nil
}

func (s *Service) withCreators(ctx context.Context, rooms []models.Room) ([]RoomDetails, error) {
	ids := make([]uint, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.CreatorID)
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RoomDetails, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, details(r, profiles))
	}
	return out, nil
}

func details(r models.Room, profiles map[uint]models.Profile) RoomDetails {
	creator, ok := profiles[r.CreatorID]
	if !ok {
		creator = models.Profile{ID: r.CreatorID}
	}
	return RoomDetails{RoomID: r.RoomID, Name: r.Name, Creator: creator, CreatedAt: r.CreatedAt}
}

// profiles resolves user ids, collapsing duplicates. Unknown ids are left out.
func (s *Service) profiles(ctx context.Context, ids []uint) (map[uint]models.Profile, error) {
	out := make(map[uint]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Profile()
	}
	return out, nil
}

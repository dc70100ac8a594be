package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vnkhanh/coderoom-server/models"
)

// JoinRequestStore is the join-request ledger. It holds no policy; the only
// rule it enforces is the active-request uniqueness index.
type JoinRequestStore struct {
	db *gorm.DB
}

func NewJoinRequestStore(db *gorm.DB) *JoinRequestStore {
	if db == nil {
		panic("database connection cannot be nil for JoinRequestStore")
	}
	return &JoinRequestStore{db: db}
}

// Create inserts req. A concurrent active request for the same pair makes it
// fail with ErrDuplicate.
func (s *JoinRequestStore) Create(ctx context.Context, req *models.JoinRequest) error {
	if req.Status == "" {
		req.Status = models.JoinPending
	}
	if err := conn(ctx, s.db).Create(req).Error; err != nil {
		return fmt.Errorf("create join request (room #%d, user %d): %w", req.RoomRef, req.RequesterID, translate(err))
	}
	return nil
}

func (s *JoinRequestStore) FindByID(ctx context.Context, id uint) (*models.JoinRequest, error) {
	var req models.JoinRequest
	if err := conn(ctx, s.db).First(&req, id).Error; err != nil {
		return nil, fmt.Errorf("find join request #%d: %w", id, translate(err))
	}
	return &req, nil
}

// FindActive returns the pending or accepted request for the pair.
func (s *JoinRequestStore) FindActive(ctx context.Context, roomRef, requesterID uint) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := conn(ctx, s.db).
		Where("room_ref = ? AND requester_id = ?", roomRef, requesterID).
		Where("status IN ?", models.ActiveStatuses()).
		First(&req).Error
	if err != nil {
		return nil, fmt.Errorf("find active join request (room #%d, user %d): %w", roomRef, requesterID, translate(err))
	}
	return &req, nil
}

// ListPending returns the room's pending requests, oldest first.
func (s *JoinRequestStore) ListPending(ctx context.Context, roomRef uint) ([]models.JoinRequest, error) {
	var reqs []models.JoinRequest
	err := conn(ctx, s.db).
		Where("room_ref = ? AND status = ?", roomRef, models.JoinPending).
		Order("created_at asc").Order("id asc").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending join requests (room #%d): %w", roomRef, err)
	}
	return reqs, nil
}

// Transition moves request id from one status to another. It is a
// conditional update, so of two concurrent transitions only one applies;
// the other gets ErrNotFound.
func (s *JoinRequestStore) Transition(ctx context.Context, id uint, from, to models.JoinStatus, reviewerID uint) error {
	now := time.Now().UTC()
	res := conn(ctx, s.db).Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":      to,
			"reviewer_id": reviewerID,
			"reviewed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("transition join request #%d %s->%s: %w", id, from, to, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transition join request #%d %s->%s: %w", id, from, to, ErrNotFound)
	}
	return nil
}

// DeleteByRoom drops every ledger row of a room.
func (s *JoinRequestStore) DeleteByRoom(ctx context.Context, roomRef uint) error {
	if err := conn(ctx, s.db).Where("room_ref = ?", roomRef).Delete(&models.JoinRequest{}).Error; err != nil {
		return fmt.Errorf("delete join requests (room #%d): %w", roomRef, err)
	}
	return nil
}

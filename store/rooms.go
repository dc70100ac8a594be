package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/coderoom-server/models"
)

// RoomStore keeps rooms and their member sets.
type RoomStore struct {
	db *gorm.DB
}

func NewRoomStore(db *gorm.DB) *RoomStore {
	if db == nil {
		panic("database connection cannot be nil for RoomStore")
	}
	return &RoomStore{db: db}
}

func (s *RoomStore) Create(ctx context.Context, room *models.Room) error {
	if err := conn(ctx, s.db).Create(room).Error; err != nil {
		return fmt.Errorf("create room %q: %w", room.Name, translate(err))
	}
	return nil
}

func (s *RoomStore) FindByRoomID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	if err := conn(ctx, s.db).Where("room_id = ?", roomID).First(&room).Error; err != nil {
		return nil, fmt.Errorf("find room %s: %w", roomID, translate(err))
	}
	return &room, nil
}

func (s *RoomStore) FindByPK(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := conn(ctx, s.db).First(&room, id).Error; err != nil {
		return nil, fmt.Errorf("find room #%d: %w", id, translate(err))
	}
	return &room, nil
}

// FindByRoomIDs returns the rooms that still exist; order is unspecified.
func (s *RoomStore) FindByRoomIDs(ctx context.Context, roomIDs []string) ([]models.Room, error) {
	var rooms []models.Room
	if len(roomIDs) == 0 {
		return rooms, nil
	}
	if err := conn(ctx, s.db).Where("room_id IN ?", roomIDs).Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("find rooms by ids: %w", err)
	}
	return rooms, nil
}

func (s *RoomStore) List(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := conn(ctx, s.db).Order("created_at desc").Order("id desc").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Delete removes the room and its member set.
func (s *RoomStore) Delete(ctx context.Context, id uint) error {
	db := conn(ctx, s.db)
	if err := db.Where("room_ref = ?", id).Delete(&models.RoomMember{}).Error; err != nil {
		return fmt.Errorf("delete members of room #%d: %w", id, err)
	}
	res := db.Delete(&models.Room{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete room #%d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete room #%d: %w", id, ErrNotFound)
	}
	return nil
}

// AddMember is a set-add: adding an existing member is a no-op.
func (s *RoomStore) AddMember(ctx context.Context, roomRef, userID uint) error {
	member := models.RoomMember{RoomRef: roomRef, UserID: userID}
	err := conn(ctx, s.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
	if err != nil {
		return fmt.Errorf("add member %d to room #%d: %w", userID, roomRef, translate(err))
	}
	return nil
}

// RemoveMember reports whether a row was removed.
func (s *RoomStore) RemoveMember(ctx context.Context, roomRef, userID uint) (bool, error) {
	res := conn(ctx, s.db).
		Where("room_ref = ? AND user_id = ?", roomRef, userID).
		Delete(&models.RoomMember{})
	if res.Error != nil {
		return false, fmt.Errorf("remove member %d from room #%d: %w", userID, roomRef, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *RoomStore) IsMember(ctx context.Context, roomRef, userID uint) (bool, error) {
	var count int64
	err := conn(ctx, s.db).Model(&models.RoomMember{}).
		Where("room_ref = ? AND user_id = ?", roomRef, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check member %d of room #%d: %w", userID, roomRef, err)
	}
	return count > 0, nil
}

// MemberIDs returns the member set ordered by user id.
func (s *RoomStore) MemberIDs(ctx context.Context, roomRef uint) ([]uint, error) {
	var ids []uint
	err := conn(ctx, s.db).Model(&models.RoomMember{}).
		Where("room_ref = ?", roomRef).
		Order("user_id asc").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list members of room #%d: %w", roomRef, err)
	}
	return ids, nil
}

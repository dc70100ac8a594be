package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/coderoom-server/models"
)

// UserStore is the identity directory: profile lookups plus the room history
// column.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	if db == nil {
		panic("database connection cannot be nil for UserStore")
	}
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if err := conn(ctx, s.db).Create(u).Error; err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, translate(err))
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := conn(ctx, s.db).First(&u, id).Error; err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, translate(err))
	}
	return &u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := conn(ctx, s.db).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, fmt.Errorf("find user %s: %w", email, translate(err))
	}
	return &u, nil
}

// FindByIDs returns the users that exist; missing ids are skipped.
func (s *UserStore) FindByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := conn(ctx, s.db).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return users, nil
}

// Username resolves a display name for realtime events.
func (s *UserStore) Username(ctx context.Context, id uint) (string, error) {
	var u models.User
	if err := conn(ctx, s.db).Select("id", "username").First(&u, id).Error; err != nil {
		return "", fmt.Errorf("resolve username %d: %w", id, translate(err))
	}
	return u.Username, nil
}

// RecordVisit pushes roomID onto the user's bounded history. The row is
// locked for the read-modify-write; SQLite ignores the lock clause and
// serializes writers on its own.
func (s *UserStore) RecordVisit(ctx context.Context, userID uint, roomID string) error {
	db := conn(ctx, s.db)
	var u models.User
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "rooms").
		First(&u, userID).Error
	if err != nil {
		return fmt.Errorf("record visit of user %d: %w", userID, translate(err))
	}
	history := u.Rooms.Visit(roomID)
	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("rooms", history).Error; err != nil {
		return fmt.Errorf("record visit of user %d: %w", userID, err)
	}
	return nil
}

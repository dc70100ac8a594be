package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate means a write hit a unique constraint.
	ErrDuplicate = errors.New("store: duplicate entry")
)

const pgUniqueViolation = "23505"

// translate maps driver errors onto the store sentinels. gorm's TranslateError
// covers most cases; the fallbacks handle connections opened without it.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

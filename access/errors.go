package access

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")

	ErrRoomNameTaken    = conflict("room name already taken")
	ErrDuplicateRequest = conflict("join request already exists")
)

type conflictError struct{ msg string }

func conflict(msg string) error { return &conflictError{msg: msg} }

func (e *conflictError) Error() string { return e.msg }

func (e *conflictError) Unwrap() error { return ErrConflict }

package service

import (
	"errors"
	"fmt"

	"cargodesk-backend/internal/repository"
)

var (
	ErrValidation        = errors.New("invalid request")
	ErrNotFound          = errors.New("chat not found")
	ErrForbidden         = errors.New("staff only")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoStaff           = errors.New("no active staff")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound maps a repository miss onto ErrNotFound and passes anything else
// through as a persistence failure.
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

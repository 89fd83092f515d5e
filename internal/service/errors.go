package service

import (
	"errors"
	"fmt"

	"recaudo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Errors the handlers translate into HTTP statuses. Keep NotFound, Forbidden/InvalidSignature
// and ReadFailure distinct: they map to 404, 403/404 and 500 respectively.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidSignature  = errors.New("invalid capability signature")
	ErrForbidden         = errors.New("forbidden")
	ErrReadFailure       = errors.New("failed to read stored file")
	ErrActaNotOpen       = errors.New("acta is not open for approval")
	ErrValidation        = errors.New("validation failed")
	ErrAlreadyApproved   = model.ErrAlreadyApproved
	ErrInvalidTransition = model.ErrInvalidTransition
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// lookupError turns gorm's not-found into ErrNotFound and wraps everything else.
func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// parseID treats a malformed id like an id that resolves to nothing.
func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", what, raw, ErrNotFound)
	}
	return id, nil
}

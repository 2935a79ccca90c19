package store

import (
	"errors"

	"github.com/lib/pq"
	"github.com/warapp/apiserver/internal/apperrors"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const uniqueViolation = "23505"

// mapConstraintError translates a unique-constraint violation into the same
// field-specific validation error the pre-write check produces. Two writers
// racing past the check therefore see one success and one ordinary
// validation failure, never a generic server error.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "users_username_lower_idx":
		return apperrors.ErrUsernameTaken
	case "users_email_lower_idx":
		return apperrors.ErrEmailTaken
	}
	return err
}

package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system.
// It contains identity, credentials, and audit metadata.
type User struct {
	// ID is the unique identifier of the user (random v4 UUID).
	ID uuid.UUID `json:"id" db:"id"`

	// Username is the unique login name chosen by the user. The stored
	// value preserves the original casing; uniqueness is enforced on the
	// lowercased form.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, unique under the same
	// case-insensitive rule as Username.
	Email string `json:"email" db:"email"`

	// Password stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	Password string `json:"-" db:"password"`

	// ActivatedAt is the moment the account was activated through the
	// emailed confirmation link, or nil while pending.
	ActivatedAt *time.Time `json:"activated_at" db:"activated_at"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user
	// account. Strictly greater than CreatedAt after any update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

package types

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated session bound to a user.
type Session struct {
	// ID is the unique identifier of the session (random v4 UUID),
	// distinct from the bearer token.
	ID uuid.UUID `json:"id" db:"id"`

	// Token is the opaque bearer credential delivered via cookie.
	// Never reused across sessions.
	Token string `json:"token" db:"token"`

	// UserID references the owning user. The session borrows the
	// user's identity; it does not control the user's lifecycle.
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// ExpiresAt is the absolute expiration instant. It slides forward
	// on every successful renewal; a revoked session has it forced
	// into the past. The row outlives expiration.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// CreatedAt is immutable.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is bumped on every renewal or revocation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/warapp/apiserver/types"
)

// SessionRepository handles persistence for sessions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, token, user_id, expires_at, created_at, updated_at`

func scanSession(row *sql.Row) (types.Session, error) {
	var session types.Session
	err := row.Scan(
		&session.ID,
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `
		INSERT INTO sessions (id, token, user_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.Token,
		session.UserID,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// GetValidByToken returns the session only while expires_at is still in the
// future. Expired, revoked, and never-issued tokens are indistinguishable:
// all yield ErrNotFound.
func (r *SessionRepository) GetValidByToken(ctx context.Context, token string) (types.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE token = $1
			AND expires_at > now()
		LIMIT 1`
	return scanSession(r.db.QueryRowContext(ctx, query, token))
}

// Renew pushes expires_at forward and bumps updated_at, but only while the
// session is still live; a dead session is never renewable. Concurrent
// renewals resolve as last write wins.
func (r *SessionRepository) Renew(ctx context.Context, id uuid.UUID, expiresAt time.Time) (types.Session, error) {
	const query = `
		UPDATE sessions
		SET expires_at = $2,
			updated_at = $3
		WHERE id = $1
			AND expires_at > now()
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRowContext(ctx, query, id, expiresAt, time.Now()))
}

// Expire back-dates expires_at. The row is kept for the audit trail.
func (r *SessionRepository) Expire(ctx context.Context, id uuid.UUID, expiresAt time.Time) (types.Session, error) {
	const query = `
		UPDATE sessions
		SET expires_at = $2,
			updated_at = $3
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRowContext(ctx, query, id, expiresAt, time.Now()))
}

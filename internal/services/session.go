package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/store"
	"github.com/warapp/apiserver/types"
)

// DefaultSessionTTL is the sliding-window lifetime shared by session
// creation and every renewal.
const DefaultSessionTTL = 30 * 24 * time.Hour

// tokenBytes sized so the hex-encoded bearer token is 96 characters.
const tokenBytes = 48

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetValidByToken(ctx context.Context, token string) (types.Session, error)
	Renew(ctx context.Context, id uuid.UUID, expiresAt time.Time) (types.Session, error)
	Expire(ctx context.Context, id uuid.UUID, expiresAt time.Time) (types.Session, error)
}

// SessionService owns token issuance, validation, renewal, and revocation.
type SessionService struct {
	repo SessionRepository
	ttl  time.Duration
}

func NewSessionService(repo SessionRepository, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{repo: repo, ttl: ttl}
}

// TTL exposes the configured lifetime so handlers can derive cookie max-age.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create issues a fresh session for the user: new id, new high-entropy
// token, expiry at now + TTL.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID) (types.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return types.Session{}, apperrors.NewInternal(err)
	}

	session := types.Session{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	created, err := s.repo.Create(ctx, session)
	if err != nil {
		return types.Session{}, apperrors.NewInternal(err)
	}
	return created, nil
}

// FindValidByToken resolves a live session. A malformed, unknown, expired,
// or revoked token all produce the same uniform rejection.
func (s *SessionService) FindValidByToken(ctx context.Context, token string) (types.Session, error) {
	if token == "" {
		return types.Session{}, apperrors.ErrNoActiveSession
	}

	session, err := s.repo.GetValidByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, apperrors.ErrNoActiveSession
		}
		return types.Session{}, apperrors.NewInternal(err)
	}
	return session, nil
}

// Renew pushes the expiry window forward to now + TTL. Only call it after a
// successful FindValidByToken; a session that already died in the meantime
// must re-authenticate.
func (s *SessionService) Renew(ctx context.Context, id uuid.UUID) (types.Session, error) {
	renewed, err := s.repo.Renew(ctx, id, time.Now().Add(s.ttl))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, apperrors.ErrNoActiveSession
		}
		return types.Session{}, apperrors.NewInternal(err)
	}
	return renewed, nil
}

// Revoke forces the expiry into the past. The row is kept, so the session
// remains in the audit trail but is unfindable by the valid-token query.
func (s *SessionService) Revoke(ctx context.Context, id uuid.UUID) (types.Session, error) {
	expired, err := s.repo.Expire(ctx, id, time.Now().Add(-s.ttl))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, apperrors.ErrNoActiveSession
		}
		return types.Session{}, apperrors.NewInternal(err)
	}
	return expired, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

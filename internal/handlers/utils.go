package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/warapp/apiserver/internal/apperrors"
)

type contextKey string

const contextUserIDKey contextKey = "user_id"

// sessionCookieName is the cookie carrying the bearer token.
const sessionCookieName = "session_id"

func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextUserIDKey).(uuid.UUID)
	return id, ok
}

func withUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextUserIDKey, id)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError renders the taxonomy error as its canonical body. Anything
// outside the taxonomy is logged with its cause and rendered as the generic
// internal failure; the cause is never exposed to the caller.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternal(err)
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, appErr.StatusCode, appErr)
}

func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie refreshes the bearer cookie with the session's remaining
// lifetime.
func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
	})
}

// clearSessionCookie overwrites the cookie with a sentinel and instructs
// the client to discard it.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "invalid",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

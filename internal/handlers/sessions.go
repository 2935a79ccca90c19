package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/services"
)

// SessionHandler provides login and logout endpoints.
type SessionHandler struct {
	authService    *services.AuthService
	sessionService *services.SessionService
}

func NewSessionHandler(authService *services.AuthService, sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{
		authService:    authService,
		sessionService: sessionService,
	}
}

// SessionsRouter registers session routes on the given router.
func SessionsRouter(r chi.Router, authService *services.AuthService, sessionService *services.SessionService) {
	handler := NewSessionHandler(authService, sessionService)

	r.Post("/", handler.Create)
	r.Delete("/", handler.Delete)
}

type CreateSessionRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Create performs login: verifies credentials, issues a session, and sets
// the bearer cookie for the full TTL.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.NewValidation(
			"Dados enviados são inválidos.",
			"Verifique os campos enviados e tente novamente.",
		))
		return
	}
	if err := validatePayload(req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, session.Token, h.sessionService.TTL())
	writeJSON(w, http.StatusCreated, session)
}

// Delete performs logout: revokes the current session and overwrites the
// cookie with the discard sentinel. Revoking an unknown or already-dead
// token yields the same uniform rejection as any other invalid session.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)

	session, err := h.sessionService.FindValidByToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	expired, err := h.sessionService.Revoke(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, expired)
}

package handlers

import (
	"net/http"

	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/services"
)

// RequireSession authenticates the request from the session cookie. On
// success it renews the session (the only path that extends a session's
// life), refreshes the cookie, marks the response non-cacheable, and puts
// the owning user id into the request context.
func RequireSession(sessionService *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionTokenFromRequest(r)

			session, err := sessionService.FindValidByToken(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}

			renewed, err := sessionService.Renew(r.Context(), session.ID)
			if err != nil {
				writeError(w, err)
				return
			}

			setSessionCookie(w, renewed.Token, sessionService.TTL())
			w.Header().Set("Cache-Control", "no-store, max-age=0, must-revalidate")

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), renewed.UserID)))
		})
	}
}

// CurrentUserHandler serves the authenticated principal.
type CurrentUserHandler struct {
	userService *services.UserService
}

func NewCurrentUserHandler(userService *services.UserService) *CurrentUserHandler {
	return &CurrentUserHandler{userService: userService}
}

// Get returns the user owning the current session.
func (h *CurrentUserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.ErrNoActiveSession)
		return
	}

	user, err := h.userService.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warapp/apiserver/internal/services"
)

// ActivationHandler consumes emailed activation links.
type ActivationHandler struct {
	userService *services.UserService
}

func NewActivationHandler(userService *services.UserService) *ActivationHandler {
	return &ActivationHandler{userService: userService}
}

// Activate verifies the token from the activation link and stamps the
// account as activated. Activating twice is a no-op.
func (h *ActivationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.userService.Activate(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

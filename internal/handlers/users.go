package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/services"
)

// UserHandler provides HTTP handlers for account management.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UsersRouter registers user routes on the given router.
func UsersRouter(r chi.Router, userService *services.UserService) {
	handler := NewUserHandler(userService)

	r.Post("/", handler.Create)
	r.Get("/{username}", handler.GetByUsername)
	r.Patch("/{username}", handler.Update)
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=3,max=72"`
}

// Create registers a new account and dispatches its activation email.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
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

	user, err := h.userService.Create(r.Context(), services.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetByUsername fetches an account by case-insensitive username.
func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.userService.FindByUsername(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Update applies a partial update. Absent fields keep their value; a new
// password is digested before storage.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req UpdateUserRequest
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

	user, err := h.userService.Update(r.Context(), username, services.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

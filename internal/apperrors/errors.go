// Package apperrors defines the error taxonomy shared by services and
// handlers. Every expected failure carries the name/message/action/status
// quadruple rendered verbatim in API error bodies.
package apperrors

import (
	"errors"
	"net/http"
)

// Error is an expected failure with a user-facing shape. Infrastructure
// causes are wrapped for diagnostics but never rendered to the caller.
type Error struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	Action     string `json:"action"`
	StatusCode int    `json:"status_code"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two taxonomy errors by name and message so that sentinel
// values compare with errors.Is across wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Name == other.Name && e.Message == other.Message
}

// NewValidation reports caller-supplied data violating a business rule.
func NewValidation(message, action string) *Error {
	return &Error{
		Name:       "ValidationError",
		Message:    message,
		Action:     action,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFound reports a referenced entity that does not exist.
func NewNotFound(message, action string) *Error {
	return &Error{
		Name:       "NotFoundError",
		Message:    message,
		Action:     action,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorized reports missing or non-matching credentials. Wording is
// deliberately uniform regardless of which factor was wrong.
func NewUnauthorized(message, action string) *Error {
	return &Error{
		Name:       "UnauthorizedError",
		Message:    message,
		Action:     action,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternal wraps an infrastructure failure. The cause is preserved for
// logging only; the rendered body stays generic.
func NewInternal(cause error) *Error {
	return &Error{
		Name:       "InternalServerError",
		Message:    "Um erro interno não esperado aconteceu.",
		Action:     "Entre em contato com o suporte.",
		StatusCode: http.StatusInternalServerError,
		cause:      cause,
	}
}

// Sentinels for the failures the domain contracts produce. Handlers compare
// with errors.Is and render the value as-is.
var (
	ErrUsernameTaken = NewValidation(
		"Username já utilizado",
		"Utilize outro username",
	)
	ErrEmailTaken = NewValidation(
		"Email já utilizado",
		"utilize outro email",
	)
	ErrUserNotFound = NewNotFound(
		"O username informado não foi encontrado",
		"Verifique se username está correto",
	)
	ErrUserIDNotFound = NewNotFound(
		"O id informado não foi encontrado no sistema.",
		"Verifique se o id está correto.",
	)
	ErrInvalidCredentials = NewUnauthorized(
		"Dados de autenticação não conferem.",
		"Verifique se os dados enviados estão corretos.",
	)
	ErrNoActiveSession = NewUnauthorized(
		"Usuário não possui sessão ativa.",
		"Verifique se o usuário está logado.",
	)
	ErrInvalidActivationToken = NewNotFound(
		"O token de ativação informado não foi encontrado ou expirou.",
		"Faça login para receber um novo link de ativação.",
	)
)

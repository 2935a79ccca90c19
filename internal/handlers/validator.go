package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/warapp/apiserver/internal/apperrors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validatePayload runs struct validation and converts failures into the
// caller-facing validation shape.
func validatePayload(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return apperrors.NewValidation(
			"Dados enviados são inválidos.",
			"Verifique os campos enviados e tente novamente.",
		)
	}
	return nil
}

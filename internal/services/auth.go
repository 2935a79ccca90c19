package services

import (
	"context"
	"errors"

	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/store"
	"github.com/warapp/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AuthService verifies credentials at login time.
type AuthService struct {
	users UserRepository
}

func NewAuthService(users UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Authenticate resolves the user by case-insensitive email and compares the
// supplied password against the stored digest. Unknown email and wrong
// password are deliberately indistinguishable: both return
// ErrInvalidCredentials, so the endpoint cannot be used to enumerate
// accounts.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperrors.ErrInvalidCredentials
		}
		return types.User{}, apperrors.NewInternal(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return types.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

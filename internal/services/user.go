package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/store"
	"github.com/warapp/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	UsernameInUse(ctx context.Context, username string, excluding uuid.UUID) (bool, error)
	EmailInUse(ctx context.Context, email string, excluding uuid.UUID) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// CreateUserInput carries the plaintext signup payload. The password is
// digested before it reaches the repository.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
}

// UpdateUserInput carries a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Password *string
}

// UserService encapsulates account use-cases: creation and update behind
// the uniqueness guard, lookups, and activation.
type UserService struct {
	repo       UserRepository
	activation *ActivationService
}

func NewUserService(repo UserRepository, activation *ActivationService) *UserService {
	return &UserService{repo: repo, activation: activation}
}

func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperrors.ErrUserIDNotFound
		}
		return types.User{}, apperrors.NewInternal(err)
	}
	return user, nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperrors.ErrUserNotFound
		}
		return types.User{}, apperrors.NewInternal(err)
	}
	return user, nil
}

// Create registers a new account and dispatches the activation email.
//
// The uniqueness pre-check exists only to produce a field-specific error in
// the common case; the LOWER() unique indexes remain the final arbiter, and
// a constraint violation slipping through the race window surfaces as the
// same validation failure (mapped in the store).
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (types.User, error) {
	if err := s.ensureUnique(ctx, input.Username, input.Email, uuid.Nil); err != nil {
		return types.User{}, err
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, apperrors.NewInternal(err)
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:       uuid.New(),
		Username: input.Username,
		Email:    input.Email,
		Password: string(digest),
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return types.User{}, appErr
		}
		return types.User{}, apperrors.NewInternal(err)
	}

	if s.activation != nil {
		if err := s.activation.SendEmail(ctx, user); err != nil {
			return types.User{}, err
		}
	}

	return user, nil
}

// Update applies a partial update to the user resolved by username. A
// candidate value colliding with the user's own current row is not a
// collision.
func (s *UserService) Update(ctx context.Context, username string, input UpdateUserInput) (types.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		return types.User{}, err
	}

	candidateUsername := user.Username
	if input.Username != nil {
		candidateUsername = *input.Username
	}
	candidateEmail := user.Email
	if input.Email != nil {
		candidateEmail = *input.Email
	}
	if err := s.ensureUnique(ctx, candidateUsername, candidateEmail, user.ID); err != nil {
		return types.User{}, err
	}

	user.Username = candidateUsername
	user.Email = candidateEmail
	if input.Password != nil {
		digest, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.User{}, apperrors.NewInternal(err)
		}
		user.Password = string(digest)
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return types.User{}, appErr
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperrors.ErrUserNotFound
		}
		return types.User{}, apperrors.NewInternal(err)
	}
	return updated, nil
}

// Activate consumes an activation token and stamps the account.
func (s *UserService) Activate(ctx context.Context, token string) (types.User, error) {
	if s.activation == nil {
		return types.User{}, apperrors.ErrInvalidActivationToken
	}

	userID, err := s.activation.Verify(token)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperrors.ErrInvalidActivationToken
		}
		return types.User{}, apperrors.NewInternal(err)
	}
	if user.ActivatedAt != nil {
		return user, nil
	}

	now := time.Now()
	user.ActivatedAt = &now
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, apperrors.NewInternal(err)
	}
	return updated, nil
}

// ensureUnique is the advisory fast-fail half of uniqueness enforcement:
// case-insensitive, both fields, with self-exclusion for updates.
func (s *UserService) ensureUnique(ctx context.Context, username, email string, excluding uuid.UUID) error {
	taken, err := s.repo.EmailInUse(ctx, email, excluding)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if taken {
		return apperrors.ErrEmailTaken
	}

	taken, err = s.repo.UsernameInUse(ctx, username, excluding)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if taken {
		return apperrors.ErrUsernameTaken
	}
	return nil
}

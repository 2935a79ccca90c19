package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warapp/apiserver/config"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/mailer"
	"github.com/warapp/apiserver/internal/store"
	"github.com/warapp/apiserver/types"
)

// stubUserRepo mimics the users table, including the LOWER() unique
// indexes: writes are checked atomically under the lock, exactly like the
// storage constraint, regardless of what the advisory pre-check saw.
type stubUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]types.User)}
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *stubUserRepo) UsernameInUse(_ context.Context, username string, excluding uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usernameTakenLocked(username, excluding), nil
}

func (r *stubUserRepo) EmailInUse(_ context.Context, email string, excluding uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emailTakenLocked(email, excluding), nil
}

func (r *stubUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTakenLocked(user.Email, user.ID) {
		return types.User{}, apperrors.ErrEmailTaken
	}
	if r.usernameTakenLocked(user.Username, user.ID) {
		return types.User{}, apperrors.ErrUsernameTaken
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *stubUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return types.User{}, apperrors.ErrEmailTaken
	}
	if r.usernameTakenLocked(user.Username, user.ID) {
		return types.User{}, apperrors.ErrUsernameTaken
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *stubUserRepo) usernameTakenLocked(username string, excluding uuid.UUID) bool {
	for id, user := range r.users {
		if id != excluding && strings.EqualFold(user.Username, username) {
			return true
		}
	}
	return false
}

func (r *stubUserRepo) emailTakenLocked(email string, excluding uuid.UUID) bool {
	for id, user := range r.users {
		if id != excluding && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}

// stubPublisher records everything published to the email channel.
type stubPublisher struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (p *stubPublisher) Publish(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var message mailer.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return "", err
	}
	p.messages = append(p.messages, message)
	return "message-id", nil
}

func (p *stubPublisher) last() (mailer.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return mailer.Message{}, false
	}
	return p.messages[len(p.messages)-1], true
}

func newTestActivation(publisher Publisher) *ActivationService {
	return NewActivationService(config.ActivationConfig{
		Secret:   "test-secret",
		TokenTTL: 15 * time.Minute,
		BaseURL:  "http://localhost:8080",
		From:     "War <contato@war.com>",
	}, publisher, "activation-emails")
}

func newTestUserService() (*UserService, *stubUserRepo, *stubPublisher) {
	repo := newStubUserRepo()
	publisher := &stubPublisher{}
	return NewUserService(repo, newTestActivation(publisher)), repo, publisher
}

func TestUserService_Create(t *testing.T) {
	svc, _, publisher := newTestUserService()

	user, err := svc.Create(context.Background(), CreateUserInput{
		Username: "war",
		Email:    "war@war.com",
		Password: "123",
	})
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(4), user.ID.Version())
	assert.Equal(t, "war", user.Username)
	assert.NotEqual(t, "123", user.Password)
	assert.Nil(t, user.ActivatedAt)

	message, ok := publisher.last()
	require.True(t, ok, "expected an activation email to be published")
	assert.Equal(t, "war@war.com", message.To)
	assert.Equal(t, "Confirmação de cadastro", message.Subject)
	assert.Contains(t, message.Text, "/api/v1/activation/")
	assert.Contains(t, message.Text, "war, clique no link abaixo")
}

func TestUserService_Create_DuplicateEmailCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Create(context.Background(), CreateUserInput{
		Username: "user1", Email: "duplicado@war.com", Password: "123",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateUserInput{
		Username: "user2", Email: "Duplicado@war.com", Password: "123",
	})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestUserService_Create_DuplicateUsernameCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Create(context.Background(), CreateUserInput{
		Username: "User1", Email: "a@war.com", Password: "123",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateUserInput{
		Username: "user1", Email: "b@war.com", Password: "123",
	})
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
}

func TestUserService_Update_CollisionWithOtherUser(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Create(context.Background(), CreateUserInput{
		Username: "user1", Email: "email1@war.com", Password: "123",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateUserInput{
		Username: "user2", Email: "email2@war.com", Password: "123",
	})
	require.NoError(t, err)

	username := "user1"
	_, err = svc.Update(context.Background(), "user2", UpdateUserInput{Username: &username})
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)

	email := "email1@war.com"
	_, err = svc.Update(context.Background(), "user2", UpdateUserInput{Email: &email})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestUserService_Update_OwnValueIsNotACollision(t *testing.T) {
	svc, _, _ := newTestUserService()

	created, err := svc.Create(context.Background(), CreateUserInput{
		Username: "user1", Email: "email1@war.com", Password: "123",
	})
	require.NoError(t, err)

	username := "user1"
	updated, err := svc.Update(context.Background(), "user1", UpdateUserInput{Username: &username})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUserService_Update_NonexistentUser(t *testing.T) {
	svc, _, _ := newTestUserService()

	username := "whatever"
	_, err := svc.Update(context.Background(), "usuarioInexistente", UpdateUserInput{Username: &username})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserService_Update_RehashesPassword(t *testing.T) {
	svc, repo, _ := newTestUserService()

	created, err := svc.Create(context.Background(), CreateUserInput{
		Username: "user1", Email: "email1@war.com", Password: "old",
	})
	require.NoError(t, err)

	password := "new"
	_, err = svc.Update(context.Background(), "user1", UpdateUserInput{Password: &password})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "new", stored.Password)
	assert.NotEqual(t, created.Password, stored.Password)
}

// Two concurrent creations colliding on normalized fields must yield
// exactly one success; the loser sees an ordinary validation failure even
// though both passed the advisory pre-check.
func TestUserService_Create_Race(t *testing.T) {
	svc, _, _ := newTestUserService()

	var wg sync.WaitGroup
	results := make([]error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Create(context.Background(), CreateUserInput{
				Username: "Racer",
				Email:    "racer@war.com",
				Password: "123",
			})
			results[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	var successes, validationFailures int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperrors.ErrUsernameTaken) || errors.Is(err, apperrors.ErrEmailTaken):
			validationFailures++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, validationFailures)
}

func TestUserService_Activate(t *testing.T) {
	repo := newStubUserRepo()
	publisher := &stubPublisher{}
	activation := newTestActivation(publisher)
	svc := NewUserService(repo, activation)

	created, err := svc.Create(context.Background(), CreateUserInput{
		Username: "war", Email: "war@war.com", Password: "123",
	})
	require.NoError(t, err)

	token, err := activation.TokenFor(created)
	require.NoError(t, err)

	activated, err := svc.Activate(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, activated.ActivatedAt)

	// Second use is a no-op, not an error.
	again, err := svc.Activate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, activated.ActivatedAt.Unix(), again.ActivatedAt.Unix())
}

func TestUserService_Activate_InvalidToken(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Activate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrInvalidActivationToken)
}

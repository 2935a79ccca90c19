package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warapp/apiserver/config"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/services"
	"github.com/warapp/apiserver/internal/store"
	"github.com/warapp/apiserver/types"
)

// In-memory doubles standing in for the Postgres repositories. Writes
// enforce the case-insensitive uniqueness atomically, like the real
// indexes do.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]types.User)}
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) UsernameInUse(_ context.Context, username string, excluding uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if id != excluding && strings.EqualFold(user.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) EmailInUse(_ context.Context, email string, excluding uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if id != excluding && strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := r.checkConstraints(ctx, user); err != nil {
		return types.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if err := r.checkConstraints(ctx, user); err != nil {
		return types.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) checkConstraints(ctx context.Context, user types.User) error {
	if taken, _ := r.EmailInUse(ctx, user.Email, user.ID); taken {
		return apperrors.ErrEmailTaken
	}
	if taken, _ := r.UsernameInUse(ctx, user.Username, user.ID); taken {
		return apperrors.ErrUsernameTaken
	}
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]types.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]types.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, session types.Session) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.sessions[session.ID] = session
	return session, nil
}

func (r *memSessionRepo) GetValidByToken(_ context.Context, token string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.Token == token && session.ExpiresAt.After(time.Now()) {
			return session, nil
		}
	}
	return types.Session{}, store.ErrNotFound
}

func (r *memSessionRepo) Renew(_ context.Context, id uuid.UUID, expiresAt time.Time) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return types.Session{}, store.ErrNotFound
	}
	session.ExpiresAt = expiresAt
	session.UpdatedAt = time.Now()
	r.sessions[id] = session
	return session, nil
}

func (r *memSessionRepo) Expire(_ context.Context, id uuid.UUID, expiresAt time.Time) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	session.ExpiresAt = expiresAt
	session.UpdatedAt = time.Now()
	r.sessions[id] = session
	return session, nil
}

func (r *memSessionRepo) forceExpire(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.Token == token {
			session.ExpiresAt = time.Now().Add(-time.Minute)
			r.sessions[id] = session
		}
	}
}

type memPublisher struct {
	mu   sync.Mutex
	data [][]byte
}

func (p *memPublisher) Publish(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, data)
	return "message-id", nil
}

// testAPI wires the handlers exactly like the server does, minus the
// database-backed status and migrations routes.
type testAPI struct {
	router      *chi.Mux
	userRepo    *memUserRepo
	sessionRepo *memSessionRepo
	publisher   *memPublisher
	sessions    *services.SessionService
	activation  *services.ActivationService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	userRepo := newMemUserRepo()
	sessionRepo := newMemSessionRepo()
	publisher := &memPublisher{}

	activation := services.NewActivationService(config.ActivationConfig{
		Secret:   "test-secret",
		TokenTTL: 15 * time.Minute,
		BaseURL:  "http://localhost:8080",
		From:     "War <contato@war.com>",
	}, publisher, "activation-emails")

	userService := services.NewUserService(userRepo, activation)
	authService := services.NewAuthService(userRepo)
	sessionService := services.NewSessionService(sessionRepo, 0)

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			UsersRouter(r, userService)
		})
		r.Route("/sessions", func(r chi.Router) {
			SessionsRouter(r, authService, sessionService)
		})
		currentUser := NewCurrentUserHandler(userService)
		r.With(RequireSession(sessionService)).Get("/user", currentUser.Get)
		activationHandler := NewActivationHandler(userService)
		r.Get("/activation/{token}", activationHandler.Activate)
	})

	return &testAPI{
		router:      router,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		publisher:   publisher,
		sessions:    sessionService,
		activation:  activation,
	}
}

func (api *testAPI) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	recorder := httptest.NewRecorder()
	api.router.ServeHTTP(recorder, req)
	return recorder
}

func (api *testAPI) createUser(t *testing.T, username, email, password string) types.User {
	t.Helper()
	resp := api.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("createUser: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var user types.User
	decodeBody(t, resp, &user)
	return user
}

func (api *testAPI) login(t *testing.T, email, password string) (types.Session, *http.Cookie) {
	t.Helper()
	resp := api.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("login: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var session types.Session
	decodeBody(t, resp, &session)
	cookie := findCookie(t, resp, "session_id")
	return session, cookie
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, value any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(value); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func findCookie(t *testing.T, resp *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

// errorBody mirrors the canonical API error shape.
type errorBody struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	Action     string `json:"action"`
	StatusCode int    `json:"status_code"`
}

package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warapp/apiserver/config"
	"github.com/warapp/apiserver/internal/db"
	"github.com/warapp/apiserver/internal/handlers"
	"github.com/warapp/apiserver/internal/mq"
	"github.com/warapp/apiserver/internal/services"
	"github.com/warapp/apiserver/internal/store"
)

const defaultMigrationsDir = "internal/db/migrations"

// Server wraps the HTTP server and its collaborators.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	log        zerolog.Logger
}

// New constructs a Server with its full dependency graph wired.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.Activation.Secret) == "" {
		return nil, errors.New("ACTIVATION_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	queue, err := mq.NewFromConfig(ctx, cfg.Broker)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)

	activationService := services.NewActivationService(cfg.Activation, queue, cfg.Broker.EmailChannel)
	userService := services.NewUserService(userRepo, activationService)
	authService := services.NewAuthService(userRepo)
	sessionService := services.NewSessionService(sessionRepo, cfg.Session.TTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(log),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/v1", func(r chi.Router) {
		statusHandler := handlers.NewStatusHandler(dbConn, cfg.Database.DBName)
		r.Get("/status", statusHandler.Get)

		r.Route("/users", func(r chi.Router) {
			handlers.UsersRouter(r, userService)
		})
		r.Route("/sessions", func(r chi.Router) {
			handlers.SessionsRouter(r, authService, sessionService)
		})

		currentUser := handlers.NewCurrentUserHandler(userService)
		r.With(handlers.RequireSession(sessionService)).Get("/user", currentUser.Get)

		activation := handlers.NewActivationHandler(userService)
		r.Get("/activation/{token}", activation.Activate)

		r.Route("/migrations", func(r chi.Router) {
			handlers.MigrationsRouter(r, db.DSN(cfg.Database), defaultMigrationsDir)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}

// requestLogger emits one structured line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

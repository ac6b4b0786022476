// Package server sets up the HTTP server, router, and all route definitions.
//
// It is the composition root: the store is opened here, and every service
// and handler is built from it in setupRoutes.
//
//	config → Store (sqlite | mongodb) → services → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/group-study/internal/auth"
	"github.com/sakif/group-study/internal/config"
	"github.com/sakif/group-study/internal/handler"
	"github.com/sakif/group-study/internal/middleware"
	"github.com/sakif/group-study/internal/repository"
	"github.com/sakif/group-study/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/group-study/internal/repository/sqlite"
	"github.com/sakif/group-study/internal/service"
)

// Server represents the HTTP server and all its dependencies. It owns the
// store and closes it when Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	tokens *auth.TokenService
}

// New opens the configured store and builds the router.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, store, logger)
	if err != nil {
		store.Close() // Clean up the store if route setup fails
		return nil, err
	}
	return s, nil
}

// newServer wires an already open store. Tests use it with in-memory SQLite.
func newServer(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		tokens: tokens,
	}
	s.setupRoutes()
	return s, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		db, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening mongodb: %w", err)
		}
		return db, nil
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (all under server.base_path):
// GET    /                                 → health text
// GET    /assignments?page=&limit=&difficulty=
// GET    /assignments/{id}
// POST   /user/create-assignment
// PUT    /user/update-assignment/{id}?email=
// DELETE /user/delete-assignment/{id}?email=
// POST   /user/submitted_assignment
// PUT    /user/submitted-assignment/{id}    → grade
// GET    /user/submitted-assignments       → session required
// GET    /user/my-assignments?email=       → session required, own identity only
// GET    /user/submitted-assignment/{id}    → session required
// POST   /jwt, POST /logout
// GET    /auth/github/login, /auth/github/callback (when configured)
//
// Middleware executes in the order it's added: RequestID must run before
// Logger so every log line carries the id.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// The SPA runs on another origin and sends the session cookie, so
	// credentials must be allowed and origins listed explicitly.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.config.BasePath == "" {
		s.routes(s.router)
		return
	}
	s.router.Route(s.config.BasePath, s.routes)
}

func (s *Server) routes(r chi.Router) {
	assignmentService := service.NewAssignmentService(s.store.Assignments(), service.AssignmentOptions{
		FilteredCount: s.config.Pagination.FilteredCount,
		DefaultLimit:  s.config.Pagination.DefaultLimit,
	}, s.logger)
	submissionService := service.NewSubmissionService(s.store.Submissions(), s.logger)
	sessionService := service.NewSessionService(s.tokens, s.logger)

	var github *auth.GitHubProvider
	if s.config.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			s.config.Auth.GitHubCallbackURL,
		)
	}

	assignments := handler.NewAssignmentHandler(assignmentService, s.logger)
	submissions := handler.NewSubmissionHandler(submissionService, s.logger)
	sessions := handler.NewAuthHandler(sessionService, github,
		handler.CookieOptions{Secure: s.config.Auth.CookieSecure},
		s.config.Auth.LoginRedirectURL, s.logger)

	r.Get("/", handler.HandleHealth)

	r.Get("/assignments", assignments.HandleList)
	r.Get("/assignments/{id}", assignments.HandleGet)

	r.Post("/jwt", sessions.HandleIssue)
	r.Post("/logout", sessions.HandleLogout)
	if github != nil {
		r.Get("/auth/github/login", sessions.HandleGitHubLogin)
		r.Get("/auth/github/callback", sessions.HandleGitHubCallback)
	}

	r.Route("/user", func(r chi.Router) {
		r.Post("/create-assignment", assignments.HandleCreate)
		r.Put("/update-assignment/{id}", assignments.HandleUpdate)
		r.Delete("/delete-assignment/{id}", assignments.HandleDelete)

		r.Post("/submitted_assignment", submissions.HandleCreate)
		r.Put("/submitted-assignment/{id}", submissions.HandleGrade)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(s.tokens, s.logger))
			r.Get("/submitted-assignments", submissions.HandleList)
			r.Get("/my-assignments", submissions.HandleListMine)
			r.Get("/submitted-assignment/{id}", submissions.HandleGet)
		})
	})
}

// Start starts the HTTP server and handles graceful shutdown:
// stop accepting connections, give in-flight requests 30 seconds, then
// close the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d%s", s.config.Port, s.config.BasePath)),
			slog.String("storage", s.config.Storage.Driver),
			slog.Bool("github_login", s.config.Auth.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

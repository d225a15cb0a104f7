// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and it owns the database connection for the life of the process.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB → Repositories → services → handlers → routes
//
// Everything is assembled in New, the composition root, so no other package
// constructs its own dependencies.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/config"
	"github.com/sakif/pantry/internal/handler"
	"github.com/sakif/pantry/internal/middleware"
	sqliteRepo "github.com/sakif/pantry/internal/repository/sqlite"
	"github.com/sakif/pantry/internal/service"
)

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB // owned by the server, closed on shutdown
	tokens *auth.TokenService
}

// OpenDB opens the database the way both binaries need it: schema migrated
// and the meal depth taken from config.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it is not confused with the
// modernc.org/sqlite driver.
func OpenDB(cfg config.Config) (*sqliteRepo.DB, error) {
	var opts []sqliteRepo.Option
	if cfg.ShallowMeals {
		opts = append(opts, sqliteRepo.WithShallowMeals())
	}
	db, err := sqliteRepo.New(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// Repositories exposes the database's entity stores to the service layer.
func Repositories(db *sqliteRepo.DB) service.Repositories {
	return service.Repositories{
		Allergies:   db.Allergies(),
		Categories:  db.Categories(),
		Ingredients: db.Ingredients(),
		Recipes:     db.Recipes(),
		Users:       db.Users(),
	}
}

// New creates a Server with the given config.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                    → database ping
//	POST   /auth/register              → create account, set cookie
//	POST   /auth/login                 → check password, set cookie
//	POST   /auth/logout                → revoke token           [auth]
//	GET    /api/{kind}/{id}            → entity projection      [auth]
//	GET    /api/me                     → own profile            [auth]
//	PUT    /api/me/allergies           → replace allergy set    [auth]
//	PUT    /api/me/meals               → replace meal plan      [auth]
//	POST   /api/me/meals/{id}          → add one meal           [auth]
//	DELETE /api/me/meals/{id}          → remove one meal        [auth]
//	GET    /api/admin/{kind}           → summary listing        [admin]
//	POST   /api/admin/{kind}           → insert or update       [admin]
//	DELETE /api/admin/{kind}/{id}      → remove                 [admin]
//
// Chi prefers static segments over parameters, so /api/me/... and
// /api/admin/... never reach the {kind}/{id} route.
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so Logger can print the id; Recoverer sits inside
// Logger so a recovered panic is still logged as a 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	repos := Repositories(s.db)
	passwords := auth.NewPasswordService()

	authService := service.NewAuthService(repos.Users, s.tokens, passwords, s.logger)
	accountService := service.NewAccountService(repos, s.logger)
	catalogService := service.NewCatalogService(repos, passwords, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.tokens.TTL(), s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	entityHandler := handler.NewEntityHandler(catalogService, s.logger)
	adminHandler := handler.NewAdminHandler(catalogService, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.With(requireAuth).Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/{kind}/{id}", entityHandler.HandleGet)
			r.Get("/me", authHandler.HandleMe)
			r.Put("/me/allergies", accountHandler.HandleSetAllergies)
			r.Put("/me/meals", accountHandler.HandleSetMeals)
			r.Post("/me/meals/{id}", accountHandler.HandleAddMeal)
			r.Delete("/me/meals/{id}", accountHandler.HandleRemoveMeal)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, auth.RequireAdmin)
			r.Get("/{kind}", adminHandler.HandleSummary)
			r.Post("/{kind}", adminHandler.HandleSave)
			r.Delete("/{kind}/{id}", adminHandler.HandleRemove)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Handler returns the router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// DB returns the server's database.
func (s *Server) DB() *sqliteRepo.DB {
	return s.db
}

// Close releases the database. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("shallowMeals", s.config.ShallowMeals),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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

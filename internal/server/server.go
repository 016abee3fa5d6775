// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides which URL patterns map to
// which handlers, what middleware runs on which routes, and how the process
// starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and passes it here. New() then builds:
//
//	sqlite.DB  → Credential/Session/Profile/PostDB
//	broker     → embedded (or external) NATS for feed change events
//	auth       → TokenService (JWT) + PasswordService (bcrypt)
//	services   → Account, Directory, Moderation, Feed
//	handlers   → one per service, plus health
//
// This is the "composition root" pattern: every dependency is wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/community-hub/internal/auth"
	"github.com/sakif/community-hub/internal/broker"
	"github.com/sakif/community-hub/internal/config"
	"github.com/sakif/community-hub/internal/handler"
	"github.com/sakif/community-hub/internal/middleware"
	sqliteRepo "github.com/sakif/community-hub/internal/repository/sqlite"
	"github.com/sakif/community-hub/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and every long-lived resource behind it.
//
// RESOURCE MANAGEMENT:
// The database and the broker are opened in New and released by Close.
// Start calls Close itself once the HTTP server has drained.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	broker *broker.Broker
}

// New opens storage, starts the broker and wires every route.
// On error, whatever was already opened is closed again.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	b, err := broker.Start(broker.Config{
		URL:     cfg.NATSURL,
		Port:    cfg.NATSPort,
		Subject: cfg.FeedSubject,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting broker: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		broker: b,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                               → storage + broker health
//	POST   /api/accounts                          → register
//	POST   /api/sessions                          → sign in
//	DELETE /api/sessions/current                  → sign out          (optional auth)
//	GET    /api/me                                → current profile   (optional auth)
//	GET    /api/users/local                       → local directory
//	GET    /api/organizations                     → approved organizations
//	GET    /api/posts                             → feed snapshot
//	GET    /api/feed/stream                       → live feed (SSE)
//	PATCH  /api/users/{id}                        → edit profile      (auth, self or admin)
//	POST   /api/posts                             → publish           (auth)
//	GET    /api/admin/organizations/pending       → approval queue    (admin)
//	PUT    /api/admin/organizations/{id}/approval → approve / revoke  (admin)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it. Recoverer turns panics
// into 500s.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordService(s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	// === Services ===
	// Each receives repository interfaces, never the concrete *sqlite.DB.
	accounts := service.NewAccountService(
		s.db.Credentials(), s.db.Sessions(), s.db.Profiles(),
		tokens, passwords, s.config.SessionTTL, s.logger,
	)
	directory := service.NewDirectoryService(s.db.Profiles(), s.logger)
	moderation := service.NewModerationService(s.db.Profiles(), s.logger)
	feed := service.NewFeedService(s.db.Posts(), s.broker, s.logger)

	// === Handlers ===
	accountHandler := handler.NewAccountHandler(accounts, moderation, s.config.CookieSecure, s.logger)
	directoryHandler := handler.NewDirectoryHandler(directory, s.logger)
	moderationHandler := handler.NewModerationHandler(moderation, s.logger)
	feedHandler := handler.NewFeedHandler(feed, accounts, s.logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"database": s.db.Ping,
		"broker":   s.broker.HealthCheck,
	}, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/accounts", accountHandler.HandleCreateAccount)
		r.Post("/sessions", accountHandler.HandleSignIn)
		r.Get("/users/local", directoryHandler.HandleListLocalUsers)
		r.Get("/organizations", directoryHandler.HandleListOrganizations)
		r.Get("/posts", feedHandler.HandleList)
		r.Get("/feed/stream", feedHandler.HandleStream)

		// Session attached when present
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(accounts))
			r.Delete("/sessions/current", accountHandler.HandleSignOut)
			r.Get("/me", accountHandler.HandleMe)
		})

		// Session required
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(accounts))
			r.Patch("/users/{id}", accountHandler.HandleUpdateProfile)
			r.Post("/posts", feedHandler.HandlePublish)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(moderation, s.logger))
				r.Get("/organizations/pending", moderationHandler.HandleListPending)
				r.Put("/organizations/{id}/approval", moderationHandler.HandleSetApproval)
			})
		})
	})

	return nil
}

// Handler returns the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the broker, then the database.
func (s *Server) Close() {
	s.broker.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting new connections
//  2. cancel request contexts so open feed streams end, and wait up to 30s
//     for in-flight requests
//  3. close the broker and the database
func (s *Server) Start() error {
	defer s.Close()

	// Feed streams never go idle, so Shutdown would wait out its whole
	// timeout on them. Cancelling the base context when shutdown begins ends
	// every request context, which closes the streams.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	// WriteTimeout applies to every response; the feed stream lifts it for
	// itself with http.ResponseController.
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.DBPath),
			slog.String("feed_subject", s.broker.Subject()),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

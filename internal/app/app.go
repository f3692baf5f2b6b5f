package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/munezero-grace/student-registration-backend/internal/auth"
	"github.com/munezero-grace/student-registration-backend/internal/config"
	"github.com/munezero-grace/student-registration-backend/internal/db"
	"github.com/munezero-grace/student-registration-backend/internal/events"
	"github.com/munezero-grace/student-registration-backend/internal/health"
	"github.com/munezero-grace/student-registration-backend/internal/logger"
	"github.com/munezero-grace/student-registration-backend/internal/metrics"
	"github.com/munezero-grace/student-registration-backend/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type App struct {
	config   *config.Config
	router   chi.Router
	server   *http.Server
	logger   *slog.Logger
	producer events.Producer
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handlers
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	m, err := metrics.New(ServiceName)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}

	database := db.New(cfg.Database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, database, (*user.User)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	app.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// Health endpoints (no auth required)
	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// Lifecycle event producer (optional)
	producer, err := events.New(cfg.Events, slogLogger, m)
	if err != nil {
		slogLogger.Warn("failed to initialize event producer", "error", err)
		producer = nil
	}
	app.producer = producer

	userRepo := user.NewRepository(database, m)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	authService := auth.NewService(userRepo, tokenManager, producer, cfg.Auth.CohortYear, slogLogger)
	if err := authService.EnsureAdminAccount(ctx, cfg.Admin); err != nil {
		log.Fatal("failed to seed admin account:", err)
	}

	userService := user.NewService(userRepo, producer, slogLogger)
	userHandler := user.NewHandler(userService, slogLogger, m)
	authHandler := auth.NewHandler(authService, slogLogger, m)

	app.router.Route("/api", func(r chi.Router) {
		// Login and registration are public
		authHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(tokenManager, userRepo, slogLogger))
			userHandler.RegisterProfileRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate(tokenManager, userRepo, slogLogger))
			r.Use(auth.RequireAdmin(slogLogger))
			userHandler.RegisterAdminRoutes(r)
		})
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close event producer", "error", err)
		}
	}
	return a.server.Shutdown(ctx)
}

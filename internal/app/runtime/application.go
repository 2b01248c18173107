// Package runtime assembles the application: configuration, storage,
// services, HTTP surface and lifecycle.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/palazzo-labs/statecraft/internal/app/httpapi"
	"github.com/palazzo-labs/statecraft/internal/app/metrics"
	"github.com/palazzo-labs/statecraft/internal/app/services/catalogsvc"
	"github.com/palazzo-labs/statecraft/internal/app/services/game"
	"github.com/palazzo-labs/statecraft/internal/app/services/players"
	"github.com/palazzo-labs/statecraft/internal/app/storage/postgres"
	"github.com/palazzo-labs/statecraft/internal/config"
	"github.com/palazzo-labs/statecraft/internal/middleware"
	"github.com/palazzo-labs/statecraft/internal/platform/migrations"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

// Application owns every long-lived component of the service.
type Application struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *sql.DB
	server *http.Server
}

// New builds the application: opens the database, applies migrations and
// wires services behind the middleware chain.
func New(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrations.Apply(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	m := metrics.New()

	gameSvc := game.NewService(store, store, store, game.Config{
		EventChance: &cfg.Game.EventChance,
	}, m, log.WithField("component", "game"))
	catalogSvc := catalogsvc.NewService(store, log.WithField("component", "catalog"))
	playersSvc := players.NewService(store, players.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	}, log.WithField("component", "players"))

	handler := httpapi.NewHandler(gameSvc, catalogSvc, playersSvc, db.PingContext, log.WithField("component", "httpapi"))

	router := mux.NewRouter()
	handler.Register(router)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	router.Use(middleware.LoggingMiddleware(log.WithField("component", "http")))
	router.Use(middleware.MetricsMiddleware(m))

	auth := middleware.NewAuthMiddleware(playersSvc, log.WithField("component", "auth"), []string{
		"/healthz",
		"/metrics",
		"/api/auth/register",
		"/api/auth/login",
	})
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.WithField("component", "ratelimit"))
	limiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware([]string{"*"})

	chain := cors.Handler(auth.Handler(limiter.Handler(router)))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, logger: log, db: db, server: server}, nil
}

// Run serves HTTP until the server is shut down.
func (a *Application) Run() error {
	a.logger.WithField("addr", a.server.Addr).Info("server listening")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")
	err := a.server.Shutdown(ctx)
	if closeErr := a.db.Close(); err == nil {
		err = closeErr
	}
	return err
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/events"
	"github.com/phrazzld/atlas-api/internal/platform/gemini"
	"github.com/phrazzld/atlas-api/internal/platform/postgres"
	"github.com/phrazzld/atlas-api/internal/service/auth"
	"github.com/phrazzld/atlas-api/internal/store"
	"github.com/phrazzld/atlas-api/internal/task"
)

// shutdownTimeout bounds how long cleanup waits for running refreshes to
// record their terminal state.
const shutdownTimeout = 30 * time.Second

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore  store.TaskStore
	placeStore store.PlaceStore

	// Discovery boundary
	source discovery.Source

	// Service interfaces
	jwtService  auth.JWTService
	keyVerifier auth.KeyVerifier

	// Event system
	eventEmitter events.EventEmitter

	// Refresh orchestration
	manager *task.Manager
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(db); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied at startup")
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize operator key verifier
	app.keyVerifier = auth.NewBcryptVerifier()

	// Initialize stores
	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.placeStore = postgres.NewPostgresPlaceStore(db)

	// Create the Gemini-backed discovery source
	app.source, err = gemini.NewGeminiSource(
		ctx,
		logger.With("component", "discovery_source"),
		cfg.LLM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize discovery source: %w", err)
	}
	logger.Info("discovery source initialized", "model", cfg.LLM.ModelName)

	// Initialize event emitter with the audit trail handler
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewAuditLogHandler(logger))
	app.eventEmitter = emitter

	// Assemble the refresh core: permit pool, retry policy, paced fetcher
	// and the manager that orchestrates hierarchy walks.
	permits := task.NewPermitPool(cfg.Refresh.FetchConcurrency)
	retry := task.NewRetryPolicy(task.RetryConfig{
		MaxAttempts: cfg.Refresh.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Refresh.RetryBaseDelaySeconds) * time.Second,
	}, logger)

	fetcher, err := task.NewHierarchyFetcher(app.source, permits, retry, task.FetcherConfig{
		Timeout:           time.Duration(cfg.Refresh.FetchTimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Refresh.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create hierarchy fetcher: %w", err)
	}

	app.manager, err = task.NewManager(
		app.taskStore,
		app.placeStore,
		fetcher,
		task.NewGoScheduler(),
		app.eventEmitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	logger.Info("application initialized successfully",
		"fetch_concurrency", cfg.Refresh.FetchConcurrency,
		"retry_max_attempts", cfg.Refresh.RetryMaxAttempts)
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup. It
// returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources: running
// refreshes first, then the database connection.
func (app *application) cleanup() {
	if app.manager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.manager.Shutdown(ctx); err != nil {
			app.logger.Error("task manager shutdown incomplete", "error", err)
		}
	}

	if app.db != nil {
		closeDatabase(app.db, app.logger)
	}

	app.logger.Info("application shutdown completed")
}

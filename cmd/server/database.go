package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/platform/postgres"
)

// openDatabase establishes the database connection, configures the pool and
// verifies connectivity.
func openDatabase(cfg *config.Config, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}

// closeDatabase closes the connection pool, logging rather than failing on
// error.
func closeDatabase(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("error closing database connection", "error", err)
	}
}

// runMigrations executes one migration command against the embedded set.
func runMigrations(db *sql.DB, command string, log *slog.Logger) error {
	switch command {
	case "up":
		if err := postgres.MigrateUp(db); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	case "down":
		if err := postgres.MigrateDown(db); err != nil {
			return err
		}
		log.Info("migration rolled back")
		return nil
	case "status":
		return postgres.MigrationStatus(db)
	default:
		return fmt.Errorf("unknown migrate command %q: want up, down or status", command)
	}
}

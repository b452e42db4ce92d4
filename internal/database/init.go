package database

import (
	"context"
	"fmt"

	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/logger"
)

// InitFromConfig initializes a database connection from application config
func InitFromConfig(cfg *config.Config) (*DB, error) {
	dbConfig := Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}

	db, err := New(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded schema migrations that are still pending
func RunMigrations(ctx context.Context, db *DB) error {
	runner := NewMigrationRunner(db, Migrations())
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// LogMigrationStatus logs the applied state of every embedded migration
func LogMigrationStatus(ctx context.Context, db *DB) error {
	states, err := NewMigrationRunner(db, Migrations()).Status(ctx)
	if err != nil {
		return err
	}
	for _, s := range states {
		logger.Info(ctx, "Migration status", "version", s.Version, "name", s.Name, "applied", s.Applied)
	}
	return nil
}

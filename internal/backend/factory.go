// Package backend opens the configured record store.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finance-tracker/internal/kvstore"
	"finance-tracker/internal/service"
	"finance-tracker/internal/storage"
)

// Type names a record store implementation.
type Type string

const (
	SQLite Type = "sqlite"
	Bolt   Type = "bolt"
)

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	return t == SQLite || t == Bolt
}

// Config selects and locates a backend.
type Config struct {
	Type     Type
	DBPath   string
	BoltPath string
}

// Store is a service.Store that owns resources.
type Store interface {
	service.Store
	UserCount(ctx context.Context) (int, error)
	Close() error
}

// Open opens the store described by cfg.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case SQLite:
		db, err := storage.NewDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.DBPath)
		return db, nil
	case Bolt:
		st, err := kvstore.New(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		logger.Info("Initialized bolt backend", "bolt_path", cfg.BoltPath)
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

package main

import (
	"fmt"

	"carelog/factstore/pkg/config"
	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/storage"
)

// buildRegistry creates the record type registry: builtins plus any
// schemas configured on disk.
func buildRegistry(cfg *config.Config) (*fact.Registry, error) {
	registry := fact.NewRegistry()
	if cfg.Schemas.Path != "" {
		if err := registry.LoadFile(cfg.Schemas.Path); err != nil {
			return nil, fmt.Errorf("failed to load schemas from %q: %w", cfg.Schemas.Path, err)
		}
	}
	return registry, nil
}

// openBackend creates the configured storage backend.
func openBackend(cfg *config.Config, registry *fact.Registry) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		sqliteConfig := &storage.SQLiteConfig{
			Path:         cfg.Storage.SQLite.Path,
			Driver:       cfg.Storage.SQLite.Driver,
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Storage.SQLite.MaxIdleConns,
			WALMode:      cfg.Storage.SQLite.WALMode,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
		}
		return storage.NewSQLiteStore(sqliteConfig, registry)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

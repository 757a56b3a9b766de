package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// FactoryConfig selects and configures a storage backend.
type FactoryConfig struct {
	Backend      string
	BadgerPath   string
	PostgresDSN  string
	PostgresConn int
}

// NewRepository opens the configured backend. Badger is the default.
func NewRepository(ctx context.Context, cfg FactoryConfig, logger logrus.FieldLogger) (Repository, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "badger"
	}

	switch backend {
	case "badger":
		if strings.TrimSpace(cfg.BadgerPath) == "" {
			return nil, errors.New("BADGERDB_PATH is required when STORAGE_BACKEND=badger")
		}
		repo, err := NewBadgerRepository(cfg.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil

	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
		repo, err := NewPostgresRepository(ctx, cfg.PostgresDSN, cfg.PostgresConn, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return nil, errors.New("unknown STORAGE_BACKEND (use badger or postgres)")
	}
}

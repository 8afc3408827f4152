// Package bootstrap opens the configured store and seeds it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/config"
	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/repo/memory"
	"github.com/hamed0406/sitemonitor/internal/repo/postgres"
	"github.com/hamed0406/sitemonitor/internal/repo/sqlite"
)

// OpenStore opens the driver named in cfg, creates the schema when
// cfg.AutoMigrate is set, and verifies that the required tables exist. A
// store without its schema is closed and returned as an error wrapping
// repo.ErrSchemaMissing.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	var (
		store   repo.Store
		migrate func() error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = memory.New()
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.DBPath, log)
		if err != nil {
			return nil, err
		}
		store, migrate = s, func() error { return s.Migrate(ctx) }
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		store, migrate = s, s.Migrate
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if cfg.AutoMigrate && migrate != nil {
		if err := migrate(); err != nil {
			return nil, multierr.Append(err, store.Close())
		}
	}
	if err := store.VerifySchema(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("verify schema: %w", err), store.Close())
	}

	log.Info("store_ready",
		zap.String("driver", cfg.StoreDriver),
		zap.Bool("auto_migrate", cfg.AutoMigrate),
	)
	return store, nil
}

// VerifyStore checks that the configured store is reachable and already
// carries its schema. It never migrates, and a missing sqlite file is
// reported rather than created.
func VerifyStore(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.StoreDriver == config.DriverSQLite && cfg.DBPath != ":memory:" {
		if _, err := os.Stat(cfg.DBPath); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("database file %s does not exist: %w", cfg.DBPath, repo.ErrSchemaMissing)
			}
			return fmt.Errorf("stat database file: %w", err)
		}
	}
	cfg.AutoMigrate = false
	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	return store.Close()
}

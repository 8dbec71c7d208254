// Package store selects and opens the configured core.EntityStore backend.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/config"
	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/db"
	"github.com/adw-ith/hack25-spicechain/internal/store/badgerstore"
	"github.com/adw-ith/hack25-spicechain/internal/store/memstore"
	"github.com/adw-ith/hack25-spicechain/internal/store/pgstore"
)

// Open returns the backend named by cfg.Store.Driver and a func that
// releases it. Postgres migrations run first when postgres.migrate is set.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (core.EntityStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory ledger; events are lost on exit")
		return memstore.New(), func() {}, nil

	case config.DriverBadger:
		s, err := badgerstore.Open(cfg.Store.BadgerDir, log.Named("badger"))
		if err != nil {
			return nil, nil, err
		}
		log.Info("opened badger ledger", zap.String("dir", cfg.Store.BadgerDir), zap.Bool("sync_writes", s.Durable()))
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error("failed to close badger", zap.Error(err))
			}
		}, nil

	case config.DriverPostgres:
		if cfg.Postgres.Migrate {
			if err := db.Migrate(ctx, cfg.Postgres.DSN); err != nil {
				return nil, nil, err
			}
			log.Info("postgres migrations applied")
		}
		pool, err := db.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

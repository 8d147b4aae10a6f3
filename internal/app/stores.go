// Package app wires stores, engine and runner from configuration. It is shared
// by the server and the CLIs.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/observability"
	"equity-momentum-lab/internal/storage"
	chstore "equity-momentum-lab/internal/storage/clickhouse"
	"equity-momentum-lab/internal/storage/memory"
	"equity-momentum-lab/internal/storage/migrations"
	pgstore "equity-momentum-lab/internal/storage/postgres"
	"equity-momentum-lab/internal/storage/rediscache"
	"equity-momentum-lab/internal/storage/sqlite"
)

// Stores holds the configured price and run stores.
type Stores struct {
	Prices storage.PriceStore
	Runs   storage.RunStore

	closers []func()
}

// Close releases every connection opened by OpenStores, newest first.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Stores) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// OpenStores opens the backends named by cfg and applies migrations.
// metrics may be nil.
func OpenStores(ctx context.Context, cfg config.StorageConfig, redisCfg config.RedisConfig, metrics *observability.Metrics, log zerolog.Logger) (*Stores, error) {
	s := &Stores{}

	if err := s.openPrimary(ctx, cfg, log); err != nil {
		s.Close()
		return nil, err
	}

	if cfg.PriceBackend == config.BackendClickhouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.onClose(func() { conn.Close() })
		s.Prices = chstore.NewPriceStore(conn)
		log.Info().Msg("price panel stored in clickhouse")
	}

	if redisCfg.Enabled {
		client, err := rediscache.NewClient(ctx, rediscache.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.onClose(func() { client.Close() })

		opts := []rediscache.Option{rediscache.WithLogger(log)}
		if metrics != nil {
			opts = append(opts, rediscache.WithObserver(metrics.RecordCacheLookup))
		}
		s.Runs = rediscache.NewCachedRunStore(s.Runs, rediscache.NewResultCache(client, redisCfg.TTL), opts...)
		log.Info().Str("addr", redisCfg.Addr).Dur("ttl", redisCfg.TTL).Msg("run cache enabled")
	}

	return s, nil
}

func (s *Stores) openPrimary(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) error {
	switch cfg.Backend {
	case config.BackendMemory:
		s.Prices = memory.NewPriceStore()
		s.Runs = memory.NewRunStore()

	case config.BackendSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		s.onClose(func() { db.Close() })
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		s.Prices = sqlite.NewPriceStore(db)
		s.Runs = sqlite.NewRunStore(db)

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		s.onClose(pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		s.Prices = pgstore.NewPriceStore(pool)
		s.Runs = pgstore.NewRunStore(pool)

	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	log.Info().Str("backend", cfg.Backend).Msg("stores opened")
	return nil
}

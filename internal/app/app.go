// Package app wires configuration to concrete stores and directories.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"approval-routing/internal/config"
	"approval-routing/internal/repository"
	"approval-routing/internal/services"
)

// OpenStore opens the store selected by cfg.Store.Driver. The returned func
// releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case config.DriverPostgres:
		pool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)
		return store, pool.Close, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info("redis connected", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		store := repository.NewRedisStore(client, repository.WithKeyPrefix(cfg.Redis.Prefix))
		return store, func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Debug("initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewDirectory returns the HR directory client when a URL is configured and
// the static role map otherwise.
func NewDirectory(cfg *config.Config) services.Directory {
	if cfg.Directory.URL != "" {
		return services.NewHTTPDirectory(cfg.Directory.URL, cfg.Directory.Timeout)
	}
	return services.StaticDirectory(cfg.Directory.Roles)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortuna/dubs/internal/cache"
	"github.com/fortuna/dubs/internal/store"
)

const (
	connectAttempts = 30
	connectDelay    = 2 * time.Second
)

// retry calls fn until it succeeds, attempts run out or ctx is cancelled
func retry(ctx context.Context, what string, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		slog.Warn("connection attempt failed", "target", what, "attempt", i+1, "of", attempts, "retry_in", delay, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("connecting to %s after %d attempts: %w", what, attempts, err)
}

// openDatabase connects and migrates the configured database
func openDatabase(ctx context.Context, dsn string) (*store.Database, error) {
	var db *store.Database
	err := retry(ctx, "database", connectAttempts, connectDelay, func() error {
		var err error
		db, err = store.NewDatabase(ctx, dsn)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready", "driver", db.Driver())
	return db, nil
}

// openRedis connects to redis, returning nil when no URL is configured
func openRedis(ctx context.Context, url string) (*cache.RedisCache, error) {
	if url == "" {
		return nil, nil
	}
	var rc *cache.RedisCache
	err := retry(ctx, "redis", connectAttempts, connectDelay, func() error {
		var err error
		rc, err = cache.NewRedisCache(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to redis")
	return rc, nil
}

// analysisCache prefers redis and falls back to an in-process LRU
func analysisCache(rc *cache.RedisCache) (cache.Cache, error) {
	if rc != nil {
		return rc, nil
	}
	slog.Info("redis not configured, caching analyses in memory")
	return cache.NewMemoryCache(256)
}

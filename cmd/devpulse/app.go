package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/devpulse/internal/analytics"
	"github.com/rohankatakam/devpulse/internal/cache"
	"github.com/rohankatakam/devpulse/internal/dashboard"
	"github.com/rohankatakam/devpulse/internal/database"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/jobs"
	"github.com/rohankatakam/devpulse/internal/storage"
)

// app holds the process-wide dependencies. Each is built once and injected.
type app struct {
	db    *database.Client
	store storage.Store
	cache *cache.Manager
	svc   *dashboard.Service
}

// openApp connects storage, the analytics source and the cache. Analytics read
// the Postgres indexer when database.postgres_dsn is set, otherwise the local
// SQLite copy of the indexer tables.
func openApp(ctx context.Context) (*app, error) {
	if err := cfg.MustValidate(); err != nil {
		return nil, err
	}

	a := &app{}
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	var source analytics.Source
	switch local, isLocal := store.(*storage.SQLiteStore); {
	case cfg.Database.PostgresDSN != "":
		db, err := database.NewClient(ctx, cfg.Database.PostgresDSN, cfg.Database.MaxConns)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		source = db
	case isLocal:
		logger.Debug("Reading analytics from the local sqlite store")
		source = local
	default:
		a.Close()
		return nil, errors.ConfigErrorf("database.postgres_dsn is required unless storage.type is sqlite")
	}

	c, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = c

	a.svc = dashboard.NewService(analytics.New(source), store, c)
	return a, nil
}

// locker returns the advisory locker for scheduled jobs, if any
func (a *app) locker() jobs.Locker {
	if a.db == nil {
		return nil
	}
	return a.db
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close cache")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close storage")
		}
	}
}

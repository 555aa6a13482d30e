package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cranland/parcel-cli/internal/db"
	"github.com/cranland/parcel-cli/internal/store"
)

// initStore connects the Postgres pool and wraps it in the schema store. The
// returned closer must be called when the command finishes.
func initStore(ctx context.Context) (*store.Store, func(), error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, nil, eris.New("store.database_url is not configured (PARCEL_STORE_DATABASE_URL)")
	}

	pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	if err != nil {
		return nil, nil, err
	}
	return store.New(pool), pool.Close, nil
}

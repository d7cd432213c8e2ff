package main

import (
	"context"
	"fmt"

	"storyweave/internal/config"
	"storyweave/internal/store"
	"storyweave/internal/store/postgres"
	"storyweave/internal/store/sqlite"
)

// openDB connects to the report store named by the project DSN and makes
// sure its schema exists.
func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := cfg.Database.DSN
	if dsn == "" {
		return nil, fmt.Errorf("no database configured; set database.dsn or STORYWEAVE_DATABASE_DSN")
	}

	var (
		db  store.Store
		err error
	)
	switch config.BackendOf(dsn) {
	case "postgres":
		db, err = postgres.New(ctx, dsn)
	case "sqlite":
		db, err = sqlite.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn scheme: %s", dsn)
	}
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}

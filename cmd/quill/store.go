package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	// SQL backends supported by the documents store
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/quillstore/quill/docstore"
)

// openStore builds the configured store backend
func openStore(ctx context.Context, cfg *Config) (docstore.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case "redis":
		store, err := docstore.NewRedisStore(docstore.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		return store, store, nil

	case "postgres", "sqlite":
		driver := cfg.Store.SQL.Driver
		dialect := docstore.DialectPostgres
		if cfg.Store.Backend == "sqlite" {
			dialect = docstore.DialectSQLite
		}
		db, err := sql.Open(driver, cfg.Store.SQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s database: %w", driver, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("connect to %s database: %w", driver, err)
		}
		store := docstore.NewSQLStore(db, dialect)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure documents table: %w", err)
		}
		return store, store, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

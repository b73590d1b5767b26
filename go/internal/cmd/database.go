package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftturns/go/internal/dbconfig"
	"github.com/mcdev12/draftturns/go/internal/draft/store/postgres"
)

// Database holds the pgx pool used by the engine and the database/sql handle used for
// migrations and the outbox.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

func setupDatabase(ctx context.Context, cfg dbconfig.Config) (*Database, error) {
	dsn := cfg.DSN()

	db, err := postgres.OpenSQL(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect pgx pool: %w", err)
	}

	log.Info().
		Str("user", cfg.User).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return &Database{Pool: pool, SQL: db}, nil
}

func (d *Database) Close() {
	d.Pool.Close()
	if err := d.SQL.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}

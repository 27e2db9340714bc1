// Package store is the persistent Postgres-backed record of plans,
// incidents, and the historical-incident similarity index. All writes are
// idempotent upserts keyed by primary key (§3.1, §6).
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store holds the connection pool shared by the Plan/Incident/Historical
// repositories.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres using databaseURL, configuring
// DefaultQueryExecMode = QueryExecModeDescribeExec so cached prepared-
// statement plans don't go stale across schema migrations applied while
// the process is running (observed failure mode: "cached plan must not
// change result type" after an in-place migration).
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping reports the pool's connectivity, for the health endpoint's
// dependency status (§6 "component liveness plus dependency status").
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies all pending goose migrations. It opens a short-lived
// database/sql connection via the pgx stdlib adapter because goose's
// runner operates on *sql.DB, not a pgx pool.
func Migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

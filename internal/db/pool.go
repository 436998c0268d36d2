// Package db opens the pgvector connection pool and prepares the collection
// tables the pgvector backend reads and writes.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect retry schedule. The database usually starts alongside the server in
// compose, so the first attempts are expected to fail.
const (
	connectAttempts = 10
	firstBackoff    = time.Second
	maxBackoff      = 10 * time.Second
)

// A chat request issues at most a primary search, one secondary search and a
// chunk lookup, each holding a connection only for the query itself.
const (
	poolMaxConns        = 8
	poolMinConns        = 1
	poolMaxConnLifetime = time.Hour
	poolMaxConnIdleTime = 10 * time.Minute
)

// vectorExtension provides the vector column type and the <=> operator.
const vectorExtension = "vector"

// Connect opens a pool against databaseURL and pings it, retrying with a
// doubling backoff until the database answers or ctx ends.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.MaxConnLifetime = poolMaxConnLifetime
	cfg.MaxConnIdleTime = poolMaxConnIdleTime

	wait := firstBackoff
	for attempt := 1; ; attempt++ {
		pool, err := open(ctx, cfg)
		if err == nil {
			slog.Info("pgvector pool ready", "attempt", attempt, "max_conns", cfg.MaxConns)
			return pool, nil
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("connect to pgvector after %d attempts: %w", attempt, err)
		}

		slog.Warn("pgvector not reachable yet",
			"attempt", attempt,
			"wait", wait.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to pgvector: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

// open creates a pool and closes it again if the first ping fails.
func open(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func nextBackoff(wait time.Duration) time.Duration {
	return min(wait*2, maxBackoff)
}

// CheckExtensions fails unless the vector extension is installed.
func CheckExtensions(ctx context.Context, pool *pgxpool.Pool) error {
	var version string
	err := pool.QueryRow(ctx,
		"SELECT extversion FROM pg_extension WHERE extname = $1", vectorExtension,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("extension %q is not installed, run ragctl migrate first", vectorExtension)
	}
	if err != nil {
		return fmt.Errorf("look up extension %q: %w", vectorExtension, err)
	}
	slog.Debug("pgvector extension present", "version", version)
	return nil
}

// CheckTables fails on the first collection table that is missing.
func CheckTables(ctx context.Context, pool *pgxpool.Pool, tables []string) error {
	for _, table := range tables {
		var found bool
		err := pool.QueryRow(ctx,
			"SELECT to_regclass($1) IS NOT NULL", pgx.Identifier{table}.Sanitize(),
		).Scan(&found)
		if err != nil {
			return fmt.Errorf("look up collection table %q: %w", table, err)
		}
		if !found {
			return fmt.Errorf("collection table %q does not exist, run ragctl migrate first", table)
		}
	}
	return nil
}

// StartupChecks confirms the database can serve the given collection tables.
func StartupChecks(ctx context.Context, pool *pgxpool.Pool, tables []string) error {
	if err := CheckExtensions(ctx, pool); err != nil {
		return err
	}
	if err := CheckTables(ctx, pool, tables); err != nil {
		return err
	}
	slog.Info("pgvector collections ready", "tables", tables)
	return nil
}

// collectionDDL returns the statements that create table and its source index.
func collectionDDL(table string) []string {
	ident := pgx.Identifier{table}.Sanitize()
	index := pgx.Identifier{table + "_source_idx"}.Sanitize()
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + ident + ` (
			id        uuid PRIMARY KEY,
			source    text NOT NULL,
			content   text NOT NULL,
			chunk_num integer NOT NULL DEFAULT 0,
			embedding vector NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + index + ` ON ` + ident + ` (source)`,
	}
}

// Migrate creates the vector extension and one table per collection if they
// are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables []string) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS `+vectorExtension); err != nil {
		return fmt.Errorf("create extension %s: %w", vectorExtension, err)
	}
	for _, table := range tables {
		for _, stmt := range collectionDDL(table) {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate table %q: %w", table, err)
			}
		}
		slog.Info("collection table ready", "table", table)
	}
	return nil
}

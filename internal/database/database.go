// Package database is the tileset job journal. Submitted generation jobs are
// recorded so a later process can resume polling a job that outlived the
// one that submitted it. SQLite is the default; PostgreSQL serves a journal
// shared between machines.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database wraps the journal connection.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates the SQLite journal at the given path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the journal described by cfg and applies the schema.
func OpenWithConfig(cfg Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect := NewDialect(DialectType(cfg.Driver))

	_, postgres := dialect.(*PostgresDialect)

	dsn := cfg.SQLitePath
	if postgres {
		dsn = cfg.Postgres.DSN()
	} else {
		dir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if postgres {
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
	} else {
		// PRAGMAs are per connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.DriverName(), err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init statement %q failed: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Dialect returns the dialect the journal was opened with.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// migrate creates the journal schema if it doesn't exist.
func (d *Database) migrate() error {
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tileset_jobs (
			job_id TEXT PRIMARY KEY,
			lower_description TEXT NOT NULL,
			upper_description TEXT NOT NULL,
			transition_size %s NOT NULL DEFAULT 0,
			tile_size INTEGER NOT NULL DEFAULT 16,
			lower_base_tile_id TEXT NOT NULL DEFAULT '',
			upper_base_tile_id TEXT NOT NULL DEFAULT '',
			options TEXT NOT NULL DEFAULT '{}',
			chain_id TEXT NOT NULL DEFAULT '',
			chain_step INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			local_path TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`, d.dialect.FloatType()),

		`CREATE INDEX IF NOT EXISTS idx_tileset_jobs_status ON tileset_jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tileset_jobs_chain ON tileset_jobs(chain_id, chain_step)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

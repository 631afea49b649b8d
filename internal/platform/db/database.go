package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Drivers understood by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and sizes the backing store.
type Options struct {
	Driver   string
	URL      string // file path for sqlite, connection URL for postgres
	MaxConns int32
	MinConns int32
	Schema   string // postgres schema holding this service's tables
}

// Database holds exactly one open handle, chosen by driver.
type Database struct {
	Driver string
	Schema string
	Pool   *pgxpool.Pool
	SQL    *sql.DB
}

// Open connects to the configured store.
func Open(ctx context.Context, opts Options) (*Database, error) {
	switch opts.Driver {
	case DriverPostgres:
		pool, err := NewPool(ctx, opts.URL, opts.MaxConns, opts.MinConns, opts.Schema)
		if err != nil {
			return nil, err
		}
		return &Database{Driver: DriverPostgres, Schema: opts.Schema, Pool: pool}, nil
	case DriverSQLite, "":
		sqlDB, err := OpenSQLite(ctx, opts.URL)
		if err != nil {
			return nil, err
		}
		return &Database{Driver: DriverSQLite, SQL: sqlDB}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Ping checks that the store is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if d.Pool != nil {
		return d.Pool.Ping(ctx)
	}
	return d.SQL.PingContext(ctx)
}

// Migrator returns a migrator reading this driver's subdirectory of
// migrations ("postgres" or "sqlite").
func (d *Database) Migrator(migrations fs.FS) (*Migrator, error) {
	sub, err := fs.Sub(migrations, d.Driver)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", d.Driver, err)
	}
	if d.Pool != nil {
		return NewPostgresMigrator(d.Pool, d.Schema, sub), nil
	}
	return NewSQLiteMigrator(d.SQL, sub), nil
}

// Close releases the underlying handle.
func (d *Database) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.SQL != nil {
		d.SQL.Close()
	}
}

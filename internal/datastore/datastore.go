// Package datastore is the SQL backed persistence facility. It owns the
// database handle, the transaction scope carried in a context and the
// per-entity Manager implementing persistence.EntityManager.
package datastore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/roster/internal/datastore/dialect"
	"github.com/jbweber/homelab/roster/internal/migrations"
)

// DefaultDriver is the database/sql driver used when Options.Driver is empty.
const DefaultDriver = "sqlite"

// Options configures a Datastore.
type Options struct {
	// Driver is a registered database/sql driver: "sqlite" or "pgx".
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// SkipMigrations leaves the schema alone on open.
	SkipMigrations bool

	Logger *zap.Logger
}

// Datastore wraps the database handle shared by every Manager.
type Datastore struct {
	DB *sql.DB

	dialect dialect.Dialect
	stmts   *PreparedStatementCache
	log     *zap.Logger
}

// New opens the database described by opts, tunes the connection and runs
// migrations.
func New(opts Options) (*Datastore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	d := dialect.New(driver)
	if d.Name() == dialect.NameUnknown {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dsn := opts.DSN
	if d.Name() == dialect.NameSQLite {
		dsn = WithConnectionPragmas(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	OptimizeDatabaseConnection(db, opts)

	if d.Name() == dialect.NameSQLite {
		if err := ApplyPragmaOptimizations(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
		}
	}

	ds := Wrap(db, driver, opts.Logger)

	if !opts.SkipMigrations {
		if err := ds.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return ds, nil
}

// Wrap builds a Datastore around an already opened handle.
func Wrap(db *sql.DB, driver string, log *zap.Logger) *Datastore {
	if log == nil {
		log = zap.NewNop()
	}
	return &Datastore{
		DB:      db,
		dialect: dialect.New(driver),
		stmts:   NewPreparedStatementCache(db),
		log:     log.Named("datastore"),
	}
}

// Migrate applies all pending schema migrations.
func (ds *Datastore) Migrate() error {
	migrator := migrations.NewMigrator(ds.DB, ds.dialect)

	for _, migration := range migrations.All() {
		migrator.AddMigration(migration)
	}

	if err := migrator.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Dialect returns the dialect of the underlying driver.
func (ds *Datastore) Dialect() dialect.Dialect {
	return ds.dialect
}

// CachedStatements returns the number of prepared statements held.
func (ds *Datastore) CachedStatements() int {
	return ds.stmts.Size()
}

// Close releases cached statements and the database handle.
func (ds *Datastore) Close() error {
	stmtErr := ds.stmts.Close()
	if err := ds.DB.Close(); err != nil {
		return err
	}
	return stmtErr
}

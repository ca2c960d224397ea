package datastore

import (
	"database/sql"
	"strings"
	"time"
)

// connectionPragmas are applied by the driver to every new connection.
var connectionPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// WithConnectionPragmas appends the per-connection pragmas to a SQLite DSN
func WithConnectionPragmas(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range connectionPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// OptimizeDatabaseConnection applies pool settings, falling back to defaults
// for anything opts leaves at zero.
func OptimizeDatabaseConnection(db *sql.DB, opts Options) {
	db.SetMaxOpenConns(orInt(opts.MaxOpenConns, 10))
	db.SetMaxIdleConns(orInt(opts.MaxIdleConns, 5))
	db.SetConnMaxLifetime(orDuration(opts.ConnMaxLifetime, 5*time.Minute))
	db.SetConnMaxIdleTime(orDuration(opts.ConnMaxIdleTime, 1*time.Minute))
}

// ApplyPragmaOptimizations applies database wide SQLite pragmas
func ApplyPragmaOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Balance between safety and performance
		"PRAGMA cache_size = 10000",   // Increase cache size (10MB)
		"PRAGMA temp_store = MEMORY",  // Store temporary tables in memory
		"PRAGMA optimize",             // Enable query optimizer
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

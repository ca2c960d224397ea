package migrations

import (
	"database/sql"

	"github.com/jbweber/homelab/roster/internal/datastore/dialect"
)

// All returns every migration known to roster, in no particular order.
func All() []Migration {
	return append(GetInitialMigrations(), GetIndexMigrations()...)
}

// GetInitialMigrations returns the migrations creating the base tables
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users_table",
			Up: func(tx *sql.Tx, d dialect.Dialect) error {
				_, err := tx.Exec(createUsersTable(d))
				return err
			},
			Down: func(tx *sql.Tx, _ dialect.Dialect) error {
				_, err := tx.Exec("DROP TABLE IF EXISTS users")
				return err
			},
		},
	}
}

// GetIndexMigrations returns the index migrations
func GetIndexMigrations() []Migration {
	return []Migration{
		{
			Version: 2,
			Name:    "add_user_indices",
			Up: func(tx *sql.Tx, _ dialect.Dialect) error {
				indices := []string{
					"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
					"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)",
				}

				for _, indexSQL := range indices {
					if _, err := tx.Exec(indexSQL); err != nil {
						return err
					}
				}

				return nil
			},
			Down: func(tx *sql.Tx, _ dialect.Dialect) error {
				indices := []string{
					"DROP INDEX IF EXISTS idx_users_username",
					"DROP INDEX IF EXISTS idx_users_email",
				}

				for _, dropSQL := range indices {
					if _, err := tx.Exec(dropSQL); err != nil {
						return err
					}
				}

				return nil
			},
		},
	}
}

func createUsersTable(d dialect.Dialect) string {
	if d.Name() == dialect.NamePostgres {
		return `
			CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username TEXT NOT NULL,
				email TEXT NOT NULL,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`
	}
	return `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
}

package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jbweber/homelab/roster/internal/datastore/dialect"
	"github.com/jbweber/homelab/roster/internal/domain"
	"github.com/jbweber/homelab/roster/internal/persistence"
)

var userMapping = persistence.Mapping[domain.User, int64]{
	Table:    "users",
	IDColumn: "id",
	Columns:  []string{"username", "email"},
	Identity: func(u domain.User) (int64, bool) { return u.ID, u.ID != 0 },
	WithIdentity: func(u domain.User, id int64) domain.User {
		u.ID = id
		return u
	},
	Values: func(u domain.User) []any { return []any{u.Username, u.Email} },
	Scan: func(s persistence.Scanner) (domain.User, error) {
		var u domain.User
		err := s.Scan(&u.ID, &u.Username, &u.Email)
		return u, err
	},
}

func openTestDatastore(t *testing.T) *Datastore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	ds, err := New(Options{DSN: dsn, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func newUserManager(t *testing.T, ds *Datastore) *Manager[domain.User, int64] {
	t.Helper()
	mgr, err := NewManager(ds, userMapping)
	require.NoError(t, err)
	return mgr
}

func TestNew(t *testing.T) {
	ds := openTestDatastore(t)

	assert.Equal(t, dialect.NameSQLite, ds.Dialect().Name())
	require.NoError(t, ds.DB.Ping())

	var version int
	require.NoError(t, ds.DB.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(Options{Driver: "oracle", DSN: "whatever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNew_SkipMigrations(t *testing.T) {
	ds, err := New(Options{DSN: "file:TestNew_SkipMigrations?mode=memory&cache=shared", SkipMigrations: true})
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	var count int
	require.NoError(t, ds.DB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='users'").Scan(&count))
	assert.Equal(t, 0, count)

	require.NoError(t, ds.Migrate())
	require.NoError(t, ds.DB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='users'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewManager_InvalidMapping(t *testing.T) {
	ds := openTestDatastore(t)

	m := userMapping
	m.Identity = nil
	_, err := NewManager(ds, m)
	assert.ErrorIs(t, err, persistence.ErrInvalidMapping)

	m = userMapping
	m.Columns = nil
	_, err = NewManager(ds, m)
	assert.ErrorIs(t, err, persistence.ErrInvalidMapping)
}

func TestNewManager_Statements(t *testing.T) {
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)

	assert.Equal(t, "INSERT INTO users (username, email) VALUES (?, ?) RETURNING id", mgr.insertSQL)
	assert.Equal(t, "INSERT INTO users (id, username, email) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET username = excluded.username, email = excluded.email", mgr.upsertSQL)
	assert.Equal(t, "DELETE FROM users WHERE id = ?", mgr.deleteSQL)
	assert.Equal(t, "SELECT id, username, email FROM users WHERE id = ?", mgr.findSQL)

	pg := Wrap(ds.DB, "pgx", nil)
	pgMgr, err := NewManager(pg, userMapping)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO users (username, email) VALUES ($1, $2) RETURNING id", pgMgr.insertSQL)
	assert.Equal(t, "DELETE FROM users WHERE id = $1", pgMgr.deleteSQL)
}

func TestNewManager_PreparesStatements(t *testing.T) {
	ds := openTestDatastore(t)
	newUserManager(t, ds)
	assert.Equal(t, 4, ds.CachedStatements())

	// a second manager for the same mapping shares them
	newUserManager(t, ds)
	assert.Equal(t, 4, ds.CachedStatements())

	m := userMapping
	m.Table = "missing"
	_, err := NewManager(ds, m)
	assert.Error(t, err)
}

func TestTransact_RunsCachedStatements(t *testing.T) {
	ctx := context.Background()
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)

	// replace the cached lookup with a statement whose rows are recognisable
	marker, err := ds.DB.PrepareContext(ctx, "SELECT ? + 0, 'cached', 'cached@example.com'")
	require.NoError(t, err)
	ds.stmts.mu.Lock()
	original := ds.stmts.statements[mgr.findSQL]
	ds.stmts.statements[mgr.findSQL] = marker
	ds.stmts.mu.Unlock()
	require.NoError(t, original.Close())

	err = ds.Transact(ctx, func(ctx context.Context) error {
		found, ok, err := mgr.Find(ctx, 7)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.User{ID: 7, Username: "cached", Email: "cached@example.com"}, found)
		return nil
	})
	require.NoError(t, err)
}

func TestTransact_PreparesQueriesAfterCommit(t *testing.T) {
	ctx := context.Background()
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)
	byName := userMapping.SelectAll() + " WHERE username = ?"

	err := ds.Transact(ctx, func(ctx context.Context) error {
		_, err := mgr.CreateQuery(userMapping.SelectAll() + " WHERE username = ?1").SetPosition(1, "a").ResultList(ctx)
		require.NoError(t, err)
		_, ok := ds.stmts.Lookup(byName)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	_, ok := ds.stmts.Lookup(byName)
	assert.True(t, ok)
	assert.Equal(t, 5, ds.CachedStatements())

	// a failing query is not cached
	err = ds.Transact(ctx, func(ctx context.Context) error {
		_, err := mgr.CreateQuery("SELECT id, username, email FROM nowhere").ResultList(ctx)
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, ds.CachedStatements())
}

func TestWithConnectionPragmas(t *testing.T) {
	assert.Equal(t, "roster.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", WithConnectionPragmas("roster.db"))
	assert.Equal(t,
		"file:x?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		WithConnectionPragmas("file:x?mode=memory&cache=shared"))
}

func TestNew_ForeignKeysOnEveryConnection(t *testing.T) {
	ds := openTestDatastore(t)
	ctx := context.Background()

	// hold two distinct connections at once
	first, err := ds.DB.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	second, err := ds.DB.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	for _, conn := range []*sql.Conn{first, second} {
		var enabled int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
		assert.Equal(t, 1, enabled)
	}
}

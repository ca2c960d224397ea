package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/roster/internal/domain"
	"github.com/jbweber/homelab/roster/internal/persistence"
)

func TestQuery_SingleResult(t *testing.T) {
	ctx := context.Background()
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)
	seedUsers(t, ds, mgr,
		domain.User{Username: "alice", Email: "alice@example.com"},
		domain.User{Username: "twin", Email: "twin1@example.com"},
		domain.User{Username: "twin", Email: "twin2@example.com"},
	)
	byName := userMapping.SelectAll() + " WHERE username = ?1"

	t.Run("one row", func(t *testing.T) {
		u, err := mgr.CreateQuery(byName).SetPosition(1, "alice").SingleResult(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", u.Email)
	})

	t.Run("named parameter", func(t *testing.T) {
		u, err := mgr.CreateQuery(userMapping.SelectAll()+" WHERE email = :email").
			SetNamed("email", "twin2@example.com").
			SingleResult(ctx)
		require.NoError(t, err)
		assert.Equal(t, "twin", u.Username)
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := mgr.CreateQuery(byName).SetPosition(1, "nobody").SingleResult(ctx)
		assert.ErrorIs(t, err, persistence.ErrNoResult)
	})

	t.Run("several rows", func(t *testing.T) {
		_, err := mgr.CreateQuery(byName).SetPosition(1, "twin").SingleResult(ctx)
		assert.ErrorIs(t, err, persistence.ErrNonUniqueResult)
	})

	t.Run("unbound parameter", func(t *testing.T) {
		_, err := mgr.CreateQuery(byName).SingleResult(ctx)
		assert.ErrorIs(t, err, persistence.ErrInvalidParameter)
	})
}

func TestQuery_ResultList(t *testing.T) {
	ctx := context.Background()
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)

	empty, err := mgr.CreateQuery(userMapping.SelectAll()).ResultList(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	seedUsers(t, ds, mgr,
		domain.User{Username: "a", Email: "a@example.com"},
		domain.User{Username: "b", Email: "b@example.com"},
	)

	all, err := mgr.CreateQuery(userMapping.SelectAll() + " ORDER BY id").ResultList(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Username)
	assert.Equal(t, "b", all[1].Username)

	_, err = mgr.CreateQuery("SELECT id, username, email FROM nowhere").ResultList(ctx)
	assert.Error(t, err)
}

func TestQuery_ReadsFlushPendingWrites(t *testing.T) {
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)

	err := ds.Transact(context.Background(), func(ctx context.Context) error {
		_, err := mgr.Merge(ctx, domain.User{ID: 5, Username: "pending", Email: "p@example.com"})
		require.NoError(t, err)

		list, err := mgr.CreateQuery(userMapping.SelectAll()).ResultList(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestQuery_ExecuteUpdate(t *testing.T) {
	ds := openTestDatastore(t)
	mgr := newUserManager(t, ds)
	seedUsers(t, ds, mgr,
		domain.User{Username: "a", Email: "a@example.com"},
		domain.User{Username: "b", Email: "b@example.com"},
		domain.User{Username: "c", Email: "c@example.com"},
	)

	var removed int64
	err := ds.Transact(context.Background(), func(ctx context.Context) error {
		var err error
		removed, err = mgr.CreateQuery("DELETE FROM users WHERE username <> :keep").
			SetNamed("keep", "b").
			ExecuteUpdate(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 1, countUsers(t, ds))
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/roster/internal/domain"
	"github.com/jbweber/homelab/roster/internal/repository"
	"github.com/jbweber/homelab/roster/internal/testutil"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, u domain.User) (domain.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, u domain.User) (bool, error) {
	args := m.Called(ctx, u)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (domain.User, bool) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Bool(1)
}

func (m *mockUserRepository) FetchByQuery(ctx context.Context, query string) (domain.User, bool) {
	args := m.Called(ctx, query)
	return args.Get(0).(domain.User), args.Bool(1)
}

func (m *mockUserRepository) FetchListByQuery(ctx context.Context, query string) []domain.User {
	return m.Called(ctx, query).Get(0).([]domain.User)
}

func (m *mockUserRepository) FetchByPosition(ctx context.Context, query string, args ...any) (domain.User, bool) {
	ret := m.Called(ctx, query, args)
	return ret.Get(0).(domain.User), ret.Bool(1)
}

func (m *mockUserRepository) FetchByName(ctx context.Context, query string, params map[string]any) (domain.User, bool) {
	args := m.Called(ctx, query, params)
	return args.Get(0).(domain.User), args.Bool(1)
}

func (m *mockUserRepository) FetchListByPosition(ctx context.Context, query string, args ...any) []domain.User {
	return m.Called(ctx, query, args).Get(0).([]domain.User)
}

func (m *mockUserRepository) FetchListByName(ctx context.Context, query string, params map[string]any) []domain.User {
	return m.Called(ctx, query, params).Get(0).([]domain.User)
}

func (m *mockUserRepository) DeleteAll(ctx context.Context) int64 {
	return m.Called(ctx).Get(0).(int64)
}

func TestUserService_RegisterNewUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("Insert", mock.Anything, domain.User{Username: "test", Email: "mail"}).
			Return(domain.User{ID: 1, Username: "test", Email: "mail"}, nil).Once()

		created, err := NewUserService(repo).RegisterNewUser(ctx, &UserDTO{Username: "test", Email: "mail"})
		require.NoError(t, err)
		assert.Equal(t, &UserDTO{ID: 1, Username: "test", Email: "mail"}, created)
		repo.AssertExpectations(t)
	})

	t.Run("client supplied id is ignored", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("Insert", mock.Anything, domain.User{Username: "test", Email: "mail"}).
			Return(domain.User{ID: 5, Username: "test", Email: "mail"}, nil).Once()

		created, err := NewUserService(repo).RegisterNewUser(ctx, &UserDTO{ID: 99, Username: "test", Email: "mail"})
		require.NoError(t, err)
		assert.Equal(t, int64(5), created.ID)
	})

	t.Run("insert error", func(t *testing.T) {
		insertErr := &repository.InsertError{Entity: "users", Err: errors.New("error")}
		repo := &mockUserRepository{}
		repo.On("Insert", mock.Anything, domain.User{Username: "test", Email: "mail"}).
			Return(domain.User{}, insertErr).Once()

		created, err := NewUserService(repo).RegisterNewUser(ctx, &UserDTO{Username: "test", Email: "mail"})
		assert.Nil(t, created)
		assert.ErrorIs(t, err, repository.ErrInsertFailed)
		repo.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		repo := &mockUserRepository{}
		svc := NewUserService(repo)

		for _, dto := range []*UserDTO{nil, {Email: "mail"}, {Username: "test"}, {Username: " ", Email: "mail"}} {
			_, err := svc.RegisterNewUser(ctx, dto)
			assert.ErrorIs(t, err, repository.ErrInvalidEntity)
		}
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})
}

func TestUserService_GetUser(t *testing.T) {
	ctx := context.Background()
	repo := &mockUserRepository{}
	repo.On("FindByID", mock.Anything, int64(1)).Return(domain.User{ID: 1, Username: "a", Email: "a@example.com"}, true)
	repo.On("FindByID", mock.Anything, int64(2)).Return(domain.User{}, false)
	svc := NewUserService(repo)

	found, err := svc.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", found.Username)

	_, err = svc.GetUser(ctx, 2)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserService_FindByEmail(t *testing.T) {
	ctx := context.Background()
	query := repository.UserMapping.SelectAll() + " WHERE email = :email"
	repo := &mockUserRepository{}
	repo.On("FetchByName", mock.Anything, query, map[string]any{"email": "a@example.com"}).
		Return(domain.User{ID: 1, Username: "a", Email: "a@example.com"}, true)
	repo.On("FetchByName", mock.Anything, query, map[string]any{"email": "none@example.com"}).
		Return(domain.User{}, false)
	svc := NewUserService(repo)

	found, err := svc.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.ID)

	_, err = svc.FindByEmail(ctx, "none@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserService_ListUsers(t *testing.T) {
	ctx := context.Background()
	repo := &mockUserRepository{}
	repo.On("FetchListByQuery", mock.Anything, repository.UserMapping.SelectAll()+" ORDER BY id").
		Return([]domain.User{{ID: 1}, {ID: 2}}).Once()

	users := NewUserService(repo).ListUsers(ctx)
	assert.Equal(t, []UserDTO{{ID: 1}, {ID: 2}}, users)
}

func TestUserService_UpdateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("FindByID", mock.Anything, int64(3)).Return(domain.User{ID: 3, Username: "old", Email: "old@example.com"}, true)
		repo.On("Update", mock.Anything, domain.User{ID: 3, Username: "new", Email: "new@example.com"}).
			Return(domain.User{ID: 3, Username: "new", Email: "new@example.com"}, nil).Once()

		updated, err := NewUserService(repo).UpdateUser(ctx, 3, &UserDTO{Username: "new", Email: "new@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), updated.ID)
		repo.AssertExpectations(t)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("FindByID", mock.Anything, int64(3)).Return(domain.User{}, false)

		_, err := NewUserService(repo).UpdateUser(ctx, 3, &UserDTO{Username: "new", Email: "new@example.com"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("update error", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("FindByID", mock.Anything, int64(3)).Return(domain.User{ID: 3}, true)
		repo.On("Update", mock.Anything, mock.Anything).
			Return(domain.User{}, &repository.UpdateError{Entity: "users", Err: repository.ErrDuplicate}).Once()

		_, err := NewUserService(repo).UpdateUser(ctx, 3, &UserDTO{Username: "new", Email: "taken@example.com"})
		assert.ErrorIs(t, err, repository.ErrUpdateFailed)
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	user := domain.User{ID: 4, Username: "gone", Email: "gone@example.com"}

	t.Run("success", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("FindByID", mock.Anything, int64(4)).Return(user, true)
		repo.On("Delete", mock.Anything, user).Return(true, nil).Once()

		require.NoError(t, NewUserService(repo).DeleteUser(ctx, 4))
		repo.AssertExpectations(t)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("FindByID", mock.Anything, int64(4)).Return(domain.User{}, false)

		assert.ErrorIs(t, NewUserService(repo).DeleteUser(ctx, 4), repository.ErrNotFound)
	})

	t.Run("delete error", func(t *testing.T) {
		repo := &mockUserRepository{}
		repo.On("FindByID", mock.Anything, int64(4)).Return(user, true)
		repo.On("Delete", mock.Anything, user).Return(false, &repository.DeleteError{Entity: "users", Err: errors.New("locked")}).Once()

		assert.ErrorIs(t, NewUserService(repo).DeleteUser(ctx, 4), repository.ErrDeleteFailed)
	})
}

func TestUserService_Integration(t *testing.T) {
	ctx := context.Background()
	ds := testutil.SetupTestDatastore(t)
	repo, err := repository.NewUserRepository(ds, testutil.TestLogger(t))
	require.NoError(t, err)
	svc := NewUserService(repo)

	created, err := svc.RegisterNewUser(ctx, &UserDTO{Username: "test", Email: "test@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = svc.RegisterNewUser(ctx, &UserDTO{Username: "other", Email: "test@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	found, err := svc.FindByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	updated, err := svc.UpdateUser(ctx, created.ID, &UserDTO{Username: "renamed", Email: "test@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Username)

	require.Len(t, svc.ListUsers(ctx), 1)
	require.NoError(t, svc.DeleteUser(ctx, created.ID))
	assert.Empty(t, svc.ListUsers(ctx))
}

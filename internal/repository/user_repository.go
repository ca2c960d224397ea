package repository

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/datastore"
	"github.com/jbweber/homelab/roster/internal/domain"
	"github.com/jbweber/homelab/roster/internal/persistence"
)

// UserRepository is the data access object for users
type UserRepository interface {
	Repository[domain.User, int64]
}

var _ UserRepository = (*DatastoreRepository[domain.User, int64])(nil)

// UserMapping maps domain.User onto the users table
var UserMapping = persistence.Mapping[domain.User, int64]{
	Table:    "users",
	IDColumn: "id",
	Columns:  []string{"username", "email"},
	Identity: func(u domain.User) (int64, bool) {
		return u.ID, u.ID != 0
	},
	WithIdentity: func(u domain.User, id int64) domain.User {
		u.ID = id
		return u
	},
	Values: func(u domain.User) []any {
		return []any{u.Username, u.Email}
	},
	Scan: func(s persistence.Scanner) (domain.User, error) {
		var u domain.User
		err := s.Scan(&u.ID, &u.Username, &u.Email)
		return u, err
	},
}

// NewUserRepository creates a new user repository
func NewUserRepository(ds *datastore.Datastore, log *zap.Logger) (UserRepository, error) {
	em, err := datastore.NewManager(ds, UserMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create user entity manager: %w", err)
	}
	repo, err := NewDatastoreRepository[domain.User, int64](ds, em, UserMapping, log)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

package repository

import "context"

// Repository is the data access contract every entity DAO implements.
//
// Mutations report failures as *InsertError, *UpdateError or *DeleteError.
// Reads never fail the caller: a miss, an ambiguous single result and a
// broken query all come back as (zero, false) or an empty slice, with the
// cause logged.
type Repository[T any, ID comparable] interface {
	// Insert creates the entity and returns it with its identity assigned
	Insert(ctx context.Context, entity T) (T, error)

	// Update merges an entity that already has an identity, or inserts it
	// when it has none
	Update(ctx context.Context, entity T) (T, error)

	// Delete removes the entity, re-attaching it first if it is detached
	Delete(ctx context.Context, entity T) (bool, error)

	// FindByID retrieves an entity by its ID
	FindByID(ctx context.Context, id ID) (T, bool)

	// FetchByQuery returns the single row matched by query
	FetchByQuery(ctx context.Context, query string) (T, bool)

	// FetchListByQuery returns every row matched by query
	FetchListByQuery(ctx context.Context, query string) []T

	// FetchByPosition binds args to ?1, ?2, ... and returns the single row
	FetchByPosition(ctx context.Context, query string, args ...any) (T, bool)

	// FetchByName binds params to :key placeholders and returns the single row
	FetchByName(ctx context.Context, query string, params map[string]any) (T, bool)

	// FetchListByPosition binds args to ?1, ?2, ... and returns every row
	FetchListByPosition(ctx context.Context, query string, args ...any) []T

	// FetchListByName binds params to :key placeholders and returns every row
	FetchListByName(ctx context.Context, query string, params map[string]any) []T

	// DeleteAll removes every row of the entity's table and returns the count
	DeleteAll(ctx context.Context) int64
}

// Package persistence declares the contract between the repository layer and
// the store that actually holds entities. Implementations live in datastore.
package persistence

import "context"

// EntityManager is the per-entity persistence facility a repository drives.
// Writes are only valid inside a transaction opened by a Transactor.
type EntityManager[T any, ID comparable] interface {
	// Persist creates the entity and returns it with its generated identity.
	Persist(ctx context.Context, entity T) (T, error)

	// Merge attaches the entity to the current transaction, scheduling its
	// state to be written at the next flush, and returns the managed copy.
	Merge(ctx context.Context, entity T) (T, error)

	// Remove schedules the entity for deletion at the next flush.
	Remove(ctx context.Context, entity T) error

	// Flush writes all scheduled changes. It returns ErrTransactionRequired
	// when no transaction is active.
	Flush(ctx context.Context) error

	// Find looks an entity up by key. The bool is false when nothing matched.
	Find(ctx context.Context, id ID) (T, bool, error)

	// CreateQuery prepares a query in the store's language. Parameters are
	// written ?1, ?2 (positional) or :name (named).
	CreateQuery(text string) Query[T]
}

// Query is a parameterized query bound to one entity type.
type Query[T any] interface {
	// SetPosition binds value to the 1-based placeholder ?position.
	SetPosition(position int, value any) Query[T]

	// SetNamed binds value to the placeholder :name.
	SetNamed(name string, value any) Query[T]

	// SingleResult returns the only matching row, or ErrNoResult or
	// ErrNonUniqueResult.
	SingleResult(ctx context.Context) (T, error)

	// ResultList returns every matching row in store order.
	ResultList(ctx context.Context) ([]T, error)

	// ExecuteUpdate runs a bulk statement and returns the affected row count.
	ExecuteUpdate(ctx context.Context) (int64, error)
}

// Transactor runs fn inside a transaction. If ctx already carries one, fn
// joins it and the outermost call decides commit or rollback.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

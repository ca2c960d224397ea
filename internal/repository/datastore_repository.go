package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/persistence"
)

// DatastoreRepository provides a generic implementation of Repository on top
// of a persistence.EntityManager. Every public method runs inside one
// transaction supplied by the Transactor, joining one already present in ctx.
type DatastoreRepository[T any, ID comparable] struct {
	tx  persistence.Transactor
	em  persistence.EntityManager[T, ID]
	m   persistence.Mapping[T, ID]
	log *zap.Logger
}

// NewDatastoreRepository creates a new generic repository. The mapping must
// name its table and declare an identity accessor.
func NewDatastoreRepository[T any, ID comparable](
	tx persistence.Transactor,
	em persistence.EntityManager[T, ID],
	m persistence.Mapping[T, ID],
	log *zap.Logger,
) (*DatastoreRepository[T, ID], error) {
	if m.Table == "" {
		return nil, fmt.Errorf("table is required: %w", persistence.ErrInvalidMapping)
	}
	if m.Identity == nil {
		return nil, fmt.Errorf("%s: %w", m.Table, ErrUnknownIdentity)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &DatastoreRepository[T, ID]{
		tx:  tx,
		em:  em,
		m:   m,
		log: log.Named("repository").With(zap.String("entity", m.Table)),
	}, nil
}

// Insert persists the entity and flushes.
func (r *DatastoreRepository[T, ID]) Insert(ctx context.Context, entity T) (T, error) {
	saved := entity
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		saved, err = r.insert(ctx, entity)
		return err
	})
	if err != nil {
		r.log.Error("error during the insertion", zap.Error(err))
		return entity, &InsertError{Entity: r.m.Table, Err: err}
	}
	return saved, nil
}

func (r *DatastoreRepository[T, ID]) insert(ctx context.Context, entity T) (T, error) {
	saved, err := r.em.Persist(ctx, entity)
	if err != nil {
		return entity, err
	}
	if err := r.em.Flush(ctx); err != nil {
		return entity, err
	}
	return saved, nil
}

// Update merges the entity when it carries an identity and inserts it
// otherwise. A flush follows every attempt.
func (r *DatastoreRepository[T, ID]) Update(ctx context.Context, entity T) (T, error) {
	result := entity
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		result, err = r.update(ctx, entity)
		return err
	})
	if err != nil {
		r.log.Error("error during the update", zap.Error(err))
		return entity, &UpdateError{Entity: r.m.Table, Err: err}
	}
	return result, nil
}

func (r *DatastoreRepository[T, ID]) update(ctx context.Context, entity T) (result T, err error) {
	defer func() {
		flushErr := r.em.Flush(ctx)
		switch {
		case flushErr == nil:
		case errors.Is(flushErr, persistence.ErrTransactionRequired):
			r.log.Debug("flush after update skipped", zap.Error(flushErr))
		case err == nil:
			result, err = entity, flushErr
		default:
			// the update error is the one reported
			r.log.Warn("flush after failed update", zap.Error(flushErr))
		}
	}()

	if _, ok := r.determineID(entity); !ok {
		saved, err := r.insert(ctx, entity)
		if err != nil {
			return entity, &InsertError{Entity: r.m.Table, Err: err}
		}
		return saved, nil
	}
	return r.em.Merge(ctx, entity)
}

// determineID reads the entity's identity through the mapping's accessor.
func (r *DatastoreRepository[T, ID]) determineID(entity T) (ID, bool) {
	return r.m.Identity(entity)
}

// Delete re-attaches the entity, removes it and flushes.
func (r *DatastoreRepository[T, ID]) Delete(ctx context.Context, entity T) (bool, error) {
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		merged, err := r.em.Merge(ctx, entity)
		if err != nil {
			return err
		}
		if err := r.em.Remove(ctx, merged); err != nil {
			return err
		}
		return r.em.Flush(ctx)
	})
	if err != nil {
		r.log.Error("error during the delete", zap.Error(err))
		return false, &DeleteError{Entity: r.m.Table, Err: err}
	}
	return true, nil
}

// FindByID looks the entity up by key.
func (r *DatastoreRepository[T, ID]) FindByID(ctx context.Context, id ID) (T, bool) {
	var (
		found T
		ok    bool
	)
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		found, ok, err = r.em.Find(ctx, id)
		return err
	})
	if err != nil {
		r.log.Error("error during the fetching data", zap.Any("id", id), zap.Error(err))
		var zero T
		return zero, false
	}
	return found, ok
}

// FetchByQuery returns the single row matched by query.
func (r *DatastoreRepository[T, ID]) FetchByQuery(ctx context.Context, query string) (T, bool) {
	return r.fetchOne(ctx, query, unbound[T])
}

// FetchListByQuery returns every row matched by query.
func (r *DatastoreRepository[T, ID]) FetchListByQuery(ctx context.Context, query string) []T {
	return r.fetchMany(ctx, query, unbound[T])
}

// FetchByPosition binds args by 1-based position and returns the single row.
func (r *DatastoreRepository[T, ID]) FetchByPosition(ctx context.Context, query string, args ...any) (T, bool) {
	return r.fetchOne(ctx, query, positional[T](args))
}

// FetchByName binds params by name and returns the single row.
func (r *DatastoreRepository[T, ID]) FetchByName(ctx context.Context, query string, params map[string]any) (T, bool) {
	return r.fetchOne(ctx, query, named[T](params))
}

// FetchListByPosition binds args by 1-based position and returns every row.
func (r *DatastoreRepository[T, ID]) FetchListByPosition(ctx context.Context, query string, args ...any) []T {
	return r.fetchMany(ctx, query, positional[T](args))
}

// FetchListByName binds params by name and returns every row.
func (r *DatastoreRepository[T, ID]) FetchListByName(ctx context.Context, query string, params map[string]any) []T {
	return r.fetchMany(ctx, query, named[T](params))
}

// DeleteAll bulk deletes the entity's table. Failures are logged and reported
// as zero rows.
func (r *DatastoreRepository[T, ID]) DeleteAll(ctx context.Context) int64 {
	var removed int64
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		removed, err = r.em.CreateQuery("DELETE FROM " + r.m.Table).ExecuteUpdate(ctx)
		if err != nil {
			return err
		}
		return r.em.Flush(ctx)
	})
	if err != nil {
		r.log.Error("error during the delete all", zap.Error(err))
		return 0
	}
	return removed
}

type binder[T any] func(persistence.Query[T]) persistence.Query[T]

func unbound[T any](q persistence.Query[T]) persistence.Query[T] { return q }

func positional[T any](args []any) binder[T] {
	return func(q persistence.Query[T]) persistence.Query[T] {
		for i, v := range args {
			q = q.SetPosition(i+1, v)
		}
		return q
	}
}

func named[T any](params map[string]any) binder[T] {
	return func(q persistence.Query[T]) persistence.Query[T] {
		for k, v := range params {
			q = q.SetNamed(k, v)
		}
		return q
	}
}

func (r *DatastoreRepository[T, ID]) fetchOne(ctx context.Context, query string, bind binder[T]) (T, bool) {
	var result T
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		result, err = bind(r.em.CreateQuery(query)).SingleResult(ctx)
		return err
	})

	switch {
	case err == nil:
		return result, true
	case errors.Is(err, persistence.ErrNoResult):
		r.log.Debug("no result for query", zap.String("query", query))
	case errors.Is(err, persistence.ErrNonUniqueResult):
		r.log.Warn("more than one result for query", zap.String("query", query))
	default:
		r.log.Error("error during the fetch query", zap.String("query", query), zap.Error(err))
	}

	var zero T
	return zero, false
}

func (r *DatastoreRepository[T, ID]) fetchMany(ctx context.Context, query string, bind binder[T]) []T {
	var results []T
	err := r.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		results, err = bind(r.em.CreateQuery(query)).ResultList(ctx)
		return err
	})
	if err != nil {
		r.log.Error("error during the fetch list query", zap.String("query", query), zap.Error(err))
		return []T{}
	}
	if results == nil {
		return []T{}
	}
	return results
}

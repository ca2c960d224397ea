package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jbweber/homelab/roster/internal/persistence"
)

type query[T any] struct {
	ds   *Datastore
	text string
	scan func(persistence.Scanner) (T, error)

	positional map[int]any
	named      map[string]any
}

func (q *query[T]) SetPosition(position int, value any) persistence.Query[T] {
	if q.positional == nil {
		q.positional = make(map[int]any)
	}
	q.positional[position] = value
	return q
}

func (q *query[T]) SetNamed(name string, value any) persistence.Query[T] {
	if q.named == nil {
		q.named = make(map[string]any)
	}
	q.named[name] = value
	return q
}

func (q *query[T]) SingleResult(ctx context.Context) (T, error) {
	var zero T
	rows, err := q.run(ctx)
	if err != nil {
		return zero, err
	}
	defer q.ds.closeRows(rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, persistence.ErrNoResult
	}
	entity, err := q.scan(rows)
	if err != nil {
		return zero, fmt.Errorf("failed to scan result: %w", err)
	}
	if rows.Next() {
		return zero, persistence.ErrNonUniqueResult
	}
	return entity, rows.Err()
}

func (q *query[T]) ResultList(ctx context.Context) ([]T, error) {
	rows, err := q.run(ctx)
	if err != nil {
		return nil, err
	}
	defer q.ds.closeRows(rows)

	results := make([]T, 0)
	for rows.Next() {
		entity, err := q.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (q *query[T]) ExecuteUpdate(ctx context.Context) (int64, error) {
	text, args, err := q.ds.dialect.Bind(q.text, q.positional, q.named)
	if err != nil {
		return 0, err
	}
	res, err := q.ds.exec(ctx, "execute update", text, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute update: %w", err)
	}
	return res.RowsAffected()
}

func (q *query[T]) run(ctx context.Context) (*sql.Rows, error) {
	text, args, err := q.ds.dialect.Bind(q.text, q.positional, q.named)
	if err != nil {
		return nil, err
	}
	if err := q.ds.flushIfActive(ctx); err != nil {
		return nil, err
	}
	rows, err := q.ds.query(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/persistence"
)

// Manager implements persistence.EntityManager for one mapped entity type.
//
// Persist writes immediately because the store generates the identity. Merge
// and Remove are scheduled on the transaction and written by Flush, by any
// read in the same transaction, or at commit.
type Manager[T any, ID comparable] struct {
	ds *Datastore
	m  persistence.Mapping[T, ID]

	insertSQL string
	upsertSQL string
	deleteSQL string
	findSQL   string
}

// NewManager builds the statements for m against the datastore's dialect and
// prepares them, so the mapped table must exist.
func NewManager[T any, ID comparable](ds *Datastore, m persistence.Mapping[T, ID]) (*Manager[T, ID], error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Identity == nil {
		return nil, fmt.Errorf("%s: Identity is required: %w", m.Table, persistence.ErrInvalidMapping)
	}

	d := ds.dialect
	all := m.AllColumns()
	sets := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}

	mgr := &Manager[T, ID]{
		ds: ds,
		m:  m,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			m.Table, strings.Join(m.Columns, ", "), d.Placeholders(1, len(m.Columns)), m.IDColumn),
		upsertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
			m.Table, strings.Join(all, ", "), d.Placeholders(1, len(all)), m.IDColumn, strings.Join(sets, ", ")),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s", m.Table, m.IDColumn, d.Placeholder(1)),
		findSQL:   fmt.Sprintf("%s WHERE %s = %s", m.SelectAll(), m.IDColumn, d.Placeholder(1)),
	}

	for _, q := range []string{mgr.insertSQL, mgr.upsertSQL, mgr.deleteSQL, mgr.findSQL} {
		if _, err := ds.stmts.Get(context.Background(), q); err != nil {
			return nil, fmt.Errorf("failed to prepare statement for %s: %w", m.Table, err)
		}
	}
	return mgr, nil
}

// Persist inserts the entity and returns it carrying the generated identity.
func (mgr *Manager[T, ID]) Persist(ctx context.Context, entity T) (T, error) {
	row, err := mgr.ds.queryRowInTx(ctx, "persist "+mgr.m.Table, mgr.insertSQL, mgr.m.Values(entity)...)
	if err != nil {
		return entity, err
	}

	var id ID
	if err := row.Scan(&id); err != nil {
		return entity, fmt.Errorf("failed to insert into %s: %w", mgr.m.Table, classify(err))
	}
	return mgr.m.WithIdentity(entity, id), nil
}

// Merge schedules the entity's state to be written under its identity. An
// entity without identity is persisted instead.
//
// An identity with no row is inserted as given. Postgres sequences do not
// see such ids, so a later Persist can collide with them; callers creating
// rows should use Persist.
func (mgr *Manager[T, ID]) Merge(ctx context.Context, entity T) (T, error) {
	id, ok := mgr.m.Identity(entity)
	if !ok {
		return mgr.Persist(ctx, entity)
	}

	args := append([]any{id}, mgr.m.Values(entity)...)
	w := pendingWrite{
		op:    "merge " + mgr.m.Table,
		query: mgr.upsertSQL,
		args:  args,
		row:   &rowKey{table: mgr.m.Table, id: id},
	}
	if err := mgr.ds.schedule(ctx, w); err != nil {
		return entity, err
	}
	return entity, nil
}

// Remove schedules the deletion of the entity's row. Merges of the same row
// still pending are dropped.
func (mgr *Manager[T, ID]) Remove(ctx context.Context, entity T) error {
	id, ok := mgr.m.Identity(entity)
	if !ok {
		return fmt.Errorf("remove from %s: %w", mgr.m.Table, persistence.ErrMissingIdentity)
	}
	w := pendingWrite{op: "remove " + mgr.m.Table, query: mgr.deleteSQL, args: []any{id}}
	if err := mgr.ds.schedule(ctx, w); err != nil {
		return err
	}
	mgr.ds.discardMerges(ctx, rowKey{table: mgr.m.Table, id: id})
	return nil
}

// Flush writes everything scheduled on the transaction in ctx.
func (mgr *Manager[T, ID]) Flush(ctx context.Context) error {
	return mgr.ds.Flush(ctx)
}

// Find loads the row with the given identity.
func (mgr *Manager[T, ID]) Find(ctx context.Context, id ID) (T, bool, error) {
	var zero T
	if err := mgr.ds.flushIfActive(ctx); err != nil {
		return zero, false, err
	}

	rows, err := mgr.ds.query(ctx, mgr.findSQL, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to find in %s: %w", mgr.m.Table, err)
	}
	defer mgr.ds.closeRows(rows)

	if !rows.Next() {
		return zero, false, rows.Err()
	}
	entity, err := mgr.m.Scan(rows)
	if err != nil {
		return zero, false, fmt.Errorf("failed to scan %s: %w", mgr.m.Table, err)
	}
	return entity, true, nil
}

// CreateQuery prepares a query whose rows are read with the entity's Scan.
func (mgr *Manager[T, ID]) CreateQuery(text string) persistence.Query[T] {
	return &query[T]{
		ds:   mgr.ds,
		text: text,
		scan: mgr.m.Scan,
	}
}

func (ds *Datastore) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		ds.log.Warn("failed to close rows", zap.Error(err))
	}
}

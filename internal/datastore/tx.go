package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/persistence"
)

type scopeKey struct{}

// scope is the unit of work bound to one transaction. Writes scheduled by
// Merge and Remove wait in pending until the next flush.
type scope struct {
	ds      *Datastore
	tx      *sql.Tx
	pending []pendingWrite

	// queries run without a cached statement, prepared after commit
	unprepared map[string]struct{}
}

type pendingWrite struct {
	op    string
	query string
	args  []any

	// row identifies the written row for merges
	row *rowKey
}

type rowKey struct {
	table string
	id    any
}

func (ds *Datastore) scopeFrom(ctx context.Context) (*scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok || s.ds != ds {
		return nil, false
	}
	return s, true
}

// InTransaction reports whether ctx carries a transaction of this datastore.
func (ds *Datastore) InTransaction(ctx context.Context) bool {
	_, ok := ds.scopeFrom(ctx)
	return ok
}

// Transact runs fn inside a transaction. When ctx already carries one fn joins
// it. Pending writes are flushed before commit; an error or panic from fn rolls
// the transaction back.
func (ds *Datastore) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ds.InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := ds.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s := &scope{ds: ds, tx: tx}

	defer func() {
		if p := recover(); p != nil {
			ds.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, scopeKey{}, s)); err != nil {
		ds.rollback(tx)
		return err
	}

	if err := ds.flush(ctx, s); err != nil {
		ds.rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	ds.prepareSeen(ctx, s)
	return nil
}

// prepareSeen caches the statements a committed transaction ran unprepared.
// Preparing needs a pooled connection, which a transaction must not wait for
// while holding its own.
func (ds *Datastore) prepareSeen(ctx context.Context, s *scope) {
	for query := range s.unprepared {
		if _, err := ds.stmts.Get(ctx, query); err != nil {
			ds.log.Debug("failed to prepare statement", zap.String("query", query), zap.Error(err))
		}
	}
}

// stmt binds the cached statement for query to the transaction. It returns nil
// when query is not cached yet.
func (s *scope) stmt(ctx context.Context, query string) *sql.Stmt {
	cached, ok := s.ds.stmts.Lookup(query)
	if !ok {
		return nil
	}
	return s.tx.StmtContext(ctx, cached)
}

func (s *scope) remember(query string) {
	if s.unprepared == nil {
		s.unprepared = make(map[string]struct{})
	}
	s.unprepared[query] = struct{}{}
}

func (ds *Datastore) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		ds.log.Warn("rollback failed", zap.Error(err))
	}
}

// schedule queues a write on the transaction in ctx.
func (ds *Datastore) schedule(ctx context.Context, w pendingWrite) error {
	s, ok := ds.scopeFrom(ctx)
	if !ok {
		return fmt.Errorf("%s: %w", w.op, persistence.ErrTransactionRequired)
	}
	s.pending = append(s.pending, w)
	return nil
}

// discardMerges drops the merges of one row still pending on the transaction
// in ctx. A row about to be deleted never has its merged state written.
func (ds *Datastore) discardMerges(ctx context.Context, row rowKey) {
	s, ok := ds.scopeFrom(ctx)
	if !ok {
		return
	}
	kept := s.pending[:0]
	for _, w := range s.pending {
		if w.row != nil && *w.row == row {
			ds.log.Debug("discarded merge of removed row", zap.String("op", w.op))
			continue
		}
		kept = append(kept, w)
	}
	s.pending = kept
}

// Flush executes the writes pending on the transaction in ctx.
func (ds *Datastore) Flush(ctx context.Context) error {
	s, ok := ds.scopeFrom(ctx)
	if !ok {
		return fmt.Errorf("flush: %w", persistence.ErrTransactionRequired)
	}
	return ds.flush(ctx, s)
}

func (ds *Datastore) flush(ctx context.Context, s *scope) error {
	for len(s.pending) > 0 {
		w := s.pending[0]
		s.pending = s.pending[1:]
		if _, err := s.exec(ctx, w.query, w.args...); err != nil {
			s.pending = nil
			return fmt.Errorf("failed to flush %s: %w", w.op, classify(err))
		}
		ds.log.Debug("flushed write", zap.String("op", w.op))
	}
	return nil
}

// flushIfActive flushes pending writes when ctx carries a transaction, so that
// reads observe them.
func (ds *Datastore) flushIfActive(ctx context.Context) error {
	if s, ok := ds.scopeFrom(ctx); ok {
		return ds.flush(ctx, s)
	}
	return nil
}

func (s *scope) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if stmt := s.stmt(ctx, query); stmt != nil {
		return stmt.ExecContext(ctx, args...)
	}
	return s.tx.ExecContext(ctx, query, args...)
}

// query runs a read on the transaction in ctx, or on a cached statement.
func (ds *Datastore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s, ok := ds.scopeFrom(ctx); ok {
		if stmt := s.stmt(ctx, query); stmt != nil {
			return stmt.QueryContext(ctx, args...)
		}
		rows, err := s.tx.QueryContext(ctx, query, args...)
		if err == nil {
			s.remember(query)
		}
		return rows, err
	}
	stmt, err := ds.stmts.Get(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// exec runs a write immediately; it requires a transaction.
func (ds *Datastore) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	s, ok := ds.scopeFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, persistence.ErrTransactionRequired)
	}
	if err := ds.flush(ctx, s); err != nil {
		return nil, err
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// queryRowInTx runs a statement returning a row immediately; it requires a
// transaction.
func (ds *Datastore) queryRowInTx(ctx context.Context, op, query string, args ...any) (*sql.Row, error) {
	s, ok := ds.scopeFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, persistence.ErrTransactionRequired)
	}
	if err := ds.flush(ctx, s); err != nil {
		return nil, err
	}
	if stmt := s.stmt(ctx, query); stmt != nil {
		return stmt.QueryRowContext(ctx, args...), nil
	}
	return s.tx.QueryRowContext(ctx, query, args...), nil
}

// Package mem provides an in-process transaction runner for map backed repos
//
// Repos bound to a *Tx record undo funcs as they mutate their maps; a failed
// unit of work replays them in reverse so nothing it wrote survives. SQL
// methods are not supported and return ErrNoSQL.
package mem

import (
	"context"
	"errors"
	"sync"

	"oaiserver/internal/platform/store"
)

// ErrNoSQL is returned by the sql surface of the memory backend
var ErrNoSQL = errors.New("mem: sql not supported by the memory backend")

// DB serializes transactions for memory repos
// DB itself can be bound for writes outside a transaction; those apply immediately
type DB struct {
	mu sync.Mutex
}

var _ store.TxRunner = (*DB)(nil)

// New returns an empty DB
func New() *DB { return &DB{} }

// Tx runs fn with a fresh *Tx; any error or panic rolls back every tracked change
// transactions are serialized, so fn must not open another Tx on the same DB
func (d *DB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &Tx{}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.done = true
	return nil
}

// Exec is unsupported
func (d *DB) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, ErrNoSQL }

// Query is unsupported
func (d *DB) Query(context.Context, string, ...any) (store.Rows, error) { return nil, ErrNoSQL }

// QueryRow is unsupported
func (d *DB) QueryRow(context.Context, string, ...any) store.Row { return errRow{} }

// Ping always succeeds
func (d *DB) Ping(context.Context) error { return nil }

// Tx is the queryer handed to fn inside DB.Tx
type Tx struct {
	undo []func()
	done bool
}

// OnRollback registers fn to run if the transaction fails
// undo funcs run in reverse registration order
func (t *Tx) OnRollback(fn func()) { t.undo = append(t.undo, fn) }

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.done = true
}

// Exec is unsupported
func (t *Tx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, ErrNoSQL }

// Query is unsupported
func (t *Tx) Query(context.Context, string, ...any) (store.Rows, error) { return nil, ErrNoSQL }

// QueryRow is unsupported
func (t *Tx) QueryRow(context.Context, string, ...any) store.Row { return errRow{} }

// Track registers undo on q when q is a live *Tx; otherwise the change is final
func Track(q store.RowQuerier, undo func()) {
	if tx, ok := q.(*Tx); ok && !tx.done {
		tx.OnRollback(undo)
	}
}

type errRow struct{}

func (errRow) Scan(...any) error { return ErrNoSQL }

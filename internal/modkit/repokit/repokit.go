// Package repokit binds candidate repositories to the store seams
package repokit

import (
	"context"
	"time"

	perr "t2/internal/platform/errors"
	"t2/internal/platform/store"
)

// Queryer is the read and write surface sql repos are bound to
type Queryer = store.RowQuerier

// TxRunner runs a function inside a postgres transaction
type TxRunner = store.TxRunner

type (
	// Rows is a result set
	Rows = store.Rows

	// Row is a single row result
	Row = store.Row

	// CommandTag reports what an Exec changed
	CommandTag = store.CommandTag
)

// Binder binds a repo to a Queryer, usually the one of the current transaction
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds b to q and panics when q is nil
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: nil Queryer")
	}
	return b.Bind(q)
}

// WithTx runs fn in one transaction; driver errors come back as DB coded errors
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	err := tx.Tx(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := perr.As(err); ok {
		return err
	}
	return perr.FromPostgres(err, "tx")
}

// CH hands the clickhouse seam to a columnar repo
func CH(_ context.Context, c store.Clickhouse) store.Clickhouse { return c }

// Guarder checks every configured backend, see store.Store.Guard
type Guarder interface {
	Guard(context.Context) error
}

// readyTimeout applies when ctx carries no deadline
var readyTimeout = 5 * time.Second

// Ready reports whether the backends behind g answer before startup continues
func Ready(ctx context.Context, g Guarder) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, readyTimeout)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		return perr.WithOp(perr.Wrap(err, perr.ErrorCodeUnavailable, "storage not ready"), "ready")
	}
	return nil
}

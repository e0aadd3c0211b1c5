// Package pgrepo implements the domain repository interfaces against
// Postgres with pgvector, using pgx/v5 directly rather than an ORM —
// the same level of abstraction the rest of the corpus reaches for.
package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryer is the narrow slice of pgx's API every repository method
// needs. Both pgxPool and pgx.Tx satisfy it, so repositories run
// unchanged whether or not a TransactionManager has opened a
// transaction for the current context.
type queryer interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// pgxPool is the pool-level dependency every repository and the
// TransactionManager are built against, rather than the concrete
// *pgxpool.Pool type, so tests can substitute pgxmock's mock pool.
type pgxPool interface {
	queryer
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

var (
	_ queryer = (*pgxpool.Pool)(nil)
	_ queryer = (pgx.Tx)(nil)
	_ pgxPool = (*pgxpool.Pool)(nil)
)

type txCtxKey struct{}

// queryerFrom returns the transaction stored in ctx by
// TransactionManager.RunInTx, falling back to pool when no transaction
// is open.
func queryerFrom(ctx context.Context, pool pgxPool) queryer {
	if tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

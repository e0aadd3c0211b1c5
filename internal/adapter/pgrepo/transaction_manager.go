package pgrepo

import (
	"context"
	"fmt"
)

// TransactionManager implements domain.TransactionManager by opening a
// pgx transaction and threading it through the context so every
// repository call made inside fn joins the same transaction.
type TransactionManager struct {
	pool pgxPool
}

func NewTransactionManager(pool pgxPool) *TransactionManager {
	return &TransactionManager{pool: pool}
}

// RunInTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise — including when fn panics, in which case the
// panic is re-thrown after rollback.
func (m *TransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txCtxKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

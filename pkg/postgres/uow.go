package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepworx/mealplan/pkg/tracing"
)

// Transaction is the handle repositories receive inside a unit of work.
// Tx returns nil when no database transaction backs the unit of work.
type Transaction interface {
	Tx() pgx.Tx
}

// UnitOfWork groups repository calls into one atomic step.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// PoolUnitOfWork runs each unit of work in its own pool transaction.
type PoolUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork creates a UnitOfWork backed by the given connection pool.
func NewUnitOfWork(pool *pgxpool.Pool) *PoolUnitOfWork {
	return &PoolUnitOfWork{pool: pool}
}

// Execute runs fn within a transaction.
// Commits on success, rolls back on error or panic.
func (u *PoolUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	return tracing.WithSpan(ctx, "postgres.unit_of_work", func(ctx context.Context) error {
		return WithTx(ctx, u.pool, func(tx pgx.Tx) error {
			return fn(ctx, poolTransaction{tx: tx})
		})
	})
}

type poolTransaction struct {
	tx pgx.Tx
}

func (t poolTransaction) Tx() pgx.Tx {
	return t.tx
}

// InMemoryUnitOfWork runs fn directly, for repositories that keep no
// database state such as meals.MemoryRepository.
type InMemoryUnitOfWork struct{}

// NewInMemoryUnitOfWork creates a UnitOfWork without transaction management.
func NewInMemoryUnitOfWork() *InMemoryUnitOfWork {
	return &InMemoryUnitOfWork{}
}

// Execute runs fn with a Transaction whose Tx is nil.
func (*InMemoryUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	return fn(ctx, noTransaction{})
}

type noTransaction struct{}

func (noTransaction) Tx() pgx.Tx {
	return nil
}

var (
	_ UnitOfWork  = (*PoolUnitOfWork)(nil)
	_ UnitOfWork  = (*InMemoryUnitOfWork)(nil)
	_ Transaction = poolTransaction{}
	_ Transaction = noTransaction{}
)

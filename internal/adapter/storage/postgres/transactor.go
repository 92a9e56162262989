package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
// Each transaction runs at the configured isolation level and gives up
// waiting for a contended row lock after lockTimeout.
type Transactor struct {
	pool        Pool
	isoLevel    pgx.TxIsoLevel
	lockTimeout time.Duration
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool, isoLevel pgx.TxIsoLevel, lockTimeout time.Duration) *Transactor {
	return &Transactor{pool: pool, isoLevel: isoLevel, lockTimeout: lockTimeout}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: t.isoLevel})
	if err != nil {
		return nil, classify("begin tx", err)
	}
	if t.lockTimeout > 0 {
		// SET does not take bind parameters; the value is an integer we format ourselves.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", t.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, classify("set lock timeout", err)
		}
	}
	return tx, nil
}

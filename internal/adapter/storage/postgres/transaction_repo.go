package postgres

import (
	"context"
	"fmt"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository over the external
// wallet_transactions table. It never writes.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// SumDebits returns the absolute total of debits in [from, to).
func (r *TransactionRepo) SumDebits(ctx context.Context, businessAccountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(-amount), 0) FROM wallet_transactions
		WHERE business_account_id = $1 AND amount < 0 AND created_at >= $2 AND created_at < $3`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, businessAccountID, from, to).Scan(&total); err != nil {
		return decimal.Zero, classify("sum debits", err)
	}
	return total, nil
}

// ListRecent fetches the newest transactions first.
func (r *TransactionRepo) ListRecent(ctx context.Context, businessAccountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `SELECT id, business_account_id, amount, currency, description, balance_after, created_at
		FROM wallet_transactions WHERE business_account_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, businessAccountID, limit)
	if err != nil {
		return nil, classify("list recent transactions", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.BusinessAccountID, &t.Amount, &t.Currency,
			&t.Description, &t.BalanceAfter, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate transaction rows", err)
	}
	return txns, nil
}

// GetStats aggregates credits and debits since from.
func (r *TransactionRepo) GetStats(ctx context.Context, businessAccountID uuid.UUID, from time.Time) (*domain.TransactionStats, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0) AS total_credits,
		COALESCE(SUM(-amount) FILTER (WHERE amount < 0), 0) AS total_debits,
		COUNT(*) FILTER (WHERE amount > 0) AS credit_count,
		COUNT(*) FILTER (WHERE amount < 0) AS debit_count
		FROM wallet_transactions WHERE business_account_id = $1 AND created_at >= $2`

	stats := &domain.TransactionStats{}
	err := r.pool.QueryRow(ctx, query, businessAccountID, from).Scan(
		&stats.TotalCredits, &stats.TotalDebits, &stats.CreditCount, &stats.DebitCount,
	)
	if err != nil {
		return nil, classify("get transaction stats", err)
	}
	return stats, nil
}

var _ ports.TransactionRepository = (*TransactionRepo)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const limitColumns = `business_account_id, enabled, max_transaction_amount, max_daily_spend,
	max_monthly_spend, updated_at, updated_by`

// SpendingLimitRepo implements ports.SpendingLimitRepository.
type SpendingLimitRepo struct {
	pool Pool
}

// NewSpendingLimitRepo creates a new SpendingLimitRepo.
func NewSpendingLimitRepo(pool Pool) *SpendingLimitRepo {
	return &SpendingLimitRepo{pool: pool}
}

// Get fetches the policy without locking. Returns nil, nil when none was ever set.
func (r *SpendingLimitRepo) Get(ctx context.Context, businessAccountID uuid.UUID) (*domain.SpendingLimitPolicy, error) {
	query := `SELECT ` + limitColumns + ` FROM wallet_spending_limits WHERE business_account_id = $1`

	p, err := scanPolicy(r.pool.QueryRow(ctx, query, businessAccountID))
	if err != nil {
		return nil, classify("get spending limits", err)
	}
	return p, nil
}

// GetForUpdate fetches the policy and locks its row inside tx.
func (r *SpendingLimitRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID) (*domain.SpendingLimitPolicy, error) {
	query := `SELECT ` + limitColumns + ` FROM wallet_spending_limits WHERE business_account_id = $1 FOR UPDATE`

	p, err := scanPolicy(tx.QueryRow(ctx, query, businessAccountID))
	if err != nil {
		return nil, classify("get spending limits for update", err)
	}
	return p, nil
}

// Upsert replaces the wallet's policy.
func (r *SpendingLimitRepo) Upsert(ctx context.Context, tx pgx.Tx, p *domain.SpendingLimitPolicy) error {
	query := `INSERT INTO wallet_spending_limits (` + limitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (business_account_id) DO UPDATE SET
			enabled                = EXCLUDED.enabled,
			max_transaction_amount = EXCLUDED.max_transaction_amount,
			max_daily_spend        = EXCLUDED.max_daily_spend,
			max_monthly_spend      = EXCLUDED.max_monthly_spend,
			updated_at             = EXCLUDED.updated_at,
			updated_by             = EXCLUDED.updated_by`

	_, err := tx.Exec(ctx, query,
		p.BusinessAccountID, p.Enabled, p.MaxTransactionAmount, p.MaxDailySpend,
		p.MaxMonthlySpend, p.UpdatedAt, p.UpdatedBy,
	)
	if err != nil {
		return classify("upsert spending limits", err)
	}
	return nil
}

func scanPolicy(row pgx.Row) (*domain.SpendingLimitPolicy, error) {
	p := &domain.SpendingLimitPolicy{}
	err := row.Scan(
		&p.BusinessAccountID, &p.Enabled, &p.MaxTransactionAmount, &p.MaxDailySpend,
		&p.MaxMonthlySpend, &p.UpdatedAt, &p.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan spending limits: %w", err)
	}
	return p, nil
}

var _ ports.SpendingLimitRepository = (*SpendingLimitRepo)(nil)

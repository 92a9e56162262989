package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `business_account_id, balance, currency, timezone, frozen, frozen_at,
	frozen_reason, frozen_by, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.WalletAccount) error {
	query := `INSERT INTO wallet_accounts (business_account_id, balance, currency, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	_, err := r.pool.Exec(ctx, query,
		w.BusinessAccountID, w.Balance, w.Currency, w.Timezone, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrWalletExists
		}
		return classify("insert wallet", err)
	}
	return nil
}

// GetByBusinessID fetches a wallet without locking.
func (r *WalletRepo) GetByBusinessID(ctx context.Context, businessAccountID uuid.UUID) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts WHERE business_account_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, businessAccountID))
	if err != nil {
		return nil, classify("get wallet", err)
	}
	return w, nil
}

// GetForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts WHERE business_account_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, businessAccountID))
	if err != nil {
		return nil, classify("get wallet for update", err)
	}
	return w, nil
}

// ApplyDelta adds delta to the balance in one guarded statement. When the
// guard rejects the row, the current state is re-read to say why.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.WalletAccount, error) {
	query := `UPDATE wallet_accounts
		SET balance = balance + $2::numeric, version = version + 1, updated_at = NOW()
		WHERE business_account_id = $1 AND version = $3
		  AND balance + $2::numeric >= 0
		  AND (NOT frozen OR $2::numeric >= 0)
		RETURNING ` + walletColumns

	w, err := scanWallet(tx.QueryRow(ctx, query, businessAccountID, delta, expectedVersion))
	if err != nil {
		return nil, classify("apply delta", err)
	}
	if w != nil {
		return w, nil
	}
	return nil, r.explainRejection(ctx, tx, businessAccountID, expectedVersion, func(current *domain.WalletAccount) error {
		return current.CanApply(delta)
	})
}

// SetFrozen writes the freeze state. Re-freezing keeps the original stamp; unfreezing clears it.
func (r *WalletRepo) SetFrozen(ctx context.Context, tx pgx.Tx, req ports.SetFrozenParams) (*domain.WalletAccount, error) {
	query := `UPDATE wallet_accounts SET
			frozen_at     = CASE WHEN NOT $2::boolean THEN NULL WHEN frozen THEN frozen_at ELSE NOW() END,
			frozen_reason = CASE WHEN NOT $2::boolean THEN NULL WHEN frozen THEN frozen_reason ELSE $3 END,
			frozen_by     = CASE WHEN NOT $2::boolean THEN NULL WHEN frozen THEN frozen_by ELSE $4::uuid END,
			frozen        = $2::boolean,
			version       = version + 1,
			updated_at    = NOW()
		WHERE business_account_id = $1 AND version = $5
		RETURNING ` + walletColumns

	w, err := scanWallet(tx.QueryRow(ctx, query, req.BusinessAccountID, req.Frozen, req.Reason, req.AdminID, req.ExpectedVersion))
	if err != nil {
		return nil, classify("set frozen", err)
	}
	if w != nil {
		return w, nil
	}
	return nil, r.explainRejection(ctx, tx, req.BusinessAccountID, req.ExpectedVersion, nil)
}

// explainRejection turns a guarded update that matched no row into a domain error.
func (r *WalletRepo) explainRejection(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID, expectedVersion int64, rule func(*domain.WalletAccount) error) error {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts WHERE business_account_id = $1`

	current, err := scanWallet(tx.QueryRow(ctx, query, businessAccountID))
	switch {
	case err != nil:
		return classify("re-read wallet", err)
	case current == nil:
		return domain.ErrWalletNotFound
	case current.Version != expectedVersion:
		return domain.ErrVersionConflict
	}
	if rule != nil {
		if err := rule(current); err != nil {
			return err
		}
	}
	return domain.ErrVersionConflict
}

// scanWallet scans one wallet row. Returns nil, nil when the row does not exist.
func scanWallet(row pgx.Row) (*domain.WalletAccount, error) {
	w := &domain.WalletAccount{}
	err := row.Scan(
		&w.BusinessAccountID, &w.Balance, &w.Currency, &w.Timezone, &w.Frozen, &w.FrozenAt,
		&w.FrozenReason, &w.FrozenBy, &w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}

var _ ports.WalletRepository = (*WalletRepo)(nil)

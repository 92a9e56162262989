package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"business-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository is the Ledger Store.
// Methods accepting pgx.Tx run inside the caller's transaction and hold the row lock until it ends.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.WalletAccount) error
	// GetByBusinessID is a lock-free read. Returns nil, nil when no wallet exists.
	GetByBusinessID(ctx context.Context, businessAccountID uuid.UUID) (*domain.WalletAccount, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID) (*domain.WalletAccount, error)
	// ApplyDelta adds delta to the balance when the row is still at expectedVersion.
	// It fails with domain.ErrInsufficientFunds, domain.ErrWalletFrozen,
	// domain.ErrVersionConflict or domain.ErrWalletNotFound and writes nothing.
	ApplyDelta(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.WalletAccount, error)
	SetFrozen(ctx context.Context, tx pgx.Tx, req SetFrozenParams) (*domain.WalletAccount, error)
}

// SetFrozenParams holds the freeze state to write.
type SetFrozenParams struct {
	BusinessAccountID uuid.UUID
	Frozen            bool
	Reason            string
	AdminID           uuid.UUID
	ExpectedVersion   int64
}

// SpendingLimitRepository persists one policy per wallet.
type SpendingLimitRepository interface {
	// Get returns nil, nil when the wallet has never had a policy.
	Get(ctx context.Context, businessAccountID uuid.UUID) (*domain.SpendingLimitPolicy, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID) (*domain.SpendingLimitPolicy, error)
	Upsert(ctx context.Context, tx pgx.Tx, policy *domain.SpendingLimitPolicy) error
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	// Append writes inside tx; a failure must abort the caller's transaction.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error
	// Query returns up to params.Limit+1 entries so callers can detect a further page, plus the filtered total.
	Query(ctx context.Context, params AuditQueryParams) ([]domain.AuditLogEntry, int64, error)
}

// AuditQueryParams holds filter + pagination for the audit log.
type AuditQueryParams struct {
	BusinessAccountID uuid.UUID
	StartDate         *time.Time // inclusive
	EndDate           *time.Time // exclusive
	ActionTypes       []domain.AuditAction
	Limit             int
	Offset            int
	After             *domain.AuditCursor
}

// TransactionRepository reads the external transaction ledger. The engine never writes it.
type TransactionRepository interface {
	// SumDebits returns the absolute total of debits in [from, to).
	SumDebits(ctx context.Context, businessAccountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	ListRecent(ctx context.Context, businessAccountID uuid.UUID, limit int) ([]domain.Transaction, error)
	GetStats(ctx context.Context, businessAccountID uuid.UUID, from time.Time) (*domain.TransactionStats, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"business-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(adminID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AdminID uuid.UUID
	Role    string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SnapshotCache holds recently assembled wallet snapshots.
type SnapshotCache interface {
	Get(ctx context.Context, businessAccountID uuid.UUID) (*domain.WalletSnapshot, error) // nil on miss
	Set(ctx context.Context, snapshot *domain.WalletSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, businessAccountID uuid.UUID) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// Allow increments the counter for key and reports whether it is still within limit.
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// --- Service Ports (Business Logic) ---

// WalletService is the only writer of wallets, spending limits and the audit log.
type WalletService interface {
	AdjustBalance(ctx context.Context, req AdjustBalanceRequest) (*domain.WalletAccount, error)
	SetFrozen(ctx context.Context, req FreezeRequest) (*domain.WalletAccount, error)
	SetSpendingLimits(ctx context.Context, req SetLimitsRequest) (*domain.SpendingLimitPolicy, error)
	RemoveSpendingLimits(ctx context.Context, req RemoveLimitsRequest) (*domain.SpendingLimitPolicy, error)
}

// AdjustBalanceRequest credits (Amount > 0) or debits (Amount < 0) a wallet.
type AdjustBalanceRequest struct {
	Principal         domain.AdminPrincipal
	BusinessAccountID uuid.UUID
	Amount            decimal.Decimal
	Currency          string // optional; must match the wallet when set
	Reason            string
	OverrideLimits    bool
	IdempotencyKey    string
}

// FreezeRequest freezes or unfreezes a wallet.
type FreezeRequest struct {
	Principal         domain.AdminPrincipal
	BusinessAccountID uuid.UUID
	Frozen            bool
	Reason            string
}

// SetLimitsRequest replaces a wallet's spending limit policy.
type SetLimitsRequest struct {
	Principal         domain.AdminPrincipal
	BusinessAccountID uuid.UUID
	Policy            domain.SpendingLimitPolicy
	Reason            string
}

// RemoveLimitsRequest clears a wallet's spending limit policy.
type RemoveLimitsRequest struct {
	Principal         domain.AdminPrincipal
	BusinessAccountID uuid.UUID
	Reason            string
}

// AuditService reads the audit log.
type AuditService interface {
	Query(ctx context.Context, params AuditQueryParams) (*AuditPage, error)
}

// AuditPage is one page of audit entries.
type AuditPage struct {
	Entries    []domain.AuditLogEntry
	Total      int64
	Limit      int
	Offset     int
	HasMore    bool
	NextCursor string
}

// SpendingLimitEvaluator decides whether a proposed debit fits the policy.
type SpendingLimitEvaluator interface {
	Evaluate(ctx context.Context, policy *domain.SpendingLimitPolicy, amount decimal.Decimal, businessAccountID uuid.UUID, loc *time.Location, now time.Time) (domain.LimitDecision, error)
	CurrentSpend(ctx context.Context, businessAccountID uuid.UUID, loc *time.Location, now time.Time) (domain.SpendUsage, error)
}

// ReportingService is the read-only facade over wallet state.
type ReportingService interface {
	GetWalletSnapshot(ctx context.Context, businessAccountID uuid.UUID) (*domain.WalletSnapshot, error)
	// CheckSpend is the mandatory limit check for customer-initiated spend.
	CheckSpend(ctx context.Context, businessAccountID uuid.UUID, amount decimal.Decimal) (*domain.LimitDecision, error)
}

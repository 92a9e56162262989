package service

import (
	"context"
	"fmt"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EvaluateLimits checks a proposed debit of amount (a positive magnitude)
// against policy given what was already spent today and this month.
// Caps are checked per-transaction, then daily, then monthly.
func EvaluateLimits(policy *domain.SpendingLimitPolicy, amount decimal.Decimal, usage domain.SpendUsage) domain.LimitDecision {
	if policy == nil || !policy.Enabled {
		return domain.Allow()
	}

	if l := policy.MaxTransactionAmount; l != nil && amount.GreaterThan(*l) {
		return domain.Deny(domain.LimitPerTransaction, domain.ReasonPerTransaction, l, nil)
	}
	if l := policy.MaxDailySpend; l != nil && usage.Daily.Add(amount).GreaterThan(*l) {
		used := usage.Daily
		return domain.Deny(domain.LimitDaily, domain.ReasonDaily, l, &used)
	}
	if l := policy.MaxMonthlySpend; l != nil && usage.Monthly.Add(amount).GreaterThan(*l) {
		used := usage.Monthly
		return domain.Deny(domain.LimitMonthly, domain.ReasonMonthly, l, &used)
	}
	return domain.Allow()
}

// SpendWindows returns local midnight and the first of the month for now in loc.
// Both windows end at now.
func SpendWindows(now time.Time, loc *time.Location) (dayStart, monthStart time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

// LimitEvaluator implements ports.SpendingLimitEvaluator over the external transaction ledger.
type LimitEvaluator struct {
	txRepo ports.TransactionRepository
}

// NewLimitEvaluator creates a new LimitEvaluator.
func NewLimitEvaluator(txRepo ports.TransactionRepository) *LimitEvaluator {
	return &LimitEvaluator{txRepo: txRepo}
}

// CurrentSpend sums debits in the current local day and month.
func (e *LimitEvaluator) CurrentSpend(ctx context.Context, businessAccountID uuid.UUID, loc *time.Location, now time.Time) (domain.SpendUsage, error) {
	dayStart, monthStart := SpendWindows(now, loc)

	daily, err := e.txRepo.SumDebits(ctx, businessAccountID, dayStart, now)
	if err != nil {
		return domain.SpendUsage{}, fmt.Errorf("sum daily debits: %w", err)
	}
	monthly, err := e.txRepo.SumDebits(ctx, businessAccountID, monthStart, now)
	if err != nil {
		return domain.SpendUsage{}, fmt.Errorf("sum monthly debits: %w", err)
	}
	return domain.SpendUsage{Daily: daily, Monthly: monthly}, nil
}

// Evaluate decides a debit of amount. Usage is only fetched when a window cap is set.
func (e *LimitEvaluator) Evaluate(
	ctx context.Context,
	policy *domain.SpendingLimitPolicy,
	amount decimal.Decimal,
	businessAccountID uuid.UUID,
	loc *time.Location,
	now time.Time,
) (domain.LimitDecision, error) {
	if policy == nil || !policy.Enabled {
		return domain.Allow(), nil
	}
	if policy.MaxDailySpend == nil && policy.MaxMonthlySpend == nil {
		return EvaluateLimits(policy, amount, domain.SpendUsage{}), nil
	}

	usage, err := e.CurrentSpend(ctx, businessAccountID, loc, now)
	if err != nil {
		return domain.LimitDecision{}, err
	}
	return EvaluateLimits(policy, amount, usage), nil
}

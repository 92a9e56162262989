package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLimitNotPositive     = errors.New("spending limits must be greater than zero")
	ErrDailyExceedsMonthly  = errors.New("max_daily_spend cannot exceed max_monthly_spend")
	ErrEnabledWithoutLimits = errors.New("an enabled policy needs at least one limit")
	ErrLimitScaleTooFine    = errors.New("spending limits allow at most two decimal places")
	ErrLimitOutOfRange      = errors.New("spending limits must not exceed 999999999999999999.99")
)

// SpendingLimitPolicy caps debits for one wallet. A nil limit is unlimited.
type SpendingLimitPolicy struct {
	BusinessAccountID    uuid.UUID        `json:"business_account_id"`
	Enabled              bool             `json:"enabled"`
	MaxTransactionAmount *decimal.Decimal `json:"max_transaction_amount,omitempty"`
	MaxDailySpend        *decimal.Decimal `json:"max_daily_spend,omitempty"`
	MaxMonthlySpend      *decimal.Decimal `json:"max_monthly_spend,omitempty"`
	UpdatedAt            time.Time        `json:"updated_at"`
	UpdatedBy            *uuid.UUID       `json:"updated_by,omitempty"`
}

// DisabledPolicy is what a wallet without a stored policy behaves as.
func DisabledPolicy(accountID uuid.UUID) *SpendingLimitPolicy {
	return &SpendingLimitPolicy{BusinessAccountID: accountID}
}

// HasLimits reports whether any of the three caps is set.
func (p *SpendingLimitPolicy) HasLimits() bool {
	return p.MaxTransactionAmount != nil || p.MaxDailySpend != nil || p.MaxMonthlySpend != nil
}

// Validate checks the policy invariants without touching any store.
func (p *SpendingLimitPolicy) Validate() error {
	for _, l := range []*decimal.Decimal{p.MaxTransactionAmount, p.MaxDailySpend, p.MaxMonthlySpend} {
		if l == nil {
			continue
		}
		if !l.IsPositive() {
			return ErrLimitNotPositive
		}
		if !HasMoneyScale(*l) {
			return ErrLimitScaleTooFine
		}
		if !WithinMoneyRange(*l) {
			return ErrLimitOutOfRange
		}
	}
	if p.MaxDailySpend != nil && p.MaxMonthlySpend != nil && p.MaxDailySpend.GreaterThan(*p.MaxMonthlySpend) {
		return ErrDailyExceedsMonthly
	}
	if p.Enabled && !p.HasLimits() {
		return ErrEnabledWithoutLimits
	}
	return nil
}

// LimitKind names which cap produced a decision.
type LimitKind string

const (
	LimitNone           LimitKind = ""
	LimitPerTransaction LimitKind = "per_transaction"
	LimitDaily          LimitKind = "daily"
	LimitMonthly        LimitKind = "monthly"
	LimitFrozen         LimitKind = "frozen"
	LimitBalance        LimitKind = "balance"
)

const (
	ReasonPerTransaction = "exceeds per-transaction limit"
	ReasonDaily          = "exceeds daily limit"
	ReasonMonthly        = "exceeds monthly limit"
	ReasonFrozen         = "wallet is frozen"
	ReasonInsufficient   = "insufficient balance"
)

// SpendUsage is the debit total already spent in the current day and month.
type SpendUsage struct {
	Daily   decimal.Decimal `json:"daily"`
	Monthly decimal.Decimal `json:"monthly"`
}

// LimitDecision is the outcome of evaluating one proposed debit.
type LimitDecision struct {
	Allowed    bool             `json:"allowed"`
	Reason     string           `json:"reason,omitempty"`
	Limit      LimitKind        `json:"limit,omitempty"`
	LimitValue *decimal.Decimal `json:"limit_value,omitempty"`
	Used       *decimal.Decimal `json:"used,omitempty"`
}

// Allow is the decision for a debit no cap objects to.
func Allow() LimitDecision {
	return LimitDecision{Allowed: true}
}

// Deny builds a denied decision for kind.
func Deny(kind LimitKind, reason string, limit, used *decimal.Decimal) LimitDecision {
	return LimitDecision{Reason: reason, Limit: kind, LimitValue: limit, Used: used}
}

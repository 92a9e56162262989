package dto

import (
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/shopspring/decimal"
)

// AdjustBalanceRequest is the request body for a manual credit or debit.
// A positive amount credits the wallet, a negative one debits it.
type AdjustBalanceRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason" binding:"required,max=500"`
	Currency       string          `json:"currency,omitempty" binding:"omitempty,iso_currency"`
	OverrideLimits bool            `json:"override_limits"`
}

// FreezeRequest is the request body for freezing and unfreezing a wallet.
type FreezeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// SetLimitsRequest is the request body for replacing a spending limit policy.
// An omitted limit means no cap of that kind.
type SetLimitsRequest struct {
	MaxTransactionAmount *decimal.Decimal `json:"max_transaction_amount,omitempty"`
	MaxDailySpend        *decimal.Decimal `json:"max_daily_spend,omitempty"`
	MaxMonthlySpend      *decimal.Decimal `json:"max_monthly_spend,omitempty"`
	Enabled              *bool            `json:"enabled" binding:"required"`
	Reason               string           `json:"reason" binding:"required,max=500"`
}

// RemoveLimitsRequest is the optional request body for clearing a policy.
type RemoveLimitsRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CheckSpendRequest asks whether a customer spend of Amount may proceed.
type CheckSpendRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// AuditQuery holds the audit log query string.
type AuditQuery struct {
	StartDate   string `form:"start_date"`
	EndDate     string `form:"end_date"`
	ActionTypes string `form:"action_types"` // comma separated
	Limit       int    `form:"limit" binding:"omitempty,min=1"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
	Cursor      string `form:"cursor"`
}

// WalletResponse is the wallet state returned by every wallet mutation.
type WalletResponse struct {
	BusinessAccountID string  `json:"business_account_id"`
	Balance           string  `json:"balance"`
	Currency          string  `json:"currency"`
	Frozen            bool    `json:"frozen"`
	FrozenAt          *string `json:"frozen_at,omitempty"`
	FrozenReason      *string `json:"frozen_reason,omitempty"`
	FrozenBy          *string `json:"frozen_by,omitempty"`
	Version           int64   `json:"version"`
	UpdatedAt         string  `json:"updated_at"`
}

// PolicyResponse is a spending limit policy with money as fixed-point strings.
type PolicyResponse struct {
	Enabled              bool    `json:"enabled"`
	MaxTransactionAmount *string `json:"max_transaction_amount"`
	MaxDailySpend        *string `json:"max_daily_spend"`
	MaxMonthlySpend      *string `json:"max_monthly_spend"`
	UpdatedAt            *string `json:"updated_at,omitempty"`
	UpdatedBy            *string `json:"updated_by,omitempty"`
}

// SpendUsageResponse is the debit total of the current day and month.
type SpendUsageResponse struct {
	Daily   string `json:"daily"`
	Monthly string `json:"monthly"`
}

// TransactionResponse is one external ledger transaction.
type TransactionResponse struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Description  string `json:"description,omitempty"`
	BalanceAfter string `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

// StatsResponse aggregates transactions over the stats window.
type StatsResponse struct {
	TotalCredits string `json:"total_credits"`
	TotalDebits  string `json:"total_debits"`
	CreditCount  int64  `json:"credit_count"`
	DebitCount   int64  `json:"debit_count"`
}

// SnapshotResponse is the dashboard view of one wallet.
type SnapshotResponse struct {
	Wallet             WalletResponse        `json:"wallet"`
	Limits             PolicyResponse        `json:"spending_limits"`
	CurrentSpend       SpendUsageResponse    `json:"current_spend"`
	RecentTransactions []TransactionResponse `json:"recent_transactions"`
	Stats30d           StatsResponse         `json:"stats_30d"`
	GeneratedAt        string                `json:"generated_at"`
}

// DecisionResponse is the outcome of a spend check.
type DecisionResponse struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason,omitempty"`
	Limit      string  `json:"limit,omitempty"`
	LimitValue *string `json:"limit_value,omitempty"`
	Used       *string `json:"used,omitempty"`
}

// AuditLogResponse is one audit entry.
type AuditLogResponse struct {
	ID              string               `json:"id"`
	AdminID         string               `json:"admin_id"`
	ActionType      string               `json:"action_type"`
	Amount          *string              `json:"amount"`
	Currency        string               `json:"currency"`
	Reason          string               `json:"reason"`
	PreviousBalance string               `json:"previous_balance"`
	NewBalance      string               `json:"new_balance"`
	Metadata        domain.AuditMetadata `json:"metadata,omitempty"`
	CreatedAt       string               `json:"created_at"`
}

// Pagination describes where an audit page sits in the full result.
type Pagination struct {
	Total      int64  `json:"total"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// AuditListResponse wraps one audit page.
type AuditListResponse struct {
	AuditLogs  []AuditLogResponse `json:"audit_logs"`
	Pagination Pagination         `json:"pagination"`
}

// Money renders an amount with exactly two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := Money(*d)
	return &s
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func timestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestamp(*t)
	return &s
}

// NewWalletResponse maps a wallet account.
func NewWalletResponse(w *domain.WalletAccount) WalletResponse {
	resp := WalletResponse{
		BusinessAccountID: w.BusinessAccountID.String(),
		Balance:           Money(w.Balance),
		Currency:          w.Currency,
		Frozen:            w.Frozen,
		FrozenAt:          timestampPtr(w.FrozenAt),
		FrozenReason:      w.FrozenReason,
		Version:           w.Version,
		UpdatedAt:         timestamp(w.UpdatedAt),
	}
	if w.FrozenBy != nil {
		by := w.FrozenBy.String()
		resp.FrozenBy = &by
	}
	return resp
}

// NewPolicyResponse maps a policy. A nil policy renders as disabled with no caps.
func NewPolicyResponse(p *domain.SpendingLimitPolicy) PolicyResponse {
	if p == nil {
		return PolicyResponse{}
	}
	resp := PolicyResponse{
		Enabled:              p.Enabled,
		MaxTransactionAmount: moneyPtr(p.MaxTransactionAmount),
		MaxDailySpend:        moneyPtr(p.MaxDailySpend),
		MaxMonthlySpend:      moneyPtr(p.MaxMonthlySpend),
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = timestampPtr(&p.UpdatedAt)
	}
	if p.UpdatedBy != nil {
		by := p.UpdatedBy.String()
		resp.UpdatedBy = &by
	}
	return resp
}

// NewSnapshotResponse maps a wallet snapshot.
func NewSnapshotResponse(s *domain.WalletSnapshot) SnapshotResponse {
	txs := make([]TransactionResponse, 0, len(s.RecentTransactions))
	for _, tx := range s.RecentTransactions {
		txs = append(txs, TransactionResponse{
			ID:           tx.ID.String(),
			Amount:       Money(tx.Amount),
			Currency:     tx.Currency,
			Description:  tx.Description,
			BalanceAfter: Money(tx.BalanceAfter),
			CreatedAt:    timestamp(tx.CreatedAt),
		})
	}
	return SnapshotResponse{
		Wallet: NewWalletResponse(s.Wallet),
		Limits: NewPolicyResponse(s.Policy),
		CurrentSpend: SpendUsageResponse{
			Daily:   Money(s.CurrentSpend.Daily),
			Monthly: Money(s.CurrentSpend.Monthly),
		},
		RecentTransactions: txs,
		Stats30d: StatsResponse{
			TotalCredits: Money(s.Stats30d.TotalCredits),
			TotalDebits:  Money(s.Stats30d.TotalDebits),
			CreditCount:  s.Stats30d.CreditCount,
			DebitCount:   s.Stats30d.DebitCount,
		},
		GeneratedAt: timestamp(s.GeneratedAt),
	}
}

// NewDecisionResponse maps a limit decision.
func NewDecisionResponse(d *domain.LimitDecision) DecisionResponse {
	return DecisionResponse{
		Allowed:    d.Allowed,
		Reason:     d.Reason,
		Limit:      string(d.Limit),
		LimitValue: moneyPtr(d.LimitValue),
		Used:       moneyPtr(d.Used),
	}
}

// NewAuditListResponse maps one audit page.
func NewAuditListResponse(page *ports.AuditPage) AuditListResponse {
	logs := make([]AuditLogResponse, 0, len(page.Entries))
	for _, e := range page.Entries {
		logs = append(logs, AuditLogResponse{
			ID:              e.ID.String(),
			AdminID:         e.AdminID.String(),
			ActionType:      string(e.Action),
			Amount:          moneyPtr(e.Amount),
			Currency:        e.Currency,
			Reason:          e.Reason,
			PreviousBalance: Money(e.PreviousBalance),
			NewBalance:      Money(e.NewBalance),
			Metadata:        e.Metadata,
			CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return AuditListResponse{
		AuditLogs: logs,
		Pagination: Pagination{
			Total:      page.Total,
			Limit:      page.Limit,
			Offset:     page.Offset,
			HasMore:    page.HasMore,
			NextCursor: page.NextCursor,
		},
	}
}

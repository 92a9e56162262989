package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a booking or spend record from the external transaction
// ledger. Amount is signed: negative values are debits. The engine only reads these.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	BusinessAccountID uuid.UUID       `json:"business_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description,omitempty"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsDebit reports whether the transaction spent money.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// TransactionStats aggregates external transactions over a window.
type TransactionStats struct {
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	CreditCount  int64           `json:"credit_count"`
	DebitCount   int64           `json:"debit_count"`
}

// WalletSnapshot is the read-only dashboard view of one wallet.
type WalletSnapshot struct {
	Wallet             *WalletAccount       `json:"wallet"`
	Policy             *SpendingLimitPolicy `json:"policy"`
	CurrentSpend       SpendUsage           `json:"current_spend"`
	RecentTransactions []Transaction        `json:"recent_transactions"`
	Stats30d           TransactionStats     `json:"stats_30d"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places a wallet amount may carry.
const MoneyScale = 2

// MaxMoney is the largest amount or balance the ledger stores (NUMERIC(20,2)).
var MaxMoney = decimal.RequireFromString("999999999999999999.99")

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrVersionConflict   = errors.New("wallet version conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletFrozen      = errors.New("wallet is frozen")
	ErrStoreUnavailable  = errors.New("wallet store unavailable")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrAmountOutOfRange  = errors.New("amount is out of range")
)

// WalletAccount is the balance-holding account of one business.
// Balance never drops below zero on a committed debit; a frozen wallet
// accepts credits only.
type WalletAccount struct {
	BusinessAccountID uuid.UUID       `json:"business_account_id"`
	Balance           decimal.Decimal `json:"balance"`
	Currency          string          `json:"currency"`
	Timezone          string          `json:"timezone,omitempty"`
	Frozen            bool            `json:"frozen"`
	FrozenAt          *time.Time      `json:"frozen_at,omitempty"`
	FrozenReason      *string         `json:"frozen_reason,omitempty"`
	FrozenBy          *uuid.UUID      `json:"frozen_by,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CanApply reports the sentinel that would reject delta against the current state, or nil.
func (w *WalletAccount) CanApply(delta decimal.Decimal) error {
	if !delta.IsNegative() {
		if w.Balance.Add(delta).GreaterThan(MaxMoney) {
			return ErrAmountOutOfRange
		}
		return nil
	}
	if w.Frozen {
		return ErrWalletFrozen
	}
	if w.Balance.Add(delta).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// Location resolves the wallet's calendar timezone, falling back to def.
func (w *WalletAccount) Location(def *time.Location) *time.Location {
	if w.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return def
	}
	return loc
}

// HasMoneyScale reports whether d carries at most MoneyScale decimal places.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// WithinMoneyRange reports whether |d| fits the ledger's money column.
func WithinMoneyRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxMoney)
}

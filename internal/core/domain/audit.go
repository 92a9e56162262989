package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditAction names an administrative mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionManualCredit         AuditAction = "manual_credit"
	AuditActionManualDebit          AuditAction = "manual_debit"
	AuditActionFreezeWallet         AuditAction = "freeze_wallet"
	AuditActionUnfreezeWallet       AuditAction = "unfreeze_wallet"
	AuditActionSetSpendingLimits    AuditAction = "set_spending_limits"
	AuditActionRemoveSpendingLimits AuditAction = "remove_spending_limits"
	AuditActionOverrideLimit        AuditAction = "override_limit"
)

// AuditActions lists every known action in a stable order.
var AuditActions = []AuditAction{
	AuditActionManualCredit,
	AuditActionManualDebit,
	AuditActionFreezeWallet,
	AuditActionUnfreezeWallet,
	AuditActionSetSpendingLimits,
	AuditActionRemoveSpendingLimits,
	AuditActionOverrideLimit,
}

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	for _, known := range AuditActions {
		if a == known {
			return true
		}
	}
	return false
}

// MinReasonLength is the shortest trimmed reason accepted for the action.
func (a AuditAction) MinReasonLength() int {
	switch a {
	case AuditActionSetSpendingLimits:
		return 5
	case AuditActionRemoveSpendingLimits:
		return 0
	default:
		return 10
	}
}

// AuditLogEntry is one append-only record of a wallet or policy mutation.
type AuditLogEntry struct {
	ID                uuid.UUID        `json:"id"`
	BusinessAccountID uuid.UUID        `json:"business_account_id"`
	AdminID           uuid.UUID        `json:"admin_id"`
	Action            AuditAction      `json:"action_type"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Currency          string           `json:"currency"`
	Reason            string           `json:"reason"`
	PreviousBalance   decimal.Decimal  `json:"previous_balance"`
	NewBalance        decimal.Decimal  `json:"new_balance"`
	Metadata          AuditMetadata    `json:"metadata,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// AuditMetadata is the per-action payload attached to an audit entry.
// The set of implementations is closed; OpaqueMetadata carries anything
// written by an action this build does not know.
type AuditMetadata interface {
	auditMetadata()
}

// BalanceAdjustmentMetadata accompanies manual_credit and manual_debit.
type BalanceAdjustmentMetadata struct {
	OverrideLimits bool   `json:"override_limits,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// FreezeMetadata accompanies freeze_wallet and unfreeze_wallet.
type FreezeMetadata struct {
	PreviouslyFrozen bool    `json:"previously_frozen"`
	PreviousReason   *string `json:"previous_reason,omitempty"`
}

// SpendingLimitMetadata accompanies set_spending_limits and remove_spending_limits.
type SpendingLimitMetadata struct {
	Previous *SpendingLimitPolicy `json:"previous,omitempty"`
	Current  *SpendingLimitPolicy `json:"current"`
}

// LimitOverrideMetadata records the decision an admin knowingly bypassed.
type LimitOverrideMetadata struct {
	DeniedReason string           `json:"denied_reason"`
	Limit        LimitKind        `json:"limit"`
	LimitValue   *decimal.Decimal `json:"limit_value,omitempty"`
	Used         *decimal.Decimal `json:"used,omitempty"`
}

// OpaqueMetadata keeps unknown payloads intact.
type OpaqueMetadata map[string]any

func (BalanceAdjustmentMetadata) auditMetadata() {}
func (FreezeMetadata) auditMetadata()            {}
func (SpendingLimitMetadata) auditMetadata()     {}
func (LimitOverrideMetadata) auditMetadata()     {}
func (OpaqueMetadata) auditMetadata()            {}

// EncodeMetadata renders m for the JSONB column. Nil encodes as an empty object.
func EncodeMetadata(m AuditMetadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMetadata parses raw into the payload type owned by action.
func DecodeMetadata(action AuditAction, raw []byte) (AuditMetadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var (
		m   AuditMetadata
		err error
	)
	switch action {
	case AuditActionManualCredit, AuditActionManualDebit:
		var v BalanceAdjustmentMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case AuditActionFreezeWallet, AuditActionUnfreezeWallet:
		var v FreezeMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case AuditActionSetSpendingLimits, AuditActionRemoveSpendingLimits:
		var v SpendingLimitMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case AuditActionOverrideLimit:
		var v LimitOverrideMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	default:
		var v OpaqueMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s metadata: %w", action, err)
	}
	return m, nil
}

// ErrInvalidCursor is returned for a malformed audit continuation token.
var ErrInvalidCursor = errors.New("invalid audit cursor")

// AuditCursor is the keyset position after the last entry of a page.
type AuditCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the cursor that continues after e.
func CursorAfter(e AuditLogEntry) *AuditCursor {
	return &AuditCursor{CreatedAt: e.CreatedAt, ID: e.ID}
}

// Encode renders the cursor as an opaque URL-safe token.
func (c AuditCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeAuditCursor parses a token produced by Encode.
func DecodeAuditCursor(token string) (*AuditCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &AuditCursor{CreatedAt: time.Unix(0, n).UTC(), ID: uid}, nil
}

// Continues reports whether e sorts after the cursor in created_at DESC, id DESC order.
func (c AuditCursor) Continues(e AuditLogEntry) bool {
	if e.CreatedAt.Equal(c.CreatedAt) {
		return strings.Compare(e.ID.String(), c.ID.String()) < 0
	}
	return e.CreatedAt.Before(c.CreatedAt)
}

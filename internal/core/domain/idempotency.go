package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdempotencyLog stores the committed result of a keyed adjustment so a retry replays it.
type IdempotencyLog struct {
	Key               string    `json:"key"` // Format: "business_account_id:adjust:client_key"
	BusinessAccountID uuid.UUID `json:"business_account_id"`
	ResponseJSON      []byte    `json:"response_json"`
	CreatedAt         time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client-supplied key to one wallet.
func BuildIdempotencyKey(businessAccountID uuid.UUID, clientKey string) string {
	return businessAccountID.String() + ":adjust:" + clientKey
}

// AdjustmentReplay is the payload stored under an idempotency key. Fingerprint
// ties the key to the request that first used it.
type AdjustmentReplay struct {
	Fingerprint string         `json:"fingerprint"`
	Wallet      *WalletAccount `json:"wallet"`
}

// AdjustmentFingerprint identifies an adjustment by the fields a retry must repeat.
func AdjustmentFingerprint(amount decimal.Decimal, overrideLimits bool) string {
	fp := amount.StringFixed(MoneyScale)
	if overrideLimits {
		fp += "|override"
	}
	return fp
}

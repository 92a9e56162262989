package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestWalletAccount_CanApply(t *testing.T) {
	tests := []struct {
		name    string
		wallet  WalletAccount
		delta   string
		wantErr error
	}{
		{"credit on open wallet", WalletAccount{Balance: decimal.RequireFromString("10")}, "5", nil},
		{"credit on frozen wallet", WalletAccount{Balance: decimal.RequireFromString("10"), Frozen: true}, "5", nil},
		{"debit within balance", WalletAccount{Balance: decimal.RequireFromString("10")}, "-10", nil},
		{"debit beyond balance", WalletAccount{Balance: decimal.RequireFromString("10")}, "-10.01", ErrInsufficientFunds},
		{"debit on frozen wallet", WalletAccount{Balance: decimal.RequireFromString("10"), Frozen: true}, "-1", ErrWalletFrozen},
		{"credit up to the column maximum", WalletAccount{Balance: decimal.RequireFromString("0.99")}, "999999999999999999.00", nil},
		{"credit past the column maximum", WalletAccount{Balance: decimal.RequireFromString("1.00")}, "999999999999999999.00", ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wallet.CanApply(decimal.RequireFromString(tt.delta))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWalletAccount_Location(t *testing.T) {
	dubai, err := time.LoadLocation("Asia/Dubai")
	require.NoError(t, err)

	assert.Equal(t, time.UTC, (&WalletAccount{}).Location(time.UTC))
	assert.Equal(t, time.UTC, (&WalletAccount{Timezone: "Nowhere/Special"}).Location(time.UTC))
	assert.Equal(t, dubai.String(), (&WalletAccount{Timezone: "Asia/Dubai"}).Location(time.UTC).String())
}

func TestHasMoneyScale(t *testing.T) {
	assert.True(t, HasMoneyScale(decimal.RequireFromString("12.34")))
	assert.True(t, HasMoneyScale(decimal.RequireFromString("12")))
	assert.False(t, HasMoneyScale(decimal.RequireFromString("12.345")))
}

func TestWithinMoneyRange(t *testing.T) {
	assert.True(t, WithinMoneyRange(MaxMoney))
	assert.True(t, WithinMoneyRange(MaxMoney.Neg()))
	assert.False(t, WithinMoneyRange(decimal.RequireFromString("1000000000000000000")))
	assert.False(t, WithinMoneyRange(decimal.RequireFromString("-1000000000000000000")))
}

func TestSpendingLimitPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  SpendingLimitPolicy
		wantErr error
	}{
		{"disabled and empty", SpendingLimitPolicy{}, nil},
		{"daily below monthly", SpendingLimitPolicy{Enabled: true, MaxDailySpend: dec("200"), MaxMonthlySpend: dec("1000")}, nil},
		{"daily equals monthly", SpendingLimitPolicy{Enabled: true, MaxDailySpend: dec("50"), MaxMonthlySpend: dec("50")}, nil},
		{"daily above monthly", SpendingLimitPolicy{Enabled: true, MaxDailySpend: dec("100"), MaxMonthlySpend: dec("50")}, ErrDailyExceedsMonthly},
		{"zero limit", SpendingLimitPolicy{Enabled: true, MaxTransactionAmount: dec("0")}, ErrLimitNotPositive},
		{"negative limit", SpendingLimitPolicy{MaxMonthlySpend: dec("-1")}, ErrLimitNotPositive},
		{"enabled without limits", SpendingLimitPolicy{Enabled: true}, ErrEnabledWithoutLimits},
		{"sub-cent limit", SpendingLimitPolicy{Enabled: true, MaxDailySpend: dec("10.001")}, ErrLimitScaleTooFine},
		{"limit beyond storable range", SpendingLimitPolicy{Enabled: true, MaxMonthlySpend: dec("1000000000000000000")}, ErrLimitOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDisabledPolicy(t *testing.T) {
	id := uuid.New()
	p := DisabledPolicy(id)
	assert.Equal(t, id, p.BusinessAccountID)
	assert.False(t, p.Enabled)
	assert.False(t, p.HasLimits())
}

func TestAuditAction_MinReasonLength(t *testing.T) {
	tests := []struct {
		action AuditAction
		want   int
	}{
		{AuditActionManualCredit, 10},
		{AuditActionManualDebit, 10},
		{AuditActionFreezeWallet, 10},
		{AuditActionUnfreezeWallet, 10},
		{AuditActionSetSpendingLimits, 5},
		{AuditActionRemoveSpendingLimits, 0},
		{AuditActionOverrideLimit, 10},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.True(t, tt.action.Valid())
			assert.Equal(t, tt.want, tt.action.MinReasonLength())
		})
	}
	assert.False(t, AuditAction("delete_wallet").Valid())
}

func TestMetadata_RoundTripPerAction(t *testing.T) {
	reason := "old reason here"
	tests := []struct {
		action AuditAction
		meta   AuditMetadata
	}{
		{AuditActionManualDebit, BalanceAdjustmentMetadata{OverrideLimits: true, IdempotencyKey: "k-1"}},
		{AuditActionFreezeWallet, FreezeMetadata{PreviouslyFrozen: true, PreviousReason: &reason}},
		{AuditActionOverrideLimit, LimitOverrideMetadata{DeniedReason: ReasonDaily, Limit: LimitDaily}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			raw, err := EncodeMetadata(tt.meta)
			require.NoError(t, err)

			got, err := DecodeMetadata(tt.action, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.meta, got)
		})
	}
}

func TestDecodeMetadata_SpendingLimits(t *testing.T) {
	raw, err := EncodeMetadata(SpendingLimitMetadata{
		Current: &SpendingLimitPolicy{Enabled: true, MaxDailySpend: dec("200")},
	})
	require.NoError(t, err)

	got, err := DecodeMetadata(AuditActionSetSpendingLimits, raw)
	require.NoError(t, err)

	meta, ok := got.(SpendingLimitMetadata)
	require.True(t, ok)
	assert.Nil(t, meta.Previous)
	require.NotNil(t, meta.Current.MaxDailySpend)
	assert.True(t, meta.Current.MaxDailySpend.Equal(decimal.NewFromInt(200)))
}

func TestDecodeMetadata_UnknownActionFallsBackToOpaque(t *testing.T) {
	got, err := DecodeMetadata("future_action", []byte(`{"foo":"bar"}`))
	require.NoError(t, err)
	assert.Equal(t, OpaqueMetadata{"foo": "bar"}, got)
}

func TestDecodeMetadata_EmptyAndNil(t *testing.T) {
	got, err := DecodeMetadata(AuditActionManualCredit, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	raw, err := EncodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestDecodeMetadata_Malformed(t *testing.T) {
	_, err := DecodeMetadata(AuditActionFreezeWallet, []byte(`{"previously_frozen":"yes"}`))
	assert.Error(t, err)
}

func TestAuditCursor_EncodeDecode(t *testing.T) {
	c := AuditCursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		ID:        uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
	}

	got, err := DecodeAuditCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, c.ID, got.ID)
}

func TestDecodeAuditCursor_Invalid(t *testing.T) {
	for _, token := range []string{"", "%%%", "bm90LWEtY3Vyc29y", "MTIzOm5vdC1hLXV1aWQ"} {
		_, err := DecodeAuditCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestAuditCursor_Continues(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := AuditCursor{CreatedAt: at, ID: uuid.MustParse("00000000-0000-0000-0000-000000000005")}

	assert.True(t, c.Continues(AuditLogEntry{CreatedAt: at.Add(-time.Second), ID: uuid.New()}))
	assert.False(t, c.Continues(AuditLogEntry{CreatedAt: at.Add(time.Second), ID: uuid.New()}))
	assert.True(t, c.Continues(AuditLogEntry{CreatedAt: at, ID: uuid.MustParse("00000000-0000-0000-0000-000000000004")}))
	assert.False(t, c.Continues(AuditLogEntry{CreatedAt: at, ID: c.ID}))
}

func TestAdminPrincipal_IsAdmin(t *testing.T) {
	assert.True(t, AdminPrincipal{ID: uuid.New(), Role: RoleAdmin}.IsAdmin())
	assert.False(t, AdminPrincipal{ID: uuid.New(), Role: RoleService}.IsAdmin())
	assert.False(t, AdminPrincipal{Role: RoleAdmin}.IsAdmin())
	assert.True(t, KnownRole(RoleService))
	assert.False(t, KnownRole("merchant"))
}

func TestBuildIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := BuildIdempotencyKey(id, "req-001")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:adjust:req-001", key)
}

func TestAdjustmentFingerprint(t *testing.T) {
	assert.Equal(t, AdjustmentFingerprint(decimal.RequireFromString("100"), false),
		AdjustmentFingerprint(decimal.RequireFromString("100.00"), false))
	assert.NotEqual(t, AdjustmentFingerprint(decimal.RequireFromString("100"), false),
		AdjustmentFingerprint(decimal.RequireFromString("-100"), false))
	assert.NotEqual(t, AdjustmentFingerprint(decimal.RequireFromString("-100"), false),
		AdjustmentFingerprint(decimal.RequireFromString("-100"), true))
}

func TestTransaction_IsDebit(t *testing.T) {
	assert.True(t, (&Transaction{Amount: decimal.RequireFromString("-1.50")}).IsDebit())
	assert.False(t, (&Transaction{Amount: decimal.RequireFromString("1.50")}).IsDebit())
}

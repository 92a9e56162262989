package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func TestEvaluateLimits(t *testing.T) {
	policy := &domain.SpendingLimitPolicy{
		Enabled:              true,
		MaxTransactionAmount: moneyPtr("300"),
		MaxDailySpend:        moneyPtr("200"),
		MaxMonthlySpend:      moneyPtr("1000"),
	}

	tests := []struct {
		name       string
		policy     *domain.SpendingLimitPolicy
		amount     string
		usage      domain.SpendUsage
		wantAllow  bool
		wantReason string
		wantLimit  domain.LimitKind
	}{
		{name: "nil policy", policy: nil, amount: "1000000", wantAllow: true},
		{name: "disabled policy", policy: &domain.SpendingLimitPolicy{MaxTransactionAmount: moneyPtr("1")}, amount: "5", wantAllow: true},
		{name: "within all caps", policy: policy, amount: "150", usage: domain.SpendUsage{Daily: money("10"), Monthly: money("10")}, wantAllow: true},
		{name: "exactly at daily cap", policy: policy, amount: "150", usage: domain.SpendUsage{Daily: money("50"), Monthly: money("50")}, wantAllow: true},
		{name: "over per-transaction", policy: policy, amount: "300.01", wantReason: domain.ReasonPerTransaction, wantLimit: domain.LimitPerTransaction},
		{name: "over daily", policy: policy, amount: "250", wantReason: domain.ReasonDaily, wantLimit: domain.LimitDaily},
		{name: "daily with prior spend", policy: policy, amount: "100", usage: domain.SpendUsage{Daily: money("150"), Monthly: money("150")}, wantReason: domain.ReasonDaily, wantLimit: domain.LimitDaily},
		{name: "over monthly", policy: policy, amount: "100", usage: domain.SpendUsage{Daily: money("0"), Monthly: money("950")}, wantReason: domain.ReasonMonthly, wantLimit: domain.LimitMonthly},
		{name: "per-transaction checked first", policy: policy, amount: "5000", usage: domain.SpendUsage{Daily: money("999"), Monthly: money("999")}, wantReason: domain.ReasonPerTransaction, wantLimit: domain.LimitPerTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateLimits(tt.policy, money(tt.amount), tt.usage)
			assert.Equal(t, tt.wantAllow, got.Allowed)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestEvaluateLimits_ReportsUsedAmount(t *testing.T) {
	policy := &domain.SpendingLimitPolicy{Enabled: true, MaxDailySpend: moneyPtr("200")}

	got := EvaluateLimits(policy, money("60"), domain.SpendUsage{Daily: money("150"), Monthly: money("150")})
	require.False(t, got.Allowed)
	require.NotNil(t, got.Used)
	assert.True(t, got.Used.Equal(money("150")))
	assert.True(t, got.LimitValue.Equal(money("200")))
}

func TestSpendWindows_UsesBusinessTimezone(t *testing.T) {
	dubai, err := time.LoadLocation("Asia/Dubai")
	require.NoError(t, err)

	// 22:30 UTC on Jan 31 is already Feb 1 in Dubai (UTC+4).
	now := time.Date(2026, 1, 31, 22, 30, 0, 0, time.UTC)
	dayStart, monthStart := SpendWindows(now, dubai)

	assert.True(t, dayStart.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, dubai)))
	assert.True(t, monthStart.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, dubai)))
	assert.True(t, dayStart.Equal(time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)))

	utcDay, utcMonth := SpendWindows(now, nil)
	assert.True(t, utcDay.Equal(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.True(t, utcMonth.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLimitEvaluator_Evaluate_QueriesBothWindows(t *testing.T) {
	ctrl := gomock.NewController(t)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	e := NewLimitEvaluator(txRepo)

	id := uuid.New()
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	dayStart, monthStart := SpendWindows(now, time.UTC)

	txRepo.EXPECT().SumDebits(gomock.Any(), id, dayStart, now).Return(money("0"), nil)
	txRepo.EXPECT().SumDebits(gomock.Any(), id, monthStart, now).Return(money("0"), nil)

	policy := &domain.SpendingLimitPolicy{Enabled: true, MaxDailySpend: moneyPtr("200"), MaxMonthlySpend: moneyPtr("1000")}
	got, err := e.Evaluate(context.Background(), policy, money("250"), id, time.UTC, now)
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, domain.ReasonDaily, got.Reason)
}

func TestLimitEvaluator_Evaluate_SkipsLedgerWithoutWindowCaps(t *testing.T) {
	ctrl := gomock.NewController(t)
	txRepo := mocks.NewMockTransactionRepository(ctrl) // no calls expected
	e := NewLimitEvaluator(txRepo)

	policy := &domain.SpendingLimitPolicy{Enabled: true, MaxTransactionAmount: moneyPtr("100")}
	got, err := e.Evaluate(context.Background(), policy, money("100"), uuid.New(), time.UTC, time.Now())
	require.NoError(t, err)
	assert.True(t, got.Allowed)

	got, err = e.Evaluate(context.Background(), nil, money("100"), uuid.New(), time.UTC, time.Now())
	require.NoError(t, err)
	assert.True(t, got.Allowed)
}

func TestLimitEvaluator_Evaluate_PropagatesLedgerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	e := NewLimitEvaluator(txRepo)

	txRepo.EXPECT().SumDebits(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(decimal.Zero, domain.ErrStoreUnavailable)

	policy := &domain.SpendingLimitPolicy{Enabled: true, MaxDailySpend: moneyPtr("200")}
	_, err := e.Evaluate(context.Background(), policy, money("1"), uuid.New(), time.UTC, time.Now())
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

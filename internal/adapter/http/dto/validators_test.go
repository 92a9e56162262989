package dto

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := AdjustBalanceRequest{
		Reason:   "  customer refund requested \n",
		Currency: " AED ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "customer refund requested", req.Reason)
	assert.Equal(t, "AED", req.Currency)
}

func TestSanitizeStruct_KeepsTextVerbatim(t *testing.T) {
	req := FreezeRequest{Reason: "owner's <request> & chargeback"}
	SanitizeStruct(&req)

	assert.Equal(t, "owner's <request> & chargeback", req.Reason)
}

func TestSanitizeStruct_DropsControlCharacters(t *testing.T) {
	req := FreezeRequest{Reason: "suspected\x00 fraud\x1b investigation"}
	SanitizeStruct(&req)

	assert.Equal(t, "suspected fraud investigation", req.Reason)
}

func TestSanitizeStruct_NonStructIsNoOp(t *testing.T) {
	s := "  untouched  "
	SanitizeStruct(&s)
	SanitizeStruct(FreezeRequest{Reason: " x "})
	assert.Equal(t, "  untouched  ", s)
}

// --- Binding tests ---

func bind(t *testing.T, body string, dst interface{}) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c.ShouldBindJSON(dst)
}

func TestAdjustBalanceRequest_Binding(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "string amount", body: `{"amount":"-200.00","reason":"customer refund requested"}`},
		{name: "number amount", body: `{"amount":50,"reason":"goodwill credit","currency":"AED"}`},
		{name: "missing reason", body: `{"amount":"10"}`, wantErr: true},
		{name: "lowercase currency", body: `{"amount":"10","reason":"goodwill credit","currency":"aed"}`, wantErr: true},
		{name: "long currency", body: `{"amount":"10","reason":"goodwill credit","currency":"DIRHAM"}`, wantErr: true},
		{name: "non numeric amount", body: `{"amount":"ten","reason":"goodwill credit"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req AdjustBalanceRequest
			err := bind(t, tt.body, &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, req.Amount.IsZero())
		})
	}
}

func TestSetLimitsRequest_RequiresEnabled(t *testing.T) {
	var req SetLimitsRequest
	assert.Error(t, bind(t, `{"max_daily_spend":"200","reason":"monthly cap policy"}`, &req))

	req = SetLimitsRequest{}
	require.NoError(t, bind(t, `{"max_daily_spend":"200","enabled":false,"reason":"monthly cap policy"}`, &req))
	require.NotNil(t, req.Enabled)
	assert.False(t, *req.Enabled)
	assert.True(t, req.MaxDailySpend.Equal(decimal.NewFromInt(200)))
	assert.Nil(t, req.MaxMonthlySpend)
}

// --- Response mapping tests ---

func TestMoney(t *testing.T) {
	assert.Equal(t, "300.00", Money(decimal.NewFromInt(300)))
	assert.Equal(t, "0.10", Money(decimal.RequireFromString("0.1")))
	assert.Equal(t, "-50.25", Money(decimal.RequireFromString("-50.25")))
}

func TestNewWalletResponse(t *testing.T) {
	id, admin := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	reason := "suspected fraud investigation"

	resp := NewWalletResponse(&domain.WalletAccount{
		BusinessAccountID: id,
		Balance:           decimal.NewFromInt(300),
		Currency:          "AED",
		Frozen:            true,
		FrozenAt:          &at,
		FrozenReason:      &reason,
		FrozenBy:          &admin,
		Version:           7,
		UpdatedAt:         at,
	})

	assert.Equal(t, id.String(), resp.BusinessAccountID)
	assert.Equal(t, "300.00", resp.Balance)
	assert.True(t, resp.Frozen)
	require.NotNil(t, resp.FrozenAt)
	assert.Equal(t, "2026-03-10T09:00:00Z", *resp.FrozenAt)
	assert.Equal(t, admin.String(), *resp.FrozenBy)
	assert.Equal(t, int64(7), resp.Version)
}

func TestNewPolicyResponse(t *testing.T) {
	assert.Equal(t, PolicyResponse{}, NewPolicyResponse(nil))

	daily := decimal.NewFromInt(200)
	resp := NewPolicyResponse(&domain.SpendingLimitPolicy{Enabled: true, MaxDailySpend: &daily})
	assert.True(t, resp.Enabled)
	assert.Equal(t, "200.00", *resp.MaxDailySpend)
	assert.Nil(t, resp.MaxMonthlySpend)
	assert.Nil(t, resp.UpdatedAt)
}

func TestNewDecisionResponse(t *testing.T) {
	limit, used := decimal.NewFromInt(200), decimal.NewFromInt(0)
	d := domain.Deny(domain.LimitDaily, domain.ReasonDaily, &limit, &used)

	resp := NewDecisionResponse(&d)
	assert.False(t, resp.Allowed)
	assert.Equal(t, "exceeds daily limit", resp.Reason)
	assert.Equal(t, "daily", resp.Limit)
	assert.Equal(t, "200.00", *resp.LimitValue)
	assert.Equal(t, "0.00", *resp.Used)
}

func TestNewAuditListResponse(t *testing.T) {
	amount := decimal.NewFromInt(50)
	page := &ports.AuditPage{
		Entries: []domain.AuditLogEntry{{
			ID:              uuid.New(),
			AdminID:         uuid.New(),
			Action:          domain.AuditActionManualCredit,
			Amount:          &amount,
			Currency:        "AED",
			Reason:          "goodwill credit for outage",
			PreviousBalance: decimal.NewFromInt(300),
			NewBalance:      decimal.NewFromInt(350),
			CreatedAt:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		}},
		Total:      3,
		Limit:      1,
		HasMore:    true,
		NextCursor: "abc",
	}

	resp := NewAuditListResponse(page)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "manual_credit", resp.AuditLogs[0].ActionType)
	assert.Equal(t, "50.00", *resp.AuditLogs[0].Amount)
	assert.Equal(t, "350.00", resp.AuditLogs[0].NewBalance)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.True(t, resp.Pagination.HasMore)
	assert.Equal(t, "abc", resp.Pagination.NextCursor)

	empty := NewAuditListResponse(&ports.AuditPage{Limit: 50})
	assert.NotNil(t, empty.AuditLogs)
	assert.Empty(t, empty.AuditLogs)
}

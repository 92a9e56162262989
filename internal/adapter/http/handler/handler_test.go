package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"business-wallet-engine/internal/adapter/http/middleware"
	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/internal/core/ports/mocks"
	"business-wallet-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// newContext builds a gin context for the wallet of accountID, authenticated as principal.
func newContext(method, target, body string, accountID string, principal *domain.AdminPrincipal) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = gin.Params{{Key: "business_id", Value: accountID}}
	if principal != nil {
		c.Set(middleware.CtxPrincipal, *principal)
	}
	return c, w
}

func admin() *domain.AdminPrincipal {
	return &domain.AdminPrincipal{ID: uuid.New(), Role: domain.RoleAdmin}
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func walletFixture(id uuid.UUID, balance string) *domain.WalletAccount {
	return &domain.WalletAccount{
		BusinessAccountID: id,
		Balance:           decimal.RequireFromString(balance),
		Currency:          "AED",
		Version:           2,
		CreatedAt:         testNow,
		UpdatedAt:         testNow,
	}
}

// --- Wallet Handler Tests ---

func TestAdjustBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc, mocks.NewMockReportingService(ctrl))

	accountID := uuid.New()
	p := admin()

	walletSvc.EXPECT().AdjustBalance(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, req ports.AdjustBalanceRequest) (*domain.WalletAccount, error) {
			assert.Equal(t, *p, req.Principal)
			assert.Equal(t, accountID, req.BusinessAccountID)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(-200)))
			assert.Equal(t, "customer refund requested", req.Reason)
			assert.Equal(t, "refund-77", req.IdempotencyKey)
			assert.False(t, req.OverrideLimits)
			return walletFixture(accountID, "300"), nil
		})

	c, w := newContext(http.MethodPost, "/adjust", `{"amount":"-200.00","reason":"  customer refund requested  "}`, accountID.String(), p)
	c.Request.Header.Set(HeaderIdempotencyKey, "refund-77")

	h.AdjustBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "300.00", data["balance"])
	assert.Equal(t, accountID.String(), data["business_account_id"])
	assert.Equal(t, float64(2), data["version"])
}

func TestAdjustBalance_ServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "WAL_001"},
		{"frozen", apperror.ErrWalletFrozen(), http.StatusLocked, "WAL_002"},
		{"limit", apperror.ErrSpendingLimitExceeded(domain.ReasonDaily), http.StatusUnprocessableEntity, "WAL_003"},
		{"not found", apperror.ErrNotFound("wallet"), http.StatusNotFound, "WAL_004"},
		{"forbidden", apperror.ErrForbidden(), http.StatusForbidden, "AUTH_002"},
		{"conflict", apperror.ErrConflict(errors.New("lock")), http.StatusConflict, "SYS_002"},
		{"unavailable", apperror.ErrStoreUnavailable(errors.New("down")), http.StatusServiceUnavailable, "SYS_004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			walletSvc := mocks.NewMockWalletService(ctrl)
			h := NewWalletHandler(walletSvc, mocks.NewMockReportingService(ctrl))

			walletSvc.EXPECT().AdjustBalance(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			c, w := newContext(http.MethodPost, "/adjust", `{"amount":"-50","reason":"parking fine recovery"}`, uuid.New().String(), admin())
			h.AdjustBalance(c)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeErrorCode(t, w))
		})
	}
}

func TestAdjustBalance_BadInput(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		body      string
		key       string
	}{
		{name: "bad business id", accountID: "not-a-uuid", body: `{"amount":"10","reason":"goodwill credit"}`},
		{name: "nil business id", accountID: uuid.Nil.String(), body: `{"amount":"10","reason":"goodwill credit"}`},
		{name: "empty body", accountID: uuid.New().String(), body: `{}`},
		{name: "bad amount", accountID: uuid.New().String(), body: `{"amount":"lots","reason":"goodwill credit"}`},
		{name: "long key", accountID: uuid.New().String(), body: `{"amount":"10","reason":"goodwill credit"}`, key: strings.Repeat("k", 129)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No service call expected.
			h := NewWalletHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockReportingService(ctrl))

			c, w := newContext(http.MethodPost, "/adjust", tt.body, tt.accountID, admin())
			if tt.key != "" {
				c.Request.Header.Set(HeaderIdempotencyKey, tt.key)
			}
			h.AdjustBalance(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_001", decodeErrorCode(t, w))
		})
	}
}

func TestAdjustBalance_NoPrincipal(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockReportingService(ctrl))

	c, w := newContext(http.MethodPost, "/adjust", `{"amount":"10","reason":"goodwill credit"}`, uuid.New().String(), nil)
	h.AdjustBalance(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFreezeAndUnfreeze(t *testing.T) {
	for _, frozen := range []bool{true, false} {
		ctrl := gomock.NewController(t)
		walletSvc := mocks.NewMockWalletService(ctrl)
		h := NewWalletHandler(walletSvc, mocks.NewMockReportingService(ctrl))
		accountID := uuid.New()

		wallet := walletFixture(accountID, "300")
		wallet.Frozen = frozen
		walletSvc.EXPECT().SetFrozen(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ interface{}, req ports.FreezeRequest) (*domain.WalletAccount, error) {
				assert.Equal(t, frozen, req.Frozen)
				assert.Equal(t, "suspected fraud investigation ongoing", req.Reason)
				return wallet, nil
			})

		method := http.MethodPost
		if !frozen {
			method = http.MethodDelete
		}
		c, w := newContext(method, "/freeze", `{"reason":"suspected fraud investigation ongoing"}`, accountID.String(), admin())
		if frozen {
			h.Freeze(c)
		} else {
			h.Unfreeze(c)
		}

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, frozen, decodeData(t, w)["frozen"])
	}
}

func TestFreeze_MissingReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockReportingService(ctrl))

	c, w := newContext(http.MethodPost, "/freeze", `{}`, uuid.New().String(), admin())
	h.Freeze(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetLimits_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc, mocks.NewMockReportingService(ctrl))
	accountID := uuid.New()

	walletSvc.EXPECT().SetSpendingLimits(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, req ports.SetLimitsRequest) (*domain.SpendingLimitPolicy, error) {
			assert.Equal(t, accountID, req.Policy.BusinessAccountID)
			assert.True(t, req.Policy.Enabled)
			require.NotNil(t, req.Policy.MaxDailySpend)
			assert.True(t, req.Policy.MaxDailySpend.Equal(decimal.NewFromInt(200)))
			assert.Nil(t, req.Policy.MaxTransactionAmount)
			assert.Equal(t, "monthly cap policy", req.Reason)
			p := req.Policy
			p.UpdatedAt = testNow
			p.UpdatedBy = &req.Principal.ID
			return &p, nil
		})

	c, w := newContext(http.MethodPut, "/limits",
		`{"max_daily_spend":"200","max_monthly_spend":1000,"enabled":true,"reason":"monthly cap policy"}`,
		accountID.String(), admin())
	h.SetLimits(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "200.00", data["max_daily_spend"])
	assert.Equal(t, "1000.00", data["max_monthly_spend"])
	assert.Nil(t, data["max_transaction_amount"])
	assert.Equal(t, true, data["enabled"])
}

func TestSetLimits_InvalidPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc, mocks.NewMockReportingService(ctrl))

	walletSvc.EXPECT().SetSpendingLimits(gomock.Any(), gomock.Any()).
		Return(nil, apperror.Validation(domain.ErrDailyExceedsMonthly.Error()))

	c, w := newContext(http.MethodPut, "/limits",
		`{"max_daily_spend":"100","max_monthly_spend":"50","enabled":true,"reason":"bad policy"}`,
		uuid.New().String(), admin())
	h.SetLimits(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "max_daily_spend")
}

func TestRemoveLimits_OptionalBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		chunked    bool
		wantReason string
	}{
		{name: "no body", body: "", wantReason: ""},
		{name: "with reason", body: `{"reason":" policy retired "}`, wantReason: "policy retired"},
		{name: "chunked with reason", body: `{"reason":"seasonal caps lifted"}`, chunked: true, wantReason: "seasonal caps lifted"},
		{name: "chunked and empty", body: "", chunked: true, wantReason: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			walletSvc := mocks.NewMockWalletService(ctrl)
			h := NewWalletHandler(walletSvc, mocks.NewMockReportingService(ctrl))
			accountID := uuid.New()

			walletSvc.EXPECT().RemoveSpendingLimits(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ interface{}, req ports.RemoveLimitsRequest) (*domain.SpendingLimitPolicy, error) {
					assert.Equal(t, tt.wantReason, req.Reason)
					return domain.DisabledPolicy(accountID), nil
				})

			c, w := newContext(http.MethodDelete, "/limits", tt.body, accountID.String(), admin())
			if tt.chunked {
				c.Request.ContentLength = -1
			}
			h.RemoveLimits(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, false, decodeData(t, w)["enabled"])
		})
	}
}

func TestGetSnapshot_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	reportingSvc := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), reportingSvc)
	accountID := uuid.New()

	reportingSvc.EXPECT().GetWalletSnapshot(gomock.Any(), accountID).Return(&domain.WalletSnapshot{
		Wallet: walletFixture(accountID, "450.5"),
		Policy: domain.DisabledPolicy(accountID),
		CurrentSpend: domain.SpendUsage{
			Daily:   decimal.NewFromInt(50),
			Monthly: decimal.NewFromInt(120),
		},
		RecentTransactions: []domain.Transaction{{
			ID:           uuid.New(),
			Amount:       decimal.NewFromInt(-50),
			Currency:     "AED",
			BalanceAfter: decimal.RequireFromString("450.5"),
			CreatedAt:    testNow,
		}},
		Stats30d:    domain.TransactionStats{TotalDebits: decimal.NewFromInt(120), DebitCount: 2},
		GeneratedAt: testNow,
	}, nil)

	c, w := newContext(http.MethodGet, "/wallet", "", accountID.String(), admin())
	h.GetSnapshot(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	wallet := data["wallet"].(map[string]interface{})
	assert.Equal(t, "450.50", wallet["balance"])
	spend := data["current_spend"].(map[string]interface{})
	assert.Equal(t, "50.00", spend["daily"])
	assert.Equal(t, "120.00", spend["monthly"])
	txs := data["recent_transactions"].([]interface{})
	require.Len(t, txs, 1)
	assert.Equal(t, "-50.00", txs[0].(map[string]interface{})["amount"])
	stats := data["stats_30d"].(map[string]interface{})
	assert.Equal(t, "120.00", stats["total_debits"])
}

func TestGetSnapshot_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	reportingSvc := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), reportingSvc)

	reportingSvc.EXPECT().GetWalletSnapshot(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrNotFound("wallet"))

	c, w := newContext(http.MethodGet, "/wallet", "", uuid.New().String(), admin())
	h.GetSnapshot(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckSpend_DenialIsOK(t *testing.T) {
	ctrl := gomock.NewController(t)
	reportingSvc := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), reportingSvc)
	accountID := uuid.New()

	limit, used := decimal.NewFromInt(200), decimal.Zero
	denied := domain.Deny(domain.LimitDaily, domain.ReasonDaily, &limit, &used)
	reportingSvc.EXPECT().CheckSpend(gomock.Any(), accountID, gomock.Any()).
		DoAndReturn(func(_ interface{}, _ uuid.UUID, amount decimal.Decimal) (*domain.LimitDecision, error) {
			assert.True(t, amount.Equal(decimal.NewFromInt(250)))
			return &denied, nil
		})

	service := &domain.AdminPrincipal{ID: uuid.New(), Role: domain.RoleService}
	c, w := newContext(http.MethodPost, "/limits/check", `{"amount":"250"}`, accountID.String(), service)
	h.CheckSpend(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, false, data["allowed"])
	assert.Equal(t, "exceeds daily limit", data["reason"])
	assert.Equal(t, "200.00", data["limit_value"])
}

// --- Audit Handler Tests ---

func TestAuditList_ParsesQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	auditSvc := mocks.NewMockAuditService(ctrl)
	h := NewAuditHandler(auditSvc)
	accountID := uuid.New()

	cursor := domain.AuditCursor{CreatedAt: testNow, ID: uuid.New()}

	auditSvc.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, params ports.AuditQueryParams) (*ports.AuditPage, error) {
			assert.Equal(t, accountID, params.BusinessAccountID)
			require.NotNil(t, params.StartDate)
			require.NotNil(t, params.EndDate)
			assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *params.StartDate)
			// A plain end date covers the whole day.
			assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), *params.EndDate)
			assert.Equal(t, []domain.AuditAction{domain.AuditActionManualCredit, domain.AuditActionManualDebit}, params.ActionTypes)
			assert.Equal(t, 20, params.Limit)
			assert.Equal(t, 40, params.Offset)
			require.NotNil(t, params.After)
			assert.Equal(t, cursor.ID, params.After.ID)
			return &ports.AuditPage{Entries: []domain.AuditLogEntry{}, Total: 0, Limit: 20}, nil
		})

	target := "/audit?start_date=2026-03-01&end_date=2026-03-10&action_types=manual_credit,%20manual_debit&limit=20&offset=40&cursor=" + cursor.Encode()
	c, w := newContext(http.MethodGet, target, "", accountID.String(), admin())
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Empty(t, data["audit_logs"])
	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(20), pagination["limit"])
}

func TestAuditList_BadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad start date", "?start_date=yesterday"},
		{"bad end date", "?end_date=2026-13-40"},
		{"bad cursor", "?cursor=not-a-cursor"},
		{"negative offset", "?offset=-1"},
		{"non numeric limit", "?limit=ten"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewAuditHandler(mocks.NewMockAuditService(ctrl))

			c, w := newContext(http.MethodGet, "/audit"+tt.query, "", uuid.New().String(), admin())
			h.List(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuditList_RFC3339Bounds(t *testing.T) {
	ctrl := gomock.NewController(t)
	auditSvc := mocks.NewMockAuditService(ctrl)
	h := NewAuditHandler(auditSvc)

	auditSvc.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, params ports.AuditQueryParams) (*ports.AuditPage, error) {
			assert.True(t, params.EndDate.Equal(time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)))
			assert.Nil(t, params.StartDate)
			assert.Empty(t, params.ActionTypes)
			return &ports.AuditPage{Limit: 50}, nil
		})

	c, w := newContext(http.MethodGet, "/audit?end_date=2026-03-10T16:30:00%2B04:00", "", uuid.New().String(), admin())
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd := mocks.NewMockHealthChecker(ctrl)
	rd.EXPECT().Name().Return("redis").AnyTimes()

	t.Run("all healthy", func(t *testing.T) {
		pg.EXPECT().Ping(gomock.Any()).Return(nil)
		rd.EXPECT().Ping(gomock.Any()).Return(nil)

		c, w := newContext(http.MethodGet, "/health", "", "", nil)
		HealthCheck(pg, rd)(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("redis down", func(t *testing.T) {
		pg.EXPECT().Ping(gomock.Any()).Return(nil)
		rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

		c, w := newContext(http.MethodGet, "/health", "", "", nil)
		HealthCheck(pg, rd)(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "degraded")
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

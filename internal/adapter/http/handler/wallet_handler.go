package handler

import (
	"errors"
	"io"

	"business-wallet-engine/internal/adapter/http/dto"
	"business-wallet-engine/internal/adapter/http/middleware"
	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/pkg/apperror"
	"business-wallet-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey makes a balance adjustment safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// WalletHandler handles the admin wallet endpoints.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{
		walletSvc:    walletSvc,
		reportingSvc: reportingSvc,
	}
}

// GetSnapshot handles GET /api/v1/admin/businesses/:business_id/wallet.
func (h *WalletHandler) GetSnapshot(c *gin.Context) {
	accountID, ok := businessID(c)
	if !ok {
		return
	}

	snapshot, err := h.reportingSvc.GetWalletSnapshot(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewSnapshotResponse(snapshot))
}

// AdjustBalance handles POST /api/v1/admin/businesses/:business_id/wallet/adjust.
func (h *WalletHandler) AdjustBalance(c *gin.Context) {
	principal, accountID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	wallet, err := h.walletSvc.AdjustBalance(c.Request.Context(), ports.AdjustBalanceRequest{
		Principal:         principal,
		BusinessAccountID: accountID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Reason:            req.Reason,
		OverrideLimits:    req.OverrideLimits,
		IdempotencyKey:    key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

// Freeze handles POST /api/v1/admin/businesses/:business_id/wallet/freeze.
func (h *WalletHandler) Freeze(c *gin.Context) {
	h.setFrozen(c, true)
}

// Unfreeze handles DELETE /api/v1/admin/businesses/:business_id/wallet/freeze.
func (h *WalletHandler) Unfreeze(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *WalletHandler) setFrozen(c *gin.Context, frozen bool) {
	principal, accountID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.walletSvc.SetFrozen(c.Request.Context(), ports.FreezeRequest{
		Principal:         principal,
		BusinessAccountID: accountID,
		Frozen:            frozen,
		Reason:            req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

// SetLimits handles PUT /api/v1/admin/businesses/:business_id/wallet/limits.
func (h *WalletHandler) SetLimits(c *gin.Context) {
	principal, accountID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.SetLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	policy, err := h.walletSvc.SetSpendingLimits(c.Request.Context(), ports.SetLimitsRequest{
		Principal:         principal,
		BusinessAccountID: accountID,
		Policy: domain.SpendingLimitPolicy{
			BusinessAccountID:    accountID,
			Enabled:              *req.Enabled,
			MaxTransactionAmount: req.MaxTransactionAmount,
			MaxDailySpend:        req.MaxDailySpend,
			MaxMonthlySpend:      req.MaxMonthlySpend,
		},
		Reason: req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPolicyResponse(policy))
}

// RemoveLimits handles DELETE /api/v1/admin/businesses/:business_id/wallet/limits.
// The body is optional; a chunked body has an unknown length and is read too.
func (h *WalletHandler) RemoveLimits(c *gin.Context) {
	principal, accountID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.RemoveLimitsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)
	}

	policy, err := h.walletSvc.RemoveSpendingLimits(c.Request.Context(), ports.RemoveLimitsRequest{
		Principal:         principal,
		BusinessAccountID: accountID,
		Reason:            req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPolicyResponse(policy))
}

// CheckSpend handles POST /api/v1/admin/businesses/:business_id/wallet/limits/check.
// A denial is a successful check, so it is returned with 200.
func (h *WalletHandler) CheckSpend(c *gin.Context) {
	accountID, ok := businessID(c)
	if !ok {
		return
	}

	var req dto.CheckSpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	decision, err := h.reportingSvc.CheckSpend(c.Request.Context(), accountID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewDecisionResponse(decision))
}

// businessID parses the :business_id path parameter, writing a 400 when malformed.
func businessID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("business_id"))
	if err != nil || id == uuid.Nil {
		response.Error(c, apperror.Validation("business_id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the authenticated principal and the target wallet.
func caller(c *gin.Context) (domain.AdminPrincipal, uuid.UUID, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.AdminPrincipal{}, uuid.Nil, false
	}
	accountID, ok := businessID(c)
	if !ok {
		return domain.AdminPrincipal{}, uuid.Nil, false
	}
	return principal, accountID, true
}

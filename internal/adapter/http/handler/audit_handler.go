package handler

import (
	"strings"
	"time"

	"business-wallet-engine/internal/adapter/http/dto"
	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/pkg/apperror"
	"business-wallet-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

const dateOnly = "2006-01-02"

// AuditHandler serves the wallet audit log.
type AuditHandler struct {
	auditSvc ports.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditSvc ports.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List handles GET /api/v1/admin/businesses/:business_id/wallet/audit.
//
// start_date and end_date take RFC 3339 timestamps or plain dates. A plain
// end_date includes that whole day.
func (h *AuditHandler) List(c *gin.Context) {
	accountID, ok := businessID(c)
	if !ok {
		return
	}

	var q dto.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.AuditQueryParams{
		BusinessAccountID: accountID,
		Limit:             q.Limit,
		Offset:            q.Offset,
	}

	var err error
	if params.StartDate, err = parseBound(q.StartDate, false); err != nil {
		response.Error(c, apperror.Validation("start_date: "+err.Error()))
		return
	}
	if params.EndDate, err = parseBound(q.EndDate, true); err != nil {
		response.Error(c, apperror.Validation("end_date: "+err.Error()))
		return
	}

	for _, a := range strings.Split(q.ActionTypes, ",") {
		if a = strings.TrimSpace(a); a != "" {
			params.ActionTypes = append(params.ActionTypes, domain.AuditAction(a))
		}
	}

	if q.Cursor != "" {
		cursor, err := domain.DecodeAuditCursor(q.Cursor)
		if err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		params.After = cursor
	}

	page, err := h.auditSvc.Query(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAuditListResponse(page))
}

// parseBound parses one end of the date range. Plain dates are UTC days;
// an exclusive upper bound moves to the start of the next day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24 * time.Hour)
	}
	return &t, nil
}

package service

import (
	"context"
	"fmt"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 100
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Query returns one page of a wallet's audit log, newest first.
// A cursor takes precedence over the offset.
func (s *auditService) Query(ctx context.Context, params ports.AuditQueryParams) (*ports.AuditPage, error) {
	if params.BusinessAccountID == uuid.Nil {
		return nil, apperror.Validation("business account id is required")
	}
	if params.Offset < 0 {
		return nil, apperror.Validation("offset must not be negative")
	}
	if params.StartDate != nil && params.EndDate != nil && params.StartDate.After(*params.EndDate) {
		return nil, apperror.Validation("start_date must not be after end_date")
	}
	for _, a := range params.ActionTypes {
		if !a.Valid() {
			return nil, apperror.Validation(fmt.Sprintf("unknown action type %q", a))
		}
	}

	switch {
	case params.Limit <= 0:
		params.Limit = defaultAuditLimit
	case params.Limit > maxAuditLimit:
		params.Limit = maxAuditLimit
	}
	if params.After != nil {
		params.Offset = 0
	}

	entries, total, err := s.repo.Query(ctx, params)
	if err != nil {
		return nil, storeError("query audit log", err)
	}

	page := &ports.AuditPage{
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if len(entries) > params.Limit {
		entries = entries[:params.Limit]
		page.HasMore = true
		page.NextCursor = domain.CursorAfter(entries[len(entries)-1]).Encode()
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	page.Entries = entries

	s.log.Debug().
		Str("business_account_id", params.BusinessAccountID.String()).
		Int("returned", len(entries)).
		Int64("total", total).
		Msg("audit log queried")

	return page, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/pkg/apperror"
)

// storeError translates adapter failures into the typed errors callers see.
func storeError(op string, err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperror.ErrTimeout(fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, domain.ErrVersionConflict):
		return apperror.ErrConflict(fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperror.ErrStoreUnavailable(fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrWalletFrozen):
		return apperror.ErrWalletFrozen()
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return apperror.Validation("resulting balance exceeds the largest storable value")
	case errors.Is(err, domain.ErrWalletNotFound):
		return apperror.ErrNotFound("wallet")
	default:
		return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
	}
}

// checkReason enforces the per-action minimum on the trimmed reason.
func checkReason(action domain.AuditAction, reason string) error {
	want := action.MinReasonLength()
	if len([]rune(strings.TrimSpace(reason))) < want {
		return apperror.Validation(fmt.Sprintf("reason must be at least %d characters", want))
	}
	return nil
}

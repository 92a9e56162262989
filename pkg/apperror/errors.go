package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the AppError code carried by err, or "" when err is not one.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

const (
	CodeValidation        = "VAL_001"
	CodeInsufficientFunds = "WAL_001"
	CodeWalletFrozen      = "WAL_002"
	CodeSpendingLimit     = "WAL_003"
	CodeNotFound          = "WAL_004"
	CodeInvalidToken      = "AUTH_001"
	CodeForbidden         = "AUTH_002"
	CodeRateLimited       = "RATE_001"
	CodeInternal          = "SYS_001"
	CodeConflict          = "SYS_002"
	CodeTimeout           = "SYS_003"
	CodeStoreUnavailable  = "SYS_004"
	CodeUnknown           = "SYS_000"
)

// ---- Validation (VAL) ----

// Validation reports malformed or out-of-range input. The message goes to the caller verbatim.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Wallet business rules (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletFrozen() *AppError {
	return New(CodeWalletFrozen, "Wallet is frozen; debits are blocked", http.StatusLocked)
}

func ErrSpendingLimitExceeded(reason string) *AppError {
	return New(CodeSpendingLimit, "Spending limit denied the debit: "+reason, http.StatusUnprocessableEntity)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Admin role required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

// ErrConflict means a concurrent mutation won the wallet lock; the caller should retry.
func ErrConflict(err error) *AppError {
	return Wrap(CodeConflict, "Wallet was modified concurrently, retry the request", http.StatusConflict, err)
}

func ErrTimeout(err error) *AppError {
	return Wrap(CodeTimeout, "Wallet store did not respond in time; nothing was committed", http.StatusGatewayTimeout, err)
}

func ErrStoreUnavailable(err error) *AppError {
	return Wrap(CodeStoreUnavailable, "Wallet store unavailable; nothing was committed", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

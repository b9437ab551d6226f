package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// HasCode reports whether err, or any error it wraps, is an AppError carrying
// the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if appErr.Code == code {
			return true
		}
		if appErr.Err != nil {
			return HasCode(appErr.Err, code)
		}
	}
	return false
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
)

// Matchmaking and session lifecycle error codes
const (
	ErrCodeAlreadyQueued      = "ALREADY_QUEUED"
	ErrCodeAlreadyInSession   = "ALREADY_IN_SESSION"
	ErrCodeConflictingSession = "CONFLICTING_SESSION"
	ErrCodeSessionNotActive   = "SESSION_NOT_ACTIVE"
	ErrCodeDeliveryFailed     = "DELIVERY_FAILED"
	ErrCodePartnerReclaim     = "PARTNER_RECLAIM_FAILED"
)

package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrInternal
	ErrQuotaExceeded
	ErrRenewalNotDue
	ErrPaymentNotConfirmed
	ErrUpstreamUnavailable
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// QuotaExceeded is terminal for the request: the user must upgrade or
// wait for the period reset. It is never retried.
func QuotaExceeded() *AppError {
	return &AppError{
		Code:    ErrQuotaExceeded,
		Message: "request limit reached, please subscribe to a plan",
	}
}

// RenewalNotDue rejects a free-plan enrollment attempted before the
// account's trial or billing period has run out.
func RenewalNotDue() *AppError {
	return &AppError{
		Code:    ErrRenewalNotDue,
		Message: "subscription renewal not due yet",
	}
}

// PaymentNotConfirmed reports a processor status other than succeeded.
// The caller may retry verification after the user completes payment.
func PaymentNotConfirmed(status string) *AppError {
	return &AppError{
		Code:    ErrPaymentNotConfirmed,
		Message: fmt.Sprintf("payment not successful, current status: %s", status),
	}
}

// UpstreamUnavailable wraps a communication failure with the payment
// processor or the generation service. Safe to retry with backoff; no
// ledger state was touched.
func UpstreamUnavailable(service string, err error) *AppError {
	return &AppError{
		Code:    ErrUpstreamUnavailable,
		Message: fmt.Sprintf("%s unavailable", service),
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrInternal when err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation             ErrorCode = "validation_error"
	CodeNotFound               ErrorCode = "not_found"
	CodeInvoiceClosed          ErrorCode = "invoice_closed"
	CodeSignatureMismatch      ErrorCode = "signature_mismatch"
	CodeWebhookAuth            ErrorCode = "webhook_auth_error"
	CodeInvalidOrExpiredToken  ErrorCode = "invalid_or_expired_token"
	CodeGateway                ErrorCode = "gateway_error"
	CodeInternalReconciliation ErrorCode = "internal_reconciliation_error"
)

// AppError is an expected failure kind. Message is safe to show to callers; Err is not.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error kind.
func (e *AppError) Status() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeGateway:
		return http.StatusBadGateway
	case CodeInternalReconciliation:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func NewValidationError(format string, args ...any) error {
	return &AppError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(what, id string) error {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

func NewInvoiceClosedError(reason string) error {
	return &AppError{Code: CodeInvoiceClosed, Message: "invoice is " + reason}
}

func NewSignatureMismatchError() error {
	return &AppError{Code: CodeSignatureMismatch, Message: "payment verification failed"}
}

func NewWebhookAuthError(err error) error {
	return &AppError{Code: CodeWebhookAuth, Message: "invalid webhook signature", Err: err}
}

func NewInvalidOrExpiredTokenError(err error) error {
	return &AppError{Code: CodeInvalidOrExpiredToken, Message: "payment link is invalid or has expired", Err: err}
}

func NewGatewayError(err error) error {
	return &AppError{Code: CodeGateway, Message: "payment gateway is unavailable, please retry", Err: err}
}

func NewInternalReconciliationError(invoiceID string, err error) error {
	return &AppError{
		Code:    CodeInternalReconciliation,
		Message: "payment recorded but invoice totals could not be settled; contact support",
		Err:     fmt.Errorf("invoice %s: %w", invoiceID, err),
	}
}

// HasCode reports whether err is an AppError of the given kind.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Package apperror provides structured errors shared by the domain and transport layers.
// Every failure a caller can act on is an AppError with a stable code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation        = "VALIDATION_ERROR"
	CodeDateRangeInvalid  = "DATE_RANGE_INVALID"
	CodeNoArticlesChosen  = "NO_ARTICLES_SELECTED"
	CodeInvalidAllocation = "INVALID_ALLOCATION_POLICY"

	// Order lifecycle violations
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeArticlesWouldBeDropped = "ORDERED_ARTICLES_WOULD_BE_DROPPED"
	CodeSettlement             = "SETTLEMENT_ERROR"
	CodeLedgerPostingFailed    = "LEDGER_POSTING_FAILED"
	CodeStockAdjustmentFailed  = "STOCK_ADJUSTMENT_FAILED"
	CodeProfitUnavailable      = "PROFIT_UNAVAILABLE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401)
	CodeUnauthorized = "UNAUTHORIZED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"

	// Throttling (429)
	CodeRateLimited = "RATE_LIMITED"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, offending ids)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, so sentinel-style checks work:
// errors.Is(err, &AppError{Code: CodeInvalidTransition}).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidTransition is returned when an order is asked to move to a state
// its current state does not lead to.
func NewInvalidTransition(orderID any, from, transition string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot %s an order in state %s", transition, from),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"order_id":   orderID,
			"state":      from,
			"transition": transition,
		},
	}
}

// NewDateRangeInvalid reports an order window whose end precedes its start.
func NewDateRangeInvalid(starts, ends any) *AppError {
	return &AppError{
		Code:       CodeDateRangeInvalid,
		Message:    "ends must not precede starts",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": "ends", "starts": starts, "ends": ends},
	}
}

// NewNoArticlesSelected reports an empty article selection.
func NewNoArticlesSelected() *AppError {
	return &AppError{
		Code:       CodeNoArticlesChosen,
		Message:    "at least one article must be selected",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": "article_ids"},
	}
}

// NewArticlesWouldBeDropped lists articles that still carry member requests
// but are no longer part of the selection.
func NewArticlesWouldBeDropped(articleIDs []string) *AppError {
	return &AppError{
		Code:       CodeArticlesWouldBeDropped,
		Message:    "ordered articles would be dropped from the order",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"field": "article_ids", "article_ids": articleIDs},
	}
}

// NewSettlement creates a settlement error (422)
func NewSettlement(message string) *AppError {
	return &AppError{
		Code:       CodeSettlement,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewLedgerPostingFailed wraps a failed account posting.
func NewLedgerPostingFailed(subgroupID any, err error) *AppError {
	return &AppError{
		Code:       CodeLedgerPostingFailed,
		Message:    "posting to subgroup account failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"subgroup_id": subgroupID},
		Err:        err,
	}
}

// NewStockAdjustmentFailed wraps a failed stock change.
func NewStockAdjustmentFailed(articleID any, err error) *AppError {
	return &AppError{
		Code:       CodeStockAdjustmentFailed,
		Message:    "stock adjustment failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"article_id": articleID},
		Err:        err,
	}
}

// NewProfitUnavailable is returned when profit is asked for an order without invoice.
func NewProfitUnavailable(orderID any) *AppError {
	return &AppError{
		Code:       CodeProfitUnavailable,
		Message:    "profit is unavailable until an invoice is attached",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"order_id": orderID},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyConflict creates error when a request with the same key is still running
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewRateLimited creates a throttling error (429)
func NewRateLimited() *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many requests",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsInvalidTransition checks if error is CodeInvalidTransition
func IsInvalidTransition(err error) bool {
	return HasCode(err, CodeInvalidTransition)
}

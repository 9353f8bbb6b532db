package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeStateConflict ErrorType = "STATE_CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal      ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidCoordinate    ErrorCode = "INVALID_COORDINATE"
	ErrCodeInvalidDistance      ErrorCode = "INVALID_DISTANCE"
	ErrCodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
	ErrCodeMissingAdminDistance ErrorCode = "MISSING_ADMIN_DISTANCE"
	ErrCodeMissingRate          ErrorCode = "MISSING_RATE"
	ErrCodeMissingJourney       ErrorCode = "MISSING_JOURNEY"
	ErrCodeMissingReason        ErrorCode = "MISSING_REASON"

	ErrCodeAlreadyProcessed       ErrorCode = "ALREADY_PROCESSED"
	ErrCodePeriodLocked           ErrorCode = "PERIOD_LOCKED"
	ErrCodeDuplicateActiveJourney ErrorCode = "DUPLICATE_ACTIVE_JOURNEY"
	ErrCodeJourneyNotActive       ErrorCode = "JOURNEY_NOT_ACTIVE"
	ErrCodeAdvanceNotPending      ErrorCode = "ADVANCE_NOT_PENDING"
	ErrCodeBalanceConflict        ErrorCode = "BALANCE_VERSION_CONFLICT"

	ErrCodeExpenseNotFound   ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeJourneyNotFound   ErrorCode = "JOURNEY_NOT_FOUND"
	ErrCodeAdvanceNotFound   ErrorCode = "ADVANCE_NOT_FOUND"
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeMonthLockNotFound ErrorCode = "MONTH_LOCK_NOT_FOUND"

	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewStateConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeStateConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrInvalidCoordinate    = NewValidationError("coordinates outside valid latitude/longitude range", ErrCodeInvalidCoordinate)
	ErrInvalidDistance      = NewValidationError("distances must be non-negative numbers", ErrCodeInvalidDistance)
	ErrMissingAdminDistance = NewValidationError("admin distance is required for approval option 3", ErrCodeMissingAdminDistance)
	ErrMissingRate          = NewValidationError("expense has no positive distance rate stored", ErrCodeMissingRate)
	ErrMissingReason        = NewValidationError("a reason is required", ErrCodeMissingReason)

	ErrAlreadyProcessed       = NewStateConflictError("expense has already been processed", ErrCodeAlreadyProcessed)
	ErrPeriodLocked           = NewStateConflictError("the accounting period for this date is locked", ErrCodePeriodLocked)
	ErrDuplicateActiveJourney = NewStateConflictError("an active journey already exists for this employee", ErrCodeDuplicateActiveJourney)
	ErrJourneyNotActive       = NewStateConflictError("journey is not active", ErrCodeJourneyNotActive)
	ErrAdvanceNotPending      = NewStateConflictError("advance is not in a pending state", ErrCodeAdvanceNotPending)
	ErrBalanceConflict        = NewStateConflictError("balance update lost the version race too many times", ErrCodeBalanceConflict)

	ErrExpenseNotFound   = NewNotFoundError("expense not found", ErrCodeExpenseNotFound)
	ErrJourneyNotFound   = NewNotFoundError("journey not found", ErrCodeJourneyNotFound)
	ErrAdvanceNotFound   = NewNotFoundError("advance not found", ErrCodeAdvanceNotFound)
	ErrUserNotFound      = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrMonthLockNotFound = NewNotFoundError("no lock recorded for this period", ErrCodeMonthLockNotFound)

	ErrInvalidToken       = NewUnauthorizedError("invalid or expired token", ErrCodeInvalidToken)
	ErrUserInactive       = NewForbiddenError("user account is inactive", ErrCodeUserInactive)
	ErrUnauthorizedAccess = NewForbiddenError("not allowed to access this resource", ErrCodeUnauthorizedAccess)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

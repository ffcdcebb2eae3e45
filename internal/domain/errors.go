package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*): malformed or out-of-range input,
	// always rejected before anything is persisted
	ErrorCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField    ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationKeyType         ErrorCode = "VALIDATION_KEY_TYPE"
	ErrorCodeValidationPercentageRange ErrorCode = "VALIDATION_PERCENTAGE_RANGE"
	ErrorCodeValidationFixedAmount     ErrorCode = "VALIDATION_FIXED_AMOUNT"
	ErrorCodeValidationBudgetExceeded  ErrorCode = "VALIDATION_BUDGET_EXCEEDED"
	ErrorCodeValidationAmountInvalid   ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Reference Errors (REFERENCE_*): dangling recipient references in rules
	ErrorCodeReferenceNotFound ErrorCode = "REFERENCE_RECIPIENT_NOT_FOUND"
	ErrorCodeReferenceInactive ErrorCode = "REFERENCE_RECIPIENT_INACTIVE"

	// Conflict Errors (CONFLICT_*): deletes blocked by referential use or
	// in-flight state, and status transitions out of terminal states
	ErrorCodeConflictRecipientInUse ErrorCode = "CONFLICT_RECIPIENT_IN_USE"
	ErrorCodeConflictRuleInFlight   ErrorCode = "CONFLICT_RULE_IN_FLIGHT"
	ErrorCodeConflictTerminalStatus ErrorCode = "CONFLICT_TERMINAL_STATUS"
	ErrorCodeConflictBadTransition  ErrorCode = "CONFLICT_BAD_TRANSITION"
	ErrorCodeConflictDuplicateSale  ErrorCode = "CONFLICT_DUPLICATE_SALE"

	// Not Found Errors (NOT_FOUND_*)
	ErrorCodeRecipientNotFound   ErrorCode = "NOT_FOUND_RECIPIENT"
	ErrorCodeRuleNotFound        ErrorCode = "NOT_FOUND_RULE"
	ErrorCodeTransactionNotFound ErrorCode = "NOT_FOUND_TRANSACTION"
	ErrorCodeAllocationNotFound  ErrorCode = "NOT_FOUND_ALLOCATION"

	// Publish Errors (PUBLISH_*): non-fatal, logged, recovered by the sweep
	ErrorCodePublishFailed  ErrorCode = "PUBLISH_FAILED"
	ErrorCodePublishTimeout ErrorCode = "PUBLISH_TIMEOUT"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error with an added detail field.
// Copying keeps the package-level sentinel instances immutable.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// WithMessage returns a copy of the error with a replaced message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
		Details: e.Details,
		Err:     e.Err,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeValidationFailed, ErrorCodeValidationMissingField,
		ErrorCodeValidationKeyType, ErrorCodeValidationPercentageRange,
		ErrorCodeValidationFixedAmount, ErrorCodeValidationBudgetExceeded,
		ErrorCodeValidationAmountInvalid:
		return true
	}
	return false
}

// IsReferenceError checks if an error is a dangling-recipient reference error
func IsReferenceError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeReferenceNotFound || code == ErrorCodeReferenceInactive
}

// IsConflictError checks if an error represents a blocked delete or transition
func IsConflictError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeConflictRecipientInUse, ErrorCodeConflictRuleInFlight,
		ErrorCodeConflictTerminalStatus, ErrorCodeConflictBadTransition,
		ErrorCodeConflictDuplicateSale:
		return true
	}
	return false
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeRecipientNotFound, ErrorCodeRuleNotFound,
		ErrorCodeTransactionNotFound, ErrorCodeAllocationNotFound:
		return true
	}
	return false
}

// IsPublishError checks if an error came from the settlement queue boundary
func IsPublishError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePublishFailed || code == ErrorCodePublishTimeout
}

// Structured error instances
var (
	ErrValidationFailed       = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrPercentageOutOfRange   = NewDomainError(ErrorCodeValidationPercentageRange, "percentage must be between 0 and 100")
	ErrFixedAmountInvalid     = NewDomainError(ErrorCodeValidationFixedAmount, "fixed amount must be greater than zero")
	ErrAmountInvalid          = NewDomainError(ErrorCodeValidationAmountInvalid, "total value must not be negative")

	ErrRecipientReferenceNotFound = NewDomainError(ErrorCodeReferenceNotFound, "allocation references an unknown recipient")
	ErrRecipientReferenceInactive = NewDomainError(ErrorCodeReferenceInactive, "allocation references an inactive recipient")

	ErrRecipientInUse    = NewDomainError(ErrorCodeConflictRecipientInUse, "recipient is referenced by a rule; deactivate instead of delete")
	ErrRuleInFlight      = NewDomainError(ErrorCodeConflictRuleInFlight, "rule has transactions with unsettled allocations")
	ErrStatusTerminal    = NewDomainError(ErrorCodeConflictTerminalStatus, "allocation already reached a terminal status")
	ErrInvalidTransition = NewDomainError(ErrorCodeConflictBadTransition, "invalid allocation status transition")
	ErrDuplicateSale     = NewDomainError(ErrorCodeConflictDuplicateSale, "a split transaction already exists for this sale")

	ErrRecipientNotFound   = NewDomainError(ErrorCodeRecipientNotFound, "recipient not found")
	ErrRuleNotFound        = NewDomainError(ErrorCodeRuleNotFound, "rule not found")
	ErrTransactionNotFound = NewDomainError(ErrorCodeTransactionNotFound, "split transaction not found")
	ErrAllocationNotFound  = NewDomainError(ErrorCodeAllocationNotFound, "allocation record not found")

	ErrPublishFailed  = NewDomainError(ErrorCodePublishFailed, "settlement queue publish failed")
	ErrPublishTimeout = NewDomainError(ErrorCodePublishTimeout, "settlement queue publish timed out")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)

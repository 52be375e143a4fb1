// Package errors provides standardized error handling for the ranking,
// automation and delivery engines.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSubmissionValidationFailed ErrorCode = "SUBMISSION_VALIDATION_FAILED"
	ErrCodeDuplicateApplication       ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeApplicationBlocked         ErrorCode = "APPLICATION_BLOCKED"

	ErrCodeStoreQueryFailed  ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeStoreInsertFailed ErrorCode = "STORE_INSERT_FAILED"
	ErrCodeStoreUpdateFailed ErrorCode = "STORE_UPDATE_FAILED"

	ErrCodeChannelConfigInvalid ErrorCode = "CHANNEL_CONFIG_INVALID"
	ErrCodeProviderRejected     ErrorCode = "PROVIDER_REJECTED"
	ErrCodeAuditEmitFailed      ErrorCode = "AUDIT_EMIT_FAILED"

	ErrCodeLedgerUnavailable ErrorCode = "LEDGER_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// HasCode reports whether err is a StandardError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code == code
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSubmissionValidationError creates a non-retryable payload validation error.
func NewSubmissionValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionValidationFailed,
		Message:   "Application payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateApplicationError signals an idempotent re-submission.
func NewDuplicateApplicationError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateApplication,
		Message:   "An application already exists for this applicant and job",
		Retryable: false,
		Metadata:  map[string]interface{}{"applicationId": applicationID},
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationBlockedError signals a hard rejection for abuse; no
// application record is created.
func NewApplicationBlockedError(riskScore int, flags []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationBlocked,
		Message:   "Submission blocked for abuse",
		Retryable: false,
		Metadata: map[string]interface{}{
			"riskScore": riskScore,
			"riskFlags": flags,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreQueryError wraps a read failure against the record store.
func NewStoreQueryError(entity string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreQueryFailed,
		Message:   fmt.Sprintf("Failed to query %s", entity),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreInsertError wraps a write failure against the record store.
func NewStoreInsertError(entity string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreInsertFailed,
		Message:   fmt.Sprintf("Failed to insert %s", entity),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUpdateError wraps a conditional update failure (not a mismatch;
// mismatches are silent no-ops by contract).
func NewStoreUpdateError(entity string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUpdateFailed,
		Message:   fmt.Sprintf("Failed to update %s", entity),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelConfigError marks malformed or missing provider configuration.
// It is surfaced to the caller as a configuration error, distinct from a
// delivery failure.
func NewChannelConfigError(channel, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelConfigInvalid,
		Message:   fmt.Sprintf("Channel %s is not configured correctly", channel),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderRejectedError records a non-fatal provider rejection.
func NewProviderRejectedError(provider, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRejected,
		Message:   fmt.Sprintf("Provider %s rejected the delivery", provider),
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditEmitError records a swallowed audit emission failure.
func NewAuditEmitError(eventType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditEmitFailed,
		Message:   fmt.Sprintf("Failed to emit audit event %s", eventType),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerUnavailableError wraps an abuse-ledger read/write failure.
func NewLedgerUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerUnavailable,
		Message:   "Abuse ledger unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

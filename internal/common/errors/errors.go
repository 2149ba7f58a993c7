// Package errors provides standardized error handling for BPMN workflow integration.
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
	ErrCodeDealNotFound          ErrorCode = "DEAL_NOT_FOUND"
	ErrCodeSnapshotFetchFailed   ErrorCode = "SNAPSHOT_FETCH_FAILED"
	ErrCodePopulationQueryFailed ErrorCode = "POPULATION_QUERY_FAILED"
	ErrCodeScorePersistFailed    ErrorCode = "SCORE_PERSIST_FAILED"
	ErrCodeIndexingFailed        ErrorCode = "INDEXING_FAILED"
	ErrCodeNotificationFailed    ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
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

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewDealNotFoundError creates a non-retryable lookup error.
func NewDealNotFoundError(dealID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDealNotFound,
		Message:   "Deal not found",
		Details:   fmt.Sprintf("dealId: %s", dealID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSnapshotFetchFailedError creates a retryable database error.
func NewSnapshotFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotFetchFailed,
		Message:   "Database error while assembling deal snapshot",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPopulationQueryFailedError creates a retryable database error.
func NewPopulationQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePopulationQueryFailed,
		Message:   "Database error while sampling comparison deal values",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScorePersistFailedError creates a retryable database error.
func NewScorePersistFailedError(dealID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScorePersistFailed,
		Message:   "Failed to persist health score",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"dealId": dealID},
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexingFailedError creates a retryable elasticsearch error.
func NewIndexingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexingFailed,
		Message:   "Failed to index health snapshot",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationFailedError creates a retryable notification error.
func NewNotificationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Failed to send at-risk notification",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ToBPMNError converts a StandardError into a BPMNError carrying retry budget.
func (e *StandardError) ToBPMNError(retries int) *BPMNError {
	if !e.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:           string(e.Code),
		Message:        e.Message,
		Details:        e.Details,
		Retryable:      e.Retryable,
		Retries:        retries,
		ErrorVariables: e.Metadata,
	}
}

package models

import (
	"errors"
	"fmt"
)

// ValidationError represents a lead write that breaks a data-model rule
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Detail)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, detail string) *ValidationError {
	return &ValidationError{
		Field:  field,
		Detail: detail,
	}
}

// SyncError represents a failed write to the lead persistence backend
type SyncError struct {
	StatusCode int
	Message    string
	Retriable  bool
	Err        error
}

func (e *SyncError) Error() string {
	retriableStr := "non-retriable"
	if e.Retriable {
		retriableStr = "retriable"
	}

	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("sync error (%s): HTTP %d - %s (caused by: %v)",
				retriableStr, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("sync error (%s): HTTP %d - %s",
			retriableStr, e.StatusCode, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("sync error (%s): %s (caused by: %v)",
			retriableStr, e.Message, e.Err)
	}
	return fmt.Sprintf("sync error (%s): %s", retriableStr, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsRetriable returns true if a manual retry could succeed
func (e *SyncError) IsRetriable() bool {
	return e.Retriable
}

// IsConflict returns true if the backend rejected a stale version
func (e *SyncError) IsConflict() bool {
	return e.StatusCode == 409
}

// NewSyncError creates a new SyncError
func NewSyncError(statusCode int, message string, retriable bool, err error) *SyncError {
	return &SyncError{
		StatusCode: statusCode,
		Message:    message,
		Retriable:  retriable,
		Err:        err,
	}
}

// LeadNotFoundError is returned when no lead exists with the given id
type LeadNotFoundError struct {
	ID string
}

func (e *LeadNotFoundError) Error() string {
	return fmt.Sprintf("lead not found: %s", e.ID)
}

// NewLeadNotFoundError creates a new LeadNotFoundError
func NewLeadNotFoundError(id string) *LeadNotFoundError {
	return &LeadNotFoundError{ID: id}
}

// IsNotFound reports whether err is or wraps a LeadNotFoundError
func IsNotFound(err error) bool {
	var nf *LeadNotFoundError
	return errors.As(err, &nf)
}

// VersionConflictError is returned when a write carries a stale version stamp
type VersionConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on lead %s: expected %d, current %d", e.ID, e.Expected, e.Actual)
}

// NewVersionConflictError creates a new VersionConflictError
func NewVersionConflictError(id string, expected, actual int64) *VersionConflictError {
	return &VersionConflictError{
		ID:       id,
		Expected: expected,
		Actual:   actual,
	}
}

// IsVersionConflict reports whether err is or wraps a VersionConflictError
func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

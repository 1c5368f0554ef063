package scheduler

import (
	"errors"
	"fmt"
)

// SessionError represents a failure to start a session.
type SessionError struct {
	// Code identifies the error category.
	Code SessionErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// SessionErrorCode categorizes session errors.
type SessionErrorCode string

const (
	// ErrCodeSessionActive indicates Start was called while a session runs.
	ErrCodeSessionActive SessionErrorCode = "SESSION_ACTIVE"

	// ErrCodeConnection indicates a bus or classifier call failed at start.
	ErrCodeConnection SessionErrorCode = "CONNECTION_FAILED"

	// ErrCodeLog indicates the session log could not be opened.
	ErrCodeLog SessionErrorCode = "LOG_FAILED"

	// ErrCodePolicy indicates the scheduler was built with an invalid policy.
	ErrCodePolicy SessionErrorCode = "INVALID_POLICY"
)

// ErrSessionActive is matched by errors.Is for every SESSION_ACTIVE error.
var ErrSessionActive = errors.New("session already active")

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsActiveError returns true if the error reports an already active session.
// Uses errors.As to handle wrapped errors.
func IsActiveError(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeSessionActive
	}
	return false
}

// IsConnectionError returns true if the error is a start-time connection failure.
func IsConnectionError(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeConnection
	}
	return false
}

// IsLogError returns true if the session log could not be opened.
func IsLogError(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeLog
	}
	return false
}

// IsPolicyError returns true if the scheduler's policy failed validation.
func IsPolicyError(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == ErrCodePolicy
	}
	return false
}

func newActiveError() *SessionError {
	return &SessionError{
		Code:    ErrCodeSessionActive,
		Message: "a session is already running",
		Err:     ErrSessionActive,
	}
}

func newConnectionError(what string, err error) *SessionError {
	return &SessionError{
		Code:    ErrCodeConnection,
		Message: what,
		Err:     err,
	}
}

func newLogError(path string, err error) *SessionError {
	return &SessionError{
		Code:    ErrCodeLog,
		Message: fmt.Sprintf("open session log %s", path),
		Err:     err,
	}
}

func newPolicyError(err error) *SessionError {
	return &SessionError{
		Code:    ErrCodePolicy,
		Message: "invalid policy",
		Err:     err,
	}
}

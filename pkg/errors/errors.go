package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Source / registry errors
	ErrSourceNotFound ErrorCode = "SOURCE_NOT_FOUND"
	ErrSourceInvalid  ErrorCode = "SOURCE_INVALID"
	ErrSourceExists   ErrorCode = "SOURCE_EXISTS"

	// Mapping errors
	ErrMappingScan ErrorCode = "MAPPING_SCAN"

	// Transfer errors
	ErrTransferCopy        ErrorCode = "TRANSFER_COPY"
	ErrTransferUnsupported ErrorCode = "TRANSFER_UNSUPPORTED"

	// State errors
	ErrStateLoad      ErrorCode = "STATE_LOAD"
	ErrStateWrite     ErrorCode = "STATE_WRITE"
	ErrStateLocked    ErrorCode = "STATE_LOCKED"
	ErrStateCorrupt   ErrorCode = "STATE_CORRUPT"
	ErrStateMigration ErrorCode = "STATE_MIGRATION"

	// Reconciliation errors
	ErrReconcileDelete  ErrorCode = "RECONCILE_DELETE"
	ErrReconcileOutside ErrorCode = "RECONCILE_OUTSIDE_ROOT"

	// Git errors
	ErrGitClone   ErrorCode = "GIT_CLONE"
	ErrGitPull    ErrorCode = "GIT_PULL"
	ErrGitTimeout ErrorCode = "GIT_TIMEOUT"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// CcmgrError represents a structured error with code and details
type CcmgrError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *CcmgrError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *CcmgrError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *CcmgrError) Is(target error) bool {
	var targetErr *CcmgrError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new CcmgrError with the given code and message
func New(code ErrorCode, message string) *CcmgrError {
	return &CcmgrError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new CcmgrError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *CcmgrError {
	return &CcmgrError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a CcmgrError
func Wrap(err error, code ErrorCode, message string) *CcmgrError {
	if err == nil {
		return nil
	}
	return &CcmgrError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *CcmgrError {
	if err == nil {
		return nil
	}
	return &CcmgrError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *CcmgrError) WithDetail(key string, value interface{}) *CcmgrError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var cErr *CcmgrError
	if errors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a CcmgrError
func GetErrorCode(err error) ErrorCode {
	var cErr *CcmgrError
	if errors.As(err, &cErr) {
		return cErr.Code
	}
	return ErrUnknown
}

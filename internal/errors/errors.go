// Package errors provides a lightweight structured error type (SiteError)
// for category-based classification of build and publish failures, and the
// CLI adapter that turns them into exit codes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a SiteError for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Local build errors
	CategoryContent    ErrorCategory = "content"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryRender     ErrorCategory = "render"

	// Remote store errors
	CategoryManifest ErrorCategory = "manifest"
	CategoryRemote   ErrorCategory = "remote"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ErrorCode pins an error to one entry of the publish error taxonomy.
type ErrorCode string

const (
	CodeContentConflict  ErrorCode = "content_conflict"
	CodeFileSystem       ErrorCode = "filesystem"
	CodeManifestNotFound ErrorCode = "manifest_not_found"
	CodeManifestFetch    ErrorCode = "manifest_fetch"
	CodeManifestDecode   ErrorCode = "manifest_decode"
	CodeRemoteDelete     ErrorCode = "remote_delete"
	CodeRemoteUpload     ErrorCode = "remote_upload"
	CodeConfig           ErrorCode = "config"
)

// SiteError is a structured error with category, code and context
type SiteError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Code     ErrorCode     `json:"code,omitempty"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for SiteError
type ContextFields map[string]any

// Error implements the error interface
func (e *SiteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SiteError) WithContext(key string, value any) *SiteError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithCode tags the error with a taxonomy code.
func (e *SiteError) WithCode(code ErrorCode) *SiteError {
	e.Code = code
	return e
}

// New creates a new SiteError
func New(category ErrorCategory, severity ErrorSeverity, message string) *SiteError {
	return &SiteError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new SiteError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *SiteError {
	return &SiteError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As returns the outermost SiteError in err's chain.
func As(err error) (*SiteError, bool) {
	var se *SiteError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if se, ok := As(err); ok {
		return se.Category == category
	}
	return false
}

// HasCode reports whether any SiteError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var se *SiteError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a SiteError
func GetCategory(err error) ErrorCategory {
	if se, ok := As(err); ok {
		return se.Category
	}
	return CategoryInternal
}

// IsFatal reports whether err should stop the run.
func IsFatal(err error) bool {
	if se, ok := As(err); ok {
		return se.Severity == SeverityFatal
	}
	return err != nil
}

// Package errors provides categorized, actionable error types for the
// transfer detection service. Every error carries a category, a stable code,
// an optional suggestion and a context map so the CLI can render helpful
// diagnostics and pick a meaningful exit code.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors.
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryDetection     ErrorCategory = "detection"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeInvalidPattern ErrorCode = "invalid_pattern"

	// Detection errors
	CodeDetectionFailed ErrorCode = "detection_failed"
	CodeUnknownRecord   ErrorCode = "unknown_record"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// DetectionError is the base error type for all application errors.
type DetectionError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *DetectionError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error.
func (e *DetectionError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryDetection, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *DetectionError) WithContext(key string, value interface{}) *DetectionError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *DetectionError) WithSuggestion(suggestion string) *DetectionError {
	e.Suggestion = suggestion
	return e
}

// stackTracer interface for extracting stack traces.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new DetectionError.
func New(category ErrorCategory, code ErrorCode, message string) *DetectionError {
	return &DetectionError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with DetectionError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *DetectionError {
	if err == nil {
		return nil
	}

	return &DetectionError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// Specific error constructors

// FileError creates a file-related error.
func FileError(code ErrorCode, path string, err error) *DetectionError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *DetectionError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a specific file location.
func ParseError(code ErrorCode, file string, line int, detail string, err error) *DetectionError {
	message := fmt.Sprintf("parse error in %s at line %d: %s", file, line, detail)

	var result *DetectionError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion("verify the input file follows the normalized record layout").
		WithContext("file", file).
		WithContext("line", line)
}

// ConfigError creates a configuration-related error.
func ConfigError(code ErrorCode, detail string, err error) *DetectionError {
	message := fmt.Sprintf("configuration error: %s", detail)

	var result *DetectionError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.WithSuggestion("review the configuration values and retry")
}

// PatternError creates an error for a malformed name-extraction pattern.
// Callers are expected to log it and continue; a bad pattern never aborts
// a detection run.
func PatternError(bank, template string, err error) *DetectionError {
	return Wrap(err, CategoryConfiguration, CodeInvalidPattern,
		fmt.Sprintf("invalid name pattern for bank %q: %q", bank, template)).
		WithSuggestion("fix the pattern template in the bank rules file").
		WithContext("bank", bank).
		WithContext("template", template)
}

// DetectionFailed creates an error for a failed detection run.
func DetectionFailed(detail string, err error) *DetectionError {
	message := fmt.Sprintf("transfer detection failed: %s", detail)

	if err != nil {
		return Wrap(err, CategoryDetection, CodeDetectionFailed, message)
	}
	return New(CategoryDetection, CodeDetectionFailed, message)
}

// IsCategory checks whether err is a DetectionError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Category == category
	}
	return false
}

// GetExitCode extracts an exit code from any error.
func GetExitCode(err error) int {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.GetExitCode()
	}
	return 1
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeEngine     ErrorType = "engine"
	ErrorTypeLayout     ErrorType = "layout"
)

// VersoError is a structured error type with context. It is used for the
// failures that sit around the render core: configuration, loading and
// output.
type VersoError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
}

// Error implements the error interface.
func (e *VersoError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *VersoError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *VersoError) Is(target error) bool {
	var t *VersoError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *VersoError) WithContext(key string, value interface{}) *VersoError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath adds file location information.
func (e *VersoError) WithPath(filePath string) *VersoError {
	e.FilePath = filePath

	return e
}

// WithCause sets the underlying error.
func (e *VersoError) WithCause(cause error) *VersoError {
	e.Cause = cause

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *VersoError {
	return &VersoError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *VersoError {
	return &VersoError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *VersoError {
	return &VersoError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var ve *VersoError
	if errors.As(err, &ve) {
		return ve.Type == ErrorTypeConfig
	}

	return false
}

// IsIOError checks if an error is I/O related.
func IsIOError(err error) bool {
	var ve *VersoError
	if errors.As(err, &ve) {
		return ve.Type == ErrorTypeIO
	}

	return false
}

// ErrorHandler provides centralized error reporting for the CLI.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error with fields matching its category.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ve *VersoError
	switch {
	case IsIOError(err):
		errors.As(err, &ve)
		h.logger.Error(ctx, err, "I/O error occurred",
			"type", ve.Type,
			"code", ve.Code,
			"path", ve.FilePath)
	case IsConfigError(err):
		errors.As(err, &ve)
		h.logger.Error(ctx, err, "Configuration error occurred",
			"type", ve.Type,
			"code", ve.Code,
			"context", ve.Context)
	case errors.As(err, &ve):
		if ve.Type == ErrorTypeValidation {
			h.logger.Warn(ctx, err, "Validation error occurred",
				"type", ve.Type,
				"code", ve.Code,
				"file", ve.FilePath)
			return
		}
		h.logger.Error(ctx, err, "Error occurred",
			"type", ve.Type,
			"code", ve.Code,
			"file", ve.FilePath)
	case IsLayoutError(err):
		h.logger.Error(ctx, err, "Layout error occurred", "type", ErrorTypeLayout)
	case IsEngineError(err):
		h.logger.Error(ctx, err, "Engine error occurred", "type", ErrorTypeEngine)
	default:
		h.logger.Error(ctx, err, "Unhandled error occurred")
	}
}

// Common error codes.
const (
	ErrCodeInvalidPath         = "ERR_INVALID_PATH"
	ErrCodeConfigInvalid       = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound        = "ERR_FILE_NOT_FOUND"
	ErrCodeFrontMatter         = "ERR_FRONT_MATTER"
	ErrCodeWriteFailed         = "ERR_WRITE_FAILED"
	ErrCodeUnknownStage        = "ERR_UNKNOWN_STAGE"
	ErrCodeInvalidEngine       = "ERR_INVALID_ENGINE"
	ErrCodeDuplicateCollection = "ERR_DUPLICATE_COLLECTION"
)

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *VersoError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrUnknownStage creates an error for a handler registered on an undeclared stage.
func ErrUnknownStage(stage string) *VersoError {
	return NewValidationError(ErrCodeUnknownStage, fmt.Sprintf("unknown handler stage %q", stage))
}

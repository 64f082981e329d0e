// Package errors provides the structured error taxonomy for windowed readers and caches.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for reader and cache operations.
type ErrorCode string

const (
	// Usage errors, raised synchronously by constructors
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrCodeInvalidConfig   ErrorCode = "INVALID_CONFIG"

	// I/O errors
	ErrCodeReaderClosed   ErrorCode = "READER_CLOSED"
	ErrCodeSourceRead     ErrorCode = "SOURCE_READ"
	ErrCodeSourceClose    ErrorCode = "SOURCE_CLOSE"
	ErrCodeRecoveryFailed ErrorCode = "RECOVERY_FAILED"
	ErrCodeStoreWrite     ErrorCode = "STORE_WRITE"
	ErrCodeStoreRead      ErrorCode = "STORE_READ"
	ErrCodeStoreClose     ErrorCode = "STORE_CLOSE"

	// Programming errors
	ErrCodeWindowMissing ErrorCode = "WINDOW_MISSING"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryUsage         ErrorCategory = "usage"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryIO            ErrorCategory = "io"
	CategoryProgramming   ErrorCategory = "programming"
	CategoryInternal      ErrorCategory = "internal"
)

// Sentinel values for errors.Is; matching is by code only.
var (
	ErrInvalidArgument = &WindowIOError{Code: ErrCodeInvalidArgument}
	ErrInvalidConfig   = &WindowIOError{Code: ErrCodeInvalidConfig}
	ErrReaderClosed    = &WindowIOError{Code: ErrCodeReaderClosed}
	ErrRecoveryFailed  = &WindowIOError{Code: ErrCodeRecoveryFailed}
	ErrWindowMissing   = &WindowIOError{Code: ErrCodeWindowMissing}
	ErrSourceRead      = &WindowIOError{Code: ErrCodeSourceRead}
	ErrStoreRead       = &WindowIOError{Code: ErrCodeStoreRead}
	ErrStoreWrite      = &WindowIOError{Code: ErrCodeStoreWrite}
)

// WindowIOError represents a structured error with context and metadata.
type WindowIOError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *WindowIOError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *WindowIOError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *WindowIOError) Is(target error) bool {
	if other, ok := target.(*WindowIOError); ok {
		return e.Code == other.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *WindowIOError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Context) > 0 {
		ctx, _ := json.Marshal(e.Context)
		parts = append(parts, fmt.Sprintf("Context=%s", ctx))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("WindowIOError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error with default values.
func NewError(code ErrorCode, message string) *WindowIOError {
	return &WindowIOError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
		Context:   make(map[string]string),
	}
}

// Newf creates a new error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *WindowIOError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidArgument:
		return CategoryUsage
	case ErrCodeInvalidConfig:
		return CategoryConfiguration
	case ErrCodeReaderClosed, ErrCodeSourceRead, ErrCodeSourceClose, ErrCodeRecoveryFailed,
		ErrCodeStoreWrite, ErrCodeStoreRead, ErrCodeStoreClose:
		return CategoryIO
	case ErrCodeWindowMissing:
		return CategoryProgramming
	default:
		return CategoryInternal
	}
}

// IsCategory reports whether err is a WindowIOError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var target *WindowIOError
	if !stderrors.As(err, &target) {
		return false
	}
	return target.Category == category
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *WindowIOError) WithContext(key, value string) *WindowIOError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *WindowIOError) WithDetail(key string, value interface{}) *WindowIOError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *WindowIOError) WithComponent(component string) *WindowIOError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *WindowIOError) WithOperation(operation string) *WindowIOError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *WindowIOError) WithCause(cause error) *WindowIOError {
	e.Cause = cause
	return e
}

// WithStack captures the current stack trace
func (e *WindowIOError) WithStack() *WindowIOError {
	e.Stack = CaptureStack(2)
	return e
}

// InvalidArgument is shorthand for a usage error raised by a constructor.
func InvalidArgument(component, format string, args ...interface{}) *WindowIOError {
	return Newf(ErrCodeInvalidArgument, format, args...).WithComponent(component)
}

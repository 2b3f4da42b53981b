// Package errors provides structured error handling for runvars.
//
// Every error carries an ErrorType. The variable engine reports its failures
// with the domain types (malformed variable, invalid sampling rate, missing
// duration, incompatible collections, sampling rate mismatch); the outer
// pipeline uses the ambient ones (config, file, connection).
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeMalformedVariable is returned when a variable definition is
	// missing required fields or is internally inconsistent.
	ErrorTypeMalformedVariable ErrorType = "malformed_variable"
	// ErrorTypeInvalidSamplingRate is returned for non-positive rates.
	ErrorTypeInvalidSamplingRate ErrorType = "invalid_sampling_rate"
	// ErrorTypeMissingDuration is returned when a sparse variable is
	// densified without a known run duration.
	ErrorTypeMissingDuration ErrorType = "missing_duration"
	// ErrorTypeIncompatibleCollections is returned when collections cannot
	// be merged because variables of the same name disagree in kind.
	ErrorTypeIncompatibleCollections ErrorType = "incompatible_collections"
	// ErrorTypeSamplingRateMismatch is returned when dense variables with
	// different sampling rates are merged.
	ErrorTypeSamplingRateMismatch ErrorType = "sampling_rate_mismatch"
)

// Sentinels for use with errors.Is. Any *Error of the same type matches.
var (
	ErrMalformedVariable       = &Error{Type: ErrorTypeMalformedVariable, Message: "malformed variable"}
	ErrInvalidSamplingRate     = &Error{Type: ErrorTypeInvalidSamplingRate, Message: "invalid sampling rate"}
	ErrMissingDuration         = &Error{Type: ErrorTypeMissingDuration, Message: "missing run duration"}
	ErrIncompatibleCollections = &Error{Type: ErrorTypeIncompatibleCollections, Message: "incompatible collections"}
	ErrSamplingRateMismatch    = &Error{Type: ErrorTypeSamplingRateMismatch, Message: "sampling rate mismatch"}
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// GetType returns the type of the outermost *Error in err's chain, or the
// empty type when there is none.
func GetType(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

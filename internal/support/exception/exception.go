// Package exception provides the custom error type and error handling
// utilities used across FormBench. Errors are categorized by Kind so the
// transport layer can map them to responses without inspecting messages.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind classifies an AppError for handling decisions.
type Kind int

const (
	// KindInternal is an unexpected failure inside the service.
	KindInternal Kind = iota
	// KindValidation is a rejected request input (e.g. unknown library name).
	KindValidation
	// KindNotFound is a missing entity reference.
	KindNotFound
	// KindConflict is an operation invalid for the entity's current state.
	KindConflict
	// KindUnprocessable is a structurally readable but semantically malformed payload.
	KindUnprocessable
	// KindAdapter is a failure inside an external layout/OCR adapter or storage backend.
	KindAdapter
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnprocessable:
		return "unprocessable"
	case KindAdapter:
		return "adapter"
	default:
		return "internal"
	}
}

// AppError is the error type produced by FormBench services. It holds the
// module where the error occurred, a message, the wrapped original error,
// its Kind, and a stack trace captured at construction time.
type AppError struct {
	// Module indicates the component where the error occurred (e.g. "runner", "verification").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// kind categorizes the error for transport mapping.
	kind Kind
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewAppError creates a new AppError instance.
func NewAppError(module, message string, originalErr error, kind Kind) *AppError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &AppError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		kind:        kind,
		StackTrace:  string(buf[:n]),
	}
}

// NewAppErrorf creates a new AppError using a format string. An optional
// trailing error argument is extracted and wrapped as the original error.
//
// Example:
//
//	NewAppErrorf("runner", KindAdapter, "ocr extraction failed for document %s", docID, err)
func NewAppErrorf(module string, kind Kind, format string, a ...interface{}) *AppError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return NewAppError(module, fmt.Sprintf(format, args...), originalErr, kind)
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.OriginalErr
}

// Kind returns the error's kind.
func (e *AppError) Kind() Kind {
	return e.kind
}

// KindOf extracts the Kind from an error chain. Non-AppError chains report
// KindInternal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return KindInternal
}

// IsAppError determines if the given error chain contains an AppError.
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// ErrStaleUpdate is a sentinel error indicating an optimistic locking
// failure: a conditional update matched no rows because another writer
// advanced the entity first.
var ErrStaleUpdate = errors.New("stale update: entity was modified concurrently")

// NewStaleUpdateError creates an AppError wrapping ErrStaleUpdate.
func NewStaleUpdateError(module, message string, originalErr error) *AppError {
	errToWrap := ErrStaleUpdate
	if originalErr != nil {
		errToWrap = errors.Join(ErrStaleUpdate, originalErr)
	}
	return NewAppError(module, message, errToWrap, KindConflict)
}

// IsStaleUpdate determines if an error indicates an optimistic locking failure.
func IsStaleUpdate(err error) bool {
	return errors.Is(err, ErrStaleUpdate)
}

// ExtractErrorMessage extracts the message string from an error.
// For AppError it returns the cleaner Message field; otherwise the
// standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// Package errs provides a structured error type (FossilError) for
// category-based classification and retry semantics across fossilgo's
// blob store, manifest parser, sync engine, and CLI.
package errs

import (
	"fmt"
)

// Category represents the class of a FossilError for dispatch and exit-code mapping.
type Category string

const (
	// CategoryUsage covers malformed CLI invocation or bad arguments.
	CategoryUsage Category = "usage"
	// CategoryBusy covers a transient "database is locked" style condition; retryable.
	CategoryBusy Category = "busy"
	// CategoryCorruptBlob covers a blob whose decompressed content fails to hash-verify.
	CategoryCorruptBlob Category = "corrupt-blob"
	// CategoryCorruptDelta covers a delta stream that fails to parse or whose
	// reconstruction does not match the recorded size/hash.
	CategoryCorruptDelta Category = "corrupt-delta"
	// CategoryManifestParse covers a structurally invalid manifest card stream.
	CategoryManifestParse Category = "manifest-parse"
	// CategoryPhantom covers an operation that required a blob's content but only
	// a phantom (size-only) record is present.
	CategoryPhantom Category = "phantom"
	// CategoryVerifyFailed covers the pre-commit verifier rejecting a pending change.
	CategoryVerifyFailed Category = "verify-failed"
	// CategoryAuth covers sync login/nonce authentication failures.
	CategoryAuth Category = "auth"
	// CategoryProtocol covers a sync session receiving a card out of its expected
	// state-machine order, or a malformed card.
	CategoryProtocol Category = "protocol"
	// CategoryPermission covers a capability check failure (e.g. moderation required).
	CategoryPermission Category = "permission"
	// CategoryNotFound covers a lookup (by rid, uuid, or path) that found nothing.
	CategoryNotFound Category = "not-found"
	// CategoryInternal covers assertion failures and other bugs.
	CategoryInternal Category = "internal"
)

// Fields carries structured context for a FossilError, rendered as log attributes.
type Fields map[string]any

// FossilError is a structured error with category, retry classification, and context.
type FossilError struct {
	Category  Category
	Message   string
	Cause     error
	Retryable bool
	Fields    Fields
}

// Error implements the error interface.
func (e *FossilError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *FossilError) Unwrap() error {
	return e.Cause
}

// WithField attaches a context field and returns the same error for chaining.
func (e *FossilError) WithField(key string, value any) *FossilError {
	if e.Fields == nil {
		e.Fields = make(Fields)
	}
	e.Fields[key] = value
	return e
}

// New creates a new, non-retryable FossilError.
func New(category Category, message string) *FossilError {
	return &FossilError{Category: category, Message: message}
}

// Newf creates a new FossilError with a formatted message.
func Newf(category Category, format string, args ...any) *FossilError {
	return &FossilError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a FossilError wrapping an existing cause.
func Wrap(err error, category Category, message string) *FossilError {
	return &FossilError{Category: category, Message: message, Cause: err}
}

// Retryable creates a new retryable FossilError (typically CategoryBusy).
func Retryable(category Category, message string) *FossilError {
	return &FossilError{Category: category, Message: message, Retryable: true}
}

// WrapRetryable wraps an existing cause into a retryable FossilError.
func WrapRetryable(err error, category Category, message string) *FossilError {
	return &FossilError{Category: category, Message: message, Cause: err, Retryable: true}
}

// IsCategory reports whether err is a FossilError of the given category.
func IsCategory(err error, category Category) bool {
	if fe, ok := err.(*FossilError); ok {
		return fe.Category == category
	}
	return false
}

// IsRetryable reports whether err is a FossilError marked retryable.
func IsRetryable(err error) bool {
	if fe, ok := err.(*FossilError); ok {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the category from err, or CategoryInternal if err is
// not a FossilError.
func GetCategory(err error) Category {
	if fe, ok := err.(*FossilError); ok {
		return fe.Category
	}
	return CategoryInternal
}

// Busy creates a CategoryBusy retryable error for a locked repository database.
func Busy(message string) *FossilError {
	return Retryable(CategoryBusy, message)
}

// NotFound creates a CategoryNotFound error.
func NotFound(message string) *FossilError {
	return New(CategoryNotFound, message)
}

// assertf panics with a formatted message (nothing is logged); used only for internal invariant violations
// that must never occur in a correctly-operating repository.
func assertf(format string, args ...any) {
	panic(fmt.Sprintf("fossilgo: assertion failed: "+format, args...))
}

// Assert panics with a formatted message if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		assertf(format, args...)
	}
}

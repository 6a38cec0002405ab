package errors

import (
	stderrors "errors"
	"fmt"
)

// FusionError is the structured error type for rrfusion.
// It carries the taxonomy kind, a stable adapter code, and optional context.
type FusionError struct {
	// Kind is the error taxonomy bucket.
	Kind Kind

	// Code is the stable machine-readable code (e.g. "backend_503").
	Code string

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried by the caller.
	Retryable bool
}

// Error implements the error interface.
func (e *FusionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FusionError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel FusionErrors.
func (e *FusionError) Is(target error) bool {
	if t, ok := target.(*FusionError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FusionError) WithDetail(key, value string) *FusionError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a FusionError with an explicit kind and code.
func New(kind Kind, code, message string, cause error) *FusionError {
	return &FusionError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableKind(kind),
	}
}

// Validation creates a validation error, rejected before any I/O.
func Validation(message string) *FusionError {
	return New(KindValidation, CodeValidation, message, nil)
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *FusionError {
	return Validation(fmt.Sprintf(format, args...))
}

// NotFound creates a not-found error for a missing or expired run.
func NotFound(message string) *FusionError {
	return New(KindNotFound, CodeNotFound, message, nil)
}

// Precondition creates a precondition error for operations invalid in the
// current state (mutate on a lane run, re-registering representatives).
func Precondition(message string) *FusionError {
	return New(KindPrecondition, CodePrecondition, message, nil)
}

// BackendHTTP creates a backend error from an upstream HTTP status.
// The code is "backend_{status}". The body should already be truncated.
func BackendHTTP(status int, body string, cause error) *FusionError {
	e := New(KindBackendHTTP, fmt.Sprintf("backend_%d", status),
		fmt.Sprintf("upstream returned %d", status), cause)
	if body != "" {
		e.WithDetail("body", body)
	}
	e.WithDetail("status", fmt.Sprintf("%d", status))
	return e
}

// Transport creates a backend transport error (timeout, DNS, TLS).
func Transport(code, message string, cause error) *FusionError {
	return New(KindBackendTransport, code, message, cause)
}

// Integrity creates an integrity error, e.g. an identifier that cannot be
// resolved during publication lookup.
func Integrity(message string) *FusionError {
	return New(KindIntegrity, CodeIntegrity, message, nil)
}

// Internal creates an internal error for unexpected state.
func Internal(message string, cause error) *FusionError {
	return New(KindInternal, CodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var fe *FusionError
	if stderrors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCode extracts the stable code from an error chain.
// Returns "internal" for non-FusionError values.
func GetCode(err error) string {
	var fe *FusionError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// GetKind extracts the kind from an error chain.
// Returns KindInternal for non-FusionError values.
func GetKind(err error) Kind {
	var fe *FusionError
	if stderrors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Package errors provides structured error handling for rrfusion.
//
// Every failure surfaced by the engine carries a Kind (the taxonomy bucket)
// and a stable Code string that the tool adapter reports unchanged:
//
//   - validation        -> "validation_error"
//   - not_found         -> "not_found"
//   - precondition      -> "precondition"
//   - backend_http      -> "backend_404", "backend_500", ...
//   - backend_transport -> "timeout", "dns_error", "tls_error", "transport_error"
//   - integrity         -> "integrity"
//   - internal          -> "internal"
package errors

// Kind classifies an error into the engine taxonomy.
type Kind string

const (
	// KindValidation indicates malformed arguments, rejected before any I/O.
	KindValidation Kind = "VALIDATION"
	// KindNotFound indicates a run id missing or expired from the store.
	KindNotFound Kind = "NOT_FOUND"
	// KindPrecondition indicates an operation invalid in the current state.
	KindPrecondition Kind = "PRECONDITION"
	// KindBackendHTTP indicates a non-2xx response from an upstream backend.
	KindBackendHTTP Kind = "BACKEND_HTTP"
	// KindBackendTransport indicates timeout, DNS, or TLS failure reaching a backend.
	KindBackendTransport Kind = "BACKEND_TRANSPORT"
	// KindIntegrity indicates an unresolvable identifier or inconsistent input.
	KindIntegrity Kind = "INTEGRITY"
	// KindInternal indicates unexpected state, treated as 500-class.
	KindInternal Kind = "INTERNAL"
)

// Stable adapter codes.
const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodePrecondition = "precondition"
	CodeIntegrity    = "integrity"
	CodeInternal     = "internal"
	CodeTimeout      = "timeout"
	CodeDNS          = "dns_error"
	CodeTLS          = "tls_error"
	CodeTransport    = "transport_error"
)

// isRetryableKind reports whether errors of the kind are worth retrying by a
// caller. The engine itself never retries.
func isRetryableKind(kind Kind) bool {
	return kind == KindBackendTransport
}

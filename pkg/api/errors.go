package api

import "fmt"

// ErrorKind categorizes a failure for the orchestrator's retry decision
// and for the caller-facing error record.
type ErrorKind string

const (
	// Session-level kinds. Fatal: session initialization aborts entirely.
	ErrorKindSemanticLayerLoad ErrorKind = "semantic_layer_load"
	ErrorKindDatasetLoad       ErrorKind = "dataset_load"

	// Request-level kinds.
	ErrorKindNameMismatch ErrorKind = "name_mismatch" // recoverable
	ErrorKindTypeMismatch ErrorKind = "type_mismatch" // recoverable
	ErrorKindRuntimeFault ErrorKind = "runtime_fault" // recoverable once
	ErrorKindTimeout      ErrorKind = "timeout"       // fatal, never retried with the same code
	ErrorKindGeneration   ErrorKind = "generation_error"

	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindServer         ErrorKind = "server_error"
)

// Error is the structured error record surfaced to callers. For
// execution failures Fragment carries the offending code so the caller
// can inspect what went wrong without re-deriving it.
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Fragment string    `json:"fragment,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Recoverable reports whether the orchestrator may request regenerated
// code for this error. Timeout is excluded: the same code is never
// retried after exceeding the execution budget.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case ErrorKindNameMismatch, ErrorKindTypeMismatch, ErrorKindRuntimeFault:
		return true
	}
	return false
}

// NewSemanticLayerLoadError creates a fatal session-level error for a
// semantic layer artifact that failed to load or validate.
func NewSemanticLayerLoadError(format string, args ...any) *Error {
	return &Error{Kind: ErrorKindSemanticLayerLoad, Message: fmt.Sprintf(format, args...)}
}

// NewDatasetLoadError creates a fatal session-level error for a dataset
// that failed to load or is inconsistent with the semantic layer.
func NewDatasetLoadError(format string, args ...any) *Error {
	return &Error{Kind: ErrorKindDatasetLoad, Message: fmt.Sprintf(format, args...)}
}

// NewNameMismatchError creates a recoverable error for code referencing
// a column or identifier absent from the working dataset.
func NewNameMismatchError(message, fragment string) *Error {
	return &Error{Kind: ErrorKindNameMismatch, Message: message, Fragment: fragment}
}

// NewTypeMismatchError creates a recoverable error for an operation that
// required numeric input but received non-numeric data.
func NewTypeMismatchError(message, fragment string) *Error {
	return &Error{Kind: ErrorKindTypeMismatch, Message: message, Fragment: fragment}
}

// NewTimeoutError creates a fatal error for an execution that exceeded
// its wall-clock budget.
func NewTimeoutError(message, fragment string) *Error {
	return &Error{Kind: ErrorKindTimeout, Message: message, Fragment: fragment}
}

// NewRuntimeFaultError creates an error for any other exception raised
// during execution. Recoverable once, fatal on repeat.
func NewRuntimeFaultError(message, fragment string) *Error {
	return &Error{Kind: ErrorKindRuntimeFault, Message: message, Fragment: fragment}
}

// NewGenerationError creates an error for a failed call to the external
// code-generation collaborator.
func NewGenerationError(message string) *Error {
	return &Error{Kind: ErrorKindGeneration, Message: message}
}

// NewInvalidRequestError creates an error for a malformed caller request.
func NewInvalidRequestError(message string) *Error {
	return &Error{Kind: ErrorKindInvalidRequest, Message: message}
}

// NewServerError creates an error for internal failures.
func NewServerError(message string) *Error {
	return &Error{Kind: ErrorKindServer, Message: message}
}

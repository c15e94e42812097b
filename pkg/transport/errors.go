package transport

import (
	"encoding/json"
	"net/http"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// HTTPStatusFromError maps an error kind to the corresponding HTTP
// status code. Execution failures (name mismatch, timeout, ...) never
// reach this mapping: they are reported inside a failed QueryResponse,
// not as transport errors.
func HTTPStatusFromError(err *api.Error) int {
	switch err.Kind {
	case api.ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorKindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the
// ErrorResponse wrapper format from pkg/api. It sets the Content-Type
// header and writes the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.Error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an error response, deriving the HTTP status code
// from the error kind.
func WriteAPIError(w http.ResponseWriter, apiErr *api.Error) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

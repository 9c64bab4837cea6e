package response

import (
	"net/http"

	"github.com/wolflogic/wolfmem/pkg/memstore"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information. Kind is the domain error
// kind, not an HTTP-specific code.
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFromKind maps a domain error kind to an HTTP status code.
func StatusFromKind(kind memstore.Kind) int {
	switch kind {
	case memstore.KindBadInput:
		return http.StatusBadRequest
	case memstore.KindNotFound:
		return http.StatusNotFound
	case memstore.KindConflict:
		return http.StatusConflict
	case memstore.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError classifies err and writes the typed error body. Server-side
// failures (5xx) get a generic message so internals never leak to clients.
func HandleError(w http.ResponseWriter, err error, requestID string) {
	kind := memstore.KindOf(err)
	status := StatusFromKind(kind)
	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "service temporarily unavailable"
	case http.StatusInternalServerError:
		message = "internal server error"
	}
	Error(w, status, string(kind), message, requestID)
}

// BadRequest writes a bad_input error for request validation failures.
func BadRequest(w http.ResponseWriter, message, requestID string) {
	Error(w, http.StatusBadRequest, string(memstore.KindBadInput), message, requestID)
}

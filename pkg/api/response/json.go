// Package response provides HTTP response utilities.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, we can't do much since headers are already sent
			http.Error(w, `{"error":{"kind":"permanent","message":"failed to encode response"}}`, http.StatusInternalServerError)
		}
	}
}

// Error writes a typed error response with the given status code, kind,
// and message.
func Error(w http.ResponseWriter, statusCode int, kind, message, requestID string) {
	errResp := ErrorResponse{
		Error: ErrorDetail{
			Kind:      kind,
			Message:   message,
			RequestID: requestID,
		},
	}
	JSON(w, statusCode, errResp)
}

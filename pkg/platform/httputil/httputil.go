// Package httputil centralizes JSON response writing so every handler emits
// the same envelope.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "bvcregistry/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors omit the description so collaborator details never leak to
// clients; 4xx errors carry it so callers can see what to fix.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if status := toHTTPStatus(code); status < http.StatusInternalServerError {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
		WriteJSON(w, status, body)
		return
	}
	WriteJSON(w, toHTTPStatus(code), body)
}

func toHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

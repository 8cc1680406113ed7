package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"llmhost/internal/deploy"
	"llmhost/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case deploy.IsCallerError(err):
		return http.StatusBadRequest
	case deploy.IsNotFound(err):
		return http.StatusNotFound
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// conflictError reports an operation that does not fit the endpoint's state.
type conflictError struct{ msg string }

func (e conflictError) Error() string   { return e.msg }
func (e conflictError) StatusCode() int { return http.StatusConflict }

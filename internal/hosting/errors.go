package hosting

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failure reported by the control plane. It is returned as-is
// so callers can inspect the status and code.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%d %s)", e.Op, msg, e.Status, e.Code)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, msg, e.Status)
}

// StatusCode lets the HTTP layer map control-plane failures to a response code.
func (e *APIError) StatusCode() int {
	switch {
	case e.Status == http.StatusNotFound, e.Status == http.StatusTooManyRequests:
		return e.Status
	case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
		return http.StatusBadGateway
	case e.Status >= 400 && e.Status < 500:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// IsNotFound reports whether the control plane answered 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// endpointFailedError means the endpoint reached the Failed state.
type endpointFailedError struct {
	name   string
	reason string
}

func (e endpointFailedError) Error() string {
	return "endpoint " + e.name + " failed: " + e.reason
}

func (e endpointFailedError) StatusCode() int { return http.StatusBadGateway }

// IsEndpointFailed reports whether provisioning ended in the Failed state.
func IsEndpointFailed(err error) bool {
	var e endpointFailedError
	return errors.As(err, &e)
}

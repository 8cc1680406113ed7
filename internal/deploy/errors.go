package deploy

import (
	"errors"
	"net/http"

	"llmhost/internal/hosting"
	"llmhost/internal/registry"
	"llmhost/internal/serving"
)

// endpointNotFoundError is returned for endpoints this Deployer does not track.
type endpointNotFoundError struct{ name string }

func (e endpointNotFoundError) Error() string { return "endpoint not found: " + e.name }

// ErrEndpointNotFound returns an error for an unknown endpoint name.
func ErrEndpointNotFound(name string) error { return endpointNotFoundError{name: name} }

// IsNotFound reports whether err means an unknown endpoint or artifact, either
// locally or at the control plane.
func IsNotFound(err error) bool {
	var e endpointNotFoundError
	return errors.As(err, &e) || registry.IsArtifactNotFound(err) || hosting.IsNotFound(err)
}

// IsCallerError reports whether err can only be fixed by changing the request:
// invalid serving parameters or a configuration the artifact was not compiled for.
func IsCallerError(err error) bool {
	return serving.IsInvalidConfiguration(err) || registry.IsIncompatibleArtifact(err) || errors.Is(err, errBadRequest)
}

var errBadRequest = errors.New("bad request")

// tooBusyError means the endpoint already has its fill of generation
// requests in flight and queued.
type tooBusyError struct{ endpoint string }

func (e tooBusyError) Error() string { return "too busy: " + e.endpoint }

func (e tooBusyError) StatusCode() int { return http.StatusTooManyRequests }

// IsTooBusy reports whether err is admission backpressure.
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

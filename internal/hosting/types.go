package hosting

import (
	"context"
	"time"

	"llmhost/internal/serving"
)

// Endpoint statuses reported by the control plane.
const (
	StatusCreating  = "Creating"
	StatusInService = "InService"
	StatusUpdating  = "Updating"
	StatusDeleting  = "Deleting"
	StatusFailed    = "Failed"
)

// ProvisionRequest is everything the control plane needs to stand up an endpoint.
type ProvisionRequest struct {
	Name          string
	Image         string
	ArtifactURI   string
	Env           map[string]string
	InstanceType  string
	InstanceCount int
	// HealthCheckTimeout bounds the wait for the endpoint to reach InService.
	HealthCheckTimeout time.Duration
	// Serving is carried for bookkeeping only; Env is what is sent.
	Serving serving.Config
}

// Endpoint is a handle to a provisioned endpoint and the objects behind it.
type Endpoint struct {
	Name          string
	ModelName     string
	ConfigName    string
	Status        string
	FailureReason string
	Image         string
	InstanceType  string
	Serving       serving.Config
	CreatedAt     time.Time
}

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	Inputs     string
	Parameters Parameters
}

// Parameters are forwarded verbatim to the hosted text-generation server.
type Parameters struct {
	MaxNewTokens      int      `json:"max_new_tokens,omitempty"`
	DoSample          bool     `json:"do_sample,omitempty"`
	Temperature       float64  `json:"temperature,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	TopP              float64  `json:"top_p,omitempty"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	ReturnFullText    bool     `json:"return_full_text,omitempty"`
}

// GenerateResponse is the server's answer.
type GenerateResponse struct {
	GeneratedText string
}

// ImageResolver maps a backend name and version to a container image reference.
type ImageResolver interface {
	Resolve(ctx context.Context, backend, version, region string) (string, error)
}

// Provisioner creates an endpoint and blocks until it is in service, fails,
// or HealthCheckTimeout elapses. On failure the returned Endpoint names any
// objects that were already created so the caller can tear them down.
type Provisioner interface {
	Provision(ctx context.Context, req ProvisionRequest) (Endpoint, error)
}

// Predictor sends a generation request to a live endpoint.
type Predictor interface {
	Predict(ctx context.Context, ep Endpoint, req GenerateRequest) (GenerateResponse, error)
}

// Teardowner deletes an endpoint together with its configuration and model.
type Teardowner interface {
	Teardown(ctx context.Context, ep Endpoint) error
}

// Describer reports the current state of an endpoint.
type Describer interface {
	Describe(ctx context.Context, name string) (Endpoint, error)
}

package hosting

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/hosting/hostingtest"
)

func newTestClient(t *testing.T, srv *hostingtest.Server, token string) *Client {
	t.Helper()
	return NewClient(config.Session{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Token:          token,
		Role:           "deployer",
		RequestTimeout: 5 * time.Second,
		PollInterval:   5 * time.Millisecond,
	}, zerolog.Nop())
}

func provisionRequest(t *testing.T, name string) ProvisionRequest {
	t.Helper()
	cfg := sampleConfig(t)
	env, err := EnvFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	return ProvisionRequest{
		Name:               name,
		Image:              "example.test/tgi:1",
		ArtifactURI:        "s3://bucket/zephyr",
		Env:                env,
		InstanceType:       "ml.inf2.xlarge",
		InstanceCount:      1,
		HealthCheckTimeout: 2 * time.Second,
		Serving:            cfg,
	}
}

func TestClient_ProvisionPredictTeardown(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	srv.Token = "secret"
	srv.DescribesUntilReady = 2
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	ep, err := c.Provision(ctx, provisionRequest(t, "zephyr-abc123"))
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if ep.Status != StatusInService || ep.ModelName != "zephyr-abc123-model" || ep.ConfigName != "zephyr-abc123-config" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	m, ok := srv.Model("zephyr-abc123-model")
	if !ok {
		t.Fatalf("model not created")
	}
	if m.Env["MAX_BATCH_TOTAL_TOKENS"] != "8192" || m.Env["HF_MODEL_ID"] != "aws-neuron/zephyr-7b" || m.ExecutionRole != "deployer" {
		t.Fatalf("unexpected model: %+v", m)
	}
	ec, _ := srv.Config("zephyr-abc123-config")
	if ec.HealthCheckTimeoutSeconds != 2 || ec.InstanceType != "ml.inf2.xlarge" {
		t.Fatalf("unexpected config: %+v", ec)
	}

	d, err := c.Describe(ctx, "zephyr-abc123")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.Serving != ep.Serving || d.Image != "example.test/tgi:1" {
		t.Fatalf("describe mismatch: %+v", d)
	}

	res, err := c.Predict(ctx, ep, GenerateRequest{Inputs: "What is deep learning?", Parameters: Parameters{MaxNewTokens: 32, DoSample: true}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.GeneratedText != "generated: What is deep learning?" {
		t.Fatalf("text=%q", res.GeneratedText)
	}
	inv := srv.Invocations()
	if len(inv) != 1 || inv[0].Parameters["max_new_tokens"] != float64(32) {
		t.Fatalf("unexpected invocations: %+v", inv)
	}

	if err := c.Teardown(ctx, ep); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if models, configs, endpoints := srv.Live(); models+configs+endpoints != 0 {
		t.Fatalf("objects left behind: %d %d %d", models, configs, endpoints)
	}
	want := []string{"endpoint/zephyr-abc123", "endpoint-config/zephyr-abc123-config", "model/zephyr-abc123-model"}
	if got := srv.Deleted(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("deleted=%v", got)
	}
}

func TestClient_ProvisionFailedEndpoint(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	srv.FailWith = "health check failed"
	c := newTestClient(t, srv, "")
	ep, err := c.Provision(context.Background(), provisionRequest(t, "broken"))
	if !IsEndpointFailed(err) {
		t.Fatalf("expected endpoint failed error, got %v", err)
	}
	if ep.Name != "broken" || ep.ModelName == "" || ep.ConfigName == "" || ep.FailureReason != "health check failed" {
		t.Fatalf("partial endpoint should name created objects: %+v", ep)
	}
	if err := c.Teardown(context.Background(), ep); err != nil {
		t.Fatalf("teardown: %v", err)
	}
}

func TestClient_ProvisionTimeout(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	srv.DescribesUntilReady = 1 << 30
	c := newTestClient(t, srv, "")
	req := provisionRequest(t, "slow")
	req.HealthCheckTimeout = 30 * time.Millisecond
	ep, err := c.Provision(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "not in service") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if ep.Status != StatusCreating {
		t.Fatalf("status=%q", ep.Status)
	}
}

func TestClient_APIErrorsSurfaceUnmodified(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	srv.FailCreateModel = http.StatusTooManyRequests
	c := newTestClient(t, srv, "")
	ep, err := c.Provision(context.Background(), provisionRequest(t, "quota"))
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if ae.Status != http.StatusTooManyRequests || ae.Code != "ResourceLimitExceeded" || ae.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("unexpected api error: %+v", ae)
	}
	if ep.Name != "" || ep.ModelName != "" || ep.ConfigName != "" {
		t.Fatalf("no objects should be recorded: %+v", ep)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	srv.Token = "secret"
	c := newTestClient(t, srv, "wrong")
	_, err := c.Describe(context.Background(), "x")
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized || ae.StatusCode() != http.StatusBadGateway {
		t.Fatalf("expected 401 api error, got %v", err)
	}
}

func TestClient_NotFound(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv, "")
	_, err := c.Describe(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	err = c.Teardown(context.Background(), Endpoint{Name: "missing", ConfigName: "missing-config", ModelName: "missing-model"})
	if !IsNotFound(err) {
		t.Fatalf("expected joined not found errors, got %v", err)
	}
	if strings.Count(err.Error(), "not found") != 3 {
		t.Fatalf("every teardown step should be attempted: %v", err)
	}
}

func TestClient_ProvisionValidation(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv, "")
	if _, err := c.Provision(context.Background(), provisionRequest(t, "Bad_Name")); err == nil {
		t.Fatalf("expected invalid name error")
	}
	req := provisionRequest(t, "noimage")
	req.Image = ""
	if _, err := c.Provision(context.Background(), req); err == nil {
		t.Fatalf("expected missing image error")
	}
	if _, err := c.Predict(context.Background(), Endpoint{Name: "x"}, GenerateRequest{}); err == nil {
		t.Fatalf("expected empty inputs error")
	}
}

func TestAPIError_Message(t *testing.T) {
	e := &APIError{Op: "create model", Status: 400, Code: "ValidationException", Message: "bad"}
	if e.Error() != "create model: bad (400 ValidationException)" {
		t.Fatalf("got %q", e.Error())
	}
	e = &APIError{Op: "delete model", Status: 500}
	if e.Error() != "delete model: Internal Server Error (500)" || e.StatusCode() != http.StatusBadGateway {
		t.Fatalf("got %q", e.Error())
	}
}

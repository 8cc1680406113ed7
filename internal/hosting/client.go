package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/wait"

	"llmhost/internal/config"
)

const defaultPollInterval = 15 * time.Second

// Client talks to the hosting control plane's REST API. Every call carries
// the session's credentials; there is no ambient session.
type Client struct {
	baseURL      string
	session      config.Session
	pollInterval time.Duration
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewClient constructs a control-plane client for session.
func NewClient(session config.Session, log zerolog.Logger) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	poll := session.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	// Timeout=0: every request gets its deadline from the context.
	return &Client{
		baseURL:      strings.TrimRight(session.Endpoint, "/"),
		session:      session,
		pollInterval: poll,
		httpClient:   &http.Client{Transport: tr, Timeout: 0},
		log:          log.With().Str("component", "hosting").Logger(),
	}
}

type createModelRequest struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	ArtifactURI   string            `json:"artifact_uri,omitempty"`
	Env           map[string]string `json:"env"`
	ExecutionRole string            `json:"execution_role,omitempty"`
}

type createEndpointConfigRequest struct {
	Name                      string `json:"name"`
	ModelName                 string `json:"model_name"`
	InstanceType              string `json:"instance_type"`
	InstanceCount             int    `json:"instance_count"`
	HealthCheckTimeoutSeconds int    `json:"health_check_timeout_seconds"`
}

type createEndpointRequest struct {
	Name       string `json:"name"`
	ConfigName string `json:"config_name"`
}

type endpointDescription struct {
	Name          string            `json:"name"`
	ConfigName    string            `json:"config_name"`
	ModelName     string            `json:"model_name"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason"`
	Image         string            `json:"image"`
	InstanceType  string            `json:"instance_type"`
	Env           map[string]string `json:"env"`
	CreatedUnix   int64             `json:"created_unix"`
}

type invocationRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters Parameters `json:"parameters"`
}

type invocationOutput struct {
	GeneratedText string `json:"generated_text"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Provision implements Provisioner: it creates the model, the endpoint
// configuration and the endpoint, then polls until the endpoint is InService.
func (c *Client) Provision(ctx context.Context, req ProvisionRequest) (Endpoint, error) {
	if err := ValidateName(req.Name); err != nil {
		return Endpoint{}, err
	}
	if req.Image == "" {
		return Endpoint{}, fmt.Errorf("provision %s: image is required", req.Name)
	}
	if req.InstanceCount <= 0 {
		req.InstanceCount = 1
	}
	// Name stays empty until the control plane has accepted the endpoint.
	ep := Endpoint{
		Image:        req.Image,
		InstanceType: req.InstanceType,
		Serving:      req.Serving,
		Status:       StatusCreating,
	}
	log := c.log.With().Str("endpoint", req.Name).Logger()

	modelName := ModelName(req.Name)
	if err := c.do(ctx, "create model", http.MethodPost, "/v1/models", createModelRequest{
		Name:          modelName,
		Image:         req.Image,
		ArtifactURI:   req.ArtifactURI,
		Env:           req.Env,
		ExecutionRole: c.session.Role,
	}, nil); err != nil {
		return ep, err
	}
	ep.ModelName = modelName
	log.Debug().Str("model", modelName).Msg("model created")

	configName := ConfigName(req.Name)
	if err := c.do(ctx, "create endpoint config", http.MethodPost, "/v1/endpoint-configs", createEndpointConfigRequest{
		Name:                      configName,
		ModelName:                 modelName,
		InstanceType:              req.InstanceType,
		InstanceCount:             req.InstanceCount,
		HealthCheckTimeoutSeconds: int(req.HealthCheckTimeout / time.Second),
	}, nil); err != nil {
		return ep, err
	}
	ep.ConfigName = configName

	if err := c.do(ctx, "create endpoint", http.MethodPost, "/v1/endpoints", createEndpointRequest{
		Name:       req.Name,
		ConfigName: configName,
	}, nil); err != nil {
		return ep, err
	}
	ep.Name = req.Name
	ep.CreatedAt = time.Now()
	log.Info().Str("instance_type", req.InstanceType).Dur("timeout", req.HealthCheckTimeout).Msg("endpoint creating")

	timeout := req.HealthCheckTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	err := wait.PollUntilContextTimeout(ctx, c.pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		d, err := c.Describe(ctx, req.Name)
		if err != nil {
			return false, err
		}
		ep.Status = d.Status
		switch d.Status {
		case StatusInService:
			return true, nil
		case StatusFailed:
			ep.FailureReason = d.FailureReason
			return false, endpointFailedError{name: req.Name, reason: d.FailureReason}
		}
		log.Debug().Str("status", d.Status).Msg("waiting for endpoint")
		return false, nil
	})
	if err != nil {
		if wait.Interrupted(err) {
			return ep, fmt.Errorf("endpoint %s not in service after %s (last status %s): %w", req.Name, timeout, ep.Status, err)
		}
		return ep, err
	}
	log.Info().Msg("endpoint in service")
	return ep, nil
}

// Describe implements Describer.
func (c *Client) Describe(ctx context.Context, name string) (Endpoint, error) {
	var d endpointDescription
	if err := c.do(ctx, "describe endpoint", http.MethodGet, "/v1/endpoints/"+url.PathEscape(name), nil, &d); err != nil {
		return Endpoint{}, err
	}
	ep := Endpoint{
		Name:          d.Name,
		ModelName:     d.ModelName,
		ConfigName:    d.ConfigName,
		Status:        d.Status,
		FailureReason: d.FailureReason,
		Image:         d.Image,
		InstanceType:  d.InstanceType,
	}
	if d.CreatedUnix > 0 {
		ep.CreatedAt = time.Unix(d.CreatedUnix, 0)
	}
	if len(d.Env) > 0 {
		if cfg, err := ConfigFromEnv(d.Env); err == nil {
			ep.Serving = cfg
		} else {
			c.log.Warn().Err(err).Str("endpoint", name).Msg("endpoint env does not describe a valid serving configuration")
		}
	}
	return ep, nil
}

// Predict implements Predictor.
func (c *Client) Predict(ctx context.Context, ep Endpoint, req GenerateRequest) (GenerateResponse, error) {
	if strings.TrimSpace(req.Inputs) == "" {
		return GenerateResponse{}, errors.New("inputs are required")
	}
	var raw json.RawMessage
	path := "/v1/endpoints/" + url.PathEscape(ep.Name) + "/invocations"
	if err := c.do(ctx, "invoke endpoint", http.MethodPost, path, invocationRequest{Inputs: req.Inputs, Parameters: req.Parameters}, &raw); err != nil {
		return GenerateResponse{}, err
	}
	// The server answers with a list of generations; some builds return a single object.
	var list []invocationOutput
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return GenerateResponse{}, errors.New("invoke endpoint: empty response")
		}
		return GenerateResponse{GeneratedText: list[0].GeneratedText}, nil
	}
	var one invocationOutput
	if err := json.Unmarshal(raw, &one); err != nil {
		return GenerateResponse{}, fmt.Errorf("invoke endpoint: decode response: %w", err)
	}
	return GenerateResponse{GeneratedText: one.GeneratedText}, nil
}

// Teardown implements Teardowner. It deletes the endpoint, its configuration
// and its model, attempting every step and returning all failures.
func (c *Client) Teardown(ctx context.Context, ep Endpoint) error {
	var errs []error
	if ep.Name != "" {
		errs = append(errs, c.do(ctx, "delete endpoint", http.MethodDelete, "/v1/endpoints/"+url.PathEscape(ep.Name), nil, nil))
	}
	if ep.ConfigName != "" {
		errs = append(errs, c.do(ctx, "delete endpoint config", http.MethodDelete, "/v1/endpoint-configs/"+url.PathEscape(ep.ConfigName), nil, nil))
	}
	if ep.ModelName != "" {
		errs = append(errs, c.do(ctx, "delete model", http.MethodDelete, "/v1/models/"+url.PathEscape(ep.ModelName), nil, nil))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.log.Info().Str("endpoint", ep.Name).Msg("endpoint deleted")
	return nil
}

// do performs one control-plane call. A non-2xx answer becomes an *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.session.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.session.RequestTimeout)
		defer cancel()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	if c.session.Region != "" {
		req.Header.Set("X-Llmhost-Region", c.session.Region)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("op", op).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("control plane call")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		ae := &APIError{Op: op, Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(b, &eb) == nil && (eb.Message != "" || eb.Code != "") {
			ae.Code, ae.Message = eb.Code, eb.Message
		} else {
			ae.Message = strings.TrimSpace(string(b))
		}
		return ae
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

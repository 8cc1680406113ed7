package httpapi

import (
	"context"
	"fmt"
	"time"

	"llmhost/internal/chat"
	"llmhost/internal/config"
	"llmhost/internal/deploy"
	"llmhost/internal/hosting"
	"llmhost/internal/serving"
	"llmhost/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Derive(req types.DeriveRequest) (types.ServingConfig, error)
	Endpoints() []types.Endpoint
	Endpoint(name string) (types.Endpoint, error)
	// Deploy provisions an endpoint. With wait=false it returns once the plan
	// is accepted and provisioning continues in the background.
	Deploy(ctx context.Context, req types.DeployRequest, wait bool) (types.Endpoint, error)
	Generate(ctx context.Context, name string, req types.GenerateRequest) (types.GenerateResponse, error)
	Teardown(ctx context.Context, name string) error
	Ready() bool
}

// deployerService adapts a deploy.Deployer to Service.
type deployerService struct {
	d *deploy.Deployer
}

// NewService exposes d over HTTP.
func NewService(d *deploy.Deployer) Service { return &deployerService{d: d} }

func (s *deployerService) Derive(req types.DeriveRequest) (types.ServingConfig, error) {
	cfg, err := serving.Derive(paramsFromRequest(req))
	if err != nil {
		return types.ServingConfig{}, err
	}
	env, err := hosting.EnvFromConfig(cfg, nil)
	if err != nil {
		return types.ServingConfig{}, err
	}
	out := ServingConfigView(cfg)
	out.Env = env
	return out, nil
}

func (s *deployerService) Endpoints() []types.Endpoint {
	eps := s.d.Endpoints()
	out := make([]types.Endpoint, 0, len(eps))
	for _, ep := range eps {
		out = append(out, EndpointView(ep))
	}
	return out
}

func (s *deployerService) Endpoint(name string) (types.Endpoint, error) {
	ep, err := s.d.Lookup(name)
	if err != nil {
		return types.Endpoint{}, err
	}
	return EndpointView(ep), nil
}

func (s *deployerService) Deploy(ctx context.Context, req types.DeployRequest, wait bool) (types.Endpoint, error) {
	dep := config.Deployment{
		Name:               req.Name,
		ModelID:            req.ModelID,
		BatchSize:          req.BatchSize,
		SequenceLength:     req.SequenceLength,
		MaxInputLength:     req.MaxInputLength,
		InputMargin:        req.InputMargin,
		InstanceType:       req.InstanceType,
		InstanceCount:      req.InstanceCount,
		HealthCheckTimeout: req.HealthCheckTimeoutSeconds,
		Env:                req.Env,
	}
	p, err := s.d.Plan(ctx, dep)
	if err != nil {
		return types.Endpoint{}, err
	}
	// The name is held from here on, so GET sees it and a second POST conflicts.
	if !s.d.Reserve(p) {
		return types.Endpoint{}, conflictError{msg: fmt.Sprintf("endpoint %s already exists", p.Name)}
	}
	if wait {
		ep, err := s.d.DeployPlan(ctx, p)
		if err != nil {
			return types.Endpoint{}, err
		}
		return EndpointView(ep), nil
	}

	base := serverBaseCtx
	go func() {
		ep, err := s.d.DeployPlan(base, p)
		if err == nil || ep.Name != "" {
			// Live or failed endpoints stay tracked and are deleted via the API.
			return
		}
		if ep.ModelName == "" && ep.ConfigName == "" {
			return
		}
		tctx, cancel := context.WithTimeout(context.WithoutCancel(base), 5*time.Minute)
		defer cancel()
		if terr := s.d.Teardown(tctx, ep); terr != nil {
			logger().Error().Err(terr).Str("endpoint", p.Name).Msg("cleanup after failed provisioning")
		}
	}()
	return types.Endpoint{
		Name:         p.Name,
		Status:       hosting.StatusCreating,
		Image:        p.Image,
		InstanceType: p.InstanceType,
		Serving:      ServingConfigView(p.Serving),
	}, nil
}

func (s *deployerService) Generate(ctx context.Context, name string, req types.GenerateRequest) (types.GenerateResponse, error) {
	ep, err := s.d.Lookup(name)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	if ep.Status != hosting.StatusInService {
		return types.GenerateResponse{}, conflictError{msg: fmt.Sprintf("endpoint %s is %s", name, ep.Status)}
	}
	p := deploy.Prompt{
		Text:     req.Prompt,
		Template: req.Template,
		Parameters: hosting.Parameters{
			MaxNewTokens:      req.Parameters.MaxNewTokens,
			DoSample:          req.Parameters.DoSample,
			Temperature:       req.Parameters.Temperature,
			TopK:              req.Parameters.TopK,
			TopP:              req.Parameters.TopP,
			RepetitionPenalty: req.Parameters.RepetitionPenalty,
			Stop:              req.Parameters.Stop,
			ReturnFullText:    req.Parameters.ReturnFullText,
		},
	}
	for _, m := range req.Messages {
		p.Messages = append(p.Messages, chat.Message{Role: m.Role, Content: m.Content})
	}
	res, err := s.d.Generate(ctx, ep, p)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	return types.GenerateResponse{Endpoint: res.Endpoint, Prompt: res.Prompt, GeneratedText: res.Text}, nil
}

func (s *deployerService) Teardown(ctx context.Context, name string) error {
	ep, err := s.d.Lookup(name)
	if err != nil {
		return err
	}
	return s.d.Teardown(ctx, ep)
}

func (s *deployerService) Ready() bool { return s.d.Ready() }

func paramsFromRequest(req types.DeriveRequest) serving.Params {
	return serving.Params{
		ModelID:        req.ModelID,
		BatchSize:      req.BatchSize,
		SequenceLength: req.SequenceLength,
		MaxInputLength: req.MaxInputLength,
		InputMargin:    req.InputMargin,
	}
}

// ServingConfigView renders cfg for JSON output.
func ServingConfigView(cfg serving.Config) types.ServingConfig {
	return types.ServingConfig{
		ModelID:               cfg.ModelID(),
		BatchSize:             cfg.BatchSize(),
		SequenceLength:        cfg.SequenceLength(),
		MaxInputLength:        cfg.MaxInputLength(),
		MaxTotalTokens:        cfg.MaxTotalTokens(),
		MaxConcurrentRequests: cfg.MaxConcurrentRequests(),
		MaxBatchPrefillTokens: cfg.MaxBatchPrefillTokens(),
		MaxBatchTotalTokens:   cfg.MaxBatchTotalTokens(),
	}
}

// EndpointView renders ep for JSON output.
func EndpointView(ep hosting.Endpoint) types.Endpoint {
	out := types.Endpoint{
		Name:          ep.Name,
		ModelName:     ep.ModelName,
		ConfigName:    ep.ConfigName,
		Status:        ep.Status,
		FailureReason: ep.FailureReason,
		Image:         ep.Image,
		InstanceType:  ep.InstanceType,
		Serving:       ServingConfigView(ep.Serving),
	}
	if !ep.CreatedAt.IsZero() {
		out.CreatedUnix = ep.CreatedAt.Unix()
	}
	return out
}

package deploy

import (
	"context"
	"fmt"
	"time"

	"llmhost/internal/config"
	"llmhost/internal/hosting"
	"llmhost/internal/registry"
	"llmhost/internal/serving"
)

// Plan is a fully resolved deployment, ready to hand to the control plane.
type Plan struct {
	Name               string
	Serving            serving.Config
	Artifact           registry.Artifact
	Image              string
	Env                map[string]string
	InstanceType       string
	InstanceCount      int
	HealthCheckTimeout time.Duration
}

// Request converts p into a provisioning request.
func (p Plan) Request() hosting.ProvisionRequest {
	return hosting.ProvisionRequest{
		Name:               p.Name,
		Image:              p.Image,
		ArtifactURI:        p.Artifact.URI,
		Env:                p.Env,
		InstanceType:       p.InstanceType,
		InstanceCount:      p.InstanceCount,
		HealthCheckTimeout: p.HealthCheckTimeout,
		Serving:            p.Serving,
	}
}

// Plan derives the serving configuration for dep and resolves everything the
// control plane needs. It makes no control-plane calls.
func (d *Deployer) Plan(ctx context.Context, dep config.Deployment) (Plan, error) {
	dep.ApplyDefaults()
	cfg, err := serving.Derive(dep.Params())
	if err != nil {
		return Plan{}, err
	}
	name := dep.Name
	if name == "" {
		name = hosting.GenerateName(cfg.ModelID())
	}
	if err := hosting.ValidateName(name); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	var art registry.Artifact
	if d.opts.Artifacts != nil {
		art, err = d.opts.Artifacts.Resolve(ctx, cfg.ModelID())
		if err != nil {
			return Plan{}, err
		}
		if err := registry.CheckCompatible(art, cfg); err != nil {
			return Plan{}, err
		}
	}

	image := dep.Image
	if image == "" {
		image, err = d.opts.Images.Resolve(ctx, dep.Backend, dep.BackendVersion, d.opts.Session.Region)
		if err != nil {
			return Plan{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	extra := art.Env()
	for k, v := range dep.Env {
		extra[k] = v
	}
	env, err := hosting.EnvFromConfig(cfg, extra)
	if err != nil {
		if serving.IsInvalidConfiguration(err) {
			return Plan{}, err
		}
		return Plan{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	p := Plan{
		Name:               name,
		Serving:            cfg,
		Artifact:           art,
		Image:              image,
		Env:                env,
		InstanceType:       dep.InstanceType,
		InstanceCount:      dep.InstanceCount,
		HealthCheckTimeout: dep.HealthCheckTimeoutDuration(),
	}
	d.log.Debug().Str("endpoint", name).Stringer("serving", cfg).Str("image", image).Msg("deployment planned")
	d.pub.Publish(Event{Name: EventPlanned, Endpoint: name, Fields: map[string]any{"model_id": cfg.ModelID()}})
	return p, nil
}

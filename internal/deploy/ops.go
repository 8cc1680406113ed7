package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"llmhost/internal/chat"
	"llmhost/internal/config"
	"llmhost/internal/hosting"
)

// Deploy plans dep and provisions it. When provisioning fails after objects
// were created, the returned Endpoint names them so the caller can tear down.
func (d *Deployer) Deploy(ctx context.Context, dep config.Deployment) (hosting.Endpoint, error) {
	p, err := d.Plan(ctx, dep)
	if err != nil {
		observe("deploy", err)
		return hosting.Endpoint{}, err
	}
	return d.DeployPlan(ctx, p)
}

// DeployPlan provisions an already computed plan.
func (d *Deployer) DeployPlan(ctx context.Context, p Plan) (hosting.Endpoint, error) {
	if d.opts.Provisioner == nil {
		d.forget(p.Name)
		return hosting.Endpoint{}, errors.New("no provisioner configured")
	}
	log := d.log.With().Str("endpoint", p.Name).Logger()
	log.Info().Str("instance_type", p.InstanceType).Int("instances", p.InstanceCount).Stringer("serving", p.Serving).Msg("provisioning endpoint")
	d.pub.Publish(Event{Name: EventProvisioning, Endpoint: p.Name, Fields: map[string]any{"image": p.Image}})

	d.Track(creatingView(p))

	start := time.Now()
	ep, err := d.opts.Provisioner.Provision(ctx, p.Request())
	observe("deploy", err)
	if err != nil {
		log.Error().Err(err).Dur("dur", time.Since(start)).Msg("provisioning failed")
		d.pub.Publish(Event{Name: EventProvisionError, Endpoint: p.Name, Fields: map[string]any{"error": err.Error()}})
		if ep.Name != "" {
			// The endpoint exists at the control plane; keep it visible for teardown.
			d.Track(ep)
		} else {
			d.forget(p.Name)
		}
		return ep, fmt.Errorf("deploy %s: %w", p.Name, err)
	}
	provisionDuration.Observe(time.Since(start).Seconds())
	if ep.Serving.IsZero() {
		ep.Serving = p.Serving
	}
	if ep.Image == "" {
		ep.Image = p.Image
	}
	if ep.InstanceType == "" {
		ep.InstanceType = p.InstanceType
	}
	d.Track(ep)
	log.Info().Dur("dur", time.Since(start)).Msg("endpoint in service")
	d.pub.Publish(Event{Name: EventInService, Endpoint: ep.Name})
	return ep, nil
}

// Prompt is one generation request. Text is sent as-is; otherwise Messages
// are rendered with Template (or the Deployer's default template).
type Prompt struct {
	Text       string
	Messages   []chat.Message
	Template   string
	Parameters hosting.Parameters
}

// Result is the outcome of one generation.
type Result struct {
	Endpoint string
	Prompt   string
	Text     string
}

// Render returns the prompt text that will be sent.
func (d *Deployer) Render(p Prompt) (string, error) {
	if strings.TrimSpace(p.Text) != "" {
		if len(p.Messages) > 0 {
			return "", fmt.Errorf("%w: prompt and messages are mutually exclusive", errBadRequest)
		}
		return p.Text, nil
	}
	tmpl := p.Template
	if tmpl == "" {
		tmpl = d.opts.DefaultTemplate
	}
	s, err := chat.Format(tmpl, p.Messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return s, nil
}

// Generate sends p to ep.
func (d *Deployer) Generate(ctx context.Context, ep hosting.Endpoint, p Prompt) (Result, error) {
	if d.opts.Predictor == nil {
		return Result{}, errors.New("no predictor configured")
	}
	text, err := d.Render(p)
	if err != nil {
		return Result{}, err
	}
	release, err := d.adm.begin(ctx, ep)
	if err != nil {
		if IsTooBusy(err) {
			d.log.Warn().Str("endpoint", ep.Name).Msg("generation rejected: too busy")
		}
		return Result{}, err
	}
	defer release()
	start := time.Now()
	res, err := d.opts.Predictor.Predict(ctx, ep, hosting.GenerateRequest{Inputs: text, Parameters: p.Parameters})
	observe("generate", err)
	if err != nil {
		return Result{}, fmt.Errorf("generate on %s: %w", ep.Name, err)
	}
	generateDuration.Observe(time.Since(start).Seconds())
	d.log.Debug().Str("endpoint", ep.Name).Int("prompt_chars", len(text)).Int("output_chars", len(res.GeneratedText)).Dur("dur", time.Since(start)).Msg("generated")
	d.pub.Publish(Event{Name: EventGenerated, Endpoint: ep.Name})
	return Result{Endpoint: ep.Name, Prompt: text, Text: res.GeneratedText}, nil
}

// Teardown deletes ep and stops tracking it.
func (d *Deployer) Teardown(ctx context.Context, ep hosting.Endpoint) error {
	if d.opts.Teardowner == nil {
		return errors.New("no teardowner configured")
	}
	err := d.opts.Teardowner.Teardown(ctx, ep)
	observe("teardown", err)
	if err != nil {
		d.log.Error().Err(err).Str("endpoint", ep.Name).Msg("teardown failed")
		return fmt.Errorf("teardown %s: %w", ep.Name, err)
	}
	d.forget(ep.Name)
	d.log.Info().Str("endpoint", ep.Name).Msg("endpoint torn down")
	d.pub.Publish(Event{Name: EventTornDown, Endpoint: ep.Name})
	return nil
}

// Report is the outcome of Run.
type Report struct {
	Endpoint hosting.Endpoint
	Results  []Result
	// TornDown is false when the endpoint was kept or teardown failed.
	TornDown bool
}

// Run performs the whole flow for dep: deploy, send every sample, and tear
// down unless dep.KeepEndpoint is set. Teardown also runs when provisioning
// or a sample fails, as long as something was created.
func (d *Deployer) Run(ctx context.Context, dep config.Deployment) (Report, error) {
	if err := dep.Validate(); err != nil {
		return Report{}, err
	}
	dep.ApplyDefaults()
	prompts := PromptsFromDeployment(dep)

	var rep Report
	ep, err := d.Deploy(ctx, dep)
	rep.Endpoint = ep
	var errs []error
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, p := range prompts {
			r, gerr := d.Generate(ctx, ep, p)
			if gerr != nil {
				errs = append(errs, gerr)
				break
			}
			rep.Results = append(rep.Results, r)
		}
	}
	created := ep.Name != "" || ep.ConfigName != "" || ep.ModelName != ""
	if created && !dep.KeepEndpoint {
		// Teardown must run even if ctx was canceled mid-run.
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		terr := d.Teardown(tctx, ep)
		cancel()
		if terr != nil {
			errs = append(errs, terr)
		} else {
			rep.TornDown = true
		}
	}
	return rep, errors.Join(errs...)
}

// PromptsFromDeployment converts the deployment's samples into prompts.
func PromptsFromDeployment(dep config.Deployment) []Prompt {
	params := ParametersFromGeneration(dep.Generation)
	out := make([]Prompt, 0, len(dep.Samples))
	for _, s := range dep.Samples {
		p := Prompt{Template: dep.Template, Parameters: params}
		if strings.TrimSpace(s.Prompt) != "" {
			p.Text = s.Prompt
		} else {
			if s.System != "" {
				p.Messages = append(p.Messages, chat.Message{Role: chat.RoleSystem, Content: s.System})
			}
			p.Messages = append(p.Messages, chat.Message{Role: chat.RoleUser, Content: s.User})
		}
		out = append(out, p)
	}
	return out
}

// ParametersFromGeneration maps file-level generation settings to request parameters.
func ParametersFromGeneration(g config.Generation) hosting.Parameters {
	return hosting.Parameters{
		MaxNewTokens:      g.MaxNewTokens,
		DoSample:          g.DoSample,
		Temperature:       g.Temperature,
		TopK:              g.TopK,
		TopP:              g.TopP,
		RepetitionPenalty: g.RepetitionPenalty,
		Stop:              append([]string(nil), g.Stop...),
	}
}

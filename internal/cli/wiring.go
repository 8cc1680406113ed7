package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/deploy"
	"llmhost/internal/hosting"
	"llmhost/internal/registry"
)

// loadDeployment reads the --config file. It is required by every command
// that talks to the control plane except predict and teardown.
func loadDeployment(cfg *Config) (config.Deployment, error) {
	if cfg.ConfigPath == "" {
		return config.Deployment{}, usageError{msg: "--config is required"}
	}
	return config.Load(cfg.ConfigPath)
}

// loadArtifacts builds the artifact registry from --artifacts-dir or the
// deployment's artifacts_dir. No directory means no artifact checks.
func loadArtifacts(cfg *Config, dep config.Deployment) (deploy.ArtifactResolver, error) {
	dir := cfg.ArtifactsDir
	if dir == "" {
		dir = dep.ArtifactsDir
	}
	if dir == "" {
		return nil, nil
	}
	reg, err := registry.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load artifacts from %s: %w", dir, err)
	}
	return reg, nil
}

// env wires a Deployer and its control-plane client for one command.
type env struct {
	session  config.Session
	client   *hosting.Client
	deployer *deploy.Deployer
}

func newEnv(cfg *Config, dep config.Deployment, log zerolog.Logger) (*env, error) {
	session, err := config.LoadSession(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	arts, err := loadArtifacts(cfg, dep)
	if err != nil {
		return nil, err
	}
	log.Debug().Interface("session", session.Redacted()).Msg("session loaded")
	client := hosting.NewClient(session, log)
	d := deploy.NewWithClient(deploy.Options{
		Session:         session,
		Artifacts:       arts,
		Publisher:       logPublisher{log: log},
		Logger:          log,
		DefaultTemplate: dep.Template,
		MaxQueueDepth:   cfg.MaxQueueDepth,
		MaxWait:         cfg.MaxWait,
	}, client)
	return &env{session: session, client: client, deployer: d}, nil
}

// logPublisher turns deployment events into log lines.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e deploy.Event) {
	p.log.Info().Str("event", e.Name).Str("endpoint", e.Endpoint).Fields(e.Fields).Msg("deployment event")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

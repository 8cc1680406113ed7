package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmhost/internal/serving"
)

// Defaults applied when corresponding Deployment fields are unset.
const (
	DefaultInstanceType       = "ml.inf2.xlarge"
	DefaultInstanceCount      = 1
	DefaultBackend            = "huggingface-neuronx"
	DefaultBackendVersion     = "0.0.23"
	DefaultHealthCheckTimeout = 1800
	DefaultTemplate           = "zephyr"
)

// Deployment describes one deployment attempt: the compiled artifact, where to
// host it and the sample requests to send afterwards.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Deployment struct {
	Name           string `json:"name" yaml:"name" toml:"name"`
	ModelID        string `json:"model_id" yaml:"model_id" toml:"model_id"`
	BatchSize      int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	SequenceLength int    `json:"sequence_length" yaml:"sequence_length" toml:"sequence_length"`
	MaxInputLength int    `json:"max_input_length" yaml:"max_input_length" toml:"max_input_length"`
	InputMargin    int    `json:"input_margin" yaml:"input_margin" toml:"input_margin"`

	InstanceType  string `json:"instance_type" yaml:"instance_type" toml:"instance_type"`
	InstanceCount int    `json:"instance_count" yaml:"instance_count" toml:"instance_count"`
	// HealthCheckTimeout is in seconds.
	HealthCheckTimeout int `json:"health_check_timeout" yaml:"health_check_timeout" toml:"health_check_timeout"`

	Backend        string            `json:"backend" yaml:"backend" toml:"backend"`
	BackendVersion string            `json:"backend_version" yaml:"backend_version" toml:"backend_version"`
	Image          string            `json:"image" yaml:"image" toml:"image"`
	ArtifactsDir   string            `json:"artifacts_dir" yaml:"artifacts_dir" toml:"artifacts_dir"`
	Env            map[string]string `json:"env" yaml:"env" toml:"env"`

	Template     string     `json:"template" yaml:"template" toml:"template"`
	Generation   Generation `json:"generation" yaml:"generation" toml:"generation"`
	Samples      []Sample   `json:"samples" yaml:"samples" toml:"samples"`
	KeepEndpoint bool       `json:"keep_endpoint" yaml:"keep_endpoint" toml:"keep_endpoint"`
}

// Generation holds text-generation parameters for sample requests.
type Generation struct {
	MaxNewTokens      int      `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	DoSample          bool     `json:"do_sample" yaml:"do_sample" toml:"do_sample"`
	Temperature       float64  `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopK              int      `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP              float64  `json:"top_p" yaml:"top_p" toml:"top_p"`
	RepetitionPenalty float64  `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	Stop              []string `json:"stop" yaml:"stop" toml:"stop"`
}

// Sample is one request sent after the endpoint is live. A raw Prompt is sent
// as-is; otherwise System and User are rendered with the deployment's chat template.
type Sample struct {
	System string `json:"system" yaml:"system" toml:"system"`
	User   string `json:"user" yaml:"user" toml:"user"`
	Prompt string `json:"prompt" yaml:"prompt" toml:"prompt"`
}

// Load reads a deployment file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Deployment, error) {
	var d Deployment
	if path == "" {
		return d, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &d); err != nil {
			return d, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &d); err != nil {
			return d, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &d); err != nil {
			return d, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return d, fmt.Errorf("unsupported config extension: %s", ext)
	}
	d.ApplyDefaults()
	return d, nil
}

// ApplyDefaults fills unset hosting fields. Compile-time constants (batch size,
// sequence length) have no defaults.
func (d *Deployment) ApplyDefaults() {
	if d.InstanceType == "" {
		d.InstanceType = DefaultInstanceType
	}
	if d.InstanceCount <= 0 {
		d.InstanceCount = DefaultInstanceCount
	}
	if d.HealthCheckTimeout <= 0 {
		d.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if d.Backend == "" {
		d.Backend = DefaultBackend
	}
	if d.BackendVersion == "" {
		d.BackendVersion = DefaultBackendVersion
	}
	if d.Template == "" {
		d.Template = DefaultTemplate
	}
}

// Params returns the inputs for serving.Derive.
func (d Deployment) Params() serving.Params {
	return serving.Params{
		ModelID:        d.ModelID,
		BatchSize:      d.BatchSize,
		SequenceLength: d.SequenceLength,
		MaxInputLength: d.MaxInputLength,
		InputMargin:    d.InputMargin,
	}
}

// HealthCheckTimeoutDuration returns the health-check timeout as a duration.
func (d Deployment) HealthCheckTimeoutDuration() time.Duration {
	return time.Duration(d.HealthCheckTimeout) * time.Second
}

// Validate checks the deployment, including the serving parameters.
func (d Deployment) Validate() error {
	if _, err := serving.Derive(d.Params()); err != nil {
		return err
	}
	if d.InstanceCount < 0 {
		return fmt.Errorf("instance_count must not be negative")
	}
	for i, s := range d.Samples {
		if strings.TrimSpace(s.Prompt) == "" && strings.TrimSpace(s.User) == "" {
			return fmt.Errorf("samples[%d]: prompt or user message is required", i)
		}
	}
	return nil
}

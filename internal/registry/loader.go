// Package registry resolves model identifiers to locally recorded compiled
// artifacts. Each artifact directory carries a compile manifest that pins the
// batch size and sequence length the model was compiled with.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmhost/internal/common/fsutil"
	"llmhost/internal/serving"
)

// ManifestNames are the file names LoadDir looks for, in priority order.
var ManifestNames = []string{"compile.json", "compile.yaml", "compile.yml", "compile.toml"}

// Artifact is a compiled model as recorded by its manifest.
type Artifact struct {
	ModelID        string `json:"model_id" yaml:"model_id" toml:"model_id"`
	BatchSize      int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	SequenceLength int    `json:"sequence_length" yaml:"sequence_length" toml:"sequence_length"`
	NumCores       int    `json:"num_cores" yaml:"num_cores" toml:"num_cores"`
	AutoCastType   string `json:"auto_cast_type" yaml:"auto_cast_type" toml:"auto_cast_type"`
	// Location of the artifact, e.g. an object-store URI. Defaults to Dir.
	URI string `json:"uri" yaml:"uri" toml:"uri"`
	// Dir is the directory the manifest was found in.
	Dir string `json:"-" yaml:"-" toml:"-"`
}

type artifactNotFoundError struct{ id string }

func (e artifactNotFoundError) Error() string { return "artifact not found: " + e.id }

// IsArtifactNotFound reports whether err indicates an unknown model id.
func IsArtifactNotFound(err error) bool {
	var e artifactNotFoundError
	return errors.As(err, &e)
}

type incompatibleArtifactError struct {
	id   string
	what string
}

func (e incompatibleArtifactError) Error() string {
	return "artifact " + e.id + " is incompatible with the serving configuration: " + e.what
}

// IsIncompatibleArtifact reports whether err indicates a serving configuration
// that does not match the compiled artifact.
func IsIncompatibleArtifact(err error) bool {
	var e incompatibleArtifactError
	return errors.As(err, &e)
}

// Registry is an in-memory index of compiled artifacts keyed by model id.
type Registry struct {
	byID map[string]Artifact
}

// New builds a registry from artifacts. Later duplicates win.
func New(artifacts []Artifact) *Registry {
	r := &Registry{byID: make(map[string]Artifact, len(artifacts))}
	for _, a := range artifacts {
		r.byID[a.ModelID] = a
	}
	return r
}

// LoadDir scans dir and its immediate subdirectories for compile manifests.
func LoadDir(dir string) (*Registry, error) {
	abs, err := fsutil.AbsDir(dir)
	if err != nil {
		return nil, err
	}
	dirs := []string{abs}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, filepath.Join(abs, e.Name()))
		}
	}
	var artifacts []Artifact
	for _, d := range dirs {
		p := fsutil.FirstExisting(d, ManifestNames...)
		if p == "" {
			continue
		}
		a, err := readManifest(p)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return New(artifacts), nil
}

func readManifest(path string) (Artifact, error) {
	var a Artifact
	b, err := os.ReadFile(path)
	if err != nil {
		return a, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &a)
	case ".json":
		err = json.Unmarshal(b, &a)
	case ".toml":
		err = toml.Unmarshal(b, &a)
	default:
		err = fmt.Errorf("unsupported manifest extension: %s", ext)
	}
	if err != nil {
		return a, fmt.Errorf("manifest %s: %w", path, err)
	}
	a.Dir = filepath.Dir(path)
	if a.ModelID == "" {
		return a, fmt.Errorf("manifest %s: model_id is required", path)
	}
	if a.BatchSize <= 0 || a.SequenceLength <= 0 {
		return a, fmt.Errorf("manifest %s: batch_size and sequence_length must be positive", path)
	}
	if a.URI == "" {
		a.URI = a.Dir
	}
	return a, nil
}

// Resolve returns the artifact recorded for modelID.
func (r *Registry) Resolve(ctx context.Context, modelID string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if r != nil {
		if a, ok := r.byID[modelID]; ok {
			return a, nil
		}
	}
	return Artifact{}, artifactNotFoundError{id: modelID}
}

// List returns all artifacts sorted by model id.
func (r *Registry) List() []Artifact {
	if r == nil {
		return nil
	}
	out := make([]Artifact, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// CheckCompatible fails when cfg asks for limits the artifact was not compiled
// for. The batch size and sequence length cannot change without recompiling.
func CheckCompatible(a Artifact, cfg serving.Config) error {
	if a.ModelID != cfg.ModelID() {
		return incompatibleArtifactError{id: a.ModelID, what: "model id " + cfg.ModelID()}
	}
	if a.BatchSize != cfg.BatchSize() {
		return incompatibleArtifactError{id: a.ModelID, what: fmt.Sprintf("batch size %d, compiled with %d", cfg.BatchSize(), a.BatchSize)}
	}
	if a.SequenceLength != cfg.SequenceLength() {
		return incompatibleArtifactError{id: a.ModelID, what: fmt.Sprintf("sequence length %d, compiled with %d", cfg.SequenceLength(), a.SequenceLength)}
	}
	return nil
}

// Env returns container settings implied by the artifact itself.
func (a Artifact) Env() map[string]string {
	env := map[string]string{}
	if a.NumCores > 0 {
		env["HF_NUM_CORES"] = fmt.Sprint(a.NumCores)
	}
	if a.AutoCastType != "" {
		env["HF_AUTO_CAST_TYPE"] = a.AutoCastType
	}
	return env
}

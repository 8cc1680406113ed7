package deploy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/hosting"
	"llmhost/internal/registry"
)

// ArtifactResolver looks up the compiled artifact for a model id.
type ArtifactResolver interface {
	Resolve(ctx context.Context, modelID string) (registry.Artifact, error)
}

// Options wires a Deployer to its collaborators. Artifacts and Publisher are
// optional; the rest are required for the operations that use them.
type Options struct {
	Session     config.Session
	Artifacts   ArtifactResolver
	Images      hosting.ImageResolver
	Provisioner hosting.Provisioner
	Predictor   hosting.Predictor
	Teardowner  hosting.Teardowner
	Publisher   EventPublisher
	Logger      zerolog.Logger
	// DefaultTemplate renders chat messages when a request names no template.
	DefaultTemplate string
	// MaxQueueDepth bounds generation requests waiting per endpoint. Values
	// below the endpoint's concurrency mean twice the concurrency.
	MaxQueueDepth int
	// MaxWait is how long a generation request may wait for admission.
	MaxWait time.Duration
}

// Deployer runs deployments and remembers the endpoints it created.
type Deployer struct {
	opts Options
	log  zerolog.Logger
	pub  EventPublisher
	adm  *admission

	mu        sync.RWMutex
	endpoints map[string]hosting.Endpoint
	startTime time.Time
}

// New constructs a Deployer. A Client covering every control-plane role can
// be passed through NewWithClient instead.
func New(opts Options) *Deployer {
	pub := opts.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	if opts.Images == nil {
		opts.Images = hosting.NewImageCatalog(nil)
	}
	if opts.DefaultTemplate == "" {
		opts.DefaultTemplate = config.DefaultTemplate
	}
	return &Deployer{
		opts:      opts,
		log:       opts.Logger.With().Str("component", "deploy").Logger(),
		pub:       pub,
		adm:       newAdmission(opts.MaxQueueDepth, opts.MaxWait),
		endpoints: make(map[string]hosting.Endpoint),
		startTime: time.Now(),
	}
}

// ControlPlane is implemented by hosting.Client.
type ControlPlane interface {
	hosting.Provisioner
	hosting.Predictor
	hosting.Teardowner
}

// NewWithClient fills the control-plane roles of opts from cp.
func NewWithClient(opts Options, cp ControlPlane) *Deployer {
	opts.Provisioner = cp
	opts.Predictor = cp
	opts.Teardowner = cp
	return New(opts)
}

// Endpoints returns the endpoints created by this Deployer that have not
// been torn down, sorted by name.
func (d *Deployer) Endpoints() []hosting.Endpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]hosting.Endpoint, 0, len(d.endpoints))
	for _, ep := range d.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns a tracked endpoint by name.
func (d *Deployer) Lookup(name string) (hosting.Endpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ep, ok := d.endpoints[name]
	if !ok {
		return hosting.Endpoint{}, ErrEndpointNotFound(name)
	}
	return ep, nil
}

// Track records an endpoint created elsewhere, e.g. by an earlier run.
func (d *Deployer) Track(ep hosting.Endpoint) {
	d.mu.Lock()
	d.endpoints[ep.Name] = ep
	d.mu.Unlock()
	liveEndpoints.Set(float64(d.count()))
}

// Reserve tracks the Creating view of p unless an endpoint with the same
// name is already tracked. It reports whether the name was free.
func (d *Deployer) Reserve(p Plan) bool {
	d.mu.Lock()
	if _, ok := d.endpoints[p.Name]; ok {
		d.mu.Unlock()
		return false
	}
	d.endpoints[p.Name] = creatingView(p)
	d.mu.Unlock()
	liveEndpoints.Set(float64(d.count()))
	return true
}

func creatingView(p Plan) hosting.Endpoint {
	return hosting.Endpoint{
		Name:         p.Name,
		Status:       hosting.StatusCreating,
		Image:        p.Image,
		InstanceType: p.InstanceType,
		Serving:      p.Serving,
		CreatedAt:    time.Now(),
	}
}

func (d *Deployer) forget(name string) {
	d.mu.Lock()
	delete(d.endpoints, name)
	d.mu.Unlock()
	d.adm.drop(name)
	liveEndpoints.Set(float64(d.count()))
}

func (d *Deployer) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.endpoints)
}

// Ready reports whether the Deployer can reach a control plane.
func (d *Deployer) Ready() bool {
	return d.opts.Provisioner != nil && d.opts.Predictor != nil && d.opts.Teardowner != nil
}

// Uptime returns how long the Deployer has existed.
func (d *Deployer) Uptime() time.Duration { return time.Since(d.startTime) }

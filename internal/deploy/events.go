package deploy

import "sync"

// Event names.
const (
	EventPlanned        = "planned"
	EventProvisioning   = "provisioning"
	EventInService      = "in_service"
	EventProvisionError = "provision_error"
	EventGenerated      = "generated"
	EventTornDown       = "torn_down"
)

// Event represents a deployment lifecycle event.
type Event struct {
	Name     string
	Endpoint string
	Fields   map[string]any
}

// EventPublisher receives events from the Deployer. Publish must not block or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher stores events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

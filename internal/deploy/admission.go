package deploy

import (
	"context"
	"sync"
	"time"

	"llmhost/internal/hosting"
)

// gate bounds the generation requests one endpoint sees at a time. Callers
// first reserve a queue slot, then one of the in-flight slots.
type gate struct {
	queue    chan struct{}
	inflight chan struct{}
}

type admission struct {
	mu       sync.Mutex
	gates    map[string]*gate
	maxQueue int
	maxWait  time.Duration
}

func newAdmission(maxQueue int, maxWait time.Duration) *admission {
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &admission{gates: make(map[string]*gate), maxQueue: maxQueue, maxWait: maxWait}
}

// gateFor returns the gate of ep, sized from its serving limits on first use.
func (a *admission) gateFor(ep hosting.Endpoint) *gate {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.gates[ep.Name]; ok {
		return g
	}
	n := ep.Serving.MaxConcurrentRequests()
	if n < 1 {
		n = 1
	}
	depth := a.maxQueue
	if depth < n {
		depth = 2 * n
	}
	g := &gate{queue: make(chan struct{}, depth), inflight: make(chan struct{}, n)}
	a.gates[ep.Name] = g
	return g
}

func (a *admission) drop(name string) {
	a.mu.Lock()
	delete(a.gates, name)
	a.mu.Unlock()
}

// begin admits one request to ep. The returned func releases it.
func (a *admission) begin(ctx context.Context, ep hosting.Endpoint) (func(), error) {
	noop := func() {}
	if err := ctx.Err(); err != nil {
		return noop, err
	}
	g := a.gateFor(ep)

	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case g.queue <- struct{}{}:
	case <-ctx.Done():
		return noop, ctx.Err()
	case <-timer.C:
		return noop, tooBusyError{endpoint: ep.Name}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-g.queue
		}
	}()
	select {
	case g.inflight <- struct{}{}:
		acquired = true
		return func() { <-g.inflight; <-g.queue }, nil
	case <-ctx.Done():
		return noop, ctx.Err()
	case <-timer.C:
		return noop, tooBusyError{endpoint: ep.Name}
	}
}

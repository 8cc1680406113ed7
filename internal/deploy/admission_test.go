package deploy

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmhost/internal/hosting"
	"llmhost/internal/serving"
)

// blockingPredictor holds every Predict call until release is closed.
type blockingPredictor struct {
	entered chan struct{}
	release chan struct{}
	peak    atomic.Int32
	cur     atomic.Int32
}

func (p *blockingPredictor) Predict(ctx context.Context, _ hosting.Endpoint, req hosting.GenerateRequest) (hosting.GenerateResponse, error) {
	n := p.cur.Add(1)
	defer p.cur.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	p.entered <- struct{}{}
	select {
	case <-p.release:
		return hosting.GenerateResponse{GeneratedText: req.Inputs}, nil
	case <-ctx.Done():
		return hosting.GenerateResponse{}, ctx.Err()
	}
}

func admissionEndpoint(t *testing.T, batch int) hosting.Endpoint {
	t.Helper()
	cfg, err := serving.Derive(serving.Params{ModelID: "m", BatchSize: batch, SequenceLength: 1024})
	if err != nil {
		t.Fatal(err)
	}
	return hosting.Endpoint{Name: "ep", Status: hosting.StatusInService, Serving: cfg}
}

func TestGenerate_AdmissionBoundsConcurrency(t *testing.T) {
	p := &blockingPredictor{entered: make(chan struct{}, 8), release: make(chan struct{})}
	d := New(Options{Predictor: p, Logger: zerolog.Nop(), MaxQueueDepth: 4, MaxWait: 20 * time.Millisecond})
	ep := admissionEndpoint(t, 2)

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := d.Generate(context.Background(), ep, Prompt{Text: "hi"})
			errs <- err
		}()
	}
	<-p.entered
	<-p.entered
	// The two queued requests time out waiting for an in-flight slot.
	for i := 0; i < 2; i++ {
		err := <-errs
		if !IsTooBusy(err) {
			t.Fatalf("expected too busy, got %v", err)
		}
		var he interface{ StatusCode() int }
		if !errors.As(err, &he) || he.StatusCode() != http.StatusTooManyRequests {
			t.Fatalf("expected 429 status, got %v", err)
		}
	}
	close(p.release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("admitted request failed: %v", err)
		}
	}
	if got := p.peak.Load(); got != 2 {
		t.Fatalf("peak concurrency = %d, want 2", got)
	}
}

func TestGenerate_AdmissionQueueFull(t *testing.T) {
	p := &blockingPredictor{entered: make(chan struct{}, 4), release: make(chan struct{})}
	d := New(Options{Predictor: p, Logger: zerolog.Nop(), MaxQueueDepth: 1, MaxWait: 20 * time.Millisecond})
	ep := admissionEndpoint(t, 1)

	done := make(chan error, 1)
	go func() {
		_, err := d.Generate(context.Background(), ep, Prompt{Text: "first"})
		done <- err
	}()
	<-p.entered
	if _, err := d.Generate(context.Background(), ep, Prompt{Text: "second"}); !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("first: %v", err)
	}
}

func TestGenerate_AdmissionCanceledContext(t *testing.T) {
	p := &blockingPredictor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	d := New(Options{Predictor: p, Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Generate(ctx, admissionEndpoint(t, 1), Prompt{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.cur.Load() != 0 {
		t.Fatal("predictor must not be called")
	}
}

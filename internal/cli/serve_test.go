package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmhost/internal/config"
	"llmhost/internal/hosting/hostingtest"
)

func TestServe_HealthAndGracefulShutdown(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	withControlPlane(t, srv)
	e, err := newEnv(&Config{}, config.Deployment{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, serveOptions{ShutdownTimeout: time.Second}, e.deployer, ln, zerolog.Nop()) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(b) != "ready" {
		t.Fatalf("readyz=%d %q", resp.StatusCode, b)
	}

	resp, err = http.Post(base+"/serving-config", "application/json", strings.NewReader(`{"model_id":"m","batch_size":1,"sequence_length":1024,"max_input_length":900}`))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"max_batch_prefill_tokens":512`) {
		t.Fatalf("derive=%d %s", resp.StatusCode, b)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package hosting

import (
	"context"
	"strings"
	"testing"
)

func TestImageCatalog_Resolve(t *testing.T) {
	c := NewImageCatalog(nil)
	img, err := c.Resolve(context.Background(), "huggingface-neuronx", "0.0.23", "us-west-2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(img, "registry.us-west-2.") || !strings.Contains(img, "optimum0.0.23-neuronx") {
		t.Fatalf("image=%q", img)
	}
}

func TestImageCatalog_Errors(t *testing.T) {
	c := NewImageCatalog(map[string]map[string]string{
		"tgi":    {"1.0": "example.test/{region}/tgi:1.0"},
		"static": {"1.0": "example.test/static:1.0"},
	})
	if _, err := c.Resolve(context.Background(), "vllm", "1.0", "r"); err == nil || !strings.Contains(err.Error(), "static, tgi") {
		t.Fatalf("expected unknown backend error listing backends, got %v", err)
	}
	if _, err := c.Resolve(context.Background(), "tgi", "2.0", "r"); err == nil {
		t.Fatalf("expected unknown version error")
	}
	if _, err := c.Resolve(context.Background(), "tgi", "1.0", ""); err == nil {
		t.Fatalf("expected region error")
	}
	if img, err := c.Resolve(context.Background(), "static", "1.0", ""); err != nil || img != "example.test/static:1.0" {
		t.Fatalf("static image=%q err=%v", img, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Resolve(ctx, "tgi", "1.0", "r"); err == nil {
		t.Fatalf("expected context error")
	}
}

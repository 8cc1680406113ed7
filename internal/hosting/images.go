package hosting

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// regionPlaceholder is substituted with the session region in image templates.
const regionPlaceholder = "{region}"

// DefaultImages lists the text-generation server images known to llmhost,
// keyed by backend and version.
var DefaultImages = map[string]map[string]string{
	"huggingface-neuronx": {
		"0.0.21": "registry.{region}.llmhost.dev/tgi-inference:2.1.2-optimum0.0.21-neuronx-py310-ubuntu22.04",
		"0.0.22": "registry.{region}.llmhost.dev/tgi-inference:2.1.2-optimum0.0.22-neuronx-py310-ubuntu22.04",
		"0.0.23": "registry.{region}.llmhost.dev/tgi-inference:2.1.2-optimum0.0.23-neuronx-py310-ubuntu22.04",
	},
	"huggingface": {
		"2.0.2": "registry.{region}.llmhost.dev/tgi-inference:2.3.0-tgi2.0.2-gpu-py310-cu121-ubuntu22.04",
		"2.2.0": "registry.{region}.llmhost.dev/tgi-inference:2.3.0-tgi2.2.0-gpu-py310-cu121-ubuntu22.04",
	},
}

// ImageCatalog resolves images from a static table.
type ImageCatalog struct {
	images map[string]map[string]string
}

// NewImageCatalog returns a catalog over images; nil means DefaultImages.
func NewImageCatalog(images map[string]map[string]string) *ImageCatalog {
	if images == nil {
		images = DefaultImages
	}
	return &ImageCatalog{images: images}
}

// Resolve implements ImageResolver.
func (c *ImageCatalog) Resolve(ctx context.Context, backend, version, region string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	versions, ok := c.images[backend]
	if !ok {
		return "", fmt.Errorf("unknown image backend %q (known: %s)", backend, strings.Join(c.Backends(), ", "))
	}
	tmpl, ok := versions[version]
	if !ok {
		return "", fmt.Errorf("unknown %s version %q (known: %s)", backend, version, strings.Join(sortedKeys(versions), ", "))
	}
	if strings.Contains(tmpl, regionPlaceholder) {
		if region == "" {
			return "", fmt.Errorf("image for %s %s needs a region", backend, version)
		}
		tmpl = strings.ReplaceAll(tmpl, regionPlaceholder, region)
	}
	return tmpl, nil
}

// Backends returns the known backend names, sorted.
func (c *ImageCatalog) Backends() []string {
	keys := make([]string, 0, len(c.images))
	for k := range c.images {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

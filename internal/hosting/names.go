package hosting

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	nameSuffixLen = 6
	// MaxNameLength leaves room for the "-config" suffix of derived object names.
	MaxNameLength = validation.DNS1123LabelMaxLength - len("-config")
)

// GenerateName derives a unique endpoint name from a model id, e.g.
// "HuggingFaceH4/zephyr-7b-beta" -> "zephyr-7b-beta-3f9c1a".
func GenerateName(modelID string) string {
	base := modelID
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "endpoint"
	}
	if limit := MaxNameLength - nameSuffixLen - 1; len(s) > limit {
		s = strings.TrimRight(s[:limit], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:nameSuffixLen]
	return s + "-" + suffix
}

// ValidateName checks that name can be used for an endpoint and the objects
// created alongside it.
func ValidateName(name string) error {
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return fmt.Errorf("invalid endpoint name %q: %s", name, strings.Join(errs, "; "))
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("invalid endpoint name %q: must be no more than %d characters", name, MaxNameLength)
	}
	return nil
}

// ModelName and ConfigName name the objects created for an endpoint.
func ModelName(endpoint string) string  { return endpoint + "-model" }
func ConfigName(endpoint string) string { return endpoint + "-config" }

package hosting

import (
	"strings"
	"testing"
)

func TestGenerateName(t *testing.T) {
	cases := map[string]string{
		"HuggingFaceH4/zephyr-7b-beta": "zephyr-7b-beta-",
		"aws-neuron/Mistral_7B.v0.2":   "mistral-7b-v0-2-",
		"///":                          "endpoint-",
	}
	for in, prefix := range cases {
		got := GenerateName(in)
		if !strings.HasPrefix(got, prefix) || len(got) != len(prefix)+nameSuffixLen {
			t.Fatalf("GenerateName(%q)=%q, want prefix %q", in, got, prefix)
		}
		if err := ValidateName(got); err != nil {
			t.Fatalf("generated name invalid: %v", err)
		}
	}
	if GenerateName("m") == GenerateName("m") {
		t.Fatalf("names should be unique")
	}
	long := GenerateName(strings.Repeat("a", 100))
	if len(long) > MaxNameLength {
		t.Fatalf("name too long: %d", len(long))
	}
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "Upper", "under_score", "-lead", strings.Repeat("a", MaxNameLength+1)} {
		if err := ValidateName(bad); err == nil {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
	if err := ValidateName("zephyr-7b-abc123"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	if ModelName("e") != "e-model" || ConfigName("e") != "e-config" {
		t.Fatalf("derived names wrong")
	}
}

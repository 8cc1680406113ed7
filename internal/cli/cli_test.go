package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmhost/internal/hosting/hostingtest"
)

const zephyrYAML = `name: zephyr-cli
model_id: aws-neuron/zephyr-7b-beta-neuron
batch_size: 4
sequence_length: 2048
max_input_length: 1512
generation:
  max_new_tokens: 16
samples:
  - system: You are a helpful assistant.
    user: What is deep learning?
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// withControlPlane points the session at srv and isolates the env file.
func withControlPlane(t *testing.T, srv *hostingtest.Server) {
	t.Helper()
	t.Setenv("LLMHOST_ENDPOINT", srv.URL)
	t.Setenv("LLMHOST_POLL_INTERVAL", "1ms")
	t.Setenv("LLMHOST_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := MainWithArgs(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestMainWithArgs_NoArgs_ShowsUsageAndExit2(t *testing.T) {
	if code, out, _ := run(t); code != ExitUsage || !strings.Contains(out, "llmhost") {
		t.Fatalf("code=%d out=%q", code, out)
	}
}

func TestMainWithArgs_UnknownCommand_Exit1(t *testing.T) {
	if code, _, _ := run(t, "wat"); code != ExitError {
		t.Fatalf("expected exit code 1 for unknown command, got %d", code)
	}
}

func TestDerive_Flags(t *testing.T) {
	code, out, errOut := run(t, "derive", "--model-id", "m", "--batch-size", "4", "--sequence-length", "2048", "--max-input-length", "1512", "--log-level", "error")
	if code != ExitOK {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	var v struct {
		MaxConcurrentRequests int               `json:"max_concurrent_requests"`
		MaxTotalTokens        int               `json:"max_total_tokens"`
		MaxBatchPrefillTokens int               `json:"max_batch_prefill_tokens"`
		MaxBatchTotalTokens   int               `json:"max_batch_total_tokens"`
		Env                   map[string]string `json:"env"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("json: %v\n%s", err, out)
	}
	if v.MaxConcurrentRequests != 4 || v.MaxTotalTokens != 2048 || v.MaxBatchPrefillTokens != 4096 || v.MaxBatchTotalTokens != 8192 {
		t.Fatalf("unexpected derive output: %+v", v)
	}
	if v.Env["MAX_CONCURRENT_REQUESTS"] != "4" {
		t.Fatalf("env=%v", v.Env)
	}
}

func TestDerive_EnvFormatFromConfigWithOverride(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "deploy.yaml", zephyrYAML)
	code, out, errOut := run(t, "derive", "-c", p, "--batch-size", "1", "--sequence-length", "1024", "--max-input-length", "900", "--format", "env", "--log-level", "error")
	if code != ExitOK {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	want := "HF_MODEL_ID=aws-neuron/zephyr-7b-beta-neuron\n" +
		"MAX_BATCH_PREFILL_TOKENS=512\n" +
		"MAX_BATCH_TOTAL_TOKENS=1024\n" +
		"MAX_CONCURRENT_REQUESTS=1\n" +
		"MAX_INPUT_LENGTH=900\n" +
		"MAX_TOTAL_TOKENS=1024\n"
	if out != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestDerive_InvalidExit3(t *testing.T) {
	code, _, errOut := run(t, "derive", "--model-id", "m", "--batch-size", "4", "--sequence-length", "1024", "--max-input-length", "2048", "--log-level", "error")
	if code != ExitInvalid || !strings.Contains(errOut, "error:") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestDerive_UnknownFormat(t *testing.T) {
	if code, _, _ := run(t, "derive", "--model-id", "m", "--batch-size", "1", "--sequence-length", "1024", "--format", "xml"); code != ExitUsage {
		t.Fatalf("code=%d", code)
	}
}

func TestPlan_RequiresConfig(t *testing.T) {
	if code, _, _ := run(t, "plan"); code != ExitUsage {
		t.Fatalf("code=%d", code)
	}
}

func TestPlan_WithArtifacts(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	withControlPlane(t, srv)
	dir := t.TempDir()
	p := writeFile(t, dir, "deploy.yaml", zephyrYAML)
	arts := filepath.Join(dir, "artifacts", "zephyr")
	if err := os.MkdirAll(arts, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, arts, "compile.json", `{"model_id":"aws-neuron/zephyr-7b-beta-neuron","batch_size":4,"sequence_length":2048,"num_cores":2,"auto_cast_type":"bf16","uri":"s3://bucket/zephyr"}`)

	code, out, errOut := run(t, "plan", "-c", p, "--artifacts-dir", filepath.Join(dir, "artifacts"), "--log-level", "error")
	if code != ExitOK {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	var v planView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("json: %v", err)
	}
	if v.Name != "zephyr-cli" || v.ArtifactURI != "s3://bucket/zephyr" || v.Env["HF_NUM_CORES"] != "2" || v.HealthCheckTimeoutSeconds != 1800 {
		t.Fatalf("plan=%+v", v)
	}
	if m, _, _ := srv.Live(); m != 0 {
		t.Fatalf("plan must not provision")
	}
}

func TestRun_AgainstFakeControlPlane(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	withControlPlane(t, srv)
	p := writeFile(t, t.TempDir(), "deploy.yaml", zephyrYAML)

	code, out, errOut := run(t, "run", "-c", p, "--log-format", "json")
	if code != ExitOK {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	var v reportView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("json: %v\n%s", err, out)
	}
	if !v.TornDown || len(v.Results) != 1 || !strings.HasPrefix(v.Results[0]["generated_text"], "generated: <|system|>") {
		t.Fatalf("report=%+v", v)
	}
	if !strings.Contains(errOut, `"event":"in_service"`) || !strings.Contains(errOut, `"event":"torn_down"`) {
		t.Fatalf("expected lifecycle events in logs: %s", errOut)
	}
	if m, c, e := srv.Live(); m+c+e != 0 {
		t.Fatalf("objects left: %d %d %d", m, c, e)
	}
}

func TestDeployPredictTeardown(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	withControlPlane(t, srv)
	p := writeFile(t, t.TempDir(), "deploy.yaml", zephyrYAML)

	if code, _, errOut := run(t, "deploy", "-c", p, "--log-level", "error"); code != ExitOK {
		t.Fatalf("deploy code=%d stderr=%s", code, errOut)
	}
	code, out, errOut := run(t, "predict", "zephyr-cli", "--prompt", "hello", "--max-new-tokens", "4", "--log-level", "error")
	if code != ExitOK || !strings.Contains(out, `"generated_text": "generated: hello"`) {
		t.Fatalf("predict code=%d out=%s stderr=%s", code, out, errOut)
	}
	inv := srv.Invocations()
	if len(inv) != 1 || inv[0].Parameters["max_new_tokens"] != float64(4) {
		t.Fatalf("invocations=%+v", inv)
	}
	if code, _, _ := run(t, "predict", "zephyr-cli", "--log-level", "error"); code != ExitUsage {
		t.Fatalf("predict without prompt should be a usage error, got %d", code)
	}
	if code, _, errOut := run(t, "teardown", "zephyr-cli", "--log-level", "error"); code != ExitOK {
		t.Fatalf("teardown code=%d stderr=%s", code, errOut)
	}
	if m, c, e := srv.Live(); m+c+e != 0 {
		t.Fatalf("objects left: %d %d %d", m, c, e)
	}
	if code, _, _ := run(t, "teardown", "zephyr-cli", "--log-level", "error"); code != ExitError {
		t.Fatalf("second teardown should fail, got %d", code)
	}
}

func TestDeploy_FailureCleansUp(t *testing.T) {
	srv := hostingtest.NewServer()
	defer srv.Close()
	srv.FailWith = "out of capacity"
	withControlPlane(t, srv)
	p := writeFile(t, t.TempDir(), "deploy.yaml", zephyrYAML)

	if code, _, errOut := run(t, "deploy", "-c", p, "--log-level", "error"); code != ExitError || !strings.Contains(errOut, "out of capacity") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	if m, c, e := srv.Live(); m+c+e != 0 {
		t.Fatalf("objects left: %d %d %d", m, c, e)
	}
}

func TestVersion(t *testing.T) {
	if code, out, _ := run(t, "version"); code != ExitOK || strings.TrimSpace(out) != Version {
		t.Fatalf("code=%d out=%q", code, out)
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"llmhost/pkg/types"
)

type mockService struct {
	endpoints []types.Endpoint
	ready     bool
	err       error
	// last deploy call
	deployed types.DeployRequest
	waited   bool
}

func (m *mockService) Derive(req types.DeriveRequest) (types.ServingConfig, error) {
	if m.err != nil {
		return types.ServingConfig{}, m.err
	}
	return types.ServingConfig{ModelID: req.ModelID, BatchSize: req.BatchSize, SequenceLength: req.SequenceLength}, nil
}
func (m *mockService) Endpoints() []types.Endpoint { return append([]types.Endpoint(nil), m.endpoints...) }
func (m *mockService) Endpoint(name string) (types.Endpoint, error) {
	if m.err != nil {
		return types.Endpoint{}, m.err
	}
	return types.Endpoint{Name: name, Status: "InService"}, nil
}
func (m *mockService) Deploy(ctx context.Context, req types.DeployRequest, wait bool) (types.Endpoint, error) {
	m.deployed, m.waited = req, wait
	if m.err != nil {
		return types.Endpoint{}, m.err
	}
	return types.Endpoint{Name: req.Name, Status: "InService"}, nil
}
func (m *mockService) Generate(ctx context.Context, name string, req types.GenerateRequest) (types.GenerateResponse, error) {
	if m.err != nil {
		return types.GenerateResponse{}, m.err
	}
	return types.GenerateResponse{Endpoint: name, Prompt: req.Prompt, GeneratedText: "hi"}, nil
}
func (m *mockService) Teardown(ctx context.Context, name string) error { return m.err }
func (m *mockService) Ready() bool                                      { return m.ready }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestEndpointsHandler(t *testing.T) {
	svc := &mockService{endpoints: []types.Endpoint{{Name: "a"}, {Name: "b"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.EndpointsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Endpoints) != 2 {
		t.Fatalf("endpoints len=%d", len(body.Endpoints))
	}
}

func TestGetEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints/zephyr", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"zephyr"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDeriveHandler(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/serving-config", `{"model_id":"m","batch_size":4,"sequence_length":2048}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var cfg types.ServingConfig
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil || cfg.BatchSize != 4 {
		t.Fatalf("cfg=%+v err=%v", cfg, err)
	}
}

func TestDeployHandler_WaitQuery(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postJSON(r, "/endpoints", `{"name":"x","model_id":"m","batch_size":1,"sequence_length":1024}`)
	if w.Code != http.StatusCreated || !svc.waited || svc.deployed.BatchSize != 1 {
		t.Fatalf("status=%d waited=%v req=%+v", w.Code, svc.waited, svc.deployed)
	}
	w = postJSON(r, "/endpoints?wait=false", `{"name":"x","model_id":"m","batch_size":1,"sequence_length":1024}`)
	if w.Code != http.StatusAccepted || svc.waited {
		t.Fatalf("status=%d waited=%v", w.Code, svc.waited)
	}
	w = postJSON(r, "/endpoints?wait=maybe", `{"model_id":"m"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/endpoints/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateHandler(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/endpoints/x/generate", `{"prompt":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var res types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.Endpoint != "x" || res.GeneratedText != "hi" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestGeneratePromptRequired(t *testing.T) {
	r := NewMux(&mockService{})
	if w := postJSON(r, "/endpoints/x/generate", `{"prompt":"   "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing prompt, got %d", w.Code)
	}
}

func TestBadJSON(t *testing.T) {
	r := NewMux(&mockService{})
	if w := postJSON(r, "/serving-config", "not-json"); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if w := postJSON(r, "/serving-config", `{"model_id":"m","batchsize":4}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields should be rejected, got %d", w.Code)
	}
}

func TestUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/endpoints/x/generate", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/endpoints/x/generate", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", w.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	r := NewMux(&mockService{})
	big := `{"prompt":"` + strings.Repeat("a", (1<<20)+10) + `"}`
	if w := postJSON(r, "/endpoints/x/generate", big); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	r := NewMux(&mockService{err: mockHTTPError{msg: "quota exceeded", code: http.StatusTooManyRequests}})
	w := postJSON(r, "/endpoints/x/generate", `{"prompt":"hi"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != 429 || body.Error != "quota exceeded" {
		t.Fatalf("body=%+v err=%v", body, err)
	}
}

func TestGenericErrorMaps500(t *testing.T) {
	r := NewMux(&mockService{err: io.EOF})
	if w := postJSON(r, "/endpoints/x/generate", `{"prompt":"hi"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "DELETE", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	h := NewMux(&mockService{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/endpoints", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

// Package hostingtest provides an in-memory hosting control plane for tests.
package hostingtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Model is a stored model object.
type Model struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	ArtifactURI   string            `json:"artifact_uri"`
	Env           map[string]string `json:"env"`
	ExecutionRole string            `json:"execution_role"`
}

// EndpointConfig is a stored endpoint configuration.
type EndpointConfig struct {
	Name                      string `json:"name"`
	ModelName                 string `json:"model_name"`
	InstanceType              string `json:"instance_type"`
	InstanceCount             int    `json:"instance_count"`
	HealthCheckTimeoutSeconds int    `json:"health_check_timeout_seconds"`
}

type endpoint struct {
	Name        string `json:"name"`
	ConfigName  string `json:"config_name"`
	describes   int
	createdUnix int64
}

// Invocation is one recorded call to an endpoint.
type Invocation struct {
	Endpoint   string         `json:"-"`
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters"`
}

// Server is a fake control plane. Zero-value knobs give a well-behaved
// service whose endpoints are InService on the first describe.
type Server struct {
	*httptest.Server

	// Token, when set, is required as a bearer token.
	Token string
	// DescribesUntilReady is how many describes report Creating before InService.
	DescribesUntilReady int
	// FailWith makes endpoints go to Failed with this reason.
	FailWith string
	// Generate produces the generated text for an invocation.
	Generate func(inputs string) string
	// FailCreateModel rejects model creation with this status code.
	FailCreateModel int
	// FailCreateConfig rejects endpoint configuration creation with this status code.
	FailCreateConfig int

	mu          sync.Mutex
	models      map[string]Model
	configs     map[string]EndpointConfig
	endpoints   map[string]*endpoint
	invocations []Invocation
	deleted     []string
}

// NewServer starts a fake control plane. Call Close when done.
func NewServer() *Server {
	s := &Server{
		models:    map[string]Model{},
		configs:   map[string]EndpointConfig{},
		endpoints: map[string]*endpoint{},
	}
	r := chi.NewRouter()
	r.Use(s.auth)
	r.Post("/v1/models", s.createModel)
	r.Delete("/v1/models/{name}", s.deleteModel)
	r.Post("/v1/endpoint-configs", s.createConfig)
	r.Delete("/v1/endpoint-configs/{name}", s.deleteConfig)
	r.Post("/v1/endpoints", s.createEndpoint)
	r.Get("/v1/endpoints/{name}", s.describeEndpoint)
	r.Delete("/v1/endpoints/{name}", s.deleteEndpoint)
	r.Post("/v1/endpoints/{name}/invocations", s.invoke)
	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeError(w, http.StatusUnauthorized, "UnrecognizedClientException", "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) createModel(w http.ResponseWriter, r *http.Request) {
	var m Model
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationException", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateModel != 0 {
		writeError(w, s.FailCreateModel, "ResourceLimitExceeded", "quota exceeded")
		return
	}
	if _, ok := s.models[m.Name]; ok {
		writeError(w, http.StatusConflict, "ValidationException", "model exists")
		return
	}
	s.models[m.Name] = m
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) createConfig(w http.ResponseWriter, r *http.Request) {
	var c EndpointConfig
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationException", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateConfig != 0 {
		writeError(w, s.FailCreateConfig, "ValidationException", "instance type not available")
		return
	}
	if _, ok := s.models[c.ModelName]; !ok {
		writeError(w, http.StatusBadRequest, "ValidationException", "unknown model "+c.ModelName)
		return
	}
	s.configs[c.Name] = c
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) createEndpoint(w http.ResponseWriter, r *http.Request) {
	var e endpoint
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationException", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[e.ConfigName]; !ok {
		writeError(w, http.StatusBadRequest, "ValidationException", "unknown endpoint config "+e.ConfigName)
		return
	}
	e.createdUnix = time.Now().Unix()
	s.endpoints[e.Name] = &e
	writeJSON(w, http.StatusAccepted, map[string]string{"name": e.Name, "status": "Creating"})
}

func (s *Server) describeEndpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[name]
	if !ok {
		writeError(w, http.StatusNotFound, "ValidationException", "endpoint not found: "+name)
		return
	}
	e.describes++
	status, reason := "Creating", ""
	switch {
	case s.FailWith != "":
		status, reason = "Failed", s.FailWith
	case e.describes > s.DescribesUntilReady:
		status = "InService"
	}
	cfg := s.configs[e.ConfigName]
	m := s.models[cfg.ModelName]
	writeJSON(w, http.StatusOK, map[string]any{
		"name":           e.Name,
		"config_name":    e.ConfigName,
		"model_name":     cfg.ModelName,
		"status":         status,
		"failure_reason": reason,
		"image":          m.Image,
		"instance_type":  cfg.InstanceType,
		"env":            m.Env,
		"created_unix":   e.createdUnix,
	})
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var inv Invocation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationException", "invalid body")
		return
	}
	inv.Endpoint = name
	s.mu.Lock()
	_, ok := s.endpoints[name]
	if ok {
		s.invocations = append(s.invocations, inv)
	}
	gen := s.Generate
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "ValidationException", "endpoint not found: "+name)
		return
	}
	text := "generated: " + inv.Inputs
	if gen != nil {
		text = gen(inv.Inputs)
	}
	writeJSON(w, http.StatusOK, []map[string]string{{"generated_text": text}})
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	s.deleteFrom(w, chi.URLParam(r, "name"), "model", func(n string) bool {
		_, ok := s.models[n]
		delete(s.models, n)
		return ok
	})
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request) {
	s.deleteFrom(w, chi.URLParam(r, "name"), "endpoint-config", func(n string) bool {
		_, ok := s.configs[n]
		delete(s.configs, n)
		return ok
	})
}

func (s *Server) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	s.deleteFrom(w, chi.URLParam(r, "name"), "endpoint", func(n string) bool {
		_, ok := s.endpoints[n]
		delete(s.endpoints, n)
		return ok
	})
}

func (s *Server) deleteFrom(w http.ResponseWriter, name, kind string, del func(string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !del(name) {
		writeError(w, http.StatusNotFound, "ValidationException", kind+" not found: "+name)
		return
	}
	s.deleted = append(s.deleted, kind+"/"+name)
	w.WriteHeader(http.StatusNoContent)
}

// Model returns the stored model by name.
func (s *Server) Model(name string) (Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[name]
	return m, ok
}

// Config returns the stored endpoint configuration by name.
func (s *Server) Config(name string) (EndpointConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.configs[name]
	return c, ok
}

// Invocations returns a copy of the recorded invocations.
func (s *Server) Invocations() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Invocation(nil), s.invocations...)
}

// Deleted returns "kind/name" for every deleted object, in order.
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Live reports how many models, configs and endpoints exist.
func (s *Server) Live() (models, configs, endpoints int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.models), len(s.configs), len(s.endpoints)
}

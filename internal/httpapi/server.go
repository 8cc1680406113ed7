package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmhost/pkg/types"
)

// NewMux builds the HTTP API around svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsOptions != nil {
		r.Use(cors.Handler(*corsOptions))
	}

	h := &handlers{svc: svc}
	r.Post("/serving-config", h.deriveConfig)
	r.Get("/endpoints", h.listEndpoints)
	r.Post("/endpoints", h.createEndpoint)
	r.Get("/endpoints/{name}", h.getEndpoint)
	r.Delete("/endpoints/{name}", h.deleteEndpoint)
	r.Post("/endpoints/{name}/generate", h.generate)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no control plane"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes err with its mapped status and logs the outcome.
func fail(w http.ResponseWriter, r *http.Request, op string, start time.Time, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementThrottled(op)
	}
	writeJSONError(w, status, err.Error())
	logOutcome(r, op, status, start, err)
}

// deriveConfig godoc
// @Summary      Derive serving configuration
// @Description  Computes the serving limits and container environment for a compiled model.
// @Tags         serving
// @Accept       json
// @Produce      json
// @Param        request  body      types.DeriveRequest  true  "Compile-time parameters"
// @Success      200      {object}  types.ServingConfig
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Router       /serving-config [post]
func (h *handlers) deriveConfig(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.DeriveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.svc.Derive(req)
	if err != nil {
		fail(w, r, "derive", start, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
	logOutcome(r, "derive", http.StatusOK, start, nil)
}

// listEndpoints godoc
// @Summary      List endpoints
// @Tags         endpoints
// @Produce      json
// @Success      200  {object}  types.EndpointsResponse
// @Router       /endpoints [get]
func (h *handlers) listEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.EndpointsResponse{Endpoints: h.svc.Endpoints()})
}

// createEndpoint godoc
// @Summary      Deploy an endpoint
// @Description  Provisions a hosted endpoint. By default the call blocks until the endpoint is in service; pass wait=false to return 202 immediately.
// @Tags         endpoints
// @Accept       json
// @Produce      json
// @Param        request  body      types.DeployRequest  true  "Deployment"
// @Param        wait     query     bool                 false "Block until in service (default true)"
// @Success      201      {object}  types.Endpoint
// @Success      202      {object}  types.Endpoint
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Router       /endpoints [post]
func (h *handlers) createEndpoint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.DeployRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wait := true
	if v := r.URL.Query().Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "wait must be a boolean")
			return
		}
		wait = b
	}
	// Shutdown cancels a blocking deploy too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	ep, err := h.svc.Deploy(ctx, req, wait)
	if err != nil {
		fail(w, r, "deploy", start, err)
		return
	}
	status := http.StatusCreated
	if !wait {
		status = http.StatusAccepted
	}
	writeJSON(w, status, ep)
	logOutcome(r, "deploy", status, start, nil)
}

// getEndpoint godoc
// @Summary      Describe an endpoint
// @Tags         endpoints
// @Produce      json
// @Param        name  path      string  true  "Endpoint name"
// @Success      200   {object}  types.Endpoint
// @Failure      404   {object}  types.ErrorResponse
// @Router       /endpoints/{name} [get]
func (h *handlers) getEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := h.svc.Endpoint(chi.URLParam(r, "name"))
	if err != nil {
		fail(w, r, "describe", time.Now(), err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// deleteEndpoint godoc
// @Summary      Tear down an endpoint
// @Description  Deletes the endpoint, its configuration and its model.
// @Tags         endpoints
// @Param        name  path  string  true  "Endpoint name"
// @Success      204
// @Failure      404   {object}  types.ErrorResponse
// @Failure      502   {object}  types.ErrorResponse
// @Router       /endpoints/{name} [delete]
func (h *handlers) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	// Teardown is not abandoned when the client goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Minute)
	defer cancel()
	if err := h.svc.Teardown(ctx, chi.URLParam(r, "name")); err != nil {
		fail(w, r, "teardown", start, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logOutcome(r, "teardown", http.StatusNoContent, start, nil)
}

// generate godoc
// @Summary      Generate text
// @Description  Sends a prompt, or chat messages rendered with a chat template, to a live endpoint.
// @Tags         endpoints
// @Accept       json
// @Produce      json
// @Param        name     path      string                 true  "Endpoint name"
// @Param        request  body      types.GenerateRequest  true  "Prompt"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /endpoints/{name}/generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" && len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "prompt or messages is required")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if generateTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, generateTimeout)
		defer tcancel()
	}
	res, err := h.svc.Generate(ctx, chi.URLParam(r, "name"), req)
	if err != nil {
		// Client went away; nobody to answer.
		if r.Context().Err() != nil {
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSONError(w, http.StatusGatewayTimeout, err.Error())
			logOutcome(r, "generate", http.StatusGatewayTimeout, start, err)
			return
		}
		fail(w, r, "generate", start, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
	logOutcome(r, "generate", http.StatusOK, start, nil)
}

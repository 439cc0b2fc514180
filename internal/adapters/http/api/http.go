// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxBodyBytes          = 1 << 20
)

// Dependencies required by HTTP handlers. Each handler only sees the slice
// of it that it uses.
type Dependencies interface {
	BuyerDependencies
	RequestDependencies
	ScoreDependencies
	WorkloadDependencies
	BatchDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	buyersHandler   *BuyersHandler
	requestsHandler *RequestsHandler
	scoreHandler    *ScoreHandler
	workloadHandler *WorkloadHandler
	batchHandler    *BatchHandler
	requestTimeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds every request. Batch runs need more than the
// solver's time limit.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		buyersHandler:   NewBuyersHandler(deps),
		requestsHandler: NewRequestsHandler(deps),
		scoreHandler:    NewScoreHandler(deps),
		workloadHandler: NewWorkloadHandler(deps),
		batchHandler:    NewBatchHandler(deps),
		requestTimeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns a chi router carrying the common middleware stack and
// every business route.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/buyers", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.buyersHandler.HandleList, "buyers"))
		r.Post("/", MetricsMiddleware(s.buyersHandler.HandleCreate, "buyers"))
		r.Get("/{name}", MetricsMiddleware(s.buyersHandler.HandleGet, "buyer"))
	})

	r.Post("/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))

	r.Route("/requests", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.requestsHandler.HandleList, "requests"))
		r.Post("/", MetricsMiddleware(s.requestsHandler.HandleCreate, "requests"))
		r.Get("/{code}", MetricsMiddleware(s.requestsHandler.HandleGet, "request"))
		r.Patch("/{code}/status", MetricsMiddleware(s.requestsHandler.HandleUpdateStatus, "request_status"))
	})

	r.Get("/workload", MetricsMiddleware(s.workloadHandler.HandleWorkload, "workload"))
	r.Post("/batch", MetricsMiddleware(s.batchHandler.HandleBatch, "batch"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before touching the response so an encoding failure
// can still be reported as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		metrics.RecordErrorByComponent("http", "encode")
		logger.Get().Named("api").Error(context.Background(), "response encoding failed",
			logger.Int("status", status),
			logger.Error(err),
		)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON object from the body. Unknown fields are
// rejected so that typos do not silently fall back to defaults.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", ErrBadRequest)
	}
	return nil
}

// timestamp renders t as RFC3339, or nil when unset.
func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

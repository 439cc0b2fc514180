package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/achat/internal/app"
)

// BatchDependencies defines the interface for batch optimization.
type BatchDependencies interface {
	OptimizeBatch(ctx context.Context, codes []string, apply bool) (service.BatchResult, error)
}

// batchRequest mirrors the OpenAPI schema for POST /batch. No codes means
// every Draft.
type batchRequest struct {
	Codes []string `json:"codes"`
	Apply bool     `json:"apply"`
}

type batchAssignment struct {
	Code       string  `json:"code"`
	Buyer      string  `json:"buyer"`
	Complexity float64 `json:"complexity"`
}

type batchResponse struct {
	RunID       string             `json:"run_id"`
	Solver      string             `json:"solver"`
	Status      string             `json:"status"`
	MaxLoad     float64            `json:"max_load"`
	Loads       map[string]float64 `json:"loads"`
	Buyers      []buyerLoad        `json:"buyers"`
	DurationMs  float64            `json:"duration_ms"`
	Applied     bool               `json:"applied"`
	Assignments []batchAssignment  `json:"assignments"`
}

// BatchHandler handles batch optimization requests.
type BatchHandler struct {
	deps BatchDependencies
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deps BatchDependencies) *BatchHandler {
	return &BatchHandler{deps: deps}
}

// HandleBatch handles POST /batch requests. An empty body is an empty
// request.
func (h *BatchHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.deps.OptimizeBatch(r.Context(), req.Codes, req.Apply)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := batchResponse{
		RunID:       res.RunID,
		Solver:      res.Solver,
		Status:      string(res.Status),
		MaxLoad:     res.MaxLoad,
		Loads:       res.Loads,
		DurationMs:  float64(res.Duration.Microseconds()) / 1e3,
		Applied:     res.Applied,
		Assignments: make([]batchAssignment, len(res.Assignments)),
	}
	resp.Buyers = make([]buyerLoad, 0, res.Workload.Len())
	for _, name := range res.Workload.Buyers() {
		load, _ := res.Workload.Load(name)
		resp.Buyers = append(resp.Buyers, buyerLoad{Buyer: name, Load: load})
	}
	for i, a := range res.Assignments {
		resp.Assignments[i] = batchAssignment{Code: a.Code, Buyer: a.Buyer, Complexity: a.Complexity}
	}
	writeJSON(w, http.StatusOK, resp)
}

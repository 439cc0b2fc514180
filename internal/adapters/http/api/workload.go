package api

import (
	"context"
	"net/http"

	"github.com/okian/achat/internal/domain/workload"
)

// WorkloadDependencies defines the interface for the load aggregate.
type WorkloadDependencies interface {
	Workload(ctx context.Context) (workload.Workload, error)
}

type buyerLoad struct {
	Buyer string  `json:"buyer"`
	Load  float64 `json:"load"`
}

type workloadResponse struct {
	Buyers  []buyerLoad `json:"buyers"`
	Total   float64     `json:"total"`
	MaxLoad float64     `json:"max_load"`
	MinLoad float64     `json:"min_load"`
}

// WorkloadHandler handles workload requests.
type WorkloadHandler struct {
	deps WorkloadDependencies
}

// NewWorkloadHandler creates a new workload handler.
func NewWorkloadHandler(deps WorkloadDependencies) *WorkloadHandler {
	return &WorkloadHandler{deps: deps}
}

// HandleWorkload handles GET /workload requests.
func (h *WorkloadHandler) HandleWorkload(w http.ResponseWriter, r *http.Request) {
	wl, err := h.deps.Workload(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := workloadResponse{Buyers: make([]buyerLoad, 0, wl.Len()), Total: wl.Sum()}
	for _, name := range wl.Buyers() {
		load, _ := wl.Load(name)
		resp.Buyers = append(resp.Buyers, buyerLoad{Buyer: name, Load: load})
	}
	_, resp.MaxLoad, _ = wl.Max()
	_, resp.MinLoad, _ = wl.Min()
	writeJSON(w, http.StatusOK, resp)
}

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/workload"
)

// BuyerDependencies defines the interface for team operations.
type BuyerDependencies interface {
	AddBuyer(ctx context.Context, name, email string) (model.Buyer, error)
	BuyerSummaries(ctx context.Context) ([]workload.Summary, error)
	BuyerSummary(ctx context.Context, name string) (workload.Summary, error)
}

type buyerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type buyerResponse struct {
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	Active       int     `json:"active"`
	Load         float64 `json:"load"`
	Closed       int     `json:"closed"`
	Cancelled    int     `json:"cancelled"`
	Handled      int     `json:"handled"`
	LastAssigned *string `json:"last_assigned,omitempty"`
}

func newBuyerResponse(s workload.Summary) buyerResponse {
	return buyerResponse{
		Name:         s.Name,
		Email:        s.Email,
		Active:       s.Active,
		Load:         s.Load,
		Closed:       s.Closed,
		Cancelled:    s.Cancelled,
		Handled:      s.Handled,
		LastAssigned: timestamp(s.LastAssigned),
	}
}

// BuyersHandler handles team requests.
type BuyersHandler struct {
	deps BuyerDependencies
}

// NewBuyersHandler creates a new buyers handler.
func NewBuyersHandler(deps BuyerDependencies) *BuyersHandler {
	return &BuyersHandler{deps: deps}
}

// HandleList handles GET /buyers requests. Buyers come back in
// registration order, which is also the tie-break order.
func (h *BuyersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.deps.BuyerSummaries(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]buyerResponse, len(summaries))
	for i, s := range summaries {
		out[i] = newBuyerResponse(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /buyers requests.
func (h *BuyersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req buyerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	b, err := h.deps.AddBuyer(r.Context(), req.Name, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/buyers/"+b.Name)
	writeJSON(w, http.StatusCreated, buyerResponse{Name: b.Name, Email: b.Email})
}

// HandleGet handles GET /buyers/{name} requests.
func (h *BuyersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.BuyerSummary(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuyerResponse(s))
}

package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/achat/internal/app"
	"github.com/okian/achat/internal/domain/model"
	"github.com/shopspring/decimal"
)

// RequestDependencies defines the interface for dossier operations.
type RequestDependencies interface {
	CreateRequest(ctx context.Context, n service.NewRequest) (model.Request, error)
	Requests(ctx context.Context, f service.RequestFilter) ([]model.Request, error)
	Request(ctx context.Context, code string) (model.Request, error)
	UpdateStatus(ctx context.Context, code string, to model.Status) (model.Request, error)
}

// dossierRequest mirrors the OpenAPI schema for POST /requests and POST /score.
type dossierRequest struct {
	Code             string          `json:"code"`
	Description      string          `json:"description"`
	Type             string          `json:"type"`
	Articles         int             `json:"articles"`
	ForeignSuppliers int             `json:"foreign_suppliers"`
	TotalSuppliers   int             `json:"total_suppliers"`
	EffortLevel      int             `json:"effort_level"`
	TenderType       string          `json:"tender_type"`
	Currency         string          `json:"currency"`
	EstimatedAmount  decimal.Decimal `json:"estimated_amount"`
	Buyer            string          `json:"buyer"`
	AutoAssign       bool            `json:"auto_assign"`
}

func (d *dossierRequest) toService() service.NewRequest {
	return service.NewRequest{
		Code:             d.Code,
		Description:      d.Description,
		Type:             model.RequestType(d.Type),
		Articles:         d.Articles,
		ForeignSuppliers: d.ForeignSuppliers,
		TotalSuppliers:   d.TotalSuppliers,
		EffortLevel:      d.EffortLevel,
		TenderType:       d.TenderType,
		Currency:         d.Currency,
		EstimatedAmount:  d.EstimatedAmount,
		Buyer:            d.Buyer,
		AutoAssign:       d.AutoAssign,
	}
}

type dossierResponse struct {
	Code             string          `json:"code"`
	Description      string          `json:"description,omitempty"`
	Type             string          `json:"type"`
	Articles         int             `json:"articles"`
	ForeignSuppliers int             `json:"foreign_suppliers"`
	TotalSuppliers   int             `json:"total_suppliers"`
	EffortLevel      int             `json:"effort_level,omitempty"`
	Buyer            string          `json:"buyer,omitempty"`
	Status           string          `json:"status"`
	Complexity       *float64        `json:"complexity"`
	AssignedAt       *string         `json:"assigned_at,omitempty"`
	ClosedAt         *string         `json:"closed_at,omitempty"`
	TenderType       string          `json:"tender_type,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	EstimatedAmount  decimal.Decimal `json:"estimated_amount"`
}

func newDossierResponse(r *model.Request) dossierResponse {
	var closed time.Time
	if r.ClosedAt != nil {
		closed = *r.ClosedAt
	}
	return dossierResponse{
		Code:             r.Code,
		Description:      r.Description,
		Type:             string(r.Type),
		Articles:         r.Articles,
		ForeignSuppliers: r.ForeignSuppliers,
		TotalSuppliers:   r.TotalSuppliers,
		EffortLevel:      r.EffortLevel,
		Buyer:            r.Buyer,
		Status:           string(r.Status),
		Complexity:       finite(r.Complexity),
		AssignedAt:       timestamp(r.AssignedAt),
		ClosedAt:         timestamp(closed),
		TenderType:       r.TenderType,
		Currency:         r.Currency,
		EstimatedAmount:  r.EstimatedAmount,
	}
}

// finite returns nil for scores that cannot be rendered as JSON numbers.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type statusRequest struct {
	Status string `json:"status"`
}

// RequestsHandler handles dossier requests.
type RequestsHandler struct {
	deps RequestDependencies
}

// NewRequestsHandler creates a new requests handler.
func NewRequestsHandler(deps RequestDependencies) *RequestsHandler {
	return &RequestsHandler{deps: deps}
}

// HandleList handles GET /requests?status=&buyer=&type= requests.
func (h *RequestsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f service.RequestFilter
	if v := q.Get("status"); v != "" {
		status, err := model.ParseStatus(v)
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("status %q: %w", v, err))
			return
		}
		f.Status = status
	}
	if v := q.Get("type"); v != "" {
		t, err := model.ParseRequestType(v)
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("type %q: %w", v, err))
			return
		}
		f.Type = t
	}
	f.Buyer = q.Get("buyer")

	list, err := h.deps.Requests(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dossierResponse, len(list))
	for i := range list {
		out[i] = newDossierResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /requests requests.
func (h *RequestsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req dossierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	created, err := h.deps.CreateRequest(r.Context(), req.toService())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/requests/"+created.Code)
	writeJSON(w, http.StatusCreated, newDossierResponse(&created))
}

// HandleGet handles GET /requests/{code} requests.
func (h *RequestsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req, err := h.deps.Request(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDossierResponse(&req))
}

// HandleUpdateStatus handles PATCH /requests/{code}/status requests.
func (h *RequestsHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	to, err := model.ParseStatus(body.Status)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("status %q: %w", body.Status, err))
		return
	}
	updated, err := h.deps.UpdateStatus(r.Context(), chi.URLParam(r, "code"), to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDossierResponse(&updated))
}
